package model

// FeatureCode names one gated operation. The set is closed: permission
// envelopes and usage logs only ever carry one of these values.
type FeatureCode string

const (
	FeatureAIAsk            FeatureCode = "ai_ask"
	FeatureProgrammingHelp  FeatureCode = "programming_help"
	FeatureCodeReview       FeatureCode = "code_review"
	FeatureCodeExplain      FeatureCode = "code_explain"
	FeatureDebugHelp        FeatureCode = "debug_help"
	FeatureGenerateQuestion FeatureCode = "generate_question"
	FeatureGenerateLecture  FeatureCode = "generate_lecture"
	FeatureVideoSummary     FeatureCode = "video_summary"
	FeatureVideoToLecture   FeatureCode = "video_to_lecture"
	FeatureGradeAssignment  FeatureCode = "grade_assignment"
)

// AllFeatures lists every feature code, in display order.
var AllFeatures = []FeatureCode{
	FeatureAIAsk,
	FeatureProgrammingHelp,
	FeatureCodeReview,
	FeatureCodeExplain,
	FeatureDebugHelp,
	FeatureGenerateQuestion,
	FeatureGenerateLecture,
	FeatureVideoSummary,
	FeatureVideoToLecture,
	FeatureGradeAssignment,
}

// IsValidFeature reports whether code is a known feature code.
func IsValidFeature(code FeatureCode) bool {
	for _, f := range AllFeatures {
		if f == code {
			return true
		}
	}
	return false
}
