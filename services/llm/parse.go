package llm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuebang/xuebang-api/utils"
)

// ScoreResult is the structured outcome of a grading completion.
type ScoreResult struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

var (
	scoreRe    = regexp.MustCompile(`(?i)"?score"?\s*[:：]\s*([0-9]+(?:\.[0-9]+)?)`)
	feedbackRe = regexp.MustCompile(`(?is)"?feedback"?\s*[:：]\s*"?(.+?)(?:"\s*[,}]|$)`)
)

// ParseScoreResult extracts a score/feedback pair from a model response.
// It first tries strict JSON extraction, then falls back to regex scanning
// so a malformed response still yields a usable grade.
func ParseScoreResult(raw string) (*ScoreResult, error) {
	var result ScoreResult
	if err := utils.ExtractJSONTo(raw, &result); err == nil {
		result.Feedback = utils.CleanText(result.Feedback)
		return &result, nil
	}

	m := scoreRe.FindStringSubmatch(raw)
	if m == nil {
		return nil, fmt.Errorf("no score found in response")
	}
	score, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid score value %q", m[1])
	}

	feedback := ""
	if fm := feedbackRe.FindStringSubmatch(raw); fm != nil {
		feedback = strings.TrimSpace(fm[1])
		feedback = strings.Trim(feedback, `"`)
	}

	return &ScoreResult{
		Score:    score,
		Feedback: utils.CleanText(feedback),
	}, nil
}
