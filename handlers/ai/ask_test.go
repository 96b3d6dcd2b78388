package ai

import (
	"testing"

	"github.com/xuebang/xuebang-api/model"
)

func TestCodeAssistResponseKeys(t *testing.T) {
	want := map[model.FeatureCode]string{
		model.FeatureProgrammingHelp: "response",
		model.FeatureCodeReview:      "review",
		model.FeatureCodeExplain:     "explanation",
		model.FeatureDebugHelp:       "debug_help",
	}

	for feature, key := range want {
		if got := codeAssistResponseKeys[feature]; got != key {
			t.Errorf("response key for %s = %q, want %q", feature, got, key)
		}
	}
	if len(codeAssistResponseKeys) != len(want) {
		t.Errorf("response key map has %d entries, want %d", len(codeAssistResponseKeys), len(want))
	}
}
