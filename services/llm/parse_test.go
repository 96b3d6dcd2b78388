package llm

import "testing"

func TestParseScoreResultJSON(t *testing.T) {
	raw := `{"score": 85, "feedback": "论证清晰，结论正确。"}`

	result, err := ParseScoreResult(raw)
	if err != nil {
		t.Fatalf("ParseScoreResult failed: %v", err)
	}
	if result.Score != 85 {
		t.Errorf("score = %v, want 85", result.Score)
	}
	if result.Feedback != "论证清晰，结论正确。" {
		t.Errorf("unexpected feedback: %q", result.Feedback)
	}
}

func TestParseScoreResultCodeFence(t *testing.T) {
	raw := "```json\n{\"score\": 60.5, \"feedback\": \"部分正确\"}\n```"

	result, err := ParseScoreResult(raw)
	if err != nil {
		t.Fatalf("ParseScoreResult failed: %v", err)
	}
	if result.Score != 60.5 {
		t.Errorf("score = %v, want 60.5", result.Score)
	}
}

func TestParseScoreResultRegexFallback(t *testing.T) {
	// Malformed JSON still yields a usable grade via the regex fallback
	raw := `评分如下：
score: 72
feedback: 步骤完整但计算有误`

	result, err := ParseScoreResult(raw)
	if err != nil {
		t.Fatalf("ParseScoreResult failed: %v", err)
	}
	if result.Score != 72 {
		t.Errorf("score = %v, want 72", result.Score)
	}
	if result.Feedback == "" {
		t.Error("expected feedback from the fallback scan")
	}
}

func TestParseScoreResultChineseColon(t *testing.T) {
	raw := `score：88`

	result, err := ParseScoreResult(raw)
	if err != nil {
		t.Fatalf("ParseScoreResult failed: %v", err)
	}
	if result.Score != 88 {
		t.Errorf("score = %v, want 88", result.Score)
	}
}

func TestParseScoreResultNoScore(t *testing.T) {
	if _, err := ParseScoreResult("这份作业写得很好。"); err == nil {
		t.Error("expected an error when no score is present")
	}
}
