package utils

import (
	"errors"
	"testing"
)

func TestExtractJSONFromCodeFence(t *testing.T) {
	response := "```json\n{\"score\": 85, \"feedback\": \"不错\"}\n```"

	got, err := ExtractJSON(response)
	if err != nil {
		t.Fatalf("ExtractJSON failed: %v", err)
	}
	if got != `{"score": 85, "feedback": "不错"}` {
		t.Errorf("unexpected extraction: %q", got)
	}
}

func TestExtractJSONFromProse(t *testing.T) {
	response := `好的，以下是评分结果：

{"score": 92.5, "feedback": "论证充分"}

希望对你有帮助。`

	got, err := ExtractJSON(response)
	if err != nil {
		t.Fatalf("ExtractJSON failed: %v", err)
	}
	if got != `{"score": 92.5, "feedback": "论证充分"}` {
		t.Errorf("unexpected extraction: %q", got)
	}
}

func TestExtractJSONArray(t *testing.T) {
	response := "Here you go: [{\"question\": \"q1\"}, {\"question\": \"q2\"}] done"

	got, err := ExtractJSON(response)
	if err != nil {
		t.Fatalf("ExtractJSON failed: %v", err)
	}
	if got != `[{"question": "q1"}, {"question": "q2"}]` {
		t.Errorf("unexpected extraction: %q", got)
	}
}

func TestExtractJSONNestedBraces(t *testing.T) {
	response := `{"outer": {"inner": "value with } brace in string"}}`

	got, err := ExtractJSON(response)
	if err != nil {
		t.Fatalf("ExtractJSON failed: %v", err)
	}
	if got != response {
		t.Errorf("unexpected extraction: %q", got)
	}
}

func TestExtractJSONNoJSON(t *testing.T) {
	_, err := ExtractJSON("抱歉，我无法处理这个请求。")
	if !errors.Is(err, ErrNoJSONFound) {
		t.Errorf("expected ErrNoJSONFound, got %v", err)
	}

	_, err = ExtractJSON("")
	if !errors.Is(err, ErrNoJSONFound) {
		t.Errorf("expected ErrNoJSONFound for empty input, got %v", err)
	}
}

func TestExtractJSONTo(t *testing.T) {
	var result struct {
		Score    float64 `json:"score"`
		Feedback string  `json:"feedback"`
	}

	response := "```json\n{\"score\": 78, \"feedback\": \"需要改进\"}\n```"
	if err := ExtractJSONTo(response, &result); err != nil {
		t.Fatalf("ExtractJSONTo failed: %v", err)
	}
	if result.Score != 78 || result.Feedback != "需要改进" {
		t.Errorf("unexpected decode: %+v", result)
	}
}
