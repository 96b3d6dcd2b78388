package utils

import "testing"

func TestCleanText(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain passthrough", "你好，世界", "你好，世界"},
		{"control characters dropped", "abc\x00def\x01ghi", "abcdefghi"},
		{"tabs and newlines kept", "a\tb\nc", "a\tb\nc"},
		{"del dropped", "ab\x7fcd", "abcd"},
		{"blank run collapsed", "para1\n\n\n\n\n\npara2", "para1\n\n\npara2"},
		{"space before punctuation removed", "Hello , world !", "Hello, world!"},
		{"surrounding whitespace trimmed", "  answer  \n", "answer"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := CleanText(c.input); got != c.want {
				t.Errorf("CleanText(%q) = %q, want %q", c.input, got, c.want)
			}
		})
	}
}
