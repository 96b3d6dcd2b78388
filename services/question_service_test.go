package services

import "testing"

func TestAnswersMatch(t *testing.T) {
	cases := []struct {
		name      string
		submitted string
		correct   string
		want      bool
	}{
		{"exact", "A", "A", true},
		{"case insensitive", "a", "A", true},
		{"surrounding whitespace", "  A ", "A", true},
		{"trailing newline", "A\n", "A", true},
		{"true/false casing", "TRUE", "true", true},
		{"short answer trimmed", " 二分查找 ", "二分查找", true},
		{"wrong option", "B", "A", false},
		{"partial answer", "binar", "binary search", false},
		{"empty submission", "", "A", false},
		{"both empty", "", "", true},
		{"inner whitespace differs", "binary  search", "binary search", false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := answersMatch(c.submitted, c.correct); got != c.want {
				t.Errorf("answersMatch(%q, %q) = %v, want %v", c.submitted, c.correct, got, c.want)
			}
		})
	}
}
