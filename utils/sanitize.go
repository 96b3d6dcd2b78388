package utils

import (
	"regexp"
	"strings"
)

var (
	blankRunRe = regexp.MustCompile(`\n{4,}`)

	// Space before ASCII closing punctuation left behind by some models.
	spacedPunctRe = regexp.MustCompile(`[ \t]+([,.!?;:)\]])`)
)

// CleanText normalizes assistant output before it is stored or returned:
// control characters other than \t \n \r are dropped, runs of three or more
// blank lines collapse to two, and spaces before closing punctuation are
// removed. HTML escaping is left to the UI layer.
func CleanText(s string) string {
	if s == "" {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			continue
		}
		if r == 127 {
			continue
		}
		b.WriteRune(r)
	}

	out := blankRunRe.ReplaceAllString(b.String(), "\n\n\n")
	out = spacedPunctRe.ReplaceAllString(out, "$1")
	return strings.TrimSpace(out)
}
