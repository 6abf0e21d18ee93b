package model

import (
	"regexp"
	"strings"
)

// whitespaceRun matches ASCII whitespace and Unicode separators such as
// non-breaking and ideographic spaces.
var whitespaceRun = regexp.MustCompile(`[\s\p{Z}]+`)

// NormalizeSummary collapses whitespace runs and removes the space before
// commas and periods. Other characters are kept as written.
func NormalizeSummary(text string) string {
	if text == "" {
		return ""
	}
	text = whitespaceRun.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, " ,", ",")
	text = strings.ReplaceAll(text, " .", ".")
	return strings.TrimSpace(text)
}
