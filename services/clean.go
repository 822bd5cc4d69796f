package services

import (
	"regexp"
	"strings"
)

var (
	rePageNumber   = regexp.MustCompile(`(?im)^.*(страница|стр\.|page)[^\d]*\d+\s*$`)
	reNoiseLine    = regexp.MustCompile(`(?m)^[^\pL\n]+$`) // lines with no letters at all
	reMultiNewLine = regexp.MustCompile(`\n{2,}`)
	reMultiSpace   = regexp.MustCompile(`[ \t]{2,}`)
)

// PreCleanText strips extraction noise before analysis: page-number
// lines, lines with no letters at all, runs of blank lines and
// repeated spaces. Contract wording itself is left untouched.
func PreCleanText(text string) string {
	cleaned := rePageNumber.ReplaceAllString(text, "")
	cleaned = reNoiseLine.ReplaceAllString(cleaned, "")
	cleaned = reMultiNewLine.ReplaceAllString(cleaned, "\n")
	cleaned = reMultiSpace.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}
