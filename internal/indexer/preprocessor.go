package indexer

import (
	"regexp"
	"strings"
)

var (
	horizontalSpace = regexp.MustCompile(`[ \t\v\x{00A0}]+`)
	extraBlankLines = regexp.MustCompile(`\n{3,}`)
)

// Preprocess normalizes extracted page text before chunking. Line endings become
// "\n", runs of spaces and tabs collapse to one space, and three or more newlines
// collapse to a single blank line. Paragraph breaks survive.
func Preprocess(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = horizontalSpace.ReplaceAllString(text, " ")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = extraBlankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
