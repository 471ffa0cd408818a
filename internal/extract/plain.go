package extract

import (
	"strings"
	"unicode/utf8"
)

// extractPlain splits text on form feeds, one page per segment.
// Invalid UTF-8 sequences are replaced with the replacement character.
func extractPlain(content []byte) []string {
	s := string(content)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\ufffd")
	}
	return strings.Split(s, "\f")
}
