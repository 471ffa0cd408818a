// Package utils provides shared utilities for text, math, and logging.
package utils

// Truncate returns the first maxLen characters of s, with "..." appended if truncated.
// Characters are runes, so multi-byte text is never cut mid-sequence.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

// Prefix returns at most the first n runes of s.
func Prefix(s string, n int) string {
	if n < 0 {
		n = 0
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
