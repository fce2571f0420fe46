package utils

import "unicode/utf8"

// Truncate shortens s to at most maxLen bytes for log previews, appending
// "..." when anything was cut. It never splits a UTF-8 sequence.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}

	cut := max(maxLen, 0)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
