package utils

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Truncate shortens s to maxLen display cells and appends an ellipsis.
// Multi-byte runes and ANSI sequences are never split.
func Truncate(s string, maxLen int) string {
	if ansi.StringWidth(s) <= maxLen {
		return s
	}
	return ansi.Truncate(s, maxLen, "") + "..."
}

// Preview collapses whitespace in s, including newlines, and truncates it for
// single-line display.
func Preview(s string, maxLen int) string {
	return Truncate(strings.Join(strings.Fields(s), " "), maxLen)
}
