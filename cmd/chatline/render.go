package main

import (
	"strings"
	"unicode"
)

// clean makes text from the backend safe to print on a terminal. Control
// characters (escape sequences included) are dropped, newlines become
// spaces, and emoji modifiers that break column alignment are removed.
func clean(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\t':
			b.WriteByte(' ')
		case unicode.IsControl(r), isModifier(r):
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isModifier(r rune) bool {
	switch {
	case r >= 0x1F3FB && r <= 0x1F3FF: // skin tones
		return true
	case r == 0x200D: // zero width joiner
		return true
	case r >= 0xFE00 && r <= 0xFE0F, r >= 0xE0100 && r <= 0xE01EF:
		return true
	default:
		return false
	}
}
