package util

import (
	"strings"
	"unicode"
)

// CleanText strips control and invisible format characters from user text.
// Newlines and tabs survive, as do the zero-width joiners emoji sequences need.
func CleanText(s string) string {
	builder := strings.Builder{}
	builder.Grow(len(s))

	for _, char := range s {
		switch {
		case char == '\n' || char == '\t':
			builder.WriteRune(char)
		case unicode.IsControl(char) || isInvisibleUnicode(char):
			continue
		default:
			builder.WriteRune(char)
		}
	}

	return strings.TrimSpace(builder.String())
}

func isInvisibleUnicode(r rune) bool {
	switch r {
	case '\u200c', '\u200d': // ZWNJ, ZWJ
		return false
	case
		'\u200b', // Zero-Width Space
		'\u2060', // Word Joiner
		'\ufeff', // BOM
		'\ufff9', '\ufffa', '\ufffb':
		return true
	}

	// Bidi overrides and other format characters.
	return unicode.Is(unicode.Cf, r)
}
