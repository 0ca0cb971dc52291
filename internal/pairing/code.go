package pairing

import (
	"errors"
	"strings"
)

// ErrEmptyCode is returned when an entered code has no digits.
var ErrEmptyCode = errors.New("pairing code is empty")

// FormatCode renders a six-digit code as NNN-NNN. Other lengths split after
// the third character; an empty code renders as a placeholder.
func FormatCode(code string) string {
	switch {
	case code == "":
		return "•••-•••"
	case len(code) <= 3:
		return code
	default:
		return code[:3] + "-" + code[3:]
	}
}

// SanitizeCode keeps only the ASCII digits of an entered code, so "123-456"
// and " 123 456 " both become "123456".
func SanitizeCode(entered string) string {
	var b strings.Builder
	b.Grow(len(entered))
	for _, r := range entered {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
