package util

import "strings"

// NormalizePhone normalizes a phone number to "+<country><number>"
// (E.164-ish): strips non-digits, drops a leading "00", prepends "+".
// Returns the empty string for input with no digits.
func NormalizePhone(p string) string {
	var b strings.Builder
	for _, r := range p {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if strings.HasPrefix(s, "00") {
		s = s[2:]
	}
	if s == "" {
		return ""
	}
	return "+" + s
}

// IsDigits reports whether s is non-empty and contains only ASCII digits.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
