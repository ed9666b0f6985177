package storage

import "strings"

// NormalizePhone strips a phone number to ASCII digits, preserving a leading
// '+'.
//
//	"+1 (555) 012-3456" → "+15550123456"
//	"555.012.3456"      → "5550123456"
func NormalizePhone(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i, ch := range raw {
		if ch >= '0' && ch <= '9' {
			b.WriteRune(ch)
		} else if ch == '+' && i == 0 {
			b.WriteRune(ch)
		}
	}
	return b.String()
}
