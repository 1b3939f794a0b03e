// Package mask redacts account and phone numbers from message text before it is stored.
package mask

import "regexp"

// Token replaces the hidden digits.
const Token = "XXXX"

// digitRun matches whole runs of ten or more digits, whatever precedes or
// follows them. Account numbers are often glued to letters ("A/cXX1234...").
var digitRun = regexp.MustCompile(`\d{10,}`)

// Sensitive masks Indian mobile numbers to first two + Token + last four digits
// and any other 10-18 digit run to Token + last four digits. Longer runs are
// left alone.
func Sensitive(text string) string {
	return digitRun.ReplaceAllStringFunc(text, func(m string) string {
		switch {
		case isMobile(m):
			return m[:2] + Token + m[len(m)-4:]
		case len(m) <= 18:
			return Token + m[len(m)-4:]
		default:
			return m
		}
	})
}

func isMobile(digits string) bool {
	return len(digits) == 10 && digits[0] >= '6' && digits[0] <= '9'
}
