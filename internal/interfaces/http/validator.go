package http

import (
	"strings"
	"unicode/utf8"
)

// Input validation constants
const (
	MaxBodyLength   = 4096
	MaxSenderLength = 32
)

// SanitizeString removes null bytes and invalid UTF-8 from inbound text
func SanitizeString(s string) string {
	// Remove null bytes
	s = strings.ReplaceAll(s, "\x00", "")

	// Keep only valid UTF-8
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for _, r := range s {
			if r != utf8.RuneError {
				v = append(v, r)
			}
		}
		s = string(v)
	}
	return TruncateString(s, MaxBodyLength)
}

// TruncateString safely truncates a string to max length
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// ValidSender checks the sender id is a plausible phone address
func ValidSender(s string) bool {
	if s == "" || len(s) > MaxSenderLength {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '+' {
			return false
		}
	}
	return true
}
