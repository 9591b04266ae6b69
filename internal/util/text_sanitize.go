package util

import (
	"strings"
	"unicode/utf8"
)

// SanitizeText cleans text coming out of PDF and HTML extractors: invalid UTF-8, NUL and other
// non-printing control characters are dropped and CRLF becomes LF. Newlines and tabs are kept.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")

	r := make([]rune, 0, len(s))
	for _, ch := range s {
		switch {
		case ch == '\n' || ch == '\t':
			r = append(r, ch)
		case ch == utf8.RuneError, ch < 0x20, ch == 0x7f:
		default:
			r = append(r, ch)
		}
	}
	return strings.TrimSpace(string(r))
}
