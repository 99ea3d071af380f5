// Package recipient turns the raw recipient strings typed into the compose
// surface into canonical addresses.
package recipient

import "strings"

var separators = strings.NewReplacer(" ", "", "-", "", "/", "", "(", "", ")", "", ".", "")

// Normalize reduces "Name <+49 170-1234>" to "+491701234". Input without an
// angle-bracketed part is cleaned as a bare number.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if open := strings.LastIndex(s, "<"); open >= 0 {
		if end := strings.Index(s[open:], ">"); end > 0 {
			s = s[open+1 : open+end]
		}
	}
	return separators.Replace(strings.TrimSpace(s))
}

// Name returns the display-name part of "Name <number>", or "" when absent.
func Name(raw string) string {
	s := strings.TrimSpace(raw)
	open := strings.LastIndex(s, "<")
	if open <= 0 || !strings.Contains(s[open:], ">") {
		return ""
	}
	return strings.TrimSpace(s[:open])
}

// Blank reports whether raw is empty or whitespace only.
func Blank(raw string) bool {
	return strings.TrimSpace(raw) == ""
}
