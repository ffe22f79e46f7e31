// Package sanitize cleans free text that crosses the frame boundary,
// such as error messages, before it is logged or sent to a peer.
package sanitize

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxMessageBytes bounds the message of an Error event.
const MaxMessageBytes = 1024

// Message strips control characters from s and truncates it to
// MaxMessageBytes.
func Message(s string) string {
	return TruncateUTF8(StripControlChars(strings.TrimSpace(s)), MaxMessageBytes)
}

// TruncateUTF8 truncates s to at most maxBytes bytes without splitting UTF-8 runes.
func TruncateUTF8(s string, maxBytes int) string {
	if maxBytes <= 0 {
		return ""
	}
	if len(s) <= maxBytes {
		return s
	}
	truncated := s[:maxBytes]
	for len(truncated) > 0 && !utf8.ValidString(truncated) {
		truncated = truncated[:len(truncated)-1]
	}
	return truncated
}

// StripControlChars removes ANSI CSI sequences and control characters
// other than newline and tab.
func StripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] == '\x1b' {
			i = skipEscape(s, i)
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == '\n' || r == '\t' || (r != utf8.RuneError && !unicode.IsControl(r)) {
			b.WriteString(s[i : i+size])
		}
		i += size
	}
	return b.String()
}

// skipEscape returns the index after the escape sequence starting at i.
// CSI sequences are scanned for at most 64 bytes.
func skipEscape(s string, i int) int {
	if i+1 >= len(s) {
		return len(s)
	}
	if s[i+1] != '[' {
		return i + 2
	}
	j := i + 2
	limit := min(j+64, len(s))
	for j < limit && (s[j] < 0x40 || s[j] > 0x7E) {
		j++
	}
	if j < len(s) && s[j] >= 0x40 && s[j] <= 0x7E {
		j++
	}
	return j
}
