package sanitize

import (
	"strings"
	"testing"
)

func TestTruncateUTF8(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		input    string
		maxBytes int
		want     string
	}{
		{"ascii short", "hello", 10, "hello"},
		{"ascii exact", "hello", 5, "hello"},
		{"ascii truncate", "hello world", 5, "hello"},
		{"utf8 no split", "héllo", 6, "héllo"},
		{"utf8 mid-char", "héllo", 2, "h"},
		{"empty", "", 10, ""},
		{"zero max", "hello", 0, ""},
		{"negative max", "hello", -1, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateUTF8(tt.input, tt.maxBytes)
			if got != tt.want {
				t.Errorf("TruncateUTF8(%q, %d) = %q, want %q", tt.input, tt.maxBytes, got, tt.want)
			}
		})
	}
}

func TestStripControlChars(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "component not found", "component not found"},
		{"keeps newline and tab", "a\n\tb", "a\n\tb"},
		{"drops bell and nul", "a\x07b\x00c", "abc"},
		{"drops csi color", "\x1b[31mred\x1b[0m", "red"},
		{"drops two byte escape", "a\x1bcb", "ab"},
		{"trailing escape", "a\x1b", "a"},
		{"keeps unicode", "zażółć", "zażółć"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripControlChars(tt.input); got != tt.want {
				t.Errorf("StripControlChars(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestMessage(t *testing.T) {
	t.Parallel()
	if got := Message("  \x1b[1mboom\x1b[0m\r  "); got != "boom" {
		t.Errorf("Message = %q, want boom", got)
	}
	long := strings.Repeat("x", MaxMessageBytes+10)
	if got := Message(long); len(got) != MaxMessageBytes {
		t.Errorf("len(Message(long)) = %d, want %d", len(got), MaxMessageBytes)
	}
}
