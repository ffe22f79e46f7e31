package design

import (
	"net/url"
	"strings"
)

// Mode is the rendering mode a client page runs in. It is always passed
// in explicitly; nothing reads it from global state.
type Mode string

const (
	ModeNone    Mode = "NONE"
	ModeEdit    Mode = "EDIT"
	ModePreview Mode = "PREVIEW"
)

// ModeQueryParam is the query parameter the page builder appends to the
// framed page URL.
const ModeQueryParam = "mode"

// ParseMode extracts the design mode from a page URL. Unknown or
// missing values yield ModeNone.
func ParseMode(rawURL string) Mode {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ModeNone
	}
	switch Mode(strings.ToUpper(u.Query().Get(ModeQueryParam))) {
	case ModeEdit:
		return ModeEdit
	case ModePreview:
		return ModePreview
	default:
		return ModeNone
	}
}

// IsDesignMode reports whether the page runs inside the page builder.
func (m Mode) IsDesignMode() bool {
	return m == ModeEdit || m == ModePreview
}
