// Package language validates page locales.
package language

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// ErrInvalidLocale is wrapped by every ParseLocale failure.
var ErrInvalidLocale = errors.New("language: invalid locale")

// Locale is a validated page locale.
type Locale struct {
	// Tag is the canonical BCP 47 form: "pt-BR", "zh-Hant-TW" or just "de".
	Tag    string
	Base   string
	Script string // empty unless the input named one
	Region string // empty unless the input named one
	// EnglishName is the language name in English, e.g. "Polish".
	EnglishName string
	// NativeName is the language name in itself, e.g. "polski".
	NativeName string
}

// ParseLocale accepts a BCP 47 tag, with '-' or '_' separators, in any
// case. The language subtag must be a known one.
func ParseLocale(tag string) (Locale, error) {
	trimmed := strings.TrimSpace(tag)
	if trimmed == "" {
		return Locale{}, fmt.Errorf("%w: empty tag", ErrInvalidLocale)
	}
	parsed, err := language.Parse(trimmed)
	if err != nil {
		return Locale{}, fmt.Errorf("%w: %q: %v", ErrInvalidLocale, tag, err)
	}

	base, conf := parsed.Base()
	if conf != language.Exact || base.String() == "und" {
		return Locale{}, fmt.Errorf("%w: %q names no language", ErrInvalidLocale, tag)
	}

	loc := Locale{
		Tag:         parsed.String(),
		Base:        base.String(),
		EnglishName: display.English.Languages().Name(base),
		NativeName:  display.Self.Name(language.Make(base.String())),
	}
	if script, conf := parsed.Script(); conf == language.Exact {
		loc.Script = script.String()
	}
	if region, conf := parsed.Region(); conf == language.Exact {
		loc.Region = region.String()
	}
	return loc, nil
}
