// Package i18n serves the UI strings for each supported language.
//
// Each locale is a flat key → string JSON file under locales/, embedded in the
// binary. A key missing from a locale falls back to en-US, then to the key itself,
// so a half-translated locale still renders.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"slices"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Locale names.
const (
	PortugueseBR = "pt-BR"
	EnglishUS    = "en-US"

	// Fallback is consulted when the selected locale lacks a key.
	Fallback = EnglishUS
)

//go:embed locales/*.json
var files embed.FS

// Bundle holds every locale's strings. It is read-only after Load and safe for
// concurrent use.
type Bundle struct {
	messages map[string]map[string]string
	locales  []string
	tags     []language.Tag
	matcher  language.Matcher
}

// Load reads the embedded locales. defaultLocale is chosen when nothing the
// visitor asks for matches; it must be one of the embedded locales.
func Load(defaultLocale string) (*Bundle, error) {
	entries, err := files.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("reading locales: %w", err)
	}

	b := &Bundle{messages: make(map[string]map[string]string)}
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".json")
		data, err := files.ReadFile(path.Join("locales", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading locale %s: %w", name, err)
		}
		msgs := make(map[string]string)
		if err := json.Unmarshal(data, &msgs); err != nil {
			return nil, fmt.Errorf("parsing locale %s: %w", name, err)
		}
		b.messages[name] = msgs
	}

	if _, ok := b.messages[defaultLocale]; !ok {
		return nil, fmt.Errorf("unknown default locale %q", defaultLocale)
	}

	// the matcher treats its first tag as the default
	b.locales = append(b.locales, defaultLocale)
	for name := range b.messages {
		if name != defaultLocale {
			b.locales = append(b.locales, name)
		}
	}
	slices.Sort(b.locales[1:])

	for _, name := range b.locales {
		tag, err := language.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("locale file %s: %w", name, err)
		}
		b.tags = append(b.tags, tag)
	}
	b.matcher = language.NewMatcher(b.tags)
	return b, nil
}

// Locales lists the embedded locales, default first.
func (b *Bundle) Locales() []string {
	return slices.Clone(b.locales)
}

// Default is the locale used when nothing matches.
func (b *Bundle) Default() string {
	return b.locales[0]
}

// Has reports whether locale is embedded.
func (b *Bundle) Has(locale string) bool {
	_, ok := b.messages[locale]
	return ok
}

// Match picks a locale from a cookie value (preferred) or an Accept-Language header.
func (b *Bundle) Match(cookie, acceptLanguage string) string {
	if cookie != "" {
		if tag, err := language.Parse(cookie); err == nil {
			if _, idx, conf := b.matcher.Match(tag); conf != language.No {
				return b.locales[idx]
			}
		}
	}
	if acceptLanguage != "" {
		if tags, _, err := language.ParseAcceptLanguage(acceptLanguage); err == nil && len(tags) > 0 {
			if _, idx, conf := b.matcher.Match(tags...); conf != language.No {
				return b.locales[idx]
			}
		}
	}
	return b.Default()
}

// T returns the string for key in locale, formatted with args when given.
func (b *Bundle) T(locale, key string, args ...any) string {
	s, ok := b.messages[locale][key]
	if !ok {
		s, ok = b.messages[Fallback][key]
	}
	if !ok {
		return key
	}
	if len(args) > 0 {
		return b.printer(locale).Sprintf(s, args...)
	}
	return s
}

// Percent formats v (0..100) with the locale's decimal separator.
func (b *Bundle) Percent(locale string, v float64) string {
	return b.printer(locale).Sprintf("%.1f%%", v)
}

func (b *Bundle) printer(locale string) *message.Printer {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.MustParse(Fallback)
	}
	return message.NewPrinter(tag)
}
