// Package i18n provides internationalization support for error messages.
package i18n

import (
	"bytes"
	"strings"
	"sync"
	"text/template"

	"golang.org/x/text/language"
)

// Code is a machine-readable error code (duplicated from errors package to avoid cycle).
type Code = string

// BaseLocale is the locale every other catalog falls back to.
var BaseLocale = language.AmericanEnglish

// Catalog maps error codes to message templates for a specific locale.
type Catalog struct {
	locale   language.Tag
	messages map[Code]string
}

var (
	catalogsMu sync.RWMutex
	catalogs   = map[language.Tag]*Catalog{}
)

// GetCatalog returns the catalog that best matches locale. Locales may be
// BCP 47 tags or POSIX values such as "de_DE.UTF-8". Unknown or empty
// locales resolve to BaseLocale.
func GetCatalog(locale string) *Catalog {
	catalogsMu.RLock()
	defer catalogsMu.RUnlock()

	tags := make([]language.Tag, 0, len(catalogs))
	tags = append(tags, BaseLocale)
	for tag := range catalogs {
		if tag != BaseLocale {
			tags = append(tags, tag)
		}
	}
	_, index, _ := language.NewMatcher(tags).Match(ParseLocale(locale))
	return catalogs[tags[index]]
}

// ParseLocale converts a BCP 47 tag or POSIX locale string into a language
// tag, returning BaseLocale when it cannot be parsed.
func ParseLocale(locale string) language.Tag {
	value := strings.TrimSpace(locale)
	if i := strings.IndexAny(value, ".@"); i >= 0 {
		value = value[:i]
	}
	value = strings.ReplaceAll(value, "_", "-")
	if value == "" || value == "C" || value == "POSIX" {
		return BaseLocale
	}
	tag, err := language.Parse(value)
	if err != nil {
		return BaseLocale
	}
	return tag
}

// Locale returns the locale of this catalog.
func (c *Catalog) Locale() language.Tag {
	return c.locale
}

// Format renders the message template with the given metadata.
// Falls back to the error code itself if no template is found.
// Templates are always executed even with nil/empty metadata
// (template variables without metadata render as empty).
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	tmpl, ok := c.messages[code]
	if !ok {
		return code
	}

	if metadata == nil {
		metadata = map[string]string{}
	}

	t, err := template.New("msg").Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return tmpl
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, metadata); err != nil {
		return tmpl
	}
	return buf.String()
}

// RegisterCatalog registers a catalog under its locale, replacing any
// existing one.
func RegisterCatalog(cat *Catalog) {
	catalogsMu.Lock()
	defer catalogsMu.Unlock()
	catalogs[cat.locale] = cat
}

// NewCatalog creates a new catalog with the given locale and messages.
func NewCatalog(locale language.Tag, messages map[Code]string) *Catalog {
	cloned := make(map[Code]string, len(messages))
	for key, value := range messages {
		cloned[key] = value
	}
	return &Catalog{
		locale:   locale,
		messages: cloned,
	}
}
