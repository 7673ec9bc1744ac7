// Package i18n loads the embedded UI message catalogs.
package i18n

import (
	"embed"
	"encoding/json"
	"strings"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	appLog "timeprogress/internal/log"
	"timeprogress/internal/period"
)

//go:embed locales/*.json
var localeFS embed.FS

var (
	bundleOnce sync.Once
	bundle     *i18n.Bundle
	languages  []language.Tag
)

func loadBundle() {
	bundle = i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		appLog.Error("reading embedded locales", err)
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "active.") || !strings.HasSuffix(name, ".json") {
			continue
		}
		if _, err := bundle.LoadMessageFileFS(localeFS, "locales/"+name); err != nil {
			appLog.Error("loading locale", err, "file", name)
		}
	}
	languages = bundle.LanguageTags()
}

// Languages lists the tags with a loaded catalog.
func Languages() []language.Tag {
	bundleOnce.Do(loadBundle)
	return languages
}

// Translator renders message IDs in one language.
type Translator struct {
	tag       language.Tag
	localizer *i18n.Localizer
}

// New picks the best catalog for lang (a BCP 47 tag or Accept-Language
// value), falling back to English.
func New(lang string) *Translator {
	bundleOnce.Do(loadBundle)
	matcher := language.NewMatcher(append([]language.Tag{language.English}, languages...))
	tags, _, _ := language.ParseAcceptLanguage(lang)
	tag, _, _ := matcher.Match(tags...)
	base, _ := tag.Base()
	tag = language.Make(base.String())
	return &Translator{tag: tag, localizer: i18n.NewLocalizer(bundle, tag.String())}
}

func (t *Translator) Language() language.Tag { return t.tag }

// T translates id, returning id itself when no message exists.
func (t *Translator) T(id string) string {
	msg, err := t.localizer.Localize(&i18n.LocalizeConfig{MessageID: id})
	if err != nil {
		appLog.Debug("missing translation", "id", id, "lang", t.tag.String())
		return id
	}
	return msg
}

// Period returns the label for a period kind, e.g. "Week".
func (t *Translator) Period(k period.Kind) string {
	return t.T("period." + k.String())
}
