package ui

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/tartampluch/go-fiscalcode/internal/config"
	"github.com/tartampluch/go-fiscalcode/internal/engine"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

const (
	localeDir    = "locales"
	localePrefix = "active."
	localeSuffix = ".json"
)

// SetupI18n initializes the translation bundle and detects available languages.
func (app *GoFiscalCodeApp) SetupI18n() {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir(localeDir)
	if err != nil {
		slog.Error(config.ErrLocalesAccess,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyError, err,
		)
		return
	}

	var detected []string
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, localePrefix) || !strings.HasSuffix(name, localeSuffix) {
			slog.Debug(config.MsgLocaleSkip,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
			)
			continue
		}

		langCode := strings.TrimSuffix(strings.TrimPrefix(name, localePrefix), localeSuffix)
		if langCode == "" {
			slog.Warn(config.MsgLocaleBadName,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
			)
			continue
		}

		if _, err := bundle.LoadMessageFileFS(localeFS, localeDir+"/"+name); err != nil {
			slog.Error(config.ErrLocaleLoad,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
				config.LogKeyError, err,
			)
			continue
		}
		detected = append(detected, langCode)
		slog.Debug(config.MsgLocaleLoaded,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyLang, langCode,
		)
	}

	app.SupportedLanguages = detected
	app.I18nBundle = bundle
	app.UpdateLocalizer()
}

// UpdateLocalizer refreshes the translator based on the user's language preference.
func (app *GoFiscalCodeApp) UpdateLocalizer() {
	lang := app.Preferences.StringWithFallback(config.PrefLanguage, config.DefaultLanguage)
	app.Localizer = i18n.NewLocalizer(app.I18nBundle, lang)
}

// GetMsg translates a key, returning the key itself when no message exists.
func (app *GoFiscalCodeApp) GetMsg(key string) string {
	return app.GetMsgData(key, nil)
}

// GetMsgData translates a templated key. A "Count" entry in data also
// drives plural selection.
func (app *GoFiscalCodeApp) GetMsgData(key string, data map[string]any) string {
	if app.Localizer == nil {
		return key
	}
	lc := &i18n.LocalizeConfig{MessageID: key, TemplateData: data}
	if n, ok := data["Count"]; ok {
		lc.PluralCount = n
	}
	msg, err := app.Localizer.Localize(lc)
	if err != nil {
		slog.Debug(config.MsgTransMissing,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyKey, key,
			config.LogKeyError, err,
		)
		return key
	}
	return msg
}

// fieldLabels maps validation field names to their form label keys.
var fieldLabels = map[string]string{
	config.FieldSurname:   config.TKeyLblSurname,
	config.FieldGivenName: config.TKeyLblGivenName,
	config.FieldSex:       config.TKeyLblSex,
	config.FieldBirthDate: config.TKeyLblBirthDate,
	config.FieldBirthCity: config.TKeyLblBirthCity,
}

// LocalizeError renders a validation or composition error for display.
// Validation failures become one "Label: message" line per field.
func (app *GoFiscalCodeApp) LocalizeError(err error) string {
	var verrs engine.ValidationErrors
	if errors.As(err, &verrs) {
		lines := make([]string, 0, len(verrs))
		for _, v := range verrs {
			lines = append(lines, fmt.Sprintf("%s: %s", app.GetMsg(fieldLabels[v.Field]), app.GetMsg(v.Key)))
		}
		return strings.Join(lines, "\n")
	}

	switch {
	case errors.Is(err, engine.ErrCityNotFound):
		return app.GetMsg(config.TKeyErrCityNotFound)
	case errors.Is(err, engine.ErrOutOfDomain), errors.Is(err, engine.ErrInvalidCityCode):
		return app.GetMsg(config.TKeyErrOutOfDomain)
	case errors.Is(err, errDateFormat):
		return app.GetMsg(config.TKeyErrDateFormat)
	case errors.Is(err, errTableNotLoaded):
		return app.GetMsg(config.TKeyLblLoading)
	}
	return app.GetMsg(config.TKeyErrCompose)
}
