package ui

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/tartampluch/go-fiscalcode/internal/config"
	"github.com/zalando/go-keyring"
)

// settingsWidgets are the inputs read back by saveSettings.
type settingsWidgets struct {
	langSelect      *widget.Select
	normalizeSelect *widget.Select
	citiesEntry     *widget.Entry
	provincesEntry  *widget.Entry
	entryPort       *NumericalEntry
	modeSelect      *widget.Select
	urlEntry        *widget.Entry
	userEntry       *widget.Entry
	passEntry       *widget.Entry
	pathEntry       *widget.Entry
}

// choices binds the localized labels of a Select to the values stored in
// preferences.
type choices []struct{ label, value string }

func (c choices) labels() []string {
	out := make([]string, len(c))
	for i, o := range c {
		out[i] = o.label
	}
	return out
}

// labelFor returns the label of value, or the first label when value is unknown.
func (c choices) labelFor(value string) string {
	for _, o := range c {
		if o.value == value {
			return o.label
		}
	}
	return c[0].label
}

// valueOf returns the stored value behind label, or the first value.
func (c choices) valueOf(label string) string {
	for _, o := range c {
		if o.label == label {
			return o.value
		}
	}
	return c[0].value
}

func (app *GoFiscalCodeApp) normalizeChoices() choices {
	return choices{
		{app.GetMsg(config.TKeyOptTranslit), config.NormalizeTransliterate},
		{app.GetMsg(config.TKeyOptStrict), config.NormalizeStrict},
	}
}

func (app *GoFiscalCodeApp) sourceChoices() choices {
	return choices{
		{app.GetMsg(config.TKeyModeCardDAV), config.SourceModeWeb},
		{app.GetMsg(config.TKeyModeLocal), config.SourceModeLocal},
	}
}

// validatePort accepts a decimal TCP port in [MinPort, MaxPort].
func (app *GoFiscalCodeApp) validatePort(s string) error {
	if s == "" {
		return errors.New(app.GetMsg(config.TKeyErrPortReq))
	}
	port, err := strconv.Atoi(s)
	if err != nil {
		return errors.New(app.GetMsg(config.TKeyErrPortNum))
	}
	if port < config.MinPort || port > config.MaxPort {
		return errors.New(app.GetMsg(config.TKeyErrPortRange))
	}
	return nil
}

// validateHTTPURL rejects anything that is not an absolute http(s) URL.
func validateHTTPURL(s string) error {
	u, err := url.ParseRequestURI(s)
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrInvalidURL, err)
	}
	if u.Scheme != config.SchemeHTTP && u.Scheme != config.SchemeHTTPS {
		return errors.New(config.ErrProtocol)
	}
	return nil
}

// ShowSettingsWindow displays the configuration dialog.
func (app *GoFiscalCodeApp) ShowSettingsWindow() {
	if app.settingsWindow != nil {
		slog.Debug("Settings window already open, requesting focus", config.LogKeyComponent, config.CompUISet)
		app.settingsWindow.RequestFocus()
		return
	}

	slog.Info("Opening settings window", config.LogKeyComponent, config.CompUISet)
	w := app.App.NewWindow(app.GetMsg(config.TKeyWinSettings))
	app.settingsWindow = w

	sw := app.newSettingsWidgets()

	var refreshLayout func()
	onLayoutChange := func() {
		if refreshLayout != nil {
			refreshLayout()
		}
	}

	referenceCard := app.buildReferenceCard(sw)
	sourceCard := app.buildSourceCard(w, sw, onLayoutChange)

	itemLang := widget.NewFormItem(app.GetMsg(config.TKeyLblLanguage), sw.langSelect)
	itemLang.HintText = app.GetMsg(config.TKeyHelpLanguage)
	itemPort := widget.NewFormItem(app.GetMsg(config.TKeyLblPort), sw.entryPort)
	itemPort.HintText = app.GetMsg(config.TKeyHelpPort)
	generalCard := widget.NewCard(app.GetMsg(config.TKeyLblGeneral), "", widget.NewForm(itemLang, itemPort))

	saveAction := func() {
		for _, v := range []fyne.Validatable{sw.entryPort, sw.citiesEntry, sw.provincesEntry} {
			if err := v.Validate(); err != nil {
				dialog.ShowError(err, w)
				return
			}
		}
		app.saveSettings(sw)
		w.Close()
	}

	btnSave := widget.NewButtonWithIcon(app.GetMsg(config.TKeyBtnSave), theme.DocumentSaveIcon(), saveAction)
	btnSave.Importance = widget.HighImportance
	btnCancel := widget.NewButtonWithIcon(app.GetMsg(config.TKeyBtnCancel), theme.CancelIcon(), func() { w.Close() })

	footerLabel := widget.NewLabel(fmt.Sprintf(app.GetMsg(config.TKeyLblFooter), config.Version))
	footerLabel.Alignment = fyne.TextAlignCenter
	footerLabel.TextStyle = fyne.TextStyle{Italic: true}

	paddedContent := container.NewPadded(container.NewVBox(
		referenceCard,
		sourceCard,
		generalCard,
		container.NewGridWithColumns(config.LayoutColumnsDouble, btnCancel, btnSave),
		footerLabel,
	))

	refreshLayout = func() {
		paddedContent.Refresh()
		w.Resize(fyne.NewSize(config.SettingsWindowWidth, paddedContent.MinSize().Height))
	}

	w.SetContent(paddedContent)
	w.SetFixedSize(true)
	w.SetOnClosed(func() { app.settingsWindow = nil })

	refreshLayout()
	w.Show()
}

// newSettingsWidgets creates the inputs pre-filled from preferences.
func (app *GoFiscalCodeApp) newSettingsWidgets() *settingsWidgets {
	sw := &settingsWidgets{}

	sw.langSelect = widget.NewSelect(app.SupportedLanguages, nil)
	sw.langSelect.SetSelected(app.Preferences.StringWithFallback(config.PrefLanguage, config.DefaultLanguage))

	norm := app.normalizeChoices()
	sw.normalizeSelect = widget.NewSelect(norm.labels(), nil)
	sw.normalizeSelect.SetSelected(norm.labelFor(app.Preferences.StringWithFallback(config.PrefNormalize, config.DefaultNormalize)))

	sw.citiesEntry = widget.NewEntry()
	sw.citiesEntry.SetText(app.Preferences.StringWithFallback(config.PrefCitiesURL, config.DefaultCitiesURL))
	sw.citiesEntry.Validator = validateHTTPURL

	sw.provincesEntry = widget.NewEntry()
	sw.provincesEntry.SetText(app.Preferences.StringWithFallback(config.PrefProvincesURL, config.DefaultProvincesURL))
	sw.provincesEntry.Validator = validateHTTPURL

	sw.entryPort = NewPortEntry(config.PortMaxDigits)
	sw.entryPort.SetText(app.Preferences.StringWithFallback(config.PrefServerPort, config.DefaultPort))
	sw.entryPort.Validator = app.validatePort

	modes := app.sourceChoices()
	sw.modeSelect = widget.NewSelect(modes.labels(), nil)
	sw.modeSelect.SetSelected(modes.labelFor(app.Preferences.String(config.PrefSourceMode)))

	sw.urlEntry = widget.NewEntry()
	sw.urlEntry.SetText(app.Preferences.String(config.PrefCardDAVURL))
	sw.urlEntry.PlaceHolder = config.PlaceholderURL

	sw.userEntry = widget.NewEntry()
	sw.userEntry.SetText(app.Preferences.String(config.PrefUsername))

	sw.passEntry = widget.NewPasswordEntry()
	if user := sw.userEntry.Text; user != "" {
		if pwd, err := keyring.Get(config.KeyringService, user); err == nil {
			sw.passEntry.SetText(pwd)
		}
	}

	sw.pathEntry = widget.NewEntry()
	sw.pathEntry.SetText(app.Preferences.String(config.PrefLocalPath))
	return sw
}

// buildReferenceCard groups the municipality data sources and the name policy.
func (app *GoFiscalCodeApp) buildReferenceCard(sw *settingsWidgets) *widget.Card {
	form := widget.NewForm(
		widget.NewFormItem(app.GetMsg(config.TKeyLblCitiesURL), sw.citiesEntry),
		widget.NewFormItem(app.GetMsg(config.TKeyLblProvURL), sw.provincesEntry),
		widget.NewFormItem(app.GetMsg(config.TKeyLblNormalize), sw.normalizeSelect),
	)
	return widget.NewCard(app.GetMsg(config.TKeyLblReference), "", form)
}

// buildSourceCard constructs the vCard source selection for batch runs.
func (app *GoFiscalCodeApp) buildSourceCard(w fyne.Window, sw *settingsWidgets, onLayoutChange func()) *widget.Card {
	browseBtn := widget.NewButton(app.GetMsg(config.TKeyBtnBrowse), func() {
		d := dialog.NewFileOpen(func(r fyne.URIReadCloser, err error) {
			if err == nil && r != nil {
				sw.pathEntry.SetText(r.URI().Path())
			}
		}, w)
		d.SetFilter(storage.NewExtensionFileFilter([]string{config.ExtVCF, config.ExtVCard}))
		d.Show()
	})

	itemURL := widget.NewFormItem(app.GetMsg(config.TKeyLblURL), sw.urlEntry)
	itemURL.HintText = app.GetMsg(config.TKeyHelpURL)
	webForm := widget.NewForm(
		itemURL,
		widget.NewFormItem(app.GetMsg(config.TKeyLblUser), sw.userEntry),
		widget.NewFormItem(app.GetMsg(config.TKeyLblPass), sw.passEntry),
	)
	localForm := container.NewBorder(nil, nil, nil, browseBtn, sw.pathEntry)

	modes := app.sourceChoices()
	showFor := func(label string) {
		local := modes.valueOf(label) == config.SourceModeLocal
		setVisible(webForm, !local)
		setVisible(localForm, local)
	}
	showFor(sw.modeSelect.Selected)

	sw.modeSelect.OnChanged = func(label string) {
		showFor(label)
		if onLayoutChange != nil {
			onLayoutChange()
		}
	}

	return widget.NewCard(app.GetMsg(config.TKeyLblSource), "", container.NewVBox(sw.modeSelect, webForm, localForm))
}

func setVisible(o fyne.CanvasObject, visible bool) {
	if visible {
		o.Show()
	} else {
		o.Hide()
	}
}

// saveSettings persists the form, swaps the composer and reloads the
// reference data when its sources changed.
func (app *GoFiscalCodeApp) saveSettings(sw *settingsWidgets) {
	slog.Info("Saving preferences", config.LogKeyComponent, config.CompUISet)

	oldCities := app.Preferences.StringWithFallback(config.PrefCitiesURL, config.DefaultCitiesURL)
	oldProvinces := app.Preferences.StringWithFallback(config.PrefProvincesURL, config.DefaultProvincesURL)

	app.Preferences.SetString(config.PrefLanguage, sw.langSelect.Selected)
	app.Preferences.SetString(config.PrefNormalize, app.normalizeChoices().valueOf(sw.normalizeSelect.Selected))
	app.Preferences.SetString(config.PrefCitiesURL, sw.citiesEntry.Text)
	app.Preferences.SetString(config.PrefProvincesURL, sw.provincesEntry.Text)
	app.Preferences.SetString(config.PrefServerPort, sw.entryPort.Text)
	app.Preferences.SetString(config.PrefSourceMode, app.sourceChoices().valueOf(sw.modeSelect.Selected))
	app.Preferences.SetString(config.PrefCardDAVURL, sw.urlEntry.Text)
	app.Preferences.SetString(config.PrefUsername, sw.userEntry.Text)
	app.Preferences.SetString(config.PrefLocalPath, sw.pathEntry.Text)

	// An empty password leaves the stored secret untouched.
	if sw.userEntry.Text != "" && sw.passEntry.Text != "" {
		if err := keyring.Set(config.KeyringService, sw.userEntry.Text, sw.passEntry.Text); err != nil {
			slog.Error("Keyring write failed",
				config.LogKeyComponent, config.CompUISet,
				config.LogKeyError, err,
			)
		}
	}

	app.UpdateLocalizer()
	app.Server.SetComposer(app.composer())
	if app.Window != nil {
		app.Window.SetTitle(app.GetMsg(config.TKeyWinTitle))
		app.Window.SetContent(app.buildMainContent())
	}

	if sw.citiesEntry.Text != oldCities || sw.provincesEntry.Text != oldProvinces {
		go app.loadReference()
	}
}
