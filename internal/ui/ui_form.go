package ui

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/tartampluch/go-fiscalcode/internal/config"
	"github.com/tartampluch/go-fiscalcode/internal/engine"
)

var (
	errDateFormat     = errors.New(config.ErrDateParse)
	errTableNotLoaded = errors.New(config.ErrTableNotLoaded)
)

// mainForm holds the widgets of the computation form.
type mainForm struct {
	surname   *widget.Entry
	givenName *widget.Entry
	sex       *widget.RadioGroup
	birthDate *widget.Entry
	birthCity *widget.SelectEntry
	result    *widget.Label
	status    *widget.Label
}

// ShowMainWindow creates the form window, or focuses it when already open.
func (app *GoFiscalCodeApp) ShowMainWindow() {
	if app.Window != nil {
		app.Window.RequestFocus()
		return
	}

	w := app.App.NewWindow(app.GetMsg(config.TKeyWinTitle))
	app.Window = w
	w.SetContent(app.buildMainContent())
	w.Resize(fyne.NewSize(config.MainWindowWidth, w.Content().MinSize().Height))
	w.SetMaster()
	w.Show()
}

// buildMainContent (re)creates the form, e.g. after a language change.
func (app *GoFiscalCodeApp) buildMainContent() fyne.CanvasObject {
	f := &mainForm{
		surname:   widget.NewEntry(),
		givenName: widget.NewEntry(),
		birthDate: widget.NewEntry(),
		birthCity: widget.NewSelectEntry(nil),
		result:    widget.NewLabel(""),
		status:    widget.NewLabel(""),
	}
	app.form = f

	f.sex = widget.NewRadioGroup([]string{
		app.GetMsg(config.TKeyOptMale),
		app.GetMsg(config.TKeyOptFemale),
	}, nil)
	f.sex.Horizontal = true

	f.birthDate.PlaceHolder = config.PlaceholderDate
	f.birthCity.OnChanged = func(s string) {
		f.birthCity.SetOptions(engine.FilterOptions(app.Table(), s, config.DefaultOptionsLimit))
	}

	f.result.TextStyle = fyne.TextStyle{Monospace: true, Bold: true}
	f.result.Wrapping = fyne.TextWrapWord
	f.result.Selectable = true
	f.status.TextStyle = fyne.TextStyle{Italic: true}

	itemDate := widget.NewFormItem(app.GetMsg(config.TKeyLblBirthDate), f.birthDate)
	itemDate.HintText = app.GetMsg(config.TKeyHintDate)

	form := widget.NewForm(
		widget.NewFormItem(app.GetMsg(config.TKeyLblSurname), f.surname),
		widget.NewFormItem(app.GetMsg(config.TKeyLblGivenName), f.givenName),
		widget.NewFormItem(app.GetMsg(config.TKeyLblSex), f.sex),
		itemDate,
		widget.NewFormItem(app.GetMsg(config.TKeyLblBirthCity), f.birthCity),
	)

	btnCompute := widget.NewButtonWithIcon(app.GetMsg(config.TKeyBtnCompute), theme.ConfirmIcon(), app.onCompute)
	btnCompute.Importance = widget.HighImportance
	btnBatch := widget.NewButtonWithIcon(app.GetMsg(config.TKeyBtnBatch), theme.ListIcon(), app.ShowBatchWindow)
	btnSettings := widget.NewButtonWithIcon(app.GetMsg(config.TKeyBtnSettings), theme.SettingsIcon(), app.ShowSettingsWindow)
	btnRefresh := widget.NewButtonWithIcon(app.GetMsg(config.TKeyBtnRefresh), theme.ViewRefreshIcon(), func() {
		go app.loadReference()
	})

	resultCard := widget.NewCard(app.GetMsg(config.TKeyLblResult), "", f.result)

	app.refreshStatus()

	return container.NewPadded(container.NewVBox(
		form,
		btnCompute,
		resultCard,
		container.NewGridWithColumns(config.LayoutColumnsTriple, btnBatch, btnSettings, btnRefresh),
		f.status,
	))
}

// refreshStatus must run on the UI goroutine.
func (app *GoFiscalCodeApp) refreshStatus() {
	if app.form == nil {
		return
	}
	app.form.status.SetText(app.statusText())
}

// input reads the form into a PersonInput. Only an unparsable date is
// reported here; everything else is left to ValidatePerson.
func (app *GoFiscalCodeApp) input() (engine.PersonInput, error) {
	f := app.form
	in := engine.PersonInput{
		Surname:   f.surname.Text,
		GivenName: f.givenName.Text,
		BirthCity: f.birthCity.Text,
	}

	switch f.sex.Selected {
	case app.GetMsg(config.TKeyOptMale):
		in.Sex = engine.SexMale
	case app.GetMsg(config.TKeyOptFemale):
		in.Sex = engine.SexFemale
	}

	if raw := strings.TrimSpace(f.birthDate.Text); raw != "" {
		d, err := time.Parse(config.DateFormatInput, raw)
		if err != nil {
			return in, fmt.Errorf("%w: %q", errDateFormat, raw)
		}
		in.BirthDate = d
	}
	return in, nil
}

func (app *GoFiscalCodeApp) onCompute() {
	in, err := app.input()
	if err == nil {
		var code string
		if code, err = app.Compute(in); err == nil {
			app.form.result.SetText(code)
			return
		}
	}

	slog.Debug(config.MsgComposeFailed,
		config.LogKeyError, err,
		config.LogKeyComponent, config.CompUI)
	app.form.result.SetText(app.LocalizeError(err))
}
