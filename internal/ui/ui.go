package ui

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"fyne.io/fyne/v2"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/tartampluch/go-fiscalcode/internal/config"
	"github.com/tartampluch/go-fiscalcode/internal/engine"
	"github.com/tartampluch/go-fiscalcode/internal/server"
	"github.com/zalando/go-keyring"
)

// GoFiscalCodeApp encapsulates the UI state, preferences, and background logic.
type GoFiscalCodeApp struct {
	App         fyne.App
	Window      fyne.Window
	Preferences fyne.Preferences
	I18nBundle  *i18n.Bundle
	Localizer   *i18n.Localizer
	Ctx         context.Context

	Server  *server.APIServer
	Fetcher engine.Fetcher
	Clock   engine.Clock // Injected clock for testability

	SupportedLanguages []string

	tableMut sync.RWMutex
	table    engine.MunicipalityTable
	loadErr  error

	// Batch State
	BatchMut    sync.RWMutex
	Batch       *engine.BatchResult
	batchWindow fyne.Window

	settingsWindow fyne.Window
	form           *mainForm
}

// NewGoFiscalCodeApp constructs the application and wires dependencies.
func NewGoFiscalCodeApp(a fyne.App, ctx context.Context, srv *server.APIServer, fetcher engine.Fetcher) *GoFiscalCodeApp {
	return &GoFiscalCodeApp{
		App:                a,
		Preferences:        a.Preferences(),
		Ctx:                ctx,
		Server:             srv,
		Fetcher:            fetcher,
		Clock:              engine.RealClock{},
		SupportedLanguages: config.SupportedLanguages,
	}
}

// Run launches the local API, loads the municipality table in the
// background and enters the main UI loop.
func (app *GoFiscalCodeApp) Run() {
	app.SetupI18n()
	app.Server.SetComposer(app.composer())

	go func() {
		if err := app.Server.Start(app.Ctx); err != nil {
			slog.Error(config.ErrServerStartup,
				config.LogKeyError, err,
				config.LogKeyComponent, config.CompUI)

			app.App.SendNotification(fyne.NewNotification(
				config.TitleStartupError,
				fmt.Sprintf(config.MsgPortBusy, app.Server.Port)))
		}
	}()

	app.ShowMainWindow()
	go app.loadReference()
	app.App.Run()
}

// loadReference fetches both reference lists and publishes the joined
// table to the form and the API.
func (app *GoFiscalCodeApp) loadReference() {
	log := slog.With(config.LogKeyComponent, config.CompUI)
	app.setLoadState(nil, nil)

	loader := engine.NewReferenceLoader(app.Fetcher,
		app.Preferences.StringWithFallback(config.PrefCitiesURL, config.DefaultCitiesURL),
		app.Preferences.StringWithFallback(config.PrefProvincesURL, config.DefaultProvincesURL),
	)

	table, err := loader.Load(app.Ctx)
	if err != nil {
		log.Error(config.MsgRefLoadFailed, config.LogKeyError, err)
		app.setLoadState(nil, err)
		return
	}

	app.setLoadState(table, nil)
	app.Server.UpdateTable(table)
	log.Info(config.MsgRefLoaded, config.LogKeyCount, len(table))
}

// setLoadState records a load outcome. A failed reload keeps the previous
// table in service.
func (app *GoFiscalCodeApp) setLoadState(table engine.MunicipalityTable, err error) {
	app.tableMut.Lock()
	if table != nil {
		app.table = table
	}
	app.loadErr = err
	app.tableMut.Unlock()

	fyne.Do(app.refreshStatus)
}

// Table returns the loaded municipality table, nil while loading.
func (app *GoFiscalCodeApp) Table() engine.MunicipalityTable {
	app.tableMut.RLock()
	defer app.tableMut.RUnlock()
	return app.table
}

// statusText describes the reference data state for the form footer.
func (app *GoFiscalCodeApp) statusText() string {
	app.tableMut.RLock()
	defer app.tableMut.RUnlock()

	switch {
	case app.loadErr != nil:
		return app.GetMsg(config.TKeyLblLoadFailed)
	case app.table == nil:
		return app.GetMsg(config.TKeyLblLoading)
	}
	return app.GetMsgData(config.TKeyLblLoaded, map[string]any{"Count": len(app.table)})
}

// composer builds the Composer for the configured normalisation mode,
// falling back to the default on an unknown value.
func (app *GoFiscalCodeApp) composer() *engine.Composer {
	mode := app.Preferences.StringWithFallback(config.PrefNormalize, config.DefaultNormalize)
	c, err := engine.NewComposer(mode)
	if err != nil {
		slog.Warn(config.ErrUnknownNormalize,
			config.LogKeyMode, mode,
			config.LogKeyComponent, config.CompUI)
		return &engine.Composer{}
	}
	return c
}

// Compute validates in against the loaded table and composes its code.
func (app *GoFiscalCodeApp) Compute(in engine.PersonInput) (string, error) {
	table := app.Table()
	if table == nil {
		return "", errTableNotLoaded
	}
	if errs := engine.ValidatePerson(in, table, app.Clock.Now()); len(errs) > 0 {
		return "", errs
	}

	code, err := app.composer().Compose(in, table)
	if err != nil {
		slog.Warn(config.MsgComposeFailed,
			config.LogKeyError, err,
			config.LogKeyComponent, config.CompUI)
		return "", err
	}
	slog.Debug(config.MsgComputed,
		config.LogKeyCity, in.BirthCity,
		config.LogKeyComponent, config.CompUI)
	return code, nil
}

// RunBatch encodes the configured address book and stores the result.
func (app *GoFiscalCodeApp) RunBatch() (*engine.BatchResult, error) {
	gen := &engine.Generator{
		Clock:    app.Clock,
		Fetcher:  app.Fetcher,
		Composer: app.composer(),
	}

	res, err := gen.RunBatch(app.Ctx, app.loadBatchConfig(), app.Table())
	if err != nil {
		slog.Error(config.ErrVCardParse,
			config.LogKeyError, err,
			config.LogKeyComponent, config.CompUI)
		return nil, err
	}

	app.BatchMut.Lock()
	app.Batch = res
	app.BatchMut.Unlock()
	return res, nil
}

// loadBatchConfig assembles the vCard source from UI preferences and Keyring.
func (app *GoFiscalCodeApp) loadBatchConfig() engine.BatchConfig {
	cfg := engine.BatchConfig{
		Mode:      app.Preferences.StringWithFallback(config.PrefSourceMode, config.SourceModeWeb),
		LocalPath: app.Preferences.String(config.PrefLocalPath),
		WebURL:    app.Preferences.String(config.PrefCardDAVURL),
		WebUser:   app.Preferences.String(config.PrefUsername),
	}

	if cfg.WebUser != "" {
		if p, err := keyring.Get(config.KeyringService, cfg.WebUser); err == nil {
			cfg.WebPass = p
		} else {
			slog.Debug(config.MsgPassFail,
				config.LogKeyUser, cfg.WebUser,
				config.LogKeyError, err,
				config.LogKeyComponent, config.CompUI)
		}
	}
	return cfg
}
