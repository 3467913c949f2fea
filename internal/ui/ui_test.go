package ui

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-fiscalcode/internal/config"
	"github.com/tartampluch/go-fiscalcode/internal/engine"
	"github.com/tartampluch/go-fiscalcode/internal/server"
	"github.com/zalando/go-keyring"
)

// -----------------------------------------------------------------------------
// Mocks
// -----------------------------------------------------------------------------

// MockFetcher simulates the engine.Fetcher interface using testify/mock.
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, url, user, pass string) (io.ReadCloser, error) {
	args := m.Called(ctx, url, user, pass)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

// MockClock controls time for deterministic testing.
type MockClock struct {
	CurrentTime time.Time
}

func (m MockClock) Now() time.Time {
	return m.CurrentTime
}

const (
	citiesJSON = `[
		{"nome":"Roma","provincia":"058","codiceCatastale":"H501"},
		{"nome":"Romano di Lombardia","provincia":"016","codiceCatastale":"H509"},
		{"nome":"Milano","provincia":"015","codiceCatastale":"F205"}
	]`
	provincesJSON = `[
		{"codice":"058","nome":"Roma","sigla":"RM"},
		{"codice":"016","nome":"Bergamo","sigla":"BG"},
		{"codice":"015","nome":"Milano","sigla":"MI"}
	]`
)

func body(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}

// -----------------------------------------------------------------------------
// Test Setup Helper
// -----------------------------------------------------------------------------

// setupTestApp initializes a headless Fyne app with mocked dependencies.
func setupTestApp(t *testing.T) (*GoFiscalCodeApp, *MockFetcher) {
	a := test.NewApp()
	keyring.MockInit()

	srv := server.NewAPIServer("0")
	fetcher := new(MockFetcher)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	app := NewGoFiscalCodeApp(a, ctx, srv, fetcher)
	app.Clock = MockClock{CurrentTime: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	// Run() is skipped in tests, so load translations manually.
	app.SetupI18n()
	app.Preferences.SetString(config.PrefLanguage, "en")
	app.UpdateLocalizer()

	return app, fetcher
}

// expectReference wires one successful load of both reference lists.
func expectReference(fetcher *MockFetcher) {
	fetcher.On("Fetch", mock.Anything, config.DefaultCitiesURL, "", "").Return(body(citiesJSON), nil).Once()
	fetcher.On("Fetch", mock.Anything, config.DefaultProvincesURL, "", "").Return(body(provincesJSON), nil).Once()
}

// loadedApp returns an app with the reference table loaded and the form shown.
func loadedApp(t *testing.T) (*GoFiscalCodeApp, *MockFetcher) {
	app, fetcher := setupTestApp(t)
	expectReference(fetcher)
	app.ShowMainWindow()
	app.loadReference()
	require.Len(t, app.Table(), 3)
	return app, fetcher
}

func fillForm(app *GoFiscalCodeApp, surname, given, sex, date, city string) {
	f := app.form
	f.surname.SetText(surname)
	f.givenName.SetText(given)
	f.sex.SetSelected(sex)
	f.birthDate.SetText(date)
	f.birthCity.SetText(city)
}

// -----------------------------------------------------------------------------
// Localization Tests
// -----------------------------------------------------------------------------

func TestLocalization_Switching(t *testing.T) {
	app, _ := setupTestApp(t)

	assert.Equal(t, "Compute", app.GetMsg(config.TKeyBtnCompute))

	app.Preferences.SetString(config.PrefLanguage, "it")
	app.UpdateLocalizer()
	assert.Equal(t, "Calcola", app.GetMsg(config.TKeyBtnCompute))
}

func TestLocalization_Plural(t *testing.T) {
	app, _ := setupTestApp(t)

	assert.Equal(t, "1 municipality loaded", app.GetMsgData(config.TKeyLblLoaded, map[string]any{"Count": 1}))
	assert.Equal(t, "7 municipalities loaded", app.GetMsgData(config.TKeyLblLoaded, map[string]any{"Count": 7}))
}

func TestLocalization_MissingKey(t *testing.T) {
	app, _ := setupTestApp(t)
	assert.Equal(t, "no_such_key", app.GetMsg("no_such_key"))
}

func TestLocalizeError(t *testing.T) {
	app, _ := setupTestApp(t)

	verrs := engine.ValidationErrors{
		{Field: config.FieldSurname, Key: config.TKeyErrRequired},
		{Field: config.FieldBirthCity, Key: config.TKeyErrNotOption},
	}
	assert.Equal(t, "Surname: required\nPlace of birth: choose a municipality from the list", app.LocalizeError(verrs))

	assert.Equal(t, "Unknown municipality", app.LocalizeError(wrapped(engine.ErrCityNotFound)))
	assert.Equal(t, "Contains characters that cannot be encoded", app.LocalizeError(wrapped(engine.ErrOutOfDomain)))
	assert.Equal(t, "The fiscal code could not be computed", app.LocalizeError(errors.New("boom")))
}

func wrapped(err error) error {
	return errors.Join(errors.New("context"), err)
}

// -----------------------------------------------------------------------------
// Reference Data Tests
// -----------------------------------------------------------------------------

func TestLoadReference_Success(t *testing.T) {
	app, fetcher := loadedApp(t)

	fetcher.AssertExpectations(t)
	assert.Len(t, app.Server.Table(), 3, "API must serve the same table")
	assert.Equal(t, "3 municipalities loaded", app.form.status.Text)
}

func TestLoadReference_FailureKeepsTable(t *testing.T) {
	app, fetcher := loadedApp(t)

	fetcher.On("Fetch", mock.Anything, mock.Anything, "", "").Return(nil, errors.New("connection refused"))
	app.loadReference()

	assert.Len(t, app.Table(), 3, "a failed reload keeps the previous table")
	assert.Equal(t, "Could not load the municipality list", app.form.status.Text)
}

func TestLoadReference_CustomURLs(t *testing.T) {
	app, fetcher := setupTestApp(t)
	app.Preferences.SetString(config.PrefCitiesURL, "http://mirror.local/comuni")
	app.Preferences.SetString(config.PrefProvincesURL, "http://mirror.local/province")

	fetcher.On("Fetch", mock.Anything, "http://mirror.local/comuni", "", "").Return(body(citiesJSON), nil).Once()
	fetcher.On("Fetch", mock.Anything, "http://mirror.local/province", "", "").Return(body(provincesJSON), nil).Once()

	app.loadReference()

	fetcher.AssertExpectations(t)
	assert.Len(t, app.Table(), 3)
}

// -----------------------------------------------------------------------------
// Form Tests
// -----------------------------------------------------------------------------

func TestForm_ComputeSuccess(t *testing.T) {
	app, _ := loadedApp(t)

	fillForm(app, "Rossi", "Mario", "Male", "1980-03-12", "Roma (RM)")
	app.onCompute()

	assert.Equal(t, "RSSMRA80C12H501E", app.form.result.Text)
}

func TestForm_ComputeErrors(t *testing.T) {
	tests := []struct {
		name                            string
		surname, given, sex, date, city string
		want                            string
	}{
		{"BadDate", "Rossi", "Mario", "Male", "12/03/1980", "Roma (RM)", "Invalid date, expected YYYY-MM-DD"},
		{"MissingSex", "Rossi", "Mario", "", "1980-03-12", "Roma (RM)", "Sex: required"},
		{"ShortSurname", "Ro", "Mario", "Male", "1980-03-12", "Roma (RM)", "Surname: at least 3 characters"},
		{"FutureDate", "Rossi", "Mario", "Male", "2030-01-01", "Roma (RM)", "Date of birth: cannot be in the future"},
		{"FreeTextCity", "Rossi", "Mario", "Male", "1980-03-12", "Roma", "Place of birth: choose a municipality from the list"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _ := loadedApp(t)
			fillForm(app, tt.surname, tt.given, tt.sex, tt.date, tt.city)
			app.onCompute()
			assert.Equal(t, tt.want, app.form.result.Text)
		})
	}
}

func TestForm_ComputeBeforeLoad(t *testing.T) {
	app, _ := setupTestApp(t)
	app.ShowMainWindow()

	fillForm(app, "Rossi", "Mario", "Male", "1980-03-12", "Roma (RM)")
	app.onCompute()

	assert.Equal(t, "Loading municipalities...", app.form.result.Text)
}

func TestForm_CityAutocomplete(t *testing.T) {
	app, _ := loadedApp(t)

	app.form.birthCity.SetText("rom")
	assert.Equal(t, []string{"Roma (RM)", "Romano di Lombardia (BG)"}, app.form.birthCity.Options)

	app.form.birthCity.SetText("(mi)")
	assert.Equal(t, []string{"Milano (MI)"}, app.form.birthCity.Options)
}

func TestForm_ItalianLabels(t *testing.T) {
	app, _ := loadedApp(t)
	app.Preferences.SetString(config.PrefLanguage, "it")
	app.UpdateLocalizer()
	app.Window.SetContent(app.buildMainContent())

	fillForm(app, "Bianchi", "Giulia", "Femmina", "1990-01-05", "Milano (MI)")
	app.onCompute()

	assert.Equal(t, "BNCGLI90A45F205U", app.form.result.Text)
}

// -----------------------------------------------------------------------------
// Composer & Settings Tests
// -----------------------------------------------------------------------------

func TestComposer_FromPreferences(t *testing.T) {
	app, _ := loadedApp(t)
	in := engine.PersonInput{
		Surname: "D'Amico", GivenName: "Mario", Sex: engine.SexMale,
		BirthDate: time.Date(1980, 3, 12, 0, 0, 0, 0, time.UTC), BirthCity: "Roma (RM)",
	}

	_, err := app.Compute(in)
	require.NoError(t, err)

	app.Preferences.SetString(config.PrefNormalize, config.NormalizeStrict)
	_, err = app.Compute(in)
	assert.ErrorIs(t, err, engine.ErrOutOfDomain)

	app.Preferences.SetString(config.PrefNormalize, "bogus")
	_, err = app.Compute(in)
	assert.NoError(t, err, "unknown mode falls back to the default")
}

func TestSaveSettings_Persists(t *testing.T) {
	app, _ := loadedApp(t)

	sw := app.newSettingsWidgets()
	sw.normalizeSelect.SetSelected(app.GetMsg(config.TKeyOptStrict))
	sw.modeSelect.SetSelected(app.GetMsg(config.TKeyModeLocal))
	sw.pathEntry.SetText("/tmp/contacts.vcf")
	sw.userEntry.SetText("admin")
	sw.passEntry.SetText("s3cret")
	sw.entryPort.SetText("9090")
	sw.langSelect.SetSelected("it")

	app.saveSettings(sw)

	assert.Equal(t, config.NormalizeStrict, app.Preferences.String(config.PrefNormalize))
	assert.Equal(t, config.SourceModeLocal, app.Preferences.String(config.PrefSourceMode))
	assert.Equal(t, "9090", app.Preferences.String(config.PrefServerPort))
	assert.Equal(t, "Calcola", app.GetMsg(config.TKeyBtnCompute), "localizer follows the saved language")

	pass, err := keyring.Get(config.KeyringService, "admin")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", pass)

	// The API picks up the strict composer.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, config.RouteFiscalCode, strings.NewReader(
		`{"surname":"D'Amico","given_name":"Mario","sex":"male","birth_date":"1980-03-12","birth_city":"Roma (RM)"}`))
	app.Server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestSettingsChoices(t *testing.T) {
	app, _ := setupTestApp(t)
	norm := app.normalizeChoices()

	assert.Equal(t, []string{app.GetMsg(config.TKeyOptTranslit), app.GetMsg(config.TKeyOptStrict)}, norm.labels())
	assert.Equal(t, app.GetMsg(config.TKeyOptStrict), norm.labelFor(config.NormalizeStrict))
	assert.Equal(t, app.GetMsg(config.TKeyOptTranslit), norm.labelFor("bogus"))
	assert.Equal(t, config.SourceModeLocal, app.sourceChoices().valueOf(app.GetMsg(config.TKeyModeLocal)))
	assert.Equal(t, config.SourceModeWeb, app.sourceChoices().valueOf(""))
}

func TestValidatePort(t *testing.T) {
	app, _ := setupTestApp(t)

	assert.NoError(t, app.validatePort("18081"))
	assert.EqualError(t, app.validatePort(""), "Port is required")
	assert.EqualError(t, app.validatePort("12a"), "Port must be a number")
	assert.EqualError(t, app.validatePort("0"), "Port must be between 1 and 65535")
	assert.EqualError(t, app.validatePort("70000"), "Port must be between 1 and 65535")
}

func TestValidateHTTPURL(t *testing.T) {
	assert.NoError(t, validateHTTPURL(config.DefaultCitiesURL))
	assert.Error(t, validateHTTPURL("comuni"))
	assert.EqualError(t, validateHTTPURL("ftp://example.com/comuni"), config.ErrProtocol)
}

// -----------------------------------------------------------------------------
// Batch Tests
// -----------------------------------------------------------------------------

func TestLoadBatchConfig_Keyring(t *testing.T) {
	app, _ := setupTestApp(t)

	app.Preferences.SetString(config.PrefSourceMode, config.SourceModeWeb)
	app.Preferences.SetString(config.PrefCardDAVURL, "https://dav.example.com/contacts")
	app.Preferences.SetString(config.PrefUsername, "admin")
	require.NoError(t, keyring.Set(config.KeyringService, "admin", "pw"))

	cfg := app.loadBatchConfig()

	assert.Equal(t, config.SourceModeWeb, cfg.Mode)
	assert.Equal(t, "https://dav.example.com/contacts", cfg.WebURL)
	assert.Equal(t, "admin", cfg.WebUser)
	assert.Equal(t, "pw", cfg.WebPass)
}

func TestRunBatch_LocalFile(t *testing.T) {
	app, _ := loadedApp(t)

	vcf := "BEGIN:VCARD\r\nVERSION:4.0\r\nFN:Mario Rossi\r\nN:Rossi;Mario;;;\r\nGENDER:M\r\nBDAY:19800312\r\nBIRTHPLACE:Roma (RM)\r\nEND:VCARD\r\n" +
		"BEGIN:VCARD\r\nVERSION:4.0\r\nFN:Anna Ignota\r\nN:Ignota;Anna;;;\r\nGENDER:F\r\nBDAY:19800312\r\nBIRTHPLACE:Atlantide (XX)\r\nEND:VCARD\r\n"
	path := filepath.Join(t.TempDir(), "contacts.vcf")
	require.NoError(t, os.WriteFile(path, []byte(vcf), config.FilePermUserRW))

	app.Preferences.SetString(config.PrefSourceMode, config.SourceModeLocal)
	app.Preferences.SetString(config.PrefLocalPath, path)

	res, err := app.RunBatch()
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, "RSSMRA80C12H501E", res.Entries[0].FiscalCode)
	assert.Equal(t, "2 contacts, 1 failed", app.batchSummary())
}

func TestRunBatch_SourceError(t *testing.T) {
	app, _ := setupTestApp(t)
	app.Preferences.SetString(config.PrefSourceMode, config.SourceModeLocal)

	_, err := app.RunBatch()
	assert.Error(t, err)
	assert.Nil(t, app.snapshotBatch())
}

func TestBatchView_Sorting(t *testing.T) {
	view := &batchView{
		rows: []engine.FiscalCodeEntry{
			{Name: "carla", FiscalCode: "CRL"},
			{Name: "Bruno", Err: errors.New("x")},
			{Name: "alba", FiscalCode: "ALB"},
		},
		sortCol: config.ColIDName,
		sortAsc: true,
	}

	view.sort()
	assert.Equal(t, []string{"alba", "Bruno", "carla"}, names(view.rows))

	view.toggle(config.ColIDName)
	assert.Equal(t, []string{"carla", "Bruno", "alba"}, names(view.rows))

	view.toggle(config.ColIDCode)
	assert.Equal(t, []string{"alba", "carla", "Bruno"}, names(view.rows), "failed entries sort last")
}

func names(rows []engine.FiscalCodeEntry) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Name
	}
	return out
}

func TestShowBatchWindow_Singleton(t *testing.T) {
	app, _ := setupTestApp(t)

	app.ShowBatchWindow()
	first := app.batchWindow
	require.NotNil(t, first)

	app.ShowBatchWindow()
	assert.Same(t, first, app.batchWindow)

	first.Close()
	assert.Nil(t, app.batchWindow)
}
