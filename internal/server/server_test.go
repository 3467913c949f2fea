package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-fiscalcode/internal/config"
	"github.com/tartampluch/go-fiscalcode/internal/engine"
)

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testTable = engine.MunicipalityTable{
	{DisplayName: "Roma (RM)", ShortCode: "H501"},
	{DisplayName: "Romano di Lombardia (BG)", ShortCode: "H509"},
	{DisplayName: "Milano (MI)", ShortCode: "F205"},
	{DisplayName: "Broken (BR)", ShortCode: "h5"},
}

func newTestServer(t *testing.T, loaded bool) (*APIServer, http.Handler) {
	t.Helper()
	srv := NewAPIServer("0")
	srv.Clock = fixedClock{t: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	if loaded {
		srv.UpdateTable(testTable)
	}
	return srv, srv.Handler()
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// -----------------------------------------------------------------------------
// Compute
// -----------------------------------------------------------------------------

func TestCompute_Success(t *testing.T) {
	_, h := newTestServer(t, true)

	w := do(h, http.MethodPost, config.RouteFiscalCode,
		`{"surname":"Rossi","given_name":"Mario","sex":"male","birth_date":"1980-03-12","birth_city":"Roma (RM)"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, config.MimeJSON, w.Header().Get(config.HeaderContentType))

	var resp computeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "RSSMRA80C12H501E", resp.FiscalCode)
}

func TestCompute_SexShortForm(t *testing.T) {
	_, h := newTestServer(t, true)

	w := do(h, http.MethodPost, config.RouteFiscalCode,
		`{"surname":"Bianchi","given_name":"Giulia","sex":"F","birth_date":"1990-01-05","birth_city":"Milano (MI)"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "BNCGLI90A45F205U")
}

func TestCompute_ClientErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"InvalidJSON", `{"surname":`, http.StatusBadRequest, config.HTTPCodeInvalidJSON},
		{"InvalidDate", `{"surname":"Rossi","given_name":"Mario","sex":"male","birth_date":"12/03/1980","birth_city":"Roma (RM)"}`,
			http.StatusBadRequest, config.HTTPCodeInvalidDate},
		{"Validation", `{"surname":"Ro","given_name":"Mario","sex":"x","birth_date":"1980-03-12","birth_city":"roma (rm)"}`,
			http.StatusUnprocessableEntity, config.HTTPCodeValidation},
		{"FutureDate", `{"surname":"Rossi","given_name":"Mario","sex":"male","birth_date":"2030-01-01","birth_city":"Roma (RM)"}`,
			http.StatusUnprocessableEntity, config.HTTPCodeValidation},
		{"MalformedCityCode", `{"surname":"Rossi","given_name":"Mario","sex":"male","birth_date":"1980-03-12","birth_city":"Broken (BR)"}`,
			http.StatusUnprocessableEntity, config.HTTPCodeDomain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, h := newTestServer(t, true)
			w := do(h, http.MethodPost, config.RouteFiscalCode, tt.body)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantErr, decodeError(t, w).Error)
		})
	}
}

func TestCompute_ValidationDetails(t *testing.T) {
	_, h := newTestServer(t, true)

	w := do(h, http.MethodPost, config.RouteFiscalCode,
		`{"surname":"Ro","given_name":"Mario","sex":"x","birth_date":"1980-03-12","birth_city":"roma (rm)"}`)

	resp := decodeError(t, w)
	var got []string
	for _, d := range resp.Details {
		got = append(got, d.Field)
	}
	assert.Equal(t, []string{config.FieldSurname, config.FieldSex, config.FieldBirthCity}, got)
}

func TestCompute_StrictComposer(t *testing.T) {
	srv, h := newTestServer(t, true)
	strict, err := engine.NewComposer(config.NormalizeStrict)
	require.NoError(t, err)
	srv.SetComposer(strict)

	w := do(h, http.MethodPost, config.RouteFiscalCode,
		`{"surname":"D'Amico","given_name":"Mario","sex":"male","birth_date":"1980-03-12","birth_city":"Roma (RM)"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, config.HTTPCodeDomain, decodeError(t, w).Error)

	// Resetting to nil falls back to the default transliteration.
	srv.SetComposer(nil)
	w = do(h, http.MethodPost, config.RouteFiscalCode,
		`{"surname":"D'Amico","given_name":"Mario","sex":"male","birth_date":"1980-03-12","birth_city":"Roma (RM)"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestCompute_NotReady verifies 503 before the table is published.
func TestCompute_NotReady(t *testing.T) {
	_, h := newTestServer(t, false)

	w := do(h, http.MethodPost, config.RouteFiscalCode, `{}`)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, config.RetryAfterSeconds, w.Header().Get(config.HeaderRetryAfter))
	assert.Equal(t, config.HTTPCodeNotReady, decodeError(t, w).Error)
}

func TestCompute_MethodNotAllowed(t *testing.T) {
	_, h := newTestServer(t, true)
	w := do(h, http.MethodGet, config.RouteFiscalCode, "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

// -----------------------------------------------------------------------------
// Municipalities
// -----------------------------------------------------------------------------

func TestMunicipalities_Filter(t *testing.T) {
	_, h := newTestServer(t, true)

	w := do(h, http.MethodGet, config.RouteMunicipalities+"?q=roma", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp optionsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "roma", resp.Query)
	assert.Equal(t, []string{"Roma (RM)", "Romano di Lombardia (BG)"}, resp.Options)

	w = do(h, http.MethodGet, config.RouteMunicipalities+"?q=roma&limit=1", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"Roma (RM)"}, resp.Options)
}

func TestMunicipalities_ETag(t *testing.T) {
	_, h := newTestServer(t, true)

	w1 := do(h, http.MethodGet, config.RouteMunicipalities+"?q=mi", "")
	etag := w1.Header().Get(config.HeaderETag)
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, config.RouteMunicipalities+"?q=mi", nil)
	req.Header.Set(config.HeaderIfNoneMatch, etag)
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, req)

	assert.Equal(t, http.StatusNotModified, w2.Code)
	assert.Empty(t, w2.Body.Bytes())
}

// -----------------------------------------------------------------------------
// Health, Metrics, CORS
// -----------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	srv, h := newTestServer(t, false)

	w := do(h, http.MethodGet, config.RouteHealth, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), config.HealthStatusLoading)

	srv.UpdateTable(testTable)
	w = do(h, http.MethodGet, config.RouteHealth, "")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, config.HealthStatusOK, resp.Status)
	assert.Equal(t, len(testTable), resp.Municipalities)
}

func TestMetrics_Exposed(t *testing.T) {
	_, h := newTestServer(t, true)

	do(h, http.MethodPost, config.RouteFiscalCode,
		`{"surname":"Rossi","given_name":"Mario","sex":"male","birth_date":"1980-03-12","birth_city":"Roma (RM)"}`)

	w := do(h, http.MethodGet, config.RouteMetrics, "")
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, config.MetricComputedTotal+`{outcome="success"} 1`)
	assert.Contains(t, body, config.MetricTableSize+" 4")
	assert.Contains(t, body, config.MetricRequestsTotal)
	assert.Contains(t, body, `route="`+config.RouteFiscalCode+`"`)
}

func TestCORS_Preflight(t *testing.T) {
	_, h := newTestServer(t, true)

	req := httptest.NewRequest(http.MethodOptions, config.RouteFiscalCode, nil)
	req.Header.Set("Origin", "http://localhost:4200")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

// -----------------------------------------------------------------------------
// Concurrency & Lifecycle
// -----------------------------------------------------------------------------

// TestConcurrency_UpdateWhileServing checks that table swaps and reads do
// not race (run with -race).
func TestConcurrency_UpdateWhileServing(t *testing.T) {
	srv, h := newTestServer(t, true)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			srv.UpdateTable(testTable)
		}()
		go func() {
			defer wg.Done()
			w := do(h, http.MethodGet, config.RouteMunicipalities+"?q=ro", "")
			assert.Equal(t, http.StatusOK, w.Code)
		}()
	}
	wg.Wait()
}

func TestStart_PortRequired(t *testing.T) {
	srv := NewAPIServer("")
	err := srv.Start(context.Background())
	assert.EqualError(t, err, config.ErrPortRequired)
}

// TestStart_Lifecycle boots on a random port and shuts down on cancel.
func TestStart_Lifecycle(t *testing.T) {
	srv := NewAPIServer("0")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(config.ShutdownTimeout + time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestTable_BeforeAndAfterUpdate(t *testing.T) {
	srv := NewAPIServer("0")
	assert.Nil(t, srv.Table())

	srv.UpdateTable(testTable)
	assert.Equal(t, testTable, srv.Table())
}
