package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tartampluch/go-fiscalcode/internal/config"
	"github.com/tartampluch/go-fiscalcode/internal/engine"
)

// tableItem is one published municipality table and its version tag.
type tableItem struct {
	table engine.MunicipalityTable
	etag  string
}

// APIServer exposes the fiscal code computation over HTTP.
type APIServer struct {
	// table and composer use atomic.Pointer for lock-free reads: requests
	// read them constantly, reloads and settings changes replace them rarely.
	table    atomic.Pointer[tableItem]
	composer atomic.Pointer[engine.Composer]

	Port        string
	Clock       engine.Clock
	CORSOrigins []string

	registry *prometheus.Registry
	metrics  *metrics
}

// NewAPIServer creates a new instance of the server with its own metrics registry.
func NewAPIServer(port string) *APIServer {
	reg := prometheus.NewRegistry()
	s := &APIServer{
		Port:        port,
		Clock:       engine.RealClock{},
		CORSOrigins: []string{config.DefaultCORSOrigin},
		registry:    reg,
		metrics:     newMetrics(reg),
	}
	s.composer.Store(&engine.Composer{})
	return s
}

// Handler builds the router. It is exported so tests and embedding
// applications can mount the API without a listener.
func (s *APIServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{config.HeaderContentType, config.HeaderIfNoneMatch},
		ExposedHeaders: []string{config.HeaderETag, config.HeaderRetryAfter},
	}))
	r.Use(s.metrics.instrument)

	r.Get(config.RouteHealth, s.handleHealth)
	r.Handle(config.RouteMetrics, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(s.requireTable)
		r.Post(config.RouteFiscalCode, s.handleCompute)
		r.Get(config.RouteMunicipalities, s.handleMunicipalities)
	})
	return r
}

// Start initializes the HTTP server and blocks until the context is cancelled.
func (s *APIServer) Start(ctx context.Context) error {
	if s.Port == "" {
		return errors.New(config.ErrPortRequired)
	}

	srv := &http.Server{
		Addr:         config.LocalhostBindAddr + config.AddrSeparator + s.Port,
		Handler:      s.Handler(),
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	serverError := make(chan error, config.ChannelBufferSize)

	go func() {
		slog.Info(config.MsgServerListen,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyPort, s.Port,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverError <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info(config.MsgServerStop, config.LogKeyComponent, config.CompServer)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: %w", config.ErrServerShutdown, err)
		}
		return nil

	case err := <-serverError:
		return fmt.Errorf("%s: %w", config.ErrServerStartup, err)
	}
}

// UpdateTable atomically replaces the municipality table used for lookups.
// The slice must not be modified afterwards.
func (s *APIServer) UpdateTable(table engine.MunicipalityTable) {
	h := sha256.New()
	for _, e := range table {
		h.Write([]byte(e.DisplayName))
		h.Write([]byte{0})
		h.Write([]byte(e.ShortCode))
		h.Write([]byte{0})
	}
	etag := fmt.Sprintf(config.FormatETag, hex.EncodeToString(h.Sum(nil)))

	s.table.Store(&tableItem{table: table, etag: etag})
	s.metrics.tableSize.Set(float64(len(table)))

	slog.Debug(config.MsgTableUpdated,
		config.LogKeyComponent, config.CompServer,
		config.LogKeyCount, len(table),
		config.LogKeyETag, etag,
	)
}

// Table returns the current municipality table, or nil before the first update.
func (s *APIServer) Table() engine.MunicipalityTable {
	if item := s.table.Load(); item != nil {
		return item.table
	}
	return nil
}

// SetComposer swaps the composer, e.g. after a normalisation mode change.
func (s *APIServer) SetComposer(c *engine.Composer) {
	if c == nil {
		c = &engine.Composer{}
	}
	s.composer.Store(c)
}

// requireTable answers 503 with Retry-After until a table has been published.
func (s *APIServer) requireTable(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.table.Load() == nil {
			w.Header().Set(config.HeaderRetryAfter, config.RetryAfterSeconds)
			writeError(w, http.StatusServiceUnavailable, config.HTTPCodeNotReady, config.HTTPMsgInitializing, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
