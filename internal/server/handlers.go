package server

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/tartampluch/go-fiscalcode/internal/config"
	"github.com/tartampluch/go-fiscalcode/internal/engine"
)

// computeRequest is the JSON body of POST /api/v1/fiscal-code.
type computeRequest struct {
	Surname   string `json:"surname"`
	GivenName string `json:"given_name"`
	Sex       string `json:"sex"`
	BirthDate string `json:"birth_date"` // YYYY-MM-DD
	BirthCity string `json:"birth_city"`
}

type computeResponse struct {
	FiscalCode string `json:"fiscal_code"`
}

type optionsResponse struct {
	Query   string   `json:"query"`
	Options []string `json:"options"`
}

type healthResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	Municipalities int    `json:"municipalities"`
}

type errorResponse struct {
	Error   string                   `json:"error"`
	Message string                   `json:"message"`
	Details []engine.ValidationError `json:"details,omitempty"`
}

func (s *APIServer) handleCompute(w http.ResponseWriter, r *http.Request) {
	var req computeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, config.MaxRequestBodySize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, config.HTTPCodeInvalidJSON, config.HTTPMsgInvalidJSON, nil)
		return
	}

	in := engine.PersonInput{
		Surname:   req.Surname,
		GivenName: req.GivenName,
		Sex:       engine.Sex(req.Sex),
		BirthCity: req.BirthCity,
	}
	if sex, err := engine.ParseSex(req.Sex); err == nil {
		in.Sex = sex
	}
	if strings.TrimSpace(req.BirthDate) != "" {
		d, err := time.Parse(config.DateFormatInput, req.BirthDate)
		if err != nil {
			s.metrics.recordOutcome(config.OutcomeInvalid)
			writeError(w, http.StatusBadRequest, config.HTTPCodeInvalidDate,
				fmt.Sprintf("%s: %q", config.ErrDateParse, req.BirthDate), nil)
			return
		}
		in.BirthDate = d
	}

	table := s.Table()
	if errs := engine.ValidatePerson(in, table, s.Clock.Now()); len(errs) > 0 {
		s.metrics.recordOutcome(config.OutcomeInvalid)
		writeError(w, http.StatusUnprocessableEntity, config.HTTPCodeValidation, config.ErrValidation, errs)
		return
	}

	code, err := s.composer.Load().Compose(in, table)
	if err != nil {
		s.writeComposeError(w, r, err)
		return
	}

	s.metrics.recordOutcome(config.OutcomeSuccess)
	slog.Debug(config.MsgComputed,
		config.LogKeyComponent, config.CompServer,
		config.LogKeyRequestID, middleware.GetReqID(r.Context()),
		config.LogKeyCity, in.BirthCity,
	)
	writeJSON(w, http.StatusOK, computeResponse{FiscalCode: code})
}

func (s *APIServer) writeComposeError(w http.ResponseWriter, r *http.Request, err error) {
	slog.Warn(config.MsgComposeFailed,
		config.LogKeyComponent, config.CompServer,
		config.LogKeyRequestID, middleware.GetReqID(r.Context()),
		config.LogKeyError, err,
	)
	switch {
	case errors.Is(err, engine.ErrCityNotFound):
		s.metrics.recordOutcome(config.OutcomeCityNotFound)
		writeError(w, http.StatusUnprocessableEntity, config.HTTPCodeCity, err.Error(), nil)
	case errors.Is(err, engine.ErrOutOfDomain), errors.Is(err, engine.ErrInvalidCityCode):
		s.metrics.recordOutcome(config.OutcomeOutOfDomain)
		writeError(w, http.StatusUnprocessableEntity, config.HTTPCodeDomain, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, config.HTTPCodeInternal, http.StatusText(http.StatusInternalServerError), nil)
	}
}

// handleMunicipalities serves the autocomplete list with ETag support.
func (s *APIServer) handleMunicipalities(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get(config.QueryParamSearch)
	limit := config.DefaultOptionsLimit
	if raw := r.URL.Query().Get(config.QueryParamLimit); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = min(n, config.MaxOptionsLimit)
		}
	}

	payload, err := json.Marshal(optionsResponse{
		Query:   query,
		Options: engine.FilterOptions(s.Table(), query, limit),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, config.HTTPCodeInternal, err.Error(), nil)
		return
	}

	sum := sha256.Sum256(payload)
	etag := fmt.Sprintf(config.FormatETag, hex.EncodeToString(sum[:]))

	w.Header().Set(config.HeaderETag, etag)
	w.Header().Set(config.HeaderCacheControl, config.CacheControlPrivate)
	if r.Header.Get(config.HeaderIfNoneMatch) == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set(config.HeaderContentType, config.MimeJSON)
	w.Header().Set(config.HeaderXContentType, config.MimeNoSniff)
	w.WriteHeader(http.StatusOK)
	if _, err := bytes.NewReader(payload).WriteTo(w); err != nil {
		slog.Error(config.ErrWriteResp,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
	}
}

func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: config.HealthStatusOK, Version: config.Version}
	status := http.StatusOK

	if item := s.table.Load(); item != nil {
		resp.Municipalities = len(item.table)
	} else {
		resp.Status = config.HealthStatusLoading
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(config.HeaderContentType, config.MimeJSON)
	w.Header().Set(config.HeaderXContentType, config.MimeNoSniff)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error(config.ErrWriteResp,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string, details []engine.ValidationError) {
	writeJSON(w, status, errorResponse{Error: code, Message: message, Details: details})
}

// requestLogger logs one structured line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.Info(config.MsgRequest,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyRequestID, middleware.GetReqID(r.Context()),
			config.LogKeyMethod, r.Method,
			config.LogKeyPath, r.URL.Path,
			config.LogKeyStatus, ww.Status(),
			config.LogKeyDuration, time.Since(start).Milliseconds(),
		)
	})
}
