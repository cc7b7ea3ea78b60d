// Package report serves read-only views of ingested registry data over HTTP.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/registry-ingest/internal/model"
	"github.com/sells-group/registry-ingest/internal/store"
)

const defaultUnmappedLimit = 50

// Reader is the part of the store the reports read from.
type Reader interface {
	LatestCompany(ctx context.Context) (*model.CompanyReport, error)
	FinancialSummary(ctx context.Context, entityID string) ([]model.FinancialGroup, error)
	UnmappedCodes(ctx context.Context, limit int) ([]model.UnmappedCode, error)
	Ping(ctx context.Context) error
}

// Handler returns the reporting router.
func Handler(rd Reader, corsOrigins []string) http.Handler {
	s := &server{reader: rd}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.getHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/company/latest", s.getLatestCompany)
		r.Get("/financials", s.getFinancials)
		r.Get("/unmapped-codes", s.getUnmappedCodes)
	})

	return r
}

type server struct {
	reader Reader
}

// GET /health
func (s *server) getHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.reader.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /api/company/latest
func (s *server) getLatestCompany(w http.ResponseWriter, r *http.Request) {
	rep, err := s.reader.LatestCompany(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// GET /api/financials?entity_id=
func (s *server) getFinancials(w http.ResponseWriter, r *http.Request) {
	entityID := r.URL.Query().Get("entity_id")
	if entityID == "" {
		rep, err := s.reader.LatestCompany(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		entityID = rep.Company.EntityID
	}

	groups, err := s.reader.FinancialSummary(r.Context(), entityID)
	if err != nil {
		writeError(w, err)
		return
	}
	if groups == nil {
		groups = []model.FinancialGroup{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entity_id": entityID,
		"groups":    groups,
	})
}

// GET /api/unmapped-codes?limit=
func (s *server) getUnmappedCodes(w http.ResponseWriter, r *http.Request) {
	limit := defaultUnmappedLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	codes, err := s.reader.UnmappedCodes(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if codes == nil {
		codes = []model.UnmappedCode{}
	}
	writeJSON(w, http.StatusOK, codes)
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	zap.L().Error("report: query failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("report: encode response", zap.Error(err))
	}
}
