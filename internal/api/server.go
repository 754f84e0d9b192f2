// Package api provides the HTTP server for the pledge marketplace.
// It exposes the project registry, the contribution workflow and the admin
// aggregate view as a JSON API; page rendering lives entirely in the
// frontend, which calls these endpoints.
package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trustpledge/pledged/internal/app/workflow"
	"github.com/trustpledge/pledged/internal/domain"
	"github.com/trustpledge/pledged/internal/infra/sqlite"
)

// Server is the pledge marketplace HTTP API server.
type Server struct {
	db             *sqlite.DB
	workflow       *workflow.Service
	logger         *slog.Logger
	adminSecret    string
	metricsEnabled bool
	version        string
}

// NewServer creates a new API server.
func NewServer(db *sqlite.DB, wf *workflow.Service, logger *slog.Logger) *Server {
	return &Server{db: db, workflow: wf, logger: logger, version: "0.1.0"}
}

// SetAdminSecret configures the shared secret for the admin view. Leaving
// it unset keeps the admin view closed.
func (s *Server) SetAdminSecret(secret string) { s.adminSecret = secret }

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/projects", s.handleListProjects)
		r.Post("/projects", s.handleCreateProject)
		r.Post("/projects/{id}/join", s.handleJoin)
		r.Get("/credits", s.handleMyCredits)
		r.Get("/contributions", s.handleContributions)
		r.Patch("/contributions/{id}", s.handleDecide)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/stats", s.handleAdminStats)
			r.Patch("/projects/{id}/status", s.handleSetProjectStatus)
		})
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// adminAuthorized checks the shared-secret query parameter in constant
// time. An unset secret closes the admin view entirely.
func (s *Server) adminAuthorized(r *http.Request) bool {
	if s.adminSecret == "" {
		return false
	}
	supplied := r.URL.Query().Get("secret")
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(s.adminSecret)) == 1
}

// ─── Response Helpers ───────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error envelope with a machine-readable kind so
// the UI can render a specific message per failure.
func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    kind,
		},
	})
}

// writeDomainError maps a domain error onto the HTTP taxonomy.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	status, kind := errorStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
		writeError(w, status, kind, "internal error")
		return
	}
	writeError(w, status, kind, err.Error())
}

// errorStatus classifies a domain error into status code and error type.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrProjectNotFound),
		errors.Is(err, domain.ErrCreditNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrAlreadyJoined):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, domain.ErrAlreadyDecided):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, domain.ErrInvalidProject),
		errors.Is(err, domain.ErrEmptyReason),
		errors.Is(err, domain.ErrMissingIdentity),
		errors.Is(err, domain.ErrInvalidDecision):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	}
	return http.StatusInternalServerError, "storage"
}

// corsMiddleware adds CORS headers for the frontend.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
