package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/secdesk/abuse-portal/internal/gateway"
	"github.com/secdesk/abuse-portal/internal/infra"
	"github.com/secdesk/abuse-portal/internal/metrics"
	"github.com/secdesk/abuse-portal/internal/model"
	"github.com/secdesk/abuse-portal/internal/store"
	"github.com/secdesk/abuse-portal/internal/submit"
)

// Config holds server configuration.
type Config struct {
	ListenAddr        string
	BaseURL           string
	RateLimitPerMin   int
	SubmitDelay       time.Duration
	OAuthClientID     string
	OAuthClientSecret string
	OAuthAuthURL      string
	OAuthTokenURL     string
	OAuthScopes       []string
}

// ReportSubmitter submits one abuse report upstream.
type ReportSubmitter interface {
	Submit(ctx context.Context, rpt model.AbuseReport, bearer string) (json.RawMessage, error)
}

// SecurityBrowser serves security-bulletin reads.
type SecurityBrowser interface {
	List(ctx context.Context, q gateway.UpdateQuery) ([]model.SecurityUpdate, int, error)
	ByCVE(ctx context.Context, cve string) (*gateway.CVEResult, error)
	CVRF(ctx context.Context, id string) (json.RawMessage, error)
}

// Enricher resolves network ownership data for an IP target.
type Enricher interface {
	Lookup(ctx context.Context, ip string) (*infra.Result, error)
}

// Server is the portal's HTTP server.
type Server struct {
	config    Config
	reporting ReportSubmitter
	security  SecurityBrowser
	enricher  Enricher
	runs      *submit.Registry
	rl        *RateLimiter
	sessions  *sessionStore
	router    chi.Router
	logger    *slog.Logger
}

// NewServer creates a Server wired to the given collaborators. The rate
// store is injected; the caller owns its lifecycle.
func NewServer(cfg Config, reporting ReportSubmitter, security SecurityBrowser, rateStore store.RateStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RateLimitPerMin <= 0 {
		cfg.RateLimitPerMin = 30
	}
	if cfg.SubmitDelay <= 0 {
		cfg.SubmitDelay = 2 * time.Second
	}

	srv := &Server{
		config:    cfg,
		reporting: reporting,
		security:  security,
		runs:      submit.NewRegistry(submit.New(reporting, logger)),
		rl:        NewRateLimiter(rateStore, cfg.RateLimitPerMin, logger),
		sessions:  newSessionStore(),
		logger:    logger,
	}
	srv.router = srv.routes()
	return srv
}

// SetEnricher configures the optional IP enrichment collaborator.
func (s *Server) SetEnricher(e Enricher) {
	s.enricher = e
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(s.logger))
	r.Use(RecoveryMiddleware(s.logger))
	r.Use(SecurityHeadersMiddleware)

	r.Get("/healthz", s.HandleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/auth/login", s.HandleLogin)
	r.Get("/auth/callback", s.HandleCallback)
	r.Post("/auth/logout", s.HandleLogout)

	r.Route("/api", func(r chi.Router) {
		r.Use(RateLimitMiddleware(s.rl))

		// Public bulletin browsing.
		r.Get("/security/updates", s.HandleSecurityUpdates)
		r.Get("/security/cve/{id}", s.HandleSecurityCVE)
		r.Get("/security/cvrf/{id}", s.HandleSecurityCVRF)
		r.Get("/enrich/ip/{ip}", s.HandleEnrichIP)

		// Live classification of bulk text; no auth needed, nothing leaves
		// the portal.
		r.Post("/report/validate", s.HandleValidateTargets)

		// Authenticated submission.
		r.Group(func(r chi.Router) {
			r.Use(s.RequireBearer)
			r.Post("/report", s.HandleSubmitReport)
			r.Post("/report/bulk", s.HandleBulkSubmit)
			r.Get("/report/bulk/{runID}", s.HandleBulkStatus)
			r.Post("/report/bulk/{runID}/cancel", s.HandleBulkCancel)
		})
	})

	return r
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Stop cleans up server resources.
func (s *Server) Stop() {
	s.rl.Stop()
}

// HandleHealth reports liveness.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- JSON helpers ---

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil || status == http.StatusNoContent {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
