package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lazypower/sparkcoach/internal/apperr"
	"github.com/lazypower/sparkcoach/internal/engine"
	"github.com/lazypower/sparkcoach/internal/logger"
	"github.com/lazypower/sparkcoach/internal/store"
	"github.com/lazypower/sparkcoach/internal/vault"
)

// Server is the sparkcoach HTTP API server.
type Server struct {
	db      *store.DB
	engine  *engine.Engine
	vault   vault.Gateway
	log     *logger.Logger
	secret  []byte
	router  chi.Router
	version string
	started time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithJWTSecret requires an HS256 bearer token on every route but health.
// An empty secret leaves the API open.
func WithJWTSecret(secret string) Option {
	return func(s *Server) {
		if secret != "" {
			s.secret = []byte(secret)
		}
	}
}

// WithVault lets the health check report vault reachability.
func WithVault(gw vault.Gateway) Option {
	return func(s *Server) { s.vault = gw }
}

// New creates a Server over the given store and engine.
func New(db *store.DB, eng *engine.Engine, version string, opts ...Option) *Server {
	s := &Server{
		db:      db,
		engine:  eng,
		log:     logger.Nop(),
		version: version,
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Post("/quiz/start", s.handleQuizStart)
			r.Post("/quiz/answer", s.handleQuizAnswer)
			r.Get("/quiz/session/{sessionID}", s.handleQuizSession)

			r.Get("/nudges", s.handleListNudges)
			r.Post("/nudges/mark-delivered", s.handleMarkDelivered)
			r.Post("/nudges/run-check", s.handleRunCheck)

			r.Get("/resources/at-risk", s.handleAtRisk)
			r.Get("/resources/due", s.handleDue)

			r.Get("/stats/streak", s.handleStreak)
			r.Get("/stats/weekly-summary", s.handleWeeklySummary)
			r.Get("/stats/dashboard", s.handleDashboard)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := s.db.PingContext(r.Context()) == nil

	body := map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
	}
	if s.vault != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		vaultErr := s.vault.Ping(ctx)
		body["vault"] = vaultErr == nil
		if vaultErr != nil {
			body["status"] = "degraded"
		}
	}
	if !dbOK {
		body["status"] = "degraded"
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status code and a {"error","code"} body.
// Internal failures are logged and their detail withheld.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	kind := apperr.KindOf(err)
	msg := apperr.Message(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "path", r.URL.Path, "kind", string(kind), "error", err)
		if kind == apperr.KindInternal {
			msg = "internal error"
		}
	}
	writeJSON(w, status, map[string]string{"error": msg, "code": string(kind)})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg, "code": string(apperr.KindInvalidArgument)})
}
