package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/shelfscan/internal/book"
	"github.com/JakeFAU/shelfscan/internal/config"
	"github.com/JakeFAU/shelfscan/internal/ingest"
	"github.com/JakeFAU/shelfscan/internal/metrics"
)

// genericErrorMessage replaces 5xx details in production.
const genericErrorMessage = "an internal server error occurred"

// Ingester stores the candidates of one shelf photo.
type Ingester interface {
	Ingest(ctx context.Context, imagePath string, candidates []book.Candidate) (ingest.BatchResult, error)
}

// Backfiller runs one re-enrichment sweep.
type Backfiller interface {
	Run(ctx context.Context) (ingest.SweepResult, error)
}

// FileNamer generates stored image names.
type FileNamer interface {
	NewFileName(original string) (string, error)
}

// Deps are the collaborators behind the HTTP handlers. Extractor may be nil,
// in which case uploads are refused with 503.
type Deps struct {
	Store     book.Store
	Images    book.ImageStore
	Extractor book.Extractor
	Ingester  Ingester
	Sweeper   Backfiller
	Names     FileNamer
	Clock     book.Clock
	Logger    *zap.Logger
}

// Server wires HTTP handlers to the ingest pipeline and the inventory.
type Server struct {
	router chi.Router
	deps   Deps
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, cfg config.Config) (*Server, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("api: store is required")
	case deps.Images == nil:
		return nil, errors.New("api: image store is required")
	case deps.Ingester == nil:
		return nil, errors.New("api: ingester is required")
	case deps.Sweeper == nil:
		return nil, errors.New("api: sweeper is required")
	case deps.Names == nil:
		return nil, errors.New("api: file namer is required")
	case deps.Clock == nil:
		return nil, errors.New("api: clock is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{deps: deps, cfg: cfg, logger: logger.Named("api")}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	if d := cfg.RequestTimeout(); d > 0 {
		r.Use(middleware.Timeout(d))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/vision", s.handleVision)
		r.Get("/books", s.listBooks)

		r.Group(func(r chi.Router) {
			if cfg.Auth.Enabled {
				r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
			}
			r.Delete("/books", s.deleteBook)
			r.Delete("/books/{id}", s.deleteBook)
			r.Get("/books/reenrich", s.reenrich)
			r.Post("/books/reenrich", s.reenrich)
			r.Post("/reset", s.reset)
		})
	})

	s.router = r
	return s, nil
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.deps.Store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type requestIDKey struct{}

// RequestID returns the request ID stored by the middleware, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.logger.Info("request completed",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("request_id", RequestID(r.Context())),
				)
				s.fail(w, http.StatusInternalServerError, "internal server error", fmt.Errorf("panic: %v", rec), false)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeJSON(w, http.StatusForbidden, map[string]any{"success": false, "error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// succeed writes {"success": true, ...fields}.
func succeed(w http.ResponseWriter, fields map[string]any) {
	body := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["success"] = true
	writeJSON(w, http.StatusOK, body)
}

// fail writes {"success": false, "error": ...}. Outside production the cause
// is appended, and admin failures also carry error_type and timestamp. In
// production 5xx messages are replaced with a generic one.
func (s *Server) fail(w http.ResponseWriter, status int, msg string, cause error, admin bool) {
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Int("status", status), zap.Error(cause))
	} else {
		s.logger.Warn(msg, zap.Int("status", status), zap.Error(cause))
	}

	body := map[string]any{"success": false}
	switch {
	case s.cfg.IsProduction() && status >= http.StatusInternalServerError:
		body["error"] = genericErrorMessage
	case s.cfg.IsProduction() || cause == nil:
		body["error"] = msg
	default:
		body["error"] = msg + ": " + cause.Error()
	}
	if admin && !s.cfg.IsProduction() {
		body["error_type"] = errorType(cause)
		body["timestamp"] = s.deps.Clock.Now().Format(time.RFC3339)
	}
	writeJSON(w, status, body)
}

// errorType names the innermost wrapped error's type.
func errorType(err error) string {
	if err == nil {
		return ""
	}
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return fmt.Sprintf("%T", err)
		}
		err = next
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}
