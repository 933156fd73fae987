// Package backend implements the backend stream server: per-user pipeline
// execution emitted as an NDJSON stream, plus liveness and metrics.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/taskstream/taskstream/internal/config"
	"github.com/taskstream/taskstream/internal/metrics"
	"github.com/taskstream/taskstream/pkg/cerr"
	"github.com/taskstream/taskstream/pkg/clog"
	"github.com/taskstream/taskstream/pkg/ndjson"
)

const healthMessage = "Backend is running"

type Server struct {
	server *http.Server
	env    *config.BackendEnv
	svc    *Service
}

func NewServer(env *config.BackendEnv, svc *Service) *Server {
	return &Server{
		env: env,
		svc: svc,
	}
}

// ListenAndServe starts the HTTP server. The provided context is used as the
// base context for all incoming requests via http.Server.BaseContext, so
// shutdown cancels in-flight streams.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.env.HTTPHost, s.env.HTTPPort)
	slog.Info("starting backend server", "addr", addr)

	s.server = &http.Server{
		Addr:        addr,
		Handler:     h2c.NewHandler(s.routes(), &http2.Server{}),
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	return s.server.ListenAndServe()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(clog.SlogChiMiddleware())
	r.Route("/api/tasks", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/{userID}", s.handleUserTasks)
	})

	mux := http.NewServeMux()
	mux.Handle("/health", &HealthChecker{})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/api/", r)
	return mux
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleUserTasks runs the pipeline for the requested user and streams the
// result one JSON object per line. A pipeline failure before the stream
// starts becomes a JSON error response; a failure to write mid-stream ends
// with an error frame so the client can tell it from end-of-stream.
func (s *Server) handleUserTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		cerr.WriteJSONError(ctx, w, cerr.NewError(cerr.InvalidArgument, "user id is required", nil))
		return
	}
	clog.AddAttribute(ctx, "user_id", userID)

	records, err := s.svc.UserTasks(ctx, userID)
	if err != nil {
		cerr.WriteJSONError(ctx, w, cerr.NewError(cerr.Internal, "pipeline execution failed", err))
		return
	}
	clog.AddAttribute(ctx, "record_count", len(records))

	w.Header().Set("Content-Type", ndjson.ContentType)
	sw := ndjson.NewWriter(w)
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			// Caller went away; nobody is left to read an error frame.
			slog.DebugContext(ctx, "stream cancelled by caller", "sent", i)
			return
		}
		if err := sw.Write(rec); err != nil {
			slog.WarnContext(ctx, "stream aborted", "sent", i, "error", err)
			_ = sw.WriteError(cerr.Internal.String(), fmt.Sprintf("stream aborted after %d records", i))
			return
		}
		metrics.StreamedRecords.Inc()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(healthMessage))
}

// HealthChecker is the bare liveness probe; it has no dependency on the
// pipeline or generator.
type HealthChecker struct{}

func (hc *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
