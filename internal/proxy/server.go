package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/taskstream/taskstream/internal/config"
	"github.com/taskstream/taskstream/internal/task"
	"github.com/taskstream/taskstream/pkg/cerr"
	"github.com/taskstream/taskstream/pkg/clog"
	"github.com/taskstream/taskstream/pkg/ndjson"
)

// Server re-exposes the resilient fetch client's output as a stream, a
// list, a count and a priority-filtered sub-stream. Every handler performs
// exactly one fetch; the four views never trigger extra backend calls.
// Because the client absorbs all failures, these endpoints always succeed,
// possibly with degraded (empty) data.
type Server struct {
	server *http.Server
	env    *config.ProxyEnv
	client *Client
}

func NewServer(env *config.ProxyEnv, client *Client) *Server {
	return &Server{
		env:    env,
		client: client,
	}
}

// ListenAndServe starts the HTTP server. The provided context is used as the
// base context for all incoming requests via http.Server.BaseContext.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.env.HTTPHost, s.env.HTTPPort)
	slog.Info("starting proxy server", "addr", addr)

	s.server = &http.Server{
		Addr: addr,
		Handler: h2c.NewHandler(cors.New(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
		}).Handler(s.routes()), &http2.Server{}),
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	return s.server.ListenAndServe()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(clog.SlogChiMiddleware())
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Route("/user/{userID}/tasks", func(r chi.Router) {
			r.Get("/", s.handleStream)
			r.Get("/list", s.handleList)
			r.Get("/count", s.handleCount)
			r.Get("/filter", s.handleFilter)
		})
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

func (s *Server) fetch(w http.ResponseWriter, r *http.Request) ([]task.Record, bool) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		cerr.WriteJSONError(ctx, w, cerr.NewError(cerr.InvalidArgument, "user id is required", nil))
		return nil, false
	}
	clog.AddAttribute(ctx, "user_id", userID)
	records := s.client.FetchUserTasks(ctx, userID)
	clog.AddAttribute(ctx, "record_count", len(records))
	return records, true
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	records, ok := s.fetch(w, r)
	if !ok {
		return
	}
	streamRecords(r.Context(), w, records, nil)
}

// handleFilter keeps only HIGH and CRITICAL records, preserving upstream
// order.
func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	records, ok := s.fetch(w, r)
	if !ok {
		return
	}
	streamRecords(r.Context(), w, records, func(rec task.Record) bool {
		return rec.Priority == task.PriorityHigh || rec.Priority == task.PriorityCritical
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	records, ok := s.fetch(w, r)
	if !ok {
		return
	}
	if records == nil {
		records = []task.Record{}
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(records); err != nil {
		slog.WarnContext(r.Context(), "failed to write list response", "error", err)
	}
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	records, ok := s.fetch(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	fmt.Fprintf(w, "%d", len(records))
}

// handleHealth aggregates proxy liveness with the backend health probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	backendHealth := s.client.CheckHealth(r.Context())
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "Proxy is running. Backend: %s", backendHealth)
}

func streamRecords(ctx context.Context, w http.ResponseWriter, records []task.Record, keep func(task.Record) bool) {
	w.Header().Set("Content-Type", ndjson.ContentType)
	sw := ndjson.NewWriter(w)
	for _, rec := range records {
		if keep != nil && !keep(rec) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return
		}
		if err := sw.Write(rec); err != nil {
			slog.WarnContext(ctx, "stream aborted", "error", err)
			return
		}
	}
}

// HealthChecker is the bare liveness probe for the proxy process itself.
type HealthChecker struct{}

func (hc *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
