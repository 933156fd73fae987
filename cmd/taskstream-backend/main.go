package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taskstream/taskstream/internal/backend"
	"github.com/taskstream/taskstream/internal/config"
	"github.com/taskstream/taskstream/internal/metrics"
	"github.com/taskstream/taskstream/internal/pipeline"
	"github.com/taskstream/taskstream/internal/task"
	"github.com/taskstream/taskstream/pkg/clog"
)

func main() {
	env, err := config.LoadBackendEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}

	// Setup logger
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewHTTPTextHandler(os.Stderr, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))

	// Setup generation domains
	domains, err := task.NewDomainStore(env.DomainsFile)
	if err != nil {
		slog.Error("failed to load generation domains", "error", err)
		os.Exit(1)
	}

	gen := task.NewRandomGenerator(domains.Snapshot)
	chain := pipeline.NewChain(pipeline.MultiObserver(
		pipeline.SlogObserver{},
		metrics.PipelineObserver{},
	))
	svc := backend.NewService(gen, chain, env.TaskCount)
	srv := backend.NewServer(env, svc)

	// Graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	go func() {
		if err := domains.Watch(ctx); err != nil {
			slog.Error("domains watcher error", "error", err)
		}
	}()

	go func() {
		if err := srv.ListenAndServe(ctx); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down backend server")

	// Give active streams time to finish after their contexts are cancelled.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
