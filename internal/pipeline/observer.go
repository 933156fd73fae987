package pipeline

import (
	"context"
	"log/slog"
	"time"
)

// Observer receives stage boundary notifications. The chain itself does no
// logging or metrics; cross-cutting concerns hang off these hooks.
type Observer interface {
	StageStart(ctx context.Context, stage string)
	// StageEnd reports the number of elements the stage produced and how
	// long it ran.
	StageEnd(ctx context.Context, stage string, count int, elapsed time.Duration)
}

type NopObserver struct{}

func (NopObserver) StageStart(context.Context, string)                   {}
func (NopObserver) StageEnd(context.Context, string, int, time.Duration) {}

// SlogObserver logs each stage completion at debug level.
type SlogObserver struct{}

func (SlogObserver) StageStart(ctx context.Context, stage string) {
	slog.DebugContext(ctx, "stage started", "stage", stage)
}

func (SlogObserver) StageEnd(ctx context.Context, stage string, count int, elapsed time.Duration) {
	slog.DebugContext(ctx, "stage completed", "stage", stage, "count", count, "duration", elapsed)
}

type multiObserver []Observer

// MultiObserver fans notifications out to all given observers in order.
func MultiObserver(obs ...Observer) Observer {
	return multiObserver(obs)
}

func (m multiObserver) StageStart(ctx context.Context, stage string) {
	for _, o := range m {
		o.StageStart(ctx, stage)
	}
}

func (m multiObserver) StageEnd(ctx context.Context, stage string, count int, elapsed time.Duration) {
	for _, o := range m {
		o.StageEnd(ctx, stage, count, elapsed)
	}
}
