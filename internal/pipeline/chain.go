// Package pipeline implements the deterministic multi-stage data-shaping
// chain the backend runs per request: wrap, three filters, two sorts, a
// category grouping and a final unwrap. Filters are lazy transformations
// over the generator's sequence; sorting and grouping are explicit buffering
// stages, so nothing is emitted until the whole chain has run.
package pipeline

import (
	"context"
	"iter"
	"time"

	"github.com/taskstream/taskstream/internal/task"
	"github.com/taskstream/taskstream/pkg/panicerr"
)

// drainCheckEvery bounds how many elements are buffered between context
// cancellation checks during materialization.
const drainCheckEvery = 4096

type Chain struct {
	obs Observer
}

func NewChain(obs Observer) *Chain {
	if obs == nil {
		obs = NopObserver{}
	}
	return &Chain{obs: obs}
}

// Run executes the full stage chain for one user over the given corpus.
// The input sequence is consumed exactly once. A panic in any stage or in
// the corpus itself is returned as an error, and ctx cancellation aborts
// between buffered elements.
func (c *Chain) Run(ctx context.Context, corpus iter.Seq[task.Record], userID string) ([]task.Record, error) {
	var result []task.Record
	err := panicerr.SafeContext(func(ctx context.Context) error {
		seq := c.instrument(ctx, StageWrap, wrapStage(corpus))
		seq = c.instrument(ctx, StageFilterUser, filterStage(seq, byUser(userID)))
		seq = c.instrument(ctx, StageFilterStatus, filterStage(seq, notCancelled))
		seq = c.instrument(ctx, StageFilterHours, filterStage(seq, positiveHours))

		// Materialization point: both sorts and the grouping need the full
		// surviving set in memory.
		buf, err := drain(ctx, seq)
		if err != nil {
			return err
		}

		c.timed(ctx, StageSortID, len(buf), func() { sortByID(buf) })
		if err := ctx.Err(); err != nil {
			return err
		}
		c.timed(ctx, StageSortPriority, len(buf), func() { sortByPriorityHours(buf) })
		if err := ctx.Err(); err != nil {
			return err
		}

		var groups *grouped
		c.timed(ctx, StageGroup, len(buf), func() { groups = groupByCategory(buf) })
		c.timed(ctx, StageUnwrap, len(buf), func() { result = groups.unwrap() })
		return ctx.Err()
	})(ctx)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// instrument wraps a lazy stage with observer notifications: start when the
// sequence is first pulled, end with the pass-through count on exhaustion.
func (c *Chain) instrument(ctx context.Context, stage string, in iter.Seq[Wrapped]) iter.Seq[Wrapped] {
	return func(yield func(Wrapped) bool) {
		c.obs.StageStart(ctx, stage)
		start := time.Now()
		n := 0
		for w := range in {
			n++
			if !yield(w) {
				break
			}
		}
		c.obs.StageEnd(ctx, stage, n, time.Since(start))
	}
}

// timed runs a buffering stage under observer notifications.
func (c *Chain) timed(ctx context.Context, stage string, count int, fn func()) {
	c.obs.StageStart(ctx, stage)
	start := time.Now()
	fn()
	c.obs.StageEnd(ctx, stage, count, time.Since(start))
}

func drain(ctx context.Context, seq iter.Seq[Wrapped]) ([]Wrapped, error) {
	var buf []Wrapped
	for w := range seq {
		buf = append(buf, w)
		if len(buf)%drainCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
	}
	return buf, ctx.Err()
}
