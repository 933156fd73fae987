package pipeline

import (
	"context"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskstream/taskstream/internal/task"
)

func rec(id int64, user, category string, status task.Status, priority task.Priority, hours int) task.Record {
	return task.Record{
		ID:             id,
		UserID:         user,
		Category:       category,
		Status:         status,
		Priority:       priority,
		EstimatedHours: hours,
	}
}

// assertShape checks the chain's output invariants: only the requested
// user's non-cancelled records with positive hours, categories contiguous,
// and priority ascending with hours descending inside each category.
func assertShape(t *testing.T, out []task.Record, userID string) {
	t.Helper()
	seen := map[string]bool{}
	var current string
	for i, r := range out {
		assert.Equal(t, userID, r.UserID, "record %d user", i)
		assert.NotEqual(t, task.StatusCancelled, r.Status, "record %d status", i)
		assert.Positive(t, r.EstimatedHours, "record %d hours", i)

		if r.Category != current {
			assert.False(t, seen[r.Category], "category %q appears in two separate blocks", r.Category)
			seen[r.Category] = true
			current = r.Category
			continue
		}
		prev := out[i-1]
		assert.LessOrEqual(t, prev.Priority.Rank(), r.Priority.Rank(),
			"priority must be ascending within category %q at index %d", r.Category, i)
		if prev.Priority == r.Priority {
			assert.GreaterOrEqual(t, prev.EstimatedHours, r.EstimatedHours,
				"hours must be descending for equal priority within category %q at index %d", r.Category, i)
		}
	}
}

func TestChainOutputShape(t *testing.T) {
	gen := task.NewRandomGenerator(nil)
	chain := NewChain(nil)

	out, err := chain.Run(context.Background(), gen.Generate(20000), "user1")
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assertShape(t, out, "user1")
}

// Two independently generated corpora must satisfy the same invariants even
// though the contents differ.
func TestChainShapeIsIdempotent(t *testing.T) {
	gen := task.NewRandomGenerator(nil)
	chain := NewChain(nil)

	for i := 0; i < 2; i++ {
		out, err := chain.Run(context.Background(), gen.Generate(10000), "user2")
		require.NoError(t, err)
		assertShape(t, out, "user2")
	}
}

func TestChainSmallDeterministicCorpus(t *testing.T) {
	corpus := task.SliceGenerator{
		rec(0, "u1", "Dev", task.StatusPending, task.PriorityHigh, 5),
		rec(1, "u2", "Dev", task.StatusPending, task.PriorityLow, 3),
		rec(2, "u1", "Dev", task.StatusInProgress, task.PriorityLow, 2),
		rec(3, "u3", "QA", task.StatusCompleted, task.PriorityCritical, 8),
		rec(4, "u1", "QA", task.StatusCompleted, task.PriorityHigh, 4),
		rec(5, "u2", "QA", task.StatusCancelled, task.PriorityHigh, 1),
		rec(6, "u3", "Dev", task.StatusPending, task.PriorityMedium, 6),
		rec(7, "u2", "Dev", task.StatusInProgress, task.PriorityHigh, 7),
		rec(8, "u3", "QA", task.StatusPending, task.PriorityLow, 9),
		rec(9, "u2", "QA", task.StatusCompleted, task.PriorityMedium, 2),
	}
	chain := NewChain(nil)

	out, err := chain.Run(context.Background(), corpus.Generate(0), "u1")
	require.NoError(t, err)
	require.Len(t, out, 3)

	// Dev is seen before QA; within Dev, HIGH sorts above... LOW first
	// because priority ascends.
	assert.Equal(t, int64(2), out[0].ID, "Dev LOW first")
	assert.Equal(t, int64(0), out[1].ID, "Dev HIGH second")
	assert.Equal(t, int64(4), out[2].ID, "QA group after Dev")
}

func TestChainDropsCancelledAndNonPositiveHours(t *testing.T) {
	corpus := task.SliceGenerator{
		rec(0, "u1", "Dev", task.StatusCancelled, task.PriorityHigh, 5),
		rec(1, "u1", "Dev", task.StatusPending, task.PriorityHigh, 0),
		rec(2, "u1", "Dev", task.StatusPending, task.PriorityHigh, -3),
		rec(3, "u1", "Dev", task.StatusPending, task.PriorityHigh, 1),
	}
	chain := NewChain(nil)

	out, err := chain.Run(context.Background(), corpus.Generate(0), "u1")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(3), out[0].ID)
}

func TestChainEmptyResultIsNotAnError(t *testing.T) {
	corpus := task.SliceGenerator{
		rec(0, "u2", "Dev", task.StatusPending, task.PriorityHigh, 5),
	}
	chain := NewChain(nil)

	out, err := chain.Run(context.Background(), corpus.Generate(0), "nobody")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestChainEqualPriorityOrdersHoursDescending(t *testing.T) {
	corpus := task.SliceGenerator{
		rec(0, "u1", "Dev", task.StatusPending, task.PriorityHigh, 2),
		rec(1, "u1", "Dev", task.StatusPending, task.PriorityHigh, 9),
		rec(2, "u1", "Dev", task.StatusPending, task.PriorityHigh, 5),
	}
	chain := NewChain(nil)

	out, err := chain.Run(context.Background(), corpus.Generate(0), "u1")
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, []int{9, 5, 2}, []int{out[0].EstimatedHours, out[1].EstimatedHours, out[2].EstimatedHours})
}

func TestChainGroupOrderIsFirstSeen(t *testing.T) {
	// After the id sort, QA's lowest id (1) precedes Dev's lowest
	// surviving id (2), so QA must be emitted first. Priorities are equal
	// so the second sort cannot reorder across groups' first-seen order.
	corpus := task.SliceGenerator{
		rec(2, "u1", "Dev", task.StatusPending, task.PriorityHigh, 5),
		rec(1, "u1", "QA", task.StatusPending, task.PriorityHigh, 5),
		rec(3, "u1", "QA", task.StatusPending, task.PriorityHigh, 5),
	}
	chain := NewChain(nil)

	out, err := chain.Run(context.Background(), corpus.Generate(0), "u1")
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "QA", out[0].Category)
	assert.Equal(t, "QA", out[1].Category)
	assert.Equal(t, "Dev", out[2].Category)
}

type panickingGenerator struct {
	after int
}

func (g panickingGenerator) Generate(int) iter.Seq[task.Record] {
	return func(yield func(task.Record) bool) {
		for i := 0; ; i++ {
			if i == g.after {
				panic("corpus source exploded")
			}
			if !yield(rec(int64(i), "u1", "Dev", task.StatusPending, task.PriorityLow, 1)) {
				return
			}
		}
	}
}

func TestChainPanicBecomesError(t *testing.T) {
	chain := NewChain(nil)

	out, err := chain.Run(context.Background(), panickingGenerator{after: 7}.Generate(0), "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corpus source exploded")
	assert.Nil(t, out)
}

func TestChainCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := task.NewRandomGenerator(nil)
	chain := NewChain(nil)

	out, err := chain.Run(ctx, gen.Generate(50000), "user1")
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, out)
}

type recordingObserver struct {
	mu     sync.Mutex
	starts []string
	ends   []string
	counts map[string]int
}

func (o *recordingObserver) StageStart(_ context.Context, stage string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.starts = append(o.starts, stage)
}

func (o *recordingObserver) StageEnd(_ context.Context, stage string, count int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ends = append(o.ends, stage)
	if o.counts == nil {
		o.counts = map[string]int{}
	}
	o.counts[stage] = count
}

func TestChainNotifiesObserverPerStage(t *testing.T) {
	corpus := task.SliceGenerator{
		rec(0, "u1", "Dev", task.StatusPending, task.PriorityHigh, 5),
		rec(1, "u2", "Dev", task.StatusPending, task.PriorityLow, 3),
		rec(2, "u1", "QA", task.StatusCancelled, task.PriorityLow, 2),
	}
	obs := &recordingObserver{}
	chain := NewChain(obs)

	_, err := chain.Run(context.Background(), corpus.Generate(0), "u1")
	require.NoError(t, err)

	all := []string{
		StageWrap, StageFilterUser, StageFilterStatus, StageFilterHours,
		StageSortID, StageSortPriority, StageGroup, StageUnwrap,
	}
	assert.ElementsMatch(t, all, obs.starts)
	assert.ElementsMatch(t, all, obs.ends)

	assert.Equal(t, 3, obs.counts[StageWrap])
	assert.Equal(t, 2, obs.counts[StageFilterUser])
	assert.Equal(t, 1, obs.counts[StageFilterStatus])
	assert.Equal(t, 1, obs.counts[StageFilterHours])
}

func TestWrapDerivesKeysOnce(t *testing.T) {
	w := Wrap(rec(42, "u1", "Dev", task.StatusPending, task.PriorityHigh, 7))
	assert.Equal(t, "WRAP_42", w.WrappedID)
	assert.Equal(t, int64(42), w.SortKey1)
	assert.Equal(t, 7, w.SortKey2)
	assert.Equal(t, "Dev_PENDING", w.FilterTag)
	assert.NotZero(t, w.WrappedAt)
}
