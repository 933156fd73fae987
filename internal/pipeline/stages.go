package pipeline

import (
	"cmp"
	"iter"
	"slices"

	"github.com/taskstream/taskstream/internal/task"
)

// Stage names, in chain order.
const (
	StageWrap         = "wrap"
	StageFilterUser   = "filter_user"
	StageFilterStatus = "filter_status"
	StageFilterHours  = "filter_hours"
	StageSortID       = "sort_id"
	StageSortPriority = "sort_priority"
	StageGroup        = "group_category"
	StageUnwrap       = "unwrap"
)

// wrapStage is a lazy 1:1, order-preserving projection into Wrapped.
func wrapStage(src iter.Seq[task.Record]) iter.Seq[Wrapped] {
	return func(yield func(Wrapped) bool) {
		for rec := range src {
			if !yield(Wrap(rec)) {
				return
			}
		}
	}
}

// filterStage lazily keeps elements matching keep, preserving order.
func filterStage(in iter.Seq[Wrapped], keep func(Wrapped) bool) iter.Seq[Wrapped] {
	return func(yield func(Wrapped) bool) {
		for w := range in {
			if !keep(w) {
				continue
			}
			if !yield(w) {
				return
			}
		}
	}
}

func byUser(userID string) func(Wrapped) bool {
	return func(w Wrapped) bool { return w.Task.UserID == userID }
}

func notCancelled(w Wrapped) bool {
	return w.Task.Status != task.StatusCancelled
}

// positiveHours drops non-positive estimates. The built-in generator never
// produces them; alternative corpora may.
func positiveHours(w Wrapped) bool {
	return w.Task.EstimatedHours > 0
}

// sortByID orders ascending on SortKey1. Ids are unique within a corpus, so
// stability is moot. The following sort fully supersedes this ordering; the
// stage remains to keep the intermediate order the chain contract names.
func sortByID(buf []Wrapped) {
	slices.SortFunc(buf, func(a, b Wrapped) int {
		return cmp.Compare(a.SortKey1, b.SortKey1)
	})
}

// sortByPriorityHours orders by priority ascending (LOW first), breaking
// ties by SortKey2 descending (more estimated hours first). Order among
// exact priority+hours ties is unspecified.
func sortByPriorityHours(buf []Wrapped) {
	slices.SortFunc(buf, func(a, b Wrapped) int {
		if c := cmp.Compare(a.Task.Priority.Rank(), b.Task.Priority.Rank()); c != 0 {
			return c
		}
		return cmp.Compare(b.SortKey2, a.SortKey2)
	})
}

// grouped partitions wrappers by category, keys in first-seen order.
type grouped struct {
	order   []string
	buckets map[string][]Wrapped
}

func groupByCategory(buf []Wrapped) *grouped {
	g := &grouped{buckets: make(map[string][]Wrapped)}
	for _, w := range buf {
		cat := w.Task.Category
		if _, ok := g.buckets[cat]; !ok {
			g.order = append(g.order, cat)
		}
		g.buckets[cat] = append(g.buckets[cat], w)
	}
	return g
}

// unwrap flattens groups in first-seen order, keeping each group's internal
// order, and discards the wrappers.
func (g *grouped) unwrap() []task.Record {
	var n int
	for _, bucket := range g.buckets {
		n += len(bucket)
	}
	out := make([]task.Record, 0, n)
	for _, cat := range g.order {
		for _, w := range g.buckets[cat] {
			out = append(out, w.Task)
		}
	}
	return out
}
