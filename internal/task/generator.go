package task

import (
	"fmt"
	"iter"
	"math/rand/v2"
	"time"
)

// Generator produces a synthetic corpus of n records. Implementations yield
// exactly n well-formed records with sequential ids 0..n-1; they are not
// required to be reproducible across calls.
type Generator interface {
	Generate(n int) iter.Seq[Record]
}

// RandomGenerator draws every field uniformly from the current domain
// snapshot. Each Generate call uses a fresh pseudorandom sequence.
type RandomGenerator struct {
	domains func() Domains
}

// NewRandomGenerator builds a generator over the given domain snapshot
// function, typically (*DomainStore).Snapshot. A nil snapshot function means
// the built-in default domains.
func NewRandomGenerator(snapshot func() Domains) *RandomGenerator {
	if snapshot == nil {
		d := DefaultDomains()
		snapshot = func() Domains { return d }
	}
	return &RandomGenerator{domains: snapshot}
}

func (g *RandomGenerator) Generate(n int) iter.Seq[Record] {
	// One snapshot per corpus so a concurrent domains reload never mixes
	// value sets within a single generation run.
	d := g.domains()
	return func(yield func(Record) bool) {
		now := time.Now()
		for i := range n {
			rec := Record{
				ID:             int64(i),
				UserID:         d.Users[rand.IntN(len(d.Users))],
				Title:          fmt.Sprintf("Task %d", i),
				Description:    fmt.Sprintf("Description for task %d", i),
				Status:         Statuses[rand.IntN(len(Statuses))],
				Priority:       Priorities[rand.IntN(len(Priorities))],
				CreatedAt:      now.AddDate(0, 0, -rand.IntN(30)),
				DueDate:        now.AddDate(0, 0, rand.IntN(60)),
				EstimatedHours: rand.IntN(20) + 1,
				Category:       d.Categories[rand.IntN(len(d.Categories))],
				Assignee:       fmt.Sprintf("assignee%d", rand.IntN(d.AssigneePool)),
			}
			if !yield(rec) {
				return
			}
		}
	}
}

// SliceGenerator yields a fixed corpus and ignores n. Tests use it to feed
// deterministic records through the pipeline.
type SliceGenerator []Record

func (g SliceGenerator) Generate(int) iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for _, rec := range g {
			if !yield(rec) {
				return
			}
		}
	}
}
