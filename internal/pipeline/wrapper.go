package pipeline

import (
	"fmt"
	"time"

	"github.com/taskstream/taskstream/internal/task"
)

// Wrapped carries a record through the stage chain together with keys
// derived once at wrap time. It never outlives one chain execution and is
// never serialized.
type Wrapped struct {
	Task      task.Record
	WrappedID string
	SortKey1  int64
	SortKey2  int
	FilterTag string
	WrappedAt int64 // monotonic wrap timestamp, provenance only
}

func Wrap(rec task.Record) Wrapped {
	return Wrapped{
		Task:      rec,
		WrappedID: fmt.Sprintf("WRAP_%d", rec.ID),
		SortKey1:  rec.ID,
		SortKey2:  rec.EstimatedHours,
		FilterTag: rec.Category + "_" + string(rec.Status),
		WrappedAt: time.Now().UnixNano(),
	}
}
