package task

import "time"

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// Statuses lists every status in declaration order; generation picks
// uniformly from this slice.
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted, StatusCancelled}

type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// Priorities lists every priority in ascending order (LOW first).
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

var priorityRank = map[Priority]int{
	PriorityLow:      0,
	PriorityMedium:   1,
	PriorityHigh:     2,
	PriorityCritical: 3,
}

// Rank returns the position of p in the total order LOW < MEDIUM < HIGH < CRITICAL.
// Unknown priorities rank above CRITICAL so they sort last rather than
// interleaving with known ones.
func (p Priority) Rank() int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return len(priorityRank)
}

// Record is a single task as it crosses the wire between the backend and
// the proxy. Wrapper-internal fields are never part of this shape.
type Record struct {
	ID             int64     `json:"id"`
	UserID         string    `json:"userId"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Status         Status    `json:"status"`
	Priority       Priority  `json:"priority"`
	CreatedAt      time.Time `json:"createdAt"`
	DueDate        time.Time `json:"dueDate"`
	EstimatedHours int       `json:"estimatedHours"`
	Category       string    `json:"category"`
	Assignee       string    `json:"assignee"`
}
