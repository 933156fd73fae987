package backend

import (
	"context"

	"github.com/taskstream/taskstream/internal/pipeline"
	"github.com/taskstream/taskstream/internal/task"
)

// Service synthesizes a fresh corpus and runs it through the stage chain,
// once per request. Nothing is cached or shared across requests.
type Service struct {
	gen   task.Generator
	chain *pipeline.Chain
	count int
}

func NewService(gen task.Generator, chain *pipeline.Chain, count int) *Service {
	return &Service{
		gen:   gen,
		chain: chain,
		count: count,
	}
}

// UserTasks returns the fully shaped result sequence for one user. The
// whole chain runs before the first element is available; callers stream
// from the returned slice.
func (s *Service) UserTasks(ctx context.Context, userID string) ([]task.Record, error) {
	return s.chain.Run(ctx, s.gen.Generate(s.count), userID)
}
