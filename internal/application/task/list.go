package task

import (
	"context"

	"github.com/baechuer/task-dispatch/internal/domain"
)

func (s *Service) List(ctx context.Context, f ListFilter) ([]*domain.Task, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.List(ctx, f)
}
