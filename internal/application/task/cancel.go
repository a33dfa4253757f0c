package task

import (
	"context"

	"github.com/baechuer/task-dispatch/internal/domain"
)

// Cancel performs the conditional NEW/PENDING -> CANCELLED update. When the
// update matches no row the task is re-read: a row that raced into a
// non-cancelable status yields Conflict, never a false success.
func (s *Service) Cancel(ctx context.Context, id string) (*domain.Task, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.Cancelable() {
		return nil, domain.ErrConflict("cannot cancel task in status " + string(t.Status))
	}

	now := s.clock.Now().UTC()
	n, err := s.repo.Cancel(ctx, id, now)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// A worker claimed the task between the read and the update.
		return nil, domain.ErrConflict("task no longer cancelable")
	}

	return s.repo.GetByID(ctx, id)
}
