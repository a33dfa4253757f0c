package task

import (
	"context"

	zlog "github.com/rs/zerolog/log"

	"github.com/baechuer/task-dispatch/internal/domain"
)

func (s *Service) Get(ctx context.Context, id string) (*domain.Task, error) {
	return s.repo.GetByID(ctx, id)
}

func cacheKeyStatus(id string) string { return "task:status:" + id }

// Status returns just {id, status}. Terminal statuses are immutable, so they
// are served from the cache when one is wired.
func (s *Service) Status(ctx context.Context, id string) (domain.TaskStatus, error) {
	if s.cache != nil {
		if v, ok, err := s.cache.Get(ctx, cacheKeyStatus(id)); err == nil && ok {
			return domain.TaskStatus(v), nil
		}
	}

	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}

	if s.cache != nil && t.Status.Terminal() {
		if err := s.cache.Set(ctx, cacheKeyStatus(id), string(t.Status), s.statusTTL); err != nil {
			zlog.Warn().Err(err).Str("task_id", id).Msg("status cache set failed")
		}
	}
	return t.Status, nil
}
