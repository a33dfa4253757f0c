package task

import (
	"context"
	"fmt"

	zlog "github.com/rs/zerolog/log"

	"github.com/baechuer/task-dispatch/internal/domain"
)

type CreateCmd struct {
	Title       string
	Description *string
	Priority    domain.Priority
}

// Create inserts the task, its outbox row and the NEW -> PENDING transition in
// one transaction, then attempts one best-effort synchronous publish. A failed
// publish is logged only; the outbox loop is the correctness backstop.
func (s *Service) Create(ctx context.Context, cmd CreateCmd) (*domain.Task, error) {
	now := s.clock.Now()

	t, err := domain.NewTask(cmd.Title, cmd.Description, cmd.Priority, now)
	if err != nil {
		return nil, err
	}

	routingKey := s.queues.ForPriority(string(t.Priority))
	payload, body, err := EncodeTaskMessage(t.ID, t.Priority)
	if err != nil {
		return nil, err
	}

	err = s.repo.WithTx(ctx, func(tr TxTaskRepo) error {
		if err := tr.CreateTask(ctx, t); err != nil {
			return err
		}
		if err := tr.InsertOutbox(ctx, domain.NewOutboxEvent(t.ID, routingKey, payload, now)); err != nil {
			return err
		}
		n, err := tr.TransitionToPending(ctx, t.ID)
		if err != nil {
			return err
		}
		if n != 1 {
			return fmt.Errorf("task %s: NEW -> PENDING affected %d rows", t.ID, n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	t.Status = domain.StatusPending

	if pubErr := s.pub.Publish(ctx, routingKey, body); pubErr != nil {
		zlog.Warn().
			Err(pubErr).
			Str("task_id", t.ID).
			Str("queue", routingKey).
			Msg("synchronous publish failed; outbox will retry")
	}

	return t, nil
}
