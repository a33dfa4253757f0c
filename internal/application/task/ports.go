package task

import (
	"context"
	"time"

	"github.com/baechuer/task-dispatch/internal/domain"
)

type Clock interface {
	Now() time.Time
}

type ListFilter struct {
	Limit    int
	Offset   int
	Status   *domain.TaskStatus
	Priority *domain.Priority
}

// TaskRepo is the persistence port. Conditional updaters return the number of
// affected rows; zero means the precondition did not hold and is not an error.
type TaskRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	List(ctx context.Context, f ListFilter) ([]*domain.Task, error)
	Cancel(ctx context.Context, id string, now time.Time) (int64, error)

	WithTx(ctx context.Context, fn func(tr TxTaskRepo) error) error
}

// TxTaskRepo is the slice of the repository available inside a transaction.
// The create path co-commits the task row, the NEW -> PENDING transition and
// the outbox row; the worker claims and finishes tasks in one transaction so
// a rollback reverts the claim.
type TxTaskRepo interface {
	CreateTask(ctx context.Context, t *domain.Task) error
	TransitionToPending(ctx context.Context, id string) (int64, error)
	InsertOutbox(ctx context.Context, ev *domain.OutboxEvent) error

	Claim(ctx context.Context, id string, now time.Time) (int64, error)
	Complete(ctx context.Context, id, result string, now time.Time) (int64, error)
	Fail(ctx context.Context, id, errMsg string, now time.Time) (int64, error)
}

// Publisher pushes a message body to a broker queue (default exchange,
// routing key = queue name).
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// Cache is an optional read cache. Only immutable values (terminal task
// statuses) are ever stored in it.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}
