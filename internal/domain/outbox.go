package domain

import (
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxNew    OutboxStatus = "NEW"
	OutboxSent   OutboxStatus = "SENT"
	OutboxFailed OutboxStatus = "FAILED"
)

// OutboxEvent is a persisted intent to publish a broker message. Rows are
// created in the same transaction as the NEW -> PENDING task transition and
// mutated only by the outbox publisher loop.
type OutboxEvent struct {
	ID         string
	TaskID     string
	RoutingKey string
	Payload    map[string]any
	Status     OutboxStatus

	Attempts      int
	NextAttemptAt time.Time
	LastError     *string

	CreatedAt time.Time
	SentAt    *time.Time
}

func NewOutboxEvent(taskID, routingKey string, payload map[string]any, now time.Time) *OutboxEvent {
	return &OutboxEvent{
		ID:            uuid.NewString(),
		TaskID:        taskID,
		RoutingKey:    routingKey,
		Payload:       payload,
		Status:        OutboxNew,
		NextAttemptAt: now.UTC(),
		CreatedAt:     now.UTC(),
	}
}
