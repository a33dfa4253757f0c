package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MaxTitleLen       = 255
	MaxDescriptionLen = 10_000
)

type Task struct {
	ID          string
	Title       string
	Description *string
	Priority    Priority
	Status      TaskStatus

	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time

	Result *string
	Error  *string
}

// NewTask validates input and returns a task in status NEW. The NEW -> PENDING
// transition happens in the same transaction as the outbox insert.
func NewTask(title string, description *string, priority Priority, now time.Time) (*Task, error) {
	title = strings.TrimSpace(title)
	if title == "" || len(title) > MaxTitleLen {
		return nil, ErrValidation("title is required and must be <= 255 chars")
	}
	if description != nil && len(*description) > MaxDescriptionLen {
		return nil, ErrValidation("description must be <= 10000 chars")
	}
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.Valid() {
		return nil, ErrValidation("priority must be one of: LOW, MEDIUM, HIGH")
	}

	return &Task{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Priority:    priority,
		Status:      StatusNew,
		CreatedAt:   now.UTC(),
	}, nil
}

func (t *Task) Cancelable() bool {
	return t.Status == StatusNew || t.Status == StatusPending
}
