package domain

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

type TaskStatus string

const (
	StatusNew        TaskStatus = "NEW"
	StatusPending    TaskStatus = "PENDING"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusCompleted  TaskStatus = "COMPLETED"
	StatusFailed     TaskStatus = "FAILED"
	StatusCancelled  TaskStatus = "CANCELLED"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusNew, StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Terminal statuses never transition again; finished_at is set iff terminal.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// legalTransitions is the task lifecycle DAG. Every status mutation in the
// repository is a conditional UPDATE matching one of these edges.
var legalTransitions = map[TaskStatus][]TaskStatus{
	StatusNew:        {StatusPending, StatusCancelled},
	StatusPending:    {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusFailed},
}

func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	for _, t := range legalTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}
