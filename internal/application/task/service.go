package task

import "time"

// QueueNames resolves a task priority to its primary queue.
type QueueNames struct {
	High   string
	Medium string
	Low    string
}

func (q QueueNames) ForPriority(p string) string {
	switch p {
	case "HIGH":
		return q.High
	case "LOW":
		return q.Low
	default:
		return q.Medium
	}
}

type Service struct {
	repo   TaskRepo
	pub    Publisher
	cache  Cache
	clock  Clock
	queues QueueNames

	statusTTL time.Duration
}

func New(repo TaskRepo, clock Clock, pub Publisher, cache Cache, queues QueueNames) *Service {
	if queues.High == "" {
		queues = QueueNames{High: "tasks.high", Medium: "tasks.medium", Low: "tasks.low"}
	}
	return &Service{
		repo:      repo,
		pub:       pub,
		cache:     cache,
		clock:     clock,
		queues:    queues,
		statusTTL: 10 * time.Minute,
	}
}
