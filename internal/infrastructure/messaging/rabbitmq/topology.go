package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Topology is the full queue layout: one durable primary queue per priority,
// a dead-letter queue, and one retry lane per (primary, delay) pair. A retry
// lane holds a message for its delay via per-message TTL, then the broker
// dead-letters it back to the primary through the default exchange. No
// in-process timers are involved.
type Topology struct {
	Primaries   []string // priority order, e.g. tasks.high, tasks.medium, tasks.low
	DLQ         string
	RetryDelays []int // seconds, ascending
}

func DefaultTopology() Topology {
	return Topology{
		Primaries:   []string{"tasks.high", "tasks.medium", "tasks.low"},
		DLQ:         "tasks.dlq",
		RetryDelays: []int{1, 5, 30, 120},
	}
}

func RetryLaneName(primary string, delaySeconds int) string {
	return fmt.Sprintf("%s.retry.%ds", primary, delaySeconds)
}

func retryLaneArgs(primary string, delaySeconds int) amqp.Table {
	return amqp.Table{
		"x-message-ttl":             int64(delaySeconds) * 1000,
		"x-dead-letter-exchange":    "", // default exchange
		"x-dead-letter-routing-key": primary,
	}
}

// LaneForRetry picks the delay lane for the n-th retry (1-based); retries past
// the end of the schedule reuse the longest delay.
func (t Topology) LaneForRetry(primary string, n int) string {
	idx := n - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(t.RetryDelays) {
		idx = len(t.RetryDelays) - 1
	}
	return RetryLaneName(primary, t.RetryDelays[idx])
}

// Declare sets up all queues idempotently. Safe to call from every process at
// startup; declarations with identical arguments are no-ops on the broker.
func Declare(ch *amqp.Channel, t Topology) error {
	for _, q := range t.Primaries {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
		for _, d := range t.RetryDelays {
			lane := RetryLaneName(q, d)
			if _, err := ch.QueueDeclare(lane, true, false, false, false, retryLaneArgs(q, d)); err != nil {
				return fmt.Errorf("declare retry lane %s: %w", lane, err)
			}
		}
	}
	if _, err := ch.QueueDeclare(t.DLQ, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dlq %s: %w", t.DLQ, err)
	}
	return nil
}
