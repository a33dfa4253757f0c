package task

import "context"

// NoopPublisher is wired when RABBITMQ_ENABLED=false: creates still succeed
// and the outbox rows remain as an audit log.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	return nil
}
