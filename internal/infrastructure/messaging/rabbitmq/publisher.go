package rabbitmq

import (
	"context"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	zlog "github.com/rs/zerolog/log"
)

// Publisher maintains a single lazy connection behind a mutex. Any publish
// failure tears the connection down so the next call reconnects.
type Publisher struct {
	url  string
	topo Topology

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewPublisher(url string, topo Topology) *Publisher {
	return &Publisher{url: url, topo: topo}
}

// ConnectWithRetry dials once per second until the broker answers or the
// attempt budget is spent. Used at process startup; later reconnects are lazy.
func (p *Publisher) ConnectWithRetry(ctx context.Context, maxAttempts int) error {
	var last error
	for i := 0; i < maxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.mu.Lock()
		err := p.ensureLocked()
		p.mu.Unlock()
		if err == nil {
			return nil
		}
		last = err
		zlog.Warn().Err(err).Int("attempt", i+1).Msg("rabbitmq connect failed; retrying")

		t := time.NewTimer(time.Second)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return last
}

// ensureLocked opens the connection and channel and declares the topology.
// Caller holds p.mu.
func (p *Publisher) ensureLocked() error {
	if p.ch != nil {
		return nil
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}
	if err := Declare(ch, p.topo); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	p.conn = conn
	p.ch = ch
	return nil
}

func (p *Publisher) teardownLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Publish sends a persistent JSON message to the default exchange with the
// queue name as routing key. The mutex is held only across the publish call,
// never across reconnect sleeps.
func (p *Publisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	if routingKey == "" {
		return errors.New("missing routingKey")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureLocked(); err != nil {
		return err
	}

	err := p.ch.PublishWithContext(
		ctx,
		"", // default exchange
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		p.teardownLocked()
		return err
	}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.teardownLocked()
	return nil
}
