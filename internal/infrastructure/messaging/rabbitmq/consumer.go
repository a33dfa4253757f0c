package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/baechuer/task-dispatch/internal/application/task"
	"github.com/baechuer/task-dispatch/internal/logger"
)

const retryCountHeader = "x-retry-count"

// TaskStore is the slice of the repository the worker needs: one transaction
// per delivery, claim and terminal transition co-committed.
type TaskStore interface {
	WithTx(ctx context.Context, fn func(tr task.TxTaskRepo) error) error
}

// ExecuteFunc runs the task workload and returns its result string.
type ExecuteFunc func(ctx context.Context, taskID string) (string, error)

// DefaultExecute is the placeholder workload.
func DefaultExecute(ctx context.Context, taskID string) (string, error) {
	return "ok:" + taskID, nil
}

// publishFunc matches amqp.Channel.PublishWithContext; injected in tests.
type publishFunc func(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error

// Worker consumes the primary queues, claims tasks via the conditional
// PENDING -> IN_PROGRESS update and routes failures through the retry lanes
// or the DLQ.
type Worker struct {
	url     string
	topo    Topology
	store   TaskStore
	execute ExecuteFunc

	queues     []string
	prefetch   int
	maxRetries int

	conn    *amqp.Connection
	channel *amqp.Channel
	publish publishFunc

	log zerolog.Logger
}

type WorkerOptions struct {
	Queues     []string // subset of topo.Primaries, priority order
	Prefetch   int
	MaxRetries int
	Execute    ExecuteFunc
}

func NewWorker(url string, topo Topology, store TaskStore, opts WorkerOptions) *Worker {
	if len(opts.Queues) == 0 {
		opts.Queues = topo.Primaries
	}
	if opts.Prefetch < 1 {
		opts.Prefetch = 1
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 5
	}
	if opts.Execute == nil {
		opts.Execute = DefaultExecute
	}
	return &Worker{
		url:        url,
		topo:       topo,
		store:      store,
		execute:    opts.Execute,
		queues:     opts.Queues,
		prefetch:   opts.Prefetch,
		maxRetries: opts.MaxRetries,
		log:        logger.Logger.With().Str("component", "task_worker").Logger(),
	}
}

// connectWithRetry dials once per second for up to maxAttempts iterations.
func (w *Worker) connectWithRetry(ctx context.Context, maxAttempts int) error {
	var last error
	for i := 0; i < maxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := amqp.Dial(w.url)
		if err == nil {
			w.conn = conn
			return nil
		}
		last = err
		w.log.Warn().Err(err).Int("attempt", i+1).Msg("rabbitmq connect failed; retrying")

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

// Run blocks until ctx is cancelled or the broker connection dies. In-flight
// deliveries that were not acked are redelivered by the broker.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.connectWithRetry(ctx, 120); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer w.Close()

	ch, err := w.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	w.channel = ch
	w.publish = ch.PublishWithContext

	if err := Declare(ch, w.topo); err != nil {
		return err
	}
	if err := ch.Qos(w.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	done := make(chan error, len(w.queues))
	for _, q := range w.queues {
		msgs, err := ch.Consume(q, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("consume %s: %w", q, err)
		}
		go func(queue string, msgs <-chan amqp.Delivery) {
			for {
				select {
				case <-ctx.Done():
					done <- nil
					return
				case d, ok := <-msgs:
					if !ok {
						done <- fmt.Errorf("consumer channel for %s closed", queue)
						return
					}
					w.handleDelivery(ctx, d)
				}
			}
		}(q, msgs)
	}

	w.log.Info().
		Strs("queues", w.queues).
		Int("prefetch", w.prefetch).
		Int("max_retries", w.maxRetries).
		Msg("worker started")

	select {
	case <-ctx.Done():
		return nil
	case err := <-done:
		return err
	}
}

func (w *Worker) Close() error {
	if w.channel != nil {
		_ = w.channel.Close()
	}
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}

// handleDelivery is the full retry/DLQ protocol. Execution failures take a
// delayed retry lane after the task row has transitioned to FAILED;
// infrastructure failures roll the claim back and republish to the same
// primary queue so another worker can attempt it immediately.
func (w *Worker) handleDelivery(ctx context.Context, d amqp.Delivery) {
	taskID, err := parseTaskID(d.Body)
	if err != nil {
		w.log.Error().Err(err).Str("queue", d.RoutingKey).Msg("malformed message; routing to dlq")
		w.toDLQ(ctx, d)
		_ = d.Ack(false)
		return
	}

	log := w.log.With().Str("task_id", taskID).Str("queue", d.RoutingKey).Logger()

	var claimed bool
	var execErr error
	txErr := w.store.WithTx(ctx, func(tr task.TxTaskRepo) error {
		now := time.Now().UTC()
		n, err := tr.Claim(ctx, taskID, now)
		if err != nil {
			return err
		}
		if n == 0 {
			// duplicate delivery or cancelled task; commit the no-op
			return nil
		}
		claimed = true

		result, xerr := w.execute(ctx, taskID)
		if xerr != nil {
			execErr = xerr
			_, err := tr.Fail(ctx, taskID, xerr.Error(), time.Now().UTC())
			return err
		}
		_, err = tr.Complete(ctx, taskID, result, time.Now().UTC())
		return err
	})

	if txErr != nil {
		// Infrastructure failure: the rollback reverted any claim, so the
		// task row is untouched and an immediate re-attempt is safe.
		log.Error().Err(txErr).Msg("infrastructure error; republishing")
		n := retryCount(d.Headers) + 1
		if n > w.maxRetries {
			w.toDLQ(ctx, d)
		} else {
			w.republish(ctx, d.RoutingKey, d, n)
		}
		_ = d.Ack(false)
		return
	}

	if !claimed {
		log.Debug().Msg("claim matched no row; skipping")
		_ = d.Ack(false)
		return
	}

	if execErr != nil {
		// The task row is already FAILED; the delayed retry is a best-effort
		// re-enqueue for operational inspection, not a re-execution.
		n := retryCount(d.Headers) + 1
		if n > w.maxRetries {
			log.Error().Err(execErr).Int("retry", n).Msg("execution failed; retries exhausted, routing to dlq")
			w.toDLQWithRetry(ctx, d, n)
		} else {
			lane := w.topo.LaneForRetry(d.RoutingKey, n)
			log.Warn().Err(execErr).Int("retry", n).Str("lane", lane).Msg("execution failed; scheduling delayed retry")
			w.republish(ctx, lane, d, n)
		}
		_ = d.Ack(false)
		return
	}

	log.Info().Msg("task completed")
	_ = d.Ack(false)
}

func parseTaskID(body []byte) (string, error) {
	var msg task.TaskMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return "", err
	}
	id, err := uuid.Parse(msg.TaskID)
	if err != nil {
		return "", fmt.Errorf("invalid task_id %q: %w", msg.TaskID, err)
	}
	return id.String(), nil
}

func retryCount(headers amqp.Table) int {
	switch v := headers[retryCountHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func copyHeaders(h amqp.Table) amqp.Table {
	out := make(amqp.Table, len(h)+1)
	for k, v := range h {
		out[k] = v
	}
	return out
}

func (w *Worker) forward(ctx context.Context, routingKey string, d amqp.Delivery, headers amqp.Table) {
	err := w.publish(ctx, "", routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Headers:      headers,
		Body:         d.Body,
	})
	if err != nil {
		w.log.Error().Err(err).Str("queue", routingKey).Msg("republish failed")
	}
}

// republish re-enqueues the original body with x-retry-count set to n.
func (w *Worker) republish(ctx context.Context, routingKey string, d amqp.Delivery, n int) {
	headers := copyHeaders(d.Headers)
	headers[retryCountHeader] = int32(n)
	w.forward(ctx, routingKey, d, headers)
}

// toDLQ forwards the delivery with its headers preserved.
func (w *Worker) toDLQ(ctx context.Context, d amqp.Delivery) {
	w.forward(ctx, w.topo.DLQ, d, copyHeaders(d.Headers))
}

// toDLQWithRetry additionally records the exhausted retry count.
func (w *Worker) toDLQWithRetry(ctx context.Context, d amqp.Delivery, n int) {
	headers := copyHeaders(d.Headers)
	headers[retryCountHeader] = int32(n)
	w.forward(ctx, w.topo.DLQ, d, headers)
}
