package rabbitmq

import (
	"context"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/task-dispatch/internal/application/task"
	"github.com/baechuer/task-dispatch/internal/domain"
)

const testTaskID = "5f0c9f2e-7c3a-4a7e-9d71-2a2cf8d3c001"

// fakeAck records manual acknowledgements on a delivery.
type fakeAck struct {
	acks  int
	nacks int
}

func (a *fakeAck) Ack(tag uint64, multiple bool) error           { a.acks++; return nil }
func (a *fakeAck) Nack(tag uint64, multiple, requeue bool) error { a.nacks++; return nil }
func (a *fakeAck) Reject(tag uint64, requeue bool) error         { a.nacks++; return nil }

// fakeStore scripts the conditional updates inside the worker transaction.
type fakeStore struct {
	claimN     int64
	claimErr   error
	completed  []string
	failed     []string
	rolledBack bool
}

func (s *fakeStore) WithTx(ctx context.Context, fn func(tr task.TxTaskRepo) error) error {
	if err := fn(s); err != nil {
		s.rolledBack = true
		return err
	}
	return nil
}

func (s *fakeStore) CreateTask(ctx context.Context, t *domain.Task) error { return nil }
func (s *fakeStore) TransitionToPending(ctx context.Context, id string) (int64, error) {
	return 0, nil
}
func (s *fakeStore) InsertOutbox(ctx context.Context, ev *domain.OutboxEvent) error { return nil }

func (s *fakeStore) Claim(ctx context.Context, id string, now time.Time) (int64, error) {
	return s.claimN, s.claimErr
}

func (s *fakeStore) Complete(ctx context.Context, id, result string, now time.Time) (int64, error) {
	s.completed = append(s.completed, result)
	return 1, nil
}

func (s *fakeStore) Fail(ctx context.Context, id, errMsg string, now time.Time) (int64, error) {
	s.failed = append(s.failed, errMsg)
	return 1, nil
}

type published struct {
	key string
	msg amqp.Publishing
}

func newTestWorker(store TaskStore, opts WorkerOptions, sink *[]published) *Worker {
	w := NewWorker("amqp://unused", DefaultTopology(), store, opts)
	w.publish = func(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
		*sink = append(*sink, published{key: key, msg: msg})
		return nil
	}
	return w
}

func delivery(ack amqp.Acknowledger, queue string, body []byte, headers amqp.Table) amqp.Delivery {
	return amqp.Delivery{
		Acknowledger: ack,
		RoutingKey:   queue,
		Body:         body,
		Headers:      headers,
		ContentType:  "application/json",
	}
}

func validBody() []byte {
	return []byte(`{"task_id":"` + testTaskID + `","priority":"HIGH"}`)
}

func TestWorker_MalformedBodyGoesToDLQ(t *testing.T) {
	var out []published
	store := &fakeStore{}
	w := newTestWorker(store, WorkerOptions{}, &out)

	ack := &fakeAck{}
	body := []byte("not-json")
	w.handleDelivery(context.Background(), delivery(ack, "tasks.high", body, nil))

	require.Len(t, out, 1)
	assert.Equal(t, "tasks.dlq", out[0].key)
	assert.Equal(t, body, out[0].msg.Body)
	assert.Equal(t, 1, ack.acks)
	assert.Empty(t, store.completed, "no db work for malformed bodies")
}

func TestWorker_InvalidUUIDGoesToDLQ(t *testing.T) {
	var out []published
	w := newTestWorker(&fakeStore{}, WorkerOptions{}, &out)

	ack := &fakeAck{}
	w.handleDelivery(context.Background(), delivery(ack, "tasks.low", []byte(`{"task_id":"nope","priority":"LOW"}`), nil))

	require.Len(t, out, 1)
	assert.Equal(t, "tasks.dlq", out[0].key)
	assert.Equal(t, 1, ack.acks)
}

func TestWorker_SuccessCompletesAndAcks(t *testing.T) {
	var out []published
	store := &fakeStore{claimN: 1}
	w := newTestWorker(store, WorkerOptions{}, &out)

	ack := &fakeAck{}
	w.handleDelivery(context.Background(), delivery(ack, "tasks.high", validBody(), nil))

	assert.Empty(t, out)
	assert.Equal(t, 1, ack.acks)
	require.Len(t, store.completed, 1)
	assert.Equal(t, "ok:"+testTaskID, store.completed[0])
}

func TestWorker_UnclaimedDeliveryIsAckedAndSkipped(t *testing.T) {
	// Task already claimed by another worker, or cancelled: the conditional
	// update matches no row and the delivery is absorbed.
	var out []published
	store := &fakeStore{claimN: 0}
	w := newTestWorker(store, WorkerOptions{}, &out)

	ack := &fakeAck{}
	w.handleDelivery(context.Background(), delivery(ack, "tasks.medium", validBody(), nil))

	assert.Empty(t, out)
	assert.Equal(t, 1, ack.acks)
	assert.Empty(t, store.completed)
	assert.Empty(t, store.failed)
}

func TestWorker_ExecutionFailureTakesDelayedLane(t *testing.T) {
	var out []published
	store := &fakeStore{claimN: 1}
	w := newTestWorker(store, WorkerOptions{
		MaxRetries: 5,
		Execute: func(ctx context.Context, taskID string) (string, error) {
			return "", errors.New("boom")
		},
	}, &out)

	ack := &fakeAck{}
	headers := amqp.Table{"x-retry-count": int32(2)}
	w.handleDelivery(context.Background(), delivery(ack, "tasks.high", validBody(), headers))

	// retry 3 maps to the 30s lane
	require.Len(t, out, 1)
	assert.Equal(t, "tasks.high.retry.30s", out[0].key)
	assert.Equal(t, int32(3), out[0].msg.Headers["x-retry-count"])
	assert.Equal(t, validBody(), out[0].msg.Body)
	assert.Equal(t, 1, ack.acks)

	require.Len(t, store.failed, 1)
	assert.Equal(t, "boom", store.failed[0])
	assert.False(t, store.rolledBack, "FAILED transition must commit")
}

func TestWorker_ExecutionFailurePastMaxRetriesGoesToDLQ(t *testing.T) {
	var out []published
	store := &fakeStore{claimN: 1}
	w := newTestWorker(store, WorkerOptions{
		MaxRetries: 5,
		Execute: func(ctx context.Context, taskID string) (string, error) {
			return "", errors.New("boom")
		},
	}, &out)

	ack := &fakeAck{}
	headers := amqp.Table{"x-retry-count": int32(5)}
	w.handleDelivery(context.Background(), delivery(ack, "tasks.high", validBody(), headers))

	require.Len(t, out, 1)
	assert.Equal(t, "tasks.dlq", out[0].key)
	assert.Equal(t, int32(6), out[0].msg.Headers["x-retry-count"])
	assert.Equal(t, 1, ack.acks)
}

func TestWorker_InfraFailureRepublishesToSameQueue(t *testing.T) {
	// The claim rolled back, so the retry goes straight back to the primary
	// queue: no delay lane, another worker can claim immediately.
	var out []published
	store := &fakeStore{claimErr: errors.New("db connection lost")}
	w := newTestWorker(store, WorkerOptions{MaxRetries: 5}, &out)

	ack := &fakeAck{}
	w.handleDelivery(context.Background(), delivery(ack, "tasks.medium", validBody(), nil))

	require.Len(t, out, 1)
	assert.Equal(t, "tasks.medium", out[0].key)
	assert.Equal(t, int32(1), out[0].msg.Headers["x-retry-count"])
	assert.Equal(t, 1, ack.acks)
	assert.True(t, store.rolledBack)
	assert.Empty(t, store.failed, "no task transition on infra failure")
}

func TestWorker_InfraFailurePastMaxRetriesGoesToDLQ(t *testing.T) {
	var out []published
	store := &fakeStore{claimErr: errors.New("db connection lost")}
	w := newTestWorker(store, WorkerOptions{MaxRetries: 5}, &out)

	ack := &fakeAck{}
	body := validBody()
	headers := amqp.Table{"x-retry-count": int32(9999)}
	w.handleDelivery(context.Background(), delivery(ack, "tasks.high", body, headers))

	require.Len(t, out, 1)
	assert.Equal(t, "tasks.dlq", out[0].key)
	assert.Equal(t, body, out[0].msg.Body)
	assert.Equal(t, 1, ack.acks)
}

func TestRetryCountHeader(t *testing.T) {
	assert.Equal(t, 0, retryCount(nil))
	assert.Equal(t, 0, retryCount(amqp.Table{}))
	assert.Equal(t, 3, retryCount(amqp.Table{"x-retry-count": int32(3)}))
	assert.Equal(t, 4, retryCount(amqp.Table{"x-retry-count": int64(4)}))
	assert.Equal(t, 5, retryCount(amqp.Table{"x-retry-count": 5}))
	assert.Equal(t, 0, retryCount(amqp.Table{"x-retry-count": "garbage"}))
}
