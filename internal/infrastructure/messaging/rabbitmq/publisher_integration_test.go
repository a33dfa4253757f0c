package rabbitmq

import (
	"context"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRabbit(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3-management",
		ExposedPorts: []string{"5672/tcp"},
		WaitingFor:   wait.ForLog("Server startup complete"),
	}
	rabbitC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rabbitC.Terminate(ctx) })

	host, err := rabbitC.Host(ctx)
	require.NoError(t, err)
	port, err := rabbitC.MappedPort(ctx, "5672")
	require.NoError(t, err)
	return "amqp://guest:guest@" + host + ":" + port.Port()
}

func TestPublisher_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	url := startRabbit(t)

	topo := Topology{
		Primaries:   []string{"tasks.high", "tasks.medium", "tasks.low"},
		DLQ:         "tasks.dlq",
		RetryDelays: []int{1, 5, 30, 120},
	}

	p := NewPublisher(url, topo)
	require.NoError(t, p.ConnectWithRetry(ctx, 60))
	defer p.Close()

	t.Run("publish_lands_on_primary_queue", func(t *testing.T) {
		body := []byte(`{"task_id":"` + testTaskID + `","priority":"HIGH"}`)
		require.NoError(t, p.Publish(ctx, "tasks.high", body))

		conn, err := amqp.Dial(url)
		require.NoError(t, err)
		defer conn.Close()
		ch, err := conn.Channel()
		require.NoError(t, err)

		msg, ok, err := ch.Get("tasks.high", true)
		require.NoError(t, err)
		require.True(t, ok, "message should be waiting on tasks.high")
		assert.Equal(t, body, msg.Body)
		assert.Equal(t, "application/json", msg.ContentType)
		assert.Equal(t, uint8(amqp.Persistent), msg.DeliveryMode)
	})

	t.Run("retry_lane_dead_letters_back_to_primary", func(t *testing.T) {
		body := []byte(`{"task_id":"` + testTaskID + `","priority":"MEDIUM"}`)
		require.NoError(t, p.Publish(ctx, "tasks.medium.retry.1s", body))

		conn, err := amqp.Dial(url)
		require.NoError(t, err)
		defer conn.Close()
		ch, err := conn.Channel()
		require.NoError(t, err)

		// the 1s lane should route the message back within a couple seconds
		deadline := time.After(5 * time.Second)
		for {
			msg, ok, err := ch.Get("tasks.medium", true)
			require.NoError(t, err)
			if ok {
				assert.Equal(t, body, msg.Body)
				return
			}
			select {
			case <-deadline:
				t.Fatal("message never returned from retry lane")
			case <-time.After(200 * time.Millisecond):
			}
		}
	})

	t.Run("reconnects_after_teardown", func(t *testing.T) {
		p.mu.Lock()
		p.teardownLocked()
		p.mu.Unlock()

		err := p.Publish(ctx, "tasks.low", []byte(`{"task_id":"`+testTaskID+`","priority":"LOW"}`))
		assert.NoError(t, err)
	})
}
