package rabbitmq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryLaneName(t *testing.T) {
	assert.Equal(t, "tasks.high.retry.1s", RetryLaneName("tasks.high", 1))
	assert.Equal(t, "tasks.medium.retry.30s", RetryLaneName("tasks.medium", 30))
	assert.Equal(t, "tasks.low.retry.120s", RetryLaneName("tasks.low", 120))
}

func TestRetryLaneArgs(t *testing.T) {
	// Every lane parks a message for exactly its named delay, then the broker
	// dead-letters it back to the primary through the default exchange.
	for _, primary := range DefaultTopology().Primaries {
		for _, d := range DefaultTopology().RetryDelays {
			args := retryLaneArgs(primary, d)
			assert.Equal(t, int64(d)*1000, args["x-message-ttl"], "lane %s.retry.%ds", primary, d)
			assert.Equal(t, "", args["x-dead-letter-exchange"])
			assert.Equal(t, primary, args["x-dead-letter-routing-key"])
		}
	}
}

func TestLaneForRetry(t *testing.T) {
	topo := DefaultTopology()

	assert.Equal(t, "tasks.high.retry.1s", topo.LaneForRetry("tasks.high", 1))
	assert.Equal(t, "tasks.high.retry.5s", topo.LaneForRetry("tasks.high", 2))
	assert.Equal(t, "tasks.high.retry.30s", topo.LaneForRetry("tasks.high", 3))
	assert.Equal(t, "tasks.high.retry.120s", topo.LaneForRetry("tasks.high", 4))
	// past the end of the schedule the longest delay is reused
	assert.Equal(t, "tasks.high.retry.120s", topo.LaneForRetry("tasks.high", 5))
	assert.Equal(t, "tasks.high.retry.120s", topo.LaneForRetry("tasks.high", 99))
}
