package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv string

	HTTPAddr    string
	DatabaseURL string

	// RabbitMQ
	RabbitURL     string
	RabbitEnabled bool

	// Queue topology
	QueueHigh   string
	QueueMedium string
	QueueLow    string
	DLQ         string

	// Worker
	WorkerPrefetch int
	WorkerQueues   []string
	MaxRetries     int
	RetryDelays    []int // seconds, ascending

	// Outbox publisher
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int

	// Optional terminal-status cache
	RedisURL string

	LogLevel  string
	LogFormat string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.AppEnv = getEnv("APP_ENV", "dev")
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")

	cfg.DatabaseURL = getEnv("DATABASE_URL", "")
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = postgresURLFromParts()
	}

	cfg.RabbitURL = getEnv("RABBITMQ_URL", "")
	cfg.RabbitEnabled = getBool("RABBITMQ_ENABLED", true)

	cfg.QueueHigh = getEnv("TASKS_QUEUE_HIGH", "tasks.high")
	cfg.QueueMedium = getEnv("TASKS_QUEUE_MEDIUM", "tasks.medium")
	cfg.QueueLow = getEnv("TASKS_QUEUE_LOW", "tasks.low")
	cfg.DLQ = getEnv("TASKS_QUEUE_DLQ", "tasks.dlq")

	cfg.WorkerPrefetch = getInt("WORKER_PREFETCH", 1)
	cfg.MaxRetries = getInt("MAX_RETRIES", 5)

	// Subset of primary queues, highest priority first.
	if raw := getEnv("WORKER_QUEUES", ""); raw != "" {
		for _, q := range strings.Split(raw, ",") {
			if q = strings.TrimSpace(q); q != "" {
				cfg.WorkerQueues = append(cfg.WorkerQueues, q)
			}
		}
	} else {
		cfg.WorkerQueues = []string{cfg.QueueHigh, cfg.QueueMedium, cfg.QueueLow}
	}

	delays, err := parseDelays(getEnv("RETRY_DELAYS_SECONDS", "1,5,30,120"))
	if err != nil {
		return nil, err
	}
	cfg.RetryDelays = delays

	cfg.OutboxPollInterval = getSeconds("OUTBOX_POLL_INTERVAL", 500*time.Millisecond)
	cfg.OutboxBatchSize = getInt("OUTBOX_BATCH_SIZE", 200)
	cfg.OutboxMaxAttempts = getInt("OUTBOX_MAX_ATTEMPTS", 20)

	cfg.RedisURL = getEnv("REDIS_URL", "")

	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "console")

	cfg.HTTPReadTimeout = getDuration("HTTP_READ_TIMEOUT", 10*time.Second)
	cfg.HTTPWriteTimeout = getDuration("HTTP_WRITE_TIMEOUT", 20*time.Second)
	cfg.HTTPIdleTimeout = getDuration("HTTP_IDLE_TIMEOUT", 60*time.Second)

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("missing DATABASE_URL (or POSTGRES_* parts)")
	}
	if cfg.RabbitEnabled && cfg.RabbitURL == "" {
		return nil, fmt.Errorf("missing RABBITMQ_URL (required unless RABBITMQ_ENABLED=false)")
	}
	if cfg.WorkerPrefetch < 1 {
		return nil, fmt.Errorf("WORKER_PREFETCH must be >= 1")
	}
	if cfg.OutboxBatchSize < 1 {
		return nil, fmt.Errorf("OUTBOX_BATCH_SIZE must be >= 1")
	}

	return cfg, nil
}

// QueueForPriority maps a task priority string to its primary queue name.
func (c *Config) QueueForPriority(priority string) string {
	switch priority {
	case "HIGH":
		return c.QueueHigh
	case "LOW":
		return c.QueueLow
	default:
		return c.QueueMedium
	}
}

func postgresURLFromParts() string {
	db := getEnv("POSTGRES_DB", "")
	user := getEnv("POSTGRES_USER", "")
	if db == "" || user == "" {
		return ""
	}
	pass := getEnv("POSTGRES_PASSWORD", "")
	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, pass),
		Host:   host + ":" + port,
		Path:   "/" + db,
	}
	q := u.Query()
	q.Set("sslmode", getEnv("POSTGRES_SSLMODE", "disable"))
	u.RawQuery = q.Encode()
	return u.String()
}

func parseDelays(raw string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("RETRY_DELAYS_SECONDS must be comma-separated positive ints, got %q", part)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("RETRY_DELAYS_SECONDS must not be empty")
	}
	return out, nil
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	return v == "true" || v == "1" || v == "yes"
}

func getDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// getSeconds reads a float number of seconds ("0.5" means 500ms).
func getSeconds(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return def
	}
	return time.Duration(f * float64(time.Second))
}
