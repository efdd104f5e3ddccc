// Package queue implements the durable job broker on Redis. Jobs are keyed
// by a caller-chosen id, claimed FIFO by named workers, and carry a progress
// snapshot plus terminal result or error on a per-job hash.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jmylchreest/cliparr/internal/config"
	"github.com/jmylchreest/cliparr/internal/observability"
)

// Sentinel errors surfaced by broker operations.
var (
	// ErrDuplicateJob means the job id is already registered in a
	// non-terminal state.
	ErrDuplicateJob = errors.New("job id already queued or running")

	// ErrNoJob means the blocking claim timed out with an empty queue.
	ErrNoJob = errors.New("no job available")

	// ErrWorkerRegistered means another live worker holds this name.
	ErrWorkerRegistered = errors.New("worker name already registered")
)

// BrokerError wraps transport-level Redis failures so that callers can
// distinguish "broker unreachable" from domain errors and back off.
type BrokerError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *BrokerError) Error() string {
	return fmt.Sprintf("broker %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *BrokerError) Unwrap() error { return e.Err }

// brokerErr wraps err as a BrokerError unless it already carries domain
// meaning.
func brokerErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &BrokerError{Op: op, Err: err}
}

// Broker is the Redis-backed job queue. All methods are safe for concurrent
// use; atomicity relies on Redis transactions, not client-side locks.
type Broker struct {
	client            *redis.Client
	namespace         string
	queue             string
	terminalRetention time.Duration
	heartbeatTTL      time.Duration
	logger            *slog.Logger
}

// New connects to Redis using the given configuration and verifies the
// connection with a ping.
func New(cfg config.RedisConfig, logger *slog.Logger) (*Broker, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  time.Duration(cfg.DialTimeout),
		ReadTimeout:  time.Duration(cfg.ReadTimeout),
		WriteTimeout: time.Duration(cfg.WriteTimeout),
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}

	b := NewWithClient(client, cfg.Namespace, cfg.Queue, logger)
	b.terminalRetention = time.Duration(cfg.TerminalRetention)

	logger.Info("connected to job broker",
		slog.String("addr", cfg.Addr),
		slog.Int("db", cfg.DB),
		slog.String("namespace", cfg.Namespace),
	)
	return b, nil
}

// NewWithClient wraps an existing Redis client. Used by tests running
// against miniredis.
func NewWithClient(client *redis.Client, namespace, queueName string, logger *slog.Logger) *Broker {
	if namespace == "" {
		namespace = config.DefaultRedisNamespace
	}
	if queueName == "" {
		queueName = config.DefaultQueueName
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		client:            client,
		namespace:         namespace,
		queue:             queueName,
		terminalRetention: 24 * time.Hour,
		heartbeatTTL:      90 * time.Second,
		logger:            observability.WithComponent(logger, "queue"),
	}
}

// WithHeartbeatTTL sets how long a worker registration survives without a
// heartbeat refresh.
func (b *Broker) WithHeartbeatTTL(ttl time.Duration) *Broker {
	if ttl > 0 {
		b.heartbeatTTL = ttl
	}
	return b
}

// QueueName returns the queue this broker enqueues to by default.
func (b *Broker) QueueName() string { return b.queue }

// HeartbeatTTL returns how long a worker registration survives without a
// heartbeat refresh. Claims held past this age count as stale.
func (b *Broker) HeartbeatTTL() time.Duration { return b.heartbeatTTL }

// Ping verifies the broker connection is alive.
func (b *Broker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (b *Broker) Close() error {
	return b.client.Close()
}

/// Key builders. The layout mirrors an RQ-style broker: one list per queue,
// one hash per job, one hash per worker registration.

func (b *Broker) queueKey(name string) string {
	return fmt.Sprintf("%s:queue:%s", b.namespace, name)
}

func (b *Broker) jobKey(id string) string {
	return fmt.Sprintf("%s:job:%s", b.namespace, id)
}

func (b *Broker) workerKey(name string) string {
	return fmt.Sprintf("%s:worker:%s", b.namespace, name)
}

func (b *Broker) runningKey() string {
	return b.namespace + ":running"
}

func (b *Broker) workerIndexKey() string {
	return b.namespace + ":workers"
}
