package sampler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/ozxc44/queue-monitor-dev/internal/config"
	"github.com/ozxc44/queue-monitor-dev/internal/logger"
	"github.com/ozxc44/queue-monitor-dev/internal/queue"
)

// ErrSamplerUnavailable wraps backend transport and connection failures.
var ErrSamplerUnavailable = errors.New("sampler unavailable")

type Sampler interface {
	Sample(ctx context.Context, queueName string) (queue.Sample, error)
	Close() error
}

// redisClient is the subset of *redis.Client the samplers use.
type redisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
	ZCard(ctx context.Context, key string) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	HMGet(ctx context.Context, key string, fields ...string) *redis.SliceCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	Close() error
}

// New connects to Redis and returns the sampler for the configured backend.
func New(ctx context.Context, cfg config.BackendConfig, clock clockwork.Clock) (Sampler, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DisableIdentity = true
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		// Not fatal: each cycle retries and reports the queue as unavailable.
		logger.Warn("SAMPLER", "Redis at %s not reachable yet: %v", opts.Addr, err)
	} else {
		logger.Info("SAMPLER", "Connected to Redis at %s", opts.Addr)
	}

	switch cfg.Type {
	case config.BackendRQ:
		return NewRQSampler(client, clock, cfg.HeartbeatTimeout()), nil
	case config.BackendCelery:
		return NewCelerySampler(client, clock, cfg.CeleryWorkerPattern), nil
	default:
		_ = client.Close()
		return nil, fmt.Errorf("unknown backend type %q", cfg.Type)
	}
}

func unavailable(queueName, op string, err error) error {
	return fmt.Errorf("%w: queue %s: %s: %w", ErrSamplerUnavailable, queueName, op, err)
}
