package sampler

import (
	"context"

	"github.com/jonboulle/clockwork"

	"github.com/ozxc44/queue-monitor-dev/internal/queue"
)

const celeryScanCount = 100

// CelerySampler reads a Celery Redis broker. Only the waiting count is
// visible on the broker; active, delayed and failed are reported as zero.
// Workers are counted by keys matching workerPattern, which shows presence
// rather than liveness.
type CelerySampler struct {
	client        redisClient
	clock         clockwork.Clock
	workerPattern string
}

func NewCelerySampler(client redisClient, clock clockwork.Clock, workerPattern string) *CelerySampler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CelerySampler{client: client, clock: clock, workerPattern: workerPattern}
}

func (c *CelerySampler) Sample(ctx context.Context, queueName string) (queue.Sample, error) {
	waiting, err := c.client.LLen(ctx, queueName).Result()
	if err != nil {
		return queue.Sample{}, unavailable(queueName, "waiting", err)
	}

	workers, err := c.countWorkers(ctx)
	if err != nil {
		return queue.Sample{}, unavailable(queueName, "workers", err)
	}

	return queue.Sample{
		Queue:     queueName,
		Waiting:   waiting,
		Workers:   workers,
		SampledAt: c.clock.Now(),
	}, nil
}

func (c *CelerySampler) countWorkers(ctx context.Context) (int64, error) {
	var (
		cursor uint64
		count  int64
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.workerPattern, celeryScanCount).Result()
		if err != nil {
			return 0, err
		}
		count += int64(len(keys))
		if next == 0 {
			return count, nil
		}
		cursor = next
	}
}

func (c *CelerySampler) Close() error {
	return c.client.Close()
}
