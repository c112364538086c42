package sampler

import (
	"context"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ozxc44/queue-monitor-dev/internal/queue"
)

const (
	rqQueuePrefix     = "rq:queue:"
	rqStartedPrefix   = "rq:wip:"
	rqScheduledPrefix = "rq:scheduled:"
	rqDeferredPrefix  = "rq:deferred:"
	rqFailedPrefix    = "rq:failed:"
	rqQueueWorkers    = "rq:workers:"
	rqWorkerPrefix    = "rq:worker:"
)

// RQSampler reads Python RQ's Redis layout.
//
// Workers are counted by liveness, not registration: a worker counts only if
// its hash still exists (RQ expires it when heartbeats stop), its state is not
// stopped or suspended, and its last_heartbeat is within heartbeatTimeout.
type RQSampler struct {
	client           redisClient
	clock            clockwork.Clock
	heartbeatTimeout time.Duration
}

func NewRQSampler(client redisClient, clock clockwork.Clock, heartbeatTimeout time.Duration) *RQSampler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RQSampler{client: client, clock: clock, heartbeatTimeout: heartbeatTimeout}
}

func (r *RQSampler) Sample(ctx context.Context, queueName string) (queue.Sample, error) {
	s := queue.Sample{Queue: queueName}

	var err error
	if s.Waiting, err = r.client.LLen(ctx, rqQueuePrefix+queueName).Result(); err != nil {
		return queue.Sample{}, unavailable(queueName, "waiting", err)
	}
	if s.Active, err = r.client.ZCard(ctx, rqStartedPrefix+queueName).Result(); err != nil {
		return queue.Sample{}, unavailable(queueName, "active", err)
	}

	scheduled, err := r.client.ZCard(ctx, rqScheduledPrefix+queueName).Result()
	if err != nil {
		return queue.Sample{}, unavailable(queueName, "scheduled", err)
	}
	deferred, err := r.client.ZCard(ctx, rqDeferredPrefix+queueName).Result()
	if err != nil {
		return queue.Sample{}, unavailable(queueName, "deferred", err)
	}
	s.Delayed = scheduled + deferred

	if s.Failed, err = r.client.ZCard(ctx, rqFailedPrefix+queueName).Result(); err != nil {
		return queue.Sample{}, unavailable(queueName, "failed", err)
	}

	if s.Workers, err = r.liveWorkers(ctx, queueName); err != nil {
		return queue.Sample{}, err
	}

	s.SampledAt = r.clock.Now()
	return s, nil
}

func (r *RQSampler) liveWorkers(ctx context.Context, queueName string) (int64, error) {
	keys, err := r.client.SMembers(ctx, rqQueueWorkers+queueName).Result()
	if err != nil {
		return 0, unavailable(queueName, "workers", err)
	}

	now := r.clock.Now()
	var live int64
	for _, key := range keys {
		if !strings.HasPrefix(key, rqWorkerPrefix) {
			key = rqWorkerPrefix + key
		}
		vals, err := r.client.HMGet(ctx, key, "state", "last_heartbeat").Result()
		if err != nil {
			return 0, unavailable(queueName, "worker "+key, err)
		}
		if r.isLive(now, vals) {
			live++
		}
	}
	return live, nil
}

func (r *RQSampler) isLive(now time.Time, vals []interface{}) bool {
	if len(vals) != 2 || (vals[0] == nil && vals[1] == nil) {
		return false
	}

	state, _ := vals[0].(string)
	switch state {
	case "stopped", "suspended":
		return false
	}

	heartbeat, _ := vals[1].(string)
	if heartbeat == "" || r.heartbeatTimeout <= 0 {
		return true
	}
	// RQ writes "%Y-%m-%dT%H:%M:%S.%fZ"; RFC3339 parsing accepts the fraction.
	at, err := time.Parse(time.RFC3339, heartbeat)
	if err != nil {
		return true
	}
	return now.Sub(at) <= r.heartbeatTimeout
}

func (r *RQSampler) Close() error {
	return r.client.Close()
}
