package sampler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozxc44/queue-monitor-dev/internal/config"
)

var t0 = time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)

// fakeRedis serves canned values keyed by Redis key.
type fakeRedis struct {
	lists   map[string]int64
	zsets   map[string]int64
	sets    map[string][]string
	hashes  map[string]map[string]string
	scan    [][]string
	err     error
	failKey string
	closed  bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		lists:  map[string]int64{},
		zsets:  map[string]int64{},
		sets:   map[string][]string{},
		hashes: map[string]map[string]string{},
	}
}

func (f *fakeRedis) fail(key string) error {
	if f.err != nil && (f.failKey == "" || f.failKey == key) {
		return f.err
	}
	return nil
}

func (f *fakeRedis) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", f.fail(""))
}

func (f *fakeRedis) LLen(_ context.Context, key string) *redis.IntCmd {
	return redis.NewIntResult(f.lists[key], f.fail(key))
}

func (f *fakeRedis) ZCard(_ context.Context, key string) *redis.IntCmd {
	return redis.NewIntResult(f.zsets[key], f.fail(key))
}

func (f *fakeRedis) SMembers(_ context.Context, key string) *redis.StringSliceCmd {
	return redis.NewStringSliceResult(f.sets[key], f.fail(key))
}

func (f *fakeRedis) HMGet(_ context.Context, key string, fields ...string) *redis.SliceCmd {
	vals := make([]interface{}, len(fields))
	if h, ok := f.hashes[key]; ok {
		for i, field := range fields {
			if v, ok := h[field]; ok {
				vals[i] = v
			}
		}
	}
	return redis.NewSliceResult(vals, f.fail(key))
}

func (f *fakeRedis) Scan(_ context.Context, cursor uint64, _ string, _ int64) *redis.ScanCmd {
	if err := f.fail("scan"); err != nil {
		return redis.NewScanCmdResult(nil, 0, err)
	}
	if int(cursor) >= len(f.scan) {
		return redis.NewScanCmdResult(nil, 0, nil)
	}
	next := cursor + 1
	if int(next) >= len(f.scan) {
		next = 0
	}
	return redis.NewScanCmdResult(f.scan[cursor], next, nil)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func heartbeat(at time.Time) string {
	return at.UTC().Format("2006-01-02T15:04:05.000000Z")
}

func TestRQSampler_Counts(t *testing.T) {
	r := newFakeRedis()
	r.lists["rq:queue:emails"] = 120
	r.zsets["rq:wip:emails"] = 3
	r.zsets["rq:scheduled:emails"] = 4
	r.zsets["rq:deferred:emails"] = 1
	r.zsets["rq:failed:emails"] = 7

	s := NewRQSampler(r, clockwork.NewFakeClockAt(t0), 7*time.Minute)
	got, err := s.Sample(context.Background(), "emails")
	require.NoError(t, err)

	assert.Equal(t, "emails", got.Queue)
	assert.EqualValues(t, 120, got.Waiting)
	assert.EqualValues(t, 3, got.Active)
	assert.EqualValues(t, 5, got.Delayed)
	assert.EqualValues(t, 7, got.Failed)
	assert.EqualValues(t, 0, got.Workers)
	assert.Equal(t, t0, got.SampledAt)
	assert.EqualValues(t, 128, got.Depth())
}

func TestRQSampler_WorkerLiveness(t *testing.T) {
	r := newFakeRedis()
	r.sets["rq:workers:emails"] = []string{
		"rq:worker:fresh",
		"rq:worker:stale",
		"rq:worker:stopped",
		"rq:worker:expired",
		"rq:worker:legacy",
		"bare",
	}
	r.hashes["rq:worker:fresh"] = map[string]string{"state": "busy", "last_heartbeat": heartbeat(t0.Add(-30 * time.Second))}
	r.hashes["rq:worker:stale"] = map[string]string{"state": "idle", "last_heartbeat": heartbeat(t0.Add(-10 * time.Minute))}
	r.hashes["rq:worker:stopped"] = map[string]string{"state": "stopped", "last_heartbeat": heartbeat(t0)}
	r.hashes["rq:worker:legacy"] = map[string]string{"state": "idle"}
	r.hashes["rq:worker:bare"] = map[string]string{"state": "idle", "last_heartbeat": heartbeat(t0.Add(-7 * time.Minute))}

	s := NewRQSampler(r, clockwork.NewFakeClockAt(t0), 7*time.Minute)
	got, err := s.Sample(context.Background(), "emails")
	require.NoError(t, err)

	// fresh, legacy (no heartbeat field) and bare (exactly at the timeout).
	assert.EqualValues(t, 3, got.Workers)
}

func TestRQSampler_ErrorsAreUnavailable(t *testing.T) {
	cases := map[string]string{
		"waiting": "rq:queue:emails",
		"failed":  "rq:failed:emails",
		"workers": "rq:workers:emails",
	}
	for name, key := range cases {
		t.Run(name, func(t *testing.T) {
			r := newFakeRedis()
			r.err = errors.New("connection refused")
			r.failKey = key

			_, err := NewRQSampler(r, clockwork.NewFakeClockAt(t0), time.Minute).Sample(context.Background(), "emails")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSamplerUnavailable)
			assert.ErrorIs(t, err, r.err)
			assert.Contains(t, err.Error(), "emails")
		})
	}
}

func TestCelerySampler_Counts(t *testing.T) {
	r := newFakeRedis()
	r.lists["celery"] = 42
	r.scan = [][]string{
		{"celery@a.celery.pidbox", "celery@b.celery.pidbox"},
		{},
		{"celery@c.celery.pidbox"},
	}

	s := NewCelerySampler(r, clockwork.NewFakeClockAt(t0), "*.celery.pidbox")
	got, err := s.Sample(context.Background(), "celery")
	require.NoError(t, err)

	assert.EqualValues(t, 42, got.Waiting)
	assert.EqualValues(t, 3, got.Workers)
	assert.Zero(t, got.Active)
	assert.Zero(t, got.Delayed)
	assert.Zero(t, got.Failed)
	assert.Equal(t, t0, got.SampledAt)
}

func TestCelerySampler_ScanErrorIsUnavailable(t *testing.T) {
	r := newFakeRedis()
	r.err = errors.New("timeout")
	r.failKey = "scan"

	_, err := NewCelerySampler(r, clockwork.NewFakeClockAt(t0), "*").Sample(context.Background(), "celery")
	assert.ErrorIs(t, err, ErrSamplerUnavailable)
}

func TestSampler_Close(t *testing.T) {
	r := newFakeRedis()
	require.NoError(t, NewRQSampler(r, nil, 0).Close())
	assert.True(t, r.closed)
}

func TestNew_RejectsBadInput(t *testing.T) {
	_, err := New(context.Background(), config.BackendConfig{Type: config.BackendRQ, RedisURL: "not-a-url"}, nil)
	require.Error(t, err)
}
