package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/ozxc44/queue-monitor-dev/internal/alerts"
	"github.com/ozxc44/queue-monitor-dev/internal/logger"
	"github.com/ozxc44/queue-monitor-dev/internal/metrics"
	"github.com/ozxc44/queue-monitor-dev/internal/queue"
	"github.com/ozxc44/queue-monitor-dev/internal/window"
)

const (
	defaultInterval      = 60 * time.Second
	defaultSampleTimeout = 5 * time.Second
	defaultConcurrency   = 4
	defaultHistoryWindow = time.Hour
)

type Sampler interface {
	Sample(ctx context.Context, queueName string) (queue.Sample, error)
}

type Dispatcher interface {
	Dispatch(event alerts.AlertEvent) error
}

type Options struct {
	Queues        []string
	Interval      time.Duration
	SampleTimeout time.Duration
	Concurrency   int
	HistoryWindow time.Duration

	Sampler    Sampler
	Rules      *alerts.RuleSet
	Engine     *alerts.Engine
	Dispatcher Dispatcher
	Exporter   *metrics.Exporter
	Clock      clockwork.Clock
}

// QueueStatus is the latest view of one queue.
type QueueStatus struct {
	Queue     string          `json:"queue"`
	Sample    *queue.Sample   `json:"sample,omitempty"`
	Error     string          `json:"error,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
	History   *window.Summary `json:"history,omitempty"`
}

type Snapshot struct {
	LastPoll time.Time           `json:"last_poll"`
	Interval string              `json:"interval"`
	Queues   []QueueStatus       `json:"queues"`
	Alerts   []alerts.SlotStatus `json:"alerts"`
}

type Monitor struct {
	queues        []string
	interval      time.Duration
	sampleTimeout time.Duration
	concurrency   int
	historyWindow time.Duration

	sampler    Sampler
	rules      *alerts.RuleSet
	engine     *alerts.Engine
	dispatcher Dispatcher
	exporter   *metrics.Exporter
	clock      clockwork.Clock

	mu       sync.RWMutex
	status   map[string]QueueStatus
	history  map[string]*window.RollingWindow
	lastPoll time.Time
}

func New(opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.SampleTimeout <= 0 {
		opts.SampleTimeout = defaultSampleTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = defaultHistoryWindow
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Engine == nil {
		opts.Engine = alerts.NewEngine(opts.Clock)
	}

	return &Monitor{
		queues:        append([]string(nil), opts.Queues...),
		interval:      opts.Interval,
		sampleTimeout: opts.SampleTimeout,
		concurrency:   opts.Concurrency,
		historyWindow: opts.HistoryWindow,
		sampler:       opts.Sampler,
		rules:         opts.Rules,
		engine:        opts.Engine,
		dispatcher:    opts.Dispatcher,
		exporter:      opts.Exporter,
		clock:         opts.Clock,
		status:        make(map[string]QueueStatus, len(opts.Queues)),
		history:       make(map[string]*window.RollingWindow, len(opts.Queues)),
	}
}

// Run polls every queue once immediately and then on every tick until ctx
// is cancelled. Cycles never overlap; ticks that arrive during a long cycle
// are dropped.
func (m *Monitor) Run(ctx context.Context) error {
	logger.Info("MONITOR", "Monitoring %d queues every %s", len(m.queues), m.interval)

	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	m.RunCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("MONITOR", "Polling stopped")
			return nil
		case <-ticker.Chan():
			m.RunCycle(ctx)
		}
	}
}

// RunCycle samples and evaluates every queue once. A failing queue is logged
// and skipped without affecting the others.
func (m *Monitor) RunCycle(ctx context.Context) {
	var g errgroup.Group
	g.SetLimit(m.concurrency)

	for _, name := range m.queues {
		name := name
		g.Go(func() error {
			m.pollQueue(ctx, name)
			return nil
		})
	}
	_ = g.Wait()

	now := m.clock.Now()
	m.mu.Lock()
	m.lastPoll = now
	m.mu.Unlock()
	if m.exporter != nil {
		m.exporter.ObservePoll(now)
	}
}

func (m *Monitor) pollQueue(ctx context.Context, name string) {
	sctx, cancel := context.WithTimeout(ctx, m.sampleTimeout)
	sample, err := m.sampler.Sample(sctx, name)
	cancel()
	if err != nil {
		logger.Warn("MONITOR", "Failed to sample queue %s: %v", name, err)
		m.recordError(name, err)
		if m.exporter != nil {
			m.exporter.ObserveSamplerError(name)
		}
		return
	}
	if sample.SampledAt.IsZero() {
		sample.SampledAt = m.clock.Now()
	}
	if err := sample.Validate(); err != nil {
		logger.Warn("MONITOR", "Rejected sample for queue %s: %v", name, err)
		m.recordError(name, err)
		return
	}

	m.recordSample(sample)
	if m.exporter != nil {
		m.exporter.ObserveSample(sample)
	}

	res, err := m.engine.Evaluate(sample, m.rules.For(name))
	if err != nil {
		logger.Error("MONITOR", "Failed to evaluate queue %s: %v", name, err)
		return
	}

	for _, key := range res.Suppressed {
		logger.Debug("MONITOR", "Alert %s suppressed by cooldown", key)
		if m.exporter != nil {
			m.exporter.ObserveSuppressed(key.Queue, string(key.Kind))
		}
	}

	for _, ev := range res.Events {
		logger.Info("MONITOR", "Alert %s fired (%s): %s", ev.Key, ev.Severity, ev.Message)
		if m.exporter != nil {
			m.exporter.ObserveAlert(ev.Queue, string(ev.Kind), string(ev.Severity))
		}
		if m.dispatcher == nil {
			continue
		}
		if err := m.dispatcher.Dispatch(ev); err != nil {
			logger.Warn("MONITOR", "Failed to dispatch alert %s: %v", ev.Key, err)
		}
	}
}

func (m *Monitor) recordSample(s queue.Sample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[s.Queue] = QueueStatus{Queue: s.Queue, Sample: &s, UpdatedAt: s.SampledAt}

	w, ok := m.history[s.Queue]
	if !ok {
		w = window.NewRollingWindow(m.historyWindow)
		m.history[s.Queue] = w
	}
	w.Add(s)
}

// recordError keeps the last good sample so the status view still shows it.
func (m *Monitor) recordError(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.status[name]
	st.Queue = name
	st.Error = err.Error()
	st.UpdatedAt = m.clock.Now()
	m.status[name] = st
}

// Snapshot returns the latest per-queue view in configured queue order,
// together with the engine's cooldown table.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	snap := Snapshot{
		LastPoll: m.lastPoll,
		Interval: m.interval.String(),
		Queues:   make([]QueueStatus, 0, len(m.queues)),
	}
	for _, name := range m.queues {
		st, ok := m.status[name]
		if !ok {
			st = QueueStatus{Queue: name}
		}
		if w, ok := m.history[name]; ok {
			h := w.Export()
			st.History = &h
		}
		snap.Queues = append(snap.Queues, st)
	}
	m.mu.RUnlock()

	snap.Alerts = m.engine.Status()
	return snap
}
