package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozxc44/queue-monitor-dev/internal/queue"
)

func TestExporter_ObserveSample(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := NewExporter("qm", reg)

	at := time.Date(2026, 2, 6, 0, 0, 0, 0, time.UTC)
	e.ObserveSample(queue.Sample{Queue: "emails", Waiting: 10, Active: 2, Delayed: 3, Failed: 4, Workers: 1, SampledAt: at})

	assert.Equal(t, 10.0, testutil.ToFloat64(e.waiting.WithLabelValues("emails")))
	assert.Equal(t, 2.0, testutil.ToFloat64(e.active.WithLabelValues("emails")))
	assert.Equal(t, 3.0, testutil.ToFloat64(e.delayed.WithLabelValues("emails")))
	assert.Equal(t, 4.0, testutil.ToFloat64(e.failed.WithLabelValues("emails")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.workers.WithLabelValues("emails")))
	assert.Equal(t, 15.0, testutil.ToFloat64(e.depth.WithLabelValues("emails")))
	assert.Equal(t, float64(at.Unix()), testutil.ToFloat64(e.sampled.WithLabelValues("emails")))
}

func TestExporter_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := NewExporter("qm", reg)

	e.ObserveAlert("emails", "depth", "critical")
	e.ObserveAlert("emails", "depth", "critical")
	e.ObserveSuppressed("emails", "depth")
	e.ObserveSamplerError("emails")
	e.ObserveDispatchFailure("failed")

	assert.Equal(t, 2.0, testutil.ToFloat64(e.alerts.WithLabelValues("emails", "depth", "critical")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.suppressed.WithLabelValues("emails", "depth")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.samplerErrors.WithLabelValues("emails")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.dispatchFailures.WithLabelValues("failed")))

	expected := `
# HELP qm_alerts_total Alerts fired
# TYPE qm_alerts_total counter
qm_alerts_total{kind="depth",queue="emails",severity="critical"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "qm_alerts_total"))
}

func TestExporter_DefaultPrefixAndPoll(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := NewExporter("", reg)

	e.ObservePoll(time.Unix(1700000000, 0))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(e.lastPoll))

	n, err := testutil.GatherAndCount(reg, "queue_monitor_last_poll_timestamp")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
