//go:build integration

package alerts

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ozxc44/queue-monitor-dev/internal/config"
	"github.com/ozxc44/queue-monitor-dev/internal/queue"
)

/*
TestNotifier_RealWebhook is a manual integration test. It verifies that a
webhook (Slack incoming webhook or any endpoint accepting {"text": ...}) is
reachable from the machine running the tests.

Gated behind the `integration` build tag so it does not run in `go test ./...`.

Run locally:
  export QUEUE_MONITOR_WEBHOOK="https://hooks.slack.com/services/..."
  go test -tags=integration -v ./internal/alerts -run TestNotifier_RealWebhook -count=1
*/

func TestNotifier_RealWebhook(t *testing.T) {
	url := os.Getenv("QUEUE_MONITOR_WEBHOOK")
	if url == "" {
		t.Skip("set QUEUE_MONITOR_WEBHOOK to run")
	}

	n := NewNotifier(config.AlertsConfig{Webhook: url})

	sample := queue.Sample{Queue: "integration-test", Waiting: 1200, Workers: 1, SampledAt: time.Now()}
	event := newEvent(Key{Queue: sample.Queue, Kind: KindDepth}, DepthAlert{Depth: 1200, Threshold: 1000}, sample, time.Now())
	event.ID = "integration-test"

	require.NoError(t, n.Notify(context.Background(), event))
}
