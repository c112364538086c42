package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/ozxc44/queue-monitor-dev/internal/config"
)

func runWithOverrides(t *testing.T, cfg *config.Config, args ...string) error {
	t.Helper()
	app := &cli.App{
		Name:   "queue-monitor",
		Flags:  flags(),
		Action: func(c *cli.Context) error { return applyOverrides(c, cfg) },
	}
	return app.Run(append([]string{"queue-monitor"}, args...))
}

func defaults(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("REDIS_URL", "")
	t.Setenv("CELERY_BROKER_URL", "")
	t.Setenv("QUEUE_MONITOR_WEBHOOK", "")
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func TestApplyOverrides(t *testing.T) {
	cfg := defaults(t)

	err := runWithOverrides(t, cfg,
		"--backend", "celery",
		"--redis-url", "redis://broker:6379/1",
		"--webhook", "https://hooks.example/x",
		"--interval", "30s",
		"--http-port", "9100",
		"emails", "reports",
	)
	require.NoError(t, err)

	assert.Equal(t, config.BackendCelery, cfg.Backend.Type)
	assert.Equal(t, "redis://broker:6379/1", cfg.Backend.RedisURL)
	assert.Equal(t, "https://hooks.example/x", cfg.Alerts.Webhook)
	assert.Equal(t, "30s", cfg.Monitor.PollInterval)
	assert.Equal(t, 9100, cfg.Advanced.HTTPPort)
	assert.Equal(t, []string{"emails", "reports"}, cfg.Monitor.Queues)
}

func TestApplyOverrides_KeepsConfigWhenUnset(t *testing.T) {
	cfg := defaults(t)
	require.NoError(t, runWithOverrides(t, cfg))
	assert.Equal(t, config.BackendRQ, cfg.Backend.Type)
	assert.Equal(t, []string{"default", "high", "low"}, cfg.Monitor.Queues)
}

func TestApplyOverrides_Invalid(t *testing.T) {
	cfg := defaults(t)
	assert.ErrorIs(t, runWithOverrides(t, cfg, "--backend", "sidekiq"), config.ErrInvalidConfig)

	cfg = defaults(t)
	assert.ErrorIs(t, runWithOverrides(t, cfg, "--interval", "0s"), config.ErrInvalidConfig)
}

func TestExampleConfigLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yml")
	require.NoError(t, ensureDefaultConfig(path, configExample))
	assert.Error(t, ensureDefaultConfig(path, configExample))

	t.Setenv("REDIS_URL", "")
	t.Setenv("QUEUE_MONITOR_WEBHOOK", "")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), cfg.Rules.Depth.Threshold)
	assert.Equal(t, 9999, cfg.Advanced.HTTPPort)
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path, err := resolveConfigPath("")
	require.NoError(t, err)
	assert.Empty(t, path)

	path, err = resolveConfigPath("rel.yml")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))
}
