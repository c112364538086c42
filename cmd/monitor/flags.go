package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/ozxc44/queue-monitor-dev/internal/config"
)

func flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to config file (default ~/.queue-monitor/config.yml if present)",
			EnvVars: []string{"QUEUE_MONITOR_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "backend",
			Usage: "queue backend: rq or celery",
		},
		&cli.StringFlag{
			Name:  "redis-url",
			Usage: "Redis URL, e.g. redis://localhost:6379/0",
		},
		&cli.StringFlag{
			Name:  "webhook",
			Usage: "generic webhook URL for alerts",
		},
		&cli.DurationFlag{
			Name:  "interval",
			Usage: "poll interval",
		},
		&cli.IntFlag{
			Name:  "http-port",
			Usage: "port for /metrics, /healthz and /api/state (0 disables)",
		},
		&cli.BoolFlag{
			Name:  "no-color",
			Usage: "disable colored log output",
		},
	}
}

// resolveConfigPath returns "" when no config file is given and none exists
// at the default location, in which case defaults are used.
func resolveConfigPath(configFile string) (string, error) {
	if configFile != "" {
		return filepath.Abs(configFile)
	}

	path, err := defaultConfigPath()
	if err != nil {
		return "", nil
	}
	if _, err := os.Stat(path); err != nil {
		return "", nil
	}
	return path, nil
}

func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".queue-monitor", "config.yml"), nil
}

// applyOverrides layers command-line values over the loaded config.
// Positional arguments replace monitor.queues.
func applyOverrides(c *cli.Context, cfg *config.Config) error {
	if c.IsSet("backend") {
		cfg.Backend.Type = c.String("backend")
	}
	if c.IsSet("redis-url") {
		cfg.Backend.RedisURL = c.String("redis-url")
	}
	if c.IsSet("webhook") {
		cfg.Alerts.Webhook = c.String("webhook")
	}
	if c.IsSet("interval") {
		d := c.Duration("interval")
		if d <= 0 {
			return fmt.Errorf("%w: --interval must be positive", config.ErrInvalidConfig)
		}
		cfg.Monitor.PollInterval = d.String()
	}
	if c.IsSet("http-port") {
		cfg.Advanced.HTTPPort = c.Int("http-port")
	}
	if c.NArg() > 0 {
		cfg.Monitor.Queues = c.Args().Slice()
	}
	return cfg.Validate()
}

func ensureDefaultConfig(path string, example []byte) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	} else if !os.IsNotExist(err) {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	if len(example) == 0 {
		return fmt.Errorf("embedded config.example.yml is empty")
	}

	return os.WriteFile(path, example, 0o644)
}
