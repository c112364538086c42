package main

import (
	"context"
	_ "embed"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ozxc44/queue-monitor-dev/internal/alerts"
	"github.com/ozxc44/queue-monitor-dev/internal/config"
	"github.com/ozxc44/queue-monitor-dev/internal/logger"
	"github.com/ozxc44/queue-monitor-dev/internal/metrics"
	"github.com/ozxc44/queue-monitor-dev/internal/monitor"
	"github.com/ozxc44/queue-monitor-dev/internal/sampler"
	"github.com/ozxc44/queue-monitor-dev/internal/server"
)

//go:embed config.example.yml
var configExample []byte

func main() {
	logger.Init()
	defer logger.Sync()

	if err := newApp().Run(os.Args); err != nil {
		logger.Error("INIT", "%v", err)
		logger.Sync()
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "queue-monitor",
		Usage:     "alert on RQ and Celery queue depth, failures and missing workers",
		ArgsUsage: "[queue ...]",
		Flags:     flags(),
		Before: func(c *cli.Context) error {
			if c.Bool("no-color") {
				logger.DisableColors()
				logger.Init()
			}
			return nil
		},
		Action: run,
		Commands: []*cli.Command{
			{
				Name:      "init",
				Usage:     "write an example config file",
				ArgsUsage: "[path]",
				Action:    initConfig,
			},
		},
	}
}

func initConfig(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		var err error
		if path, err = defaultConfigPath(); err != nil {
			return err
		}
	}
	if err := ensureDefaultConfig(path, configExample); err != nil {
		return err
	}
	logger.Info("INIT", "Wrote example config to %s", path)
	return nil
}

func run(c *cli.Context) error {
	configPath, err := resolveConfigPath(c.String("config"))
	if err != nil {
		return err
	}
	if configPath != "" {
		logger.Info("INIT", "Loading config from %s...", configPath)
	} else {
		logger.Info("INIT", "No config file, using defaults")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := applyOverrides(c, cfg); err != nil {
		return err
	}
	logger.Info("INIT", "Config loaded. Backend: %s, Queues: %v", cfg.Backend.Type, cfg.Monitor.Queues)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()

	smp, err := sampler.New(ctx, cfg.Backend, clock)
	if err != nil {
		return err
	}
	defer smp.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	exporter := metrics.NewExporter(cfg.Advanced.MetricsPrefix, reg)

	dispatcher := alerts.NewDispatcher(
		alerts.NewNotifier(cfg.Alerts),
		cfg.Alerts.DispatchDuration(),
		func(ev alerts.AlertEvent, err error) {
			if err != nil {
				exporter.ObserveDispatchFailure(string(ev.Kind))
			}
		},
	)

	mon := monitor.New(monitor.Options{
		Queues:        cfg.Monitor.Queues,
		Interval:      cfg.Monitor.PollDuration(),
		SampleTimeout: cfg.Monitor.SampleDuration(),
		Concurrency:   cfg.Monitor.Concurrency,
		HistoryWindow: cfg.Monitor.HistoryDuration(),
		Sampler:       smp,
		Rules:         alerts.NewRuleSet(cfg.Rules),
		Engine:        alerts.NewEngine(clock),
		Dispatcher:    dispatcher,
		Exporter:      exporter,
		Clock:         clock,
	})
	srv := server.NewServer(cfg.Advanced.HTTPPort, mon, reg)

	logger.Info("SYS", "Queue monitor started (backend: %s)", cfg.Backend.Type)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return mon.Run(gctx) })
	g.Go(func() error { return srv.Run(gctx) })
	runErr := g.Wait()

	logger.Info("SYS", "Shutting down gracefully...")
	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Alerts.DrainDuration())
	defer cancel()
	if err := dispatcher.Close(drainCtx); err != nil {
		logger.Warn("SYS", "Gave up waiting for in-flight alerts: %v", err)
	}

	logger.Info("SYS", "Shutdown complete")
	return runErr
}
