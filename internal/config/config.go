package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendRQ     = "rq"
	BackendCelery = "celery"
)

// Alert kinds as they appear in config (rules.queues.<name>.disable).
const (
	KindDepth       = "depth"
	KindFailed      = "failed"
	KindWorkersDown = "workers-down"
)

var ErrInvalidConfig = errors.New("invalid config")

// ============================================================
// MAIN CONFIG
// ============================================================

type Config struct {
	Backend  BackendConfig  `yaml:"backend"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Rules    RulesConfig    `yaml:"rules"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Advanced AdvancedConfig `yaml:"advanced"`
}

// ============================================================
// BACKEND CONFIG
// ============================================================

type BackendConfig struct {
	Type                   string `yaml:"type"`
	RedisURL               string `yaml:"redis_url"`
	WorkerHeartbeatTimeout string `yaml:"worker_heartbeat_timeout"`
	CeleryWorkerPattern    string `yaml:"celery_worker_pattern"`
}

// ============================================================
// MONITOR CONFIG
// ============================================================

type MonitorConfig struct {
	Queues        []string `yaml:"queues"`
	PollInterval  string   `yaml:"poll_interval"`
	SampleTimeout string   `yaml:"sample_timeout"`
	Concurrency   int      `yaml:"concurrency"`
	HistoryWindow string   `yaml:"history_window"`
}

// ============================================================
// RULES CONFIG
// ============================================================

type RulesConfig struct {
	Depth       DepthRuleConfig              `yaml:"depth"`
	Failed      RuleConfig                   `yaml:"failed"`
	WorkersDown RuleConfig                   `yaml:"workers_down"`
	Queues      map[string]QueueRuleOverride `yaml:"queues"`
}

type DepthRuleConfig struct {
	Threshold int64  `yaml:"threshold"`
	Cooldown  string `yaml:"cooldown"`
}

type RuleConfig struct {
	Cooldown string `yaml:"cooldown"`
}

// QueueRuleOverride replaces global rule settings for a single queue.
type QueueRuleOverride struct {
	DepthThreshold      int64    `yaml:"depth_threshold"`
	DepthCooldown       string   `yaml:"depth_cooldown"`
	FailedCooldown      string   `yaml:"failed_cooldown"`
	WorkersDownCooldown string   `yaml:"workers_down_cooldown"`
	Disable             []string `yaml:"disable"`
}

// ============================================================
// ALERTS CONFIG
// ============================================================

type AlertsConfig struct {
	Webhook         string        `yaml:"webhook"`
	DispatchTimeout string        `yaml:"dispatch_timeout"`
	DrainTimeout    string        `yaml:"drain_timeout"`
	Channels        AlertChannels `yaml:"channels"`
}

type AlertChannels struct {
	Discord   DiscordConfig   `yaml:"discord"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Slack     SlackConfig     `yaml:"slack"`
	PagerDuty PagerDutyConfig `yaml:"pagerduty"`
}

type DiscordConfig struct {
	Enabled bool   `yaml:"enabled"`
	Webhook string `yaml:"webhook"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

type SlackConfig struct {
	Enabled bool   `yaml:"enabled"`
	Webhook string `yaml:"webhook"`
}

type PagerDutyConfig struct {
	Enabled    bool   `yaml:"enabled"`
	RoutingKey string `yaml:"routing_key"`
}

// ============================================================
// ADVANCED CONFIG
// ============================================================

type AdvancedConfig struct {
	MetricsPrefix string `yaml:"metrics_prefix"`
	HTTPPort      int    `yaml:"http_port"`
}

// ============================================================
// HELPER FUNCTIONS
// ============================================================

// ParseDuration parses duration strings like "1m", "5m", "30s"
func ParseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

func (m MonitorConfig) PollDuration() time.Duration    { return ParseDuration(m.PollInterval) }
func (m MonitorConfig) SampleDuration() time.Duration  { return ParseDuration(m.SampleTimeout) }
func (m MonitorConfig) HistoryDuration() time.Duration { return ParseDuration(m.HistoryWindow) }

func (a AlertsConfig) DispatchDuration() time.Duration { return ParseDuration(a.DispatchTimeout) }
func (a AlertsConfig) DrainDuration() time.Duration    { return ParseDuration(a.DrainTimeout) }

func (b BackendConfig) HeartbeatTimeout() time.Duration {
	return ParseDuration(b.WorkerHeartbeatTimeout)
}

// Disabled reports whether the given alert kind is switched off for the queue.
func (o QueueRuleOverride) Disabled(kind string) bool {
	for _, k := range o.Disable {
		if strings.EqualFold(strings.TrimSpace(k), kind) {
			return true
		}
	}
	return false
}

// ============================================================
// LOAD FUNCTION
// ============================================================

// Load reads the YAML file at path. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	ApplyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if cfg.Alerts.Webhook == "" {
		cfg.Alerts.Webhook = os.Getenv("QUEUE_MONITOR_WEBHOOK")
	}
	if cfg.Backend.RedisURL == "" {
		cfg.Backend.RedisURL = os.Getenv("REDIS_URL")
	}
	if cfg.Backend.RedisURL == "" {
		cfg.Backend.RedisURL = os.Getenv("CELERY_BROKER_URL")
	}
}

func ApplyDefaults(cfg *Config) {
	if cfg.Backend.Type == "" {
		cfg.Backend.Type = BackendRQ
	}
	if cfg.Backend.RedisURL == "" {
		cfg.Backend.RedisURL = "redis://localhost:6379/0"
	}
	if cfg.Backend.WorkerHeartbeatTimeout == "" {
		cfg.Backend.WorkerHeartbeatTimeout = "7m"
	}
	if cfg.Backend.CeleryWorkerPattern == "" {
		cfg.Backend.CeleryWorkerPattern = "celery:*:pidbox:*"
	}

	if len(cfg.Monitor.Queues) == 0 {
		cfg.Monitor.Queues = []string{"default", "high", "low"}
	}
	if cfg.Monitor.PollInterval == "" {
		cfg.Monitor.PollInterval = "60s"
	}
	if cfg.Monitor.SampleTimeout == "" {
		cfg.Monitor.SampleTimeout = "5s"
	}
	if cfg.Monitor.Concurrency <= 0 {
		cfg.Monitor.Concurrency = 4
	}
	if cfg.Monitor.HistoryWindow == "" {
		cfg.Monitor.HistoryWindow = "1h"
	}

	if cfg.Rules.Depth.Threshold == 0 {
		cfg.Rules.Depth.Threshold = 1000
	}
	if cfg.Rules.Depth.Cooldown == "" {
		cfg.Rules.Depth.Cooldown = "15m"
	}
	if cfg.Rules.Failed.Cooldown == "" {
		cfg.Rules.Failed.Cooldown = "30m"
	}
	if cfg.Rules.WorkersDown.Cooldown == "" {
		cfg.Rules.WorkersDown.Cooldown = "5m"
	}

	if cfg.Alerts.DispatchTimeout == "" {
		cfg.Alerts.DispatchTimeout = "5s"
	}
	if cfg.Alerts.DrainTimeout == "" {
		cfg.Alerts.DrainTimeout = "10s"
	}

	if cfg.Advanced.MetricsPrefix == "" {
		cfg.Advanced.MetricsPrefix = "queue_monitor"
	}
}

// Validate checks values that cannot be defaulted away.
func (c *Config) Validate() error {
	switch c.Backend.Type {
	case BackendRQ, BackendCelery:
	default:
		return fmt.Errorf("%w: unknown backend type %q", ErrInvalidConfig, c.Backend.Type)
	}

	durations := map[string]string{
		"backend.worker_heartbeat_timeout": c.Backend.WorkerHeartbeatTimeout,
		"monitor.poll_interval":            c.Monitor.PollInterval,
		"monitor.sample_timeout":           c.Monitor.SampleTimeout,
		"monitor.history_window":           c.Monitor.HistoryWindow,
		"rules.depth.cooldown":             c.Rules.Depth.Cooldown,
		"rules.failed.cooldown":            c.Rules.Failed.Cooldown,
		"rules.workers_down.cooldown":      c.Rules.WorkersDown.Cooldown,
		"alerts.dispatch_timeout":          c.Alerts.DispatchTimeout,
		"alerts.drain_timeout":             c.Alerts.DrainTimeout,
	}
	for name, o := range c.Rules.Queues {
		durations["rules.queues."+name+".depth_cooldown"] = o.DepthCooldown
		durations["rules.queues."+name+".failed_cooldown"] = o.FailedCooldown
		durations["rules.queues."+name+".workers_down_cooldown"] = o.WorkersDownCooldown
		if o.DepthThreshold < 0 {
			return fmt.Errorf("%w: rules.queues.%s.depth_threshold must not be negative", ErrInvalidConfig, name)
		}
		for _, k := range o.Disable {
			switch strings.ToLower(strings.TrimSpace(k)) {
			case KindDepth, KindFailed, KindWorkersDown:
			default:
				return fmt.Errorf("%w: rules.queues.%s.disable: unknown alert kind %q", ErrInvalidConfig, name, k)
			}
		}
	}
	for name, v := range durations {
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, name, err)
		}
		if d < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidConfig, name)
		}
	}

	if c.Monitor.PollDuration() <= 0 {
		return fmt.Errorf("%w: monitor.poll_interval must be positive", ErrInvalidConfig)
	}
	if c.Rules.Depth.Threshold < 0 {
		return fmt.Errorf("%w: rules.depth.threshold must not be negative", ErrInvalidConfig)
	}
	for _, q := range c.Monitor.Queues {
		if strings.TrimSpace(q) == "" {
			return fmt.Errorf("%w: monitor.queues contains an empty name", ErrInvalidConfig)
		}
	}
	if c.Advanced.HTTPPort < 0 || c.Advanced.HTTPPort > 65535 {
		return fmt.Errorf("%w: invalid advanced.http_port %d", ErrInvalidConfig, c.Advanced.HTTPPort)
	}
	return nil
}
