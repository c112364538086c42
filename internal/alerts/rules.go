package alerts

import (
	"time"

	"github.com/ozxc44/queue-monitor-dev/internal/config"
	"github.com/ozxc44/queue-monitor-dev/internal/queue"
)

// Predicate reports whether a sample triggers a rule, and with what payload.
type Predicate func(queue.Sample) (Condition, bool)

type Rule struct {
	Kind      Kind
	Cooldown  time.Duration
	Predicate Predicate
}

func (r Rule) Check(s queue.Sample) (Condition, bool) {
	if r.Predicate == nil {
		return nil, false
	}
	return r.Predicate(s)
}

// DepthRule fires when waiting+active+delayed exceeds threshold.
func DepthRule(threshold int64, cooldown time.Duration) Rule {
	return Rule{
		Kind:     KindDepth,
		Cooldown: cooldown,
		Predicate: func(s queue.Sample) (Condition, bool) {
			depth := s.Depth()
			if depth > threshold {
				return DepthAlert{Depth: depth, Threshold: threshold}, true
			}
			return nil, false
		},
	}
}

func FailedRule(cooldown time.Duration) Rule {
	return Rule{
		Kind:     KindFailed,
		Cooldown: cooldown,
		Predicate: func(s queue.Sample) (Condition, bool) {
			if s.Failed > 0 {
				return FailedAlert{Failed: s.Failed}, true
			}
			return nil, false
		},
	}
}

func WorkersDownRule(cooldown time.Duration) Rule {
	return Rule{
		Kind:     KindWorkersDown,
		Cooldown: cooldown,
		Predicate: func(s queue.Sample) (Condition, bool) {
			if s.Workers == 0 {
				return WorkersDownAlert{Workers: s.Workers}, true
			}
			return nil, false
		},
	}
}

// RuleSet holds the immutable rules per queue, built once at startup.
type RuleSet struct {
	defaults []Rule
	perQueue map[string][]Rule
}

func NewRuleSet(cfg config.RulesConfig) *RuleSet {
	depthCooldown := config.ParseDuration(cfg.Depth.Cooldown)
	failedCooldown := config.ParseDuration(cfg.Failed.Cooldown)
	workersCooldown := config.ParseDuration(cfg.WorkersDown.Cooldown)

	rs := &RuleSet{
		defaults: []Rule{
			DepthRule(cfg.Depth.Threshold, depthCooldown),
			FailedRule(failedCooldown),
			WorkersDownRule(workersCooldown),
		},
		perQueue: make(map[string][]Rule, len(cfg.Queues)),
	}

	for name, o := range cfg.Queues {
		threshold := cfg.Depth.Threshold
		if o.DepthThreshold > 0 {
			threshold = o.DepthThreshold
		}
		dc, fc, wc := depthCooldown, failedCooldown, workersCooldown
		if o.DepthCooldown != "" {
			dc = config.ParseDuration(o.DepthCooldown)
		}
		if o.FailedCooldown != "" {
			fc = config.ParseDuration(o.FailedCooldown)
		}
		if o.WorkersDownCooldown != "" {
			wc = config.ParseDuration(o.WorkersDownCooldown)
		}

		var rules []Rule
		if !o.Disabled(config.KindDepth) {
			rules = append(rules, DepthRule(threshold, dc))
		}
		if !o.Disabled(config.KindFailed) {
			rules = append(rules, FailedRule(fc))
		}
		if !o.Disabled(config.KindWorkersDown) {
			rules = append(rules, WorkersDownRule(wc))
		}
		rs.perQueue[name] = rules
	}
	return rs
}

// For returns the rules applicable to the named queue.
func (rs *RuleSet) For(queueName string) []Rule {
	if rules, ok := rs.perQueue[queueName]; ok {
		return rules
	}
	return rs.defaults
}
