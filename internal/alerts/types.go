package alerts

import (
	"time"

	"github.com/ozxc44/queue-monitor-dev/internal/queue"
)

type Kind string

const (
	KindDepth       Kind = "depth"
	KindFailed      Kind = "failed"
	KindWorkersDown Kind = "workers-down"
)

type Severity string

const (
	SeverityOK       Severity = "ok"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Key identifies one cooldown slot.
type Key struct {
	Queue string
	Kind  Kind
}

func (k Key) String() string {
	return k.Queue + ":" + string(k.Kind)
}

// Condition is the kind-specific payload of a triggered rule. The concrete
// types are DepthAlert, FailedAlert and WorkersDownAlert.
type Condition interface {
	Kind() Kind
	Severity() Severity
	condition()
}

type DepthAlert struct {
	Depth     int64
	Threshold int64
}

func (DepthAlert) Kind() Kind { return KindDepth }

// Severity is critical once depth is more than twice the threshold.
func (a DepthAlert) Severity() Severity {
	if a.Depth > 2*a.Threshold {
		return SeverityCritical
	}
	return SeverityWarning
}

func (DepthAlert) condition() {}

type FailedAlert struct {
	Failed int64
}

func (FailedAlert) Kind() Kind         { return KindFailed }
func (FailedAlert) Severity() Severity { return SeverityWarning }
func (FailedAlert) condition()         {}

type WorkersDownAlert struct {
	Workers int64
}

func (WorkersDownAlert) Kind() Kind         { return KindWorkersDown }
func (WorkersDownAlert) Severity() Severity { return SeverityCritical }
func (WorkersDownAlert) condition()         {}

type AlertEvent struct {
	ID        string
	Key       Key
	Queue     string
	Kind      Kind
	Severity  Severity
	Title     string
	Message   string
	Condition Condition
	Details   []AlertDetail
	Sample    queue.Sample
	Timestamp time.Time
}

type AlertDetail struct {
	Label string
	Value string
}
