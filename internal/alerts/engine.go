package alerts

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/ozxc44/queue-monitor-dev/internal/queue"
)

// Evaluate runs rules against one sample. A triggered rule emits an event
// only if its slot has never fired or its cooldown has fully elapsed
// (now - lastFiredAt >= cooldown); firing stamps lastFiredAt = now. A rule
// that does not trigger leaves its slot untouched.
//
// Evaluate performs no I/O and never mutates state; when anything fired it
// returns a new State, otherwise the input is returned as is. Events carry no
// ID; Engine assigns one.
func Evaluate(now time.Time, sample queue.Sample, rules []Rule, state State) ([]AlertEvent, State, error) {
	res, err := evaluate(now, sample, rules, state)
	if err != nil {
		return nil, state, err
	}
	return res.events, res.state, nil
}

type evaluation struct {
	events     []AlertEvent
	suppressed []Key
	state      State
}

func evaluate(now time.Time, sample queue.Sample, rules []Rule, state State) (evaluation, error) {
	res := evaluation{state: state}
	if err := sample.Validate(); err != nil {
		return res, err
	}

	for _, rule := range rules {
		cond, triggered := rule.Check(sample)
		if !triggered {
			continue
		}

		key := Key{Queue: sample.Queue, Kind: rule.Kind}
		lastFiredAt, fired := res.state[key]
		if phaseAt(now, lastFiredAt, fired, rule.Cooldown) == PhaseCooling {
			res.suppressed = append(res.suppressed, key)
			continue
		}

		if len(res.events) == 0 {
			res.state = state.clone()
		}
		res.state[key] = now
		res.events = append(res.events, newEvent(key, cond, sample, now))
	}
	return res, nil
}

func newEvent(key Key, cond Condition, sample queue.Sample, now time.Time) AlertEvent {
	return AlertEvent{
		Key:       key,
		Queue:     key.Queue,
		Kind:      key.Kind,
		Severity:  cond.Severity(),
		Title:     formatTitle(cond),
		Message:   formatMessage(key.Queue, cond),
		Condition: cond,
		Details:   formatDetails(cond),
		Sample:    sample,
		Timestamp: now,
	}
}

// Result is what Engine.Evaluate hands back to the polling loop.
type Result struct {
	Events     []AlertEvent
	Suppressed []Key
}

// Engine owns the cooldown table. Each queue has its own slot lock, so
// evaluations for different queues run in parallel and evaluations for the
// same queue never interleave their read-modify-write of lastFiredAt.
type Engine struct {
	clock clockwork.Clock

	mu    sync.Mutex
	slots map[string]*queueSlot
}

type queueSlot struct {
	mu        sync.Mutex
	state     State
	cooldowns map[Kind]time.Duration
}

func NewEngine(clock clockwork.Clock) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Engine{
		clock: clock,
		slots: make(map[string]*queueSlot),
	}
}

func (e *Engine) slot(queueName string) *queueSlot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.slots[queueName]
	if !ok {
		s = &queueSlot{state: State{}, cooldowns: make(map[Kind]time.Duration)}
		e.slots[queueName] = s
	}
	return s
}

// Evaluate applies rules to the sample against the engine's own state and
// commits the result. The stamp written for a fired event is the time the
// event is handed to dispatch.
func (e *Engine) Evaluate(sample queue.Sample, rules []Rule) (Result, error) {
	if err := sample.Validate(); err != nil {
		return Result{}, err
	}

	s := e.slot(sample.Queue)
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := evaluate(e.clock.Now(), sample, rules, s.state)
	if err != nil {
		return Result{}, err
	}
	s.state = res.state
	for _, r := range rules {
		s.cooldowns[r.Kind] = r.Cooldown
	}

	for i := range res.events {
		res.events[i].ID = uuid.NewString()
	}
	return Result{Events: res.events, Suppressed: res.suppressed}, nil
}

// Status lists every slot that has fired at least once, sorted by key.
func (e *Engine) Status() []SlotStatus {
	now := e.clock.Now()

	e.mu.Lock()
	slots := make(map[string]*queueSlot, len(e.slots))
	for name, s := range e.slots {
		slots[name] = s
	}
	e.mu.Unlock()

	var out []SlotStatus
	for _, s := range slots {
		s.mu.Lock()
		for key, last := range s.state {
			cooldown := s.cooldowns[key.Kind]
			out = append(out, SlotStatus{
				Queue:        key.Queue,
				Kind:         key.Kind,
				Phase:        phaseAt(now, last, true, cooldown),
				LastFiredAt:  last,
				CoolingUntil: last.Add(cooldown),
			})
		}
		s.mu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Queue != out[j].Queue {
			return out[i].Queue < out[j].Queue
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// Reset forgets every slot, the same as a process restart.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.slots = make(map[string]*queueSlot)
}
