package alerts

import "time"

// State maps each (queue, kind) slot to its lastFiredAt. A missing key means
// the slot has never fired. State lives in memory only; a restart starts
// every slot Quiet again.
type State map[Key]time.Time

func (s State) clone() State {
	out := make(State, len(s)+1)
	for k, v := range s {
		out[k] = v
	}
	return out
}

type Phase string

const (
	PhaseQuiet   Phase = "quiet"
	PhaseCooling Phase = "cooling"
)

// phaseAt derives the slot phase from the timestamp alone; Cooling turns back
// into Quiet lazily, without a timer.
func phaseAt(now, lastFiredAt time.Time, fired bool, cooldown time.Duration) Phase {
	if !fired || now.Sub(lastFiredAt) >= cooldown {
		return PhaseQuiet
	}
	return PhaseCooling
}

// SlotStatus is a read-only view of one slot, used by the status endpoint.
type SlotStatus struct {
	Queue        string    `json:"queue"`
	Kind         Kind      `json:"kind"`
	Phase        Phase     `json:"phase"`
	LastFiredAt  time.Time `json:"last_fired_at"`
	CoolingUntil time.Time `json:"cooling_until"`
}
