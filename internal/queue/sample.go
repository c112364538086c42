package queue

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidSample = errors.New("invalid sample")

// Sample is one poll-cycle snapshot of a queue's counters. Treat as immutable.
type Sample struct {
	Queue     string    `json:"queue"`
	Waiting   int64     `json:"waiting"`
	Active    int64     `json:"active"`
	Delayed   int64     `json:"delayed"`
	Failed    int64     `json:"failed"`
	Workers   int64     `json:"workers"`
	SampledAt time.Time `json:"sampled_at"`
}

// Depth is waiting + active + delayed.
func (s Sample) Depth() int64 {
	return s.Waiting + s.Active + s.Delayed
}

func (s Sample) Validate() error {
	if s.Queue == "" {
		return fmt.Errorf("%w: empty queue name", ErrInvalidSample)
	}
	counts := []struct {
		name string
		v    int64
	}{
		{"waiting", s.Waiting},
		{"active", s.Active},
		{"delayed", s.Delayed},
		{"failed", s.Failed},
		{"workers", s.Workers},
	}
	for _, c := range counts {
		if c.v < 0 {
			return fmt.Errorf("%w: queue %s has negative %s count %d", ErrInvalidSample, s.Queue, c.name, c.v)
		}
	}
	return nil
}
