package window

import (
	"sync"
	"time"

	"github.com/ozxc44/queue-monitor-dev/internal/queue"
)

// RollingWindow keeps recent samples of one queue for a fixed duration.
type RollingWindow struct {
	mu       sync.RWMutex
	duration time.Duration
	items    []Point
}

type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Depth     int64     `json:"depth"`
	Failed    int64     `json:"failed"`
	Workers   int64     `json:"workers"`
}

type Summary struct {
	Duration  string  `json:"duration"`
	Samples   int     `json:"samples"`
	PeakDepth int64   `json:"peak_depth"`
	AvgDepth  float64 `json:"avg_depth"`
	Points    []Point `json:"points"`
}

func NewRollingWindow(duration time.Duration) *RollingWindow {
	if duration <= 0 {
		duration = 1 * time.Hour
	}
	return &RollingWindow{
		duration: duration,
		items:    make([]Point, 0, 64),
	}
}

// Add records a sample and prunes points older than the window duration,
// measured from the sample's own timestamp.
func (w *RollingWindow) Add(s queue.Sample) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.items = append(w.items, Point{
		Timestamp: s.SampledAt,
		Depth:     s.Depth(),
		Failed:    s.Failed,
		Workers:   s.Workers,
	})

	cutoff := s.SampledAt.Add(-w.duration)
	pruneCount := 0
	for _, it := range w.items {
		if it.Timestamp.After(cutoff) {
			break
		}
		pruneCount++
	}

	if pruneCount > 0 {
		w.items = append(w.items[:0:0], w.items[pruneCount:]...)
	}
}

// GetStats returns the peak and mean depth over the window.
func (w *RollingWindow) GetStats() (peak int64, avg float64, total int) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	total = len(w.items)
	if total == 0 {
		return 0, 0, 0
	}
	var sum int64
	for _, it := range w.items {
		sum += it.Depth
		if it.Depth > peak {
			peak = it.Depth
		}
	}
	return peak, float64(sum) / float64(total), total
}

func (w *RollingWindow) Export() Summary {
	peak, avg, total := w.GetStats()

	w.mu.RLock()
	defer w.mu.RUnlock()
	return Summary{
		Duration:  w.duration.String(),
		Samples:   total,
		PeakDepth: peak,
		AvgDepth:  avg,
		Points:    append([]Point(nil), w.items...),
	}
}
