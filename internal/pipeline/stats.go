package pipeline

import (
	"slices"
	"sync"
	"time"
)

type sample struct {
	timestamp  time.Time
	durationMs int64
	utterances int
	failed     bool
}

// StatsSnapshot is a point-in-time aggregate of recent extraction runs.
type StatsSnapshot struct {
	Count      int     `json:"count"`
	Failures   int     `json:"failures"`
	Utterances int     `json:"utterances"`
	MinMs      int64   `json:"min_ms"`
	MaxMs      int64   `json:"max_ms"`
	AvgMs      float64 `json:"avg_ms"`
	P50Ms      float64 `json:"p50_ms"`
	P95Ms      float64 `json:"p95_ms"`
	P99Ms      float64 `json:"p99_ms"`
}

// Stats tracks recent extraction latencies within a rolling window.
type Stats struct {
	mu      sync.Mutex
	samples []sample
	maxAge  time.Duration
}

func NewStats(maxAge time.Duration) *Stats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Stats{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
	}
}

// Record adds one successful run that produced utterances.
func (s *Stats) Record(elapsed time.Duration, utterances int) {
	s.add(sample{durationMs: elapsed.Milliseconds(), utterances: utterances})
}

// RecordFailure adds one run that ended in an engine error.
func (s *Stats) RecordFailure(elapsed time.Duration) {
	s.add(sample{durationMs: elapsed.Milliseconds(), failed: true})
}

func (s *Stats) add(sm sample) {
	if sm.durationMs < 0 {
		sm.durationMs = 0
	}
	sm.timestamp = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(sm.timestamp)
	s.samples = append(s.samples, sm)
}

func (s *Stats) Snapshot() StatsSnapshot {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	if len(s.samples) == 0 {
		return StatsSnapshot{}
	}

	var snap StatsSnapshot
	values := make([]int64, 0, len(s.samples))
	var sum int64
	for _, sm := range s.samples {
		values = append(values, sm.durationMs)
		sum += sm.durationMs
		snap.Utterances += sm.utterances
		if sm.failed {
			snap.Failures++
		}
	}
	slices.Sort(values)

	snap.Count = len(values)
	snap.MinMs = values[0]
	snap.MaxMs = values[len(values)-1]
	snap.AvgMs = float64(sum) / float64(len(values))
	snap.P50Ms = percentile(values, 50)
	snap.P95Ms = percentile(values, 95)
	snap.P99Ms = percentile(values, 99)
	return snap
}

func (s *Stats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	s.samples = slices.DeleteFunc(s.samples, func(sm sample) bool {
		return sm.timestamp.Before(cutoff)
	})
}

// percentile interpolates linearly between the two nearest ranks.
func percentile(sortedValues []int64, pct float64) float64 {
	switch {
	case len(sortedValues) == 0:
		return 0
	case pct <= 0:
		return float64(sortedValues[0])
	case pct >= 100:
		return float64(sortedValues[len(sortedValues)-1])
	}

	index := (float64(len(sortedValues)-1) * pct) / 100.0
	lower := int(index)
	if lower+1 >= len(sortedValues) {
		return float64(sortedValues[lower])
	}
	weight := index - float64(lower)
	lo := float64(sortedValues[lower])
	hi := float64(sortedValues[lower+1])
	return lo + ((hi - lo) * weight)
}
