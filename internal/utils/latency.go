package utils

import (
	"sort"
	"sync"
	"time"
)

// LatencyTracker keeps a bounded window of request durations per operation.
type LatencyTracker struct {
	mu      sync.RWMutex
	samples map[string][]time.Duration
	maxSize int
}

// NewLatencyTracker creates a tracker storing up to maxSize samples per operation.
func NewLatencyTracker(maxSize int) *LatencyTracker {
	if maxSize <= 0 {
		maxSize = 512
	}
	return &LatencyTracker{maxSize: maxSize, samples: make(map[string][]time.Duration)}
}

// Observe records a duration for op and returns the number of samples now held for it.
func (l *LatencyTracker) Observe(op string, d time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	window := append(l.samples[op], d)
	if len(window) > l.maxSize {
		// Drop oldest sample to bound memory.
		window = append(window[:0], window[len(window)-l.maxSize:]...)
	}
	l.samples[op] = window
	return len(window)
}

// Percentile returns the percentile (0-100) duration for op. Returns zero if no samples.
func (l *LatencyTracker) Percentile(op string, p float64) time.Duration {
	l.mu.RLock()
	window := l.samples[op]
	sorted := append([]time.Duration(nil), window...)
	l.mu.RUnlock()

	if len(sorted) == 0 {
		return 0
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	index := int((p / 100.0) * float64(len(sorted)-1))
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

// Count returns number of samples recorded for op.
func (l *LatencyTracker) Count(op string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.samples[op])
}
