package provider

import (
	"sync"
	"time"
)

// latencyAlpha is the smoothing factor for the exponential moving average.
const latencyAlpha = 0.3

// UsageStats tracks request outcomes for one provider.
type UsageStats struct {
	Total      uint64        `json:"total"`
	Successes  uint64        `json:"successes"`
	Failures   uint64        `json:"failures"`
	AvgLatency time.Duration `json:"avg_latency"`
	LastUsed   time.Time     `json:"last_used"`
}

// ErrorRate returns the fraction of failed requests, 0 when unused.
func (u UsageStats) ErrorRate() float64 {
	if u.Total == 0 {
		return 0
	}
	return float64(u.Failures) / float64(u.Total)
}

// Stats tracks usage statistics per provider name.
type Stats struct {
	mu      sync.RWMutex
	entries map[string]*UsageStats
	now     func() time.Time
}

// NewStats creates an empty Stats tracker.
func NewStats() *Stats {
	return &Stats{
		entries: make(map[string]*UsageStats),
		now:     time.Now,
	}
}

// RecordSuccess records a successful request and its latency.
func (s *Stats) RecordSuccess(name string, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(name)
	e.Total++
	e.Successes++
	e.LastUsed = s.now()
	if e.AvgLatency == 0 {
		e.AvgLatency = latency
	} else {
		e.AvgLatency = time.Duration(float64(e.AvgLatency)*(1-latencyAlpha) + float64(latency)*latencyAlpha)
	}
}

// RecordFailure records a failed request.
func (s *Stats) RecordFailure(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(name)
	e.Total++
	e.Failures++
	e.LastUsed = s.now()
}

// Get returns a copy of the stats for one provider.
func (s *Stats) Get(name string) (UsageStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[name]
	if !ok {
		return UsageStats{}, false
	}
	return *e, true
}

// Snapshot returns a copy of all stats keyed by provider name.
func (s *Stats) Snapshot() map[string]UsageStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]UsageStats, len(s.entries))
	for name, e := range s.entries {
		out[name] = *e
	}
	return out
}

// Reset clears all recorded statistics.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*UsageStats)
}

// entry returns the stats entry for name, creating it lazily.
// Caller must hold the write lock.
func (s *Stats) entry(name string) *UsageStats {
	e, ok := s.entries[name]
	if !ok {
		e = &UsageStats{}
		s.entries[name] = e
	}
	return e
}
