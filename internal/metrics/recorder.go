// Package metrics provides the in-memory timing and counter recorder that,
// together with internal/logging, forms the pipeline's observability sink.
// All state is process-lifetime; nothing is persisted.
package metrics

import (
	"sync"
	"time"
)

// OpStats holds the counters for one operation (pipeline stage, check, provider call).
type OpStats struct {
	Count         int64         `json:"count"`
	Failures      int64         `json:"failures"`
	TotalDuration time.Duration `json:"total_duration"`
	MaxDuration   time.Duration `json:"max_duration"`
}

// Avg returns the mean duration across all recorded runs.
func (s OpStats) Avg() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(s.Count)
}

func (s *OpStats) add(d time.Duration, failed bool) {
	s.Count++
	if failed {
		s.Failures++
	}
	s.TotalDuration += d
	if d > s.MaxDuration {
		s.MaxDuration = d
	}
}

// Snapshot is a point-in-time copy of all recorded stats.
type Snapshot struct {
	Total       OpStats            `json:"total"`
	ByOperation map[string]OpStats `json:"by_operation"`
	BySession   map[string]OpStats `json:"by_session"`
}

// Recorder aggregates operation timings behind a mutex. Safe for concurrent use.
type Recorder struct {
	mu          sync.Mutex
	total       OpStats
	byOperation map[string]*OpStats
	bySession   map[string]*OpStats
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		byOperation: make(map[string]*OpStats),
		bySession:   make(map[string]*OpStats),
	}
}

// Record adds one operation run. sessionID may be empty for sessionless work.
func (r *Recorder) Record(operation, sessionID string, d time.Duration, failed bool) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.total.add(d, failed)
	r.bucket(r.byOperation, operation).add(d, failed)
	if sessionID != "" {
		r.bucket(r.bySession, sessionID).add(d, failed)
	}
}

// Timer starts a timer for one operation. Call the returned func with the
// failure flag once the outcome is known.
func (r *Recorder) Timer(operation, sessionID string) func(failed bool) {
	start := time.Now()
	return func(failed bool) {
		r.Record(operation, sessionID, time.Since(start), failed)
	}
}

func (r *Recorder) bucket(m map[string]*OpStats, key string) *OpStats {
	s, ok := m[key]
	if !ok {
		s = &OpStats{}
		m[key] = s
	}
	return s
}

// Stats returns a copy of all aggregated stats.
func (r *Recorder) Stats() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		Total:       r.total,
		ByOperation: make(map[string]OpStats, len(r.byOperation)),
		BySession:   make(map[string]OpStats, len(r.bySession)),
	}
	for k, v := range r.byOperation {
		snap.ByOperation[k] = *v
	}
	for k, v := range r.bySession {
		snap.BySession[k] = *v
	}
	return snap
}

// ForgetSession drops the per-session bucket; called when a session ends so the
// session map stays bounded by the number of live sessions.
func (r *Recorder) ForgetSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bySession, sessionID)
}

// Reset clears everything. Intended for tests.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total = OpStats{}
	r.byOperation = make(map[string]*OpStats)
	r.bySession = make(map[string]*OpStats)
}
