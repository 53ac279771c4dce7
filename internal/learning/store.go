// Package learning implements the append-only outcome log that feeds prompt
// refinement. The store is a fixed-capacity ring buffer: once full, the oldest
// record is evicted on every append (FIFO). Records are never mutated after
// insertion.
package learning

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"promptpilot/internal/logging"
)

// DefaultCapacity is the ring-buffer bound on retained records.
const DefaultCapacity = 1000

// Record captures one interaction's outcome.
type Record struct {
	SessionID    string            `json:"session_id"`
	Request      string            `json:"request"`
	Response     string            `json:"response"`
	Success      bool              `json:"success"`
	QualityScore *float64          `json:"quality_score,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
	Context      map[string]string `json:"context,omitempty"`
}

// Store is a mutex-guarded ring buffer of Records.
type Store struct {
	mu       sync.RWMutex
	capacity int
	buf      []Record // Insertion order; index 0 is oldest
}

// NewStore creates a store with DefaultCapacity.
func NewStore() *Store {
	return NewStoreWithCapacity(DefaultCapacity)
}

// NewStoreWithCapacity creates a store with a custom bound (minimum 1).
func NewStoreWithCapacity(capacity int) *Store {
	if capacity < 1 {
		capacity = 1
	}
	return &Store{capacity: capacity}
}

// Record appends an entry, evicting the oldest when at capacity.
func (s *Store) Record(r Record) {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf = append(s.buf, r)
	if len(s.buf) > s.capacity {
		// Shift rather than reslice so the evicted head can be collected.
		copy(s.buf, s.buf[1:])
		s.buf = s.buf[:s.capacity]
	}

	logging.Learning("recorded outcome session=%s success=%v (stored=%d/%d)",
		r.SessionID, r.Success, len(s.buf), s.capacity)
}

// GetRecent returns up to limit of the newest records, oldest first.
// limit <= 0 returns everything.
func (s *Store) GetRecent(limit int) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.buf)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Record, limit)
	copy(out, s.buf[n-limit:])
	return out
}

// BySession returns up to limit of the newest records for one session, oldest first.
func (s *Store) BySession(sessionID string, limit int) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, r := range s.buf {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buf)
}

// Capacity returns the ring-buffer bound.
func (s *Store) Capacity() int {
	return s.capacity
}

// Clear empties the buffer.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = nil
}

// Insights derives human-readable guidance for a session from the stored
// outcomes. Empty slice when there is nothing to learn from yet.
func (s *Store) Insights(sessionID string) []string {
	records := s.BySession(sessionID, 0)
	if len(records) == 0 {
		return nil
	}

	successes := 0
	var scoreSum float64
	scored := 0
	failureWords := map[string]int{}
	for _, r := range records {
		if r.Success {
			successes++
		} else if reason, ok := r.Context["error"]; ok {
			for _, w := range dominantTokens(reason) {
				failureWords[w]++
			}
		}
		if r.QualityScore != nil {
			scoreSum += *r.QualityScore
			scored++
		}
	}

	var insights []string
	rate := float64(successes) / float64(len(records))
	insights = append(insights, fmt.Sprintf("session success rate %.0f%% over %d requests", rate*100, len(records)))

	if scored > 0 {
		insights = append(insights, fmt.Sprintf("average quality score %.1f", scoreSum/float64(scored)))
	}
	if rate < 0.5 && len(records) >= 4 {
		insights = append(insights, "frequent failures: prefer simpler, more explicit prompts")
	}
	if word, count := topWord(failureWords); count >= 2 {
		insights = append(insights, fmt.Sprintf("recurring failure mentions %q", word))
	}
	return insights
}

// dominantTokens picks the meaningful words out of an error string.
func dominantTokens(s string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,:;()[]\"'")
		if len(w) >= 5 {
			out = append(out, w)
		}
	}
	return out
}

func topWord(counts map[string]int) (string, int) {
	best, bestN := "", 0
	for w, n := range counts {
		if n > bestN || (n == bestN && w < best) {
			best, bestN = w, n
		}
	}
	return best, bestN
}
