package agent

import (
	"sort"
	"sync"
	"time"
)

// sessionTable is the concurrent map backing the agent's session
// lifecycle. Sessions exist only between explicit start and end calls;
// nothing is created on first access.
type sessionTable struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func newSessionTable() *sessionTable {
	return &sessionTable{sessions: make(map[string]*session)}
}

// start registers id and reports whether it was new.
func (t *sessionTable) start(id string) bool {
	if id == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sessions[id]; ok {
		return false
	}
	t.sessions[id] = &session{id: id, startedAt: time.Now()}
	return true
}

// end removes id and returns its final counters.
func (t *sessionTable) end(id string) (SessionStats, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[id]
	if !ok {
		return SessionStats{}, false
	}
	delete(t.sessions, id)
	return statsOf(s), true
}

func (t *sessionTable) exists(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.sessions[id]
	return ok
}

// record bumps the request and outcome counters for id, if present.
func (t *sessionTable) record(id string, success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[id]
	if !ok {
		return
	}
	s.requests++
	if success {
		s.successes++
	} else {
		s.failures++
	}
}

func (t *sessionTable) stats(id string) (SessionStats, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[id]
	if !ok {
		return SessionStats{}, false
	}
	return statsOf(s), true
}

func (t *sessionTable) ids() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.sessions))
	for id := range t.sessions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func statsOf(s *session) SessionStats {
	return SessionStats{
		ID:        s.id,
		StartedAt: s.startedAt,
		Requests:  s.requests,
		Successes: s.successes,
		Failures:  s.failures,
	}
}
