// Package memory implements the per-session conversation store: ordered
// conversation history, a preference snapshot, and derived learning insights.
// Entries for a session live exactly as long as the session does.
package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"promptpilot/internal/logging"
)

// DefaultEntryCap is the per-session bound on retained conversation entries.
const DefaultEntryCap = 50

// Outcome describes how a turn ended.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// ConversationEntry records one request/response turn.
type ConversationEntry struct {
	ID        string            `json:"id"`
	SessionID string            `json:"session_id"`
	Request   string            `json:"request"`
	Response  string            `json:"response"`
	Context   map[string]string `json:"context,omitempty"` // Snapshot of request context
	Outcome   Outcome           `json:"outcome"`
	Timestamp time.Time         `json:"timestamp"`
}

// Preferences is the user preference snapshot consulted during prompt synthesis.
type Preferences struct {
	Verbosity    string `json:"verbosity"`     // concise | normal | detailed
	CodeStyle    string `json:"code_style"`    // idiomatic | defensive | minimal
	Language     string `json:"language"`      // preferred output language
	ExplainSteps bool   `json:"explain_steps"` // include reasoning in responses
}

// DefaultPreferences returns the snapshot used when nothing has been set.
func DefaultPreferences() Preferences {
	return Preferences{
		Verbosity: "normal",
		CodeStyle: "idiomatic",
		Language:  "en",
	}
}

// InsightSource supplies externally derived insights (the learning store).
type InsightSource interface {
	Insights(sessionID string) []string
}

// SessionMemory owns conversation entries keyed by session id.
// All methods are safe for concurrent use.
type SessionMemory struct {
	mu       sync.RWMutex
	entries  map[string][]ConversationEntry // Insertion order per session
	prefs    Preferences
	prefsSet bool
	entryCap int

	insights InsightSource // Optional
}

// NewSessionMemory creates a store with the default per-session cap.
func NewSessionMemory() *SessionMemory {
	return &SessionMemory{
		entries:  make(map[string][]ConversationEntry),
		entryCap: DefaultEntryCap,
	}
}

// SetEntryCap overrides the per-session entry bound (minimum 1).
func (m *SessionMemory) SetEntryCap(n int) {
	if n < 1 {
		n = 1
	}
	m.mu.Lock()
	m.entryCap = n
	m.mu.Unlock()
}

// SetInsightSource wires the learning store in as an insight supplier.
func (m *SessionMemory) SetInsightSource(src InsightSource) {
	m.mu.Lock()
	m.insights = src
	m.mu.Unlock()
}

// AddConversationEntry appends a turn and trims to the per-session cap.
// Returns the generated entry id.
func (m *SessionMemory) AddConversationEntry(sessionID, request, response string, contextSnapshot map[string]string, outcome Outcome) string {
	entry := ConversationEntry{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Request:   request,
		Response:  response,
		Context:   contextSnapshot,
		Outcome:   outcome,
		Timestamp: time.Now(),
	}

	m.mu.Lock()
	list := append(m.entries[sessionID], entry)
	if len(list) > m.entryCap {
		list = list[len(list)-m.entryCap:]
	}
	m.entries[sessionID] = list
	count := len(list)
	m.mu.Unlock()

	logging.Memory("entry added session=%s outcome=%s (entries=%d)", sessionID, outcome, count)
	return entry.ID
}

// GetRelevantContext returns the most recent limit entries for the session in
// chronological order (oldest of the window first). Entries never cross
// sessions. limit <= 0 returns the whole retained window.
func (m *SessionMemory) GetRelevantContext(sessionID, request string, limit int) []ConversationEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.entries[sessionID]
	n := len(list)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]ConversationEntry, limit)
	copy(out, list[n-limit:])
	return out
}

// EntryCount returns how many entries a session currently retains.
func (m *SessionMemory) EntryCount(sessionID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries[sessionID])
}

// GetUserPreferences returns the preference snapshot, or defaults when none set.
func (m *SessionMemory) GetUserPreferences() Preferences {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.prefsSet {
		return DefaultPreferences()
	}
	return m.prefs
}

// SetUserPreferences replaces the preference snapshot.
func (m *SessionMemory) SetUserPreferences(p Preferences) {
	m.mu.Lock()
	m.prefs = p
	m.prefsSet = true
	m.mu.Unlock()
}

// GetLearningInsights returns derived insights for the session. Sessions with
// no history (or no insight source) get an empty slice, never an error.
func (m *SessionMemory) GetLearningInsights(sessionID string) []string {
	m.mu.RLock()
	src := m.insights
	list := m.entries[sessionID]
	m.mu.RUnlock()

	var out []string
	if src != nil {
		out = append(out, src.Insights(sessionID)...)
	}

	// Memory's own contribution: dominant outcome of the retained window.
	if len(list) >= 3 {
		failures := 0
		for _, e := range list {
			if e.Outcome == OutcomeFailure {
				failures++
			}
		}
		if failures*2 > len(list) {
			out = append(out, "recent turns mostly failed; restate the request with more detail")
		}
	}
	return out
}

// DropSession discards all entries for a session. Idempotent.
func (m *SessionMemory) DropSession(sessionID string) {
	m.mu.Lock()
	delete(m.entries, sessionID)
	m.mu.Unlock()
	logging.Memory("session dropped session=%s", sessionID)
}

// Sessions returns ids of sessions currently holding entries.
func (m *SessionMemory) Sessions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.entries))
	for id := range m.entries {
		out = append(out, id)
	}
	return out
}
