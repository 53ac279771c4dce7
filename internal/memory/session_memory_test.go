package memory

import (
	"fmt"
	"sync"
	"testing"
)

func TestAddAndGetOrdering(t *testing.T) {
	m := NewSessionMemory()

	for i := 0; i < 4; i++ {
		id := m.AddConversationEntry("s1", fmt.Sprintf("req-%d", i), "resp", nil, OutcomeSuccess)
		if id == "" {
			t.Fatal("entry id should not be empty")
		}
	}

	got := m.GetRelevantContext("s1", "anything", 2)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	// Chronological: oldest of the window first.
	if got[0].Request != "req-2" || got[1].Request != "req-3" {
		t.Errorf("window = [%s %s], want [req-2 req-3]", got[0].Request, got[1].Request)
	}
}

func TestSessionIsolation(t *testing.T) {
	m := NewSessionMemory()
	m.AddConversationEntry("a", "from-a", "r", nil, OutcomeSuccess)
	m.AddConversationEntry("b", "from-b", "r", nil, OutcomeSuccess)

	for _, e := range m.GetRelevantContext("a", "", 0) {
		if e.SessionID != "a" {
			t.Errorf("entry leaked from session %s", e.SessionID)
		}
	}
	if len(m.GetRelevantContext("missing", "", 0)) != 0 {
		t.Error("unknown session should return empty slice")
	}
}

func TestPerSessionCap(t *testing.T) {
	m := NewSessionMemory()
	m.SetEntryCap(3)

	for i := 0; i < 5; i++ {
		m.AddConversationEntry("s1", fmt.Sprintf("req-%d", i), "r", nil, OutcomeSuccess)
	}

	if m.EntryCount("s1") != 3 {
		t.Fatalf("EntryCount = %d, want 3", m.EntryCount("s1"))
	}
	got := m.GetRelevantContext("s1", "", 0)
	if got[0].Request != "req-2" {
		t.Errorf("oldest retained = %q, want req-2", got[0].Request)
	}
}

func TestPreferencesDefaults(t *testing.T) {
	m := NewSessionMemory()

	p := m.GetUserPreferences()
	if p.Verbosity != "normal" || p.CodeStyle != "idiomatic" {
		t.Errorf("unexpected defaults: %+v", p)
	}

	m.SetUserPreferences(Preferences{Verbosity: "concise"})
	if m.GetUserPreferences().Verbosity != "concise" {
		t.Error("preference update not visible")
	}
}

type stubInsights struct{ out []string }

func (s stubInsights) Insights(string) []string { return s.out }

func TestLearningInsights(t *testing.T) {
	m := NewSessionMemory()

	// Absent everything: empty, never an error.
	if got := m.GetLearningInsights("s1"); len(got) != 0 {
		t.Errorf("expected no insights, got %v", got)
	}

	m.SetInsightSource(stubInsights{out: []string{"from learning store"}})
	got := m.GetLearningInsights("s1")
	if len(got) != 1 || got[0] != "from learning store" {
		t.Errorf("insight source not consulted: %v", got)
	}

	// Mostly failed recent turns add a memory-derived hint.
	for i := 0; i < 4; i++ {
		m.AddConversationEntry("s1", "req", "r", nil, OutcomeFailure)
	}
	got = m.GetLearningInsights("s1")
	if len(got) != 2 {
		t.Fatalf("expected learning + memory insight, got %v", got)
	}
}

func TestDropSession(t *testing.T) {
	m := NewSessionMemory()
	m.AddConversationEntry("s1", "req", "r", nil, OutcomeSuccess)
	m.DropSession("s1")
	m.DropSession("s1") // Idempotent

	if m.EntryCount("s1") != 0 {
		t.Error("entries should be gone after DropSession")
	}
}

func TestConcurrentSessions(t *testing.T) {
	m := NewSessionMemory()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			session := fmt.Sprintf("s%d", g%2)
			for i := 0; i < 50; i++ {
				m.AddConversationEntry(session, "req", "resp", nil, OutcomeSuccess)
				_ = m.GetRelevantContext(session, "", 5)
				_ = m.GetLearningInsights(session)
			}
		}(g)
	}
	wg.Wait()

	// Both sessions hit the cap, nothing beyond it.
	for _, s := range []string{"s0", "s1"} {
		if m.EntryCount(s) != DefaultEntryCap {
			t.Errorf("session %s entries = %d, want %d", s, m.EntryCount(s), DefaultEntryCap)
		}
	}
}
