package agent

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"promptpilot/internal/memory"
	"promptpilot/internal/metrics"
	"promptpilot/internal/provider"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

func instantSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func newTestAgent(t *testing.T, cfg Config, client provider.Client) *Agent {
	t.Helper()
	a, err := New(cfg, Deps{Client: client, Sleep: instantSleep})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func TestNewRequiresClient(t *testing.T) {
	if _, err := New(DefaultConfig(), Deps{}); err == nil {
		t.Fatal("expected error for missing client")
	}
}

func TestSuccessfulProcess(t *testing.T) {
	a := newTestAgent(t, DefaultConfig(), provider.NewMockClient("the answer"))
	a.StartSession("s1")

	res := a.Process(context.Background(), "explain the cache layer", RequestContext{SessionID: "s1"})

	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
	if res.Response != "the answer" {
		t.Errorf("response = %q", res.Response)
	}
	if res.ID == "" || res.SessionID != "s1" {
		t.Errorf("identity = (%q, %q)", res.ID, res.SessionID)
	}
	if res.Metadata.Duration < 0 {
		t.Error("negative duration")
	}
	if len(res.Metadata.ReasoningSteps) == 0 {
		t.Error("reasoning steps missing")
	}
	if res.Metadata.Attempts != 1 {
		t.Errorf("attempts = %d", res.Metadata.Attempts)
	}
	if res.Metadata.QualityScore == nil {
		t.Error("quality score missing with checks enabled")
	}
	if res.QualityReport == nil {
		t.Error("quality report missing with checks enabled")
	}
}

func TestProcessNeverErrorsOnProviderFailure(t *testing.T) {
	client := provider.NewScriptedClient(provider.MockTurn{
		Err: &provider.Error{Kind: provider.ErrKindTransport, Provider: provider.NameMock, Message: "down"},
	})
	cfg := DefaultConfig()
	cfg.MaxRetries = 2
	cfg.EnableErrorRecovery = false
	a := newTestAgent(t, cfg, client)
	a.StartSession("s1")

	res := a.Process(context.Background(), "do something", RequestContext{SessionID: "s1"})

	if res.Success {
		t.Fatal("expected failure result")
	}
	if res.Metadata.Attempts != 3 {
		t.Errorf("attempts = %d, want 3 for maxRetries=2", res.Metadata.Attempts)
	}
	if !strings.Contains(res.Response, "3 attempt") {
		t.Errorf("failure response %q does not name the attempt count", res.Response)
	}
	if !strings.Contains(res.Error, "down") {
		t.Errorf("error %q does not carry the provider failure", res.Error)
	}
}

func TestFailOnceThenSucceedThroughPipeline(t *testing.T) {
	client := provider.NewScriptedClient(
		provider.MockTurn{Err: &provider.Error{Kind: provider.ErrKindTransport, Provider: provider.NameMock, Message: "blip"}},
		provider.MockTurn{Response: "second try"},
	)
	cfg := DefaultConfig()
	cfg.EnableErrorRecovery = false
	a := newTestAgent(t, cfg, client)
	a.StartSession("s1")

	res := a.Process(context.Background(), "do something", RequestContext{SessionID: "s1"})

	if !res.Success || res.Response != "second try" {
		t.Fatalf("result = %+v", res)
	}
	if res.Metadata.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", res.Metadata.Attempts)
	}
	if res.Metadata.ErrorRecoveryUsed {
		t.Error("plain retry reported as recovery")
	}
}

func TestLearningStoreGrowsByOneOnSuccess(t *testing.T) {
	a := newTestAgent(t, DefaultConfig(), provider.NewMockClient("fine"))
	a.StartSession("s1")

	before := a.Learning().Len()
	a.Process(context.Background(), "write a haiku about build systems", RequestContext{SessionID: "s1"})

	if got := a.Learning().Len(); got != before+1 {
		t.Fatalf("learning store length = %d, want %d", got, before+1)
	}
	recent := a.Learning().GetRecent(1)
	if len(recent) != 1 || !recent[0].Success {
		t.Errorf("last learning record = %+v", recent)
	}
	if recent[0].QualityScore == nil {
		t.Error("quality score not attached to learning record")
	}
}

func TestLearningDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableLearning = false
	a := newTestAgent(t, cfg, provider.NewMockClient("fine"))
	a.StartSession("s1")

	a.Process(context.Background(), "anything", RequestContext{SessionID: "s1"})
	if got := a.Learning().Len(); got != 0 {
		t.Errorf("learning store length = %d with learning disabled", got)
	}
}

func TestQualityChecksDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableQualityChecks = false
	a := newTestAgent(t, cfg, provider.NewMockClient("fine"))
	a.StartSession("s1")

	res := a.Process(context.Background(), "anything", RequestContext{SessionID: "s1"})
	if res.QualityReport != nil || res.Metadata.QualityScore != nil {
		t.Error("quality output present with checks disabled")
	}
	for _, action := range res.Actions {
		if strings.Contains(action, "check") {
			t.Errorf("gated stage %q appears in actions", action)
		}
	}
}

func TestMemoryUpdatedAfterProcess(t *testing.T) {
	a := newTestAgent(t, DefaultConfig(), provider.NewMockClient("remembered"))
	a.StartSession("s1")

	a.Process(context.Background(), "first request", RequestContext{SessionID: "s1", Language: "go"})

	entries := a.Memory().GetRelevantContext("s1", "", 10)
	if len(entries) != 1 {
		t.Fatalf("memory entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Request != "first request" || e.Response != "remembered" {
		t.Errorf("entry = %+v", e)
	}
	if e.Outcome != memory.OutcomeSuccess {
		t.Errorf("outcome = %q", e.Outcome)
	}
	if e.Context["language"] != "go" {
		t.Errorf("context snapshot = %v", e.Context)
	}
}

func TestFailureRecordedInMemoryAndLearning(t *testing.T) {
	client := provider.NewScriptedClient(provider.MockTurn{
		Err: &provider.Error{Kind: provider.ErrKindAuth, Provider: provider.NameMock, Message: "bad key"},
	})
	cfg := DefaultConfig()
	cfg.EnableErrorRecovery = false
	a := newTestAgent(t, cfg, client)
	a.StartSession("s1")

	res := a.Process(context.Background(), "do it", RequestContext{SessionID: "s1"})
	if res.Success {
		t.Fatal("expected failure")
	}

	entries := a.Memory().GetRelevantContext("s1", "", 10)
	if len(entries) != 1 || entries[0].Outcome != memory.OutcomeFailure {
		t.Errorf("memory entries = %+v", entries)
	}
	recent := a.Learning().GetRecent(1)
	if len(recent) != 1 || recent[0].Success {
		t.Errorf("learning record = %+v", recent)
	}
}

func TestEmptyRequestRejected(t *testing.T) {
	a := newTestAgent(t, DefaultConfig(), provider.NewMockClient("unused"))
	a.StartSession("s1")

	res := a.Process(context.Background(), "", RequestContext{SessionID: "s1"})
	if res.Success || res.Error != "empty request" {
		t.Errorf("result = %+v", res)
	}
	if a.Learning().Len() != 0 {
		t.Error("rejected request reached the learning store")
	}
}

func TestUnknownSessionRejected(t *testing.T) {
	a := newTestAgent(t, DefaultConfig(), provider.NewMockClient("unused"))

	res := a.Process(context.Background(), "hello", RequestContext{SessionID: "never-started"})
	if res.Success {
		t.Fatal("expected failure for unknown session")
	}
	if !strings.Contains(res.Error, "unknown session") {
		t.Errorf("error = %q", res.Error)
	}
}

func TestSessionLifecycle(t *testing.T) {
	a := newTestAgent(t, DefaultConfig(), provider.NewMockClient("ok"))

	a.StartSession("s1")
	a.StartSession("s1") // idempotent

	a.Process(context.Background(), "one", RequestContext{SessionID: "s1"})
	a.Process(context.Background(), "two", RequestContext{SessionID: "s1"})

	stats, ok := a.SessionStats("s1")
	if !ok {
		t.Fatal("session missing")
	}
	if stats.Requests != 2 || stats.Successes != 2 || stats.Failures != 0 {
		t.Errorf("stats = %+v", stats)
	}

	a.EndSession("s1")
	a.EndSession("s1") // idempotent
	if _, ok := a.SessionStats("s1"); ok {
		t.Error("session still present after EndSession")
	}
	if got := a.Memory().EntryCount("s1"); got != 0 {
		t.Errorf("memory entries after EndSession = %d", got)
	}
}

func TestHistoryFlowsIntoLaterRequests(t *testing.T) {
	client := provider.NewMockClient("ok")
	a := newTestAgent(t, DefaultConfig(), client)
	a.StartSession("s1")

	a.Process(context.Background(), "set up the database schema", RequestContext{SessionID: "s1"})
	a.Process(context.Background(), "now add an index", RequestContext{SessionID: "s1"})

	last := client.Prompts[len(client.Prompts)-1]
	if !strings.Contains(last, "set up the database schema") {
		t.Error("second prompt does not carry first-turn history")
	}
}

func TestConcurrentSessions(t *testing.T) {
	a := newTestAgent(t, DefaultConfig(), provider.NewMockClient("ok"))

	const sessions = 8
	done := make(chan string, sessions)
	for i := 0; i < sessions; i++ {
		id := string(rune('a' + i))
		a.StartSession(id)
		go func(id string) {
			for j := 0; j < 5; j++ {
				a.Process(context.Background(), "request "+id, RequestContext{SessionID: id})
			}
			done <- id
		}(id)
	}
	for i := 0; i < sessions; i++ {
		id := <-done
		stats, ok := a.SessionStats(id)
		if !ok || stats.Requests != 5 || stats.Successes != 5 {
			t.Errorf("session %s stats = %+v", id, stats)
		}
	}
}

func TestMetricsRecorded(t *testing.T) {
	rec := metrics.NewRecorder()
	a, err := New(DefaultConfig(), Deps{Client: provider.NewMockClient("ok"), Recorder: rec, Sleep: instantSleep})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()
	a.StartSession("s1")

	a.Process(context.Background(), "measure me", RequestContext{SessionID: "s1"})

	snap := a.Metrics()
	if snap.Total.Count == 0 {
		t.Fatalf("snapshot = %+v", snap)
	}
}
