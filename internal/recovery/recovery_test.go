package recovery

import (
	"context"
	"errors"
	"strings"
	"testing"

	"promptpilot/internal/provider"
)

func kindErr(kind provider.ErrorKind) error {
	return &provider.Error{Kind: kind, Provider: provider.NameMock, Message: "boom"}
}

func TestNoStrategyForUnknownError(t *testing.T) {
	m := DefaultManager()
	rc := &Context{
		SessionID:         "s1",
		Request:           "do it",
		Prompt:            "do it",
		Client:            provider.NewMockClient("ok"),
		AdaptationEnabled: true,
	}
	out := m.Recover(context.Background(), errors.New("not a provider error"), rc)
	if out.Recovered || out.StrategyUsed != "" {
		t.Errorf("unexpected recovery: %+v", out)
	}
}

func TestAdaptationDisabledDeclinesAll(t *testing.T) {
	m := DefaultManager()
	rc := &Context{
		SessionID: "s1",
		Request:   "do it",
		Prompt:    strings.Repeat("p", 3000),
		Client:    provider.NewMockClient("ok"),
		Fallback:  provider.NewMockClient("ok"),
	}
	for _, kind := range []provider.ErrorKind{
		provider.ErrKindTransport, provider.ErrKindQuota,
		provider.ErrKindBadInput, provider.ErrKindEmpty,
	} {
		if out := m.Recover(context.Background(), kindErr(kind), rc); out.Recovered {
			t.Errorf("kind %s recovered with adaptation disabled", kind)
		}
	}
}

func TestPromptSimplifyRecoversBadInput(t *testing.T) {
	client := provider.NewMockClient("short answer")
	m := DefaultManager()
	rc := &Context{
		SessionID:         "s1",
		Request:           "explain the build failure",
		Prompt:            "## Task\nexplain the build failure\n## Lots of context...",
		Client:            client,
		AdaptationEnabled: true,
	}
	out := m.Recover(context.Background(), kindErr(provider.ErrKindBadInput), rc)

	if !out.Recovered || out.Result != "short answer" {
		t.Fatalf("outcome = %+v", out)
	}
	if out.StrategyUsed != "prompt_simplify" {
		t.Errorf("strategy = %q", out.StrategyUsed)
	}
	if len(out.Adaptations) != 1 {
		t.Errorf("adaptations = %v", out.Adaptations)
	}
	if len(client.Prompts) != 1 || !strings.HasPrefix(client.Prompts[0], "explain the build failure") {
		t.Errorf("simplified prompt not sent: %v", client.Prompts)
	}
}

func TestProviderSwitchOnTransportError(t *testing.T) {
	fallback := provider.NewMockClient("from fallback")
	m := DefaultManager()
	rc := &Context{
		SessionID:         "s1",
		Request:           "do it",
		Prompt:            "the synthesized prompt",
		SystemPrompt:      "you are helpful",
		Client:            provider.NewScriptedClient(provider.MockTurn{Err: kindErr(provider.ErrKindTransport)}),
		Fallback:          fallback,
		AdaptationEnabled: true,
	}
	out := m.Recover(context.Background(), kindErr(provider.ErrKindTransport), rc)

	if !out.Recovered || out.Result != "from fallback" {
		t.Fatalf("outcome = %+v", out)
	}
	if out.StrategyUsed != "provider_switch" {
		t.Errorf("strategy = %q", out.StrategyUsed)
	}
	if fallback.CallCount() != 1 {
		t.Errorf("fallback calls = %d, want 1", fallback.CallCount())
	}
}

func TestTransportWithoutFallbackDeclines(t *testing.T) {
	m := DefaultManager()
	rc := &Context{
		SessionID:         "s1",
		Request:           "do it",
		Prompt:            "short",
		Client:            provider.NewMockClient("ok"),
		AdaptationEnabled: true,
	}
	if out := m.Recover(context.Background(), kindErr(provider.ErrKindTransport), rc); out.Recovered {
		t.Errorf("recovered without a fallback provider: %+v", out)
	}
}

func TestContextTrimOnQuotaWithLongPrompt(t *testing.T) {
	client := provider.NewMockClient("trimmed answer")
	// Quota with no fallback skips provider_switch and lands on trim.
	m := DefaultManager()
	rc := &Context{
		SessionID:         "s1",
		Prompt:            strings.Repeat("a", 4000),
		Client:            client,
		AdaptationEnabled: true,
	}
	out := m.Recover(context.Background(), kindErr(provider.ErrKindQuota), rc)

	if !out.Recovered || out.StrategyUsed != "context_trim" {
		t.Fatalf("outcome = %+v", out)
	}
	sent := client.Prompts[0]
	if len(sent) >= 4000 {
		t.Errorf("prompt not trimmed, len = %d", len(sent))
	}
	if !strings.Contains(sent, "[context truncated]") {
		t.Error("trim marker missing")
	}
}

func TestFirstApplicableStrategyWins(t *testing.T) {
	// Quota + long prompt + fallback present: provider_switch registers
	// before context_trim and must be the one tried.
	fallback := provider.NewMockClient("switched")
	m := DefaultManager()
	rc := &Context{
		SessionID:         "s1",
		Prompt:            strings.Repeat("a", 4000),
		Client:            provider.NewMockClient("should not be used"),
		Fallback:          fallback,
		AdaptationEnabled: true,
	}
	out := m.Recover(context.Background(), kindErr(provider.ErrKindQuota), rc)

	if out.StrategyUsed != "provider_switch" {
		t.Errorf("strategy = %q, want provider_switch", out.StrategyUsed)
	}
	if out.Result != "switched" {
		t.Errorf("result = %q", out.Result)
	}
}

func TestStrategyFailureStopsRecovery(t *testing.T) {
	// The chosen strategy's own call fails; no second strategy runs.
	failing := provider.NewScriptedClient(provider.MockTurn{Err: kindErr(provider.ErrKindTransport)})
	m := DefaultManager()
	rc := &Context{
		SessionID:         "s1",
		Request:           "do it",
		Prompt:            strings.Repeat("a", 4000),
		Client:            failing,
		AdaptationEnabled: true,
	}
	out := m.Recover(context.Background(), kindErr(provider.ErrKindBadInput), rc)

	if out.Recovered {
		t.Fatalf("recovered despite strategy failure: %+v", out)
	}
	if out.StrategyUsed != "prompt_simplify" {
		t.Errorf("strategy = %q, want prompt_simplify", out.StrategyUsed)
	}
	if failing.CallCount() != 1 {
		t.Errorf("calls = %d, want exactly one strategy attempt", failing.CallCount())
	}
}

func TestStrategyOrder(t *testing.T) {
	got := DefaultManager().Strategies()
	want := []string{"prompt_simplify", "provider_switch", "context_trim"}
	if len(got) != len(want) {
		t.Fatalf("strategies = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("strategy[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
