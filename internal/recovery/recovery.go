// Package recovery holds the strategies consulted when a provider call
// fails mid-retry. A strategy either declines or produces a recovered
// result together with the list of adaptations it applied.
package recovery

import (
	"context"
	"strings"

	"promptpilot/internal/logging"
	"promptpilot/internal/provider"
)

// Context is the failure snapshot handed to strategies. Strategies read
// it to decide applicability and to re-issue an adapted provider call.
type Context struct {
	SessionID    string
	Request      string // raw user request, pre-synthesis
	Prompt       string // synthesized prompt that failed
	SystemPrompt string
	Client       provider.Client
	Fallback     provider.Client // alternate provider, may be nil

	// AdaptationEnabled gates whether strategies may change the prompt
	// or the provider choice. When false every mutating strategy must
	// decline.
	AdaptationEnabled bool

	Attempt int
}

// Outcome reports what a recovery invocation did.
type Outcome struct {
	Recovered    bool
	Result       string
	StrategyUsed string
	Adaptations  []string
}

// Strategy is one recovery capability. CanHandle must be cheap and
// side-effect free; Attempt may call the provider.
type Strategy interface {
	Name() string
	CanHandle(err error, rc *Context) bool
	Attempt(ctx context.Context, err error, rc *Context) (Outcome, error)
}

// Manager tries strategies in registration order and runs the first
// applicable one. Exactly one strategy is attempted per invocation.
type Manager struct {
	strategies []Strategy
}

// NewManager builds a Manager over the given strategies, in order.
func NewManager(strategies ...Strategy) *Manager {
	return &Manager{strategies: strategies}
}

// DefaultManager wires the built-in strategy set in its canonical
// order: simplify the prompt, switch provider, trim context.
func DefaultManager() *Manager {
	return NewManager(
		&PromptSimplify{},
		&ProviderSwitch{},
		&ContextTrim{},
	)
}

// Strategies lists registered strategy names in order.
func (m *Manager) Strategies() []string {
	names := make([]string, len(m.strategies))
	for i, s := range m.strategies {
		names[i] = s.Name()
	}
	return names
}

// Recover runs the first strategy whose CanHandle accepts the failure.
// A strategy that itself errors counts as not recovered; no further
// strategies are consulted.
func (m *Manager) Recover(ctx context.Context, failure error, rc *Context) Outcome {
	if m == nil || rc == nil {
		return Outcome{}
	}
	for _, s := range m.strategies {
		if !s.CanHandle(failure, rc) {
			continue
		}
		logging.Recovery("session %s attempt %d: trying strategy %s", rc.SessionID, rc.Attempt, s.Name())
		out, err := s.Attempt(ctx, failure, rc)
		if err != nil {
			logging.Recovery("strategy %s failed: %v", s.Name(), err)
			return Outcome{StrategyUsed: s.Name()}
		}
		out.StrategyUsed = s.Name()
		return out
	}
	logging.Recovery("session %s: no strategy applicable for: %v", rc.SessionID, failure)
	return Outcome{}
}

// ===== PROMPT SIMPLIFY =====

// PromptSimplify retries with the bare user request when the provider
// rejected the synthesized prompt or returned nothing for it. Heavily
// decorated prompts are the usual culprit for both.
type PromptSimplify struct{}

func (*PromptSimplify) Name() string { return "prompt_simplify" }

func (*PromptSimplify) CanHandle(err error, rc *Context) bool {
	if !rc.AdaptationEnabled || rc.Client == nil || strings.TrimSpace(rc.Request) == "" {
		return false
	}
	if perr, ok := provider.AsError(err); ok {
		return perr.Kind == provider.ErrKindBadInput || perr.Kind == provider.ErrKindEmpty
	}
	return false
}

func (*PromptSimplify) Attempt(ctx context.Context, _ error, rc *Context) (Outcome, error) {
	simplified := strings.TrimSpace(rc.Request) + "\n\nKeep the answer short and direct."
	res, err := rc.Client.Complete(ctx, simplified)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Recovered:   true,
		Result:      res,
		Adaptations: []string{"simplified prompt to raw request"},
	}, nil
}

// ===== PROVIDER SWITCH =====

// ProviderSwitch re-issues the original prompt against the configured
// fallback provider on transport or quota failures.
type ProviderSwitch struct{}

func (*ProviderSwitch) Name() string { return "provider_switch" }

func (*ProviderSwitch) CanHandle(err error, rc *Context) bool {
	if !rc.AdaptationEnabled || rc.Fallback == nil {
		return false
	}
	if perr, ok := provider.AsError(err); ok {
		return perr.Kind == provider.ErrKindTransport || perr.Kind == provider.ErrKindQuota
	}
	return false
}

func (*ProviderSwitch) Attempt(ctx context.Context, _ error, rc *Context) (Outcome, error) {
	var res string
	var err error
	if rc.SystemPrompt != "" {
		res, err = rc.Fallback.CompleteWithSystem(ctx, rc.SystemPrompt, rc.Prompt)
	} else {
		res, err = rc.Fallback.Complete(ctx, rc.Prompt)
	}
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Recovered:   true,
		Result:      res,
		Adaptations: []string{"switched to fallback provider"},
	}, nil
}

// ===== CONTEXT TRIM =====

// trimThreshold is the prompt length below which trimming is pointless.
const trimThreshold = 2000

// ContextTrim halves an oversized prompt, keeping its head, when the
// provider signals quota or input-size trouble.
type ContextTrim struct{}

func (*ContextTrim) Name() string { return "context_trim" }

func (*ContextTrim) CanHandle(err error, rc *Context) bool {
	if !rc.AdaptationEnabled || rc.Client == nil || len(rc.Prompt) < trimThreshold {
		return false
	}
	if perr, ok := provider.AsError(err); ok {
		return perr.Kind == provider.ErrKindQuota || perr.Kind == provider.ErrKindBadInput
	}
	return false
}

func (*ContextTrim) Attempt(ctx context.Context, _ error, rc *Context) (Outcome, error) {
	trimmed := rc.Prompt[:len(rc.Prompt)/2] + "\n\n[context truncated]"
	res, err := rc.Client.Complete(ctx, trimmed)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Recovered:   true,
		Result:      res,
		Adaptations: []string{"trimmed prompt context by half"},
	}, nil
}
