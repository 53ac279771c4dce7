// Package executor owns the retry loop around provider calls. Provider
// clients are single shot; every retry, backoff, and recovery decision
// lives here.
package executor

import (
	"context"
	"fmt"
	"time"

	"promptpilot/internal/logging"
	"promptpilot/internal/metrics"
	"promptpilot/internal/provider"
	"promptpilot/internal/recovery"
)

const (
	baseDelay = 1000 * time.Millisecond
	maxDelay  = 30000 * time.Millisecond
)

// Backoff returns the sleep before retry number attempt+1. The sequence
// doubles from one second and caps at thirty.
func Backoff(attempt int) time.Duration {
	d := baseDelay * (1 << attempt)
	if d > maxDelay || d <= 0 {
		return maxDelay
	}
	return d
}

// Config bounds one executor.
type Config struct {
	// MaxRetries is the number of retries after the first attempt, so a
	// value of N allows N+1 attempts in total.
	MaxRetries int

	// EnableRecovery gates consulting recovery strategies on failure.
	EnableRecovery bool

	// AdaptationEnabled is passed through to recovery strategies; when
	// false they may not change the prompt or provider.
	AdaptationEnabled bool

	// Sleep overrides the backoff wait, for tests. Nil uses real timers.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Request is one unit of work for Execute.
type Request struct {
	SessionID    string
	UserRequest  string // raw request, used by prompt-simplify recovery
	Prompt       string // synthesized prompt sent to the provider
	SystemPrompt string
}

// Result reports a finished execution, successful or not.
type Result struct {
	Response     string   `json:"response"`
	Attempts     int      `json:"attempts"`
	RecoveryUsed bool     `json:"recovery_used"`
	StrategyUsed string   `json:"strategy_used,omitempty"`
	Adaptations  []string `json:"adaptations,omitempty"`
}

// Executor drives provider calls with retry, backoff, and recovery.
type Executor struct {
	client   provider.Client
	fallback provider.Client
	recovery *recovery.Manager
	recorder *metrics.Recorder
	cfg      Config
}

// New builds an Executor. The recovery manager and fallback client may
// be nil; the recorder may be nil when metrics are not wanted.
func New(client provider.Client, fallback provider.Client, mgr *recovery.Manager, rec *metrics.Recorder, cfg Config) *Executor {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Executor{
		client:   client,
		fallback: fallback,
		recovery: mgr,
		recorder: rec,
		cfg:      cfg,
	}
}

// Execute runs the request until success, recovery, or exhaustion.
// Attempts are numbered 0..MaxRetries. A recovery pass that fails does
// not consume a retry; the loop falls through to the normal backoff.
// The returned error, when non-nil, names the attempt count and the
// last provider failure.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	res := &Result{}
	done := e.timer(req.SessionID)

	var lastErr error
	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		res.Attempts = attempt + 1

		out, err := e.call(ctx, req)
		if err == nil {
			logging.Execution("session %s: success on attempt %d", req.SessionID, attempt)
			res.Response = out
			done(false)
			return res, nil
		}
		lastErr = err
		logging.Execution("session %s: attempt %d failed: %v", req.SessionID, attempt, err)

		if perr, ok := provider.AsError(err); ok && !perr.IsRetryable() && !e.cfg.EnableRecovery {
			break
		}

		if e.cfg.EnableRecovery && e.recovery != nil && attempt < e.cfg.MaxRetries {
			outcome := e.recovery.Recover(ctx, err, &recovery.Context{
				SessionID:         req.SessionID,
				Request:           req.UserRequest,
				Prompt:            req.Prompt,
				SystemPrompt:      req.SystemPrompt,
				Client:            e.client,
				Fallback:          e.fallback,
				AdaptationEnabled: e.cfg.AdaptationEnabled,
				Attempt:           attempt,
			})
			if outcome.Recovered {
				logging.Recovery("session %s: recovered via %s on attempt %d", req.SessionID, outcome.StrategyUsed, attempt)
				res.Response = outcome.Result
				res.RecoveryUsed = true
				res.StrategyUsed = outcome.StrategyUsed
				res.Adaptations = outcome.Adaptations
				done(false)
				return res, nil
			}
		}

		if attempt < e.cfg.MaxRetries {
			if err := e.sleep(ctx, Backoff(attempt)); err != nil {
				done(true)
				return res, fmt.Errorf("execution cancelled after %d attempts: %w", res.Attempts, err)
			}
		}
	}

	done(true)
	return res, fmt.Errorf("execution failed after %d attempts: %w", res.Attempts, lastErr)
}

func (e *Executor) call(ctx context.Context, req Request) (string, error) {
	if req.SystemPrompt != "" {
		return e.client.CompleteWithSystem(ctx, req.SystemPrompt, req.Prompt)
	}
	return e.client.Complete(ctx, req.Prompt)
}

func (e *Executor) sleep(ctx context.Context, d time.Duration) error {
	if e.cfg.Sleep != nil {
		return e.cfg.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (e *Executor) timer(sessionID string) func(failed bool) {
	if e.recorder == nil {
		return func(bool) {}
	}
	return e.recorder.Timer("execute", sessionID)
}
