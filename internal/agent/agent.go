// Package agent is the orchestrator: it owns the session table and
// drives each request through the pipeline stages, from context
// enrichment to the final memory update.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"promptpilot/internal/executor"
	"promptpilot/internal/learning"
	"promptpilot/internal/logging"
	"promptpilot/internal/memory"
	"promptpilot/internal/metrics"
	"promptpilot/internal/planner"
	"promptpilot/internal/prompt"
	"promptpilot/internal/provider"
	"promptpilot/internal/quality"
	"promptpilot/internal/recovery"
)

// Config holds the per-agent tunables.
type Config struct {
	MaxRetries          int  `yaml:"max_retries"`
	TimeoutMs           int  `yaml:"timeout_ms"`
	EnableLearning      bool `yaml:"enable_learning"`
	EnableQualityChecks bool `yaml:"enable_quality_checks"`
	EnableErrorRecovery bool `yaml:"enable_error_recovery"`
	AdaptationEnabled   bool `yaml:"adaptation_enabled"`
	ParallelChecks      bool `yaml:"parallel_checks"`
}

// DefaultConfig returns the standard tunables: three retries, a five
// minute budget, every subsystem enabled.
func DefaultConfig() Config {
	return Config{
		MaxRetries:          3,
		TimeoutMs:           300000,
		EnableLearning:      true,
		EnableQualityChecks: true,
		EnableErrorRecovery: true,
		AdaptationEnabled:   true,
	}
}

func (c Config) normalized() Config {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.TimeoutMs <= 0 {
		c.TimeoutMs = DefaultConfig().TimeoutMs
	}
	return c
}

// RequestContext carries the optional, typed per-request fields. Extra
// holds anything the caller wants echoed into memory snapshots; unknown
// shapes stop here rather than threading through the pipeline untyped.
type RequestContext struct {
	SessionID string
	Language  string
	FilePath  string
	Task      string
	Extra     map[string]string
}

func (rc RequestContext) snapshot() map[string]string {
	snap := make(map[string]string, len(rc.Extra)+3)
	for k, v := range rc.Extra {
		snap[k] = v
	}
	if rc.Language != "" {
		snap["language"] = rc.Language
	}
	if rc.FilePath != "" {
		snap["file"] = rc.FilePath
	}
	if rc.Task != "" {
		snap["task"] = rc.Task
	}
	return snap
}

// Metadata is the observability block attached to every Result.
type Metadata struct {
	Duration           time.Duration `json:"duration"`
	ReasoningSteps     []string      `json:"reasoning_steps,omitempty"`
	QualityScore       *float64      `json:"quality_score,omitempty"`
	PromptScore        int           `json:"prompt_score,omitempty"`
	Attempts           int           `json:"attempts,omitempty"`
	ErrorRecoveryUsed  bool          `json:"error_recovery_used,omitempty"`
	AdaptationsApplied []string      `json:"adaptations_applied,omitempty"`
}

// Result is what Process returns. It is always well formed; failures
// set Success=false and Error rather than surfacing as a Go error.
type Result struct {
	ID            string          `json:"id"`
	SessionID     string          `json:"session_id"`
	Success       bool            `json:"success"`
	Response      string          `json:"response,omitempty"`
	Error         string          `json:"error,omitempty"`
	Actions       []string        `json:"actions,omitempty"`
	QualityReport *quality.Report `json:"quality_report,omitempty"`
	Adaptations   []string        `json:"adaptations,omitempty"`
	Metadata      Metadata        `json:"metadata"`
}

// session is one live entry in the session table.
type session struct {
	id        string
	startedAt time.Time
	requests  int
	successes int
	failures  int
}

// SessionStats is the read-only view of a session's counters.
type SessionStats struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Requests  int       `json:"requests"`
	Successes int       `json:"successes"`
	Failures  int       `json:"failures"`
}

// Deps are the externally supplied collaborators. Client is required;
// everything else has a working default.
type Deps struct {
	Client   provider.Client
	Fallback provider.Client
	Recorder *metrics.Recorder

	// Sleep overrides the retry backoff wait. Tests use this to run
	// retry scenarios without real delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Agent orchestrates the request pipeline. Construct with New; the
// zero value is not usable.
type Agent struct {
	cfg      Config
	memory   *memory.SessionMemory
	learning *learning.Store
	planner  *planner.Planner
	synth    *prompt.Synthesizer
	quality  *quality.Pipeline
	exec     *executor.Executor
	recorder *metrics.Recorder

	sessions *sessionTable
}

// New wires an Agent from config and dependencies.
func New(cfg Config, deps Deps) (*Agent, error) {
	if deps.Client == nil {
		return nil, fmt.Errorf("agent: provider client is required")
	}
	cfg = cfg.normalized()

	mem := memory.NewSessionMemory()
	store := learning.NewStore()
	mem.SetInsightSource(store)

	var mgr *recovery.Manager
	if cfg.EnableErrorRecovery {
		mgr = recovery.DefaultManager()
	}

	exec := executor.New(deps.Client, deps.Fallback, mgr, deps.Recorder, executor.Config{
		MaxRetries:        cfg.MaxRetries,
		EnableRecovery:    cfg.EnableErrorRecovery,
		AdaptationEnabled: cfg.AdaptationEnabled,
		Sleep:             deps.Sleep,
	})

	return &Agent{
		cfg:      cfg,
		memory:   mem,
		learning: store,
		planner:  planner.New(mem),
		synth:    prompt.New(),
		quality:  quality.NewPipeline(quality.Config{Parallel: cfg.ParallelChecks}),
		exec:     exec,
		recorder: deps.Recorder,
		sessions: newSessionTable(),
	}, nil
}

// Memory exposes the session memory store, mainly for preference edits.
func (a *Agent) Memory() *memory.SessionMemory { return a.memory }

// Learning exposes the learning store.
func (a *Agent) Learning() *learning.Store { return a.learning }

// Quality exposes the QA pipeline, for check registration and report
// inspection.
func (a *Agent) Quality() *quality.Pipeline { return a.quality }

// Metrics returns the current recorder snapshot, or the zero snapshot
// when no recorder was supplied.
func (a *Agent) Metrics() metrics.Snapshot {
	if a.recorder == nil {
		return metrics.Snapshot{}
	}
	return a.recorder.Stats()
}

// StartSession registers a session id. Starting an existing session is
// a no-op.
func (a *Agent) StartSession(id string) {
	if a.sessions.start(id) {
		logging.Session("session %s started", id)
	}
}

// EndSession removes a session and its conversation history. Ending an
// unknown session is a no-op.
func (a *Agent) EndSession(id string) {
	if stats, ok := a.sessions.end(id); ok {
		a.memory.DropSession(id)
		if a.recorder != nil {
			a.recorder.ForgetSession(id)
		}
		logging.Session("session %s ended: %d requests, %d ok, %d failed",
			id, stats.Requests, stats.Successes, stats.Failures)
	}
}

// SessionStats returns a session's counters.
func (a *Agent) SessionStats(id string) (SessionStats, bool) {
	return a.sessions.stats(id)
}

// Sessions lists active session ids.
func (a *Agent) Sessions() []string { return a.sessions.ids() }

// Close ends every active session.
func (a *Agent) Close() {
	for _, id := range a.sessions.ids() {
		a.EndSession(id)
	}
}

// Process drives one request through the pipeline. It never returns an
// error: every failure path, including panics, degrades to a Result
// with Success=false. The configured timeout bounds the whole pipeline
// through the context.
func (a *Agent) Process(ctx context.Context, request string, rc RequestContext) (result *Result) {
	start := time.Now()
	result = &Result{
		ID:        uuid.New().String(),
		SessionID: rc.SessionID,
	}
	defer func() {
		if r := recover(); r != nil {
			logging.Agent("panic during process for session %s: %v", rc.SessionID, r)
			result.Success = false
			result.Error = fmt.Sprintf("internal fault: %v", r)
		}
		result.Metadata.Duration = time.Since(start)
		a.sessions.record(rc.SessionID, result.Success)
		a.recordMetric(rc.SessionID, result)
	}()

	if request == "" {
		result.Error = "empty request"
		return result
	}
	if !a.sessions.exists(rc.SessionID) {
		result.Error = fmt.Sprintf("unknown session %q: call StartSession first", rc.SessionID)
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(a.cfg.TimeoutMs)*time.Millisecond)
	defer cancel()

	a.runPipeline(ctx, request, rc, result)
	return result
}

func (a *Agent) recordMetric(sessionID string, result *Result) {
	if a.recorder == nil {
		return
	}
	a.recorder.Record("process", sessionID, result.Metadata.Duration, !result.Success)
}
