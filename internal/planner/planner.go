// Package planner converts a free-form request into an ordered workflow
// plan. Plans feed the reasoning-step metadata on results and give the
// log stream a coarse trace of what the pipeline intends to do; nothing
// in the execution path dispatches on their contents.
package planner

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"promptpilot/internal/logging"
	"promptpilot/internal/memory"
)

// TaskKind is the coarse classification of a request.
type TaskKind string

const (
	TaskGenerate TaskKind = "generate"
	TaskDebug    TaskKind = "debug"
	TaskRefactor TaskKind = "refactor"
	TaskExplain  TaskKind = "explain"
	TaskReview   TaskKind = "review"
	TaskGeneral  TaskKind = "general"
)

// StepStatus tracks a step through its lifecycle.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepActive    StepStatus = "active"
	StepCompleted StepStatus = "completed"
	StepSkipped   StepStatus = "skipped"
)

// Step is one named unit of a workflow plan.
type Step struct {
	ID     string     `json:"id"`
	Kind   string     `json:"kind"`
	Status StepStatus `json:"status"`
}

// WorkflowPlan is an ordered step list for a single request. Steps are
// fixed once the plan is created; only their Status field advances.
type WorkflowPlan struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Task      TaskKind  `json:"task"`
	Steps     []Step    `json:"steps"`
	Fallback  bool      `json:"fallback,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// StepKinds returns the plan's step kinds in order. Used as the
// reasoning-step trace on results.
func (p *WorkflowPlan) StepKinds() []string {
	kinds := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		kinds[i] = s.Kind
	}
	return kinds
}

// MarkStep advances the status of the step with the given id. Unknown
// ids are ignored.
func (p *WorkflowPlan) MarkStep(stepID string, status StepStatus) {
	for i := range p.Steps {
		if p.Steps[i].ID == stepID {
			p.Steps[i].Status = status
			return
		}
	}
}

// Planner builds workflow plans from requests plus session history.
type Planner struct {
	memory *memory.SessionMemory
}

// New returns a Planner. The memory store may be nil; history-aware
// steps are simply omitted.
func New(mem *memory.SessionMemory) *Planner {
	return &Planner{memory: mem}
}

// stepTemplates maps each task kind to its ordered step kinds.
// Registration here is the single source of plan shape.
var stepTemplates = map[TaskKind][]string{
	TaskGenerate: {"analyze_requirements", "draft_solution", "generate_code", "self_check"},
	TaskDebug:    {"reproduce_issue", "isolate_cause", "propose_fix", "verify_fix"},
	TaskRefactor: {"map_current_structure", "plan_changes", "apply_refactor", "verify_behavior"},
	TaskExplain:  {"identify_subject", "gather_context", "compose_explanation"},
	TaskReview:   {"scan_for_issues", "assess_severity", "summarize_findings"},
	TaskGeneral:  {"analyze", "execute", "validate"},
}

// CreateWorkflowPlan classifies the request and instantiates the matching
// step template. On any internal failure it degrades to the fixed
// fallback plan rather than surfacing an error; planning must never
// block the pipeline.
func (pl *Planner) CreateWorkflowPlan(sessionID, request string, reqContext map[string]string) (plan *WorkflowPlan) {
	defer func() {
		if r := recover(); r != nil {
			logging.Planner("plan construction panicked, using fallback: %v", r)
			plan = pl.FallbackPlan(sessionID)
		}
	}()

	task := ClassifyTask(request, reqContext)
	kinds, ok := stepTemplates[task]
	if !ok || len(kinds) == 0 {
		logging.Planner("no template for task %q, using fallback", task)
		return pl.FallbackPlan(sessionID)
	}

	plan = &WorkflowPlan{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Task:      task,
		CreatedAt: time.Now(),
	}

	// When the session already has history, front-load a recall step so
	// the trace shows prior context being consulted.
	if pl.memory != nil && pl.memory.EntryCount(sessionID) > 0 {
		plan.Steps = append(plan.Steps, newStep("recall_session_context"))
	}
	for _, kind := range kinds {
		plan.Steps = append(plan.Steps, newStep(kind))
	}

	logging.Planner("session %s: task=%s steps=%d", sessionID, task, len(plan.Steps))
	return plan
}

// FallbackPlan is the deterministic three-step plan used when normal
// plan construction fails.
func (pl *Planner) FallbackPlan(sessionID string) *WorkflowPlan {
	plan := &WorkflowPlan{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Task:      TaskGeneral,
		Fallback:  true,
		CreatedAt: time.Now(),
	}
	for _, kind := range stepTemplates[TaskGeneral] {
		plan.Steps = append(plan.Steps, newStep(kind))
	}
	return plan
}

func newStep(kind string) Step {
	return Step{ID: uuid.New().String(), Kind: kind, Status: StepPending}
}

// ClassifyTask derives a TaskKind from the leading verb of the request,
// falling back to keyword scanning over the whole text. An explicit
// "task" entry in the request context wins over inference.
func ClassifyTask(request string, reqContext map[string]string) TaskKind {
	if reqContext != nil {
		if t, ok := reqContext["task"]; ok {
			if kind := TaskKind(strings.ToLower(strings.TrimSpace(t))); kind.valid() {
				return kind
			}
		}
	}

	trimmed := strings.TrimSpace(request)
	if trimmed == "" {
		return TaskGeneral
	}

	first, _ := splitFirstToken(trimmed)
	switch strings.ToLower(first) {
	case "create", "build", "implement", "write", "generate", "add", "make":
		return TaskGenerate
	case "debug", "fix", "diagnose", "investigate", "troubleshoot", "repair", "resolve":
		return TaskDebug
	case "refactor", "rewrite", "restructure", "cleanup", "simplify", "optimize":
		return TaskRefactor
	case "explain", "describe", "summarize", "teach", "document", "clarify":
		return TaskExplain
	case "review", "audit", "check", "inspect", "evaluate":
		return TaskReview
	}

	lower := strings.ToLower(trimmed)
	switch {
	case containsAny(lower, "bug", "error", "crash", "broken", "failing", "stack trace"):
		return TaskDebug
	case containsAny(lower, "refactor", "clean up", "restructure", "tech debt"):
		return TaskRefactor
	case containsAny(lower, "explain", "what does", "how does", "why does"):
		return TaskExplain
	case containsAny(lower, "review", "feedback on", "look over"):
		return TaskReview
	case containsAny(lower, "new function", "new feature", "implement", "write a", "build a"):
		return TaskGenerate
	}
	return TaskGeneral
}

func (t TaskKind) valid() bool {
	_, ok := stepTemplates[t]
	return ok
}

func splitFirstToken(s string) (string, string) {
	for i, r := range s {
		if r == ' ' || r == '\t' || r == '\n' {
			return s[:i], strings.TrimSpace(s[i:])
		}
	}
	return s, ""
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
