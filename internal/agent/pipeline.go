package agent

import (
	"context"
	"fmt"

	"promptpilot/internal/executor"
	"promptpilot/internal/learning"
	"promptpilot/internal/logging"
	"promptpilot/internal/memory"
	"promptpilot/internal/planner"
	"promptpilot/internal/prompt"
	"promptpilot/internal/quality"
)

// stage enumerates the pipeline's control points, in order.
type stage int

const (
	stageEnrich stage = iota
	stagePlan
	stagePreCheck
	stageSynthesize
	stageExecute
	stagePostCheck
	stageLearn
	stageMemory
	stageDone
)

var stageNames = [...]string{
	"enrich", "plan", "pre-check", "synthesize",
	"execute", "post-check", "learn", "memory", "done",
}

func (s stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// stageStatus is the tagged result of running one stage.
type stageStatus int

const (
	stageOK       stageStatus = iota
	stageSkipped              // gated off by configuration
	stageFallback             // degraded but the pipeline continues
	stageFatal                // request cannot succeed; record and finish
)

// pipelineState is the data threaded between stages for one request.
type pipelineState struct {
	request string
	rc      RequestContext
	snap    map[string]string

	history  []memory.ConversationEntry
	prefs    memory.Preferences
	insights []string

	task      planner.TaskKind
	plan      *planner.WorkflowPlan
	promptRes prompt.Result

	execRes *executor.Result
	execErr error

	postReport *quality.Report
}

// runPipeline drives the stage machine for one request and fills in
// result. Failures inside a stage degrade or finish the pipeline; they
// never propagate as panics past this function.
func (a *Agent) runPipeline(ctx context.Context, request string, rc RequestContext, result *Result) {
	ps := &pipelineState{request: request, rc: rc, snap: rc.snapshot()}

	for st := stageEnrich; st != stageDone; {
		status := a.runStage(ctx, st, ps, result)
		switch status {
		case stageOK:
			result.Actions = append(result.Actions, st.String())
		case stageSkipped:
			// gated stages leave no action entry
		case stageFallback:
			result.Actions = append(result.Actions, st.String()+" (fallback)")
		case stageFatal:
			result.Actions = append(result.Actions, st.String()+" (failed)")
			// Still record the failed outcome before finishing.
			if st < stageLearn {
				st = stageLearn
				continue
			}
		}
		st++
	}

	result.Success = ps.execErr == nil && ps.execRes != nil
	logging.Agent("session %s: pipeline done, success=%t actions=%d", rc.SessionID, result.Success, len(result.Actions))
}

// runStage executes one stage over the shared state. Each stage is
// individually recovered so a fault degrades that stage instead of
// killing the request.
func (a *Agent) runStage(ctx context.Context, st stage, ps *pipelineState, result *Result) (status stageStatus) {
	defer func() {
		if r := recover(); r != nil {
			logging.Agent("stage %s panicked for session %s: %v", st, ps.rc.SessionID, r)
			if st == stageExecute {
				ps.execErr = fmt.Errorf("execute stage fault: %v", r)
				status = stageFatal
			} else {
				status = stageFallback
			}
		}
	}()

	switch st {
	case stageEnrich:
		return a.stageEnrich(ps)
	case stagePlan:
		return a.stagePlan(ps, result)
	case stagePreCheck:
		return a.stagePreCheck(ctx, ps)
	case stageSynthesize:
		return a.stageSynthesize(ps, result)
	case stageExecute:
		return a.stageExecute(ctx, ps, result)
	case stagePostCheck:
		return a.stagePostCheck(ctx, ps, result)
	case stageLearn:
		return a.stageLearn(ps, result)
	case stageMemory:
		return a.stageMemory(ps)
	}
	return stageOK
}

func (a *Agent) stageEnrich(ps *pipelineState) stageStatus {
	ps.history = a.memory.GetRelevantContext(ps.rc.SessionID, ps.request, 5)
	ps.prefs = a.memory.GetUserPreferences()
	ps.insights = a.memory.GetLearningInsights(ps.rc.SessionID)
	return stageOK
}

func (a *Agent) stagePlan(ps *pipelineState, result *Result) stageStatus {
	ps.task = planner.ClassifyTask(ps.request, ps.snap)
	ps.plan = a.planner.CreateWorkflowPlan(ps.rc.SessionID, ps.request, ps.snap)
	result.Metadata.ReasoningSteps = ps.plan.StepKinds()
	if ps.plan.Fallback {
		return stageFallback
	}
	return stageOK
}

func (a *Agent) stagePreCheck(ctx context.Context, ps *pipelineState) stageStatus {
	if !a.cfg.EnableQualityChecks {
		return stageSkipped
	}
	report := a.quality.RunQualityCheck(ctx, ps.request, "request", quality.CheckContext{
		SessionID: ps.rc.SessionID,
		Language:  ps.rc.Language,
	})
	if len(report.Issues) > 0 {
		logging.Quality("session %s: pre-check found %d issue(s) in request", ps.rc.SessionID, len(report.Issues))
	}
	return stageOK
}

func (a *Agent) stageSynthesize(ps *pipelineState, result *Result) stageStatus {
	ps.promptRes = a.synth.GenerateOptimizedPrompt(ps.task, prompt.Context{
		SessionID:   ps.rc.SessionID,
		Request:     ps.request,
		Plan:        ps.plan,
		History:     ps.history,
		Preferences: ps.prefs,
		Insights:    ps.insights,
	})
	result.Metadata.PromptScore = ps.promptRes.OptimizationScore
	if ps.promptRes.Metadata["fallback"] != "" {
		return stageFallback
	}
	return stageOK
}

func (a *Agent) stageExecute(ctx context.Context, ps *pipelineState, result *Result) stageStatus {
	ps.execRes, ps.execErr = a.exec.Execute(ctx, executor.Request{
		SessionID:   ps.rc.SessionID,
		UserRequest: ps.request,
		Prompt:      ps.promptRes.FinalPrompt,
	})
	result.Metadata.Attempts = ps.execRes.Attempts
	if ps.execErr != nil {
		result.Error = ps.execErr.Error()
		result.Response = fmt.Sprintf("Request failed after %d attempt(s): %v", ps.execRes.Attempts, ps.execErr)
		return stageFatal
	}
	result.Response = ps.execRes.Response
	result.Metadata.ErrorRecoveryUsed = ps.execRes.RecoveryUsed
	result.Metadata.AdaptationsApplied = ps.execRes.Adaptations
	result.Adaptations = ps.execRes.Adaptations
	return stageOK
}

func (a *Agent) stagePostCheck(ctx context.Context, ps *pipelineState, result *Result) stageStatus {
	if !a.cfg.EnableQualityChecks {
		return stageSkipped
	}
	ps.postReport = a.quality.RunQualityCheck(ctx, ps.execRes.Response, "response", quality.CheckContext{
		SessionID: ps.rc.SessionID,
		Language:  ps.rc.Language,
	})
	result.QualityReport = ps.postReport
	score := float64(ps.postReport.Score)
	result.Metadata.QualityScore = &score
	return stageOK
}

func (a *Agent) stageLearn(ps *pipelineState, result *Result) stageStatus {
	if !a.cfg.EnableLearning {
		return stageSkipped
	}
	rec := learning.Record{
		SessionID: ps.rc.SessionID,
		Request:   ps.request,
		Response:  result.Response,
		Success:   ps.execErr == nil && ps.execRes != nil,
		Context:   ps.snap,
	}
	if ps.postReport != nil {
		score := float64(ps.postReport.Score)
		rec.QualityScore = &score
	}
	a.learning.Record(rec)
	return stageOK
}

func (a *Agent) stageMemory(ps *pipelineState) stageStatus {
	outcome := memory.OutcomeSuccess
	response := ""
	if ps.execRes != nil {
		response = ps.execRes.Response
	}
	if ps.execErr != nil {
		outcome = memory.OutcomeFailure
		response = ps.execErr.Error()
	}
	a.memory.AddConversationEntry(ps.rc.SessionID, ps.request, response, ps.snap, outcome)
	return stageOK
}
