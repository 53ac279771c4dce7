// Package prompt assembles the final instruction text sent to the
// provider from the request, plan, session history, preferences, and
// learning insights.
package prompt

import (
	"fmt"
	"strings"

	"promptpilot/internal/logging"
	"promptpilot/internal/memory"
	"promptpilot/internal/planner"
)

// historyWindow caps how many prior turns are woven into a prompt.
const historyWindow = 3

// Context carries everything the synthesizer may draw on for one
// request. Zero-value fields are simply left out of the prompt.
type Context struct {
	SessionID   string
	Request     string
	Plan        *planner.WorkflowPlan
	History     []memory.ConversationEntry
	Preferences memory.Preferences
	Insights    []string
}

// Result is a synthesized prompt plus a rough self-assessment of how
// much context went into it.
type Result struct {
	FinalPrompt       string            `json:"final_prompt"`
	OptimizationScore int               `json:"optimization_score"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// Synthesizer builds provider prompts. The zero value is usable.
type Synthesizer struct{}

// New returns a Synthesizer.
func New() *Synthesizer {
	return &Synthesizer{}
}

// roleHeaders keys on the planner's task classification.
var roleHeaders = map[planner.TaskKind]string{
	planner.TaskGenerate: "You are an expert software engineer. Produce working, idiomatic code.",
	planner.TaskDebug:    "You are an expert debugger. Find the root cause before proposing fixes.",
	planner.TaskRefactor: "You are an expert software engineer. Improve structure without changing behavior.",
	planner.TaskExplain:  "You are a patient technical teacher. Explain clearly and accurately.",
	planner.TaskReview:   "You are a thorough code reviewer. Identify concrete, actionable issues.",
	planner.TaskGeneral:  "You are a capable software assistant.",
}

// GenerateOptimizedPrompt assembles the instruction text for one
// request. It never returns an error; on any internal failure the raw
// request is passed through with a reduced score so execution is never
// blocked by prompt optimization.
func (s *Synthesizer) GenerateOptimizedPrompt(task planner.TaskKind, pc Context) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			logging.Prompt("synthesis panicked, passing raw request: %v", r)
			res = s.fallback(pc.Request)
		}
	}()

	if strings.TrimSpace(pc.Request) == "" {
		return s.fallback(pc.Request)
	}

	var b strings.Builder
	score := 60
	meta := map[string]string{"task": string(task)}

	header, ok := roleHeaders[task]
	if !ok {
		header = roleHeaders[planner.TaskGeneral]
	}
	b.WriteString(header)
	b.WriteString("\n\n## Task\n")
	b.WriteString(strings.TrimSpace(pc.Request))
	b.WriteString("\n")

	if len(pc.History) > 0 {
		turns := pc.History
		if len(turns) > historyWindow {
			turns = turns[len(turns)-historyWindow:]
		}
		b.WriteString("\n## Conversation so far\n")
		for _, e := range turns {
			fmt.Fprintf(&b, "User: %s\nAssistant: %s\n", summarize(e.Request), summarize(e.Response))
		}
		score += 15
		meta["history_turns"] = fmt.Sprintf("%d", len(turns))
	}

	if prefs := preferenceLines(pc.Preferences); len(prefs) > 0 {
		b.WriteString("\n## User preferences\n")
		for _, p := range prefs {
			b.WriteString("- " + p + "\n")
		}
		score += 10
	}

	if len(pc.Insights) > 0 {
		b.WriteString("\n## Lessons from earlier sessions\n")
		for _, ins := range pc.Insights {
			b.WriteString("- " + ins + "\n")
		}
		score += 10
	}

	if pc.Plan != nil && len(pc.Plan.Steps) > 0 {
		b.WriteString("\n## Suggested approach\n")
		for i, kind := range pc.Plan.StepKinds() {
			fmt.Fprintf(&b, "%d. %s\n", i+1, strings.ReplaceAll(kind, "_", " "))
		}
		score += 5
	}

	b.WriteString("\n## Output\nRespond directly to the task. Prefer concrete code and examples over generalities.\n")

	if score > 100 {
		score = 100
	}
	logging.Prompt("session %s: synthesized prompt, score=%d", pc.SessionID, score)
	return Result{FinalPrompt: b.String(), OptimizationScore: score, Metadata: meta}
}

func (s *Synthesizer) fallback(request string) Result {
	return Result{
		FinalPrompt:       request,
		OptimizationScore: 50,
		Metadata:          map[string]string{"fallback": "raw_request"},
	}
}

// preferenceLines renders only the preferences that differ from the
// neutral defaults, so an untouched preference snapshot adds nothing.
func preferenceLines(p memory.Preferences) []string {
	var out []string
	def := memory.DefaultPreferences()
	if p.Verbosity != "" && p.Verbosity != def.Verbosity {
		out = append(out, "verbosity: "+p.Verbosity)
	}
	if p.CodeStyle != "" && p.CodeStyle != def.CodeStyle {
		out = append(out, "code style: "+p.CodeStyle)
	}
	if p.Language != "" && p.Language != def.Language {
		out = append(out, "preferred language: "+p.Language)
	}
	if p.ExplainSteps {
		out = append(out, "explain reasoning step by step")
	}
	return out
}

// summarize clips long turn text so history stays a window, not a dump.
func summarize(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	const max = 200
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
