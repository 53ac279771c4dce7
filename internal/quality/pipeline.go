package quality

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"promptpilot/internal/logging"
)

// Pipeline holds the check registry and the report cache.
type Pipeline struct {
	mu      sync.RWMutex
	checks  []Check        // Registration order
	byID    map[string]int // check id -> index into checks
	reports map[string]*Report
	config  Config
}

// NewPipeline creates a pipeline with the built-in check set.
func NewPipeline(config Config) *Pipeline {
	p := &Pipeline{
		byID:    make(map[string]int),
		reports: make(map[string]*Report),
		config:  config,
	}
	for _, c := range builtinChecks() {
		p.register(c)
	}
	return p
}

// NewEmptyPipeline creates a pipeline with no checks registered.
func NewEmptyPipeline(config Config) *Pipeline {
	return &Pipeline{
		byID:    make(map[string]int),
		reports: make(map[string]*Report),
		config:  config,
	}
}

// Register adds (or replaces) a named check.
func (p *Pipeline) Register(c Check) error {
	if c.ID == "" || c.Fn == nil {
		return fmt.Errorf("check needs an id and a function")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.register(c)
	return nil
}

func (p *Pipeline) register(c Check) {
	if idx, ok := p.byID[c.ID]; ok {
		p.checks[idx] = c
		return
	}
	p.byID[c.ID] = len(p.checks)
	p.checks = append(p.checks, c)
}

// Checks returns the ids of all registered checks in registration order.
func (p *Pipeline) Checks() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.checks))
	for i, c := range p.checks {
		out[i] = c.ID
	}
	return out
}

// enabledChecks resolves the configured subset, keeping registration order.
func (p *Pipeline) enabledChecks() []Check {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.config.EnabledChecks == nil {
		out := make([]Check, len(p.checks))
		copy(out, p.checks)
		return out
	}
	enabled := make(map[string]bool, len(p.config.EnabledChecks))
	for _, id := range p.config.EnabledChecks {
		enabled[id] = true
	}
	var out []Check
	for _, c := range p.checks {
		if enabled[c.ID] {
			out = append(out, c)
		}
	}
	return out
}

// RunQualityCheck executes the enabled checks over content and returns the
// scored report. Individual check panics are isolated, logged at warn, and
// treated as "no issue found" for that check.
func (p *Pipeline) RunQualityCheck(ctx context.Context, content, target string, cctx CheckContext) *Report {
	checks := p.enabledChecks()
	cctx.Target = target

	start := time.Now()
	results := make([]*Issue, len(checks))
	ran := make([]bool, len(checks))

	if p.config.Parallel {
		g, _ := errgroup.WithContext(ctx)
		for i := range checks {
			i := i
			g.Go(func() error {
				results[i] = runCheck(checks[i], content, cctx)
				ran[i] = true
				return nil
			})
		}
		_ = g.Wait() // Check failures are isolated inside runCheck, never returned
	} else {
		for i := range checks {
			if ctx.Err() != nil {
				break
			}
			results[i] = runCheck(checks[i], content, cctx)
			ran[i] = true
		}
	}

	// Checks skipped by cancellation must not count toward the score or
	// confidence denominators.
	var issues []Issue
	executed := make([]string, 0, len(checks))
	for i, c := range checks {
		if !ran[i] {
			continue
		}
		executed = append(executed, c.ID)
		if results[i] != nil {
			issues = append(issues, *results[i])
		}
	}

	report := p.buildReport(target, issues, executed)

	p.mu.Lock()
	p.reports[report.ID] = report
	p.mu.Unlock()

	logging.Quality("report %s target=%s checks=%d issues=%d score=%d grade=%s (%v)",
		report.ID, target, len(executed), len(issues), report.Score, report.Grade, time.Since(start))
	return report
}

// runCheck executes one check with panic isolation and stamps registration
// metadata onto the finding.
func runCheck(c Check, content string, cctx CheckContext) (issue *Issue) {
	defer func() {
		if r := recover(); r != nil {
			logging.Get(logging.CategoryQuality).Warn("check %s panicked: %v (treated as no issue)", c.ID, r)
			issue = nil
		}
	}()

	issue = c.Fn(content, cctx)
	if issue == nil {
		return nil
	}
	issue.CheckID = c.ID
	issue.Category = c.Category
	if issue.Severity == "" {
		issue.Severity = c.Severity
	}
	if c.AutoFix {
		issue.AutoFixAvailable = true
	}
	return issue
}

// buildReport derives score, grade, confidence and recommendations.
//
// Scoring: weightedIssues = sum of severity weights; maxPossibleIssues =
// checksExecuted x critical weight; score = round(max(0, 100 -
// weighted/maxPossible x 100)), or 100 when no checks executed.
func (p *Pipeline) buildReport(target string, issues []Issue, executed []string) *Report {
	report := &Report{
		ID:             uuid.NewString(),
		Target:         target,
		Issues:         issues,
		ChecksExecuted: executed,
		GeneratedAt:    time.Now(),
	}

	checkCount := len(executed)
	if checkCount == 0 {
		report.Score = 100
		report.Confidence = 0
	} else {
		weighted := 0
		for _, issue := range issues {
			weighted += issue.Severity.Weight()
		}
		maxPossible := checkCount * SeverityCritical.Weight()
		raw := 100 - (float64(weighted)/float64(maxPossible))*100
		report.Score = int(math.Round(math.Max(0, raw)))
		report.Confidence = float64(checkCount-len(issues)) / float64(checkCount)
		if report.Confidence < 0 {
			report.Confidence = 0
		}
	}
	report.Grade = GradeFor(report.Score)
	report.Recommendations = recommendations(issues)
	return report
}

// recommendations applies the fixed advice rules.
func recommendations(issues []Issue) []string {
	if len(issues) == 0 {
		return []string{"no issues found - great work"}
	}

	var out []string
	highCount := 0
	hasCritical, hasTesting, hasDocs := false, false, false
	for _, issue := range issues {
		switch issue.Severity {
		case SeverityCritical:
			hasCritical = true
		case SeverityHigh:
			highCount++
		}
		switch issue.Category {
		case CategoryTesting:
			hasTesting = true
		case CategoryDocumentation:
			hasDocs = true
		}
	}

	if hasCritical {
		out = append(out, "critical issues present: address them immediately before shipping")
	}
	if highCount > 5 {
		out = append(out, "many high-severity issues: break the code into smaller pieces")
	}
	if hasTesting {
		out = append(out, "improve test coverage for the affected code")
	}
	if hasDocs {
		out = append(out, "add documentation for the public surface")
	}
	return out
}

// GetReport returns a cached report by id.
func (p *Pipeline) GetReport(id string) (*Report, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.reports[id]
	return r, ok
}

// ReportCount returns the number of cached reports.
func (p *Pipeline) ReportCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.reports)
}

// ClearOldReports prunes cached reports older than the given number of days.
// Returns how many were removed.
func (p *Pipeline) ClearOldReports(days int) int {
	cutoff := time.Now().AddDate(0, 0, -days)

	p.mu.Lock()
	defer p.mu.Unlock()
	removed := 0
	for id, r := range p.reports {
		if r.GeneratedAt.Before(cutoff) {
			delete(p.reports, id)
			removed++
		}
	}
	return removed
}
