// Package quality implements the pluggable quality-assurance pipeline: a
// registry of named checks executed over arbitrary text/code, producing a
// scored, graded report. Checks are pure content functions; a check that
// panics is isolated and logged, never aborting the batch.
package quality

import (
	"time"
)

// Severity of one finding. Closed enumeration.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Weight returns the scoring weight for a severity.
func (s Severity) Weight() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 3
	case SeverityHigh:
		return 5
	case SeverityCritical:
		return 10
	default:
		return 1
	}
}

// Category of one finding. Closed enumeration.
type Category string

const (
	CategorySyntax        Category = "syntax"
	CategorySecurity      Category = "security"
	CategoryPerformance   Category = "performance"
	CategoryErrorHandling Category = "error_handling"
	CategoryDocumentation Category = "documentation"
	CategoryTesting       Category = "testing"
	CategoryStyle         Category = "style"
)

// Issue is one check finding.
type Issue struct {
	CheckID          string   `json:"check_id"`
	Severity         Severity `json:"severity"`
	Category         Category `json:"category"`
	Message          string   `json:"message"`
	Line             int      `json:"line,omitempty"`   // 1-based; 0 = not located
	Column           int      `json:"column,omitempty"` // 1-based; 0 = not located
	AutoFixAvailable bool     `json:"auto_fix_available"`
}

// Grade bands for the aggregate score.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// GradeFor maps a score to its band. Pure, monotonic step function.
func GradeFor(score int) Grade {
	switch {
	case score >= 90:
		return GradeA
	case score >= 80:
		return GradeB
	case score >= 70:
		return GradeC
	case score >= 60:
		return GradeD
	default:
		return GradeF
	}
}

// Report is the aggregated result of one check run.
type Report struct {
	ID              string    `json:"id"`
	Target          string    `json:"target"`
	Issues          []Issue   `json:"issues"`
	Score           int       `json:"score"`      // 0..100
	Grade           Grade     `json:"grade"`      // A..F
	Confidence      float64   `json:"confidence"` // 0..1
	ChecksExecuted  []string  `json:"checks_executed"`
	Recommendations []string  `json:"recommendations"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// CheckContext carries metadata into check functions.
type CheckContext struct {
	Target    string // What the content is (response, code file name, ...)
	SessionID string
	Language  string // Best-effort language hint, may be empty
}

// CheckFunc inspects content and reports at most one finding, or nil.
type CheckFunc func(content string, ctx CheckContext) *Issue

// Check is one registered check.
type Check struct {
	ID          string
	Category    Category
	Severity    Severity // Default severity applied when the func leaves it empty
	AutoFix     bool
	Description string
	Fn          CheckFunc
}

// Config controls which checks run and how.
type Config struct {
	EnabledChecks []string // nil = all registered checks
	Parallel      bool     // Run checks concurrently within one report
}
