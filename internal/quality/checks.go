package quality

import (
	"fmt"
	"regexp"
	"strings"
)

// builtinChecks returns the default check set, in registration order.
func builtinChecks() []Check {
	return []Check{
		{
			ID:          "syntax_validation",
			Category:    CategorySyntax,
			Severity:    SeverityHigh,
			AutoFix:     false,
			Description: "Unbalanced delimiters and unterminated string literals",
			Fn:          checkSyntax,
		},
		{
			ID:          "security_scan",
			Category:    CategorySecurity,
			Severity:    SeverityCritical,
			AutoFix:     false,
			Description: "Hardcoded credentials and injection-prone constructs",
			Fn:          checkSecurity,
		},
		{
			ID:          "performance_check",
			Category:    CategoryPerformance,
			Severity:    SeverityMedium,
			AutoFix:     false,
			Description: "Obvious performance smells (nested loops, string building in loops)",
			Fn:          checkPerformance,
		},
		{
			ID:          "error_handling",
			Category:    CategoryErrorHandling,
			Severity:    SeverityHigh,
			AutoFix:     true,
			Description: "Discarded or swallowed errors",
			Fn:          checkErrorHandling,
		},
		{
			ID:          "documentation_check",
			Category:    CategoryDocumentation,
			Severity:    SeverityLow,
			AutoFix:     true,
			Description: "Exported/public functions without any documentation",
			Fn:          checkDocumentation,
		},
		{
			ID:          "testing_check",
			Category:    CategoryTesting,
			Severity:    SeverityMedium,
			AutoFix:     false,
			Description: "Code with no visible test coverage signal",
			Fn:          checkTesting,
		},
		{
			ID:          "best_practices",
			Category:    CategoryStyle,
			Severity:    SeverityLow,
			AutoFix:     true,
			Description: "Style smells: very long lines, unresolved TODO buildup",
			Fn:          checkBestPractices,
		},
	}
}

// -----------------------------------------------------------------------------
// Check implementations. Each is a pure content function returning at most one
// finding; the pipeline stamps CheckID/Category/AutoFix from the registration.
// -----------------------------------------------------------------------------

// checkSyntax scans for unbalanced {}, [], () outside string literals and for
// strings left unterminated at end of line.
func checkSyntax(content string, ctx CheckContext) *Issue {
	type open struct {
		ch   byte
		line int
		col  int
	}
	var stack []open
	pairs := map[byte]byte{'}': '{', ']': '[', ')': '('}

	line, col := 1, 0
	var inString byte // 0 = not in string; otherwise the quote char
	stringStart := 0
	escaped := false

	for i := 0; i < len(content); i++ {
		c := content[i]
		col++
		if c == '\n' {
			if inString != 0 && inString != '`' {
				return &Issue{
					Severity: SeverityHigh,
					Message:  fmt.Sprintf("unterminated string literal starting on line %d", stringStart),
					Line:     stringStart,
				}
			}
			line++
			col = 0
			continue
		}

		if inString != 0 {
			if escaped {
				escaped = false
				continue
			}
			switch c {
			case '\\':
				escaped = true
			case inString:
				inString = 0
			}
			continue
		}

		switch c {
		// Single quotes are skipped: apostrophes in prose responses would
		// otherwise read as unterminated strings.
		case '"', '`':
			inString = c
			stringStart = line
		case '{', '[', '(':
			stack = append(stack, open{ch: c, line: line, col: col})
		case '}', ']', ')':
			want := pairs[c]
			if len(stack) == 0 || stack[len(stack)-1].ch != want {
				return &Issue{
					Severity: SeverityHigh,
					Message:  fmt.Sprintf("unexpected %q on line %d", string(c), line),
					Line:     line,
					Column:   col,
				}
			}
			stack = stack[:len(stack)-1]
		}
	}

	if inString != 0 && inString != '`' {
		return &Issue{
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("unterminated string literal starting on line %d", stringStart),
			Line:     stringStart,
		}
	}
	if len(stack) > 0 {
		top := stack[len(stack)-1]
		return &Issue{
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("unbalanced %q opened on line %d", string(top.ch), top.line),
			Line:     top.line,
			Column:   top.col,
		}
	}
	return nil
}

var (
	reHardcodedSecret = regexp.MustCompile(`(?i)(api[_-]?key|secret|password|token)\s*[:=]\s*["'][A-Za-z0-9+/_\-]{8,}["']`)
	reEval            = regexp.MustCompile(`(?i)\beval\s*\(`)
	reSQLConcat       = regexp.MustCompile(`(?i)(SELECT|INSERT|UPDATE|DELETE)\b[^\n]*("\s*\+|\+\s*")`)
	reShellInject     = regexp.MustCompile(`(?i)(exec|system|popen)\s*\([^)]*\+`)
)

// checkSecurity flags hardcoded credentials and injection-prone constructs.
func checkSecurity(content string, ctx CheckContext) *Issue {
	switch {
	case reHardcodedSecret.MatchString(content):
		return &Issue{
			Severity: SeverityCritical,
			Message:  "hardcoded credential detected; move secrets to configuration",
			Line:     matchLine(content, reHardcodedSecret),
		}
	case reSQLConcat.MatchString(content):
		return &Issue{
			Severity: SeverityCritical,
			Message:  "SQL built by string concatenation; use parameterized queries",
			Line:     matchLine(content, reSQLConcat),
		}
	case reShellInject.MatchString(content):
		return &Issue{
			Severity: SeverityCritical,
			Message:  "shell command built from dynamic input",
			Line:     matchLine(content, reShellInject),
		}
	case reEval.MatchString(content):
		return &Issue{
			Severity: SeverityHigh,
			Message:  "eval() on dynamic input is unsafe",
			Line:     matchLine(content, reEval),
		}
	}
	return nil
}

var (
	reStringConcatLoop = regexp.MustCompile(`(?s)for\b[^\n]*\{[^}]*\+=\s*["']`)
)

// checkPerformance looks for loop-shaped performance smells.
func checkPerformance(content string, ctx CheckContext) *Issue {
	if depth := maxLoopNesting(content); depth >= 3 {
		return &Issue{
			Severity: SeverityMedium,
			Message:  fmt.Sprintf("loops nested %d deep; consider restructuring", depth),
		}
	}
	if reStringConcatLoop.MatchString(content) {
		return &Issue{
			Severity: SeverityMedium,
			Message:  "string concatenation inside a loop; use a builder/buffer",
		}
	}
	return nil
}

// maxLoopNesting approximates loop nesting depth by tracking loop keywords
// against brace depth.
func maxLoopNesting(content string) int {
	reLoop := regexp.MustCompile(`^\s*(for|while)\b`)
	depth, maxDepth := 0, 0
	var loopDepths []int

	for _, ln := range strings.Split(content, "\n") {
		if reLoop.MatchString(ln) && strings.Contains(ln, "{") {
			loopDepths = append(loopDepths, depth)
		}
		for i := 0; i < len(ln); i++ {
			switch ln[i] {
			case '{':
				depth++
			case '}':
				depth--
				for len(loopDepths) > 0 && depth <= loopDepths[len(loopDepths)-1] {
					loopDepths = loopDepths[:len(loopDepths)-1]
				}
			}
		}
		if len(loopDepths) > maxDepth {
			maxDepth = len(loopDepths)
		}
	}
	return maxDepth
}

var (
	reDiscardedErr = regexp.MustCompile(`(?m)^\s*_\s*=\s*err\b|_\s*:?=\s*\w+\.\w+\(.*\)\s*//\s*ignore`)
	reEmptyCatch   = regexp.MustCompile(`catch\s*(\([^)]*\))?\s*\{\s*\}`)
	reExceptPass   = regexp.MustCompile(`(?m)^\s*except[^\n]*:\s*\n\s*pass\b`)
)

// checkErrorHandling flags discarded or swallowed errors.
func checkErrorHandling(content string, ctx CheckContext) *Issue {
	switch {
	case reDiscardedErr.MatchString(content):
		return &Issue{
			Severity: SeverityHigh,
			Message:  "error value discarded; handle or propagate it",
			Line:     matchLine(content, reDiscardedErr),
		}
	case reEmptyCatch.MatchString(content):
		return &Issue{
			Severity: SeverityHigh,
			Message:  "empty catch block swallows failures",
			Line:     matchLine(content, reEmptyCatch),
		}
	case reExceptPass.MatchString(content):
		return &Issue{
			Severity: SeverityHigh,
			Message:  "bare except/pass swallows failures",
			Line:     matchLine(content, reExceptPass),
		}
	}
	return nil
}

var (
	reFuncDecl = regexp.MustCompile(`(?m)^\s*(func|function|def)\s+[A-Za-z_]`)
	reComment  = regexp.MustCompile(`(?m)^\s*(//|#|/\*|\*)`)
)

// checkDocumentation flags function-bearing content with no comments at all.
func checkDocumentation(content string, ctx CheckContext) *Issue {
	funcs := len(reFuncDecl.FindAllString(content, -1))
	if funcs < 2 {
		return nil // Too little code to judge
	}
	if reComment.MatchString(content) {
		return nil
	}
	return &Issue{
		Severity: SeverityLow,
		Message:  fmt.Sprintf("%d functions with no documentation comments", funcs),
	}
}

// checkTesting flags code that defines functions but never references tests.
func checkTesting(content string, ctx CheckContext) *Issue {
	funcs := len(reFuncDecl.FindAllString(content, -1))
	if funcs < 3 {
		return nil
	}
	lower := strings.ToLower(content)
	if strings.Contains(lower, "test") || strings.Contains(lower, "assert") {
		return nil
	}
	return &Issue{
		Severity: SeverityMedium,
		Message:  "no test coverage signal for code defining multiple functions",
	}
}

// checkBestPractices flags style smells.
func checkBestPractices(content string, ctx CheckContext) *Issue {
	todos := strings.Count(content, "TODO") + strings.Count(content, "FIXME")
	if todos >= 3 {
		return &Issue{
			Severity: SeverityLow,
			Message:  fmt.Sprintf("%d unresolved TODO/FIXME markers", todos),
		}
	}
	for i, ln := range strings.Split(content, "\n") {
		if len(ln) > 200 {
			return &Issue{
				Severity: SeverityLow,
				Message:  fmt.Sprintf("line %d exceeds 200 characters", i+1),
				Line:     i + 1,
			}
		}
	}
	return nil
}

// matchLine returns the 1-based line of the first regex match, 0 if none.
func matchLine(content string, re *regexp.Regexp) int {
	loc := re.FindStringIndex(content)
	if loc == nil {
		return 0
	}
	return 1 + strings.Count(content[:loc[0]], "\n")
}
