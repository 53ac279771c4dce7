package quality

import (
	"strings"
	"testing"
)

func TestCheckSyntax(t *testing.T) {
	tests := []struct {
		name    string
		content string
		found   bool
	}{
		{"balanced code", "func f() { return []int{1, 2} }", false},
		{"unbalanced brace", "function f() { ", true},
		{"stray closer", "func f() } ", true},
		{"mismatched pair", "f(]", true},
		{"unterminated string", `x = "never closed`, true},
		{"closed string with brackets inside", `x = "{[(" `, false},
		{"prose with apostrophe", "it doesn't matter here", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issue := checkSyntax(tt.content, CheckContext{})
			if (issue != nil) != tt.found {
				t.Errorf("checkSyntax(%q) found=%v, want %v", tt.content, issue != nil, tt.found)
			}
			if issue != nil && issue.Severity != SeverityHigh {
				t.Errorf("syntax issues are high severity, got %s", issue.Severity)
			}
		})
	}
}

func TestCheckSecurity(t *testing.T) {
	tests := []struct {
		name    string
		content string
		found   bool
	}{
		{"hardcoded key", `api_key = "sk_live_abcdef123456"`, true},
		{"sql concat", `q := "SELECT * FROM users WHERE id=" + id`, true},
		{"eval", `result = eval(userInput)`, true},
		{"clean", `cfg.APIKey = os.Getenv("API_KEY")`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issue := checkSecurity(tt.content, CheckContext{})
			if (issue != nil) != tt.found {
				t.Errorf("checkSecurity(%q) found=%v, want %v", tt.content, issue != nil, tt.found)
			}
		})
	}
}

func TestCheckPerformance(t *testing.T) {
	nested := `
for i := range a {
	for j := range b {
		for k := range c {
			work(i, j, k)
		}
	}
}`
	if issue := checkPerformance(nested, CheckContext{}); issue == nil {
		t.Error("triple-nested loop should be flagged")
	}

	flat := "for i := range a {\n\twork(i)\n}\n"
	if issue := checkPerformance(flat, CheckContext{}); issue != nil {
		t.Errorf("single loop flagged: %s", issue.Message)
	}
}

func TestCheckErrorHandling(t *testing.T) {
	if issue := checkErrorHandling("_ = err\n", CheckContext{}); issue == nil {
		t.Error("discarded err should be flagged")
	}
	if issue := checkErrorHandling("try { x() } catch (e) { }", CheckContext{}); issue == nil {
		t.Error("empty catch should be flagged")
	}
	if issue := checkErrorHandling("if err != nil {\n\treturn err\n}\n", CheckContext{}); issue != nil {
		t.Errorf("proper handling flagged: %s", issue.Message)
	}
}

func TestCheckDocumentation(t *testing.T) {
	undocumented := "func A() {}\nfunc B() {}\nfunc C() {}\n"
	if issue := checkDocumentation(undocumented, CheckContext{}); issue == nil {
		t.Error("multiple functions with no comments should be flagged")
	}

	documented := "// A does a thing.\nfunc A() {}\nfunc B() {}\n"
	if issue := checkDocumentation(documented, CheckContext{}); issue != nil {
		t.Errorf("commented code flagged: %s", issue.Message)
	}
}

func TestCheckTesting(t *testing.T) {
	code := "func A() {}\nfunc B() {}\nfunc C() {}\n"
	if issue := checkTesting(code, CheckContext{}); issue == nil {
		t.Error("untested trio of functions should be flagged")
	}
	if issue := checkTesting(code+"// covered by TestA\n", CheckContext{}); issue != nil {
		t.Error("test mention should suppress the finding")
	}
}

func TestCheckBestPractices(t *testing.T) {
	if issue := checkBestPractices("TODO a\nTODO b\nFIXME c\n", CheckContext{}); issue == nil {
		t.Error("TODO buildup should be flagged")
	}
	long := strings.Repeat("x", 201)
	if issue := checkBestPractices(long, CheckContext{}); issue == nil {
		t.Error("very long line should be flagged")
	}
	if issue := checkBestPractices("short and tidy", CheckContext{}); issue != nil {
		t.Errorf("clean content flagged: %s", issue.Message)
	}
}
