package scenario

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/intentguard/internal/model"
	"github.com/ppiankov/intentguard/internal/policy"
	"github.com/ppiankov/intentguard/internal/schema"
)

const flightPlan = "1. Book flight from Delhi to Mumbai on 2026-03-20 via makemytrip.com"

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func flightCase(budget, expect string, rules ...string) Case {
	return Case{
		Name:      "flight at " + budget,
		Utterance: "Book a flight from Delhi to Mumbai",
		Plan:      flightPlan,
		Answers: []model.UserAnswer{
			{Field: "budget", Answer: budget},
			{Field: "travelers", Answer: "1"},
		},
		Booking: map[string]string{"price": "₹4000", "website": "makemytrip.com"},
		Now:     "2026-03-01",
		Expect:  Expectation{Status: expect, Rules: rules},
	}
}

func TestAllCasesPass(t *testing.T) {
	s := &Scenario{
		Name: "flight budgets",
		Cases: []Case{
			flightCase("₹5000", "approved"),
			flightCase("₹2000", "BLOCKED", policy.CategoryBudgetExceeded),
		},
	}

	result := Run(s, schema.Default(), policy.DefaultConfig())
	if result.Failed != 0 {
		t.Errorf("expected 0 failures, got %d; cases: %+v", result.Failed, result.Cases)
	}
	if result.Passed != 2 {
		t.Errorf("expected 2 passed, got %d", result.Passed)
	}
}

func TestFailedAssertionDetected(t *testing.T) {
	s := &Scenario{
		Name:  "wrong expectation",
		Cases: []Case{flightCase("₹5000", "BLOCKED")},
	}

	result := Run(s, schema.Default(), policy.DefaultConfig())
	if result.Failed != 1 {
		t.Errorf("expected 1 failure, got %d", result.Failed)
	}
	if result.Cases[0].Actual != "APPROVED" {
		t.Errorf("expected actual APPROVED, got %s", result.Cases[0].Actual)
	}
}

func TestMissingRuleFailsCase(t *testing.T) {
	s := &Scenario{
		Name:  "missing rule",
		Cases: []Case{flightCase("₹2000", "BLOCKED", policy.CategoryRestricted)},
	}

	result := Run(s, schema.Default(), policy.DefaultConfig())
	if result.Failed != 1 {
		t.Fatalf("expected 1 failure, got %d", result.Failed)
	}
	c := result.Cases[0]
	if len(c.MissingRules) != 1 || c.MissingRules[0] != policy.CategoryRestricted {
		t.Errorf("expected missing POLICY_RESTRICTED, got %v", c.MissingRules)
	}
}

func TestInvalidNowIsCaseError(t *testing.T) {
	c := flightCase("₹5000", "APPROVED")
	c.Now = "next tuesday"
	result := Run(&Scenario{Name: "bad now", Cases: []Case{c}}, schema.Default(), policy.DefaultConfig())
	if result.Failed != 1 {
		t.Fatalf("expected 1 failure, got %d", result.Failed)
	}
	if result.Cases[0].Error == "" {
		t.Error("expected case error for invalid now")
	}
}

func TestLoadAndRunFromFile(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "test.yaml", `
name: "file test"
cases:
  - name: within budget
    utterance: Book a flight from Delhi to Mumbai
    plan: "1. Book flight from Delhi to Mumbai on 2026-03-20 via makemytrip.com"
    now: "2026-03-01"
    answers:
      - {field: budget, answer: "₹5000"}
      - {field: travelers, answer: "1"}
    booking: {price: "₹4000", website: makemytrip.com}
    expect:
      status: APPROVED
`)

	result, err := LoadAndRun(path, filepath.Join(dir, "policy.yaml"), "")
	if err != nil {
		t.Fatal(err)
	}
	if result.Failed != 0 {
		t.Errorf("expected 0 failures, got %d; cases: %+v", result.Failed, result.Cases)
	}
	if result.File != path {
		t.Errorf("expected file path set, got %q", result.File)
	}
}

func TestInvalidScenarioYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "bad.yaml", ":::not yaml\x00")

	_, err := LoadAndRun(path, filepath.Join(dir, "policy.yaml"), "")
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestEmptyCasesList(t *testing.T) {
	result := Run(&Scenario{Name: "empty"}, schema.Default(), policy.DefaultConfig())
	if result.Total != 0 {
		t.Errorf("expected 0 total, got %d", result.Total)
	}
	if result.Failed != 0 {
		t.Errorf("expected 0 failed, got %d", result.Failed)
	}
}

func TestFormatText(t *testing.T) {
	results := []*RunResult{
		Run(&Scenario{Name: "ok", Cases: []Case{flightCase("₹5000", "APPROVED")}}, schema.Default(), policy.DefaultConfig()),
		Run(&Scenario{Name: "broken", Cases: []Case{flightCase("₹5000", "BLOCKED")}}, schema.Default(), policy.DefaultConfig()),
	}

	out := FormatText(results)
	if !strings.Contains(out, "Checking 2 scenario files") {
		t.Errorf("expected header, got %q", out)
	}
	if !strings.Contains(out, "PASS  ok (1/1)") {
		t.Errorf("expected PASS line, got %q", out)
	}
	if !strings.Contains(out, "expected BLOCKED, got APPROVED") {
		t.Errorf("expected failure detail, got %q", out)
	}
	if !strings.Contains(out, "1 of 2 cases passed. 1 of 2 scenarios failed.") {
		t.Errorf("expected summary, got %q", out)
	}
}

func TestFormatJSON(t *testing.T) {
	results := []*RunResult{
		Run(&Scenario{Name: "ok", Cases: []Case{flightCase("₹5000", "APPROVED")}}, schema.Default(), policy.DefaultConfig()),
	}
	out, err := FormatJSON(results)
	if err != nil {
		t.Fatal(err)
	}
	var decoded []RunResult
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(decoded) != 1 || decoded[0].Passed != 1 {
		t.Errorf("unexpected decoded results: %+v", decoded)
	}
}
