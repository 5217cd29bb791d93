package scenario

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/intentguard/internal/engine"
	"github.com/ppiankov/intentguard/internal/policy"
	"github.com/ppiankov/intentguard/internal/schema"
)

// Run evaluates all cases in a scenario against the given schemas and policy.
// Each case gets its own engine so a pinned date never leaks between cases.
func Run(s *Scenario, reg *schema.Registry, cfg *policy.Config) *RunResult {
	result := &RunResult{
		Name:  s.Name,
		Total: len(s.Cases),
	}

	for i, c := range s.Cases {
		cr := runCase(i, c, reg, cfg)
		if cr.Passed {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Cases = append(result.Cases, cr)
	}

	return result
}

func runCase(i int, c Case, reg *schema.Registry, cfg *policy.Config) CaseResult {
	cr := CaseResult{
		Index:    i + 1,
		Name:     c.Name,
		Expected: strings.ToUpper(strings.TrimSpace(c.Expect.Status)),
	}

	now := time.Now
	if c.Now != "" {
		pinned, err := time.Parse("2006-01-02", c.Now)
		if err != nil {
			cr.Error = fmt.Sprintf("invalid now %q: %v", c.Now, err)
			return cr
		}
		now = func() time.Time { return pinned }
	}

	eng := engine.New(engine.Config{
		Registry: reg,
		Policy:   cfg,
		Now:      now,
		NewID:    func() string { return fmt.Sprintf("scenario-%d", i+1) },
	})
	tr := eng.Evaluate(engine.Request{
		Utterance: c.Utterance,
		Reasoning: c.Reasoning,
		Plan:      c.Plan,
		Answers:   c.Answers,
		Booking:   c.Booking,
	})

	out := tr.Outcome()
	if out == nil {
		cr.Error = "trace has no outcome"
		return cr
	}
	cr.Actual = string(out.Status)
	cr.Reason = out.Reason
	cr.Triggered = out.TriggeredRules

	for _, want := range c.Expect.Rules {
		if !contains(out.TriggeredRules, want) {
			cr.MissingRules = append(cr.MissingRules, want)
		}
	}
	cr.Passed = cr.Actual == cr.Expected && len(cr.MissingRules) == 0
	return cr
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// Load parses a scenario YAML file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = path
	}
	return &s, nil
}

// LoadAndRun loads a scenario YAML file, loads policy and schemas, and runs.
func LoadAndRun(path, policyPath, schemaPath string) (*RunResult, error) {
	s, err := Load(path)
	if err != nil {
		return nil, err
	}

	cfg, err := policy.LoadConfig(policyPath)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}

	reg, err := schema.Load(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("load schemas: %w", err)
	}

	result := Run(s, reg, cfg)
	result.File = path

	return result, nil
}
