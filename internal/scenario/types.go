package scenario

import "github.com/ppiankov/intentguard/internal/model"

// Expectation is the outcome a case must produce.
type Expectation struct {
	Status string   `yaml:"status"`
	Rules  []string `yaml:"rules,omitempty"`
}

// Case is one test case within a scenario.
type Case struct {
	Name      string             `yaml:"name,omitempty"`
	Utterance string             `yaml:"utterance"`
	Reasoning string             `yaml:"reasoning,omitempty"`
	Plan      string             `yaml:"plan"`
	Answers   []model.UserAnswer `yaml:"answers,omitempty"`
	Booking   map[string]string  `yaml:"booking,omitempty"`
	// Now pins the evaluation date (YYYY-MM-DD) so date rules are reproducible.
	Now    string      `yaml:"now,omitempty"`
	Expect Expectation `yaml:"expect"`
}

// Scenario is a named collection of plan evaluation cases.
type Scenario struct {
	Name  string `yaml:"name"`
	Cases []Case `yaml:"cases"`
}

// CaseResult is the outcome of evaluating one test case.
type CaseResult struct {
	Index        int      `json:"index"`
	Name         string   `json:"name,omitempty"`
	Passed       bool     `json:"passed"`
	Expected     string   `json:"expected"`
	Actual       string   `json:"actual"`
	Reason       string   `json:"reason"`
	Triggered    []string `json:"triggered_rules,omitempty"`
	MissingRules []string `json:"missing_rules,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// RunResult is the outcome of running all cases in one scenario file.
type RunResult struct {
	File   string       `json:"file"`
	Name   string       `json:"name"`
	Total  int          `json:"total"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
	Cases  []CaseResult `json:"cases"`
}
