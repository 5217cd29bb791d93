package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Filter selects audit entries. Zero fields match everything.
type Filter struct {
	ExecutionID string
	Status      string
	From        time.Time
	To          time.Time
}

func (f Filter) match(e AuditEntry) bool {
	if f.ExecutionID != "" && e.ExecutionID != f.ExecutionID {
		return false
	}
	if f.Status != "" && !strings.EqualFold(e.Status, f.Status) {
		return false
	}
	if f.From.IsZero() && f.To.IsZero() {
		return true
	}
	ts, err := time.Parse(TimestampFormat, e.Timestamp)
	if err != nil {
		return false
	}
	if !f.From.IsZero() && ts.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && ts.After(f.To) {
		return false
	}
	return true
}

// Summary counts outcomes across matched entries.
type Summary struct {
	Total            int    `json:"total"`
	Approved         int    `json:"approved"`
	Blocked          int    `json:"blocked"`
	RequiresApproval int    `json:"requires_approval"`
	Decisions        int    `json:"decisions"`
	FirstTimestamp   string `json:"first_timestamp,omitempty"`
	LastTimestamp    string `json:"last_timestamp,omitempty"`
}

func (s *Summary) add(e AuditEntry) {
	s.Total++
	switch {
	case e.Event == EventApprove || e.Event == EventDeny:
		s.Decisions++
	case e.Status == "APPROVED":
		s.Approved++
	case e.Status == "BLOCKED":
		s.Blocked++
	case e.Status == "REQUIRES_APPROVAL":
		s.RequiresApproval++
	}
	if s.FirstTimestamp == "" {
		s.FirstTimestamp = e.Timestamp
	}
	s.LastTimestamp = e.Timestamp
}

// Result holds matched entries in log order.
type Result struct {
	Entries []AuditEntry `json:"entries"`
	Summary Summary      `json:"summary"`
}

// Query reads the log at path and returns entries matching f. Malformed
// lines are skipped.
func Query(path string, f Filter) (*Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audit: open log: %w", err)
	}
	defer file.Close()

	res := &Result{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var e AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		if !f.match(e) {
			continue
		}
		res.Entries = append(res.Entries, e)
		res.Summary.add(e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("audit: read log: %w", err)
	}
	return res, nil
}

// Tail returns the last n entries of the log, oldest first.
func Tail(path string, n int) ([]AuditEntry, error) {
	res, err := Query(path, Filter{})
	if err != nil {
		return nil, err
	}
	if n > 0 && len(res.Entries) > n {
		return res.Entries[len(res.Entries)-n:], nil
	}
	return res.Entries, nil
}

// FormatEntries renders entries as an aligned text table.
func FormatEntries(entries []AuditEntry) string {
	if len(entries) == 0 {
		return "No audit entries.\n"
	}
	var b strings.Builder
	for _, e := range entries {
		status := e.Status
		if e.Event != EventEvaluate && e.Event != "" {
			status = strings.ToUpper(e.Event)
		}
		fmt.Fprintf(&b, "%-24s %-18s %-16s %-44s %s\n",
			e.Timestamp, status, e.Action, e.ExecutionID, strings.Join(e.TriggeredRules, ","))
	}
	return b.String()
}

// FormatJSON renders a Result as indented JSON.
func FormatJSON(res *Result) (string, error) {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", fmt.Errorf("audit: marshal result: %w", err)
	}
	return string(data), nil
}
