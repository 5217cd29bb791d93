package audit

import (
	"strings"
	"testing"
	"time"
)

func seedLog(t *testing.T) string {
	t.Helper()
	l, path := newTestLog(t)
	entries := []AuditEntry{
		{Timestamp: "2026-03-01T10:00:00.000Z", Event: EventEvaluate, ExecutionID: "intent_a", Action: "BOOK_FLIGHT", Status: "APPROVED"},
		{Timestamp: "2026-03-01T11:00:00.000Z", Event: EventEvaluate, ExecutionID: "intent_b", Action: "BOOK_HOTEL", Status: "REQUIRES_APPROVAL", TriggeredRules: []string{"EXCESSIVE_STAY_LENGTH"}},
		{Timestamp: "2026-03-01T11:30:00.000Z", Event: EventApprove, ExecutionID: "intent_b", Status: "REQUIRES_APPROVAL"},
		{Timestamp: "2026-03-01T12:00:00.000Z", Event: EventEvaluate, ExecutionID: "intent_c", Action: "BOOK_FLIGHT", Status: "BLOCKED"},
	}
	for _, e := range entries {
		if err := l.Record(e); err != nil {
			t.Fatal(err)
		}
	}
	l.Close()
	return path
}

func TestQueryByExecutionID(t *testing.T) {
	res, err := Query(seedLog(t), Filter{ExecutionID: "intent_b"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(res.Entries))
	}
	if res.Summary.RequiresApproval != 1 || res.Summary.Decisions != 1 {
		t.Errorf("unexpected summary %+v", res.Summary)
	}
}

func TestQueryTimeRange(t *testing.T) {
	res, err := Query(seedLog(t), Filter{
		From: time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC),
		To:   time.Date(2026, 3, 1, 11, 45, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("expected 2 entries in range, got %d", len(res.Entries))
	}
	if res.Summary.FirstTimestamp != "2026-03-01T11:00:00.000Z" {
		t.Errorf("unexpected first timestamp %s", res.Summary.FirstTimestamp)
	}
}

func TestQueryStatusCaseInsensitive(t *testing.T) {
	res, err := Query(seedLog(t), Filter{Status: "blocked"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Entries) != 1 || res.Entries[0].ExecutionID != "intent_c" {
		t.Errorf("expected intent_c, got %+v", res.Entries)
	}
}

func TestQueryMissingFile(t *testing.T) {
	if _, err := Query("/nonexistent/audit.jsonl", Filter{}); err == nil {
		t.Error("expected error for missing log")
	}
}

func TestTail(t *testing.T) {
	path := seedLog(t)
	entries, err := Tail(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].Event != EventApprove || entries[1].ExecutionID != "intent_c" {
		t.Errorf("unexpected tail %+v", entries)
	}

	all, _ := Tail(path, 0)
	if len(all) != 4 {
		t.Errorf("expected all 4 entries, got %d", len(all))
	}
}

func TestFormatEntries(t *testing.T) {
	entries, _ := Tail(seedLog(t), 0)
	out := FormatEntries(entries)
	if !strings.Contains(out, "APPROVE ") || !strings.Contains(out, "EXCESSIVE_STAY_LENGTH") {
		t.Errorf("unexpected table:\n%s", out)
	}
	if FormatEntries(nil) != "No audit entries.\n" {
		t.Error("expected empty placeholder")
	}
}
