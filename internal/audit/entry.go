package audit

import "github.com/ppiankov/intentguard/internal/model"

// Audit events.
const (
	EventEvaluate = "evaluate"
	EventApprove  = "approve"
	EventDeny     = "deny"
	EventPayment  = "payment"
)

// AuditEntry is one line in the hash-chained JSONL audit log.
// All fields are concrete types (no map[string]any) so json.Marshal field
// order is deterministic and hashing is reproducible.
type AuditEntry struct {
	Timestamp      string   `json:"ts"`
	Event          string   `json:"event"`
	ExecutionID    string   `json:"execution_id"`
	Action         string   `json:"action"`
	Status         string   `json:"status"`
	Reason         string   `json:"reason"`
	TriggeredRules []string `json:"triggered_rules"`
	PolicyHash     string   `json:"policy_hash"`
	PrevHash       string   `json:"prev_hash"`
}

// EntryFromTrace flattens a trace outcome into an evaluate entry.
func EntryFromTrace(tr *model.ExecutionTrace, policyHash string) AuditEntry {
	e := AuditEntry{
		Timestamp:      tr.Timestamp,
		Event:          EventEvaluate,
		ExecutionID:    tr.ExecutionID,
		Action:         string(model.GeneralAction),
		TriggeredRules: []string{},
		PolicyHash:     policyHash,
	}
	if len(tr.IntentTokens) > 0 {
		e.Action = string(tr.IntentTokens[0].Action)
	}
	if out := tr.Outcome(); out != nil {
		e.Status = string(out.Status)
		e.Reason = out.Reason
		if len(out.TriggeredRules) > 0 {
			e.TriggeredRules = out.TriggeredRules
		}
	}
	return e
}
