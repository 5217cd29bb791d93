// Package alert posts webhook notifications for notable decisions.
package alert

import (
	"strings"
	"time"
)

// Config is one webhook target, declared under "alerts" in policy.yaml.
// Zero retry fields fall back to 3 attempts, 1s backoff and a 5s timeout.
type Config struct {
	URL      string            `yaml:"url"      json:"url"`
	Format   string            `yaml:"format"   json:"format"` // "generic", "slack", "pagerduty"
	Events   []string          `yaml:"events"   json:"events"` // ["BLOCKED", "REQUIRES_APPROVAL", "restricted_region"]
	Headers  map[string]string `yaml:"headers"  json:"headers"`
	Attempts int               `yaml:"attempts" json:"attempts"`
	Backoff  time.Duration     `yaml:"backoff"  json:"backoff"` // doubled after each failed attempt
	Timeout  time.Duration     `yaml:"timeout"  json:"timeout"` // per request
}

// Event types that can be subscribed to in addition to outcome statuses.
const (
	TypeRestrictedRegion = "restricted_region"
	TypeBillPayment      = "bill_payment"
	TypeApprovalDenied   = "approval_denied"
)

// Detail keys set by the event producers.
const (
	DetailRegions  = "regions"
	DetailMerchant = "merchant"
	DetailAmount   = "amount"
	DetailApprover = "approver"
	DetailPrice    = "price"
)

// Event is one decision worth notifying about. Details carries the
// fields specific to its Type.
type Event struct {
	Timestamp      string            `json:"timestamp"`
	ExecutionID    string            `json:"execution_id"`
	Action         string            `json:"action"`
	Status         string            `json:"status"`
	Reason         string            `json:"reason"`
	TriggeredRules []string          `json:"triggered_rules,omitempty"`
	Confidence     float64           `json:"confidence"`
	PolicyHash     string            `json:"policy_hash"`
	Type           string            `json:"type,omitempty"`
	Details        map[string]string `json:"details,omitempty"`
}

// Kind is the event type, or the lowercased status for plain outcomes.
func (e Event) Kind() string {
	if e.Type != "" {
		return e.Type
	}
	return strings.ToLower(e.Status)
}

// Summary is a one-line description worded for the event kind.
func (e Event) Summary() string {
	switch e.Type {
	case TypeRestrictedRegion:
		return "Booking to restricted region blocked: " + orDash(e.Details[DetailRegions])
	case TypeBillPayment:
		return "Bill payment to " + orDash(e.Details[DetailMerchant]) +
			" for " + orDash(e.Details[DetailAmount]) + ": " + e.Status
	case TypeApprovalDenied:
		return "Approval for " + e.ExecutionID + " denied by " + orDash(e.Details[DetailApprover])
	}
	s := e.Action + " " + e.Status
	if e.Reason != "" {
		s += ": " + e.Reason
	}
	return s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
