package alert

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// FormatPayload renders event for the webhook format.
func FormatPayload(format string, event Event) ([]byte, error) {
	switch format {
	case "slack":
		return formatSlack(event)
	case "pagerduty":
		return formatPagerDuty(event)
	default:
		return formatGeneric(event)
	}
}

// formatGeneric sends the event itself plus its kind and summary.
func formatGeneric(event Event) ([]byte, error) {
	type body struct {
		EventKind    string `json:"event"`
		EventSummary string `json:"summary"`
		Event
	}
	return json.Marshal(body{EventKind: event.Kind(), EventSummary: event.Summary(), Event: event})
}

func formatSlack(event Event) ([]byte, error) {
	fields := []any{
		mrkdwn("Execution", event.ExecutionID),
		mrkdwn("Action", event.Action),
	}
	switch event.Type {
	case TypeRestrictedRegion:
		fields = append(fields, mrkdwn("Regions", event.Details[DetailRegions]))
	case TypeBillPayment:
		fields = append(fields,
			mrkdwn("Merchant", event.Details[DetailMerchant]),
			mrkdwn("Amount", event.Details[DetailAmount]))
	case TypeApprovalDenied:
		fields = append(fields, mrkdwn("Denied by", event.Details[DetailApprover]))
	default:
		rules := strings.Join(event.TriggeredRules, ", ")
		if rules == "" {
			rules = "none"
		}
		fields = append(fields, mrkdwn("Rules", rules), mrkdwn("Reason", event.Reason))
	}
	payload := map[string]any{
		"text": event.Summary(),
		"blocks": []any{
			map[string]any{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": fmt.Sprintf("intentguard: %s", strings.ToUpper(event.Kind())),
				},
			},
			map[string]any{"type": "section", "fields": fields},
		},
	}
	return json.Marshal(payload)
}

func mrkdwn(label, value string) map[string]any {
	if value == "" {
		value = "-"
	}
	return map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*%s:* %s", label, value)}
}

func formatPagerDuty(event Event) ([]byte, error) {
	details := map[string]any{
		"execution_id":    event.ExecutionID,
		"action":          event.Action,
		"status":          event.Status,
		"reason":          event.Reason,
		"triggered_rules": event.TriggeredRules,
		"policy_hash":     event.PolicyHash,
	}
	keys := make([]string, 0, len(event.Details))
	for k := range event.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		details[k] = event.Details[k]
	}
	payload := map[string]any{
		"event_action": "trigger",
		"dedup_key":    event.ExecutionID + ":" + event.Kind(),
		"payload": map[string]any{
			"summary":        "intentguard " + event.Summary(),
			"severity":       severityFor(event),
			"source":         "intentguard",
			"component":      event.Action,
			"class":          event.Kind(),
			"custom_details": details,
		},
	}
	return json.Marshal(payload)
}

func severityFor(event Event) string {
	switch {
	case event.Type == TypeRestrictedRegion:
		return "critical"
	case event.Status == "BLOCKED":
		return "error"
	case event.Status == "REQUIRES_APPROVAL", event.Type == TypeApprovalDenied:
		return "warning"
	default:
		return "info"
	}
}
