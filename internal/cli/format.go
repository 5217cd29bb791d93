package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ppiankov/intentguard/internal/model"
)

// printTrace renders a trace as a stage-by-stage summary.
func printTrace(w io.Writer, tr *model.ExecutionTrace) {
	fmt.Fprintf(w, "Execution %s at %s\n\n", tr.ExecutionID, tr.Timestamp)
	for _, st := range tr.Stages {
		switch p := st.Payload.(type) {
		case model.TextPayload:
			fmt.Fprintf(w, "%-18s %s\n", st.Type, oneLine(p.Text))
		case model.PlanPayload:
			fmt.Fprintf(w, "%-18s %d line(s)\n", st.Type, len(p.Steps))
			for _, s := range p.Steps {
				fmt.Fprintf(w, "  - %s\n", s)
			}
		case model.IntentSummary:
			fmt.Fprintf(w, "%-18s %s steps=%d complete=%d confidence=%.2f\n",
				st.Type, p.Action, p.Steps, p.CompleteSteps, p.Confidence)
		case *model.Outcome:
			printOutcome(w, p)
		default:
			data, _ := json.Marshal(p)
			fmt.Fprintf(w, "%-18s %s\n", st.Type, data)
		}
	}
}

func printOutcome(w io.Writer, o *model.Outcome) {
	fmt.Fprintf(w, "%-18s %s (%s)\n", model.StageMCPOutcome, o.Status, o.Reason)
	if o.Message != "" {
		fmt.Fprintf(w, "  %s\n", o.Message)
	}
	for _, f := range o.Failures {
		fmt.Fprintf(w, "  [%s] %s: %s\n", f.Severity, f.Category, f.Reason)
	}
	if o.Price != "" {
		fmt.Fprintf(w, "  price: %s\n", o.Price)
	}
	if o.PaymentURL != "" {
		fmt.Fprintf(w, "  payment: %s\n", o.PaymentURL)
	}
	fmt.Fprintf(w, "  confidence: %.2f\n", o.Confidence)
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return truncate(s, 100)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
