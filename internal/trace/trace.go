// Package trace resolves validated intent tokens into a final outcome and
// records the ordered stages that led to it.
package trace

import (
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/intentguard/internal/model"
	"github.com/ppiankov/intentguard/internal/plan"
	"github.com/ppiankov/intentguard/internal/policy"
	"github.com/ppiankov/intentguard/internal/tracer"
)

// DefaultPaymentBaseURL prefixes the execution id in payment links.
const DefaultPaymentBaseURL = "http://localhost:5001/payment/"

// Outcome reasons.
const (
	ReasonAllValidated     = "ALL_INTENTS_VALIDATED"
	ReasonPolicyFailed     = "POLICY_VALIDATION_FAILED"
	ReasonIntentFailed     = "INTENT_VALIDATION_FAILED"
	maxMissingFieldsListed = 3
)

const (
	completeConfidence   = 0.95
	incompleteConfidence = 0.3
	noTokenConfidence    = 0.5
)

// Config holds the Builder settings. Zero values select defaults.
type Config struct {
	PaymentBaseURL string
	NewID          func() string
	Now            func() time.Time
}

// Builder turns tokens into an ExecutionTrace. Safe for concurrent use.
type Builder struct {
	validator      *policy.Validator
	paymentBaseURL string
	newID          func() string
	now            func() time.Time
}

// NewBuilder returns a Builder backed by the given validator.
func NewBuilder(v *policy.Validator, cfg Config) *Builder {
	if v == nil {
		v = policy.NewValidator(nil, nil)
	}
	b := &Builder{
		validator:      v,
		paymentBaseURL: cfg.PaymentBaseURL,
		newID:          cfg.NewID,
		now:            cfg.Now,
	}
	if b.paymentBaseURL == "" {
		b.paymentBaseURL = DefaultPaymentBaseURL
	}
	if !strings.HasSuffix(b.paymentBaseURL, "/") {
		b.paymentBaseURL += "/"
	}
	if b.newID == nil {
		b.newID = tracer.NewExecutionID
	}
	if b.now == nil {
		b.now = time.Now
	}
	return b
}

// Input is everything a trace records.
type Input struct {
	Utterance string
	Reasoning string
	Plan      string
	Tokens    []model.IntentToken
}

// Assessment is the result of both validation passes.
type Assessment struct {
	Failures   []model.PolicyFailure
	Confidence float64
	Complete   int
}

// Assess runs the completeness pass and, when every token is complete,
// the policy pass. Failures are returned undeduplicated in evaluation order.
func Assess(v *policy.Validator, tokens []model.IntentToken) Assessment {
	var a Assessment
	var total float64
	for _, tok := range tokens {
		if tok.DataComplete {
			a.Complete++
			total += completeConfidence
			continue
		}
		total += incompleteConfidence
		missing := tok.MissingFields
		if len(missing) > maxMissingFieldsListed {
			missing = missing[:maxMissingFieldsListed]
		}
		a.Failures = append(a.Failures, model.PolicyFailure{
			Action:   tok.Action,
			Category: policy.CategoryMissingData,
			Reason:   "Missing required fields: " + strings.Join(missing, ", "),
			Severity: model.SeverityBlock,
		})
	}

	if len(tokens) == 0 {
		a.Confidence = noTokenConfidence
	} else {
		a.Confidence = total / float64(len(tokens))
	}

	if a.Complete == len(tokens) {
		a.Failures = append(a.Failures, v.Validate(tokens)...)
	}
	return a
}

// Dedup drops repeated (category, reason) pairs, keeping the first, and
// returns the distinct categories in first-seen order.
func Dedup(failures []model.PolicyFailure) ([]model.PolicyFailure, []string) {
	type key struct{ category, reason string }
	seen := make(map[key]bool)
	seenCategory := make(map[string]bool)
	var out []model.PolicyFailure
	var rules []string
	for _, f := range failures {
		if !seenCategory[f.Category] {
			seenCategory[f.Category] = true
			rules = append(rules, f.Category)
		}
		k := key{f.Category, f.Reason}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, f)
	}
	return out, rules
}

// Resolve maps failures to a status by severity precedence.
func Resolve(failures []model.PolicyFailure) model.Status {
	status := model.StatusApproved
	for _, f := range failures {
		if f.Severity.Blocks() {
			return model.StatusBlocked
		}
		if f.Severity == model.SeverityRequireApproval {
			status = model.StatusRequiresApproval
		}
	}
	return status
}

// PaymentURL returns the payment link for an execution id.
func (b *Builder) PaymentURL(executionID string) string {
	return b.paymentBaseURL + executionID
}

// Validator returns the validator backing the builder.
func (b *Builder) Validator() *policy.Validator {
	return b.validator
}

// Build assembles the five-stage trace for in.
func (b *Builder) Build(in Input) *model.ExecutionTrace {
	id := b.newID()
	a := Assess(b.validator, in.Tokens)

	tr := &model.ExecutionTrace{
		Timestamp:    tracer.FormatTime(b.now()),
		ExecutionID:  id,
		IntentTokens: in.Tokens,
	}
	tr.Stages = []model.ExecutionStage{
		{Type: model.StageUserInput, Payload: model.TextPayload{Text: in.Utterance}},
		{Type: model.StageReasoning, Payload: model.TextPayload{Text: in.Reasoning}},
		{Type: model.StagePlan, Payload: model.PlanPayload{Steps: plan.DisplayLines(in.Plan)}},
		{Type: model.StageIntentToken, Payload: summarize(in.Tokens, a)},
		{Type: model.StageMCPOutcome, Payload: b.outcome(id, in.Tokens, a)},
	}
	return tr
}

func summarize(tokens []model.IntentToken, a Assessment) model.IntentSummary {
	action := model.GeneralAction
	if len(tokens) > 0 {
		action = tokens[0].Action
	}
	return model.IntentSummary{
		Action:        action,
		Steps:         len(tokens),
		Confidence:    a.Confidence,
		CompleteSteps: a.Complete,
	}
}

func (b *Builder) outcome(id string, tokens []model.IntentToken, a Assessment) *model.Outcome {
	out := &model.Outcome{
		Confidence:  a.Confidence,
		ExecutionID: id,
	}
	if len(tokens) > 0 {
		out.Price = tokens[0].Field("price")
	}

	failures, rules := Dedup(a.Failures)
	out.Status = Resolve(failures)
	if out.Status == model.StatusApproved {
		out.Reason = ReasonAllValidated
		out.Message = fmt.Sprintf("All requirements validated with %d%% confidence. Redirecting to payment gateway...", int(a.Confidence*100))
		out.PaymentURL = b.PaymentURL(id)
		return out
	}

	out.Failures = failures
	out.TriggeredRules = rules
	out.RequiresHumanApproval = needsApproval(failures)
	out.Reason = ReasonIntentFailed
	if out.RequiresHumanApproval {
		out.Reason = ReasonPolicyFailed
	}
	if out.Status == model.StatusBlocked {
		out.Message = "Request blocked due to policy violations. Unable to proceed."
		return out
	}
	out.Message = "Request requires human approval due to governance constraints."
	out.PaymentURL = b.PaymentURL(id)
	return out
}

// needsApproval reports whether any failure asks for a human decision,
// even when a harder failure blocks the request.
func needsApproval(failures []model.PolicyFailure) bool {
	for _, f := range failures {
		if f.Severity == model.SeverityRequireApproval {
			return true
		}
	}
	return false
}
