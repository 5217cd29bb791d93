package mcp

import (
	"context"
	"fmt"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/intentguard/internal/clarify"
	"github.com/ppiankov/intentguard/internal/engine"
	"github.com/ppiankov/intentguard/internal/model"
)

// --- Input/Output types ---

// AnswerInput is one clarification answer.
type AnswerInput struct {
	Field  string `json:"field" jsonschema:"field the answer fills, e.g. origin or budget"`
	Answer string `json:"answer" jsonschema:"the user's answer"`
}

// EvaluateInput defines parameters for the intentguard_evaluate tool.
type EvaluateInput struct {
	Text      string            `json:"text" jsonschema:"the user's original request"`
	Reasoning string            `json:"reasoning,omitempty" jsonschema:"the planner's reasoning"`
	Plan      string            `json:"plan" jsonschema:"plan text, numbered steps or **Key:** value lines"`
	Answers   []AnswerInput     `json:"answers,omitempty" jsonschema:"clarification answers"`
	Booking   map[string]string `json:"booking,omitempty" jsonschema:"booking details that override those parsed from the plan"`
}

// EvaluateOutput summarises the trace outcome.
type EvaluateOutput struct {
	ExecutionID           string   `json:"execution_id"`
	Status                string   `json:"status"`
	Reason                string   `json:"reason"`
	Message               string   `json:"message"`
	Confidence            float64  `json:"confidence"`
	TriggeredRules        []string `json:"triggered_rules,omitempty"`
	Failures              []string `json:"failures,omitempty"`
	RequiresHumanApproval bool     `json:"requires_human_approval"`
	PaymentURL            string   `json:"payment_url,omitempty"`
}

// QuestionsInput defines parameters for the intentguard_questions tool.
type QuestionsInput struct {
	Text    string        `json:"text" jsonschema:"the user's original request"`
	Plan    string        `json:"plan,omitempty" jsonschema:"plan text to find missing fields in"`
	Answers []AnswerInput `json:"answers,omitempty" jsonschema:"answers already given"`
}

// QuestionsOutput lists clarification questions.
type QuestionsOutput struct {
	Questions []clarify.Question `json:"questions"`
}

// PolicyInput takes no parameters.
type PolicyInput struct{}

// PolicyOutput describes the rule tables in effect.
type PolicyOutput struct {
	PolicyHash string   `json:"policy_hash"`
	Summary    []string `json:"summary"`
}

// ApproveInput defines parameters for the intentguard_approve tool.
type ApproveInput struct {
	ExecutionID string `json:"execution_id" jsonschema:"execution id from a REQUIRES_APPROVAL outcome"`
	Duration    string `json:"duration,omitempty" jsonschema:"approval lifetime (e.g. 30m), omit for no expiry"`
}

// ApproveOutput contains the approval result.
type ApproveOutput struct {
	ExecutionID string `json:"execution_id"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
}

// PendingInput takes no parameters.
type PendingInput struct{}

// PendingItem is one pending approval.
type PendingItem struct {
	ExecutionID    string   `json:"execution_id"`
	Action         string   `json:"action"`
	Reasons        []string `json:"reasons,omitempty"`
	TriggeredRules []string `json:"triggered_rules,omitempty"`
	Price          string   `json:"price,omitempty"`
	CreatedAt      string   `json:"created_at"`
}

// PendingOutput lists pending approvals.
type PendingOutput struct {
	Approvals []PendingItem `json:"approvals"`
}

// --- Handlers ---

func toAnswers(in []AnswerInput) []model.UserAnswer {
	out := make([]model.UserAnswer, 0, len(in))
	for _, a := range in {
		out = append(out, model.UserAnswer{Field: a.Field, Answer: a.Answer})
	}
	return out
}

func (s *Server) handleEvaluate(ctx context.Context, req *mcpsdk.CallToolRequest, input EvaluateInput) (*mcpsdk.CallToolResult, EvaluateOutput, error) {
	if input.Plan == "" {
		return &mcpsdk.CallToolResult{IsError: true}, EvaluateOutput{Message: "plan is required"}, nil
	}
	tr := s.svc.Evaluate(ctx, engine.Request{
		Utterance: input.Text,
		Reasoning: input.Reasoning,
		Plan:      input.Plan,
		Answers:   toAnswers(input.Answers),
		Booking:   input.Booking,
	})

	out := EvaluateOutput{ExecutionID: tr.ExecutionID}
	o := tr.Outcome()
	if o == nil {
		return nil, out, fmt.Errorf("trace %s has no outcome", tr.ExecutionID)
	}
	out.Status = string(o.Status)
	out.Reason = o.Reason
	out.Message = o.Message
	out.Confidence = o.Confidence
	out.TriggeredRules = o.TriggeredRules
	out.RequiresHumanApproval = o.RequiresHumanApproval
	out.PaymentURL = o.PaymentURL
	for _, f := range o.Failures {
		out.Failures = append(out.Failures, fmt.Sprintf("[%s] %s: %s", f.Severity, f.Category, f.Reason))
	}

	if o.Status == model.StatusBlocked {
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

func (s *Server) handleQuestions(ctx context.Context, req *mcpsdk.CallToolRequest, input QuestionsInput) (*mcpsdk.CallToolResult, QuestionsOutput, error) {
	if input.Plan == "" {
		return nil, QuestionsOutput{Questions: clarify.Fallback(input.Text)}, nil
	}
	eng := s.svc.Engine()
	tokens := eng.Tokens(engine.Request{
		Utterance: input.Text,
		Plan:      input.Plan,
		Answers:   toAnswers(input.Answers),
	})
	qs := clarify.Questions(tokens, eng.Registry())
	if qs == nil {
		qs = []clarify.Question{}
	}
	return nil, QuestionsOutput{Questions: qs}, nil
}

func (s *Server) handlePolicy(ctx context.Context, req *mcpsdk.CallToolRequest, input PolicyInput) (*mcpsdk.CallToolResult, PolicyOutput, error) {
	return nil, PolicyOutput{
		PolicyHash: s.svc.PolicyHash(),
		Summary:    s.svc.Engine().Policy().Summary(),
	}, nil
}

func (s *Server) handleApprove(ctx context.Context, req *mcpsdk.CallToolRequest, input ApproveInput) (*mcpsdk.CallToolResult, ApproveOutput, error) {
	out := ApproveOutput{ExecutionID: input.ExecutionID}
	var d time.Duration
	if input.Duration != "" {
		var err error
		d, err = time.ParseDuration(input.Duration)
		if err != nil {
			out.Error = fmt.Sprintf("invalid duration %q: %v", input.Duration, err)
			return &mcpsdk.CallToolResult{IsError: true}, out, nil
		}
	}
	if err := s.svc.Approve(input.ExecutionID, "mcp", d); err != nil {
		out.Error = err.Error()
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	out.Status = "approved"
	return nil, out, nil
}

func (s *Server) handlePending(ctx context.Context, req *mcpsdk.CallToolRequest, input PendingInput) (*mcpsdk.CallToolResult, PendingOutput, error) {
	list, err := s.svc.Approvals().Pending()
	if err != nil {
		return nil, PendingOutput{}, err
	}
	out := PendingOutput{Approvals: make([]PendingItem, 0, len(list))}
	for _, a := range list {
		out.Approvals = append(out.Approvals, PendingItem{
			ExecutionID:    a.ExecutionID,
			Action:         a.Action,
			Reasons:        a.Reasons,
			TriggeredRules: a.TriggeredRules,
			Price:          a.Price,
			CreatedAt:      a.CreatedAt.Format(time.RFC3339),
		})
	}
	return nil, out, nil
}
