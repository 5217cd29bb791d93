package model

// ActionType is the closed set of actions a plan step can represent.
type ActionType string

const (
	BookFlight     ActionType = "BOOK_FLIGHT"
	BookTrain      ActionType = "BOOK_TRAIN"
	BookHotel      ActionType = "BOOK_HOTEL"
	BookRestaurant ActionType = "BOOK_RESTAURANT"
	BookAttraction ActionType = "BOOK_ATTRACTION"
	BookTransport  ActionType = "BOOK_TRANSPORT"
	MakePayment    ActionType = "MAKE_PAYMENT"
	GeneralAction  ActionType = "GENERAL_ACTION"
)

// ActionTypes lists every action type in classifier priority order.
var ActionTypes = []ActionType{
	BookFlight,
	BookTrain,
	BookHotel,
	BookRestaurant,
	BookAttraction,
	BookTransport,
	MakePayment,
	GeneralAction,
}

// ParseActionType maps a string to an ActionType. Unknown values fall back to GeneralAction.
func ParseActionType(s string) ActionType {
	for _, a := range ActionTypes {
		if string(a) == s {
			return a
		}
	}
	return GeneralAction
}

// Severity is the escalation level of a policy failure.
type Severity string

const (
	SeverityBlock           Severity = "BLOCK"
	SeverityBlockAndLog     Severity = "BLOCK_AND_LOG"
	SeverityRequireApproval Severity = "REQUIRE_HUMAN_APPROVAL"
)

// SeverityRank maps severity to a comparable integer. BLOCK and BLOCK_AND_LOG share the top rank.
var SeverityRank = map[Severity]int{
	SeverityRequireApproval: 1,
	SeverityBlock:           2,
	SeverityBlockAndLog:     2,
}

// Blocks reports whether the severity is a hard stop.
func (s Severity) Blocks() bool {
	return SeverityRank[s] >= 2
}

// ParseSeverity maps a string to a Severity. Fail-closed: unknown → BLOCK.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityBlock, SeverityBlockAndLog, SeverityRequireApproval:
		return Severity(s)
	default:
		return SeverityBlock
	}
}

// Status is the final outcome of an execution trace.
type Status string

const (
	StatusApproved         Status = "APPROVED"
	StatusBlocked          Status = "BLOCKED"
	StatusRequiresApproval Status = "REQUIRES_APPROVAL"
	StatusExecuted         Status = "EXECUTED"
)

// StageType identifies one stage of an execution trace.
type StageType string

const (
	StageUserInput        StageType = "USER_INPUT"
	StageReasoning        StageType = "REASONING"
	StagePlan             StageType = "PLAN"
	StageIntentToken      StageType = "INTENT_TOKEN"
	StagePolicyEvaluation StageType = "POLICY_EVALUATION"
	StageMCPOutcome       StageType = "MCP_OUTCOME"
)

// BudgetRange is the expected spend band for an action type.
type BudgetRange struct {
	Low      float64 `json:"low" yaml:"low"`
	Medium   float64 `json:"medium" yaml:"medium"`
	High     float64 `json:"high" yaml:"high"`
	Currency string  `json:"currency" yaml:"currency"`
}

// PlanStep is one segmented step of a plan. Read-only after creation.
type PlanStep struct {
	StepNumber      int               `json:"step_number"`
	Description     string            `json:"description"`
	ExtractedFields map[string]string `json:"extracted_fields"`
}

// IntentToken is the structured, schema-checked form of one plan step.
type IntentToken struct {
	Action        ActionType        `json:"action"`
	StepNumber    int               `json:"step_number"`
	Description   string            `json:"description"`
	Confidence    float64           `json:"confidence"`
	DataComplete  bool              `json:"data_complete"`
	MissingFields []string          `json:"missing_fields"`
	Budget        BudgetRange       `json:"budget"`
	Fields        map[string]string `json:"fields"`
}

// Field returns the named field value, or "" when absent.
func (t *IntentToken) Field(name string) string {
	if t.Fields == nil {
		return ""
	}
	return t.Fields[name]
}

// UserAnswer is one answer from a clarification round.
type UserAnswer struct {
	ID     string `json:"id,omitempty" yaml:"id,omitempty"`
	Field  string `json:"field" yaml:"field"`
	Answer string `json:"answer" yaml:"answer"`
	Step   int    `json:"step,omitempty" yaml:"step,omitempty"`
}

// PolicyFailure is one rule violation produced during validation.
type PolicyFailure struct {
	Action   ActionType `json:"action"`
	Category string     `json:"category"`
	Reason   string     `json:"reason"`
	Severity Severity   `json:"severity"`
}

// ExecutionStage is one entry of the ordered stage sequence.
type ExecutionStage struct {
	Type    StageType `json:"type"`
	Payload any       `json:"payload"`
}

// ExecutionTrace is the immutable record of how a request's decision was reached.
type ExecutionTrace struct {
	Stages       []ExecutionStage `json:"stages"`
	Timestamp    string           `json:"timestamp"`
	ExecutionID  string           `json:"execution_id"`
	IntentTokens []IntentToken    `json:"intent_tokens"`
}

// Stage returns the first stage of the given type, or nil.
func (t *ExecutionTrace) Stage(st StageType) *ExecutionStage {
	for i := range t.Stages {
		if t.Stages[i].Type == st {
			return &t.Stages[i]
		}
	}
	return nil
}

// Outcome returns the MCP_OUTCOME payload when it is an *Outcome.
func (t *ExecutionTrace) Outcome() *Outcome {
	st := t.Stage(StageMCPOutcome)
	if st == nil {
		return nil
	}
	o, _ := st.Payload.(*Outcome)
	return o
}

// TextPayload carries the USER_INPUT and REASONING stages.
type TextPayload struct {
	Text string `json:"text"`
}

// PlanPayload carries the PLAN stage.
type PlanPayload struct {
	Steps []string `json:"steps"`
}

// IntentSummary carries the INTENT_TOKEN stage.
type IntentSummary struct {
	Action        ActionType `json:"action"`
	Steps         int        `json:"steps"`
	Confidence    float64    `json:"confidence"`
	CompleteSteps int        `json:"complete_steps"`
}

// Outcome carries the MCP_OUTCOME stage.
type Outcome struct {
	Status                Status          `json:"status"`
	Reason                string          `json:"reason"`
	Message               string          `json:"message"`
	Failures              []PolicyFailure `json:"failures,omitempty"`
	TriggeredRules        []string        `json:"triggered_rules,omitempty"`
	RequiresHumanApproval bool            `json:"requires_human_approval"`
	Confidence            float64         `json:"confidence"`
	Price                 string          `json:"price,omitempty"`
	ExecutionID           string          `json:"execution_id,omitempty"`
	PaymentURL            string          `json:"payment_url,omitempty"`
}
