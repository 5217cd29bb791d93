package payment

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/intentguard/internal/extract"
	"github.com/ppiankov/intentguard/internal/model"
	"github.com/ppiankov/intentguard/internal/policy"
	"github.com/ppiankov/intentguard/internal/store"
	"github.com/ppiankov/intentguard/internal/tracer"
)

// Bill-pay rule names reported in POLICY_EVALUATION checks.
const (
	RuleMerchantAllowlist = "MERCHANT_ALLOWLIST"
	RuleMaxTransaction    = "MAX_TRANSACTION_AMOUNT"
)

const (
	ResultPass = "PASS"
	ResultFail = "FAIL"
)

// ActionPayBill is the intent action of the bill-pay flow.
const ActionPayBill = "PAY_BILL"

// DefaultBillAmount is assumed when the request names no amount.
const DefaultBillAmount = 6200.0

const billConfidence = 0.91

// Known merchants, matched by keyword in the request text.
const (
	MerchantElectricity = "ELECTRICITY_BOARD"
	MerchantWater       = "WATER_UTILITY"
	MerchantTelecom     = "TELECOM_PROVIDER"
)

var merchantKeywords = []struct {
	merchant string
	words    []string
}{
	{MerchantElectricity, []string{"electricity", "power bill"}},
	{MerchantWater, []string{"water"}},
	{MerchantTelecom, []string{"telecom", "phone", "mobile", "broadband"}},
}

// Bill is a parsed bill-payment request.
type Bill struct {
	Text     string
	Merchant string
	Amount   float64
}

// ParseBill detects the merchant and amount in a bill-payment request.
// Unrecognised merchants default to the electricity board.
func ParseBill(text string) Bill {
	b := Bill{Text: text, Merchant: MerchantElectricity, Amount: DefaultBillAmount}
	lower := strings.ToLower(text)
	for _, mk := range merchantKeywords {
		if containsAny(lower, mk.words) {
			b.Merchant = mk.merchant
			break
		}
	}
	if p := extract.Price(text)["price"]; p != "" {
		if v, err := strconv.ParseFloat(p, 64); err == nil && v > 0 {
			b.Amount = v
		}
	}
	return b
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// Check is one rule result in the POLICY_EVALUATION stage.
type Check struct {
	Rule     string `json:"rule"`
	Result   string `json:"result"`
	Expected string `json:"expected,omitempty"`
	Actual   any    `json:"actual,omitempty"`
}

// BillEvaluation is the result of checking a bill against the payment rules.
type BillEvaluation struct {
	Passed bool    `json:"passed"`
	Checks []Check `json:"checks"`
}

// FailedRule returns the first failing rule, or "".
func (e BillEvaluation) FailedRule() string {
	for _, c := range e.Checks {
		if c.Result == ResultFail {
			return c.Rule
		}
	}
	return ""
}

// EvaluateBill checks the merchant allowlist and the transaction cap.
// Every check runs; the bill passes only if all pass.
func EvaluateBill(b Bill, rules policy.PaymentRules) BillEvaluation {
	ev := BillEvaluation{Passed: true}

	merchant := Check{Rule: RuleMerchantAllowlist, Result: ResultPass, Actual: b.Merchant}
	if !verified(rules.VerifiedMerchants, b.Merchant) {
		merchant.Result = ResultFail
		ev.Passed = false
	}
	ev.Checks = append(ev.Checks, merchant)

	amount := Check{
		Rule:     RuleMaxTransaction,
		Result:   ResultPass,
		Expected: "≤ " + strconv.FormatFloat(rules.MaxTransaction, 'f', -1, 64),
		Actual:   b.Amount,
	}
	if b.Amount > rules.MaxTransaction {
		amount.Result = ResultFail
		ev.Passed = false
	}
	ev.Checks = append(ev.Checks, amount)
	return ev
}

func verified(list []string, merchant string) bool {
	for _, m := range list {
		if strings.EqualFold(m, merchant) {
			return true
		}
	}
	return false
}

// BillIntent carries the INTENT_TOKEN stage of a bill payment.
type BillIntent struct {
	Action     string  `json:"action"`
	Amount     float64 `json:"amount"`
	Merchant   string  `json:"merchant"`
	Confidence float64 `json:"confidence"`
}

// PolicyPayload carries the POLICY_EVALUATION stage.
type PolicyPayload struct {
	Checks []Check `json:"checks"`
}

// BillOutcome carries the MCP_OUTCOME stage of a bill payment.
type BillOutcome struct {
	Status model.Status `json:"status"`
	Reason string       `json:"reason,omitempty"`
}

// NewExecutionID returns an "exec_" id for bill-pay traces.
func NewExecutionID() string {
	return "exec_" + strconv.FormatInt(time.Now().UnixMilli(), 10)
}

// BuildBillTrace evaluates the bill and returns the six-stage trace.
func BuildBillTrace(b Bill, rules policy.PaymentRules, now time.Time, id string) (*model.ExecutionTrace, BillEvaluation) {
	ev := EvaluateBill(b, rules)
	merchantName := strings.ToLower(strings.ReplaceAll(b.Merchant, "_", " "))
	amount := strconv.FormatFloat(b.Amount, 'f', -1, 64)
	sym := currencySymbol(rules.Currency)

	outcome := &BillOutcome{Status: model.StatusExecuted}
	if !ev.Passed {
		outcome.Status = model.StatusBlocked
		outcome.Reason = ev.FailedRule()
	}

	tr := &model.ExecutionTrace{
		Timestamp:    tracer.FormatTime(now),
		ExecutionID:  id,
		IntentTokens: []model.IntentToken{},
		Stages: []model.ExecutionStage{
			{Type: model.StageUserInput, Payload: model.TextPayload{Text: b.Text}},
			{Type: model.StageReasoning, Payload: model.TextPayload{Text: fmt.Sprintf(
				"The user wants to pay a recurring utility bill. I should identify the merchant (%s), validate the amount (%s%s), and propose a payment.",
				b.Merchant, sym, amount)}},
			{Type: model.StagePlan, Payload: model.PlanPayload{Steps: []string{
				"Identify " + merchantName,
				"Retrieve bill amount: " + sym + amount,
				"Propose a payment intent",
				"Submit for policy evaluation",
			}}},
			{Type: model.StageIntentToken, Payload: BillIntent{
				Action:     ActionPayBill,
				Amount:     b.Amount,
				Merchant:   b.Merchant,
				Confidence: billConfidence,
			}},
			{Type: model.StagePolicyEvaluation, Payload: PolicyPayload{Checks: ev.Checks}},
			{Type: model.StageMCPOutcome, Payload: outcome},
		},
	}
	return tr, ev
}

func currencySymbol(currency string) string {
	switch strings.ToLower(currency) {
	case "inr", "":
		return "₹"
	case "usd":
		return "$"
	case "eur":
		return "€"
	case "jpy":
		return "¥"
	default:
		return strings.ToUpper(currency) + " "
	}
}

// Record converts a bill trace into a store record.
func Record(tr *model.ExecutionTrace, b Bill, ev BillEvaluation) (store.TraceRecord, error) {
	data, err := json.Marshal(tr)
	if err != nil {
		return store.TraceRecord{}, fmt.Errorf("payment: marshal trace: %w", err)
	}
	status := model.StatusExecuted
	if !ev.Passed {
		status = model.StatusBlocked
	}
	return store.TraceRecord{
		ExecutionID: tr.ExecutionID,
		Status:      status,
		Action:      ActionPayBill,
		Price:       strconv.FormatFloat(b.Amount, 'f', -1, 64),
		CreatedAt:   tr.Timestamp,
		Trace:       data,
	}, nil
}
