package payment

import (
	"context"
	"errors"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/intentguard/internal/model"
	"github.com/ppiankov/intentguard/internal/policy"
	"github.com/ppiankov/intentguard/internal/store"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		price    string
		amount   int64
		currency string
		ok       bool
	}{
		{"₹4,350 per person", 435000, "inr", true},
		{"$650.50", 65050, "usd", true},
		{"€85", 8500, "eur", true},
		{"¥12,000", 12000, "jpy", true},
		{"Rs. 2,000", 200000, "inr", true},
		{"4000", 400000, "inr", true},
		{"around 300 USD", 30000, "usd", true},
		{"free", 0, "", false},
		{"", 0, "", false},
	}
	for _, tt := range tests {
		amount, currency, ok := ParseAmount(tt.price, "inr")
		if ok != tt.ok || amount != tt.amount || currency != tt.currency {
			t.Errorf("ParseAmount(%q): expected (%d, %q, %v), got (%d, %q, %v)",
				tt.price, tt.amount, tt.currency, tt.ok, amount, currency, ok)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "INR 4350.00", FormatAmount(435000, "inr"))
	assert.Equal(t, "JPY 12000", FormatAmount(12000, "jpy"))
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "pay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestLocalGatewayCheckout(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	gw := NewLocalGateway(st, "http://localhost:5001/")
	gw.newID = func() string { return "cs_test" }

	co, err := gw.CreateCheckout(ctx, CheckoutRequest{ExecutionID: "intent_1", Amount: 400000, Currency: "inr"})
	require.NoError(t, err)
	assert.Equal(t, "cs_test", co.SessionID)

	u, err := url.Parse(co.URL)
	require.NoError(t, err)
	assert.Equal(t, "/payment/success", u.Path)
	assert.Equal(t, "cs_test", u.Query().Get("session_id"))
	assert.Equal(t, "intent_1", u.Query().Get("execution_id"))

	sess, err := st.GetSession(ctx, "cs_test")
	require.NoError(t, err)
	assert.Equal(t, store.SessionOpen, sess.Status)
	assert.Equal(t, int64(400000), sess.Amount)
}

func TestLocalGatewayRejectsZeroAmount(t *testing.T) {
	gw := NewLocalGateway(newStore(t), "http://localhost:5001")
	_, err := gw.CreateCheckout(context.Background(), CheckoutRequest{ExecutionID: "intent_1"})
	assert.Error(t, err)
}

func TestCompleteAssignsReferenceOnce(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateSession(ctx, store.Session{ID: "cs_1", ExecutionID: "intent_1", Amount: 100, Currency: "inr"}))

	first, err := Complete(ctx, st, "cs_1")
	require.NoError(t, err)
	assert.Equal(t, store.SessionPaid, first.Status)
	assert.Regexp(t, `^BK_[0-9A-F]{8}$`, first.BookingReference)

	second, err := Complete(ctx, st, "cs_1")
	require.NoError(t, err)
	assert.Equal(t, first.BookingReference, second.BookingReference)

	assert.Error(t, Cancel(ctx, st, "cs_1"))
}

func TestCancelThenComplete(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateSession(ctx, store.Session{ID: "cs_2", ExecutionID: "intent_2", Amount: 100, Currency: "inr"}))
	require.NoError(t, Cancel(ctx, st, "cs_2"))

	_, err := Complete(ctx, st, "cs_2")
	assert.Error(t, err)
}

func TestCompleteUnknownSession(t *testing.T) {
	_, err := Complete(context.Background(), newStore(t), "cs_missing")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestParseBill(t *testing.T) {
	tests := []struct {
		text     string
		merchant string
		amount   float64
	}{
		{"Pay my electricity bill", MerchantElectricity, DefaultBillAmount},
		{"Pay the water bill of ₹1,200", MerchantWater, 1200},
		{"Settle my phone bill for Rs 899", MerchantTelecom, 899},
		{"Pay the gym", MerchantElectricity, DefaultBillAmount},
	}
	for _, tt := range tests {
		b := ParseBill(tt.text)
		if b.Merchant != tt.merchant || b.Amount != tt.amount {
			t.Errorf("ParseBill(%q): expected %s %.0f, got %s %.0f", tt.text, tt.merchant, tt.amount, b.Merchant, b.Amount)
		}
	}
}

func TestEvaluateBillDefaultAmountBlocked(t *testing.T) {
	rules := policy.DefaultConfig().Payments
	ev := EvaluateBill(ParseBill("Pay my electricity bill"), rules)

	assert.False(t, ev.Passed)
	require.Len(t, ev.Checks, 2)
	assert.Equal(t, ResultPass, ev.Checks[0].Result)
	assert.Equal(t, ResultFail, ev.Checks[1].Result)
	assert.Equal(t, "≤ 5000", ev.Checks[1].Expected)
	assert.Equal(t, RuleMaxTransaction, ev.FailedRule())
}

func TestEvaluateBillUnverifiedMerchant(t *testing.T) {
	rules := policy.DefaultConfig().Payments
	ev := EvaluateBill(Bill{Merchant: "GYM_MEMBERSHIP", Amount: 100}, rules)
	assert.False(t, ev.Passed)
	assert.Equal(t, RuleMerchantAllowlist, ev.FailedRule())
}

func TestBuildBillTraceExecuted(t *testing.T) {
	rules := policy.DefaultConfig().Payments
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tr, ev := BuildBillTrace(ParseBill("Pay my water bill ₹1,500"), rules, now, "exec_1")

	assert.True(t, ev.Passed)
	assert.Equal(t, "exec_1", tr.ExecutionID)
	assert.Equal(t, "2026-03-01T12:00:00.000Z", tr.Timestamp)

	want := []model.StageType{
		model.StageUserInput, model.StageReasoning, model.StagePlan,
		model.StageIntentToken, model.StagePolicyEvaluation, model.StageMCPOutcome,
	}
	require.Len(t, tr.Stages, len(want))
	for i, st := range want {
		assert.Equal(t, st, tr.Stages[i].Type)
	}

	plan := tr.Stages[2].Payload.(model.PlanPayload)
	assert.Equal(t, "Identify water utility", plan.Steps[0])
	assert.Equal(t, "Retrieve bill amount: ₹1500", plan.Steps[1])

	out := tr.Stages[5].Payload.(*BillOutcome)
	assert.Equal(t, model.StatusExecuted, out.Status)
	assert.Empty(t, out.Reason)
}

func TestBuildBillTraceBlockedReason(t *testing.T) {
	rules := policy.DefaultConfig().Payments
	tr, _ := BuildBillTrace(ParseBill("Pay my electricity bill"), rules, time.Now(), "exec_2")
	out := tr.Stages[5].Payload.(*BillOutcome)
	assert.Equal(t, model.StatusBlocked, out.Status)
	assert.Equal(t, RuleMaxTransaction, out.Reason)

	rec, err := Record(tr, ParseBill("Pay my electricity bill"), EvaluateBill(ParseBill("Pay my electricity bill"), rules))
	require.NoError(t, err)
	assert.Equal(t, model.StatusBlocked, rec.Status)
	assert.Equal(t, "6200", rec.Price)
	assert.Equal(t, ActionPayBill, rec.Action)
}
