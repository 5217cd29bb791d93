package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/intentguard/internal/model"
	"github.com/ppiankov/intentguard/internal/planner"
	"github.com/ppiankov/intentguard/internal/ratelimit"
	"github.com/ppiankov/intentguard/internal/service"
	"github.com/ppiankov/intentguard/internal/store"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const flightResponse = `<Reasoning>IndiGo flies Delhi to Mumbai several times a day.</Reasoning>
<Plan>**Recommended Flight:**
**Airline:** IndiGo
**Route:** Delhi to Mumbai
**Departure Date:** 2026-03-20
**Estimated Price:** ₹4,000
**Booking Website:** goindigo.in
</Plan>`

type testEnv struct {
	srv *httptest.Server
	svc *service.Service
}

func newTestEnv(t *testing.T, gen planner.Generator) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, gen, Config{})
}

func newTestEnvWithConfig(t *testing.T, gen planner.Generator, cfg Config) *testEnv {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "intentguard.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	n := 0
	svc, err := service.New(service.Config{
		PolicyPath:   filepath.Join(dir, "policy.yaml"),
		AuditLogPath: filepath.Join(dir, "audit.jsonl"),
		ApprovalDir:  filepath.Join(dir, "approvals"),
		Store:        st,
		Now:          func() time.Time { return fixedNow },
		NewID: func() string {
			n++
			return fmt.Sprintf("intent_%d", n)
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	var p *planner.Planner
	if gen != nil {
		p = planner.New(gen, planner.Config{})
	}
	ts := httptest.NewServer(New(svc, p, cfg).Handler())
	t.Cleanup(ts.Close)
	return &testEnv{srv: ts, svc: svc}
}

func noRedirect(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

func (e *testEnv) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(e.srv.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	client := &http.Client{CheckRedirect: noRedirect}
	resp, err := client.Get(e.srv.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

type traceJSON struct {
	ExecutionID string `json:"execution_id"`
	Stages      []struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	} `json:"stages"`
}

func (tr traceJSON) outcome(t *testing.T) model.Outcome {
	t.Helper()
	require.NotEmpty(t, tr.Stages)
	var out model.Outcome
	require.NoError(t, json.Unmarshal(tr.Stages[len(tr.Stages)-1].Payload, &out))
	return out
}

func flightAnswers(budget string) []model.UserAnswer {
	return []model.UserAnswer{
		{ID: "q1", Field: "origin", Answer: "Delhi"},
		{ID: "q2", Field: "destination", Answer: "Mumbai"},
		{ID: "q3", Field: "departure_date", Answer: "2026-03-20"},
		{ID: "q4", Field: "travelers", Answer: "1"},
		{ID: "q5", Field: "budget", Answer: budget},
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.get(t, "/api/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "healthy", body["status"])
}

func TestPolicy(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.get(t, "/api/policy")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Hash    string   `json:"policy_hash"`
		Summary []string `json:"summary"`
	}
	decodeBody(t, resp, &body)
	assert.True(t, strings.HasPrefix(body.Hash, "sha256:"))
	assert.NotEmpty(t, body.Summary)
}

func TestExecuteWithIntentQuestionsFallback(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.post(t, "/api/execute-with-intent", map[string]any{"text": "Book a flight to Mumbai"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		NeedsQuestions bool `json:"needs_questions"`
		Questions      []struct {
			ID        string `json:"id"`
			Field     string `json:"field"`
			WhyAsking string `json:"why_asking"`
		} `json:"questions"`
		Reasoning string `json:"reasoning"`
	}
	decodeBody(t, resp, &body)
	assert.True(t, body.NeedsQuestions)
	require.Len(t, body.Questions, 5)
	assert.Equal(t, "origin", body.Questions[0].Field)
	assert.Equal(t, "q1", body.Questions[0].ID)
	assert.NotEmpty(t, body.Questions[0].WhyAsking)
	assert.Equal(t, gatheringReasoning, body.Reasoning)
}

func TestExecuteWithIntentWithoutPlannerIsUnavailable(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.post(t, "/api/execute-with-intent", map[string]any{
		"text":      "Book a flight to Mumbai",
		"responses": flightAnswers("₹5000"),
	})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestExecuteWithIntentApprovedThenPay(t *testing.T) {
	env := newTestEnv(t, planner.Static{Text: flightResponse})
	resp := env.post(t, "/api/execute-with-intent", map[string]any{
		"text":      "Book a flight from Delhi to Mumbai",
		"responses": flightAnswers("₹5000"),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tr traceJSON
	decodeBody(t, resp, &tr)
	require.Len(t, tr.Stages, 5)
	out := tr.outcome(t)
	require.Equal(t, model.StatusApproved, out.Status, "failures: %+v", out.Failures)
	assert.Equal(t, env.svc.PublicURL()+"/payment/"+tr.ExecutionID, out.PaymentURL)

	stored := env.get(t, "/api/traces/"+tr.ExecutionID)
	assert.Equal(t, http.StatusOK, stored.StatusCode)

	pay := env.get(t, "/payment/"+tr.ExecutionID)
	require.Equal(t, http.StatusSeeOther, pay.StatusCode)
	loc, err := url.Parse(pay.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/payment/success", loc.Path)

	success := env.get(t, "/payment/success?"+loc.RawQuery)
	require.Equal(t, http.StatusOK, success.StatusCode)
	var page bytes.Buffer
	_, err = page.ReadFrom(success.Body)
	require.NoError(t, err)
	assert.Contains(t, page.String(), "Payment Successful")
	assert.Contains(t, page.String(), "BK_")
	assert.Contains(t, page.String(), "INR 4000.00")
}

func TestEvaluateRequiresApprovalFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.post(t, "/api/evaluate", map[string]any{
		"text":      "Book a flight from Delhi to Mumbai",
		"reasoning": "IndiGo",
		"plan":      "**Airline:** IndiGo\n**Route:** Delhi to Mumbai\n**Estimated Price:** ₹4,000\n**Booking Website:** goindigo.in",
		"responses": flightAnswers("₹3900"),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tr traceJSON
	decodeBody(t, resp, &tr)
	out := tr.outcome(t)
	require.Equal(t, model.StatusRequiresApproval, out.Status, "failures: %+v", out.Failures)
	assert.True(t, out.RequiresHumanApproval)

	forbidden := env.get(t, "/payment/"+tr.ExecutionID)
	assert.Equal(t, http.StatusForbidden, forbidden.StatusCode)

	list := env.get(t, "/api/approvals")
	var approvals struct {
		Approvals []struct {
			ExecutionID string `json:"execution_id"`
			Status      string `json:"status"`
		} `json:"approvals"`
	}
	decodeBody(t, list, &approvals)
	require.Len(t, approvals.Approvals, 1)
	assert.Equal(t, "pending", approvals.Approvals[0].Status)

	approved := env.post(t, "/api/approvals/"+tr.ExecutionID+"/approve", map[string]string{"approver": "ops", "duration": "1h"})
	require.Equal(t, http.StatusOK, approved.StatusCode)

	pay := env.get(t, "/payment/"+tr.ExecutionID)
	assert.Equal(t, http.StatusSeeOther, pay.StatusCode)

	again := env.post(t, "/api/approvals/"+tr.ExecutionID+"/deny", map[string]string{})
	assert.Equal(t, http.StatusConflict, again.StatusCode)
}

func TestEvaluateRequiresPlan(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.post(t, "/api/evaluate", map[string]any{"text": "hi"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBadJSON(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, err := http.Post(env.srv.URL+"/api/evaluate", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExecuteBillPay(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.post(t, "/api/execute", map[string]string{"text": "Pay my electricity bill"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tr traceJSON
	decodeBody(t, resp, &tr)
	require.Len(t, tr.Stages, 6)
	assert.Equal(t, "POLICY_EVALUATION", tr.Stages[4].Type)

	var out struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	require.NoError(t, json.Unmarshal(tr.Stages[5].Payload, &out))
	assert.Equal(t, "BLOCKED", out.Status)
	assert.Equal(t, "MAX_TRANSACTION_AMOUNT", out.Reason)
}

func TestTraceNotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	assert.Equal(t, http.StatusNotFound, env.get(t, "/api/traces/intent_missing").StatusCode)
	assert.Equal(t, http.StatusNotFound, env.get(t, "/payment/intent_missing").StatusCode)
}

func TestApproveUnknown(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.post(t, "/api/approvals/intent_missing/approve", map[string]string{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConfirmBooking(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.post(t, "/api/confirm-booking", map[string]any{
		"execution_id": "intent_1",
		"details":      map[string]string{"hotel_name": "Taj", "website": "booking.com"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Success   bool     `json:"success"`
		Reference string   `json:"booking_reference"`
		NextSteps []string `json:"next_steps"`
	}
	decodeBody(t, resp, &body)
	assert.True(t, body.Success)
	assert.Regexp(t, `^BK_`, body.Reference)
	assert.Equal(t, "Visit booking.com to complete payment", body.NextSteps[0])
}

func TestCancelPage(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.get(t, "/payment/cancel?execution_id=intent_9")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil)
	req, err := http.NewRequestWithContext(context.Background(), http.MethodOptions, env.srv.URL+"/api/evaluate", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestEvaluateRateLimited(t *testing.T) {
	env := newTestEnvWithConfig(t, nil, Config{
		RateLimit: ratelimit.Limit{MaxRequests: 1, Window: time.Minute},
	})
	body := map[string]any{"text": "Book a flight", "plan": "1. Book flight from Delhi to Mumbai on 2026-03-20"}

	first := env.post(t, "/api/evaluate", body)
	assert.Equal(t, http.StatusOK, first.StatusCode)

	second := env.post(t, "/api/evaluate", body)
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
	assert.NotEmpty(t, second.Header.Get("Retry-After"))

	// Read-only routes are not limited.
	health := env.get(t, "/api/health")
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestListTracesLimit(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	for i := 0; i < defaultTraceLimit+5; i++ {
		require.NoError(t, env.svc.Store().SaveTrace(ctx, &model.ExecutionTrace{
			ExecutionID: fmt.Sprintf("intent_seed_%d", i),
			Timestamp:   fixedNow.Add(time.Duration(i) * time.Second).Format(time.RFC3339),
		}))
	}

	tests := []struct {
		query string
		want  int
	}{
		{"", defaultTraceLimit},
		{"?limit=3", 3},
		{"?limit=0", defaultTraceLimit},
		{"?limit=-5", defaultTraceLimit},
	}
	for _, tt := range tests {
		resp := env.get(t, "/api/traces"+tt.query)
		require.Equal(t, http.StatusOK, resp.StatusCode, tt.query)
		var body struct {
			Traces []store.TraceRecord `json:"traces"`
		}
		decodeBody(t, resp, &body)
		assert.Len(t, body.Traces, tt.want, tt.query)
	}

	assert.Equal(t, http.StatusBadRequest, env.get(t, "/api/traces?limit=ten").StatusCode)
}
