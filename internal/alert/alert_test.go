package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func countingServer(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var called atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Add(1)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &called
}

func TestDispatchMatchesStatus(t *testing.T) {
	srv, called := countingServer(t, http.StatusOK)
	d := NewDispatcher([]Config{{URL: srv.URL, Events: []string{"BLOCKED"}}})

	d.Dispatch(Event{Status: "BLOCKED", ExecutionID: "intent_1"})
	d.Dispatch(Event{Status: "APPROVED", ExecutionID: "intent_2"})
	d.Wait()

	if called.Load() != 1 {
		t.Errorf("expected 1 call, got %d", called.Load())
	}
}

func TestDispatchMatchesType(t *testing.T) {
	srv, called := countingServer(t, http.StatusOK)
	d := NewDispatcher([]Config{{URL: srv.URL, Events: []string{TypeRestrictedRegion}}})

	d.Dispatch(Event{Status: "BLOCKED", Type: TypeRestrictedRegion})
	d.Wait()

	if called.Load() != 1 {
		t.Errorf("expected 1 call for type match, got %d", called.Load())
	}
}

func TestDispatchMultipleWebhooks(t *testing.T) {
	srv1, c1 := countingServer(t, http.StatusOK)
	srv2, c2 := countingServer(t, http.StatusOK)
	d := NewDispatcher([]Config{
		{URL: srv1.URL, Events: []string{"BLOCKED"}},
		{URL: srv2.URL, Events: []string{"BLOCKED", "REQUIRES_APPROVAL"}},
	})

	d.Dispatch(Event{Status: "REQUIRES_APPROVAL"})
	d.Wait()

	if c1.Load() != 0 || c2.Load() != 1 {
		t.Errorf("expected only the second webhook, got %d and %d", c1.Load(), c2.Load())
	}
}

func TestNilDispatcherDrops(t *testing.T) {
	d := NewDispatcher(nil)
	if d != nil {
		t.Fatal("expected nil dispatcher for empty configs")
	}
	d.Dispatch(Event{Status: "BLOCKED"})
	d.Wait()
}

func TestRetryOnServerError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := Send(context.Background(), Config{URL: srv.URL, Backoff: time.Millisecond}, Event{Status: "BLOCKED"}); err != nil {
		t.Errorf("expected success after retries, got: %v", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	srv, called := countingServer(t, http.StatusBadRequest)
	if err := Send(context.Background(), Config{URL: srv.URL}, Event{Status: "BLOCKED"}); err == nil {
		t.Error("expected error on 400, got nil")
	}
	if called.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", called.Load())
	}
}

func TestSendsHeaders(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := Config{URL: srv.URL, Headers: map[string]string{"Authorization": "Bearer abc"}}
	if err := Send(context.Background(), cfg, Event{Status: "BLOCKED"}); err != nil {
		t.Fatal(err)
	}
	if h := <-got; h != "Bearer abc" {
		t.Errorf("expected Authorization header, got %q", h)
	}
}

func TestFormatGeneric(t *testing.T) {
	data, err := FormatPayload("generic", Event{ExecutionID: "intent_9", Status: "BLOCKED", TriggeredRules: []string{"BUDGET_EXCEEDED"}})
	if err != nil {
		t.Fatal(err)
	}
	var parsed Event
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("generic format is not valid JSON: %v", err)
	}
	if parsed.ExecutionID != "intent_9" || len(parsed.TriggeredRules) != 1 {
		t.Errorf("unexpected payload %+v", parsed)
	}
}

func TestFormatSlack(t *testing.T) {
	data, err := FormatPayload("slack", Event{Status: "REQUIRES_APPROVAL", Action: "BOOK_HOTEL"})
	if err != nil {
		t.Fatal(err)
	}
	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatal(err)
	}
	blocks, ok := parsed["blocks"].([]any)
	if !ok || len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %v", parsed["blocks"])
	}
	header, _ := blocks[0].(map[string]any)
	text, _ := header["text"].(map[string]any)
	if text["text"] != "intentguard: REQUIRES_APPROVAL" {
		t.Errorf("unexpected header %v", text["text"])
	}
}

func TestFormatPagerDutySeverity(t *testing.T) {
	tests := []struct {
		event Event
		want  string
	}{
		{Event{Status: "BLOCKED", Type: TypeRestrictedRegion}, "critical"},
		{Event{Status: "BLOCKED"}, "error"},
		{Event{Status: "REQUIRES_APPROVAL"}, "warning"},
		{Event{Status: "EXECUTED", Type: TypeBillPayment}, "info"},
	}
	for _, tt := range tests {
		data, err := FormatPayload("pagerduty", tt.event)
		if err != nil {
			t.Fatal(err)
		}
		var parsed map[string]any
		if err := json.Unmarshal(data, &parsed); err != nil {
			t.Fatal(err)
		}
		payload, _ := parsed["payload"].(map[string]any)
		if payload["severity"] != tt.want {
			t.Errorf("%+v: expected severity %s, got %v", tt.event, tt.want, payload["severity"])
		}
		if payload["source"] != "intentguard" {
			t.Errorf("expected source intentguard, got %v", payload["source"])
		}
	}
}

func TestAttemptsFromConfig(t *testing.T) {
	srv, called := countingServer(t, http.StatusBadGateway)
	cfg := Config{URL: srv.URL, Attempts: 2, Backoff: time.Millisecond}
	err := Send(context.Background(), cfg, Event{Status: "BLOCKED", Type: TypeRestrictedRegion})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if called.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", called.Load())
	}
	if !strings.Contains(err.Error(), "restricted_region webhook failed after 2 attempts") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRetryOnThrottle(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	// Retry-After overrides the hour-long backoff.
	cfg := Config{URL: srv.URL, Backoff: time.Hour}
	done := make(chan error, 1)
	go func() { done <- Send(context.Background(), cfg, Event{Status: "BLOCKED"}) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected success after throttle, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("expected Retry-After: 0 to retry immediately")
	}
	if attempts.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts.Load())
	}
}

func TestTimeoutFromConfig(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := Config{URL: srv.URL, Attempts: 1, Timeout: 20 * time.Millisecond}
	start := time.Now()
	if err := Send(context.Background(), cfg, Event{Status: "BLOCKED"}); err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("expected the configured timeout to apply, took %s", elapsed)
	}
}

func TestSendStopsOnCancel(t *testing.T) {
	srv, called := countingServer(t, http.StatusServiceUnavailable)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Send(ctx, Config{URL: srv.URL, Attempts: 5, Backoff: time.Hour}, Event{Status: "BLOCKED"})
	if err == nil {
		t.Fatal("expected error on cancelled context")
	}
	if called.Load() != 0 {
		t.Errorf("expected no delivery on cancelled context, got %d", called.Load())
	}
}

func TestSendsEventHeaders(t *testing.T) {
	got := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ev := Event{ExecutionID: "bill_42", Status: "EXECUTED", Type: TypeBillPayment}
	if err := Send(context.Background(), Config{URL: srv.URL}, ev); err != nil {
		t.Fatal(err)
	}
	h := <-got
	if h.Get("X-Intentguard-Event") != "bill_payment" {
		t.Errorf("expected event header bill_payment, got %q", h.Get("X-Intentguard-Event"))
	}
	if h.Get("Idempotency-Key") != "bill_42:bill_payment" {
		t.Errorf("expected idempotency key bill_42:bill_payment, got %q", h.Get("Idempotency-Key"))
	}
}

func TestGenericPayloadPerEvent(t *testing.T) {
	tests := []struct {
		event   Event
		kind    string
		summary string
	}{
		{
			Event{Status: "EXECUTED", Type: TypeBillPayment, Details: map[string]string{DetailMerchant: "BESCOM", DetailAmount: "1200.00"}},
			"bill_payment", "Bill payment to BESCOM for 1200.00: EXECUTED",
		},
		{
			Event{Status: "BLOCKED", Type: TypeRestrictedRegion, Details: map[string]string{DetailRegions: "crimea"}},
			"restricted_region", "Booking to restricted region blocked: crimea",
		},
		{
			Event{ExecutionID: "intent_7", Status: "DENIED", Type: TypeApprovalDenied, Details: map[string]string{DetailApprover: "ops"}},
			"approval_denied", "Approval for intent_7 denied by ops",
		},
		{
			Event{Action: "BOOK_HOTEL", Status: "REQUIRES_APPROVAL", Reason: "Budget warning"},
			"requires_approval", "BOOK_HOTEL REQUIRES_APPROVAL: Budget warning",
		},
	}
	for _, tt := range tests {
		data, err := FormatPayload("generic", tt.event)
		if err != nil {
			t.Fatal(err)
		}
		var parsed map[string]any
		if err := json.Unmarshal(data, &parsed); err != nil {
			t.Fatal(err)
		}
		if parsed["event"] != tt.kind {
			t.Errorf("expected event %s, got %v", tt.kind, parsed["event"])
		}
		if parsed["summary"] != tt.summary {
			t.Errorf("expected summary %q, got %v", tt.summary, parsed["summary"])
		}
	}
}

func TestFormatSlackBillPayment(t *testing.T) {
	ev := Event{Status: "EXECUTED", Type: TypeBillPayment, Details: map[string]string{DetailMerchant: "BESCOM", DetailAmount: "1200.00"}}
	data, err := FormatPayload("slack", ev)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "*Merchant:* BESCOM") || !strings.Contains(string(data), "*Amount:* 1200.00") {
		t.Errorf("expected merchant and amount fields, got %s", data)
	}
	if strings.Contains(string(data), "*Rules:*") {
		t.Errorf("expected no rules field for bill payments, got %s", data)
	}
}

func TestFormatPagerDutyCarriesDetails(t *testing.T) {
	ev := Event{ExecutionID: "intent_3", Status: "BLOCKED", Type: TypeRestrictedRegion, Details: map[string]string{DetailRegions: "syria"}}
	data, err := FormatPayload("pagerduty", ev)
	if err != nil {
		t.Fatal(err)
	}
	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatal(err)
	}
	if parsed["dedup_key"] != "intent_3:restricted_region" {
		t.Errorf("unexpected dedup_key %v", parsed["dedup_key"])
	}
	payload, _ := parsed["payload"].(map[string]any)
	details, _ := payload["custom_details"].(map[string]any)
	if details[DetailRegions] != "syria" {
		t.Errorf("expected regions detail, got %v", details)
	}
}
