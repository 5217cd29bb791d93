// Package payment hands approved traces to a checkout collaborator and
// runs the direct bill-payment flow.
package payment

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ppiankov/intentguard/internal/store"
	"github.com/ppiankov/intentguard/internal/tracer"
)

// CheckoutRequest describes one charge.
type CheckoutRequest struct {
	ExecutionID string
	Amount      int64
	Currency    string
	Description string
}

// Checkout is a created checkout session.
type Checkout struct {
	SessionID string
	URL       string
}

// Gateway creates hosted checkout sessions.
type Gateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
}

// LocalGateway records sessions in the store and sends the payer straight
// to the local success page. It stands in for a hosted card processor.
type LocalGateway struct {
	store   *store.Store
	baseURL string
	newID   func() string
}

// NewLocalGateway returns a gateway whose result pages live under baseURL,
// e.g. "http://localhost:5001".
func NewLocalGateway(st *store.Store, baseURL string) *LocalGateway {
	return &LocalGateway{
		store:   st,
		baseURL: strings.TrimRight(baseURL, "/"),
		newID:   tracer.NewSessionID,
	}
}

// CreateCheckout stores an open session and returns its success URL.
func (g *LocalGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("payment: amount must be positive, got %d", req.Amount)
	}
	id := g.newID()
	err := g.store.CreateSession(ctx, store.Session{
		ID:          id,
		ExecutionID: req.ExecutionID,
		Amount:      req.Amount,
		Currency:    req.Currency,
	})
	if err != nil {
		return nil, err
	}
	return &Checkout{SessionID: id, URL: g.SuccessURL(id, req.ExecutionID)}, nil
}

// SuccessURL returns the success page link for a session.
func (g *LocalGateway) SuccessURL(sessionID, executionID string) string {
	q := url.Values{"session_id": {sessionID}, "execution_id": {executionID}}
	return g.baseURL + "/payment/success?" + q.Encode()
}

// CancelURL returns the cancel page link for an execution.
func (g *LocalGateway) CancelURL(executionID string) string {
	return g.baseURL + "/payment/cancel?" + url.Values{"execution_id": {executionID}}.Encode()
}

// Complete marks a session paid and assigns a booking reference. Completing
// an already paid session returns it unchanged.
func Complete(ctx context.Context, st *store.Store, sessionID string) (*store.Session, error) {
	sess, err := st.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch sess.Status {
	case store.SessionPaid:
		return sess, nil
	case store.SessionCancelled:
		return nil, fmt.Errorf("payment: session %s was cancelled", sessionID)
	}
	ref := tracer.NewBookingReference()
	if err := st.UpdateSession(ctx, sessionID, store.SessionPaid, ref); err != nil {
		return nil, err
	}
	sess.Status, sess.BookingReference = store.SessionPaid, ref
	return sess, nil
}

// Cancel marks a session cancelled unless it was already paid.
func Cancel(ctx context.Context, st *store.Store, sessionID string) error {
	sess, err := st.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Status == store.SessionPaid {
		return fmt.Errorf("payment: session %s already paid", sessionID)
	}
	return st.UpdateSession(ctx, sessionID, store.SessionCancelled, "")
}
