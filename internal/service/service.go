// Package service holds the shared, reloadable state behind the HTTP,
// gRPC and MCP front ends: the engine, the policy hash, the audit log,
// the approval store and the trace store.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ppiankov/intentguard/internal/alert"
	"github.com/ppiankov/intentguard/internal/approval"
	"github.com/ppiankov/intentguard/internal/audit"
	"github.com/ppiankov/intentguard/internal/engine"
	"github.com/ppiankov/intentguard/internal/model"
	"github.com/ppiankov/intentguard/internal/payment"
	"github.com/ppiankov/intentguard/internal/policy"
	"github.com/ppiankov/intentguard/internal/schema"
	"github.com/ppiankov/intentguard/internal/store"
	"github.com/ppiankov/intentguard/internal/tracer"
)

// DefaultPublicURL is where the HTTP server is assumed to be reachable.
const DefaultPublicURL = "http://localhost:5001"

// ApprovalRetention is how long resolved approvals stay on disk.
const ApprovalRetention = 7 * 24 * time.Hour

// ErrNotPayable is returned when a trace may not proceed to checkout.
var ErrNotPayable = errors.New("execution is not approved for payment")

// Config holds service configuration. Empty paths select defaults;
// an empty AuditLogPath disables auditing and a nil Store disables
// persistence and checkout.
type Config struct {
	PolicyPath   string
	SchemaPath   string
	AuditLogPath string
	ApprovalDir  string
	Store        *store.Store
	Gateway      payment.Gateway
	PublicURL    string
	Now          func() time.Time
	NewID        func() string
}

// Service evaluates requests and records their outcomes.
type Service struct {
	mu         sync.RWMutex
	eng        *engine.Engine
	policyHash string
	alerts     *alert.Dispatcher

	cfg       Config
	approvals *approval.Store
	auditLog  *audit.Log
	store     *store.Store
	gateway   payment.Gateway
}

// New loads policy and schemas and opens the approval store and audit log.
func New(cfg Config) (*Service, error) {
	if cfg.PublicURL == "" {
		cfg.PublicURL = DefaultPublicURL
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.ApprovalDir == "" {
		cfg.ApprovalDir = approval.DefaultDir()
	}

	approvals, err := approval.NewStore(cfg.ApprovalDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create approval store: %w", err)
	}
	if n, err := approvals.Prune(ApprovalRetention); err != nil {
		log.Warn().Err(err).Msg("approval prune failed")
	} else if n > 0 {
		log.Debug().Int("removed", n).Msg("pruned resolved approvals")
	}

	s := &Service{
		cfg:       cfg,
		approvals: approvals,
		store:     cfg.Store,
		gateway:   cfg.Gateway,
	}
	if s.gateway == nil && s.store != nil {
		s.gateway = payment.NewLocalGateway(s.store, cfg.PublicURL)
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}

	if cfg.AuditLogPath != "" {
		s.auditLog, err = audit.Open(cfg.AuditLogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
	}
	return s, nil
}

// Reload rebuilds the engine from the policy and schema files and swaps
// it in atomically.
func (s *Service) Reload() error {
	cfg, hash, err := policy.LoadConfigWithHash(s.cfg.PolicyPath)
	if err != nil {
		return fmt.Errorf("failed to load policy config: %w", err)
	}
	reg, err := schema.Load(s.cfg.SchemaPath)
	if err != nil {
		return fmt.Errorf("failed to load schemas: %w", err)
	}
	eng := engine.New(engine.Config{
		Registry:       reg,
		Policy:         cfg,
		PaymentBaseURL: s.cfg.PublicURL + "/payment/",
		Now:            s.cfg.Now,
		NewID:          s.cfg.NewID,
	})

	s.mu.Lock()
	s.eng = eng
	s.policyHash = hash
	s.alerts = alert.NewDispatcher(cfg.Alerts)
	s.mu.Unlock()
	return nil
}

// WatchPaths returns the files whose changes should trigger Reload.
func (s *Service) WatchPaths() []string {
	paths := []string{s.cfg.PolicyPath}
	if s.cfg.PolicyPath == "" {
		paths[0] = policy.DefaultConfigPath()
	}
	if s.cfg.SchemaPath != "" {
		paths = append(paths, s.cfg.SchemaPath)
	}
	return paths
}

// Engine returns the current engine.
func (s *Service) Engine() *engine.Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.eng
}

// PolicyHash returns the hash of the policy file in effect.
func (s *Service) PolicyHash() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policyHash
}

// Approvals returns the approval store.
func (s *Service) Approvals() *approval.Store { return s.approvals }

// Store returns the trace store, or nil when persistence is off.
func (s *Service) Store() *store.Store { return s.store }

// PublicURL returns the base URL of the HTTP front end.
func (s *Service) PublicURL() string { return s.cfg.PublicURL }

// Close waits for pending alerts and releases the audit log. The store
// is owned by the caller.
func (s *Service) Close() error {
	s.dispatcher().Wait()
	if s.auditLog != nil {
		return s.auditLog.Close()
	}
	return nil
}

// Evaluate runs the engine and records the outcome: the trace is stored,
// an audit entry is written and REQUIRES_APPROVAL outcomes open a pending
// approval. Recording failures are logged, not returned, so a decision is
// never lost to a disk error.
func (s *Service) Evaluate(ctx context.Context, req engine.Request) *model.ExecutionTrace {
	s.mu.RLock()
	eng, hash := s.eng, s.policyHash
	s.mu.RUnlock()

	tr := eng.Evaluate(req)
	out := tr.Outcome()

	if s.store != nil {
		if err := s.store.SaveTrace(ctx, tr); err != nil {
			log.Error().Err(err).Str("execution_id", tr.ExecutionID).Msg("failed to store trace")
		}
	}
	entry := audit.EntryFromTrace(tr, hash)
	s.record(entry)
	if out != nil && out.Status != model.StatusApproved {
		s.dispatcher().Dispatch(outcomeEvent(entry, out))
	}
	if out != nil && out.Status == model.StatusRequiresApproval {
		if err := s.approvals.Request(approval.FromTrace(tr)); err != nil {
			log.Error().Err(err).Str("execution_id", tr.ExecutionID).Msg("failed to request approval")
		}
	}

	ev := log.Info().Str("execution_id", tr.ExecutionID)
	if out != nil {
		ev = ev.Str("status", string(out.Status)).Strs("rules", out.TriggeredRules)
	}
	ev.Msg("evaluated")
	return tr
}

// PayBill runs the direct bill-payment flow and records it.
func (s *Service) PayBill(ctx context.Context, text string) *model.ExecutionTrace {
	s.mu.RLock()
	rules, hash := s.eng.Policy().Payments, s.policyHash
	s.mu.RUnlock()

	bill := payment.ParseBill(text)
	id := payment.NewExecutionID()
	if s.cfg.NewID != nil {
		id = s.cfg.NewID()
	}
	tr, ev := payment.BuildBillTrace(bill, rules, s.cfg.Now(), id)

	rec, err := payment.Record(tr, bill, ev)
	if err == nil && s.store != nil {
		err = s.store.SaveRecord(ctx, rec)
	}
	if err != nil {
		log.Error().Err(err).Str("execution_id", id).Msg("failed to store bill trace")
	}

	entry := audit.AuditEntry{
		Timestamp:   tr.Timestamp,
		Event:       audit.EventPayment,
		ExecutionID: id,
		Action:      payment.ActionPayBill,
		Status:      string(rec.Status),
		Reason:      ev.FailedRule(),
		PolicyHash:  hash,
	}
	if r := ev.FailedRule(); r != "" {
		entry.TriggeredRules = []string{r}
	}
	s.record(entry)
	notice := eventFromEntry(entry)
	notice.Type = alert.TypeBillPayment
	notice.Details = map[string]string{
		alert.DetailMerchant: bill.Merchant,
		alert.DetailAmount:   fmt.Sprintf("%.2f", bill.Amount),
	}
	s.dispatcher().Dispatch(notice)

	log.Info().Str("execution_id", id).Str("merchant", bill.Merchant).
		Str("status", string(rec.Status)).Msg("bill payment evaluated")
	return tr
}

// Approve resolves a pending approval and audits the decision.
func (s *Service) Approve(id, approver string, duration time.Duration) error {
	if err := s.approvals.Approve(id, approver, duration); err != nil {
		return err
	}
	s.recordDecision(audit.EventApprove, id, string(approval.StatusApproved), approver)
	return nil
}

// Deny rejects a pending approval and audits the decision.
func (s *Service) Deny(id, approver string) error {
	if err := s.approvals.Deny(id, approver); err != nil {
		return err
	}
	entry := s.recordDecision(audit.EventDeny, id, string(approval.StatusDenied), approver)
	ev := eventFromEntry(entry)
	ev.Type = alert.TypeApprovalDenied
	ev.Details = map[string]string{alert.DetailApprover: approver}
	s.dispatcher().Dispatch(ev)
	return nil
}

// Checkout opens a payment session for an execution. APPROVED traces pay
// directly; REQUIRES_APPROVAL traces need an approved, unconsumed
// approval, which is consumed here and released again if the gateway
// fails.
func (s *Service) Checkout(ctx context.Context, executionID string) (*payment.Checkout, error) {
	if s.store == nil || s.gateway == nil {
		return nil, errors.New("checkout requires a trace store")
	}
	rec, err := s.store.GetTrace(ctx, executionID)
	if err != nil {
		return nil, err
	}

	consumed := false
	switch rec.Status {
	case model.StatusApproved:
	case model.StatusRequiresApproval:
		if err := s.approvals.Consume(executionID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotPayable, err)
		}
		consumed = true
	default:
		return nil, fmt.Errorf("%w: status %s", ErrNotPayable, rec.Status)
	}

	s.mu.RLock()
	currency := s.eng.Policy().Payments.Currency
	s.mu.RUnlock()

	amount, cur, ok := payment.ParseAmount(rec.Price, currency)
	if !ok {
		amount, cur = payment.DefaultAmount, currency
	}
	co, err := s.gateway.CreateCheckout(ctx, payment.CheckoutRequest{
		ExecutionID: executionID,
		Amount:      amount,
		Currency:    cur,
		Description: "Booking confirmation for " + executionID,
	})
	if err != nil {
		if consumed {
			if rerr := s.approvals.Release(executionID); rerr != nil {
				log.Error().Err(rerr).Str("execution_id", executionID).Msg("failed to release approval")
			}
		}
		return nil, fmt.Errorf("checkout: %w", err)
	}
	s.record(audit.AuditEntry{
		Event:       audit.EventPayment,
		ExecutionID: executionID,
		Action:      rec.Action,
		Status:      store.SessionOpen,
		Reason:      payment.FormatAmount(amount, cur),
		PolicyHash:  s.PolicyHash(),
	})
	return co, nil
}

// Complete marks a checkout session paid and returns it with its booking
// reference.
func (s *Service) Complete(ctx context.Context, sessionID string) (*store.Session, error) {
	if s.store == nil {
		return nil, errors.New("payment sessions require a trace store")
	}
	sess, err := payment.Complete(ctx, s.store, sessionID)
	if err != nil {
		return nil, err
	}
	s.record(audit.AuditEntry{
		Event:       audit.EventPayment,
		ExecutionID: sess.ExecutionID,
		Status:      store.SessionPaid,
		Reason:      sess.BookingReference,
		PolicyHash:  s.PolicyHash(),
	})
	return sess, nil
}

// Cancel marks a checkout session cancelled.
func (s *Service) Cancel(ctx context.Context, sessionID string) error {
	if s.store == nil {
		return errors.New("payment sessions require a trace store")
	}
	return payment.Cancel(ctx, s.store, sessionID)
}

// ConfirmBooking issues a booking reference without a payment session.
func (s *Service) ConfirmBooking(executionID string) string {
	ref := tracer.NewBookingReference()
	s.record(audit.AuditEntry{
		Event:       audit.EventPayment,
		ExecutionID: executionID,
		Status:      "confirmed",
		Reason:      ref,
		PolicyHash:  s.PolicyHash(),
	})
	return ref
}

func (s *Service) recordDecision(event, id, status, approver string) audit.AuditEntry {
	action := ""
	if a, err := s.approvals.Get(id); err == nil {
		action = a.Action
	}
	e := audit.AuditEntry{
		Event:       event,
		ExecutionID: id,
		Action:      action,
		Status:      status,
		Reason:      "by " + approver,
		PolicyHash:  s.PolicyHash(),
	}
	s.record(e)
	return e
}

func (s *Service) dispatcher() *alert.Dispatcher {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.alerts
}

func eventFromEntry(e audit.AuditEntry) alert.Event {
	return alert.Event{
		Timestamp:      e.Timestamp,
		ExecutionID:    e.ExecutionID,
		Action:         e.Action,
		Status:         e.Status,
		Reason:         e.Reason,
		TriggeredRules: e.TriggeredRules,
		PolicyHash:     e.PolicyHash,
	}
}

// outcomeEvent builds the alert for a non-approved evaluation. A
// BLOCK_AND_LOG failure marks it as a restricted-region event.
func outcomeEvent(entry audit.AuditEntry, out *model.Outcome) alert.Event {
	ev := eventFromEntry(entry)
	ev.Confidence = out.Confidence
	ev.Details = map[string]string{}
	if out.Price != "" {
		ev.Details[alert.DetailPrice] = out.Price
	}
	var regions []string
	for _, f := range out.Failures {
		if f.Severity == model.SeverityBlockAndLog {
			regions = append(regions, f.Reason)
		}
	}
	if len(regions) > 0 {
		ev.Type = alert.TypeRestrictedRegion
		ev.Details[alert.DetailRegions] = strings.Join(regions, "; ")
	}
	return ev
}

func (s *Service) record(e audit.AuditEntry) {
	if s.auditLog == nil {
		return
	}
	if err := s.auditLog.Record(e); err != nil {
		log.Error().Err(err).Str("execution_id", e.ExecutionID).Msg("failed to write audit entry")
	}
}
