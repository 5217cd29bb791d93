package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/ppiankov/intentguard/internal/approval"
	"github.com/ppiankov/intentguard/internal/engine"
	"github.com/ppiankov/intentguard/internal/model"
	"github.com/ppiankov/intentguard/internal/planner"
	"github.com/ppiankov/intentguard/internal/service"
	"github.com/ppiankov/intentguard/internal/store"
)

const gatheringReasoning = "Let me gather some details to plan your perfect trip..."

type intentRequest struct {
	Text      string             `json:"text"`
	Responses []model.UserAnswer `json:"responses"`
}

type evaluateRequest struct {
	Text      string             `json:"text"`
	Reasoning string             `json:"reasoning"`
	Plan      string             `json:"plan"`
	Responses []model.UserAnswer `json:"responses"`
	Booking   map[string]string  `json:"booking,omitempty"`
}

type decisionRequest struct {
	Approver string `json:"approver"`
	Duration string `json:"duration"`
}

type confirmRequest struct {
	ExecutionID string            `json:"execution_id"`
	Details     map[string]string `json:"details"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "intentguard"})
}

func (s *Server) handlePolicy(w http.ResponseWriter, r *http.Request) {
	eng := s.svc.Engine()
	writeJSON(w, http.StatusOK, map[string]any{
		"policy_hash": s.svc.PolicyHash(),
		"summary":     eng.Policy().Summary(),
		"policy":      eng.Policy(),
	})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.svc.PayBill(r.Context(), req.Text))
}

func (s *Server) handleExecuteWithIntent(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	if len(req.Responses) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{
			"needs_questions": true,
			"questions":       s.planner.Questions(r.Context(), req.Text),
			"reasoning":       gatheringReasoning,
		})
		return
	}

	resp, err := s.planner.Plan(r.Context(), req.Text, req.Responses)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, planner.ErrUnavailable) {
			status = http.StatusServiceUnavailable
		}
		log.Error().Err(err).Msg("plan generation failed")
		writeError(w, status, err.Error())
		return
	}

	tr := s.svc.Evaluate(r.Context(), engine.Request{
		Utterance: req.Text,
		Reasoning: resp.Reasoning,
		Plan:      resp.Plan,
		Answers:   req.Responses,
	})
	writeJSON(w, http.StatusOK, tr)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Plan) == "" {
		writeError(w, http.StatusBadRequest, "plan is required")
		return
	}
	tr := s.svc.Evaluate(r.Context(), engine.Request{
		Utterance: req.Text,
		Reasoning: req.Reasoning,
		Plan:      req.Plan,
		Answers:   req.Responses,
		Booking:   req.Booking,
	})
	writeJSON(w, http.StatusOK, tr)
}

func (s *Server) handleConfirmBooking(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ExecutionID == "" {
		writeError(w, http.StatusBadRequest, "execution_id is required")
		return
	}
	ref := s.svc.ConfirmBooking(req.ExecutionID)
	website := req.Details["website"]
	if website == "" {
		website = "the booking website"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":           true,
		"booking_reference": ref,
		"message":           "Booking confirmed successfully!",
		"details":           req.Details,
		"next_steps": []string{
			"Visit " + website + " to complete payment",
			"Check your email for confirmation",
			"Save your booking reference: " + ref,
		},
	})
}

const defaultTraceLimit = 50

func (s *Server) handleListTraces(w http.ResponseWriter, r *http.Request) {
	st := s.svc.Store()
	if st == nil {
		writeError(w, http.StatusNotImplemented, "trace store is disabled")
		return
	}
	limit := defaultTraceLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		// Zero or negative means the default page.
		if n > 0 {
			limit = n
		}
	}
	recs, err := st.ListTraces(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if recs == nil {
		recs = []store.TraceRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"traces": recs})
}

func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	st := s.svc.Store()
	if st == nil {
		writeError(w, http.StatusNotImplemented, "trace store is disabled")
		return
	}
	rec, err := st.GetTrace(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "trace not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(rec.Trace)
}

func (s *Server) handleListApprovals(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Approvals().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []approval.Approval{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"approvals": list})
}

func (s *Server) readDecision(w http.ResponseWriter, r *http.Request) (decisionRequest, bool) {
	var req decisionRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return req, false
	}
	if req.Approver == "" {
		req.Approver = "api"
	}
	return req, true
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readDecision(w, r)
	if !ok {
		return
	}
	var duration time.Duration
	if req.Duration != "" {
		d, err := time.ParseDuration(req.Duration)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid duration "+strconv.Quote(req.Duration))
			return
		}
		duration = d
	}
	id := chi.URLParam(r, "id")
	if err := s.svc.Approve(id, req.Approver, duration); err != nil {
		writeApprovalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"execution_id": id, "status": string(approval.StatusApproved)})
}

func (s *Server) handleDeny(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readDecision(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.svc.Deny(id, req.Approver); err != nil {
		writeApprovalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"execution_id": id, "status": string(approval.StatusDenied)})
}

func writeApprovalError(w http.ResponseWriter, err error) {
	if errors.Is(err, approval.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusConflict, err.Error())
}

func (s *Server) handlePayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	co, err := s.svc.Checkout(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "execution not found")
		return
	case errors.Is(err, service.ErrNotPayable):
		writeError(w, http.StatusForbidden, err.Error())
		return
	case err != nil:
		log.Error().Err(err).Str("execution_id", id).Msg("checkout failed")
		writeError(w, http.StatusInternalServerError, "payment gateway error")
		return
	}
	http.Redirect(w, r, co.URL, http.StatusSeeOther)
}

func (s *Server) handlePaymentSuccess(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := resultPage{ExecutionID: q.Get("execution_id"), SessionID: q.Get("session_id")}
	if page.SessionID != "" {
		sess, err := s.svc.Complete(r.Context(), page.SessionID)
		if err != nil {
			log.Warn().Err(err).Str("session_id", page.SessionID).Msg("payment completion failed")
			page.Error = "We could not confirm this payment."
		} else {
			page.BookingReference = sess.BookingReference
			page.Amount = formatSessionAmount(sess)
		}
	}
	renderPage(w, successPage, page)
}

func (s *Server) handlePaymentCancel(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := resultPage{ExecutionID: q.Get("execution_id"), SessionID: q.Get("session_id")}
	if page.SessionID != "" {
		if err := s.svc.Cancel(r.Context(), page.SessionID); err != nil {
			log.Warn().Err(err).Str("session_id", page.SessionID).Msg("payment cancel failed")
		}
	}
	renderPage(w, cancelPage, page)
}
