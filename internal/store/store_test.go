package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/intentguard/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testTrace(id string, status model.Status, ts string) *model.ExecutionTrace {
	return &model.ExecutionTrace{
		ExecutionID:  id,
		Timestamp:    ts,
		IntentTokens: []model.IntentToken{{Action: model.BookFlight, Fields: map[string]string{"price": "4000"}}},
		Stages: []model.ExecutionStage{
			{Type: model.StageUserInput, Payload: model.TextPayload{Text: "fly"}},
			{Type: model.StageMCPOutcome, Payload: &model.Outcome{Status: status, Price: "4000"}},
		},
	}
}

func TestSaveAndGetTrace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveTrace(ctx, testTrace("intent_1", model.StatusApproved, "2026-03-01T12:00:00.000Z")))

	rec, err := s.GetTrace(ctx, "intent_1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, rec.Status)
	assert.Equal(t, "BOOK_FLIGHT", rec.Action)
	assert.Equal(t, "4000", rec.Price)
	assert.Equal(t, "2026-03-01T12:00:00.000Z", rec.CreatedAt)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Trace, &decoded))
	assert.Equal(t, "intent_1", decoded["execution_id"])
	assert.Len(t, decoded["stages"], 2)
}

func TestSaveTraceDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tr := testTrace("intent_dup", model.StatusBlocked, "2026-03-01T12:00:00.000Z")
	require.NoError(t, s.SaveTrace(ctx, tr))
	assert.Error(t, s.SaveTrace(ctx, tr))
}

func TestGetTraceNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetTrace(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListTracesNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveTrace(ctx, testTrace("intent_a", model.StatusApproved, "2026-03-01T10:00:00.000Z")))
	require.NoError(t, s.SaveTrace(ctx, testTrace("intent_b", model.StatusBlocked, "2026-03-01T11:00:00.000Z")))
	require.NoError(t, s.SaveTrace(ctx, testTrace("intent_c", model.StatusApproved, "2026-03-01T12:00:00.000Z")))

	all, err := s.ListTraces(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "intent_c", all[0].ExecutionID)

	two, err := s.ListTraces(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestSaveRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveRecord(ctx, TraceRecord{
		ExecutionID: "exec_1",
		Status:      model.StatusBlocked,
		Action:      "MAKE_PAYMENT",
		Price:       "5000",
		Trace:       json.RawMessage(`{"stages":[]}`),
	}))
	rec, err := s.GetTrace(ctx, "exec_1")
	require.NoError(t, err)
	assert.Equal(t, "MAKE_PAYMENT", rec.Action)
	assert.NotEmpty(t, rec.CreatedAt)
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveTrace(ctx, testTrace("intent_1", model.StatusApproved, "2026-03-01T12:00:00.000Z")))

	require.NoError(t, s.CreateSession(ctx, Session{ID: "cs_1", ExecutionID: "intent_1", Amount: 400000, Currency: "inr"}))

	sess, err := s.GetSession(ctx, "cs_1")
	require.NoError(t, err)
	assert.Equal(t, SessionOpen, sess.Status)
	assert.Equal(t, int64(400000), sess.Amount)

	require.NoError(t, s.UpdateSession(ctx, "cs_1", SessionPaid, "BK_12345678"))
	sess, err = s.GetSession(ctx, "cs_1")
	require.NoError(t, err)
	assert.Equal(t, SessionPaid, sess.Status)
	assert.Equal(t, "BK_12345678", sess.BookingReference)
}

func TestSessionRequiresTrace(t *testing.T) {
	s := newTestStore(t)
	err := s.CreateSession(context.Background(), Session{ID: "cs_x", ExecutionID: "nope", Amount: 1, Currency: "usd"})
	assert.Error(t, err)
}

func TestSessionNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.GetSession(ctx, "cs_missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.UpdateSession(ctx, "cs_missing", SessionPaid, ""), ErrNotFound)
}
