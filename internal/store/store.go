package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/intentguard/internal/model"
)

// ErrNotFound is returned when a trace or session does not exist.
var ErrNotFound = errors.New("store: not found")

// Session statuses.
const (
	SessionOpen      = "open"
	SessionPaid      = "paid"
	SessionCancelled = "cancelled"
)

// DefaultPath returns ~/.intentguard/intentguard.db.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".intentguard", "intentguard.db")
	}
	return filepath.Join(home, ".intentguard", "intentguard.db")
}

// Store reads and writes traces and payment sessions.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New wraps an open database.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Open opens the database at path and wraps it. The parent directory is
// created when missing.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("store: create directory: %w", err)
		}
	}
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// TraceRecord is a stored trace with its indexed columns.
type TraceRecord struct {
	ExecutionID string          `json:"execution_id"`
	Status      model.Status    `json:"status"`
	Action      string          `json:"action"`
	Price       string          `json:"price"`
	CreatedAt   string          `json:"created_at"`
	Trace       json.RawMessage `json:"trace"`
}

// SaveTrace stores a trace. Saving the same execution id twice is an error.
func (s *Store) SaveTrace(ctx context.Context, tr *model.ExecutionTrace) error {
	data, err := json.Marshal(tr)
	if err != nil {
		return fmt.Errorf("store: marshal trace: %w", err)
	}
	action := string(model.GeneralAction)
	if len(tr.IntentTokens) > 0 {
		action = string(tr.IntentTokens[0].Action)
	}
	var status model.Status
	var price string
	if out := tr.Outcome(); out != nil {
		status, price = out.Status, out.Price
	}
	created := tr.Timestamp
	if created == "" {
		created = s.now().UTC().Format(time.RFC3339)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO traces(execution_id, status, action, price, trace_json, created_at) VALUES(?, ?, ?, ?, ?, ?)`,
		tr.ExecutionID, string(status), action, price, string(data), created)
	if err != nil {
		return fmt.Errorf("store: insert trace %s: %w", tr.ExecutionID, err)
	}
	return nil
}

// SaveRecord stores a trace whose outcome was produced outside the
// intent pipeline, such as the bill-pay flow.
func (s *Store) SaveRecord(ctx context.Context, rec TraceRecord) error {
	if rec.CreatedAt == "" {
		rec.CreatedAt = s.now().UTC().Format(time.RFC3339)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO traces(execution_id, status, action, price, trace_json, created_at) VALUES(?, ?, ?, ?, ?, ?)`,
		rec.ExecutionID, string(rec.Status), rec.Action, rec.Price, string(rec.Trace), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: insert trace %s: %w", rec.ExecutionID, err)
	}
	return nil
}

// GetTrace loads a stored trace by execution id.
func (s *Store) GetTrace(ctx context.Context, id string) (*TraceRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT execution_id, status, action, price, trace_json, created_at FROM traces WHERE execution_id=?`, id)
	rec, err := scanTrace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: trace %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get trace %s: %w", id, err)
	}
	return rec, nil
}

// ListTraces returns the most recent traces, newest first. limit <= 0
// returns all.
func (s *Store) ListTraces(ctx context.Context, limit int) ([]TraceRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT execution_id, status, action, price, trace_json, created_at FROM traces ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list traces: %w", err)
	}
	defer rows.Close()

	var out []TraceRecord
	for rows.Next() {
		rec, err := scanTrace(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan trace: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrace(row scanner) (*TraceRecord, error) {
	var rec TraceRecord
	var status, data string
	if err := row.Scan(&rec.ExecutionID, &status, &rec.Action, &rec.Price, &data, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.Status = model.Status(status)
	rec.Trace = json.RawMessage(data)
	return &rec, nil
}

// Session is one hosted checkout session. Amount is in minor currency units.
type Session struct {
	ID               string `json:"id"`
	ExecutionID      string `json:"execution_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	BookingReference string `json:"booking_reference,omitempty"`
	CreatedAt        string `json:"created_at"`
}

// CreateSession stores a new open session.
func (s *Store) CreateSession(ctx context.Context, sess Session) error {
	if sess.Status == "" {
		sess.Status = SessionOpen
	}
	if sess.CreatedAt == "" {
		sess.CreatedAt = s.now().UTC().Format(time.RFC3339)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payment_sessions(id, execution_id, amount, currency, status, created_at, booking_reference) VALUES(?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.ExecutionID, sess.Amount, sess.Currency, sess.Status, sess.CreatedAt, sess.BookingReference)
	if err != nil {
		return fmt.Errorf("store: insert session %s: %w", sess.ID, err)
	}
	return nil
}

// GetSession loads a session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	var sess Session
	err := s.db.QueryRowContext(ctx,
		`SELECT id, execution_id, amount, currency, status, booking_reference, created_at FROM payment_sessions WHERE id=?`, id).
		Scan(&sess.ID, &sess.ExecutionID, &sess.Amount, &sess.Currency, &sess.Status, &sess.BookingReference, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get session %s: %w", id, err)
	}
	return &sess, nil
}

// UpdateSession sets a session's status and booking reference.
func (s *Store) UpdateSession(ctx context.Context, id, status, bookingRef string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE payment_sessions SET status=?, booking_reference=? WHERE id=?`, status, bookingRef, id)
	if err != nil {
		return fmt.Errorf("store: update session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: update session %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	return nil
}
