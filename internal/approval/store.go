// Package approval keeps human approval decisions for traces that end in
// REQUIRES_APPROVAL, one JSON file per execution id.
package approval

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/intentguard/internal/model"
)

// ErrNotFound is returned when no approval exists for an execution id.
var ErrNotFound = errors.New("approval not found")

// validKey matches alphanumeric, dash, underscore, and dot characters only.
var validKey = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// validateKey rejects keys that could cause path traversal.
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("key must not be empty")
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("key must not contain '..'")
	}
	if !validKey.MatchString(key) {
		return fmt.Errorf("key contains invalid characters: only alphanumeric, dash, underscore, and dot are allowed")
	}
	return nil
}

// Status represents the state of an approval request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
	StatusConsumed Status = "consumed"
	StatusExpired  Status = "expired"
)

// Approval is one approval request and its resolution.
type Approval struct {
	ExecutionID    string     `json:"execution_id"`
	Status         Status     `json:"status"`
	Action         string     `json:"action"`
	Reasons        []string   `json:"reasons"`
	TriggeredRules []string   `json:"triggered_rules"`
	Price          string     `json:"price,omitempty"`
	Approver       string     `json:"approver,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

// FromTrace builds a pending approval from a trace's outcome.
func FromTrace(tr *model.ExecutionTrace) Approval {
	a := Approval{
		ExecutionID: tr.ExecutionID,
		Status:      StatusPending,
		Action:      string(model.GeneralAction),
	}
	if len(tr.IntentTokens) > 0 {
		a.Action = string(tr.IntentTokens[0].Action)
	}
	if out := tr.Outcome(); out != nil {
		a.TriggeredRules = out.TriggeredRules
		a.Price = out.Price
		for _, f := range out.Failures {
			a.Reasons = append(a.Reasons, f.Reason)
		}
	}
	return a
}

// Store manages approval files on disk. Safe for concurrent use.
type Store struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

// NewStore creates a Store backed by dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("approval: create directory: %w", err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

// DefaultDir returns ~/.intentguard/approvals.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "intentguard-approvals")
	}
	return filepath.Join(home, ".intentguard", "approvals")
}

func (s *Store) clock() time.Time {
	return s.now().UTC()
}

// Request stores a pending approval. No-op if one already exists for the
// execution id.
func (s *Store) Request(a Approval) error {
	if err := validateKey(a.ExecutionID); err != nil {
		return fmt.Errorf("approval: invalid execution id: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(a.ExecutionID)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	a.Status = StatusPending
	a.CreatedAt = s.clock()
	a.ExpiresAt, a.ResolvedAt = nil, nil
	return s.writeAtomic(path, a)
}

// update applies fn to the stored approval under the lock and persists it.
func (s *Store) update(id string, fn func(a *Approval) error) error {
	if err := validateKey(id); err != nil {
		return fmt.Errorf("approval: invalid execution id: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.read(id)
	if err != nil {
		return err
	}
	if err := fn(a); err != nil {
		return err
	}
	return s.writeAtomic(s.path(id), *a)
}

// Approve marks an approval as approved by approver. A positive duration
// sets an expiry; zero makes it valid until consumed.
func (s *Store) Approve(id, approver string, duration time.Duration) error {
	return s.update(id, func(a *Approval) error {
		if a.Status != StatusPending {
			return fmt.Errorf("approval %q is %s, not pending", id, a.Status)
		}
		now := s.clock()
		a.Status = StatusApproved
		a.Approver = approver
		a.ResolvedAt = &now
		if duration > 0 {
			exp := now.Add(duration)
			a.ExpiresAt = &exp
		}
		return nil
	})
}

// Deny marks an approval as denied.
func (s *Store) Deny(id, approver string) error {
	return s.update(id, func(a *Approval) error {
		if a.Status != StatusPending {
			return fmt.Errorf("approval %q is %s, not pending", id, a.Status)
		}
		now := s.clock()
		a.Status = StatusDenied
		a.Approver = approver
		a.ResolvedAt = &now
		return nil
	})
}

// Check returns the current status, expiring approved entries past their
// deadline.
func (s *Store) Check(id string) (Status, error) {
	var status Status
	err := s.update(id, func(a *Approval) error {
		if a.Status == StatusApproved && a.ExpiresAt != nil && s.clock().After(*a.ExpiresAt) {
			a.Status = StatusExpired
		}
		status = a.Status
		return nil
	})
	return status, err
}

// Consume marks an approved entry as used. Only approved, unexpired
// entries can be consumed.
func (s *Store) Consume(id string) error {
	return s.update(id, func(a *Approval) error {
		switch {
		case a.Status == StatusConsumed:
			return fmt.Errorf("approval %q already consumed", id)
		case a.Status != StatusApproved:
			return fmt.Errorf("approval %q is %s, not approved", id, a.Status)
		case a.ExpiresAt != nil && s.clock().After(*a.ExpiresAt):
			a.Status = StatusExpired
			return fmt.Errorf("approval %q expired", id)
		}
		now := s.clock()
		a.Status = StatusConsumed
		a.ResolvedAt = &now
		return nil
	})
}

// Release returns a consumed approval to approved, for when the action it
// authorized did not go through. The original expiry still applies.
func (s *Store) Release(id string) error {
	return s.update(id, func(a *Approval) error {
		if a.Status != StatusConsumed {
			return fmt.Errorf("approval %q is %s, not consumed", id, a.Status)
		}
		a.Status = StatusApproved
		return nil
	})
}

// Get returns the stored approval for an execution id.
func (s *Store) Get(id string) (*Approval, error) {
	if err := validateKey(id); err != nil {
		return nil, fmt.Errorf("approval: invalid execution id: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(id)
}

// List returns every approval, oldest first.
func (s *Store) List() ([]Approval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("approval: list: %w", err)
	}

	var approvals []Approval
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		a, err := s.read(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			continue
		}
		approvals = append(approvals, *a)
	}
	sort.SliceStable(approvals, func(i, j int) bool {
		return approvals[i].CreatedAt.Before(approvals[j].CreatedAt)
	})
	return approvals, nil
}

// Pending returns approvals still waiting for a decision.
func (s *Store) Pending() ([]Approval, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	var out []Approval
	for _, a := range all {
		if a.Status == StatusPending {
			out = append(out, a)
		}
	}
	return out, nil
}

// Prune removes resolved approvals (denied, consumed or expired) whose
// decision is older than retention. Pending and live approved entries
// are never removed. Returns the number of files deleted.
func (s *Store) Prune(retention time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("approval: prune: %w", err)
	}

	now := s.clock()
	cutoff := now.Add(-retention)
	removed := 0
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		a, err := s.read(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			continue
		}
		if !a.resolvedBefore(now, cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// resolvedBefore reports whether the approval reached a terminal state
// before cutoff. An approved entry counts once its expiry has passed.
func (a *Approval) resolvedBefore(now, cutoff time.Time) bool {
	switch a.Status {
	case StatusPending:
		return false
	case StatusApproved, StatusExpired:
		if a.ExpiresAt != nil {
			return now.After(*a.ExpiresAt) && a.ExpiresAt.Before(cutoff)
		}
		return a.Status == StatusExpired && a.ResolvedAt != nil && a.ResolvedAt.Before(cutoff)
	default:
		return a.ResolvedAt != nil && a.ResolvedAt.Before(cutoff)
	}
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *Store) read(id string) (*Approval, error) {
	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("approval: read %s: %w", id, err)
	}

	var a Approval
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("approval: decode %s: %w", id, err)
	}
	return &a, nil
}

func (s *Store) writeAtomic(path string, a Approval) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
