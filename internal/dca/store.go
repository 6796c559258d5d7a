// Package dca implements recurring buy rules: an owner-scoped rule registry,
// a UTC cron scheduler with replace-on-reschedule semantics, and the runner
// that executes one rule firing.
package dca

import (
	"crypto/rand"
	"io"
	"sync"
	"time"
)

// WithdrawTarget optionally chains a withdrawal after each executed buy.
type WithdrawTarget struct {
	Address string
	Chain   string
}

// Rule is one stored recurring-buy definition.
type Rule struct {
	ID          string
	UserID      int64
	FromTokenID string
	ToTokenID   string
	FromSymbol  string
	ToSymbol    string
	Amount      string
	// Cron is the recurrence expression, evaluated in UTC.
	Cron      string
	FromChain string
	ToChain   string
	Withdraw  *WithdrawTarget
	DryRun    bool
	CreatedAt time.Time
	LastRunAt time.Time
}

// Store is the in-memory rule registry, scoped by owning user.
type Store struct {
	mu    sync.Mutex
	rules map[string]*Rule
	now   func() time.Time
	rand  io.Reader
}

// StoreOption configures the store.
type StoreOption func(*Store)

// WithNow overrides the clock for tests.
func WithNow(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRand overrides the id entropy source for tests.
func WithRand(r io.Reader) StoreOption {
	return func(s *Store) {
		if r != nil {
			s.rand = r
		}
	}
}

// NewStore creates an empty rule store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		rules: make(map[string]*Rule),
		now:   time.Now,
		rand:  rand.Reader,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add assigns a fresh id and creation time, stores the rule and returns it.
func (s *Store) Add(rule Rule) Rule {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule.ID = s.newIDLocked()
	rule.CreatedAt = s.now()
	stored := rule
	s.rules[rule.ID] = &stored
	return rule
}

// List returns the rules owned by userID. Order is unspecified.
func (s *Store) List(userID int64) []Rule {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Rule
	for _, r := range s.rules {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out
}

// Get returns the rule with the given id.
func (s *Store) Get(id string) (Rule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rules[id]
	if !ok {
		return Rule{}, false
	}
	return *r, true
}

// Remove deletes the rule only if it exists and is owned by userID. A missing
// rule and a rule owned by someone else both report false, so callers cannot
// probe for other users' rules.
func (s *Store) Remove(userID int64, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rules[id]
	if !ok || r.UserID != userID {
		return false
	}
	delete(s.rules, id)
	return true
}

// Touch records the last firing time of a rule. No-op if the rule is gone.
func (s *Store) Touch(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rules[id]; ok {
		r.LastRunAt = at
	}
}

const idCharset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// newIDLocked generates a short chat-friendly id, unique among stored rules.
func (s *Store) newIDLocked() string {
	for {
		buf := make([]byte, 6)
		if _, err := io.ReadFull(s.rand, buf); err != nil {
			// crypto/rand is documented never to fail; fall back to the clock.
			for i := range buf {
				buf[i] = byte(s.now().UnixNano() >> (i * 8))
			}
		}
		for i := range buf {
			buf[i] = idCharset[int(buf[i])%len(idCharset)]
		}
		id := string(buf)
		if _, exists := s.rules[id]; !exists {
			return id
		}
	}
}
