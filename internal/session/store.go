// Package session keeps per-user conversation history, bounded so the agent
// context never grows without limit.
package session

import (
	"sync"
	"time"
)

// DefaultMaxMessages caps the stored history per user.
const DefaultMaxMessages = 20

// Message is one conversation turn. The store never inspects content.
type Message struct {
	Role    string
	Content string
}

// Session is the stored history for one user, newest message last.
type Session struct {
	UserID    int64
	Messages  []Message
	UpdatedAt time.Time
}

// Store is an in-memory per-user history registry. Appends prune oldest-first
// so the history never exceeds the configured maximum.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	max      int
	now      func() time.Time
}

// Option configures the store.
type Option func(*Store)

// WithMaxMessages overrides the history cap.
func WithMaxMessages(max int) Option {
	return func(s *Store) {
		if max > 0 {
			s.max = max
		}
	}
}

// WithNow overrides the clock for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates an empty history store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[int64]*Session),
		max:      DefaultMaxMessages,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append merges msgs onto the user's history, truncates to the most recent
// max entries and stamps the update time. The session is created on first
// append. Returns a snapshot of the committed session.
func (s *Store) Append(userID int64, msgs ...Message) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		sess = &Session{UserID: userID}
		s.sessions[userID] = sess
	}

	sess.Messages = append(sess.Messages, msgs...)
	if over := len(sess.Messages) - s.max; over > 0 {
		sess.Messages = append([]Message(nil), sess.Messages[over:]...)
	}
	sess.UpdatedAt = s.now()

	return snapshot(sess)
}

// Get returns a snapshot of the user's session, or false if none exists.
func (s *Store) Get(userID int64) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return Session{}, false
	}
	return snapshot(sess), true
}

// Reset deletes the user's history entirely. Used by the explicit
// start-over command; no-op if no session exists.
func (s *Store) Reset(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

// Len returns the number of users with stored history.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func snapshot(sess *Session) Session {
	out := Session{
		UserID:    sess.UserID,
		Messages:  make([]Message, len(sess.Messages)),
		UpdatedAt: sess.UpdatedAt,
	}
	copy(out.Messages, sess.Messages)
	return out
}
