// Package approval coordinates human-gated yes/no decisions between the tool
// execution pipeline and the Telegram callback surface. A pending approval is
// resolved exactly once, by whichever of {explicit resolve, deadline timer}
// fires first.
package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Decision is the terminal outcome delivered to a waiter.
type Decision string

const (
	DecisionApproved Decision = "APPROVED"
	DecisionRejected Decision = "REJECTED"
	DecisionTimeout  Decision = "TIMEOUT"
)

// DefaultTimeout bounds how long an approval stays pending without a signal.
const DefaultTimeout = 30 * time.Second

var (
	// ErrNotFound means the id is not pending: never registered, already
	// resolved, or timed out. Callers treat it as "already decided".
	ErrNotFound = errors.New("approval not found")

	// ErrUnauthorized means the requester does not own the approval.
	ErrUnauthorized = errors.New("approval owned by another user")

	// ErrDuplicateID means an approval with the same id is still pending.
	ErrDuplicateID = errors.New("approval id already pending")
)

// Notifier dispatches approval prompts to an external UI surface. SendRequest
// returns a reference to the rendered artifact (a Telegram message id); the
// coordinator records it on the pending entry and deletes the artifact on
// timeout. Finalizing the artifact after an explicit decision is the
// resolver's responsibility, not the coordinator's.
type Notifier interface {
	SendRequest(ctx context.Context, userID int64, id string, payload Payload) (int, error)
	DeleteRequest(ctx context.Context, userID int64, messageID int) error
}

// Request registers one pending approval.
type Request struct {
	// ID must be unique among currently pending approvals. Generated when
	// empty.
	ID string

	// UserID is the identity allowed to resolve this approval and the
	// destination for the UI prompt. Zero means unowned: anyone may resolve
	// and no prompt is dispatched.
	UserID int64

	// Payload describes the gated action. Opaque to the coordinator; used
	// only for rendering.
	Payload Payload

	// Timeout overrides DefaultTimeout when positive.
	Timeout time.Duration

	// AutoApprove bypasses the wait and resolves APPROVED immediately. Used
	// only for contexts with no human in the loop.
	AutoApprove bool
}

// Pending is a read-only snapshot of a registered approval.
type Pending struct {
	ID        string
	UserID    int64
	Payload   Payload
	MessageID int
}

type pendingApproval struct {
	userID    int64
	payload   Payload
	messageID int
	decision  chan Decision
	timer     *time.Timer
}

// Manager is the in-memory pending-approval registry.
type Manager struct {
	mu       sync.Mutex
	pending  map[string]*pendingApproval
	notifier Notifier
	timeout  time.Duration
	logger   *slog.Logger

	// Statistics
	registered atomic.Uint64
	approved   atomic.Uint64
	rejected   atomic.Uint64
	timedOut   atomic.Uint64
}

// Option configures the manager.
type Option func(*Manager)

// WithNotifier configures the UI dispatcher for approval prompts.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) {
		m.notifier = n
	}
}

// WithTimeout overrides the default deadline for new approvals.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithLogger configures the manager logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates an empty approval registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		pending: make(map[string]*pendingApproval),
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "approval")
	return m
}

// NewID returns a fresh approval id: prefix plus a dashless UUID.
func NewID(prefix string) string {
	if prefix == "" {
		prefix = "approval"
	}
	return prefix + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Register creates a pending approval and returns a channel that delivers the
// single terminal decision. The deadline timer is armed before returning; if
// a notifier and owner are configured the prompt is dispatched asynchronously
// and a dispatch failure never fails registration — the approval still times
// out if no signal arrives.
func (m *Manager) Register(ctx context.Context, req Request) (<-chan Decision, error) {
	if req.ID == "" {
		req.ID = NewID("approval")
	}

	if req.AutoApprove {
		ch := make(chan Decision, 1)
		ch <- DecisionApproved
		m.registered.Add(1)
		m.approved.Add(1)
		return ch, nil
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = m.timeout
	}

	p := &pendingApproval{
		userID:   req.UserID,
		payload:  req.Payload,
		decision: make(chan Decision, 1),
	}

	m.mu.Lock()
	if _, exists := m.pending[req.ID]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, req.ID)
	}
	m.pending[req.ID] = p
	p.timer = time.AfterFunc(timeout, func() { m.expire(req.ID) })
	m.mu.Unlock()
	m.registered.Add(1)

	if m.notifier != nil && req.UserID != 0 {
		go m.dispatch(context.WithoutCancel(ctx), req)
	}

	return p.decision, nil
}

// Ask registers the request and blocks until the decision or ctx is done.
func (m *Manager) Ask(ctx context.Context, req Request) (Decision, error) {
	ch, err := m.Register(ctx, req)
	if err != nil {
		return "", err
	}
	select {
	case d := <-ch:
		return d, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Resolve delivers an explicit decision for a pending approval. The deadline
// timer is cancelled and the entry removed, so a second call for the same id
// reports ErrNotFound — callers must treat that as "already decided". The
// rendered prompt artifact is left in place for the resolver to finalize.
func (m *Manager) Resolve(id string, decision Decision, requesterID int64) error {
	m.mu.Lock()
	p, ok := m.pending[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if p.userID != 0 && p.userID != requesterID {
		m.mu.Unlock()
		return ErrUnauthorized
	}
	delete(m.pending, id)
	m.mu.Unlock()

	p.timer.Stop()
	p.decision <- decision

	switch decision {
	case DecisionRejected:
		m.rejected.Add(1)
	default:
		m.approved.Add(1)
	}
	m.logger.Info("approval resolved", "id", id, "decision", decision)
	return nil
}

// Lookup returns a snapshot of a pending approval, or false once it has been
// resolved or timed out. The UI uses it to render the decision confirmation
// without racing the removal in Resolve.
func (m *Manager) Lookup(id string) (Pending, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[id]
	if !ok {
		return Pending{}, false
	}
	return Pending{ID: id, UserID: p.userID, Payload: p.payload, MessageID: p.messageID}, true
}

// expire is the deadline path. Registry membership is the single-assignment
// guard: if Resolve already removed the entry this is a no-op.
func (m *Manager) expire(id string) {
	m.mu.Lock()
	p, ok := m.pending[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.pending, id)
	m.mu.Unlock()

	p.decision <- DecisionTimeout
	m.timedOut.Add(1)
	m.logger.Info("approval timed out", "id", id)

	if m.notifier != nil && p.userID != 0 && p.messageID != 0 {
		go func() {
			if err := m.notifier.DeleteRequest(context.Background(), p.userID, p.messageID); err != nil {
				m.logger.Warn("delete approval prompt", "id", id, "error", err)
			}
		}()
	}
}

func (m *Manager) dispatch(ctx context.Context, req Request) {
	messageID, err := m.notifier.SendRequest(ctx, req.UserID, req.ID, req.Payload)
	if err != nil {
		m.logger.Error("send approval prompt", "id", req.ID, "error", err)
		return
	}

	m.mu.Lock()
	if p, ok := m.pending[req.ID]; ok {
		p.messageID = messageID
	}
	m.mu.Unlock()
}

// PendingCount returns the number of approvals awaiting a decision.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Stats returns cumulative approval counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Registered: m.registered.Load(),
		Approved:   m.approved.Load(),
		Rejected:   m.rejected.Load(),
		TimedOut:   m.timedOut.Load(),
	}
}

// Stats counts approval outcomes.
type Stats struct {
	Registered uint64
	Approved   uint64
	Rejected   uint64
	TimedOut   uint64
}
