package dca

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidSchedule is reported when a recurrence expression fails to parse.
// Nothing is installed in that case.
var ErrInvalidSchedule = errors.New("invalid cron expression")

// scheduleParser accepts standard five-field expressions, an optional seconds
// field and @-descriptors, matching what rule authors write in chat.
var scheduleParser = cron.NewParser(
	cron.SecondOptional |
		cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// Scheduler binds rules to a shared cron runner fixed to UTC. At most one
// live timer exists per rule id; rescheduling an id replaces its timer.
// Firings are fire-and-forget: a slow or overlapping tick is the callback's
// concern, and a panicking tick is recovered without stopping the runner.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// SchedulerOption configures the scheduler.
type SchedulerOption func(*schedulerConfig)

type schedulerConfig struct {
	logger *slog.Logger
}

// WithLogger configures the scheduler logger.
func WithLogger(logger *slog.Logger) SchedulerOption {
	return func(c *schedulerConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewScheduler creates and starts the cron runner.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	cfg := schedulerConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger.With("component", "dca-scheduler")

	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithParser(scheduleParser),
			cron.WithChain(cron.Recover(cronLogger{logger})),
		),
		logger:  logger,
		entries: make(map[string]cron.EntryID),
	}
	s.cron.Start()
	return s
}

// Schedule installs a recurring timer for the rule, replacing any live timer
// for the same rule id. A malformed expression fails here, before anything
// is installed.
func (s *Scheduler) Schedule(rule Rule, onTick func(Rule)) error {
	sched, err := scheduleParser.Parse(rule.Cron)
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidSchedule, rule.Cron, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[rule.ID]; ok {
		s.cron.Remove(old)
	}
	s.entries[rule.ID] = s.cron.Schedule(sched, cron.FuncJob(func() {
		onTick(rule)
	}))

	s.logger.Info("rule scheduled", "rule", rule.ID, "cron", rule.Cron)
	return nil
}

// Cancel stops future firings for the rule id. An in-progress tick is not
// interrupted. No-op if the id has no timer.
func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return
	}
	s.cron.Remove(entry)
	delete(s.entries, id)
	s.logger.Info("rule cancelled", "rule", id)
}

// Scheduled reports whether the rule id currently has a live timer.
func (s *Scheduler) Scheduled(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[id]
	return ok
}

// Stop halts the runner and returns a context that is done once in-flight
// ticks have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// cronLogger adapts slog to the cron logger interface; it only ever sees
// recovered panics and runner diagnostics.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
