// internal/autosync/scheduler.go
package autosync

import (
	"context"
	"errors"
	"sync"
	"time"

	"property-tracker/internal/common/logger"
	"property-tracker/internal/common/metrics"
	"property-tracker/internal/models"

	"github.com/cenkalti/backoff/v4"
)

// Status is what the edit view shows next to the draft.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusSaving   Status = "saving"
	StatusUnsynced Status = "unsynced"
)

// Writer pushes a draft snapshot to the entity store. Wrap errors with
// backoff.Permanent to stop retries for a draft that can never be written.
type Writer func(ctx context.Context, snapshot models.Entity) error

// State is a point-in-time view of a scheduler.
type State struct {
	Status      Status     `json:"status"`
	Attempts    int        `json:"attempts,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
	LastSavedAt *time.Time `json:"lastSavedAt,omitempty"`
}

// Scheduler coalesces draft changes into one delayed write per debounce
// window and retries failed writes with exponential backoff.
//
// Every change and every entity switch bumps the generation. A write only
// runs, and only reports back, while its generation is still current, so a
// superseded draft never reaches the store after a newer one.
type Scheduler struct {
	cfg    Config
	write  Writer
	clock  Clock
	locks  *EntityLocks
	logger logger.Logger

	mu          sync.Mutex
	latest      models.Entity
	key         string
	generation  uint64
	suppress    bool
	dirty       bool
	unsynced    bool
	closed      bool
	attempts    int
	lastErr     error
	lastSavedAt *time.Time
	timer       Timer
	retry       backoff.BackOff
}

type Option func(*Scheduler)

func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithLocks shares per-entity write serialization with other schedulers.
func WithLocks(l *EntityLocks) Option {
	return func(s *Scheduler) { s.locks = l }
}

func NewScheduler(cfg Config, write Writer, log logger.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:    cfg,
		write:  write,
		clock:  RealClock(),
		logger: log,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.locks == nil {
		s.locks = NewEntityLocks()
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = cfg.RetryInitial
	exp.MaxInterval = cfg.RetryMax
	exp.MaxElapsedTime = 0
	if cfg.MaxAttempts > 0 {
		s.retry = backoff.WithMaxRetries(exp, uint64(cfg.MaxAttempts))
	} else {
		s.retry = exp
	}
	s.retry.Reset()
	return s
}

func keyOf(e models.Entity) string {
	return string(e.EntityKind()) + ":" + e.EntityID()
}

// OnDraftChange lets the scheduler observe a draft.Buffer. The load caused
// by Initialize is delivered as the first change and swallowed by the
// suppression flag.
func (s *Scheduler) OnDraftChange(snapshot models.Entity, initial bool) {
	if initial {
		s.Initialize(snapshot)
	}
	s.OnChange(snapshot)
}

// Initialize switches to a new entity: the outstanding timer is cancelled
// without flushing and the next change is ignored.
func (s *Scheduler) Initialize(entity models.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dirty && s.latest != nil {
		s.logger.Warn("discarding unsaved draft on entity switch", map[string]interface{}{
			"entity":   s.key,
			"unsynced": s.unsynced,
		})
	}

	s.stopTimerLocked()
	s.generation++
	s.latest = entity
	s.key = keyOf(entity)
	s.setDirtyLocked(false)
	s.unsynced = false
	s.attempts = 0
	s.lastErr = nil
	s.lastSavedAt = nil
	s.suppress = true
	s.retry.Reset()
}

// OnChange records a new draft snapshot and (re)arms the debounce timer.
func (s *Scheduler) OnChange(snapshot models.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if s.suppress {
		s.suppress = false
		return
	}

	s.latest = snapshot
	s.key = keyOf(snapshot)
	s.generation++
	s.stopTimerLocked()
	s.retry.Reset()
	s.attempts = 0
	s.setDirtyLocked(true)

	gen := s.generation
	s.timer = s.clock.AfterFunc(s.cfg.Debounce, func() { s.fire(gen) })
}

// OnTick writes the latest draft now if it has unsaved changes. The debounce
// timer calls it on expiry; Flush uses it on session close and shutdown.
func (s *Scheduler) OnTick(ctx context.Context) error {
	s.mu.Lock()
	s.stopTimerLocked()
	gen := s.generation
	s.mu.Unlock()

	return s.tick(ctx, gen)
}

// Flush writes any pending draft immediately.
func (s *Scheduler) Flush(ctx context.Context) error {
	return s.OnTick(ctx)
}

// Close stops the scheduler. Writes already running finish but no longer
// report back.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTimerLocked()
	s.generation++
	s.closed = true
	s.setDirtyLocked(false)
}

func (s *Scheduler) Status() Status {
	return s.State().Status
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{Status: StatusIdle, Attempts: s.attempts, LastSavedAt: s.lastSavedAt}
	switch {
	case s.unsynced:
		st.Status = StatusUnsynced
	case s.dirty:
		st.Status = StatusSaving
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

func (s *Scheduler) fire(gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
	defer cancel()
	_ = s.tick(ctx, gen)
}

func (s *Scheduler) tick(ctx context.Context, gen uint64) error {
	s.mu.Lock()
	if gen != s.generation || !s.dirty || s.latest == nil {
		s.mu.Unlock()
		return nil
	}
	snapshot, key := s.latest, s.key
	s.mu.Unlock()

	unlock := s.locks.Lock(key)
	defer unlock()

	kind := string(snapshot.EntityKind())

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		metrics.SyncWrites.WithLabelValues(kind, "stale").Inc()
		return nil
	}
	s.mu.Unlock()

	start := time.Now()
	err := s.write(ctx, snapshot)
	metrics.SyncWriteDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		// Superseded while writing: the newer generation owns the status.
		metrics.SyncWrites.WithLabelValues(kind, "superseded").Inc()
		return err
	}

	if err == nil {
		metrics.SyncWrites.WithLabelValues(kind, "success").Inc()
		now := s.clock.Now()
		s.lastSavedAt = &now
		s.setDirtyLocked(false)
		s.unsynced = false
		s.attempts = 0
		s.lastErr = nil
		return nil
	}

	metrics.SyncWrites.WithLabelValues(kind, "failure").Inc()
	s.unsynced = true
	s.attempts++
	s.lastErr = err

	fields := map[string]interface{}{
		"entity":  key,
		"attempt": s.attempts,
		"error":   err.Error(),
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		s.logger.Warn("draft write rejected, waiting for next edit", fields)
		return err
	}

	delay := s.retry.NextBackOff()
	if delay == backoff.Stop {
		s.logger.Error("draft write failed, retries exhausted", fields)
		return err
	}

	fields["retryIn"] = delay.String()
	s.logger.Warn("draft write failed, retry scheduled", fields)
	s.timer = s.clock.AfterFunc(delay, func() { s.fire(gen) })
	return err
}

func (s *Scheduler) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) setDirtyLocked(dirty bool) {
	if dirty == s.dirty {
		return
	}
	s.dirty = dirty
	if dirty {
		metrics.SyncPendingDrafts.Inc()
	} else {
		metrics.SyncPendingDrafts.Dec()
	}
}
