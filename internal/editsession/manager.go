// internal/editsession/manager.go
package editsession

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"property-tracker/internal/autosync"
	"property-tracker/internal/common/logger"
	"property-tracker/internal/draft"
	"property-tracker/internal/models"
	"property-tracker/internal/store"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("RESOURCE_NOT_FOUND")
	ErrSessionClosing  = errors.New("EDIT_SESSION_CLOSING")
	ErrUnsupportedKind = errors.New("VALIDATION_FAILED")
)

type GroupStore interface {
	Get(ctx context.Context, ownerID, id string) (models.SearchGroup, error)
	Update(ctx context.Context, ownerID, id string, fields map[string]interface{}) error
}

type PropertyStore interface {
	Get(ctx context.Context, ownerID, id string) (models.Property, error)
	Update(ctx context.Context, ownerID, id string, fields map[string]interface{}) error
}

// View is what callers see of an edit session.
type View struct {
	ID     string         `json:"id"`
	Kind   models.Kind    `json:"kind"`
	Entity models.Entity  `json:"entity"`
	Sync   autosync.State `json:"sync"`
}

type session struct {
	id        string
	ownerID   string
	buffer    *draft.Buffer
	scheduler *autosync.Scheduler

	// mu orders edits against close: once closing is set no edit reaches
	// the buffer, so the closing flush sees the last accepted change.
	mu         sync.Mutex
	closing    bool
	lastActive time.Time
}

func (s *session) view() View {
	entity := s.buffer.Snapshot()
	v := View{ID: s.id, Entity: entity, Sync: s.scheduler.State()}
	if entity != nil {
		v.Kind = entity.EntityKind()
	}
	return v
}

// Manager owns the open edit sessions. Each session pairs a draft buffer
// with its own sync scheduler; all schedulers share one set of entity locks
// so two sessions on the same entity never write concurrently.
type Manager struct {
	cfg        autosync.Config
	groups     GroupStore
	properties PropertyStore
	locks      *autosync.EntityLocks
	clock      autosync.Clock
	idle       time.Duration
	logger     logger.Logger
	newID      func() string

	mu       sync.Mutex
	sessions map[string]*session
}

type Option func(*Manager)

func WithClock(c autosync.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithIdleTimeout makes ReapIdle close sessions untouched for d. Zero
// disables reaping.
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Manager) { m.idle = d }
}

func NewManager(cfg autosync.Config, groups GroupStore, properties PropertyStore, log logger.Logger, opts ...Option) *Manager {
	m := &Manager{
		cfg:        cfg,
		groups:     groups,
		properties: properties,
		locks:      autosync.NewEntityLocks(),
		clock:      autosync.RealClock(),
		logger:     log,
		newID:      uuid.NewString,
		sessions:   make(map[string]*session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open loads an owned entity into a new session.
func (m *Manager) Open(ctx context.Context, ownerID string, kind models.Kind, id string) (View, error) {
	entity, err := m.load(ctx, ownerID, kind, id)
	if err != nil {
		return View{}, err
	}

	s := &session{id: m.newID(), ownerID: ownerID, lastActive: m.clock.Now()}
	s.scheduler = autosync.NewScheduler(m.cfg, m.writer(ownerID),
		m.logger.With(map[string]interface{}{"editSession": s.id}),
		autosync.WithClock(m.clock), autosync.WithLocks(m.locks))
	s.buffer = draft.NewBuffer(s.scheduler)
	s.buffer.Initialize(entity)

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	m.logger.Info("edit session opened", map[string]interface{}{
		"editSession": s.id,
		"ownerId":     ownerID,
		"entity":      string(kind) + ":" + id,
	})
	return s.view(), nil
}

func (m *Manager) Get(ownerID, sessionID string) (View, error) {
	s, release, err := m.acquire(ownerID, sessionID)
	if err != nil {
		return View{}, err
	}
	defer release()
	return s.view(), nil
}

// Apply edits one field of the draft; the write happens after the debounce
// window.
func (m *Manager) Apply(ownerID, sessionID, field string, value interface{}) (View, error) {
	s, release, err := m.acquire(ownerID, sessionID)
	if err != nil {
		return View{}, err
	}
	defer release()

	if _, err := s.buffer.ApplyField(field, value); err != nil {
		return View{}, err
	}
	return s.view(), nil
}

// Switch points the session at another entity. A pending write for the
// previous entity is dropped.
func (m *Manager) Switch(ctx context.Context, ownerID, sessionID string, kind models.Kind, id string) (View, error) {
	s, release, err := m.acquire(ownerID, sessionID)
	if err != nil {
		return View{}, err
	}
	defer release()

	entity, err := m.load(ctx, ownerID, kind, id)
	if err != nil {
		return View{}, err
	}
	s.buffer.Initialize(entity)
	return s.view(), nil
}

// Close flushes the pending draft and discards the session. Edits arriving
// while the flush runs are refused with ErrSessionClosing. When the flush
// fails the session is reopened so the draft is not lost.
func (m *Manager) Close(ctx context.Context, ownerID, sessionID string) error {
	s, err := m.lookup(ownerID, sessionID)
	if err != nil {
		return err
	}
	return m.close(ctx, s)
}

func (m *Manager) close(ctx context.Context, s *session) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return fmt.Errorf("%w: edit session %s", ErrSessionClosing, s.id)
	}
	s.closing = true
	s.mu.Unlock()

	if err := s.scheduler.Flush(ctx); err != nil {
		s.mu.Lock()
		s.closing = false
		s.mu.Unlock()
		return err
	}

	s.scheduler.Close()
	m.mu.Lock()
	if m.sessions[s.id] == s {
		delete(m.sessions, s.id)
	}
	m.mu.Unlock()
	return nil
}

// ReapIdle closes sessions nobody touched within the idle timeout. A session
// whose flush fails stays open and is tried again on the next pass.
func (m *Manager) ReapIdle(ctx context.Context) int {
	if m.idle <= 0 {
		return 0
	}
	cutoff := m.clock.Now().Add(-m.idle)

	m.mu.Lock()
	var idle []*session
	for _, s := range m.sessions {
		s.mu.Lock()
		if !s.closing && !s.lastActive.After(cutoff) {
			idle = append(idle, s)
		}
		s.mu.Unlock()
	}
	m.mu.Unlock()

	closed := 0
	for _, s := range idle {
		if err := m.close(ctx, s); err != nil {
			m.logger.Warn("idle edit session kept, flush failed", map[string]interface{}{
				"editSession": s.id,
				"error":       err.Error(),
			})
			continue
		}
		closed++
	}
	if closed > 0 {
		m.logger.Info("reaped idle edit sessions", map[string]interface{}{"count": closed})
	}
	return closed
}

// StartReaper runs ReapIdle every interval on the manager's clock.
func (m *Manager) StartReaper(interval time.Duration) (stop func()) {
	return autosync.Every(m.clock, interval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.WriteTimeout)
		defer cancel()
		m.ReapIdle(ctx)
	})
}

// FlushAll writes every pending draft and closes all sessions. Used on
// shutdown.
func (m *Manager) FlushAll(ctx context.Context) error {
	m.mu.Lock()
	sessions := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.mu.Lock()
		s.closing = true
		s.mu.Unlock()
	}

	var errs []error
	for _, s := range sessions {
		if err := s.scheduler.Flush(ctx); err != nil {
			m.logger.Error("failed to flush draft on shutdown", map[string]interface{}{
				"editSession": s.id,
				"error":       err.Error(),
			})
			errs = append(errs, err)
		}
		s.scheduler.Close()
	}
	return errors.Join(errs...)
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) lookup(ownerID, sessionID string) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok || s.ownerID != ownerID {
		return nil, fmt.Errorf("%w: edit session %s", ErrSessionNotFound, sessionID)
	}
	return s, nil
}

// acquire returns a live session locked against Close and marks it active.
func (m *Manager) acquire(ownerID, sessionID string) (*session, func(), error) {
	s, err := m.lookup(ownerID, sessionID)
	if err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return nil, nil, fmt.Errorf("%w: edit session %s", ErrSessionClosing, sessionID)
	}
	s.lastActive = m.clock.Now()
	return s, s.mu.Unlock, nil
}

func (m *Manager) load(ctx context.Context, ownerID string, kind models.Kind, id string) (models.Entity, error) {
	switch kind {
	case models.KindProperty:
		return m.properties.Get(ctx, ownerID, id)
	case models.KindGroup:
		return m.groups.Get(ctx, ownerID, id)
	default:
		return nil, fmt.Errorf("%w: unknown entity kind %q", ErrUnsupportedKind, kind)
	}
}

// writer sends a whole draft snapshot to the store. Rejections that a retry
// cannot fix are marked permanent so the scheduler waits for the next edit.
func (m *Manager) writer(ownerID string) autosync.Writer {
	return func(ctx context.Context, snapshot models.Entity) error {
		var err error
		switch e := snapshot.(type) {
		case models.Property:
			err = m.properties.Update(ctx, ownerID, e.ID, e.Columns())
		case models.SearchGroup:
			err = m.groups.Update(ctx, ownerID, e.ID, e.Columns())
		default:
			err = fmt.Errorf("%w: %T", ErrUnsupportedKind, snapshot)
		}
		if err != nil && isPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}
}

func isPermanent(err error) bool {
	return errors.Is(err, models.ErrInvalidValue) ||
		errors.Is(err, models.ErrUnknownField) ||
		errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, store.ErrNoFields) ||
		errors.Is(err, ErrUnsupportedKind)
}
