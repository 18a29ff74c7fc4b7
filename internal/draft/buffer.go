// internal/draft/buffer.go
package draft

import (
	"errors"
	"sync"

	"property-tracker/internal/models"
)

var ErrNotInitialized = errors.New("DRAFT_NOT_INITIALIZED")

// Observer is told about every draft change. initial is true only for the
// change caused by Initialize.
type Observer interface {
	OnDraftChange(snapshot models.Entity, initial bool)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(snapshot models.Entity, initial bool)

func (f ObserverFunc) OnDraftChange(snapshot models.Entity, initial bool) { f(snapshot, initial) }

// Buffer holds the in-memory working copy of one entity.
type Buffer struct {
	mu       sync.Mutex
	current  models.Entity
	observer Observer
}

func NewBuffer(observer Observer) *Buffer {
	return &Buffer{observer: observer}
}

// Initialize replaces the draft wholesale.
func (b *Buffer) Initialize(entity models.Entity) {
	b.mu.Lock()
	b.current = entity
	b.mu.Unlock()

	if b.observer != nil {
		b.observer.OnDraftChange(entity, true)
	}
}

// ApplyField replaces one field and returns the new draft. The previous
// snapshot is left untouched.
func (b *Buffer) ApplyField(name string, value interface{}) (models.Entity, error) {
	b.mu.Lock()
	if b.current == nil {
		b.mu.Unlock()
		return nil, ErrNotInitialized
	}
	next, err := b.current.WithField(name, value)
	if err != nil {
		b.mu.Unlock()
		return nil, err
	}
	b.current = next
	b.mu.Unlock()

	if b.observer != nil {
		b.observer.OnDraftChange(next, false)
	}
	return next, nil
}

// Snapshot returns the current draft, or nil before Initialize.
func (b *Buffer) Snapshot() models.Entity {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}
