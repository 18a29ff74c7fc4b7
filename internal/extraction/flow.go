// internal/extraction/flow.go
package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"property-tracker/internal/common/logger"
	"property-tracker/internal/common/metrics"
	"property-tracker/internal/common/validation"
	"property-tracker/internal/draft"
	"property-tracker/internal/models"
)

var (
	ErrExtractionInProgress = errors.New("EXTRACTION_IN_PROGRESS")
	ErrSlotNotFound         = errors.New("RESOURCE_NOT_FOUND")
)

// PlaceholderTitle is used when neither the model nor the page yields a title.
const PlaceholderTitle = "Untitled listing"

type Phase string

const (
	PhaseExtracting Phase = "extracting"
	PhaseVerifying  Phase = "verifying"
	PhaseConfirming Phase = "confirming"
)

// Source is anything that can guess listing fields from a URL.
type Source interface {
	Extract(ctx context.Context, rawURL string) (*Fields, error)
}

// Inserter persists a confirmed draft.
type Inserter interface {
	Insert(ctx context.Context, ownerID string, p models.Property) (models.Property, error)
}

// Slot is the caller-visible state of one input slot.
type Slot struct {
	Slot      string           `json:"slot"`
	Phase     Phase            `json:"phase"`
	URL       string           `json:"url"`
	Draft     *models.Property `json:"draft,omitempty"`
	Fallback  bool             `json:"fallback"`
	Error     string           `json:"error,omitempty"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

type slotKey struct {
	owner string
	slot  string
}

type slotState struct {
	token     uint64
	phase     Phase
	url       string
	buffer    *draft.Buffer
	fallback  bool
	err       string
	updatedAt time.Time
}

// Flow drives submit -> verify -> confirm for each (owner, slot) pair.
type Flow struct {
	mu       sync.Mutex
	slots    map[slotKey]*slotState
	nextTok  uint64
	source   Source
	inserter Inserter
	logger   logger.Logger
	now      func() time.Time
}

type FlowOption func(*Flow)

// WithNow replaces the wall clock used to stamp and expire slots.
func WithNow(now func() time.Time) FlowOption {
	return func(f *Flow) { f.now = now }
}

func NewFlow(source Source, inserter Inserter, log logger.Logger, opts ...FlowOption) *Flow {
	f := &Flow{
		slots:    make(map[slotKey]*slotState),
		source:   source,
		inserter: inserter,
		logger:   log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Submit runs an extraction for the slot and leaves it in the verify phase.
// Extraction failures are not returned: the slot gets a placeholder draft.
func (f *Flow) Submit(ctx context.Context, ownerID, slot, rawURL string) (Slot, error) {
	rawURL = strings.TrimSpace(rawURL)
	if !validation.ValidateURL(rawURL) {
		return Slot{}, fmt.Errorf("%w: not an http(s) url: %q", ErrInvalidURL, rawURL)
	}

	key := slotKey{owner: ownerID, slot: slot}

	f.mu.Lock()
	if st, ok := f.slots[key]; ok && st.phase != PhaseVerifying {
		f.mu.Unlock()
		return Slot{}, fmt.Errorf("%w: slot %s", ErrExtractionInProgress, slot)
	}
	f.nextTok++
	token := f.nextTok
	f.slots[key] = &slotState{token: token, phase: PhaseExtracting, url: rawURL, updatedAt: f.now()}
	f.mu.Unlock()

	log := f.logger.With(map[string]interface{}{"ownerId": ownerID, "slot": slot, "url": rawURL})

	fields, err := f.source.Extract(ctx, rawURL)
	metrics.Extractions.WithLabelValues(resultLabel(err)).Inc()

	var p models.Property
	fallback := err != nil
	if fallback {
		log.Warn("extraction failed, using placeholder draft", map[string]interface{}{"error": err.Error()})
		p = PlaceholderDraft(rawURL)
	} else {
		p = DraftFromFields(rawURL, fields)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	st, ok := f.slots[key]
	if !ok || st.token != token {
		// Cancelled while the extraction was running.
		log.Info("discarding extraction for cancelled slot", nil)
		return Slot{}, fmt.Errorf("%w: slot %s was cancelled", ErrSlotNotFound, slot)
	}

	st.buffer = draft.NewBuffer(nil)
	st.buffer.Initialize(p)
	st.phase = PhaseVerifying
	st.fallback = fallback
	st.err = ""
	if err != nil {
		st.err = err.Error()
	}
	st.updatedAt = f.now()
	return st.view(slot), nil
}

func (f *Flow) Get(ownerID, slot string) (Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	st, ok := f.slots[slotKey{owner: ownerID, slot: slot}]
	if !ok {
		return Slot{}, fmt.Errorf("%w: slot %s", ErrSlotNotFound, slot)
	}
	return st.view(slot), nil
}

// Edit changes one field of the verify draft.
func (f *Flow) Edit(ownerID, slot, field string, value interface{}) (Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	st, ok := f.slots[slotKey{owner: ownerID, slot: slot}]
	if !ok {
		return Slot{}, fmt.Errorf("%w: slot %s", ErrSlotNotFound, slot)
	}
	if st.phase != PhaseVerifying {
		return Slot{}, fmt.Errorf("%w: slot %s is %s", ErrExtractionInProgress, slot, st.phase)
	}

	if _, err := st.buffer.ApplyField(field, value); err != nil {
		return Slot{}, err
	}
	st.updatedAt = f.now()
	return st.view(slot), nil
}

// Confirm inserts the draft into groupID and closes the slot.
func (f *Flow) Confirm(ctx context.Context, ownerID, slot, groupID string) (models.Property, error) {
	key := slotKey{owner: ownerID, slot: slot}

	f.mu.Lock()
	st, ok := f.slots[key]
	if !ok {
		f.mu.Unlock()
		return models.Property{}, fmt.Errorf("%w: slot %s", ErrSlotNotFound, slot)
	}
	if st.phase != PhaseVerifying {
		f.mu.Unlock()
		return models.Property{}, fmt.Errorf("%w: slot %s is %s", ErrExtractionInProgress, slot, st.phase)
	}
	st.phase = PhaseConfirming
	p := st.buffer.Snapshot().(models.Property)
	f.mu.Unlock()

	p.SearchGroupID = groupID
	p.Normalize()

	saved, err := f.inserter.Insert(ctx, ownerID, p)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		st.phase = PhaseVerifying
		st.updatedAt = f.now()
		return models.Property{}, err
	}
	delete(f.slots, key)

	f.logger.Info("extraction confirmed", map[string]interface{}{
		"ownerId":    ownerID,
		"slot":       slot,
		"propertyId": saved.ID,
		"groupId":    groupID,
	})
	return saved, nil
}

// Cancel discards the slot. An extraction still running for it is ignored
// when it returns.
func (f *Flow) Cancel(ownerID, slot string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := slotKey{owner: ownerID, slot: slot}
	st, ok := f.slots[key]
	if !ok {
		return fmt.Errorf("%w: slot %s", ErrSlotNotFound, slot)
	}
	if st.phase == PhaseConfirming {
		return fmt.Errorf("%w: slot %s is %s", ErrExtractionInProgress, slot, st.phase)
	}
	delete(f.slots, key)
	return nil
}

// ReapIdle drops verify drafts not touched within maxIdle. Slots that are
// extracting or confirming are left to finish.
func (f *Flow) ReapIdle(maxIdle time.Duration) int {
	if maxIdle <= 0 {
		return 0
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	cutoff := f.now().Add(-maxIdle)
	dropped := 0
	for key, st := range f.slots {
		if st.phase == PhaseVerifying && !st.updatedAt.After(cutoff) {
			delete(f.slots, key)
			dropped++
		}
	}
	if dropped > 0 {
		f.logger.Info("dropped idle extraction slots", map[string]interface{}{"count": dropped})
	}
	return dropped
}

func (st *slotState) view(slot string) Slot {
	v := Slot{
		Slot:      slot,
		Phase:     st.phase,
		URL:       st.url,
		Fallback:  st.fallback,
		Error:     st.err,
		UpdatedAt: st.updatedAt,
	}
	if st.buffer != nil {
		if p, ok := st.buffer.Snapshot().(models.Property); ok {
			v.Draft = &p
		}
	}
	return v
}

// PlaceholderDraft is the editable draft used when extraction fails.
func PlaceholderDraft(rawURL string) models.Property {
	return models.Property{
		URL:        rawURL,
		Title:      PlaceholderTitle,
		SourceName: hostOf(rawURL),
		Status:     models.StatusInterested,
		Rating:     0,
	}
}

// DraftFromFields builds the verify draft from an extraction result, filling
// required fields the model left blank.
func DraftFromFields(rawURL string, f *Fields) models.Property {
	p := PlaceholderDraft(rawURL)
	if f == nil {
		return p
	}
	if f.Title != "" {
		p.Title = f.Title
	}
	if f.SourceName != "" {
		p.SourceName = f.SourceName
	}
	p.Price = f.Price
	p.Address = f.Address
	p.Lat = f.Lat
	p.Lng = f.Lng
	p.Thumbnail = f.Thumbnail
	if f.CoveredArea != nil {
		p.CoveredArea = *f.CoveredArea
	}
	if f.UncoveredArea != nil {
		p.UncoveredArea = *f.UncoveredArea
	}
	p.OperationType = f.OperationType
	p.PropertyType = f.PropertyType
	p.FloorLabel = f.FloorLabel
	p.Expenses = f.Expenses
	return p
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrExtractionTimeout):
		return "timeout"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	default:
		return "failed"
	}
}
