// internal/store/store.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"property-tracker/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	ErrNotFound     = errors.New("RESOURCE_NOT_FOUND")
	ErrEmailInUse   = errors.New("EMAIL_IN_USE")
	ErrNoFields     = errors.New("VALIDATION_FAILED")
	ErrQueryFailed  = errors.New("QUERY_EXECUTION_FAILED")
	ErrInsertFailed = errors.New("DATABASE_INSERT_FAILED")
	ErrUpdateFailed = errors.New("DATABASE_UPDATE_FAILED")
	ErrDeleteFailed = errors.New("DATABASE_DELETE_FAILED")
)

const uniqueViolation = "23505"

// Listener is told about property changes after they are committed.
type Listener interface {
	PropertySaved(ctx context.Context, p models.Property)
	PropertyDeleted(ctx context.Context, id string)
	GroupDeleted(ctx context.Context, groupID string)
}

// Store groups the repositories sharing one connection pool.
type Store struct {
	Users      *Users
	Groups     *Groups
	Properties *Properties
}

type base struct {
	db       *sql.DB
	now      func() time.Time
	newID    func() string
	listener Listener
}

type Option func(*base)

// WithClock overrides the time source used for created_at values.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

// WithIDGenerator overrides uuid generation.
func WithIDGenerator(gen func() string) Option {
	return func(b *base) { b.newID = gen }
}

func WithListener(l Listener) Option {
	return func(b *base) { b.listener = l }
}

func New(db *sql.DB, opts ...Option) *Store {
	b := &base{
		db:    db,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(b)
	}
	return &Store{
		Users:      &Users{base: b},
		Groups:     &Groups{base: b},
		Properties: &Properties{base: b},
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// buildSet renders "col = $n" pairs for the whitelisted columns in fields,
// in sorted column order, starting at placeholder $start.
func buildSet(fields map[string]interface{}, allowed map[string]bool, start int) (string, []interface{}, error) {
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("%w: no fields to update", ErrNoFields)
	}

	cols := make([]string, 0, len(fields))
	for col := range fields {
		if !allowed[col] {
			return "", nil, fmt.Errorf("%w: %s", models.ErrUnknownField, col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	parts := make([]string, len(cols))
	args := make([]interface{}, len(cols))
	for i, col := range cols {
		parts[i] = fmt.Sprintf("%s = $%d", col, start+i)
		args[i] = fields[col]
	}
	return strings.Join(parts, ", "), args, nil
}

func columnSet(cols []string) map[string]bool {
	set := make(map[string]bool, len(cols))
	for _, c := range cols {
		set[c] = true
	}
	return set
}
