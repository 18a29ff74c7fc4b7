// internal/models/entity.go
package models

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	ErrUnknownField = errors.New("UNKNOWN_FIELD")
	ErrInvalidValue = errors.New("VALIDATION_FAILED")
)

// Kind names an editable entity type.
type Kind string

const (
	KindProperty Kind = "property"
	KindGroup    Kind = "group"
)

func (k Kind) IsValid() bool {
	return k == KindProperty || k == KindGroup
}

// Entity is a persisted record that can be edited one field at a time.
// Implementations are values: WithField never mutates the receiver.
type Entity interface {
	EntityKind() Kind
	EntityID() string
	WithField(name string, value interface{}) (Entity, error)
	// Columns returns the editable columns and their current values.
	Columns() map[string]interface{}
}

func invalid(field string, value interface{}) error {
	return fmt.Errorf("%w: field %s cannot hold %v (%T)", ErrInvalidValue, field, value, value)
}

func toString(field string, v interface{}) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(x), nil
	case bool:
		return strconv.FormatBool(x), nil
	}
	return "", invalid(field, v)
}

func toFloat(field string, v interface{}) (float64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, invalid(field, v)
		}
		return f, nil
	}
	return 0, invalid(field, v)
}

func toOptionalFloat(field string, v interface{}) (*float64, error) {
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return nil, nil
	}
	if p, ok := v.(*float64); ok {
		return p, nil
	}
	f, err := toFloat(field, v)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func toBool(field string, v interface{}) (bool, error) {
	switch x := v.(type) {
	case nil:
		return false, nil
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return false, invalid(field, v)
		}
		return b, nil
	}
	return false, invalid(field, v)
}

func toOptionalTime(field string, v interface{}) (*time.Time, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return &x, nil
	case *time.Time:
		return x, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil, nil
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				return &t, nil
			}
		}
	}
	return nil, invalid(field, v)
}

// ClampRating rounds r and bounds it to [MinRating, MaxRating].
// Bounds are applied before the int conversion, which is undefined for
// values outside the int range.
func ClampRating(r float64) int {
	switch {
	case math.IsNaN(r), r <= MinRating:
		return MinRating
	case r >= MaxRating:
		return MaxRating
	}
	return int(math.Round(r))
}
