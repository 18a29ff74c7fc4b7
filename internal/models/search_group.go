// internal/models/search_group.go
package models

import (
	"fmt"
	"strings"
	"time"
)

// SearchGroup is a named collection of tracked properties owned by one user.
type SearchGroup struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

var groupColumns = map[string]string{
	"name":        "name",
	"description": "description",
}

// GroupColumn returns the column backing an editable JSON field name.
func GroupColumn(field string) (string, bool) {
	c, ok := groupColumns[field]
	return c, ok
}

func (g SearchGroup) EntityKind() Kind { return KindGroup }
func (g SearchGroup) EntityID() string { return g.ID }

func (g SearchGroup) WithField(name string, value interface{}) (Entity, error) {
	s, err := toString(name, value)
	if err != nil {
		return nil, err
	}
	next := g
	switch name {
	case "name":
		next.Name = s
	case "description":
		next.Description = s
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	return next, nil
}

func (g SearchGroup) Columns() map[string]interface{} {
	return map[string]interface{}{
		"name":        g.Name,
		"description": g.Description,
	}
}

// ValidateName checks the group name rule: required and non-blank.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidValue)
	}
	return nil
}
