// internal/models/property.go
package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	MinRating = 0
	MaxRating = 5
)

// PropertyStatus is where a listing stands in the user's search.
type PropertyStatus string

const (
	StatusInterested PropertyStatus = "interested"
	StatusContacted  PropertyStatus = "contacted"
	StatusVisited    PropertyStatus = "visited"
	StatusDiscarded  PropertyStatus = "discarded"
)

// ValidStatuses is the set of allowed property statuses.
var ValidStatuses = []PropertyStatus{StatusInterested, StatusContacted, StatusVisited, StatusDiscarded}

func (s PropertyStatus) IsValid() bool {
	for _, v := range ValidStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Label returns a human-readable label for the status.
func (s PropertyStatus) Label() string {
	switch s {
	case StatusInterested:
		return "Interested"
	case StatusContacted:
		return "Contacted"
	case StatusVisited:
		return "Visited"
	case StatusDiscarded:
		return "Discarded"
	default:
		return string(s)
	}
}

// ParseStatus accepts either the stored value or the label, in any case.
func ParseStatus(s string) (PropertyStatus, error) {
	status := PropertyStatus(strings.ToLower(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidValue, s)
	}
	return status, nil
}

// Property is a listing tracked inside a search group.
type Property struct {
	ID              string         `json:"id"`
	SearchGroupID   string         `json:"searchGroupId"`
	URL             string         `json:"url"`
	Title           string         `json:"title"`
	Price           string         `json:"price"`
	Address         string         `json:"address"`
	Lat             *float64       `json:"lat,omitempty"`
	Lng             *float64       `json:"lng,omitempty"`
	Thumbnail       string         `json:"thumbnail"`
	SourceName      string         `json:"sourceName"`
	Rating          int            `json:"rating"`
	Status          PropertyStatus `json:"status"`
	Comments        string         `json:"comments"`
	ContactName     string         `json:"contactName"`
	ContactPhone    string         `json:"contactPhone"`
	NextVisitAt     *time.Time     `json:"nextVisitAt,omitempty"`
	Favorite        bool           `json:"favorite"`
	CoveredArea     float64        `json:"coveredArea"`
	UncoveredArea   float64        `json:"uncoveredArea"`
	OperationType   string         `json:"operationType"`
	PropertyType    string         `json:"propertyType"`
	FloorLabel      string         `json:"floorLabel"`
	Expenses        string         `json:"expenses"`
	VisitRemindedAt *time.Time     `json:"visitRemindedAt,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
}

type propertyField struct {
	column string
	set    func(p *Property, v interface{}) error
	get    func(p Property) interface{}
}

func stringField(column, name string, ptr func(*Property) *string) propertyField {
	return propertyField{
		column: column,
		set: func(p *Property, v interface{}) error {
			s, err := toString(name, v)
			if err != nil {
				return err
			}
			*ptr(p) = s
			return nil
		},
		get: func(p Property) interface{} { return *ptr(&p) },
	}
}

func floatField(column, name string, ptr func(*Property) *float64) propertyField {
	return propertyField{
		column: column,
		set: func(p *Property, v interface{}) error {
			f, err := toFloat(name, v)
			if err != nil {
				return err
			}
			*ptr(p) = f
			return nil
		},
		get: func(p Property) interface{} { return *ptr(&p) },
	}
}

func coordinateField(column, name string, ptr func(*Property) **float64) propertyField {
	return propertyField{
		column: column,
		set: func(p *Property, v interface{}) error {
			f, err := toOptionalFloat(name, v)
			if err != nil {
				return err
			}
			*ptr(p) = f
			return nil
		},
		get: func(p Property) interface{} { return *ptr(&p) },
	}
}

// propertyFields maps JSON field names to their column and accessors.
var propertyFields = map[string]propertyField{
	"url":           stringField("url", "url", func(p *Property) *string { return &p.URL }),
	"title":         stringField("title", "title", func(p *Property) *string { return &p.Title }),
	"price":         stringField("price", "price", func(p *Property) *string { return &p.Price }),
	"address":       stringField("address", "address", func(p *Property) *string { return &p.Address }),
	"thumbnail":     stringField("thumbnail", "thumbnail", func(p *Property) *string { return &p.Thumbnail }),
	"sourceName":    stringField("source_name", "sourceName", func(p *Property) *string { return &p.SourceName }),
	"comments":      stringField("comments", "comments", func(p *Property) *string { return &p.Comments }),
	"contactName":   stringField("contact_name", "contactName", func(p *Property) *string { return &p.ContactName }),
	"contactPhone":  stringField("contact_phone", "contactPhone", func(p *Property) *string { return &p.ContactPhone }),
	"operationType": stringField("operation_type", "operationType", func(p *Property) *string { return &p.OperationType }),
	"propertyType":  stringField("property_type", "propertyType", func(p *Property) *string { return &p.PropertyType }),
	"floorLabel":    stringField("floor_label", "floorLabel", func(p *Property) *string { return &p.FloorLabel }),
	"expenses":      stringField("expenses", "expenses", func(p *Property) *string { return &p.Expenses }),
	"coveredArea":   floatField("covered_area", "coveredArea", func(p *Property) *float64 { return &p.CoveredArea }),
	"uncoveredArea": floatField("uncovered_area", "uncoveredArea", func(p *Property) *float64 { return &p.UncoveredArea }),
	"lat":           coordinateField("lat", "lat", func(p *Property) **float64 { return &p.Lat }),
	"lng":           coordinateField("lng", "lng", func(p *Property) **float64 { return &p.Lng }),
	"rating": {
		column: "rating",
		set: func(p *Property, v interface{}) error {
			f, err := toFloat("rating", v)
			if err != nil {
				return err
			}
			p.Rating = ClampRating(f)
			return nil
		},
		get: func(p Property) interface{} { return p.Rating },
	},
	"status": {
		column: "status",
		set: func(p *Property, v interface{}) error {
			s, err := toString("status", v)
			if err != nil {
				return err
			}
			status, err := ParseStatus(s)
			if err != nil {
				return err
			}
			p.Status = status
			return nil
		},
		get: func(p Property) interface{} { return string(p.Status) },
	},
	"favorite": {
		column: "favorite",
		set: func(p *Property, v interface{}) error {
			b, err := toBool("favorite", v)
			if err != nil {
				return err
			}
			p.Favorite = b
			return nil
		},
		get: func(p Property) interface{} { return p.Favorite },
	},
	"nextVisitAt": {
		column: "next_visit_at",
		set: func(p *Property, v interface{}) error {
			t, err := toOptionalTime("nextVisitAt", v)
			if err != nil {
				return err
			}
			p.NextVisitAt = t
			return nil
		},
		get: func(p Property) interface{} { return p.NextVisitAt },
	},
}

// PropertyColumn returns the column backing an editable JSON field name.
func PropertyColumn(field string) (string, bool) {
	f, ok := propertyFields[field]
	return f.column, ok
}

// PropertyColumns lists every editable property column.
func PropertyColumns() []string {
	cols := make([]string, 0, len(propertyFields))
	for _, f := range propertyFields {
		cols = append(cols, f.column)
	}
	return cols
}

func (p Property) EntityKind() Kind { return KindProperty }
func (p Property) EntityID() string { return p.ID }

// WithField returns a copy of p with one field replaced.
func (p Property) WithField(name string, value interface{}) (Entity, error) {
	f, ok := propertyFields[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	next := p
	if err := f.set(&next, value); err != nil {
		return nil, err
	}
	return next, nil
}

func (p Property) Columns() map[string]interface{} {
	cols := make(map[string]interface{}, len(propertyFields))
	for _, f := range propertyFields {
		cols[f.column] = f.get(p)
	}
	return cols
}

// Normalize fills defaults and clamps values before an insert.
func (p *Property) Normalize() {
	if !p.Status.IsValid() {
		p.Status = StatusInterested
	}
	p.Rating = ClampRating(float64(p.Rating))
	p.URL = strings.TrimSpace(p.URL)
}

// HasCoordinates reports whether the property can be placed on a map.
func (p Property) HasCoordinates() bool {
	return p.Lat != nil && p.Lng != nil
}
