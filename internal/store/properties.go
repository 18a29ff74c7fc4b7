// internal/store/properties.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"property-tracker/internal/common/database"
	"property-tracker/internal/models"
)

const propertySelect = `SELECT p.id, p.search_group_id, p.url, p.title, p.price, p.address, p.lat, p.lng,
	p.thumbnail, p.source_name, p.rating, p.status, p.comments, p.contact_name, p.contact_phone,
	p.next_visit_at, p.favorite, p.covered_area, p.uncovered_area, p.operation_type, p.property_type,
	p.floor_label, p.expenses, p.visit_reminded_at, p.created_at
	FROM properties p JOIN search_groups g ON g.id = p.search_group_id`

var propertyColumns = columnSet(models.PropertyColumns())

type Properties struct {
	*base
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProperty(row rowScanner) (models.Property, error) {
	var (
		p                 models.Property
		status            string
		lat, lng          sql.NullFloat64
		nextVisit, remind sql.NullTime
	)
	err := row.Scan(
		&p.ID, &p.SearchGroupID, &p.URL, &p.Title, &p.Price, &p.Address, &lat, &lng,
		&p.Thumbnail, &p.SourceName, &p.Rating, &status, &p.Comments, &p.ContactName, &p.ContactPhone,
		&nextVisit, &p.Favorite, &p.CoveredArea, &p.UncoveredArea, &p.OperationType, &p.PropertyType,
		&p.FloorLabel, &p.Expenses, &remind, &p.CreatedAt,
	)
	if err != nil {
		return models.Property{}, err
	}

	p.Status = models.PropertyStatus(status)
	if lat.Valid {
		p.Lat = &lat.Float64
	}
	if lng.Valid {
		p.Lng = &lng.Float64
	}
	if nextVisit.Valid {
		p.NextVisitAt = &nextVisit.Time
	}
	if remind.Valid {
		p.VisitRemindedAt = &remind.Time
	}
	return p, nil
}

// ListByParent returns the properties of an owned group, newest first.
func (s *Properties) ListByParent(ctx context.Context, ownerID, groupID string) ([]models.Property, error) {
	rows, err := s.db.QueryContext(ctx,
		propertySelect+` WHERE p.search_group_id = $1 AND g.owner_id = $2 ORDER BY p.created_at DESC`,
		groupID, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	defer rows.Close()

	props := []models.Property{}
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
		}
		props = append(props, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	return props, nil
}

func (s *Properties) Get(ctx context.Context, ownerID, id string) (models.Property, error) {
	p, err := scanProperty(s.db.QueryRowContext(ctx,
		propertySelect+` WHERE p.id = $1 AND g.owner_id = $2`, id, ownerID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Property{}, fmt.Errorf("%w: property %s", ErrNotFound, id)
	}
	if err != nil {
		return models.Property{}, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	return p, nil
}

// Insert adds p to its group. The group must exist and belong to ownerID.
func (s *Properties) Insert(ctx context.Context, ownerID string, p models.Property) (models.Property, error) {
	p.Normalize()
	p.ID = s.newID()
	p.CreatedAt = s.now()
	p.VisitRemindedAt = nil

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM search_groups WHERE id = $1 AND owner_id = $2)`,
			p.SearchGroupID, ownerID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrQueryFailed, err)
		}
		if !exists {
			return fmt.Errorf("%w: search group %s", ErrNotFound, p.SearchGroupID)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO properties (id, search_group_id, url, title, price, address, lat, lng, thumbnail,
				source_name, rating, status, comments, contact_name, contact_phone, next_visit_at, favorite,
				covered_area, uncovered_area, operation_type, property_type, floor_label, expenses, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)`,
			p.ID, p.SearchGroupID, p.URL, p.Title, p.Price, p.Address, p.Lat, p.Lng, p.Thumbnail,
			p.SourceName, p.Rating, string(p.Status), p.Comments, p.ContactName, p.ContactPhone, p.NextVisitAt, p.Favorite,
			p.CoveredArea, p.UncoveredArea, p.OperationType, p.PropertyType, p.FloorLabel, p.Expenses, p.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInsertFailed, err)
		}
		return nil
	})
	if err != nil {
		return models.Property{}, err
	}

	if s.listener != nil {
		s.listener.PropertySaved(ctx, p)
	}
	return p, nil
}

// Update writes the given columns of an owned property. Moving the visit
// time clears the reminder stamp so the new visit gets its own reminder.
func (s *Properties) Update(ctx context.Context, ownerID, id string, fields map[string]interface{}) error {
	set, args, err := buildSet(fields, propertyColumns, 1)
	if err != nil {
		return err
	}
	if visit, ok := fields["next_visit_at"]; ok {
		args = append(args, visit)
		set += fmt.Sprintf(
			", visit_reminded_at = CASE WHEN next_visit_at IS DISTINCT FROM $%d THEN NULL ELSE visit_reminded_at END",
			len(args),
		)
	}
	n := len(args)
	args = append(args, id, ownerID)

	query := fmt.Sprintf(
		`UPDATE properties SET %s WHERE id = $%d AND search_group_id IN (SELECT id FROM search_groups WHERE owner_id = $%d)`,
		set, n+1, n+2,
	)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpdateFailed, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: property %s", ErrNotFound, id)
	}

	if s.listener != nil {
		if p, err := s.Get(ctx, ownerID, id); err == nil {
			s.listener.PropertySaved(ctx, p)
		}
	}
	return nil
}

func (s *Properties) Delete(ctx context.Context, ownerID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM properties WHERE id = $1 AND search_group_id IN (SELECT id FROM search_groups WHERE owner_id = $2)`,
		id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: property %s", ErrNotFound, id)
	}

	if s.listener != nil {
		s.listener.PropertyDeleted(ctx, id)
	}
	return nil
}

// DueVisit is a property with an upcoming visit and the owner to remind.
type DueVisit struct {
	Property   models.Property
	GroupName  string
	OwnerEmail string
	OwnerName  string
}

// DueForReminder lists unreminded visits scheduled in [from, to].
func (s *Properties) DueForReminder(ctx context.Context, from, to time.Time, limit int) ([]DueVisit, error) {
	query := strings.Replace(propertySelect, "FROM properties p", ", g.name, u.email, u.name FROM properties p", 1) +
		` JOIN users u ON u.id = g.owner_id
		WHERE p.next_visit_at BETWEEN $1 AND $2 AND p.visit_reminded_at IS NULL
		ORDER BY p.next_visit_at LIMIT $3`

	rows, err := s.db.QueryContext(ctx, query, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	defer rows.Close()

	var due []DueVisit
	for rows.Next() {
		var d DueVisit
		p, err := scanProperty(dueScanner{rows: rows, extra: []interface{}{&d.GroupName, &d.OwnerEmail, &d.OwnerName}})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
		}
		d.Property = p
		due = append(due, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	return due, nil
}

// dueScanner appends the reminder join columns to a property scan.
type dueScanner struct {
	rows  *sql.Rows
	extra []interface{}
}

func (d dueScanner) Scan(dest ...interface{}) error {
	return d.rows.Scan(append(dest, d.extra...)...)
}

// MarkReminded stamps the reminder time for a property.
func (s *Properties) MarkReminded(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE properties SET visit_reminded_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpdateFailed, err)
	}
	return nil
}
