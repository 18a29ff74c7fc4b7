// internal/store/groups.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"property-tracker/internal/common/database"
	"property-tracker/internal/models"
)

var groupColumns = columnSet([]string{"name", "description"})

type Groups struct {
	*base
}

func (s *Groups) ListByOwner(ctx context.Context, ownerID string) ([]models.SearchGroup, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, name, description, created_at FROM search_groups WHERE owner_id = $1 ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	defer rows.Close()

	groups := []models.SearchGroup{}
	for rows.Next() {
		var g models.SearchGroup
		if err := rows.Scan(&g.ID, &g.OwnerID, &g.Name, &g.Description, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	return groups, nil
}

// Get returns the group only when ownerID owns it.
func (s *Groups) Get(ctx context.Context, ownerID, id string) (models.SearchGroup, error) {
	var g models.SearchGroup
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, description, created_at FROM search_groups WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	).Scan(&g.ID, &g.OwnerID, &g.Name, &g.Description, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SearchGroup{}, fmt.Errorf("%w: search group %s", ErrNotFound, id)
	}
	if err != nil {
		return models.SearchGroup{}, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	return g, nil
}

func (s *Groups) Insert(ctx context.Context, g models.SearchGroup) (models.SearchGroup, error) {
	g.Name = strings.TrimSpace(g.Name)
	if err := models.ValidateName(g.Name); err != nil {
		return models.SearchGroup{}, err
	}
	g.ID = s.newID()
	g.CreatedAt = s.now()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO search_groups (id, owner_id, name, description, created_at) VALUES ($1, $2, $3, $4, $5)`,
		g.ID, g.OwnerID, g.Name, g.Description, g.CreatedAt,
	)
	if err != nil {
		return models.SearchGroup{}, fmt.Errorf("%w: %v", ErrInsertFailed, err)
	}
	return g, nil
}

// Update writes the given columns of an owned group. A blank name is rejected.
func (s *Groups) Update(ctx context.Context, ownerID, id string, fields map[string]interface{}) error {
	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	if name, ok := values["name"]; ok {
		n, _ := name.(string)
		if err := models.ValidateName(n); err != nil {
			return err
		}
		values["name"] = strings.TrimSpace(n)
	}

	set, args, err := buildSet(values, groupColumns, 1)
	if err != nil {
		return err
	}
	n := len(args)
	args = append(args, id, ownerID)

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE search_groups SET %s WHERE id = $%d AND owner_id = $%d`, set, n+1, n+2),
		args...,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpdateFailed, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: search group %s", ErrNotFound, id)
	}
	return nil
}

// Delete removes an owned group and every property in it in one transaction.
// It returns the number of properties removed.
func (s *Groups) Delete(ctx context.Context, ownerID, id string) (int64, error) {
	var removed int64
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var owner string
		err := tx.QueryRowContext(ctx,
			`SELECT owner_id FROM search_groups WHERE id = $1 FOR UPDATE`, id,
		).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != ownerID) {
			return fmt.Errorf("%w: search group %s", ErrNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM properties WHERE search_group_id = $1`, id)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
		}
		removed, _ = res.RowsAffected()

		if _, err := tx.ExecContext(ctx, `DELETE FROM search_groups WHERE id = $1`, id); err != nil {
			return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if s.listener != nil {
		s.listener.GroupDeleted(ctx, id)
	}
	return removed, nil
}
