// internal/store/users.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"property-tracker/internal/models"
)

type Users struct {
	*base
}

// Insert stores a new account. The email must already be normalized.
func (s *Users) Insert(ctx context.Context, u models.User) (models.User, error) {
	u.ID = s.newID()
	u.CreatedAt = s.now()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, password_hash, created_at) VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, fmt.Errorf("%w: %s", ErrEmailInUse, u.Email)
		}
		return models.User{}, fmt.Errorf("%w: %v", ErrInsertFailed, err)
	}
	return u, nil
}

func (s *Users) GetByEmail(ctx context.Context, email string) (models.User, error) {
	return s.getOne(ctx, `SELECT id, email, name, password_hash, created_at FROM users WHERE email = $1`, email)
}

func (s *Users) Get(ctx context.Context, id string) (models.User, error) {
	return s.getOne(ctx, `SELECT id, email, name, password_hash, created_at FROM users WHERE id = $1`, id)
}

func (s *Users) getOne(ctx context.Context, query string, arg string) (models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, fmt.Errorf("%w: user %s", ErrNotFound, arg)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	return u, nil
}
