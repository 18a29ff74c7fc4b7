// internal/auth/models.go
package auth

import (
	"time"

	"property-tracker/internal/models"
)

type SignupInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type SigninInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Result is returned by a successful signup or signin.
type Result struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      models.User `json:"user"`
}
