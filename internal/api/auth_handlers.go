// internal/api/auth_handlers.go
package api

import (
	"net/http"
	"time"

	"property-tracker/internal/auth"
)

type meResponse struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (a *API) signup(w http.ResponseWriter, r *http.Request) {
	var input auth.SignupInput
	if err := decodeJSON(r, &input); err != nil {
		a.fail(w, r, err)
		return
	}

	res, err := a.deps.Auth.Signup(r.Context(), input)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (a *API) signin(w http.ResponseWriter, r *http.Request) {
	var input auth.SigninInput
	if err := decodeJSON(r, &input); err != nil {
		a.fail(w, r, err)
		return
	}

	res, err := a.deps.Auth.Signin(r.Context(), input)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) signout(w http.ResponseWriter, r *http.Request) {
	if err := a.deps.Auth.Signout(r.Context(), bearerToken(r)); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r.Context())
	writeJSON(w, http.StatusOK, meResponse{UserID: s.UserID, Email: s.Email, ExpiresAt: s.ExpiresAt})
}
