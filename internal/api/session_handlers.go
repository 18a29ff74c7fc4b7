// internal/api/session_handlers.go
package api

import (
	"net/http"

	"property-tracker/internal/models"

	"github.com/go-chi/chi/v5"
)

type entityRef struct {
	Kind models.Kind `json:"kind"`
	ID   string      `json:"id"`
}

func (a *API) openEditSession(w http.ResponseWriter, r *http.Request) {
	var ref entityRef
	if err := decodeJSON(r, &ref); err != nil {
		a.fail(w, r, err)
		return
	}

	v, err := a.deps.EditSessions.Open(r.Context(), ownerID(r), ref.Kind, ref.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (a *API) getEditSession(w http.ResponseWriter, r *http.Request) {
	v, err := a.deps.EditSessions.Get(ownerID(r), chi.URLParam(r, "sessionID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// applyEdit changes one field of the draft. The response reflects the draft
// immediately; the store write follows after the debounce window.
func (a *API) applyEdit(w http.ResponseWriter, r *http.Request) {
	var edit fieldEdit
	if err := decodeJSON(r, &edit); err != nil {
		a.fail(w, r, err)
		return
	}

	v, err := a.deps.EditSessions.Apply(ownerID(r), chi.URLParam(r, "sessionID"), edit.Field, edit.Value)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *API) switchEntity(w http.ResponseWriter, r *http.Request) {
	var ref entityRef
	if err := decodeJSON(r, &ref); err != nil {
		a.fail(w, r, err)
		return
	}

	v, err := a.deps.EditSessions.Switch(r.Context(), ownerID(r), chi.URLParam(r, "sessionID"), ref.Kind, ref.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *API) closeEditSession(w http.ResponseWriter, r *http.Request) {
	if err := a.deps.EditSessions.Close(r.Context(), ownerID(r), chi.URLParam(r, "sessionID")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
