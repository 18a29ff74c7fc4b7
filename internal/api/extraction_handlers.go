// internal/api/extraction_handlers.go
package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type submitRequest struct {
	Slot string `json:"slot"`
	URL  string `json:"url"`
}

type confirmRequest struct {
	GroupID string `json:"groupId"`
}

// submitExtraction blocks until the extraction settles; the slot comes back
// in the verifying phase, with a placeholder draft when extraction failed.
func (a *API) submitExtraction(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.Slot) == "" {
		a.fail(w, r, fmt.Errorf("%w: slot is required", errBadRequest))
		return
	}

	slot, err := a.deps.Extractions.Submit(r.Context(), ownerID(r), req.Slot, req.URL)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

func (a *API) getExtraction(w http.ResponseWriter, r *http.Request) {
	slot, err := a.deps.Extractions.Get(ownerID(r), chi.URLParam(r, "slot"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

func (a *API) editExtraction(w http.ResponseWriter, r *http.Request) {
	var edit fieldEdit
	if err := decodeJSON(r, &edit); err != nil {
		a.fail(w, r, err)
		return
	}

	slot, err := a.deps.Extractions.Edit(ownerID(r), chi.URLParam(r, "slot"), edit.Field, edit.Value)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

func (a *API) confirmExtraction(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.GroupID) == "" {
		a.fail(w, r, fmt.Errorf("%w: groupId is required", errBadRequest))
		return
	}

	p, err := a.deps.Extractions.Confirm(r.Context(), ownerID(r), chi.URLParam(r, "slot"), req.GroupID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a.view(p))
}

func (a *API) cancelExtraction(w http.ResponseWriter, r *http.Request) {
	if err := a.deps.Extractions.Cancel(ownerID(r), chi.URLParam(r, "slot")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
