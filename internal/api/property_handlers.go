// internal/api/property_handlers.go
package api

import (
	"fmt"
	"net/http"
	"strings"

	"property-tracker/internal/models"
	"property-tracker/internal/scoring"

	"github.com/go-chi/chi/v5"
)

// propertyView is a property with its derived metrics.
type propertyView struct {
	models.Property
	StatusLabel string `json:"statusLabel"`
	scoring.Metrics
}

func (a *API) view(p models.Property) propertyView {
	return propertyView{
		Property:    p,
		StatusLabel: p.Status.Label(),
		Metrics:     a.deps.Scorer.Evaluate(p.Price, p.CoveredArea),
	}
}

func (a *API) views(props []models.Property) []propertyView {
	out := make([]propertyView, 0, len(props))
	for _, p := range props {
		out = append(out, a.view(p))
	}
	return out
}

func (a *API) listProperties(w http.ResponseWriter, r *http.Request) {
	owner, groupID := ownerID(r), chi.URLParam(r, "groupID")
	if _, err := a.deps.Groups.Get(r.Context(), owner, groupID); err != nil {
		a.fail(w, r, err)
		return
	}

	props, err := a.deps.Properties.ListByParent(r.Context(), owner, groupID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.views(props))
}

// createProperty adds a property by hand, without extraction.
func (a *API) createProperty(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	if err := decodeJSON(r, &body); err != nil {
		a.fail(w, r, err)
		return
	}

	var p models.Entity = models.Property{Status: models.StatusInterested}
	for field, value := range body {
		next, err := p.WithField(field, value)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		p = next
	}

	prop := p.(models.Property)
	prop.SearchGroupID = chi.URLParam(r, "groupID")
	prop.Normalize()
	if strings.TrimSpace(prop.Title) == "" {
		a.fail(w, r, fmt.Errorf("%w: title is required", models.ErrInvalidValue))
		return
	}

	saved, err := a.deps.Properties.Insert(r.Context(), ownerID(r), prop)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a.view(saved))
}

func (a *API) getProperty(w http.ResponseWriter, r *http.Request) {
	p, err := a.deps.Properties.Get(r.Context(), ownerID(r), chi.URLParam(r, "propertyID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.view(p))
}

// updateProperty writes the given fields directly. Status, rating and
// favorite changes go through here too.
func (a *API) updateProperty(w http.ResponseWriter, r *http.Request) {
	owner, id := ownerID(r), chi.URLParam(r, "propertyID")

	var body map[string]interface{}
	if err := decodeJSON(r, &body); err != nil {
		a.fail(w, r, err)
		return
	}

	p, err := a.deps.Properties.Get(r.Context(), owner, id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	next, cols, err := applyFields(p, body, models.PropertyColumn)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.deps.Properties.Update(r.Context(), owner, id, cols); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.view(next.(models.Property)))
}

func (a *API) toggleFavorite(w http.ResponseWriter, r *http.Request) {
	owner, id := ownerID(r), chi.URLParam(r, "propertyID")

	p, err := a.deps.Properties.Get(r.Context(), owner, id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	p.Favorite = !p.Favorite
	if err := a.deps.Properties.Update(r.Context(), owner, id, map[string]interface{}{"favorite": p.Favorite}); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.view(p))
}

func (a *API) deleteProperty(w http.ResponseWriter, r *http.Request) {
	if err := a.deps.Properties.Delete(r.Context(), ownerID(r), chi.URLParam(r, "propertyID")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
