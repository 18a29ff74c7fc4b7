// internal/api/group_handlers.go
package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"property-tracker/internal/models"
	"property-tracker/internal/search"

	"github.com/go-chi/chi/v5"
)

type createGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type groupDetail struct {
	Group      models.SearchGroup `json:"group"`
	Properties []propertyView     `json:"properties"`
}

type marker struct {
	ID       string                `json:"id"`
	Title    string                `json:"title"`
	Lat      float64               `json:"lat"`
	Lng      float64               `json:"lng"`
	Status   models.PropertyStatus `json:"status"`
	Favorite bool                  `json:"favorite"`
}

func (a *API) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := a.deps.Groups.ListByOwner(r.Context(), ownerID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if groups == nil {
		groups = []models.SearchGroup{}
	}
	writeJSON(w, http.StatusOK, groups)
}

func (a *API) createGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	g, err := a.deps.Groups.Insert(r.Context(), models.SearchGroup{
		OwnerID:     ownerID(r),
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (a *API) getGroup(w http.ResponseWriter, r *http.Request) {
	g, err := a.deps.Groups.Get(r.Context(), ownerID(r), chi.URLParam(r, "groupID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// updateGroup writes the given fields directly, without an edit session.
func (a *API) updateGroup(w http.ResponseWriter, r *http.Request) {
	owner, id := ownerID(r), chi.URLParam(r, "groupID")

	var body map[string]interface{}
	if err := decodeJSON(r, &body); err != nil {
		a.fail(w, r, err)
		return
	}

	g, err := a.deps.Groups.Get(r.Context(), owner, id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	next, cols, err := applyFields(g, body, models.GroupColumn)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.deps.Groups.Update(r.Context(), owner, id, cols); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, next)
}

func (a *API) deleteGroup(w http.ResponseWriter, r *http.Request) {
	removed, err := a.deps.Groups.Delete(r.Context(), ownerID(r), chi.URLParam(r, "groupID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deletedProperties": removed})
}

func (a *API) shareGroup(w http.ResponseWriter, r *http.Request) {
	g, err := a.deps.Groups.Get(r.Context(), ownerID(r), chi.URLParam(r, "groupID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": ShareLink(a.deps.PublicOrigin, g.ID)})
}

// ShareLink builds the deep link that opens a group.
func ShareLink(origin, groupID string) string {
	return strings.TrimRight(origin, "/") + "/?" + url.Values{"project": {groupID}}.Encode()
}

// deepLink answers GET /?project=<id> with the group and its properties.
func (a *API) deepLink(w http.ResponseWriter, r *http.Request) {
	groupID := strings.TrimSpace(r.URL.Query().Get("project"))
	if groupID == "" {
		a.fail(w, r, fmt.Errorf("%w: project parameter is required", errBadRequest))
		return
	}
	a.writeGroupDetail(w, r, groupID)
}

func (a *API) writeGroupDetail(w http.ResponseWriter, r *http.Request, groupID string) {
	owner := ownerID(r)
	g, err := a.deps.Groups.Get(r.Context(), owner, groupID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	props, err := a.deps.Properties.ListByParent(r.Context(), owner, groupID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groupDetail{Group: g, Properties: a.views(props)})
}

func (a *API) markers(w http.ResponseWriter, r *http.Request) {
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

	out := make([]marker, 0, len(props))
	for _, p := range props {
		if !p.HasCoordinates() {
			continue
		}
		out = append(out, marker{
			ID:       p.ID,
			Title:    p.Title,
			Lat:      *p.Lat,
			Lng:      *p.Lng,
			Status:   p.Status,
			Favorite: p.Favorite,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) searchGroup(w http.ResponseWriter, r *http.Request) {
	if a.deps.Search == nil {
		a.fail(w, r, search.ErrSearchDisabled)
		return
	}

	owner, groupID := ownerID(r), chi.URLParam(r, "groupID")
	if _, err := a.deps.Groups.Get(r.Context(), owner, groupID); err != nil {
		a.fail(w, r, err)
		return
	}

	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	hits, err := a.deps.Search.Search(r.Context(), groupID, r.URL.Query().Get("q"), size)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hits)
}

// applyFields validates each field against e and returns the updated entity
// with the matching column values.
func applyFields(e models.Entity, body map[string]interface{}, column func(string) (string, bool)) (models.Entity, map[string]interface{}, error) {
	if len(body) == 0 {
		return nil, nil, fmt.Errorf("%w: no fields to update", errBadRequest)
	}

	next := e
	changed := make([]string, 0, len(body))
	for field, value := range body {
		col, ok := column(field)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", models.ErrUnknownField, field)
		}
		updated, err := next.WithField(field, value)
		if err != nil {
			return nil, nil, err
		}
		next = updated
		changed = append(changed, col)
	}

	all := next.Columns()
	cols := make(map[string]interface{}, len(changed))
	for _, col := range changed {
		cols[col] = all[col]
	}
	return next, cols, nil
}
