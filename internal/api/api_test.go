// internal/api/api_test.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"property-tracker/internal/auth"
	"property-tracker/internal/autosync"
	apperrors "property-tracker/internal/common/errors"
	"property-tracker/internal/common/logger"
	"property-tracker/internal/editsession"
	"property-tracker/internal/extraction"
	"property-tracker/internal/models"
	"property-tracker/internal/scoring"
	"property-tracker/internal/search"
	"property-tracker/internal/store"
	"property-tracker/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Fakes
// ==========================

type fakeAuth struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

func newFakeAuth() *fakeAuth {
	exp := time.Now().Add(time.Hour)
	return &fakeAuth{sessions: map[string]*models.Session{
		"ana-token": {Token: "ana-token", UserID: "ana", Email: "ana@example.com", ExpiresAt: exp},
		"bob-token": {Token: "bob-token", UserID: "bob", Email: "bob@example.com", ExpiresAt: exp},
	}}
}

func (f *fakeAuth) Signup(ctx context.Context, in auth.SignupInput) (*auth.Result, error) {
	if in.Email == "taken@example.com" {
		return nil, fmt.Errorf("%w: %s", auth.ErrEmailInUse, in.Email)
	}
	if len(in.Password) < 8 {
		return nil, fmt.Errorf("%w: password too short", auth.ErrInvalidInput)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions["new-token"] = &models.Session{Token: "new-token", UserID: "new", Email: in.Email}
	return &auth.Result{Token: "new-token", User: models.User{ID: "new", Email: in.Email, Name: in.Name}}, nil
}

func (f *fakeAuth) Signin(ctx context.Context, in auth.SigninInput) (*auth.Result, error) {
	if in.Email != "ana@example.com" || in.Password != "correct horse" {
		return nil, auth.ErrInvalidCredentials
	}
	return &auth.Result{Token: "ana-token", User: models.User{ID: "ana", Email: in.Email}}, nil
}

func (f *fakeAuth) Signout(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, token)
	return nil
}

func (f *fakeAuth) CurrentUser(ctx context.Context, token string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[token]
	if !ok {
		return nil, fmt.Errorf("%w: unknown token", auth.ErrSessionExpired)
	}
	return s, nil
}

type fakeSource struct {
	fields *extraction.Fields
	err    error
}

func (f fakeSource) Extract(ctx context.Context, rawURL string) (*extraction.Fields, error) {
	return f.fields, f.err
}

type fakeSearcher struct {
	groupID string
	query   string
	hits    []search.Hit
}

func (f *fakeSearcher) Search(ctx context.Context, groupID, query string, size int) ([]search.Hit, error) {
	f.groupID, f.query = groupID, query
	return f.hits, nil
}

type harness struct {
	t       *testing.T
	handler http.Handler
	mem     *storetest.Memory
	clock   *autosync.ManualClock
	auth    *fakeAuth
}

func newHarness(t *testing.T, configure ...func(*Deps)) *harness {
	log := logger.NewTestLogger(t)
	mem := storetest.NewMemory()
	clock := autosync.NewManualClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	syncCfg := autosync.Config{
		Debounce:     time.Second,
		RetryInitial: 2 * time.Second,
		RetryMax:     time.Minute,
		MaxAttempts:  3,
		WriteTimeout: time.Second,
	}
	fa := newFakeAuth()

	price, area := "USD 360,000", 100.0
	deps := Deps{
		Auth:         fa,
		Groups:       mem.Groups,
		Properties:   mem.Properties,
		EditSessions: editsession.NewManager(syncCfg, mem.Groups, mem.Properties, log, editsession.WithClock(clock)),
		Extractions: extraction.NewFlow(fakeSource{fields: &extraction.Fields{
			Title:       "Bright flat",
			Price:       price,
			Address:     "Main 1",
			SourceName:  "Listings",
			CoveredArea: &area,
		}}, mem.Properties, log),
		Scorer:       scoring.DefaultScorer(),
		PublicOrigin: "https://tracker.example.com/",
		Logger:       log,
	}
	for _, c := range configure {
		c(&deps)
	}
	return &harness{t: t, handler: NewRouter(deps), mem: mem, clock: clock, auth: fa}
}

func (h *harness) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decode(t, rec, &body)
	return body.Error.Code
}

func (h *harness) createGroup(token, name string) models.SearchGroup {
	rec := h.do(http.MethodPost, "/api/groups", token, map[string]string{"name": name})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	var g models.SearchGroup
	decode(h.t, rec, &g)
	return g
}

func (h *harness) createProperty(token, groupID string, body map[string]interface{}) propertyView {
	rec := h.do(http.MethodPost, "/api/groups/"+groupID+"/properties", token, body)
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	var v propertyView
	decode(h.t, rec, &v)
	return v
}

// ==========================
// Middleware
// ==========================

func TestHealth(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestHealthChecks(t *testing.T) {
	h := newHarness(t, func(d *Deps) {
		d.HealthChecks = map[string]HealthCheck{
			"postgres": func(ctx context.Context) error { return nil },
			"redis":    func(ctx context.Context) error { return errors.New("redis ping failed: connection refused") },
		}
	})

	rec := h.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body healthResponse
	decode(t, rec, &body)
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "ok", body.Checks["postgres"])
	assert.Contains(t, body.Checks["redis"], "connection refused")
}

func TestAuthRequired(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		wantCode string
	}{
		{"missing token", "", string(apperrors.ErrCodeAuthentication)},
		{"unknown token", "stale", string(apperrors.ErrCodeSessionExpired)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			rec := h.do(http.MethodGet, "/api/groups", tt.token, nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, tt.wantCode, errorCode(t, rec))
		})
	}
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", bearerToken(req))

	req.Header.Set("Authorization", "bearer  abc ")
	assert.Equal(t, "abc", bearerToken(req))

	req.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, "", bearerToken(req))
}

// ==========================
// Accounts
// ==========================

func TestSignupSigninMe(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/api/auth/signup", "", map[string]string{"email": "cy@example.com", "password": "long enough", "name": "Cy"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var res auth.Result
	decode(t, rec, &res)
	assert.Equal(t, "new-token", res.Token)

	rec = h.do(http.MethodGet, "/api/auth/me", res.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me meResponse
	decode(t, rec, &me)
	assert.Equal(t, "cy@example.com", me.Email)

	rec = h.do(http.MethodPost, "/api/auth/signup", "", map[string]string{"email": "taken@example.com", "password": "long enough"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(http.MethodPost, "/api/auth/signin", "", map[string]string{"email": "ana@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(http.MethodPost, "/api/auth/signin", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignout(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/api/auth/signout", "ana-token", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = h.do(http.MethodGet, "/api/auth/me", "ana-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// ==========================
// Groups
// ==========================

func TestGroupLifecycle(t *testing.T) {
	h := newHarness(t)
	g := h.createGroup("ana-token", "  Downtown ")
	assert.Equal(t, "Downtown", g.Name)
	assert.Equal(t, "ana", g.OwnerID)

	rec := h.do(http.MethodPost, "/api/groups", "ana-token", map[string]string{"name": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPatch, "/api/groups/"+g.ID, "ana-token", map[string]interface{}{"name": "Uptown"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(http.MethodGet, "/api/groups", "ana-token", nil)
	var groups []models.SearchGroup
	decode(t, rec, &groups)
	require.Len(t, groups, 1)
	assert.Equal(t, "Uptown", groups[0].Name)

	rec = h.do(http.MethodPatch, "/api/groups/"+g.ID, "ana-token", map[string]interface{}{"ownerId": "bob"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(apperrors.ErrCodeUnknownField), errorCode(t, rec))

	h.createProperty("ana-token", g.ID, map[string]interface{}{"title": "One"})
	h.createProperty("ana-token", g.ID, map[string]interface{}{"title": "Two"})

	rec = h.do(http.MethodDelete, "/api/groups/"+g.ID, "ana-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var deleted map[string]int64
	decode(t, rec, &deleted)
	assert.Equal(t, int64(2), deleted["deletedProperties"])

	rec = h.do(http.MethodGet, "/api/groups/"+g.ID, "ana-token", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGroupsAreScopedToOwner(t *testing.T) {
	h := newHarness(t)
	g := h.createGroup("ana-token", "Downtown")

	for _, path := range []string{
		"/api/groups/" + g.ID,
		"/api/groups/" + g.ID + "/share",
		"/api/groups/" + g.ID + "/properties",
		"/?project=" + g.ID,
	} {
		rec := h.do(http.MethodGet, path, "bob-token", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}

	rec := h.do(http.MethodGet, "/api/groups", "bob-token", nil)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestShareLinkAndDeepLink(t *testing.T) {
	h := newHarness(t)
	g := h.createGroup("ana-token", "Downtown")
	h.createProperty("ana-token", g.ID, map[string]interface{}{"title": "One", "price": "USD 360,000", "coveredArea": 100})

	rec := h.do(http.MethodGet, "/api/groups/"+g.ID+"/share", "ana-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var share map[string]string
	decode(t, rec, &share)
	assert.Equal(t, "https://tracker.example.com/?project="+g.ID, share["url"])

	rec = h.do(http.MethodGet, "/?project="+g.ID, "ana-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail groupDetail
	decode(t, rec, &detail)
	assert.Equal(t, g.ID, detail.Group.ID)
	require.Len(t, detail.Properties, 1)
	assert.Equal(t, 50, detail.Properties[0].Score)
	assert.Equal(t, 3600.0, detail.Properties[0].PricePerArea)

	rec = h.do(http.MethodGet, "/", "ana-token", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestShareLink(t *testing.T) {
	assert.Equal(t, "http://localhost:5173/?project=g-1", ShareLink("http://localhost:5173", "g-1"))
	assert.Equal(t, "/?project=a%26b", ShareLink("", "a&b"))
}

// ==========================
// Properties
// ==========================

func TestPropertyLifecycle(t *testing.T) {
	h := newHarness(t)
	g := h.createGroup("ana-token", "Downtown")

	p := h.createProperty("ana-token", g.ID, map[string]interface{}{
		"title":       "Bright flat",
		"price":       "USD 360,000",
		"coveredArea": "100",
		"lat":         -34.6,
		"lng":         -58.4,
	})
	assert.Equal(t, models.StatusInterested, p.Status)
	assert.Equal(t, "Interested", p.StatusLabel)
	assert.Equal(t, 50, p.Score)

	rec := h.do(http.MethodPatch, "/api/properties/"+p.ID, "ana-token", map[string]interface{}{"status": "Visited", "rating": 7})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated propertyView
	decode(t, rec, &updated)
	assert.Equal(t, models.StatusVisited, updated.Status)
	assert.Equal(t, models.MaxRating, updated.Rating)

	rec = h.do(http.MethodPatch, "/api/properties/"+p.ID, "ana-token", map[string]interface{}{"status": "sold"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(apperrors.ErrCodeValidationFailed), errorCode(t, rec))

	rec = h.do(http.MethodPost, "/api/properties/"+p.ID+"/favorite", "ana-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stored, err := h.mem.Properties.Get(context.Background(), "ana", p.ID)
	require.NoError(t, err)
	assert.True(t, stored.Favorite)
	assert.Equal(t, models.StatusVisited, stored.Status)

	rec = h.do(http.MethodDelete, "/api/properties/"+p.ID, "ana-token", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = h.do(http.MethodGet, "/api/properties/"+p.ID, "ana-token", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreatePropertyValidation(t *testing.T) {
	h := newHarness(t)
	g := h.createGroup("ana-token", "Downtown")

	tests := []struct {
		name     string
		body     map[string]interface{}
		wantCode string
	}{
		{"missing title", map[string]interface{}{"price": "USD 1"}, string(apperrors.ErrCodeValidationFailed)},
		{"unknown field", map[string]interface{}{"title": "x", "id": "mine"}, string(apperrors.ErrCodeUnknownField)},
		{"bad area", map[string]interface{}{"title": "x", "coveredArea": "big"}, string(apperrors.ErrCodeValidationFailed)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(http.MethodPost, "/api/groups/"+g.ID+"/properties", "ana-token", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantCode, errorCode(t, rec))
		})
	}

	rec := h.do(http.MethodPost, "/api/groups/"+g.ID+"/properties", "bob-token", map[string]interface{}{"title": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarkers(t *testing.T) {
	h := newHarness(t)
	g := h.createGroup("ana-token", "Downtown")
	h.createProperty("ana-token", g.ID, map[string]interface{}{"title": "On map", "lat": 1.5, "lng": 2.5})
	h.createProperty("ana-token", g.ID, map[string]interface{}{"title": "No coordinates"})

	rec := h.do(http.MethodGet, "/api/groups/"+g.ID+"/markers", "ana-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var markers []marker
	decode(t, rec, &markers)
	require.Len(t, markers, 1)
	assert.Equal(t, "On map", markers[0].Title)
	assert.Equal(t, 1.5, markers[0].Lat)
}

func TestMarkersUnknownOrForeignGroup(t *testing.T) {
	h := newHarness(t)
	g := h.createGroup("ana-token", "Downtown")
	h.createProperty("ana-token", g.ID, map[string]interface{}{"title": "On map", "lat": 1.5, "lng": 2.5})

	rec := h.do(http.MethodGet, "/api/groups/"+g.ID+"/markers", "bob-token", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodGet, "/api/groups/group-missing/markers", "ana-token", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "RESOURCE_NOT_FOUND", errorCode(t, rec))
}

func TestDirectWriteFailureIsServiceUnavailable(t *testing.T) {
	h := newHarness(t)
	g := h.createGroup("ana-token", "Downtown")
	p := h.createProperty("ana-token", g.ID, map[string]interface{}{"title": "x"})

	h.mem.SetFailWrites(fmt.Errorf("%w: connection refused", store.ErrUpdateFailed))
	rec := h.do(http.MethodPatch, "/api/properties/"+p.ID, "ana-token", map[string]interface{}{"comments": "hi"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, string(apperrors.ErrCodeDatabaseUpdateFailed), errorCode(t, rec))
}

// ==========================
// Search
// ==========================

func TestSearchDisabled(t *testing.T) {
	h := newHarness(t)
	g := h.createGroup("ana-token", "Downtown")

	rec := h.do(http.MethodGet, "/api/groups/"+g.ID+"/search?q=flat", "ana-token", nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.Equal(t, string(apperrors.ErrCodeSearchDisabled), errorCode(t, rec))
}

func TestSearch(t *testing.T) {
	searcher := &fakeSearcher{hits: []search.Hit{{ID: "prop-9", Title: "Bright flat", Score: 2}}}
	h := newHarness(t, func(d *Deps) { d.Search = searcher })
	g := h.createGroup("ana-token", "Downtown")

	rec := h.do(http.MethodGet, "/api/groups/"+g.ID+"/search?q=bright", "ana-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var hits []search.Hit
	decode(t, rec, &hits)
	require.Len(t, hits, 1)
	assert.Equal(t, g.ID, searcher.groupID)
	assert.Equal(t, "bright", searcher.query)

	rec = h.do(http.MethodGet, "/api/groups/"+g.ID+"/search?q=bright", "bob-token", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ==========================
// Edit sessions
// ==========================

func TestEditSessionFlow(t *testing.T) {
	h := newHarness(t)
	g := h.createGroup("ana-token", "Downtown")
	p := h.createProperty("ana-token", g.ID, map[string]interface{}{"title": "Old title"})

	rec := h.do(http.MethodPost, "/api/edit-sessions", "ana-token", map[string]string{"kind": "property", "id": p.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var opened struct {
		ID   string         `json:"id"`
		Sync autosync.State `json:"sync"`
	}
	decode(t, rec, &opened)

	rec = h.do(http.MethodPatch, "/api/edit-sessions/"+opened.ID, "ana-token", fieldEdit{Field: "title", Value: "New title"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored, _ := h.mem.Properties.Get(context.Background(), "ana", p.ID)
	assert.Equal(t, "Old title", stored.Title)

	h.clock.Advance(time.Second)
	stored, _ = h.mem.Properties.Get(context.Background(), "ana", p.ID)
	assert.Equal(t, "New title", stored.Title)

	rec = h.do(http.MethodGet, "/api/edit-sessions/"+opened.ID, "bob-token", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodPut, "/api/edit-sessions/"+opened.ID+"/entity", "ana-token", map[string]string{"kind": "group", "id": g.ID})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodPatch, "/api/edit-sessions/"+opened.ID, "ana-token", fieldEdit{Field: "description", Value: "near the park"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodDelete, "/api/edit-sessions/"+opened.ID, "ana-token", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	group, _ := h.mem.Groups.Get(context.Background(), "ana", g.ID)
	assert.Equal(t, "near the park", group.Description)

	rec = h.do(http.MethodPost, "/api/edit-sessions", "ana-token", map[string]string{"kind": "user", "id": "ana"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ==========================
// Extractions
// ==========================

func TestExtractionFlow(t *testing.T) {
	h := newHarness(t)
	g := h.createGroup("ana-token", "Downtown")

	rec := h.do(http.MethodPost, "/api/extractions", "ana-token", map[string]string{"slot": "a", "url": "https://listings.example.com/123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var slot extraction.Slot
	decode(t, rec, &slot)
	assert.Equal(t, extraction.PhaseVerifying, slot.Phase)
	require.NotNil(t, slot.Draft)
	assert.Equal(t, "Bright flat", slot.Draft.Title)

	rec = h.do(http.MethodPatch, "/api/extractions/a", "ana-token", fieldEdit{Field: "comments", Value: "ask about parking"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodGet, "/api/extractions/a", "bob-token", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodPost, "/api/extractions/a/confirm", "ana-token", map[string]string{"groupId": g.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var saved propertyView
	decode(t, rec, &saved)
	assert.Equal(t, "ask about parking", saved.Comments)
	assert.Equal(t, 50, saved.Score)

	rec = h.do(http.MethodGet, "/api/extractions/a", "ana-token", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExtractionRejects(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/api/extractions", "ana-token", map[string]string{"slot": "a", "url": "not a url"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPost, "/api/extractions", "ana-token", map[string]string{"url": "https://x.example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPost, "/api/extractions", "ana-token", map[string]string{"slot": "a", "url": "https://x.example.com"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodPost, "/api/extractions/a/confirm", "ana-token", map[string]string{"groupId": "someone-elses"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = h.do(http.MethodGet, "/api/extractions/a", "ana-token", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodDelete, "/api/extractions/a", "ana-token", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = h.do(http.MethodDelete, "/api/extractions/a", "ana-token", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExtractionFailureGivesPlaceholder(t *testing.T) {
	h := newHarness(t, func(d *Deps) {
		d.Extractions = extraction.NewFlow(fakeSource{err: extraction.ErrExtractionTimeout}, nil, logger.NewTestLogger(t))
	})

	rec := h.do(http.MethodPost, "/api/extractions", "ana-token", map[string]string{"slot": "a", "url": "https://www.listings.example.com/1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var slot extraction.Slot
	decode(t, rec, &slot)
	assert.True(t, slot.Fallback)
	assert.Equal(t, extraction.PlaceholderTitle, slot.Draft.Title)
	assert.Equal(t, "listings.example.com", slot.Draft.SourceName)
}

// ==========================
// Error mapping
// ==========================

func TestToStandard(t *testing.T) {
	tests := []struct {
		err  error
		want apperrors.ErrorCode
	}{
		{auth.ErrSessionExpired, apperrors.ErrCodeSessionExpired},
		{auth.ErrInvalidCredentials, apperrors.ErrCodeAuthentication},
		{fmt.Errorf("%w: a@b.co", store.ErrEmailInUse), apperrors.ErrCodeEmailInUse},
		{fmt.Errorf("%w: x", models.ErrUnknownField), apperrors.ErrCodeUnknownField},
		{fmt.Errorf("%w: x", models.ErrInvalidValue), apperrors.ErrCodeValidationFailed},
		{fmt.Errorf("%w: x", store.ErrNotFound), apperrors.ErrCodeResourceNotFound},
		{fmt.Errorf("%w: x", editsession.ErrSessionNotFound), apperrors.ErrCodeResourceNotFound},
		{fmt.Errorf("%w: x", extraction.ErrExtractionInProgress), apperrors.ErrCodeExtractionInProgress},
		{fmt.Errorf("%w: x", editsession.ErrSessionClosing), apperrors.ErrCodeEditSessionClosing},
		{search.ErrSearchDisabled, apperrors.ErrCodeSearchDisabled},
		{fmt.Errorf("%w: x", store.ErrInsertFailed), apperrors.ErrCodeDatabaseInsertFailed},
		{fmt.Errorf("%w: x", store.ErrDeleteFailed), apperrors.ErrCodeDatabaseDeleteFailed},
		{errors.New("boom"), apperrors.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			got := apperrors.Normalize(toStandard(tt.err))
			assert.Equal(t, tt.want, got.Code)
		})
	}
}
