// internal/api/router.go
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"property-tracker/internal/auth"
	apperrors "property-tracker/internal/common/errors"
	"property-tracker/internal/common/logger"
	"property-tracker/internal/common/observability"
	"property-tracker/internal/editsession"
	"property-tracker/internal/extraction"
	"property-tracker/internal/models"
	"property-tracker/internal/scoring"
	"property-tracker/internal/search"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Authenticator interface {
	Signup(ctx context.Context, input auth.SignupInput) (*auth.Result, error)
	Signin(ctx context.Context, input auth.SigninInput) (*auth.Result, error)
	Signout(ctx context.Context, token string) error
	CurrentUser(ctx context.Context, token string) (*models.Session, error)
}

type GroupStore interface {
	ListByOwner(ctx context.Context, ownerID string) ([]models.SearchGroup, error)
	Get(ctx context.Context, ownerID, id string) (models.SearchGroup, error)
	Insert(ctx context.Context, g models.SearchGroup) (models.SearchGroup, error)
	Update(ctx context.Context, ownerID, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, ownerID, id string) (int64, error)
}

type PropertyStore interface {
	ListByParent(ctx context.Context, ownerID, groupID string) ([]models.Property, error)
	Get(ctx context.Context, ownerID, id string) (models.Property, error)
	Insert(ctx context.Context, ownerID string, p models.Property) (models.Property, error)
	Update(ctx context.Context, ownerID, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, ownerID, id string) error
}

type EditSessions interface {
	Open(ctx context.Context, ownerID string, kind models.Kind, id string) (editsession.View, error)
	Get(ownerID, sessionID string) (editsession.View, error)
	Apply(ownerID, sessionID, field string, value interface{}) (editsession.View, error)
	Switch(ctx context.Context, ownerID, sessionID string, kind models.Kind, id string) (editsession.View, error)
	Close(ctx context.Context, ownerID, sessionID string) error
}

type Extractions interface {
	Submit(ctx context.Context, ownerID, slot, rawURL string) (extraction.Slot, error)
	Get(ownerID, slot string) (extraction.Slot, error)
	Edit(ownerID, slot, field string, value interface{}) (extraction.Slot, error)
	Confirm(ctx context.Context, ownerID, slot, groupID string) (models.Property, error)
	Cancel(ownerID, slot string) error
}

type Searcher interface {
	Search(ctx context.Context, groupID, query string, size int) ([]search.Hit, error)
}

// HealthCheck reports whether one backing service is reachable.
type HealthCheck func(ctx context.Context) error

// Deps are the services the HTTP API is built on. Search, Observability and
// HealthChecks may be nil.
type Deps struct {
	Auth          Authenticator
	Groups        GroupStore
	Properties    PropertyStore
	EditSessions  EditSessions
	Extractions   Extractions
	Search        Searcher
	Scorer        scoring.Scorer
	PublicOrigin  string
	CORSOrigins   []string
	Observability *observability.Observability
	HealthChecks  map[string]HealthCheck
	Logger        logger.Logger
}

type API struct {
	deps   Deps
	errors *apperrors.ErrorHandler
	logger logger.Logger
}

// NewRouter wires every route of the tracker API.
func NewRouter(deps Deps) http.Handler {
	a := &API{
		deps:   deps,
		errors: apperrors.NewErrorHandler(deps.Logger),
		logger: deps.Logger,
	}

	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(MetricsMiddleware(deps.Observability))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Get("/health", a.health)

	r.Group(func(r chi.Router) {
		r.Use(a.AuthMiddleware)
		r.Get("/", a.deepLink)
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", a.signup)
		r.Post("/auth/signin", a.signin)

		r.Group(func(r chi.Router) {
			r.Use(a.AuthMiddleware)

			r.Post("/auth/signout", a.signout)
			r.Get("/auth/me", a.me)

			r.Route("/groups", func(r chi.Router) {
				r.Get("/", a.listGroups)
				r.Post("/", a.createGroup)
				r.Route("/{groupID}", func(r chi.Router) {
					r.Get("/", a.getGroup)
					r.Patch("/", a.updateGroup)
					r.Delete("/", a.deleteGroup)
					r.Get("/share", a.shareGroup)
					r.Get("/properties", a.listProperties)
					r.Post("/properties", a.createProperty)
					r.Get("/markers", a.markers)
					r.Get("/search", a.searchGroup)
				})
			})

			r.Route("/properties/{propertyID}", func(r chi.Router) {
				r.Get("/", a.getProperty)
				r.Patch("/", a.updateProperty)
				r.Delete("/", a.deleteProperty)
				r.Post("/favorite", a.toggleFavorite)
			})

			r.Route("/edit-sessions", func(r chi.Router) {
				r.Post("/", a.openEditSession)
				r.Route("/{sessionID}", func(r chi.Router) {
					r.Get("/", a.getEditSession)
					r.Patch("/", a.applyEdit)
					r.Put("/entity", a.switchEntity)
					r.Delete("/", a.closeEditSession)
				})
			})

			r.Route("/extractions", func(r chi.Router) {
				r.Post("/", a.submitExtraction)
				r.Route("/{slot}", func(r chi.Router) {
					r.Get("/", a.getExtraction)
					r.Patch("/", a.editExtraction)
					r.Delete("/", a.cancelExtraction)
					r.Post("/confirm", a.confirmExtraction)
				})
			})
		})
	})

	return r
}

const healthCheckTimeout = 2 * time.Second

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// health runs every dependency check concurrently and answers 503 when any
// of them fails.
func (a *API) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy"}
	if len(a.deps.HealthChecks) == 0 {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	var mu sync.Mutex
	var wg sync.WaitGroup
	resp.Checks = make(map[string]string, len(a.deps.HealthChecks))
	for name, check := range a.deps.HealthChecks {
		wg.Add(1)
		go func(name string, check HealthCheck) {
			defer wg.Done()
			result := "ok"
			if err := check(ctx); err != nil {
				result = err.Error()
			}
			mu.Lock()
			resp.Checks[name] = result
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()

	status := http.StatusOK
	for name, result := range resp.Checks {
		if result != "ok" {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			logger.FromContext(r.Context(), a.logger).Warn("health check failed", map[string]interface{}{
				"dependency": name,
				"error":      result,
			})
		}
	}
	writeJSON(w, status, resp)
}
