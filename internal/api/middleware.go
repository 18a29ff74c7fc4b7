// internal/api/middleware.go
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "property-tracker/internal/common/errors"
	"property-tracker/internal/common/logger"
	"property-tracker/internal/common/metrics"
	"property-tracker/internal/common/observability"
	"property-tracker/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type contextKey string

const sessionKey contextKey = "session"

// LoggerMiddleware scopes a logger to the request id and writes one access
// log line per request.
func LoggerMiddleware(log logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			reqLog := log
			if id := middleware.GetReqID(r.Context()); id != "" {
				reqLog = log.With(map[string]interface{}{"request_id": id})
			}

			next.ServeHTTP(ww, r.WithContext(logger.IntoContext(r.Context(), reqLog)))

			reqLog.Info("request completed", map[string]interface{}{
				"method":        r.Method,
				"path":          r.URL.Path,
				"status":        ww.Status(),
				"bytes_written": ww.BytesWritten(),
				"duration_ms":   time.Since(start).Milliseconds(),
			})
		})
	}
}

// MetricsMiddleware counts requests by route pattern. obs may be nil.
func MetricsMiddleware(obs *observability.Observability) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := routePattern(r)
			metrics.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
			if obs != nil {
				obs.RecordRequest(r.Context(), route, status, time.Since(start))
			}
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// AuthMiddleware resolves the bearer token to a session and rejects the
// request when there is none.
func (a *API) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			a.errors.Write(w, r, apperrors.NewAuthenticationError("missing bearer token"))
			return
		}

		session, err := a.deps.Auth.CurrentUser(r.Context(), token)
		if err != nil {
			a.fail(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) < len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

func sessionFrom(ctx context.Context) *models.Session {
	s, _ := ctx.Value(sessionKey).(*models.Session)
	return s
}

// ownerID is the authenticated user. Only called behind AuthMiddleware.
func ownerID(r *http.Request) string {
	if s := sessionFrom(r.Context()); s != nil {
		return s.UserID
	}
	return ""
}
