package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/partsmarket-backend/pkg/logger"
)

const ctxAccessLog contextKey = "access_log"

// accessLog collects identities resolved deeper in the chain so the access
// line written by Logging can carry them.
type accessLog struct {
	userID string
	orgID  string
}

func accessLogFrom(ctx context.Context) *accessLog {
	if ctx == nil {
		return nil
	}
	v, _ := ctx.Value(ctxAccessLog).(*accessLog)
	return v
}

// Health checks and scrapes log at debug so they do not drown marketplace traffic.
func quietPath(path string) bool {
	return strings.HasPrefix(path, "/health/") || path == "/metrics"
}

// Logging writes one request.complete line per request with the chi route,
// status, latency, and the user and org resolved by Auth and RequireOrg.
func Logging(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logg == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := &accessLog{}
			ctx := context.WithValue(r.Context(), ctxAccessLog, info)
			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()

			next.ServeHTTP(rec, r.WithContext(ctx))

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			fields := map[string]any{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      status,
				"duration_ms": time.Since(start).Milliseconds(),
			}
			if rc := chi.RouteContext(ctx); rc != nil {
				if pattern := rc.RoutePattern(); pattern != "" {
					fields["route"] = pattern
				}
			}
			if info.userID != "" {
				fields["user_id"] = info.userID
			}
			if info.orgID != "" {
				fields["org_id"] = info.orgID
			}
			logCtx := logg.WithFields(ctx, fields)

			switch {
			case status >= http.StatusInternalServerError:
				logg.Warn(logCtx, "request.complete")
			case quietPath(r.URL.Path):
				logg.Debug(logCtx, "request.complete")
			default:
				logg.Info(logCtx, "request.complete")
			}
		})
	}
}
