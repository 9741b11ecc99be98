// Package middleware provides HTTP middleware for the scorecard API.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
	"github.com/hugo-lorenzo-mato/scorecard/internal/logging"
)

// Identity headers set by the upstream auth gateway.
const (
	HeaderUserID = "X-User-ID"
	HeaderOrgID  = "X-Organization-ID"
	HeaderRole   = "X-User-Role"
)

type contextKey string

const callerKey contextKey = "caller"

// CallerFrom returns the caller stored by Identity. The zero Caller fails
// validation in the service layer.
func CallerFrom(ctx context.Context) core.Caller {
	c, _ := ctx.Value(callerKey).(core.Caller)
	return c
}

// WithCaller stores a caller in ctx.
func WithCaller(ctx context.Context, c core.Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

// RequestMetadata copies the request id, remote address and user agent into
// the context for audit entries and log correlation. It must run after
// chi's RequestID and RealIP middleware.
func RequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := core.WithRequestContext(r.Context(), core.RequestContext{
			RequestID:  chimw.GetReqID(r.Context()),
			RemoteAddr: r.RemoteAddr,
			UserAgent:  r.UserAgent(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Identity reads the caller from the gateway headers and rejects requests
// that carry none.
//
// Error responses:
//   - 401 Unauthorized: user or organization header missing, or unknown role
func Identity(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := core.Caller{
				UserID:         strings.TrimSpace(r.Header.Get(HeaderUserID)),
				OrganizationID: strings.TrimSpace(r.Header.Get(HeaderOrgID)),
				Role:           core.Role(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderRole)))),
			}
			if err := caller.Validate(); err != nil {
				logger.WithContext(r.Context()).Warn("rejected request without identity",
					"path", r.URL.Path,
					"method", r.Method,
					"error", err,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error": "caller identity is required",
					"code":  "UNAUTHENTICATED",
				})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}
