package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/daap14/affconsole/internal/api/response"
	"github.com/daap14/affconsole/internal/profile"
)

// PermissionChecker answers whether a caller holds a capability token.
type PermissionChecker interface {
	CallerHas(ctx context.Context, caller profile.Caller, token string) (bool, error)
}

// RequirePermission returns middleware that rejects callers lacking token with 403.
func RequirePermission(checker PermissionChecker, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			caller := GetCaller(r.Context())
			if caller == nil {
				response.Err(w, http.StatusUnauthorized, response.CodeUnauthorized, "Bearer token is required", requestID)
				return
			}

			allowed, err := checker.CallerHas(r.Context(), *caller, token)
			if err != nil {
				slog.Error("failed to check permission", "error", err, "permission", token, "requestId", requestID)
				response.Err(w, http.StatusInternalServerError, response.CodeInternal, "Authorization failed", requestID)
				return
			}
			if !allowed {
				response.Err(w, http.StatusForbidden, response.CodeForbidden, "Missing permission "+token, requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
