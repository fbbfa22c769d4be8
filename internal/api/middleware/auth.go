package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/daap14/affconsole/internal/api/response"
	"github.com/daap14/affconsole/internal/profile"
)

const callerKey contextKey = "caller"

type accessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Auth is middleware that verifies the HS256 bearer token issued by the
// identity provider and stores the caller in the request context. Missing,
// malformed or expired tokens return 401.
func Auth(secret []byte) func(http.Handler) http.Handler {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	keyFunc := func(*jwt.Token) (any, error) { return secret, nil }

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			raw, ok := bearerToken(r)
			if !ok {
				response.Err(w, http.StatusUnauthorized, response.CodeUnauthorized, "Bearer token is required", requestID)
				return
			}

			var claims accessClaims
			if _, err := parser.ParseWithClaims(raw, &claims, keyFunc); err != nil || claims.Subject == "" {
				response.Err(w, http.StatusUnauthorized, response.CodeUnauthorized, "Invalid or expired token", requestID)
				return
			}

			caller := &profile.Caller{UserID: claims.Subject, Email: claims.Email}
			ctx := context.WithValue(r.Context(), callerKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// GetCaller retrieves the authenticated caller from the request context.
func GetCaller(ctx context.Context) *profile.Caller {
	if c, ok := ctx.Value(callerKey).(*profile.Caller); ok {
		return c
	}
	return nil
}

// WithCaller returns a copy of ctx carrying caller.
func WithCaller(ctx context.Context, caller *profile.Caller) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}
