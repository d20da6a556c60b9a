package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"meritledger/pkg/domain"
	dErrors "meritledger/pkg/domain-errors"
	"meritledger/pkg/platform/httputil"
	"meritledger/pkg/requestcontext"
)

// TokenValidator validates a bearer token and returns its claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*TokenClaims, error)
}

// TokenClaims are the claims the transport needs from a validated token.
type TokenClaims struct {
	Principal domain.Principal
	TokenID   string
}

const bearerPrefix = "Bearer "

// Authenticate resolves the caller from an optional bearer token. Requests
// without an Authorization header pass through anonymously; a present but
// invalid token is rejected.
func Authenticate(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)
			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok {
				logger.WarnContext(ctx, "unauthenticated access - malformed authorization header",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "Missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthenticated access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "Invalid or expired token"))
				return
			}

			ctx = requestcontext.WithCaller(ctx, claims.Principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireCaller rejects anonymous requests. Mount it on mutating routes after
// Authenticate.
func RequireCaller(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if requestcontext.Caller(ctx).IsZero() {
				logger.WarnContext(ctx, "unauthenticated access - missing token",
					"request_id", requestcontext.RequestID(ctx),
					"path", r.URL.Path,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "authentication required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
