package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/seoulsafe/sinkhole-api/errors"
)

// ContextKey is used for storing auth data in context.
type ContextKey string

const (
	// ClaimsContextKey is the context key for JWT claims.
	ClaimsContextKey ContextKey = "claims"
	// TokenContextKey is the context key for the raw JWT token.
	TokenContextKey ContextKey = "token"
)

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header.
func BearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrNoToken
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", ErrInvalidToken
	}
	return parts[1], nil
}

// Middleware rejects requests without a valid bearer token.
func Middleware(jwtManager *JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := BearerToken(r)
			if err != nil {
				if err == ErrNoToken {
					errors.WriteError(w, errors.Unauthorized("Not authenticated"), middleware.GetReqID(r.Context()))
				} else {
					errors.WriteError(w, errors.Unauthorized("invalid authorization header format"), middleware.GetReqID(r.Context()))
				}
				return
			}

			claims, err := jwtManager.ValidateToken(tokenString)
			if err != nil {
				if err == ErrTokenExpired {
					errors.WriteError(w, errors.Unauthorized("token expired"), middleware.GetReqID(r.Context()))
				} else {
					errors.WriteError(w, errors.Unauthorized("Could not validate credentials"), middleware.GetReqID(r.Context()))
				}
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			ctx = context.WithValue(ctx, TokenContextKey, tokenString)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalMiddleware adds claims to the context when a valid bearer token is
// present and lets every request through.
func OptionalMiddleware(jwtManager *JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenString, err := BearerToken(r); err == nil {
				if claims, err := jwtManager.ValidateToken(tokenString); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), ClaimsContextKey, claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetClaims retrieves claims from context.
func GetClaims(ctx context.Context) *Claims {
	claims, ok := ctx.Value(ClaimsContextKey).(*Claims)
	if !ok {
		return nil
	}
	return claims
}

// GetTokenFromContext retrieves the raw JWT token from context.
func GetTokenFromContext(ctx context.Context) string {
	token, ok := ctx.Value(TokenContextKey).(string)
	if !ok {
		return ""
	}
	return token
}

// WithClaims adds claims to the context. Useful for testing.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsContextKey, claims)
}
