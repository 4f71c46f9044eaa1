package middleware

import (
	"context"
	"strings"

	"connectrpc.com/connect"

	"github.com/mpa-academy/schooladmin/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// EmailKey is the context key for storing the authenticated admin's email.
const EmailKey contextKey = "email"

// GetEmail extracts the admin email from the context.
// Returns empty string if not found.
func GetEmail(ctx context.Context) string {
	email, _ := ctx.Value(EmailKey).(string)
	return email
}

// RequireAuth returns an interceptor that validates JWT tokens and requires authentication.
// It extracts the token from the Authorization header, validates it, and adds
// the admin email to the request context.
func RequireAuth(jwtManager *auth.JWTManager) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			authHeader := req.Header().Get("Authorization")
			if authHeader == "" {
				return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
			}

			// Parse Bearer token
			scheme, tokenString, ok := strings.Cut(authHeader, " ")
			if !ok || scheme != "Bearer" || tokenString == "" {
				return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidToken)
			}

			claims, err := jwtManager.Validate(tokenString)
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}

			ctx = context.WithValue(ctx, EmailKey, claims.Email)
			return next(ctx, req)
		}
	}
}
