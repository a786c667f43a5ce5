package auth

import (
	"context"

	"inkwell/internal/models"
)

type contextKey string

const contextKeyPrincipal contextKey = "principal"

// WithPrincipal returns a copy of ctx carrying the authenticated user
func WithPrincipal(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, contextKeyPrincipal, user)
}

// PrincipalFromContext retrieves the user attached by the gate, if any
func PrincipalFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(contextKeyPrincipal).(*models.User)
	if !ok || user == nil {
		return nil, false
	}
	return user, true
}
