package auth

import (
	"context"
	"time"

	"ms-passes/internal/models"
)

// Principal is the authenticated user of a request.
type Principal struct {
	UserID    int64
	Username  string
	Role      models.Role
	TokenID   string
	ExpiresAt time.Time
}

type contextKey string

const principalKey contextKey = "principal"

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the principal stored by the middleware.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
