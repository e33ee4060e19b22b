package middleware

import (
	"context"

	"github.com/tmnhat/platterly-backend/pkg/auth"
	"github.com/tmnhat/platterly-backend/pkg/enums"
)

type contextKey string

const ctxActor contextKey = "actor"

// ActorFromContext returns the authenticated principal seeded by Auth.
func ActorFromContext(ctx context.Context) (auth.Actor, bool) {
	if ctx == nil {
		return auth.Actor{}, false
	}
	if v, ok := ctx.Value(ctxActor).(auth.Actor); ok {
		return v, true
	}
	return auth.Actor{}, false
}

func RoleFromContext(ctx context.Context) enums.ActorRole {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return ""
	}
	return actor.Role
}

// WithActor injects the principal into the context. Exposed for tests.
func WithActor(ctx context.Context, actor auth.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}
