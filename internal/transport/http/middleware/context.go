package middleware

import (
	"context"

	"hrdesk/internal/domain/auth"
)

type ctxKey string

const ctxKeyUser ctxKey = "actor"

func WithActor(ctx context.Context, actor auth.Actor) context.Context {
	return context.WithValue(ctx, ctxKeyUser, actor)
}

func GetUser(ctx context.Context) (auth.Actor, bool) {
	actor, ok := ctx.Value(ctxKeyUser).(auth.Actor)
	return actor, ok
}
