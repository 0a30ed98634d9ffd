package models

import "context"

// Actor identifies who triggered a calendar mutation.
type Actor struct {
	ID        string
	Role      string
	IP        string
	UserAgent string
}

type actorKey struct{}

// WithActor stores the request actor on ctx.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor stored on ctx, if any.
func ActorFrom(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}
