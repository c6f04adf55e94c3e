// Package context provides request-scoped value extraction.
package context

import (
	"context"
)

// Actor identifies the authenticated warehouse operator performing a request.
// Its ID is stamped onto movements as performed_by and onto cycle counts as
// resolved_by; the ledger itself does no authorization.
type Actor struct {
	ID    string
	Name  string
	Email string
}

type actorKey struct{}

// WithActor adds Actor to context.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// GetActor returns Actor from context, or nil.
func GetActor(ctx context.Context) *Actor {
	if v, ok := ctx.Value(actorKey{}).(*Actor); ok {
		return v
	}
	return nil
}

// ActorID returns the actor id from context or "system" when the operation
// runs outside a request (migrations, scheduled reconciliation).
func ActorID(ctx context.Context) string {
	if a := GetActor(ctx); a != nil && a.ID != "" {
		return a.ID
	}
	return "system"
}
