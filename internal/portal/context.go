package portal

import "context"

type ctxKey struct{}

// WithCoordinator scopes c to ctx.
func WithCoordinator(ctx context.Context, c *Coordinator) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the coordinator scoped by WithCoordinator. Calling it
// outside such a scope is a programming error and panics.
func FromContext(ctx context.Context) *Coordinator {
	c, ok := ctx.Value(ctxKey{}).(*Coordinator)
	if !ok || c == nil {
		panic("portal: FromContext called outside a coordinator scope")
	}
	return c
}
