package audit

import "context"

type actorKey struct{}

// WithActor attaches the acting operator to ctx.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actorID)
}

// ActorFromContext returns nil for system or anonymous calls.
func ActorFromContext(ctx context.Context) *string {
	actor, ok := ctx.Value(actorKey{}).(string)
	if !ok || actor == "" {
		return nil
	}
	return &actor
}

type clientIPKey struct{}

func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}
