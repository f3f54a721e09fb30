package account

import "context"

// Caller is the verified identity behind a request.
type Caller struct {
	UID   string
	Email string
}

type callerKey struct{}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	if !ok || c.UID == "" {
		return Caller{}, false
	}
	return c, true
}
