package auth

import "context"

type contextKey string

// #nosec G101 - context key constant, not a credential
const identityKey contextKey = "authenticated_identity"

// WithIdentity returns a context carrying the authenticated identity.
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFrom retrieves the authenticated identity from the context.
func IdentityFrom(ctx context.Context) (string, bool) {
	identity, ok := ctx.Value(identityKey).(string)
	return identity, ok
}
