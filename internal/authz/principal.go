// Package authz holds the server-side access policy for every collection the
// clinic backend reads and writes.
package authz

import "context"

// Principal is the authenticated caller, taken from a verified ID token.
type Principal struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
}

type principalKey struct{}

// WithPrincipal attaches p to ctx. A nil p marks the request as anonymous.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the caller attached to ctx, or nil when anonymous.
func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}

// ActorOf returns the caller's UID, or "" when anonymous.
func ActorOf(ctx context.Context) string {
	if p := PrincipalFrom(ctx); p != nil {
		return p.UID
	}
	return ""
}
