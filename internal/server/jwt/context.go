package jwt

import "context"

type claimsKey struct{}

// NewContext returns a copy of ctx carrying the verified claims
func NewContext(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// FromContext extracts claims attached by the authentication middleware
func FromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok && claims != nil
}
