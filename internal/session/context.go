package session

import "context"

type clientMetaKey struct{}

// WithClientMeta returns a context carrying the caller's client metadata.
func WithClientMeta(ctx context.Context, meta ClientMeta) context.Context {
	return context.WithValue(ctx, clientMetaKey{}, meta)
}

// ClientMetaFrom returns the client metadata set by WithClientMeta, or the zero value.
func ClientMetaFrom(ctx context.Context) ClientMeta {
	meta, _ := ctx.Value(clientMetaKey{}).(ClientMeta)
	return meta
}

// ClientIP returns the caller's IP address from ctx, or "" when unknown.
func ClientIP(ctx context.Context) string {
	return ClientMetaFrom(ctx).IPAddress
}
