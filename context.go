package authgate

import "context"

type clientIPContextKey struct{}
type routePathContextKey struct{}
type userAgentContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. It is copied into
// the IP field of every audit record emitted under that context.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithRoutePath attaches the route that triggered the operation to ctx, so
// audit records can tie sign-ins and redirects back to the page the user was
// on.
func WithRoutePath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, routePathContextKey{}, path)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx. It lands in
// audit record metadata.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func routePathFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	path, _ := ctx.Value(routePathContextKey{}).(string)
	return path
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	userAgent, _ := ctx.Value(userAgentContextKey{}).(string)
	return userAgent
}
