package auth

import "context"

type sessionContextKey struct{}

// WithSession stores the authentication context in ctx.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// FromContext returns the authentication context, or nil.
func FromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// StateFromContext snapshots the authentication context. Without one the
// caller is treated as resolved and unauthenticated.
func StateFromContext(ctx context.Context) State {
	if sess := FromContext(ctx); sess != nil {
		return sess.State()
	}
	return State{}
}
