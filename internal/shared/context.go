package shared

import "context"

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// CallerFromContext returns the caller attached to the request session.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	sess := SessionFromContext(ctx)
	if sess == nil || !sess.Caller.Valid() {
		return Caller{}, false
	}
	return sess.Caller, true
}
