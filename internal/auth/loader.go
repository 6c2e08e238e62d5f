package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/voltparts/storefront/internal/shared"
)

// Loader bootstraps an authentication context for every request from the
// cookie session's user id.
type Loader struct {
	Provider Provider
	Logger   *slog.Logger
	// Timeout bounds the provider lookup. Zero means the request deadline.
	Timeout time.Duration
}

// Middleware attaches a resolved (or still loading) Session to the request.
func (l Loader) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := NewSession()
		l.bootstrap(r.Context(), sess)
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

func (l Loader) bootstrap(ctx context.Context, sess *Session) {
	userID, ok := shared.SessionUserID(ctx)
	if !ok || l.Provider == nil {
		sess.Resolve(nil, nil)
		return
	}
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}
	identity, profile, err := l.Provider.Lookup(ctx, userID)
	switch {
	case errors.Is(err, ErrUnknownUser):
		sess.Resolve(nil, nil)
	case err != nil:
		// Left loading: the guard waits instead of redirecting.
		if l.Logger != nil {
			l.Logger.Warn("resolve auth session", slog.Int64("user_id", userID), slog.Any("error", err))
		}
	default:
		sess.Resolve(identity, profile)
	}
}
