package rbac

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/voltparts/storefront/internal/auth"
	"github.com/voltparts/storefront/internal/platform/httpx"
)

// DecisionRecorder receives every guard decision, e.g. for metrics.
type DecisionRecorder interface {
	ObserveDecision(outcome, reason string)
}

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Logger   *slog.Logger
	Recorder DecisionRecorder
}

// Guard gates the wrapped handler on a Policy built from opts.
func (m Middleware) Guard(opts ...Option) func(http.Handler) http.Handler {
	return m.Enforce(NewPolicy(opts...))
}

// RequireAdmin is Guard with the administrator preset.
func (m Middleware) RequireAdmin(opts ...Option) func(http.Handler) http.Handler {
	return m.Guard(append([]Option{Admin()}, opts...)...)
}

// RequireSuperAdmin is Guard with the super administrator preset.
func (m Middleware) RequireSuperAdmin(opts ...Option) func(http.Handler) http.Handler {
	return m.Guard(append([]Option{SuperAdmin()}, opts...)...)
}

// RequireCustomer is Guard with the signed-in customer preset.
func (m Middleware) RequireCustomer(opts ...Option) func(http.Handler) http.Handler {
	return m.Guard(append([]Option{Customer()}, opts...)...)
}

// Enforce gates the wrapped handler on p.
func (m Middleware) Enforce(p Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := p.Evaluate(auth.StateFromContext(r.Context()))
			m.record(d)
			if d.Outcome == Allowed {
				next.ServeHTTP(w, r)
				return
			}
			m.respond(w, r, d)
		})
	}
}

// Visible re-derives a decision at render time without any side effect.
// Handlers use it to leave out fields a caller may not see.
func Visible(ctx context.Context, opts ...Option) bool {
	return NewPolicy(opts...).Evaluate(auth.StateFromContext(ctx)).Outcome == Allowed
}

func (m Middleware) record(d Decision) {
	if m.Recorder != nil {
		m.Recorder.ObserveDecision(d.Outcome.String(), string(d.Reason))
	}
}

func (m Middleware) respond(w http.ResponseWriter, r *http.Request, d Decision) {
	if d.Outcome == Loading {
		w.Header().Set("Retry-After", "1")
		if httpx.WantsJSON(r) {
			httpx.Problem(w, http.StatusServiceUnavailable, "Session Loading", "the session is still being resolved")
			return
		}
		http.Error(w, "Loading…", http.StatusServiceUnavailable)
		return
	}

	if m.Logger != nil {
		m.Logger.Debug("access denied",
			slog.String("path", r.URL.Path),
			slog.String("reason", string(d.Reason)),
			slog.String("redirect", d.Redirect))
	}
	if httpx.WantsJSON(r) {
		status, title := http.StatusForbidden, "Forbidden"
		if d.Reason == ReasonUnauthenticated {
			status, title = http.StatusUnauthorized, "Unauthorized"
		}
		httpx.ProblemWithRedirect(w, status, title, d.Redirect)
		return
	}
	http.Redirect(w, r, d.Redirect, http.StatusSeeOther)
}
