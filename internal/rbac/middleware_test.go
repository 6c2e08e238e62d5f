package rbac

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltparts/storefront/internal/auth"
	"github.com/voltparts/storefront/internal/platform/httpx"
	"github.com/voltparts/storefront/internal/roles"
)

type decisionLog struct {
	entries []string
}

func (l *decisionLog) ObserveDecision(outcome, reason string) {
	l.entries = append(l.entries, outcome+"/"+reason)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
}

func serve(mw func(http.Handler) http.Handler, sess *auth.Session, wantJSON bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin/products", nil)
	if wantJSON {
		req.Header.Set("Accept", "application/json")
	}
	if sess != nil {
		req = req.WithContext(auth.WithSession(req.Context(), sess))
	}
	rec := httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(rec, req)
	return rec
}

func resolved(role roles.Role) *auth.Session {
	sess := auth.NewSession()
	if role == roles.RoleNone {
		sess.Resolve(nil, nil)
		return sess
	}
	sess.Resolve(&auth.Identity{ID: 7, Email: "x@example.com"}, &auth.Profile{UserID: 7, Role: string(role)})
	return sess
}

func TestGuardRedirectsBrowsers(t *testing.T) {
	m := Middleware{}

	rec := serve(m.RequireAdmin(), resolved(roles.RoleNone), false)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, LoginPath, rec.Header().Get("Location"))

	rec = serve(m.RequireAdmin(), resolved(roles.RoleCustomer), false)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, HomePath, rec.Header().Get("Location"))

	rec = serve(m.RequireAdmin(), resolved(roles.RoleAdmin), false)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestGuardAnswersJSONClientsWithProblems(t *testing.T) {
	m := Middleware{}

	rec := serve(m.RequireAdmin(), resolved(roles.RoleNone), true)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, LoginPath, problem.Redirect)

	rec = serve(m.RequireSuperAdmin(), resolved(roles.RoleAdmin), true)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, HomePath, problem.Redirect)
}

func TestGuardWhileLoadingNeverRedirects(t *testing.T) {
	m := Middleware{}
	for _, wantJSON := range []bool{false, true} {
		rec := serve(m.RequireCustomer(), auth.NewSession(), wantJSON)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "1", rec.Header().Get("Retry-After"))
		assert.Empty(t, rec.Header().Get("Location"))
	}
}

func TestGuardWithoutAuthContextTreatsCallerAsAnonymous(t *testing.T) {
	rec := serve(Middleware{}.Guard(), nil, false)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, LoginPath, rec.Header().Get("Location"))

	rec = serve(Middleware{}.Guard(Public()), nil, false)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestGuardAnyPermission(t *testing.T) {
	m := Middleware{}
	users := m.RequireAdmin(AnyPermission(roles.PermUsersUpdate, roles.PermUsersRead))

	assert.Equal(t, http.StatusTeapot, serve(users, resolved(roles.RoleAdmin), true).Code)
	assert.Equal(t, http.StatusTeapot, serve(users, resolved(roles.RoleSuperAdmin), true).Code)
	assert.Equal(t, http.StatusForbidden, serve(users, resolved(roles.RoleCustomer), true).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(users, resolved(roles.RoleNone), true).Code)

	rec := serve(m.Guard(AnyPermission(roles.PermUsersUpdate)), resolved(roles.RoleAdmin), true)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGuardRecordsDecisions(t *testing.T) {
	log := &decisionLog{}
	m := Middleware{Recorder: log}

	serve(m.RequireAdmin(), auth.NewSession(), true)
	serve(m.RequireAdmin(), resolved(roles.RoleNone), true)
	serve(m.RequireAdmin(), resolved(roles.RoleCustomer), true)
	serve(m.RequireAdmin(RequirePermissions(roles.PermUsersDelete)), resolved(roles.RoleAdmin), true)
	serve(m.RequireAdmin(), resolved(roles.RoleAdmin), true)

	assert.Equal(t, []string{
		"loading/",
		"denied/unauthenticated",
		"denied/role",
		"denied/permission",
		"allowed/",
	}, log.entries)
}

func TestGuardReactsToInvalidation(t *testing.T) {
	sess := resolved(roles.RoleAdmin)
	m := Middleware{}
	assert.Equal(t, http.StatusTeapot, serve(m.RequireAdmin(), sess, true).Code)

	sess.Invalidate()
	assert.Equal(t, http.StatusUnauthorized, serve(m.RequireAdmin(), sess, true).Code)
}

func TestVisible(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := auth.WithSession(req.Context(), resolved(roles.RoleAdmin))
	assert.True(t, Visible(ctx, Admin()))
	assert.False(t, Visible(ctx, SuperAdmin()))

	ctx = auth.WithSession(req.Context(), auth.NewSession())
	assert.False(t, Visible(ctx, Public()), "nothing is visible while loading")
}
