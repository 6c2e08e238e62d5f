package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltparts/storefront/internal/roles"
	"github.com/voltparts/storefront/internal/shared"
)

func TestSessionLifecycle(t *testing.T) {
	sess := NewSession()
	assert.True(t, sess.State().Loading)
	assert.False(t, sess.State().Authenticated())

	sess.Resolve(&Identity{ID: 3, Email: "c@example.com"}, &Profile{UserID: 3, Role: "admin"})
	st := sess.State()
	assert.False(t, st.Loading)
	assert.True(t, st.Authenticated())
	assert.Equal(t, roles.RoleAdmin, st.Role)
	assert.True(t, sess.HasPermission(roles.PermProductsCreate))
	assert.False(t, sess.HasPermission(roles.PermUsersDelete))

	sess.Invalidate()
	st = sess.State()
	assert.False(t, st.Loading)
	assert.False(t, st.Authenticated())
	assert.Equal(t, roles.RoleNone, st.Role)
}

func TestHasPermissionWithoutRole(t *testing.T) {
	sess := NewSession()
	sess.Resolve(&Identity{ID: 3}, nil)
	assert.True(t, sess.State().Authenticated())
	assert.False(t, sess.HasPermission(roles.PermCatalogRead))

	sess.Resolve(&Identity{ID: 3}, &Profile{Role: "owner"})
	assert.Equal(t, roles.RoleNone, sess.State().Role)
	assert.False(t, sess.HasPermission(roles.PermCatalogRead))
}

func TestSubscribeReceivesEveryChange(t *testing.T) {
	sess := NewSession()
	var seen []State
	cancel := sess.Subscribe(func(st State) { seen = append(seen, st) })

	sess.Resolve(&Identity{ID: 1}, &Profile{Role: "cliente"})
	sess.Invalidate()
	cancel()
	cancel()
	sess.Resolve(&Identity{ID: 2}, nil)

	require.Len(t, seen, 2)
	assert.Equal(t, roles.RoleCustomer, seen[0].Role)
	assert.False(t, seen[1].Authenticated())
}

func TestStateFromContextWithoutSession(t *testing.T) {
	st := StateFromContext(context.Background())
	assert.False(t, st.Loading)
	assert.False(t, st.Authenticated())
}

type stubProvider struct {
	calls    atomic.Int32
	identity *Identity
	profile  *Profile
	err      error
	delay    time.Duration
}

func (p *stubProvider) Lookup(ctx context.Context, userID int64) (*Identity, *Profile, error) {
	p.calls.Add(1)
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	return p.identity, p.profile, p.err
}

func TestCachedProviderCollapsesLookups(t *testing.T) {
	next := &stubProvider{
		identity: &Identity{ID: 9, Email: "n@example.com"},
		profile:  &Profile{UserID: 9, Role: "superadmin"},
		delay:    20 * time.Millisecond,
	}
	cached := NewCachedProvider(next, 16, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			identity, profile, err := cached.Lookup(context.Background(), 9)
			assert.NoError(t, err)
			assert.Equal(t, int64(9), identity.ID)
			assert.Equal(t, "superadmin", profile.Role)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), next.calls.Load())

	_, _, err := cached.Lookup(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, int32(1), next.calls.Load())

	cached.Forget(9)
	_, _, err = cached.Lookup(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, int32(2), next.calls.Load())
}

type gatedProvider struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (p *gatedProvider) Lookup(ctx context.Context, userID int64) (*Identity, *Profile, error) {
	if p.calls.Add(1) == 1 {
		close(p.started)
	}
	select {
	case <-p.release:
		return &Identity{ID: userID}, &Profile{UserID: userID, Role: "cliente"}, nil
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

func TestCachedProviderSurvivesCancelledLeader(t *testing.T) {
	next := &gatedProvider{started: make(chan struct{}), release: make(chan struct{})}
	cached := NewCachedProvider(next, 16, time.Minute)

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, _, err := cached.Lookup(leaderCtx, 5)
		leaderErr <- err
	}()
	<-next.started

	type result struct {
		identity *Identity
		err      error
	}
	follower := make(chan result, 1)
	go func() {
		identity, _, err := cached.Lookup(context.Background(), 5)
		follower <- result{identity: identity, err: err}
	}()

	cancelLeader()
	assert.ErrorIs(t, <-leaderErr, context.Canceled)

	close(next.release)
	got := <-follower
	require.NoError(t, got.err)
	assert.Equal(t, int64(5), got.identity.ID)
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestCachedProviderDoesNotCacheErrors(t *testing.T) {
	next := &stubProvider{err: ErrUnknownUser}
	cached := NewCachedProvider(next, 16, time.Minute)

	_, _, err := cached.Lookup(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUnknownUser)
	_, _, err = cached.Lookup(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUnknownUser)
	assert.Equal(t, int32(2), next.calls.Load())
}

func runLoader(t *testing.T, loader Loader, userID string) State {
	t.Helper()
	sessions := shared.NewSessionManager(nil, "test_session", time.Hour, false)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	cookieSess, err := sessions.Load(req.Context(), req)
	require.NoError(t, err)
	if userID != "" {
		cookieSess.SetUser(userID)
	}
	req = req.WithContext(shared.ContextWithSession(req.Context(), cookieSess))

	var got State
	loader.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = StateFromContext(r.Context())
	})).ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func TestLoaderResolvesSignedInUser(t *testing.T) {
	provider := &stubProvider{identity: &Identity{ID: 4}, profile: &Profile{UserID: 4, Role: "cliente"}}
	st := runLoader(t, Loader{Provider: provider}, "4")
	assert.False(t, st.Loading)
	assert.Equal(t, roles.RoleCustomer, st.Role)
}

func TestLoaderAnonymousAndUnknownUsers(t *testing.T) {
	provider := &stubProvider{err: ErrUnknownUser}

	st := runLoader(t, Loader{Provider: provider}, "")
	assert.False(t, st.Loading)
	assert.False(t, st.Authenticated())
	assert.Equal(t, int32(0), provider.calls.Load())

	st = runLoader(t, Loader{Provider: provider}, "4")
	assert.False(t, st.Loading)
	assert.False(t, st.Authenticated())
}

func TestLoaderProviderFailureStaysLoading(t *testing.T) {
	provider := &stubProvider{err: errors.New("connection refused")}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := runLoader(t, Loader{Provider: provider, Logger: logger, Timeout: time.Second}, "4")
	assert.True(t, st.Loading)
}
