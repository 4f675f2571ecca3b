package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskapp/taskstream/internal/client/token"
	"github.com/taskapp/taskstream/internal/core/domain"
)

type fakeNav struct {
	mu      sync.Mutex
	current string
	visits  []string
}

func (n *fakeNav) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

func (n *fakeNav) Go(route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = route
	n.visits = append(n.visits, route)
}

func (n *fakeNav) history() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.visits...)
}

type fakeRefresher struct {
	mu    sync.Mutex
	tok   string
	user  *domain.Profile
	err   error
	calls int
}

func (r *fakeRefresher) RefreshSession(context.Context) (string, *domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.tok, r.user, r.err
}

func (r *fakeRefresher) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type guardFixture struct {
	guard     *Guard
	store     *Store
	kv        *MemKV
	nav       *fakeNav
	refresher *fakeRefresher
	now       time.Time
	mu        sync.Mutex
}

func (f *guardFixture) setNow(at time.Time) {
	f.mu.Lock()
	f.now = at
	f.mu.Unlock()
}

func newGuardFixture(t *testing.T, startRoute string) *guardFixture {
	t.Helper()
	f := &guardFixture{now: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
	codec := &token.Codec{Now: func() time.Time {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.now
	}}
	f.kv = NewMemKV()
	f.store = NewStore(f.kv, codec, zerolog.Nop())
	f.nav = &fakeNav{current: startRoute}
	f.refresher = &fakeRefresher{}
	f.guard = NewGuard(f.store, codec, f.nav, f.refresher, GuardConfig{
		CheckInterval: time.Hour, // ticks driven manually via CheckNow
	}, zerolog.Nop())
	t.Cleanup(f.guard.Close)
	return f
}

func (f *guardFixture) tokenExpiring(t *testing.T, in time.Duration) string {
	t.Helper()
	f.mu.Lock()
	exp := f.now.Add(in)
	f.mu.Unlock()
	return signedToken(t, exp)
}

func TestGuard_InitializeRestoresSession(t *testing.T) {
	f := newGuardFixture(t, RouteTasks)
	require.True(t, f.store.Save(f.tokenExpiring(t, time.Hour), aliceProfile()))

	f.guard.Initialize()

	assert.True(t, f.guard.Initialized())
	assert.True(t, f.guard.IsAuthenticated())
	require.NotNil(t, f.guard.User())
	assert.Equal(t, "alice", f.guard.User().Username)
	assert.Empty(t, f.nav.history(), "no navigation for a valid session")
}

func TestGuard_InitializeWithoutSessionRedirects(t *testing.T) {
	f := newGuardFixture(t, RouteTasks)

	f.guard.Initialize()

	assert.False(t, f.guard.IsAuthenticated())
	assert.Equal(t, []string{RouteLogin}, f.nav.history())
	// The interrupted location is recorded for after login.
	assert.Equal(t, RouteTasks, f.store.ConsumeRedirect())
}

func TestGuard_InitializeOnAuthRouteStaysPut(t *testing.T) {
	f := newGuardFixture(t, RouteLogin)

	f.guard.Initialize()

	assert.False(t, f.guard.IsAuthenticated())
	assert.Empty(t, f.nav.history(), "already on an auth route, no redirect")
}

func TestGuard_LoginValidation(t *testing.T) {
	f := newGuardFixture(t, RouteLogin)
	f.guard.Initialize()

	valid := f.tokenExpiring(t, time.Hour)

	err := f.guard.Login("not-a-jwt", aliceProfile())
	assert.ErrorIs(t, err, ErrInvalidAuthPayload)

	err = f.guard.Login(valid, &domain.Profile{ID: 0})
	assert.ErrorIs(t, err, ErrInvalidAuthPayload)

	err = f.guard.Login(f.tokenExpiring(t, -time.Minute), aliceProfile())
	assert.ErrorIs(t, err, ErrInvalidAuthPayload)

	assert.False(t, f.guard.IsAuthenticated())
	_, hasToken := f.kv.Get(TokenKey)
	assert.False(t, hasToken, "rejected login must not write storage")
}

func TestGuard_LoginLandsOnTasks(t *testing.T) {
	f := newGuardFixture(t, RouteLogin)
	f.guard.Initialize()

	require.NoError(t, f.guard.Login(f.tokenExpiring(t, time.Hour), aliceProfile()))

	assert.True(t, f.guard.IsAuthenticated())
	assert.Equal(t, RouteTasks, f.nav.Current())

	// Session reached durable storage.
	tok, user := f.store.Load()
	assert.NotEmpty(t, tok)
	require.NotNil(t, user)
}

func TestGuard_LoginHonorsRedirectBreadcrumb(t *testing.T) {
	f := newGuardFixture(t, "/tasks/42")
	f.guard.Initialize() // redirects to login, records /tasks/42

	require.NoError(t, f.guard.Login(f.tokenExpiring(t, time.Hour), aliceProfile()))

	assert.Equal(t, "/tasks/42", f.nav.Current())
	// Breadcrumb is consumed; a second login lands on the default.
	f.guard.Logout()
	require.NoError(t, f.guard.Login(f.tokenExpiring(t, time.Hour), aliceProfile()))
	assert.Equal(t, RouteTasks, f.nav.Current())
}

func TestGuard_LogoutClearsEverything(t *testing.T) {
	f := newGuardFixture(t, RouteLogin)
	f.guard.Initialize()
	require.NoError(t, f.guard.Login(f.tokenExpiring(t, time.Hour), aliceProfile()))

	f.guard.Logout()

	assert.False(t, f.guard.IsAuthenticated())
	assert.Nil(t, f.guard.User())
	assert.Equal(t, RouteLogin, f.nav.Current())
	tok, user := f.store.Load()
	assert.Empty(t, tok)
	assert.Nil(t, user)
}

func TestGuard_CheckNowEndsExpiredSession(t *testing.T) {
	f := newGuardFixture(t, RouteLogin)
	f.guard.Initialize()
	require.NoError(t, f.guard.Login(f.tokenExpiring(t, time.Hour), aliceProfile()))
	f.nav.Go(RouteTasks)

	// Advance past expiry and run one liveness check.
	f.setNow(f.now.Add(2 * time.Hour))
	f.guard.CheckNow()

	assert.False(t, f.guard.IsAuthenticated())
	assert.Equal(t, RouteLogin, f.nav.Current())
	tok, _ := f.store.Load()
	assert.Empty(t, tok)
}

func TestGuard_CheckNowRefreshesExpiringToken(t *testing.T) {
	f := newGuardFixture(t, RouteLogin)
	f.guard.Initialize()
	require.NoError(t, f.guard.Login(f.tokenExpiring(t, time.Hour), aliceProfile()))

	fresh := f.tokenExpiring(t, 24*time.Hour)
	f.refresher.tok = fresh
	f.refresher.user = aliceProfile()

	// Move inside the refresh window but before expiry.
	f.setNow(f.now.Add(time.Hour - 2*time.Minute))
	f.guard.CheckNow()

	assert.Equal(t, 1, f.refresher.callCount())
	assert.Equal(t, fresh, f.guard.Token())
	assert.True(t, f.guard.IsAuthenticated())
}

func TestGuard_CheckNowRefreshFailureKeepsSession(t *testing.T) {
	f := newGuardFixture(t, RouteLogin)
	f.guard.Initialize()
	old := f.tokenExpiring(t, time.Hour)
	require.NoError(t, f.guard.Login(old, aliceProfile()))

	f.refresher.err = errors.New("server unreachable")

	f.setNow(f.now.Add(time.Hour - 2*time.Minute))
	f.guard.CheckNow()

	// The old token still has time left; the session survives for now.
	assert.Equal(t, old, f.guard.Token())
	assert.True(t, f.guard.IsAuthenticated())
}

func TestGuard_RequireAuthDebounced(t *testing.T) {
	f := newGuardFixture(t, RouteTasks)

	// Concurrent triggers inside the debounce window navigate once.
	f.guard.Initialize()
	f.nav.mu.Lock()
	f.nav.current = RouteTasks
	f.nav.mu.Unlock()
	f.guard.requireAuth()
	f.guard.requireAuth()

	assert.Equal(t, []string{RouteLogin}, f.nav.history())

	// After the window the redirect can fire again.
	time.Sleep(redirectDebounce + 50*time.Millisecond)
	f.nav.mu.Lock()
	f.nav.current = RouteTasks
	f.nav.mu.Unlock()
	f.guard.requireAuth()
	assert.Equal(t, []string{RouteLogin, RouteLogin}, f.nav.history())
}

func TestGuard_StoreChangedIgnoresOtherKeys(t *testing.T) {
	f := newGuardFixture(t, RouteTasks)
	require.True(t, f.store.Save(f.tokenExpiring(t, time.Hour), aliceProfile()))
	f.guard.Initialize()

	f.guard.StoreChanged("theme")
	assert.True(t, f.guard.IsAuthenticated())

	// External clear of the token ends the session on notification.
	f.store.Clear()
	f.guard.StoreChanged(TokenKey)
	assert.False(t, f.guard.IsAuthenticated())
}
