package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskapp/taskstream/internal/client/token"
	"github.com/taskapp/taskstream/internal/core/domain"
)

// Routes the guard navigates between.
const (
	RouteLogin    = "/login"
	RouteRegister = "/register"
	RouteTasks    = "/tasks"
)

const (
	// DefaultCheckInterval is how often the liveness check re-examines the
	// token while authenticated.
	DefaultCheckInterval = 30 * time.Second
	// DefaultRefreshWithin is the remaining-lifetime threshold below which
	// the guard asks its Refresher for a new token.
	DefaultRefreshWithin = 5 * time.Minute

	// redirectDebounce collapses concurrent authentication-required
	// triggers into a single navigation.
	redirectDebounce = 100 * time.Millisecond
)

// ErrInvalidAuthPayload marks a login rejected before it reached the
// server's verdict: bad token format, bad profile shape, or a token that
// arrived already expired. It signals a misbehaving server, not a
// user-facing auth failure.
var ErrInvalidAuthPayload = errors.New("invalid credentials payload")

// Navigator abstracts the routing surface the guard steers.
type Navigator interface {
	Current() string
	Go(route string)
}

// Refresher renews a near-expiry token. Optional; without one the
// expiring-soon signal is ignored and the session simply runs out.
type Refresher interface {
	RefreshSession(ctx context.Context) (string, *domain.Profile, error)
}

// GuardConfig tunes the guard's timers. Zero values take the defaults.
type GuardConfig struct {
	CheckInterval time.Duration
	RefreshWithin time.Duration
}

// Guard owns the in-memory session state: one instance per running app.
// It derives authentication status, re-checks token liveness on an
// interval while authenticated, and steers navigation to the login view
// when the session ends.
type Guard struct {
	store     *Store
	codec     *token.Codec
	nav       Navigator
	refresher Refresher
	cfg       GuardConfig
	log       zerolog.Logger

	mu           sync.Mutex
	token        string
	user         *domain.Profile
	initialized  bool
	lastCheck    time.Time
	navigating   bool
	stopLiveness chan struct{}
	closed       bool
}

func NewGuard(store *Store, codec *token.Codec, nav Navigator, refresher Refresher, cfg GuardConfig, log zerolog.Logger) *Guard {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}
	if cfg.RefreshWithin <= 0 {
		cfg.RefreshWithin = DefaultRefreshWithin
	}
	return &Guard{
		store:     store,
		codec:     codec,
		nav:       nav,
		refresher: refresher,
		cfg:       cfg,
		log:       log,
	}
}

// Initialize reads the durable store and settles into authenticated or
// unauthenticated. When no valid session exists and the current route is
// not the login or registration view, the authentication-required side
// effect fires.
func (g *Guard) Initialize() {
	tok, user := g.store.Load()

	g.mu.Lock()
	g.token = tok
	g.user = user
	g.initialized = true
	g.lastCheck = time.Now()

	authed := g.isAuthenticatedLocked()
	if authed {
		g.startLivenessLocked()
	} else {
		g.stopLivenessLocked()
	}
	g.mu.Unlock()

	if !authed && !onAuthRoute(g.nav.Current()) {
		g.requireAuth()
	}
}

// StoreChanged converges state after an external mutation of the token or
// user entries (another tab or process). Other keys are ignored.
func (g *Guard) StoreChanged(key string) {
	if key != TokenKey && key != UserKey {
		return
	}
	g.log.Debug().Str("key", key).Msg("session storage changed externally, re-initializing")
	g.Initialize()
}

// IsAuthenticated reports token present ∧ not expired ∧ profile present.
func (g *Guard) IsAuthenticated() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.isAuthenticatedLocked()
}

func (g *Guard) isAuthenticatedLocked() bool {
	return g.token != "" && !g.codec.IsExpired(g.token) && g.user != nil
}

// Initialized reports whether Initialize has run.
func (g *Guard) Initialized() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.initialized
}

// Token returns the current session token, or "".
func (g *Guard) Token() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.token
}

// User returns the current profile, or nil.
func (g *Guard) User() *domain.Profile {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.user
}

// Login installs a fresh session. The payload is validated defensively:
// a malformed token, invalid profile, or already-expired token yields
// ErrInvalidAuthPayload without touching state. On success the session is
// persisted and navigation lands on the recorded post-login route, or the
// default landing view.
func (g *Guard) Login(tok string, user *domain.Profile) error {
	if !token.ValidateFormat(tok) {
		return ErrInvalidAuthPayload
	}
	if !user.Valid() {
		return ErrInvalidAuthPayload
	}
	if g.codec.IsExpired(tok) {
		return ErrInvalidAuthPayload
	}
	if !g.store.Save(tok, user) {
		return ErrInvalidAuthPayload
	}

	g.mu.Lock()
	g.token = tok
	g.user = user
	g.initialized = true
	g.lastCheck = time.Now()
	g.startLivenessLocked()
	g.mu.Unlock()

	g.log.Info().Str("username", user.Username).Msg("session established")

	redirect := g.store.ConsumeRedirect()
	if redirect != "" && !onAuthRoute(redirect) {
		g.nav.Go(redirect)
	} else {
		g.nav.Go(RouteTasks)
	}
	return nil
}

// Logout drops the session and returns to the login view.
func (g *Guard) Logout() {
	g.mu.Lock()
	g.token = ""
	g.user = nil
	g.lastCheck = time.Now()
	g.stopLivenessLocked()
	g.mu.Unlock()

	g.store.Clear()
	g.log.Info().Msg("session ended")
	g.nav.Go(RouteLogin)
}

// CheckNow runs one liveness check: an expired token ends the session and
// fires the authentication-required side effect; a token inside the
// refresh threshold is renewed through the Refresher when one is wired.
// The interval timer calls this every CheckInterval while authenticated.
func (g *Guard) CheckNow() {
	g.mu.Lock()
	tok := g.token
	g.lastCheck = time.Now()
	if tok == "" {
		g.mu.Unlock()
		return
	}

	if g.codec.IsExpired(tok) {
		g.token = ""
		g.user = nil
		g.stopLivenessLocked()
		g.mu.Unlock()

		g.store.Clear()
		g.log.Warn().Msg("session token expired")
		g.requireAuth()
		return
	}
	refresh := g.refresher != nil && g.codec.IsExpiringSoon(tok, g.cfg.RefreshWithin)
	g.mu.Unlock()

	if refresh {
		g.tryRefresh()
	}
}

func (g *Guard) tryRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tok, user, err := g.refresher.RefreshSession(ctx)
	if err != nil {
		g.log.Warn().Err(err).Msg("token refresh failed, session will expire")
		return
	}
	if !g.store.Save(tok, user) {
		g.log.Warn().Msg("refresh returned an unusable payload")
		return
	}

	g.mu.Lock()
	g.token = tok
	g.user = user
	g.mu.Unlock()

	g.log.Info().Msg("session token refreshed")
}

// requireAuth records the current location as the post-login target and
// navigates to the login view. Re-entrant triggers inside the debounce
// window collapse to a single navigation.
func (g *Guard) requireAuth() {
	g.mu.Lock()
	if g.navigating {
		g.mu.Unlock()
		return
	}
	g.navigating = true
	g.mu.Unlock()

	current := g.nav.Current()
	if !onAuthRoute(current) {
		g.store.SetRedirect(current)
	}
	g.nav.Go(RouteLogin)

	time.AfterFunc(redirectDebounce, func() {
		g.mu.Lock()
		g.navigating = false
		g.mu.Unlock()
	})
}

// Close tears the guard down: the liveness timer stops and no goroutine
// survives. The guard is not reusable afterwards.
func (g *Guard) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	g.stopLivenessLocked()
}

func (g *Guard) startLivenessLocked() {
	if g.stopLiveness != nil || g.closed {
		return
	}
	stop := make(chan struct{})
	g.stopLiveness = stop

	go func() {
		ticker := time.NewTicker(g.cfg.CheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				g.CheckNow()
			}
		}
	}()
}

func (g *Guard) stopLivenessLocked() {
	if g.stopLiveness != nil {
		close(g.stopLiveness)
		g.stopLiveness = nil
	}
}

func onAuthRoute(route string) bool {
	return route == RouteLogin || route == RouteRegister
}
