package service

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/learnsphere/platform-client/internal/core/domain"
	"github.com/learnsphere/platform-client/internal/core/ports"
)

// LoginResult is the structured outcome of a login attempt. Login never
// returns an error; server and network failures both surface here.
type LoginResult struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	User    *domain.User `json:"user,omitempty"`
}

const genericLoginFailure = "Login failed"

// SessionManager is the single source of truth for "am I logged in". It owns
// the in-memory session, the credential cache, and the bootstrap sequence;
// all other components read snapshots or invoke its operations.
type SessionManager struct {
	api   ports.AuthAPI
	cache ports.CredentialCache
	hint  ports.SessionHint
	log   zerolog.Logger

	mu           sync.Mutex
	user         *domain.User
	loading      bool
	bootstrapped bool
	// epoch advances on every non-bootstrap mutation so that a slow
	// bootstrap verify response cannot resurrect a session the user
	// already logged out of, or clobber a login that raced past it.
	epoch uint64
}

// NewSessionManager builds a manager in the bootstrapping state. hint may be
// nil when the transport offers no logged-in marker.
func NewSessionManager(api ports.AuthAPI, cache ports.CredentialCache, hint ports.SessionHint, log zerolog.Logger) *SessionManager {
	return &SessionManager{
		api:     api,
		cache:   cache,
		hint:    hint,
		log:     log,
		loading: true,
	}
}

// Snapshot returns the current session state. The authentication flag is
// derived from the user pointer, so it can never disagree with it.
func (m *SessionManager) Snapshot() domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.NewSession(m.user, m.loading)
}

// Bootstrap seeds the session from the credential cache and reconciles it
// with the server. It runs at most once per manager; later calls return
// immediately. The loading flag drops exactly once, at the end, regardless
// of outcome.
func (m *SessionManager) Bootstrap(ctx context.Context) {
	m.mu.Lock()
	if m.bootstrapped {
		m.mu.Unlock()
		return
	}
	m.bootstrapped = true
	epoch := m.epoch
	m.mu.Unlock()

	defer m.finishBootstrap()

	cached, err := m.cache.Load()
	if err != nil && !errors.Is(err, domain.ErrCacheMiss) {
		m.log.Warn().Err(err).Msg("credential cache unreadable")
		cached = nil
	}
	hinted := m.hint != nil && m.hint.LoggedInHint()

	// Clearly anonymous: no cached identity and no marker. Skip the verify
	// round trip entirely.
	if cached == nil && !hinted {
		return
	}

	// Phase one: seed optimistically so consumers never observe a
	// logged-out flash while verification is in flight.
	if cached != nil {
		m.apply(epoch, cached)
	}

	// Phase two: reconcile with the server's canonical answer. A verify
	// result that lost a race against login or logout must touch neither
	// the session nor the cache.
	user, err := m.api.CurrentUser(ctx)
	switch {
	case err == nil:
		if m.apply(epoch, user) {
			m.storeCache(user)
		}
	case errors.Is(err, domain.ErrUnauthorized):
		m.log.Info().Msg("cached session rejected by server")
		if m.apply(epoch, nil) {
			m.clearCache()
		}
	default:
		// Unreachable server is not proof the session is invalid.
		// Keep the optimistic identity and let later requests decide.
		m.log.Warn().Err(err).Msg("session verification unreachable, keeping cached identity")
	}
}

func (m *SessionManager) finishBootstrap() {
	m.mu.Lock()
	m.loading = false
	m.mu.Unlock()
}

// apply writes a bootstrap-phase user, but only while no login, logout, or
// other mutation has advanced the epoch since bootstrap began.
func (m *SessionManager) apply(epoch uint64, user *domain.User) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		m.log.Debug().Msg("session changed during bootstrap, discarding verify result")
		return false
	}
	m.user = user
	return true
}

// Login authenticates against the platform. On success the session and the
// credential cache hold the returned user. On any failure the session is
// untouched and the server's message, when present, is surfaced.
func (m *SessionManager) Login(ctx context.Context, email, password string, rememberMe bool) LoginResult {
	user, err := m.api.Login(ctx, email, password, rememberMe)
	if err != nil {
		msg := genericLoginFailure
		var apiErr *domain.APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			msg = apiErr.Message
		}
		m.log.Debug().Err(err).Str("email", email).Msg("login failed")
		return LoginResult{Message: msg}
	}

	m.setUser(user)
	m.storeCache(user)
	m.log.Info().Int64("user_id", user.ID).Msg("login successful")
	return LoginResult{Success: true, User: user}
}

// Logout ends the session. The server call is best-effort; local state and
// the credential cache are cleared even when the platform is unreachable, so
// the client can never keep believing it is logged in after a logout.
func (m *SessionManager) Logout(ctx context.Context) {
	if err := m.api.Logout(ctx); err != nil {
		m.log.Warn().Err(err).Msg("logout request failed, clearing local session anyway")
	}
	m.Clear()
}

// Clear drops the local identity and the cached credentials. It is the
// interceptor's fallback after an exhausted refresh and is safe to call any
// number of times.
func (m *SessionManager) Clear() {
	m.mu.Lock()
	m.user = nil
	m.epoch++
	m.mu.Unlock()
	m.clearCache()
}

// RefreshToken exchanges the refresh credential for a new server session and,
// on success, installs the canonical user it now maps to. On failure it
// reports false without mutating the session; the caller decides whether the
// failure is terminal.
func (m *SessionManager) RefreshToken(ctx context.Context) bool {
	if err := m.api.RefreshToken(ctx); err != nil {
		m.log.Debug().Err(err).Msg("token refresh failed")
		return false
	}
	user, err := m.api.CurrentUser(ctx)
	if err != nil {
		m.log.Debug().Err(err).Msg("post-refresh verification failed")
		return false
	}
	m.setUser(user)
	m.storeCache(user)
	return true
}

// GetCurrentUser fetches the canonical identity from the platform. On success
// session and cache are updated; on any failure the session is cleared and
// nil is returned.
func (m *SessionManager) GetCurrentUser(ctx context.Context) *domain.User {
	user, err := m.api.CurrentUser(ctx)
	if err != nil {
		m.log.Debug().Err(err).Msg("current-user fetch failed")
		m.Clear()
		return nil
	}
	m.setUser(user)
	m.storeCache(user)
	return user
}

// UpdateUser installs a locally patched user (after a profile edit performed
// elsewhere) without contacting the server.
func (m *SessionManager) UpdateUser(user *domain.User) {
	m.setUser(user)
	m.storeCache(user)
}

func (m *SessionManager) setUser(user *domain.User) {
	m.mu.Lock()
	m.user = user
	m.epoch++
	m.mu.Unlock()
}

func (m *SessionManager) storeCache(user *domain.User) {
	if err := m.cache.Store(user); err != nil {
		m.log.Warn().Err(err).Msg("credential cache write failed")
	}
}

func (m *SessionManager) clearCache() {
	if err := m.cache.Clear(); err != nil {
		m.log.Warn().Err(err).Msg("credential cache clear failed")
	}
}
