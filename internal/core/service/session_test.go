package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/learnsphere/platform-client/internal/core/domain"
)

type stubAuthAPI struct {
	mu sync.Mutex

	loginUser  *domain.User
	loginErr   error
	logoutErr  error
	refreshErr error
	verifyUser *domain.User
	verifyErr  error

	// When set, CurrentUser signals entered once and then blocks until the
	// gate is closed.
	verifyGate chan struct{}
	entered    chan struct{}

	loginCalls   int
	logoutCalls  int
	refreshCalls int
	verifyCalls  int
}

func (s *stubAuthAPI) Login(_ context.Context, _, _ string, _ bool) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginCalls++
	return s.loginUser, s.loginErr
}

func (s *stubAuthAPI) Logout(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logoutCalls++
	return s.logoutErr
}

func (s *stubAuthAPI) RefreshToken(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshCalls++
	return s.refreshErr
}

func (s *stubAuthAPI) CurrentUser(context.Context) (*domain.User, error) {
	s.mu.Lock()
	s.verifyCalls++
	gate, entered := s.verifyGate, s.entered
	user, err := s.verifyUser, s.verifyErr
	s.mu.Unlock()

	if gate != nil {
		if entered != nil {
			entered <- struct{}{}
		}
		<-gate
	}
	return user, err
}

type stubCache struct {
	mu         sync.Mutex
	user       *domain.User
	loadErr    error
	storeCalls int
	clearCalls int
}

func (c *stubCache) Load() (*domain.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loadErr != nil {
		return nil, c.loadErr
	}
	if c.user == nil {
		return nil, domain.ErrCacheMiss
	}
	clone := *c.user
	return &clone, nil
}

func (c *stubCache) Store(user *domain.User) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.storeCalls++
	c.user = user
	return nil
}

func (c *stubCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearCalls++
	c.user = nil
	return nil
}

func (c *stubCache) cached() *domain.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

type stubHint bool

func (h stubHint) LoggedInHint() bool { return bool(h) }

func newManager(api *stubAuthAPI, cache *stubCache, hint stubHint) *SessionManager {
	return NewSessionManager(api, cache, hint, zerolog.Nop())
}

// assertConsistent checks the invariant that the authentication flag always
// matches the presence of a user.
func assertConsistent(t *testing.T, s domain.Session) {
	t.Helper()
	if s.IsAuthenticated != (s.User != nil) {
		t.Fatalf("inconsistent snapshot: isAuthenticated=%v user=%v", s.IsAuthenticated, s.User)
	}
}

func TestLogin_Success(t *testing.T) {
	admin := &domain.User{ID: 1, RoleID: domain.RoleAdmin, FullName: "A", Email: "a@x.com"}
	api := &stubAuthAPI{loginUser: admin}
	cache := &stubCache{}
	m := newManager(api, cache, false)
	m.Bootstrap(context.Background())

	res := m.Login(context.Background(), "a@x.com", "correct", false)
	if !res.Success {
		t.Fatalf("expected success, got message %q", res.Message)
	}
	if res.User == nil || res.User.ID != 1 {
		t.Fatalf("unexpected user in result: %+v", res.User)
	}

	s := m.Snapshot()
	assertConsistent(t, s)
	if s.State() != domain.StateAuthenticated {
		t.Fatalf("expected authenticated, got %v", s.State())
	}
	if cache.cached() == nil || cache.cached().ID != 1 {
		t.Fatalf("credential cache not written")
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	api := &stubAuthAPI{loginErr: &domain.APIError{StatusCode: 401, Message: "Invalid credentials"}}
	cache := &stubCache{}
	m := newManager(api, cache, false)
	m.Bootstrap(context.Background())

	res := m.Login(context.Background(), "a@x.com", "wrong", false)
	if res.Success {
		t.Fatalf("expected failure")
	}
	if res.Message != "Invalid credentials" {
		t.Fatalf("expected server message, got %q", res.Message)
	}

	s := m.Snapshot()
	assertConsistent(t, s)
	if s.State() != domain.StateUnauthenticated {
		t.Fatalf("state must be unchanged on failed login, got %v", s.State())
	}
	if cache.storeCalls != 0 {
		t.Fatalf("cache must not be written on failed login")
	}
}

func TestLogin_NetworkError(t *testing.T) {
	api := &stubAuthAPI{loginErr: errors.New("connection refused")}
	m := newManager(api, &stubCache{}, false)
	m.Bootstrap(context.Background())

	res := m.Login(context.Background(), "a@x.com", "correct", false)
	if res.Success {
		t.Fatalf("expected failure")
	}
	if res.Message != genericLoginFailure {
		t.Fatalf("expected generic message, got %q", res.Message)
	}
}

func TestLogout_ServerUnreachable(t *testing.T) {
	user := &domain.User{ID: 3, RoleID: domain.RoleStudent}
	api := &stubAuthAPI{loginUser: user, logoutErr: errors.New("connection reset")}
	cache := &stubCache{}
	m := newManager(api, cache, false)
	m.Bootstrap(context.Background())
	m.Login(context.Background(), "s@x.com", "pw", false)

	m.Logout(context.Background())

	s := m.Snapshot()
	assertConsistent(t, s)
	if s.State() != domain.StateUnauthenticated {
		t.Fatalf("logout must clear local state even when server is unreachable")
	}
	if cache.cached() != nil {
		t.Fatalf("logout must clear the credential cache")
	}
	if api.logoutCalls != 1 {
		t.Fatalf("expected one logout attempt, got %d", api.logoutCalls)
	}
}

func TestBootstrap_AnonymousSkipsVerify(t *testing.T) {
	api := &stubAuthAPI{}
	m := newManager(api, &stubCache{}, false)

	m.Bootstrap(context.Background())

	if api.verifyCalls != 0 {
		t.Fatalf("anonymous bootstrap must not call the server, got %d calls", api.verifyCalls)
	}
	s := m.Snapshot()
	assertConsistent(t, s)
	if s.Loading {
		t.Fatalf("loading must drop after bootstrap")
	}
	if s.State() != domain.StateUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", s.State())
	}
}

func TestBootstrap_VerifyOverwritesCachedUser(t *testing.T) {
	cached := &domain.User{ID: 2, RoleID: domain.RoleAdmin, FullName: "Old"}
	canonical := &domain.User{ID: 2, RoleID: domain.RoleStudent, FullName: "New"}
	api := &stubAuthAPI{verifyUser: canonical}
	cache := &stubCache{user: cached}
	m := newManager(api, cache, true)

	m.Bootstrap(context.Background())

	s := m.Snapshot()
	assertConsistent(t, s)
	if s.User == nil || s.User.RoleID != domain.RoleStudent || s.User.FullName != "New" {
		t.Fatalf("server answer must overwrite the cached user, got %+v", s.User)
	}
	if cache.cached().FullName != "New" {
		t.Fatalf("cache must hold the canonical user")
	}
}

func TestBootstrap_VerifyRejected(t *testing.T) {
	api := &stubAuthAPI{verifyErr: &domain.APIError{StatusCode: 401}}
	cache := &stubCache{user: &domain.User{ID: 2, RoleID: domain.RoleStudent}}
	m := newManager(api, cache, true)

	m.Bootstrap(context.Background())

	s := m.Snapshot()
	assertConsistent(t, s)
	if s.State() != domain.StateUnauthenticated {
		t.Fatalf("explicit rejection must clear the session, got %v", s.State())
	}
	if cache.cached() != nil {
		t.Fatalf("explicit rejection must clear the cache")
	}
}

func TestBootstrap_NetworkErrorKeepsOptimisticState(t *testing.T) {
	api := &stubAuthAPI{verifyErr: errors.New("dial tcp: i/o timeout")}
	cache := &stubCache{user: &domain.User{ID: 2, RoleID: domain.RoleStudent}}
	m := newManager(api, cache, true)

	m.Bootstrap(context.Background())

	s := m.Snapshot()
	assertConsistent(t, s)
	if s.Loading {
		t.Fatalf("loading must drop after bootstrap")
	}
	if s.User == nil || s.User.ID != 2 {
		t.Fatalf("network failure must not log the user out, got %+v", s.User)
	}
	if cache.clearCalls != 0 {
		t.Fatalf("network failure must not clear the cache")
	}
}

func TestBootstrap_HintWithoutCache(t *testing.T) {
	user := &domain.User{ID: 5, RoleID: domain.RoleStudent}
	api := &stubAuthAPI{verifyUser: user}
	m := newManager(api, &stubCache{}, true)

	m.Bootstrap(context.Background())

	s := m.Snapshot()
	assertConsistent(t, s)
	if s.User == nil || s.User.ID != 5 {
		t.Fatalf("marker-only bootstrap must still verify, got %+v", s.User)
	}
	if api.verifyCalls != 1 {
		t.Fatalf("expected one verify call, got %d", api.verifyCalls)
	}
}

func TestBootstrap_RunsOnce(t *testing.T) {
	api := &stubAuthAPI{verifyUser: &domain.User{ID: 1, RoleID: domain.RoleAdmin}}
	m := newManager(api, &stubCache{user: &domain.User{ID: 1, RoleID: domain.RoleAdmin}}, true)

	m.Bootstrap(context.Background())
	m.Bootstrap(context.Background())

	if api.verifyCalls != 1 {
		t.Fatalf("bootstrap must run once, verify called %d times", api.verifyCalls)
	}
}

func TestBootstrap_LogoutDuringVerify(t *testing.T) {
	gate := make(chan struct{})
	entered := make(chan struct{}, 1)
	api := &stubAuthAPI{
		verifyUser: &domain.User{ID: 2, RoleID: domain.RoleStudent},
		verifyGate: gate,
		entered:    entered,
	}
	cache := &stubCache{user: &domain.User{ID: 2, RoleID: domain.RoleStudent}}
	m := newManager(api, cache, true)

	done := make(chan struct{})
	go func() {
		m.Bootstrap(context.Background())
		close(done)
	}()

	<-entered // verify request is in flight, session is seeded

	api.mu.Lock()
	api.verifyGate = nil
	api.mu.Unlock()
	m.Logout(context.Background())

	close(gate)
	<-done

	s := m.Snapshot()
	assertConsistent(t, s)
	if s.State() != domain.StateUnauthenticated {
		t.Fatalf("late verify success must not resurrect a logged-out session, got %v", s.State())
	}
	if cache.cached() != nil {
		t.Fatalf("late verify success must not rewrite the credential cache")
	}
}

func TestRefreshToken_Success(t *testing.T) {
	user := &domain.User{ID: 4, RoleID: domain.RoleStudent}
	api := &stubAuthAPI{verifyUser: user}
	cache := &stubCache{}
	m := newManager(api, cache, false)
	m.Bootstrap(context.Background())

	if !m.RefreshToken(context.Background()) {
		t.Fatalf("expected refresh success")
	}
	if api.refreshCalls != 1 || api.verifyCalls != 1 {
		t.Fatalf("refresh must hit refresh then verify, got %d/%d", api.refreshCalls, api.verifyCalls)
	}
	s := m.Snapshot()
	assertConsistent(t, s)
	if s.User == nil || s.User.ID != 4 {
		t.Fatalf("refresh must install the canonical user")
	}
	if cache.cached() == nil {
		t.Fatalf("refresh must write the cache")
	}
}

func TestRefreshToken_FailureDoesNotMutate(t *testing.T) {
	user := &domain.User{ID: 4, RoleID: domain.RoleStudent}
	api := &stubAuthAPI{loginUser: user}
	cache := &stubCache{}
	m := newManager(api, cache, false)
	m.Bootstrap(context.Background())
	m.Login(context.Background(), "s@x.com", "pw", false)

	api.mu.Lock()
	api.refreshErr = &domain.APIError{StatusCode: 401}
	api.mu.Unlock()

	if m.RefreshToken(context.Background()) {
		t.Fatalf("expected refresh failure")
	}
	s := m.Snapshot()
	assertConsistent(t, s)
	if s.User == nil || s.User.ID != 4 {
		t.Fatalf("failed refresh must leave the session to its caller, got %+v", s.User)
	}
	if cache.clearCalls != 0 {
		t.Fatalf("failed refresh must not clear the cache itself")
	}
}

func TestGetCurrentUser_FailureClears(t *testing.T) {
	user := &domain.User{ID: 4, RoleID: domain.RoleStudent}
	api := &stubAuthAPI{loginUser: user}
	cache := &stubCache{}
	m := newManager(api, cache, false)
	m.Bootstrap(context.Background())
	m.Login(context.Background(), "s@x.com", "pw", false)

	api.mu.Lock()
	api.verifyErr = &domain.APIError{StatusCode: 401}
	api.mu.Unlock()

	if got := m.GetCurrentUser(context.Background()); got != nil {
		t.Fatalf("expected nil user, got %+v", got)
	}
	s := m.Snapshot()
	assertConsistent(t, s)
	if s.State() != domain.StateUnauthenticated {
		t.Fatalf("failed fetch must clear the session")
	}
	if cache.cached() != nil {
		t.Fatalf("failed fetch must clear the cache")
	}
}

func TestUpdateUser(t *testing.T) {
	user := &domain.User{ID: 4, RoleID: domain.RoleStudent, FullName: "Before"}
	api := &stubAuthAPI{loginUser: user}
	cache := &stubCache{}
	m := newManager(api, cache, false)
	m.Bootstrap(context.Background())
	m.Login(context.Background(), "s@x.com", "pw", false)

	patched := &domain.User{ID: 4, RoleID: domain.RoleStudent, FullName: "After"}
	m.UpdateUser(patched)

	s := m.Snapshot()
	assertConsistent(t, s)
	if s.User.FullName != "After" {
		t.Fatalf("updated user not installed")
	}
	if cache.cached().FullName != "After" {
		t.Fatalf("updated user not cached")
	}
	if api.verifyCalls != 0 {
		t.Fatalf("updateUser must not contact the server")
	}
}
