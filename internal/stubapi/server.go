// Package stubapi implements the platform API contract the session client
// depends on: login, logout, refresh-token, and current-user, with the same
// cookie scheme the production backend uses (httpOnly token cookies plus a
// readable userInfo marker). It backs the client's integration tests and the
// local development stub; it holds no real business logic.
package stubapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/learnsphere/platform-client/internal/core/domain"
)

// Cookie names shared with the production backend.
const (
	accessCookie  = "authToken"
	refreshCookie = "refreshToken"
	markerCookie  = "userInfo"
)

const (
	defaultSecret     = "stub-signing-secret"
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// SeedUser is an account the stub accepts credentials for.
type SeedUser struct {
	Password string
	User     domain.User
}

// Options configures a stub server.
type Options struct {
	Users      []SeedUser
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type account struct {
	hash []byte
	user domain.User
}

// Server is an in-memory platform API. The test control surface (revocation,
// forced refresh failures, call counters) lets client tests exercise every
// branch of the refresh protocol deterministically.
type Server struct {
	e          *echo.Echo
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration

	mu       sync.RWMutex
	byEmail  map[string]account
	byID     map[int64]domain.User

	// generation versions access tokens; bumping it invalidates every
	// token issued before, which is how tests force a 401 mid-session.
	generation   atomic.Int64
	failRefresh  atomic.Bool
	staleRefresh atomic.Bool
	refreshDelay atomic.Int64
	force401     sync.Map

	refreshCalls atomic.Int64
	verifyCalls  atomic.Int64
	courseCalls  atomic.Int64
}

// New builds a stub server with the given accounts seeded.
func New(opts Options) (*Server, error) {
	s := &Server{
		secret:     []byte(defaultSecret),
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		byEmail:    make(map[string]account),
		byID:       make(map[int64]domain.User),
	}
	if opts.Secret != "" {
		s.secret = []byte(opts.Secret)
	}
	if opts.AccessTTL > 0 {
		s.accessTTL = opts.AccessTTL
	}
	if opts.RefreshTTL > 0 {
		s.refreshTTL = opts.RefreshTTL
	}

	for _, seed := range opts.Users {
		// MinCost keeps test startup cheap; the stub guards nothing real.
		hash, err := bcrypt.GenerateFromPassword([]byte(seed.Password), bcrypt.MinCost)
		if err != nil {
			return nil, fmt.Errorf("seed user %q: %w", seed.User.Email, err)
		}
		s.byEmail[seed.User.Email] = account{hash: hash, user: seed.User}
		s.byID[seed.User.ID] = seed.User
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = NewValidator()

	e.POST("/api/login", s.login)
	e.POST("/api/logout", s.logout)
	e.POST("/api/refresh-token", s.refresh)
	e.GET("/api/current-user", s.currentUser)
	e.GET("/api/courses", s.courses)
	e.GET("/health", s.health)

	s.e = e
	return s, nil
}

// Handler exposes the server for httptest.
func (s *Server) Handler() http.Handler { return s.e }

// Echo exposes the underlying instance so a host binary can attach
// middleware before starting it.
func (s *Server) Echo() *echo.Echo { return s.e }

// RevokeAccess invalidates every access token issued so far. Refresh tokens
// stay valid, so the next refresh succeeds and issues a current one.
func (s *Server) RevokeAccess() { s.generation.Add(1) }

// SetFailRefresh makes the refresh endpoint reject until reset.
func (s *Server) SetFailRefresh(fail bool) { s.failRefresh.Store(fail) }

// SetStaleRefresh makes refreshes report success while issuing access tokens
// that are already invalid, so retried requests are rejected again.
func (s *Server) SetStaleRefresh(stale bool) { s.staleRefresh.Store(stale) }

// SetRefreshDelay slows the refresh endpoint down, giving concurrency tests a
// window in which every racing request is guaranteed to observe the same
// in-flight refresh.
func (s *Server) SetRefreshDelay(d time.Duration) { s.refreshDelay.Store(int64(d)) }

// SetForce401 makes the named guarded endpoint reject even valid tokens, so
// tests can observe a request failing again after a genuinely successful
// refresh.
func (s *Server) SetForce401(path string, on bool) {
	if on {
		s.force401.Store(path, true)
	} else {
		s.force401.Delete(path)
	}
}

func (s *Server) forced401(path string) bool {
	_, ok := s.force401.Load(path)
	return ok
}

// RefreshCalls reports how many times the refresh endpoint was hit.
func (s *Server) RefreshCalls() int64 { return s.refreshCalls.Load() }

// VerifyCalls reports how many times current-user was hit.
func (s *Server) VerifyCalls() int64 { return s.verifyCalls.Load() }

// CourseCalls reports how many times the sample guarded endpoint was hit.
func (s *Server) CourseCalls() int64 { return s.courseCalls.Load() }

type loginRequest struct {
	Email      string `json:"email"      validate:"required,email"`
	Password   string `json:"password"   validate:"required"`
	RememberMe bool   `json:"rememberMe"`
}

type envelope struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	User    *domain.User `json:"user,omitempty"`
}

func reject(c echo.Context, status int, message string) error {
	return c.JSON(status, envelope{Success: false, Message: message})
}

func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return reject(c, http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return reject(c, http.StatusBadRequest, err.Error())
	}

	s.mu.RLock()
	acct, ok := s.byEmail[req.Email]
	s.mu.RUnlock()
	// Unknown account and wrong password produce the same rejection; the
	// response must not reveal which one it was.
	if !ok || bcrypt.CompareHashAndPassword(acct.hash, []byte(req.Password)) != nil {
		return reject(c, http.StatusUnauthorized, "Invalid credentials")
	}

	if err := s.issueCookies(c, acct.user, s.generation.Load()); err != nil {
		return reject(c, http.StatusInternalServerError, "token issuance failed")
	}
	user := acct.user
	return c.JSON(http.StatusOK, envelope{Success: true, User: &user})
}

func (s *Server) logout(c echo.Context) error {
	for _, name := range []string{accessCookie, refreshCookie, markerCookie} {
		c.SetCookie(&http.Cookie{
			Name:    name,
			Value:   "",
			Path:    "/",
			Expires: time.Unix(0, 0),
			MaxAge:  -1,
		})
	}
	return c.JSON(http.StatusOK, envelope{Success: true})
}

func (s *Server) refresh(c echo.Context) error {
	s.refreshCalls.Add(1)

	if d := time.Duration(s.refreshDelay.Load()); d > 0 {
		time.Sleep(d)
	}
	if s.failRefresh.Load() {
		return reject(c, http.StatusUnauthorized, "refresh token expired")
	}

	userID, _, err := s.parseToken(c, refreshCookie)
	if err != nil {
		return reject(c, http.StatusUnauthorized, "invalid refresh token")
	}

	s.mu.RLock()
	user, ok := s.byID[userID]
	s.mu.RUnlock()
	if !ok {
		return reject(c, http.StatusUnauthorized, domain.ErrUserNotFound.Error())
	}

	gen := s.generation.Load()
	if s.staleRefresh.Load() {
		gen--
	}
	if err := s.issueCookies(c, user, gen); err != nil {
		return reject(c, http.StatusInternalServerError, "token issuance failed")
	}
	return c.JSON(http.StatusOK, envelope{Success: true})
}

func (s *Server) currentUser(c echo.Context) error {
	s.verifyCalls.Add(1)

	user, err := s.authenticate(c)
	if err != nil {
		return reject(c, http.StatusUnauthorized, "invalid or expired token")
	}
	return c.JSON(http.StatusOK, envelope{Success: true, User: user})
}

// courses is a sample guarded application endpoint, here so client tests have
// a non-exempt request to push through the refresh interceptor.
func (s *Server) courses(c echo.Context) error {
	s.courseCalls.Add(1)

	if s.forced401(c.Path()) {
		return reject(c, http.StatusUnauthorized, "invalid or expired token")
	}
	if _, err := s.authenticate(c); err != nil {
		return reject(c, http.StatusUnauthorized, "invalid or expired token")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"courses": []map[string]any{
			{"id": 1, "title": "Distributed Systems"},
			{"id": 2, "title": "Go in Practice"},
		},
	})
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// authenticate validates the access cookie and its generation, returning the
// account it was issued for.
func (s *Server) authenticate(c echo.Context) (*domain.User, error) {
	userID, gen, err := s.parseToken(c, accessCookie)
	if err != nil {
		return nil, err
	}
	if gen != s.generation.Load() {
		return nil, fmt.Errorf("access token revoked")
	}

	s.mu.RLock()
	user, ok := s.byID[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &user, nil
}

// parseToken reads and validates the JWT carried by the named cookie,
// enforcing the signing method before trusting any claim.
func (s *Server) parseToken(c echo.Context, cookieName string) (userID, generation int64, err error) {
	ck, err := c.Cookie(cookieName)
	if err != nil {
		return 0, 0, fmt.Errorf("missing %s cookie", cookieName)
	}

	claims := jwt.MapClaims{}
	tkn, err := jwt.ParseWithClaims(ck.Value, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !tkn.Valid {
		return 0, 0, fmt.Errorf("invalid token: %w", err)
	}

	sub, _ := claims["sub"].(float64)
	gen, _ := claims["gen"].(float64)
	return int64(sub), int64(gen), nil
}

// issueCookies sets the access, refresh, and marker cookies the way the
// production backend does: credentials httpOnly, marker readable.
func (s *Server) issueCookies(c echo.Context, user domain.User, gen int64) error {
	access, err := s.signToken(user.ID, gen, s.accessTTL)
	if err != nil {
		return err
	}
	refresh, err := s.signToken(user.ID, gen, s.refreshTTL)
	if err != nil {
		return err
	}

	c.SetCookie(&http.Cookie{
		Name:     accessCookie,
		Value:    access,
		Path:     "/",
		Expires:  time.Now().Add(s.accessTTL),
		HttpOnly: true,
	})
	c.SetCookie(&http.Cookie{
		Name:     refreshCookie,
		Value:    refresh,
		Path:     "/",
		Expires:  time.Now().Add(s.refreshTTL),
		HttpOnly: true,
	})

	info, err := json.Marshal(user)
	if err != nil {
		return err
	}
	c.SetCookie(&http.Cookie{
		Name:    markerCookie,
		Value:   url.QueryEscape(string(info)),
		Path:    "/",
		Expires: time.Now().Add(s.refreshTTL),
	})
	return nil
}

func (s *Server) signToken(userID, gen int64, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
		"gen": gen,
		"exp": time.Now().Add(ttl).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}
