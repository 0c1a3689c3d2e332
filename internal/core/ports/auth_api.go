package ports

import (
	"context"

	"github.com/learnsphere/platform-client/internal/core/domain"
)

// AuthAPI is the remote platform authentication surface consumed by the
// session manager. Implementations map HTTP 401/403 and success=false verify
// responses to domain.ErrUnauthorized; every other failure is reported as an
// ordinary wrapped error.
type AuthAPI interface {
	// Login exchanges credentials for a server session. A structured
	// rejection ({success:false, message}) is returned as *domain.APIError.
	Login(ctx context.Context, email, password string, rememberMe bool) (*domain.User, error)

	// Logout invalidates the server session. Callers treat failure as
	// best-effort only.
	Logout(ctx context.Context) error

	// RefreshToken exchanges the refresh credential for a new session.
	RefreshToken(ctx context.Context) error

	// CurrentUser verifies the session and returns the canonical identity.
	CurrentUser(ctx context.Context) (*domain.User, error)
}
