package ports

import "github.com/learnsphere/platform-client/internal/core/domain"

// CredentialCache is the durable store of the last user the platform
// confirmed. It seeds the session optimistically on startup; it is written on
// every identity-confirming operation and cleared on logout or on an explicit
// credential rejection, never on a mere network failure.
type CredentialCache interface {
	// Load returns the cached user, or domain.ErrCacheMiss when nothing
	// usable is stored.
	Load() (*domain.User, error)
	Store(user *domain.User) error
	Clear() error
}

// SessionHint exposes the non-authoritative "looks logged in" signal the
// bootstrapper consults before spending a verify round trip. The actual
// session credential is opaque to client code; only the presence of the
// readable marker the server sets alongside it is visible here.
type SessionHint interface {
	LoggedInHint() bool
}
