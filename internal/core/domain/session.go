package domain

// State is the observable session lifecycle state.
type State int

const (
	// StateBootstrapping means the initial cache-seed/server-verify sequence
	// has not finished; route decisions must not be trusted yet.
	StateBootstrapping State = iota
	StateUnauthenticated
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateBootstrapping:
		return "bootstrapping"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Session is an immutable snapshot of the client's authentication belief.
// IsAuthenticated always equals User != nil; snapshots are only built through
// NewSession so no intermediate combination is ever observable.
type Session struct {
	User            *User `json:"user"`
	IsAuthenticated bool  `json:"isAuthenticated"`
	Loading         bool  `json:"loading"`
}

// NewSession builds a snapshot, deriving the authentication flag from the
// presence of a user.
func NewSession(user *User, loading bool) Session {
	return Session{
		User:            user,
		IsAuthenticated: user != nil,
		Loading:         loading,
	}
}

// State collapses the snapshot fields into the lifecycle state.
func (s Session) State() State {
	switch {
	case s.Loading:
		return StateBootstrapping
	case s.User == nil:
		return StateUnauthenticated
	default:
		return StateAuthenticated
	}
}
