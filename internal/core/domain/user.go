package domain

// Role identifiers assigned by the platform API. RoleAdmin is the only role
// the client treats specially; any other value is an ordinary learner.
const (
	RoleAdmin   = 1
	RoleStudent = 2
)

// User models the platform identity this client currently believes is logged
// in. Fields beyond RoleID are carried verbatim and never interpreted by the
// session layer.
type User struct {
	ID       int64  `json:"id"`
	FullName string `json:"fullName,omitempty"`
	Email    string `json:"email,omitempty"`
	RoleID   int    `json:"roleId"`
}

// IsAdmin reports whether the user holds the administrator role.
func (u *User) IsAdmin() bool {
	return u != nil && u.RoleID == RoleAdmin
}
