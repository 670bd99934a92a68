package auth

import "time"

type Role string

const (
	RoleCommercial Role = "commercial"
	RoleSupport    Role = "support"
	RoleGestion    Role = "gestion"
)

// ParseRole maps a stored role name onto the closed enum. Anything outside
// the three known roles comes back as the zero Role, which every permission
// check denies.
func ParseRole(name string) (Role, bool) {
	switch Role(name) {
	case RoleCommercial, RoleSupport, RoleGestion:
		return Role(name), true
	default:
		return "", false
	}
}

// Initial returns the employee-number prefix letter for the role.
func (r Role) Initial() string {
	switch r {
	case RoleCommercial:
		return "C"
	case RoleSupport:
		return "S"
	case RoleGestion:
		return "G"
	default:
		return ""
	}
}

func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// Collaborator is the domain representation of a staff account.
// It mirrors the collaborators table and carries no JSON annotations so it
// can be reused by different presentation layers.
type Collaborator struct {
	ID             string
	EmployeeNumber string
	FirstName      string
	LastName       string
	Email          string
	PasswordHash   string
	Role           Role
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Actor is the resolved identity performing a request. It is derived from
// credentials or a validated token and is never persisted.
type Actor struct {
	UserID         string
	Role           Role
	EmployeeNumber string
}

// Authenticated reports whether the actor carries a resolved identity.
func (a Actor) Authenticated() bool {
	return a.UserID != ""
}

// LoginRequest contains login credentials supplied by callers.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
