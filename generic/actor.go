package generic

import "fmt"

// =============================================================================
// ROLE - Closed set of directory roles
// =============================================================================

// Role is one of the four directory roles. The zero value is not a valid
// role so an unset Actor never passes a transition check.
type Role int

const (
	RoleUnknown Role = iota
	RoleEmployee
	RoleTeamLeader
	RoleManager
	RoleAdmin
)

var roleNames = map[Role]string{
	RoleEmployee:   "employee",
	RoleTeamLeader: "team_leader",
	RoleManager:    "manager",
	RoleAdmin:      "admin",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// ParseRole maps the stored role string back to a Role.
func ParseRole(s string) (Role, error) {
	for role, name := range roleNames {
		if name == s {
			return role, nil
		}
	}
	return RoleUnknown, fmt.Errorf("%w: unknown role %q", ErrInvalidRequest, s)
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Role) UnmarshalText(b []byte) error {
	role, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// =============================================================================
// ACTOR - Who is performing an operation
// =============================================================================

// Actor identifies the caller of every service operation. It replaces the
// server-side session: handlers build it from the bearer token and pass it
// explicitly.
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) Is(role Role) bool { return a.Role == role }

func (a Actor) String() string { return fmt.Sprintf("%s(%s)", a.ID, a.Role) }

// Validate rejects anonymous or role-less actors.
func (a Actor) Validate() error {
	if a.ID == "" || !a.Role.Valid() {
		return ErrNotAuthorized
	}
	return nil
}
