package models

import "fmt"

// Role governs which profile variant and UI surface applies to a user.
type Role string

const (
	RoleStudent    Role = "student"
	RoleTeacher    Role = "teacher"
	RoleDepartment Role = "department"
	RoleUnset      Role = ""
)

// DefaultRole is assigned when an authenticated user has no profile document.
const DefaultRole = RoleStudent

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleStudent, RoleTeacher, RoleDepartment:
		return Role(s), nil
	default:
		return RoleUnset, fmt.Errorf("invalid role %q", s)
	}
}

func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleTeacher || r == RoleDepartment
}

func (r Role) String() string {
	if r == RoleUnset {
		return "unset"
	}
	return string(r)
}
