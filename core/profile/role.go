package profile

import (
	"encoding/json"
	"strings"
)

// Role is the closed set of access roles a Profile can hold.
type Role int

const (
	RoleUnknown Role = iota
	RoleAdmin
	RoleInstructor
	RoleStudent
)

// DefaultRole is assigned to lazily provisioned profiles.
const DefaultRole = RoleStudent

var roleNames = map[Role]string{
	RoleUnknown:    "unknown",
	RoleAdmin:      "admin",
	RoleInstructor: "instructor",
	RoleStudent:    "student",
}

// Roles lists the assignable roles.
var Roles = []Role{RoleAdmin, RoleInstructor, RoleStudent}

// ParseRole maps a stored role name, case-insensitively, to a Role.
// Anything unrecognised is RoleUnknown.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin
	case "instructor":
		return RoleInstructor
	case "student":
		return RoleStudent
	default:
		return RoleUnknown
	}
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return roleNames[RoleUnknown]
}

// Valid reports whether r is an assignable role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleInstructor || r == RoleStudent
}

func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = ParseRole(s)
	return nil
}

func (r Role) MarshalYAML() (interface{}, error) {
	return r.String(), nil
}

func (r *Role) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	*r = ParseRole(s)
	return nil
}
