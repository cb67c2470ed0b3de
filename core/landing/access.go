package landing

import "github.com/trezcool/ratiba/core/profile"

var (
	everyone = []profile.Role{profile.RoleAdmin, profile.RoleInstructor, profile.RoleStudent}
	staff    = []profile.Role{profile.RoleAdmin, profile.RoleInstructor}
	admins   = []profile.Role{profile.RoleAdmin}
)

// Access lists the roles allowed on each protected screen.
// CoursesHome is admin-only although PostVerification lands instructors there.
var Access = map[string][]profile.Role{
	DashboardHome:   staff,
	TimetableHome:   everyone,
	ManageTimetable: staff,
	SwapClassesPage: staff,
	ClassroomsPage:  staff,
	CoursesHome:     admins,
	UsersHome:       admins,
	SettingsPage:    everyone,
}

// Allowed reports whether role may open path. Paths missing from Access are open to any cleared role.
func Allowed(path string, role profile.Role) bool {
	roles, ok := Access[path]
	if !ok {
		return true
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
