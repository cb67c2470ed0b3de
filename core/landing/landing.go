// Package landing decides which screen a cleared principal is sent to.
//
// Two tables exist: PostVerification is used right after the gate clears (sign-in or OTP),
// RootRoute when a cleared principal opens the root path. Only students land on the same
// screen in both: admins get users vs dashboard, instructors courses vs dashboard and
// unknown roles root vs timetable.
// TestTablesDivergence pins those differences.
package landing

import "github.com/trezcool/ratiba/core/profile"

// Destinations.
const (
	UsersHome       = "/users"
	CoursesHome     = "/courses"
	TimetableHome   = "/timetable"
	DashboardHome   = "/dashboard"
	RootHome        = "/"
	SignInPage      = "/auth"
	ManageTimetable = "/manage-timetable"
	SwapClassesPage = "/swap-classes"
	ClassroomsPage  = "/classrooms"
	SettingsPage    = "/settings"
)

// Table maps a role to a destination, with a fallback for any role it does not list.
type Table struct {
	Name     string
	Routes   map[profile.Role]string
	Fallback string
}

// Lookup returns the destination of role.
func (t Table) Lookup(role profile.Role) string {
	if dest, ok := t.Routes[role]; ok {
		return dest
	}
	return t.Fallback
}

var (
	// PostVerification is where the gate sends a principal once cleared.
	PostVerification = Table{
		Name: "post-verification",
		Routes: map[profile.Role]string{
			profile.RoleAdmin:      UsersHome,
			profile.RoleInstructor: CoursesHome,
			profile.RoleStudent:    TimetableHome,
		},
		Fallback: RootHome,
	}

	// RootRoute is where the root path redirects an already cleared principal.
	RootRoute = Table{
		Name: "root-route",
		Routes: map[profile.Role]string{
			profile.RoleAdmin:      DashboardHome,
			profile.RoleInstructor: DashboardHome,
			profile.RoleStudent:    TimetableHome,
		},
		Fallback: TimetableHome,
	}
)

// Resolve returns the deep link the principal was heading to, unless it is empty or the
// sign-in page itself, in which case the PostVerification table decides.
func Resolve(role profile.Role, deepLink string) string {
	if deepLink != "" && deepLink != SignInPage {
		return deepLink
	}
	return PostVerification.Lookup(role)
}

// ResolveRoot returns the RootRoute destination of role.
func ResolveRoot(role profile.Role) string {
	return RootRoute.Lookup(role)
}
