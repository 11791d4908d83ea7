package routing

import "strings"

// AccessLevel is the authorization tier required to view a route
type AccessLevel int

const (
	// AccessPublic routes need no session at all
	AccessPublic AccessLevel = iota
	// AccessAuthenticated routes need a live session token
	AccessAuthenticated
	// AccessAuthenticatedWithProfile routes additionally need a completed
	// onboarding profile
	AccessAuthenticatedWithProfile
)

// String returns the access level name
func (l AccessLevel) String() string {
	switch l {
	case AccessAuthenticated:
		return "authenticated"
	case AccessAuthenticatedWithProfile:
		return "authenticated_with_profile"
	default:
		return "public"
	}
}

// Route roots of the portal
const (
	LoginPath         = "/login"
	AuthPath          = "/auth"
	DashboardPath     = "/dashboard"
	ProfileCreatePath = "/profile/create"
	PersonalPath      = "/personal"
	OnboardingPath    = "/auth/onboarding"
)

// routeTable is the single source of truth for access requirements. Prefix
// match, first entry wins; anything not listed is public. There are no
// per-page opt-outs.
var routeTable = []struct {
	prefix string
	level  AccessLevel
}{
	{DashboardPath, AccessAuthenticatedWithProfile},
	{ProfileCreatePath, AccessAuthenticatedWithProfile},
	{PersonalPath, AccessAuthenticatedWithProfile},
	{OnboardingPath, AccessAuthenticatedWithProfile},
}

// Classify maps a request path to its required access level
func Classify(path string) AccessLevel {
	for _, entry := range routeTable {
		if strings.HasPrefix(path, entry.prefix) {
			return entry.level
		}
	}
	return AccessPublic
}

// DashboardView is a named dashboard variant
type DashboardView string

// The fixed set of dashboard variants
const (
	ViewPersonal DashboardView = "personal"
	ViewLabOwner DashboardView = "lab-owner"
	ViewDoctor   DashboardView = "doctor"
)

// DefaultDashboardView is appended when a dashboard request carries no valid
// view parameter
const DefaultDashboardView = ViewPersonal

// dashboardViews enumerates the valid variants
var dashboardViews = map[DashboardView]struct{}{
	ViewPersonal: {},
	ViewLabOwner: {},
	ViewDoctor:   {},
}

// IsValidDashboardView reports whether a raw view parameter names a known
// dashboard variant
func IsValidDashboardView(view string) bool {
	_, ok := dashboardViews[DashboardView(view)]
	return ok
}
