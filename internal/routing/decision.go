package routing

import (
	"context"
	"net/url"
	"strings"

	"github.com/carelink/portal-gateway/internal/session"
)

// OutcomeKind enumerates the navigation decisions the engine can emit
type OutcomeKind int

const (
	// Allow lets the request through unchanged
	Allow OutcomeKind = iota
	// RedirectToLogin sends the caller to the login page
	RedirectToLogin
	// RedirectToProfileCreate sends the caller to profile creation
	RedirectToProfileCreate
	// RedirectToDashboard sends the caller to a dashboard variant
	RedirectToDashboard
)

// String returns the outcome kind name
func (k OutcomeKind) String() string {
	switch k {
	case RedirectToLogin:
		return "to_login"
	case RedirectToProfileCreate:
		return "to_profile_create"
	case RedirectToDashboard:
		return "to_dashboard"
	default:
		return "allow"
	}
}

// ReasonExpired marks a login redirect caused by a presented-but-dead token
const ReasonExpired = "expired"

// Outcome is the single navigation decision for a request
type Outcome struct {
	Kind   OutcomeKind
	Reason string        // set on login redirects when a dead token was presented
	View   DashboardView // set on dashboard redirects
}

// ProfileChecker answers whether the identity behind a token has completed
// onboarding
type ProfileChecker interface {
	Exists(ctx context.Context, token string) bool
}

// Engine combines token validity and profile existence into one redirect
// decision per request. It holds no request state; the profile checker is the
// only collaborator.
type Engine struct {
	profiles ProfileChecker
}

// NewEngine creates a redirect decision engine
func NewEngine(profiles ProfileChecker) *Engine {
	return &Engine{profiles: profiles}
}

// Decide evaluates the gating rules in strict order; the first match wins.
// Unauthenticated access is rejected before any profile lookup, and the
// profile checker is consulted at most once per decision.
func (e *Engine) Decide(ctx context.Context, path string, query url.Values, token string) Outcome {
	level := Classify(path)
	valid := session.IsValid(token)

	// Memoized so rules 2-4 share a single lookup
	var checked, cached bool
	profileExists := func() bool {
		if !checked {
			cached = e.profiles.Exists(ctx, token)
			checked = true
		}
		return cached
	}

	// 1. Protected route without a live session
	if level != AccessPublic && !valid {
		reason := ""
		if presented(token) {
			reason = ReasonExpired
		}
		return Outcome{Kind: RedirectToLogin, Reason: reason}
	}

	// 2. Authenticated user landing on the login page
	if path == LoginPath && valid {
		if profileExists() {
			return Outcome{Kind: RedirectToDashboard, View: DefaultDashboardView}
		}
		return Outcome{Kind: RedirectToProfileCreate}
	}

	// 3. Profile creation is pointless once a profile exists
	if strings.HasPrefix(path, ProfileCreatePath) && valid && profileExists() {
		return Outcome{Kind: RedirectToDashboard, View: DefaultDashboardView}
	}

	// 4. Profile-gated routes without a profile go to creation. The creation
	// page itself is exempt, otherwise it would redirect to itself.
	if level == AccessAuthenticatedWithProfile &&
		valid &&
		!strings.HasPrefix(path, ProfileCreatePath) &&
		!profileExists() {
		return Outcome{Kind: RedirectToProfileCreate}
	}

	// 5. Normalize the dashboard view parameter once access checks pass
	if path == DashboardPath && !IsValidDashboardView(query.Get("view")) {
		return Outcome{Kind: RedirectToDashboard, View: DefaultDashboardView}
	}

	return Outcome{Kind: Allow}
}

// presented reports whether the caller actually supplied a token value, as
// opposed to having none at all
func presented(token string) bool {
	token = strings.TrimSpace(token)
	return token != "" && token != "undefined"
}
