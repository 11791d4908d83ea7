package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_ProtectedRoots(t *testing.T) {
	protected := []string{
		"/dashboard",
		"/dashboard/reports",
		"/profile/create",
		"/profile/create/step-2",
		"/personal",
		"/personal/timeline",
		"/auth/onboarding",
	}

	for _, path := range protected {
		assert.Equal(t, AccessAuthenticatedWithProfile, Classify(path), "path %s", path)
	}
}

func TestClassify_PublicByDefault(t *testing.T) {
	public := []string{
		"/",
		"/login",
		"/auth",
		"/terms",
		"/privacy",
		"/profile", // only the creation root is gated
	}

	for _, path := range public {
		assert.Equal(t, AccessPublic, Classify(path), "path %s", path)
	}
}

func TestAccessLevel_String(t *testing.T) {
	assert.Equal(t, "public", AccessPublic.String())
	assert.Equal(t, "authenticated", AccessAuthenticated.String())
	assert.Equal(t, "authenticated_with_profile", AccessAuthenticatedWithProfile.String())
}

func TestIsValidDashboardView(t *testing.T) {
	assert.True(t, IsValidDashboardView("personal"))
	assert.True(t, IsValidDashboardView("lab-owner"))
	assert.True(t, IsValidDashboardView("doctor"))

	assert.False(t, IsValidDashboardView(""))
	assert.False(t, IsValidDashboardView("bogus"))
	assert.False(t, IsValidDashboardView("Personal"))
}
