package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"product owner":    RoleProductOwner,
		"  Product Owner ": RoleProductOwner,
		"SCRUM LEAD":       RoleScrumLead,
		"Peer Reviewer":    RolePeerReviewer,
		"peer review":      RolePeerReviewer,
		"scrum_lead":       RoleScrumLead,
	}
	for in, want := range cases {
		got, ok := ParseRole(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "architect", "product-owner"} {
		_, ok := ParseRole(in)
		assert.False(t, ok, in)
	}
}

func TestRolePriority(t *testing.T) {
	assert.Greater(t, RolePeerReviewer.Priority(), RoleScrumLead.Priority())
	assert.Greater(t, RoleScrumLead.Priority(), RoleProductOwner.Priority())
	assert.Zero(t, Role("architect").Priority())

	for i := 1; i < len(Roles); i++ {
		assert.Less(t, Roles[i-1].Priority(), Roles[i].Priority(), "Roles is ordered lowest priority first")
	}
}

func TestRoleDisplayName(t *testing.T) {
	assert.Equal(t, "Product Owner", RoleProductOwner.DisplayName())
	assert.Equal(t, "Scrum Lead", RoleScrumLead.DisplayName())
	assert.Equal(t, "Peer Reviewer", RolePeerReviewer.DisplayName())
	assert.Equal(t, "custom", Role("custom").DisplayName())
}
