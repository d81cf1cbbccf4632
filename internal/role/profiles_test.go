package role

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rea/internal/domain"
)

func TestDefaultProfiles_CoverEveryRole(t *testing.T) {
	profiles := DefaultProfiles()
	for _, r := range domain.Roles {
		p, ok := profiles[r]
		require.True(t, ok, r)
		assert.Equal(t, r, p.Role)
		assert.NotEmpty(t, p.Instructions)
		assert.NotEmpty(t, p.Keywords)
		assert.Contains(t, p.Instructions, "request_approval")
	}
}

func TestLoadProfiles_Overrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scrum.yaml"), []byte(`
role: Scrum Lead
instructions: Keep the board tidy.
keywords: [kanban, board]
requireApprovalBeforeDone: false
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "po.yml"), []byte(`
role: product_owner
allowedTools: [wit_get_work_item, request_approval]
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o644))

	profiles, err := LoadProfiles(dir)
	require.NoError(t, err)

	sl := profiles[domain.RoleScrumLead]
	assert.Equal(t, "Keep the board tidy.", sl.Instructions)
	assert.Equal(t, []string{"kanban", "board"}, sl.Keywords)
	assert.False(t, sl.RequireApprovalBeforeDone)
	assert.Equal(t, "Scrum Lead", sl.Name)

	po := profiles[domain.RoleProductOwner]
	assert.Equal(t, []string{"wit_get_work_item", "request_approval"}, po.AllowedTools)
	assert.True(t, po.RequireApprovalBeforeDone)
	assert.Equal(t, DefaultProfiles()[domain.RoleProductOwner].Instructions, po.Instructions)
}

func TestLoadProfiles_UnknownRole(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.yaml"), []byte("role: architect\n"), 0o644))

	_, err := LoadProfiles(dir)
	var ure *domain.UnknownRoleError
	assert.ErrorAs(t, err, &ure)
}

func TestLoadProfiles_MissingDir(t *testing.T) {
	profiles, err := LoadProfiles(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Len(t, profiles, 3)
}
