package application

import (
	"testing"

	"github.com/AzielCF/az-admin/access/domain"
	pkgError "github.com/AzielCF/az-admin/pkg/error"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnforcer_RoleInheritance(t *testing.T) {
	e, err := NewEnforcer()
	require.NoError(t, err)

	tests := []struct {
		role domain.Role
		cap  domain.Capability
		want bool
	}{
		{domain.RoleUser, domain.CapViewAnalytics, false},
		{domain.RoleModerator, domain.CapViewAnalytics, true},
		{domain.RoleModerator, domain.CapModerateUsers, true},
		{domain.RoleModerator, domain.CapBanUsers, false},
		{domain.RoleModerator, domain.CapResetBalances, false},
		{domain.RoleAdmin, domain.CapViewLogs, true},
		{domain.RoleAdmin, domain.CapResetBalances, true},
		{domain.RoleAdmin, domain.CapMutateProtected, false},
		{domain.RoleMaster, domain.CapSystemMaintenance, true},
		{domain.RoleMaster, domain.CapMutateProtected, true},
		{domain.Role("root"), domain.CapViewLogs, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.cap), func(t *testing.T) {
			assert.Equal(t, tt.want, e.HasCapability(tt.role, tt.cap))
		})
	}
}

func TestEnforcer_Require(t *testing.T) {
	e := MustNewEnforcer()

	assert.NoError(t, e.Require(domain.RoleAdmin, domain.CapBulkUpdate))

	err := e.Require(domain.RoleModerator, domain.CapBulkUpdate)
	require.Error(t, err)
	var authErr pkgError.AuthorizationError
	assert.ErrorAs(t, err, &authErr)
	assert.Equal(t, 403, authErr.StatusCode())
}

func TestEnforcer_Capabilities(t *testing.T) {
	e := MustNewEnforcer()

	assert.Empty(t, e.Capabilities(domain.RoleUser))
	assert.Len(t, e.Capabilities(domain.RoleModerator), 6)
	assert.Len(t, e.Capabilities(domain.RoleAdmin), 12)
	assert.Len(t, e.Capabilities(domain.RoleMaster), 13)
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, domain.RoleAdmin, domain.ParseRole(" Admin "))
	assert.Equal(t, domain.RoleMaster, domain.ParseRole("master"))
	assert.Equal(t, domain.RoleUser, domain.ParseRole("superuser"))
	assert.True(t, domain.RoleMaster.Privileged())
	assert.False(t, domain.RoleModerator.Privileged())
}
