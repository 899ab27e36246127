package application

import (
	"context"
	"testing"

	accessApp "github.com/AzielCF/az-admin/access/application"
	accessDomain "github.com/AzielCF/az-admin/access/domain"
	auditApp "github.com/AzielCF/az-admin/audit/application"
	auditDomain "github.com/AzielCF/az-admin/audit/domain"
	auditRepo "github.com/AzielCF/az-admin/audit/repository"
	cacheApp "github.com/AzielCF/az-admin/cache/application"
	cacheRepo "github.com/AzielCF/az-admin/cache/repository"
	"github.com/AzielCF/az-admin/core/config"
	"github.com/AzielCF/az-admin/core/database"
	"github.com/AzielCF/az-admin/core/settings/domain"
	"github.com/AzielCF/az-admin/core/settings/infrastructure"
	pkgError "github.com/AzielCF/az-admin/pkg/error"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*SettingsService, *auditApp.Trail) {
	t.Helper()
	db, err := database.NewInMemory()
	require.NoError(t, err)

	repo := infrastructure.NewSettingsGormRepository(db)
	audits := auditRepo.NewAuditGormRepository(db)
	require.NoError(t, database.Migrate(context.Background(), repo, audits))

	trail := auditApp.NewTrail(audits)
	base := config.Config{
		Quota:  config.QuotaConfig{DefaultLimit: 100, AdminLimit: 200},
		Health: config.HealthConfig{PendingBacklogThreshold: 50, MemoryHighRatio: 0.9, MemoryMediumRatio: 0.75},
	}
	store := cacheApp.NewStore(cacheRepo.NewMemoryBackend(), cacheApp.Options{})
	return NewSettingsService(db, repo, trail, store, accessApp.MustNewEnforcer(), base), trail
}

var admin = accessDomain.Actor{ID: "admin-1", Role: accessDomain.RoleAdmin}

func TestSettingsService_UpdateOverridesAndAudits(t *testing.T) {
	svc, trail := newService(t)
	ctx := context.Background()

	var notified *DynamicSettings
	svc.OnChange(func(ds *DynamicSettings) { notified = ds })

	ds, err := svc.Update(ctx, admin, map[string]string{
		domain.KeyQuotaDefaultLimit:    "20",
		domain.KeyHealthPendingBacklog: "5",
	})
	require.NoError(t, err)
	require.NotNil(t, ds.QuotaDefaultLimit)
	assert.Equal(t, 20, *ds.QuotaDefaultLimit)
	assert.Same(t, ds, notified)

	assert.Equal(t, 20, svc.QuotaConfig(ctx).DefaultLimit)
	assert.Equal(t, 200, svc.QuotaConfig(ctx).AdminLimit)
	assert.EqualValues(t, 5, svc.HealthThresholds(ctx).PendingBacklogThreshold)
	assert.Equal(t, 0.9, svc.HealthThresholds(ctx).MemoryHighRatio)

	page, err := trail.Query(ctx, auditDomain.Filter{Action: string(auditDomain.ActionSettingsUpdate)})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "20", page.Items[0].NewValues[domain.KeyQuotaDefaultLimit])
}

func TestSettingsService_EmptyValueResetsOverride(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Update(ctx, admin, map[string]string{domain.KeyHealthMemoryHighRatio: "0.8"})
	require.NoError(t, err)
	assert.Equal(t, 0.8, svc.HealthThresholds(ctx).MemoryHighRatio)

	_, err = svc.Update(ctx, admin, map[string]string{domain.KeyHealthMemoryHighRatio: ""})
	require.NoError(t, err)
	assert.Equal(t, 0.9, svc.HealthThresholds(ctx).MemoryHighRatio)
}

func TestSettingsService_RejectsInvalidValues(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	for _, values := range []map[string]string{
		{},
		{"unknown_key": "1"},
		{domain.KeyQuotaAdminLimit: "many"},
		{domain.KeyQuotaAdminLimit: "0"},
		{domain.KeyHealthMemoryMediumRatio: "1.5"},
	} {
		_, err := svc.Update(ctx, admin, values)
		var valErr pkgError.ValidationError
		assert.ErrorAs(t, err, &valErr, "%v", values)
	}
}

func TestSettingsService_RequiresMaintenanceCapability(t *testing.T) {
	svc, trail := newService(t)
	ctx := context.Background()

	_, err := svc.Update(ctx, accessDomain.Actor{ID: "mod-1", Role: accessDomain.RoleModerator}, map[string]string{domain.KeyQuotaAdminLimit: "10"})
	var authErr pkgError.AuthorizationError
	require.ErrorAs(t, err, &authErr)

	page, err := trail.Query(ctx, auditDomain.Filter{Action: string(auditDomain.ActionAccessDenied)})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 200, svc.QuotaConfig(ctx).AdminLimit)
}
