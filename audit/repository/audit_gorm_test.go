package repository

import (
	"context"
	"testing"

	"github.com/AzielCF/az-admin/audit/domain"
	"github.com/AzielCF/az-admin/core/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditGormRepository_AppendOnly(t *testing.T) {
	db, err := database.NewInMemory()
	require.NoError(t, err)
	repo := NewAuditGormRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.InitSchema(ctx))

	rec := &domain.Record{
		ActorID:  "admin-1",
		Action:   domain.ActionBan,
		TargetID: "user-1",
		Reason:   "fraud",
		Details:  map[string]any{"source": "report"},
	}
	require.NoError(t, repo.Insert(ctx, nil, rec))
	require.NotEmpty(t, rec.ID)

	err = db.Model(&auditLogModel{ID: rec.ID}).Update("reason", "edited").Error
	assert.ErrorIs(t, err, domain.ErrImmutable)

	err = db.Delete(&auditLogModel{ID: rec.ID}).Error
	assert.ErrorIs(t, err, domain.ErrImmutable)

	page, err := repo.Query(ctx, domain.Filter{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "fraud", page.Items[0].Reason)
	assert.Equal(t, "report", page.Items[0].Details["source"])
}

func TestAuditGormRepository_QueryFiltersAndPaging(t *testing.T) {
	db, err := database.NewInMemory()
	require.NoError(t, err)
	repo := NewAuditGormRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.InitSchema(ctx))

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Insert(ctx, nil, &domain.Record{ActorID: "a", Action: domain.ActionSuspend, TargetID: "u1"}))
	}
	require.NoError(t, repo.Insert(ctx, nil, &domain.Record{ActorID: "b", Action: domain.ActionActivate, TargetID: "u2"}))

	page, err := repo.Query(ctx, domain.Filter{ActorID: "a", Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 5, page.Total)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 2, page.Page)

	page, err = repo.Query(ctx, domain.Filter{Action: string(domain.ActionActivate)})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "u2", page.Items[0].TargetID)
}
