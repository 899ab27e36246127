package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AzielCF/az-admin/audit/domain"
	"github.com/AzielCF/az-admin/audit/repository"
	"github.com/AzielCF/az-admin/core/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTrail(t *testing.T) (*Trail, *gorm.DB) {
	t.Helper()
	db, err := database.NewInMemory()
	require.NoError(t, err)
	repo := repository.NewAuditGormRepository(db)
	require.NoError(t, repo.InitSchema(context.Background()))
	return NewTrail(repo), db
}

func TestTrail_RecordAndQuery(t *testing.T) {
	trail, _ := setupTrail(t)
	ctx := context.Background()

	rec, err := trail.Record(ctx, domain.Record{
		ActorID:        "admin-1",
		ActorRole:      "admin",
		Action:         domain.ActionSuspend,
		TargetID:       "user-1",
		Reason:         "spam",
		PreviousValues: map[string]any{"status": "active"},
		NewValues:      map[string]any{"status": "suspended"},
		Request:        domain.RequestMetadata{IP: "10.0.0.1", RequestID: "req-1"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "Suspended user user-1: spam", rec.Description)
	assert.Equal(t, domain.LevelWarning, rec.Level)

	page, err := trail.Query(ctx, domain.Filter{TargetID: "user-1"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	got := page.Items[0]
	assert.Equal(t, "active", got.PreviousValues["status"])
	assert.Equal(t, "suspended", got.NewValues["status"])
	assert.Equal(t, "10.0.0.1", got.Request.IP)
	assert.Equal(t, domain.LevelWarning, got.Level)
}

func TestTrail_RecordTxRollsBackWithCaller(t *testing.T) {
	trail, db := setupTrail(t)
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := trail.RecordTx(ctx, tx, domain.Record{ActorID: "a", Action: domain.ActionBan, TargetID: "u"}); err != nil {
			return err
		}
		return errors.New("mutation failed")
	})
	require.Error(t, err)

	page, err := trail.Query(ctx, domain.Filter{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestTrail_RequiresActorAndAction(t *testing.T) {
	trail, _ := setupTrail(t)
	_, err := trail.Record(context.Background(), domain.Record{Action: domain.ActionBan})
	assert.Error(t, err)
	_, err = trail.Record(context.Background(), domain.Record{ActorID: "a"})
	assert.Error(t, err)
}

func TestLevelOf(t *testing.T) {
	tests := []struct {
		name string
		rec  domain.Record
		want domain.Level
	}{
		{"ban", domain.Record{Action: domain.ActionBan}, domain.LevelCritical},
		{"reset", domain.Record{Action: domain.ActionBulkResetBalances}, domain.LevelCritical},
		{"maintenance", domain.Record{Action: domain.ActionSystemMaintenance}, domain.LevelCritical},
		{"suspend", domain.Record{Action: domain.ActionSuspend}, domain.LevelWarning},
		{"small bulk", domain.Record{Action: domain.ActionBulkUpdate, Details: map[string]any{"records_affected": 5}}, domain.LevelInfo},
		{"large bulk", domain.Record{Action: domain.ActionBulkUpdate, Details: map[string]any{"records_affected": float64(150)}}, domain.LevelWarning},
		{"activate", domain.Record{Action: domain.ActionActivate}, domain.LevelInfo},
		{"export", domain.Record{Action: domain.ActionBulkExport}, domain.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LevelOf(tt.rec))
		})
	}
}

func TestTrail_CountBetweenSkipsDenied(t *testing.T) {
	trail, _ := setupTrail(t)
	ctx := context.Background()

	_, err := trail.Record(ctx, domain.Record{ActorID: "a", Action: domain.ActionActivate, TargetID: "u"})
	require.NoError(t, err)
	trail.RecordDenied(ctx, "m", "moderator", "bulk_reset_balances", domain.RequestMetadata{})

	n, err := trail.CountBetween(ctx, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
