package repository

import (
	"context"
	"testing"
	"time"

	accessDomain "github.com/AzielCF/az-admin/access/domain"
	"github.com/AzielCF/az-admin/accounts/domain"
	"github.com/AzielCF/az-admin/core/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepo(t *testing.T) *AccountsGormRepository {
	t.Helper()
	db, err := database.NewInMemory()
	require.NoError(t, err)
	repo := NewAccountsGormRepository(db)
	require.NoError(t, repo.InitSchema(context.Background()))
	return repo
}

func strPtr(s string) *string { return &s }

func TestAccountsGormRepository_UserRoundTrip(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	login := time.Now().Add(-time.Hour)
	require.NoError(t, repo.CreateUser(ctx, domain.User{
		ID:          "u1",
		Username:    "alice",
		Email:       "alice@example.com",
		Role:        accessDomain.RoleModerator,
		Kidzcoin:    250,
		FriendIDs:   []string{"u2"},
		LastLoginAt: &login,
	}))

	u, err := repo.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, accessDomain.RoleModerator, u.Role)
	assert.Equal(t, domain.StatusActive, u.Status)
	assert.Equal(t, []string{"u2"}, u.FriendIDs)
	assert.EqualValues(t, 250, u.Kidzcoin)

	_, err = repo.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	err = repo.UpdateUserFields(ctx, "missing", map[string]interface{}{"status": "banned"})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestAccountsGormRepository_IntegrityRepair(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateUser(ctx, domain.User{ID: "p", Username: "parent", Email: "p@x"}))
	require.NoError(t, repo.CreateUser(ctx, domain.User{ID: "c1", Username: "c1", Email: "c1@x", ParentID: strPtr("p"), FriendIDs: []string{"p", "gone-1"}}))
	require.NoError(t, repo.CreateUser(ctx, domain.User{ID: "c2", Username: "c2", Email: "c2@x", ParentID: strPtr("gone-2"), FriendIDs: []string{"gone-1", "gone-3"}}))
	require.NoError(t, repo.CreatePendingAction(ctx, domain.PendingAction{UserID: "gone-4", Kind: "purchase", ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, repo.CreatePendingAction(ctx, domain.PendingAction{UserID: "c1", Kind: "purchase", ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, repo.CreateCoinTransaction(ctx, domain.CoinTransaction{UserID: "c1", CounterpartyID: strPtr("gone-5"), Amount: 10}))
	require.NoError(t, repo.CreateCoinTransaction(ctx, domain.CoinTransaction{UserID: "c1", CounterpartyID: strPtr("p"), Amount: 5}))

	rep, err := repo.CheckIntegrity(ctx)
	require.NoError(t, err)
	assert.Equal(t, IntegrityReport{
		DanglingParents:        1,
		DanglingFriendRefs:     3,
		OrphanPendingActions:   1,
		DanglingCounterparties: 1,
	}, rep)

	fixed, err := repo.RepairIntegrity(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, rep, fixed)

	after, err := repo.CheckIntegrity(ctx)
	require.NoError(t, err)
	assert.Zero(t, after.Total())

	c1, err := repo.GetUser(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p"}, c1.FriendIDs)
	require.NotNil(t, c1.ParentID)

	c2, err := repo.GetUser(ctx, "c2")
	require.NoError(t, err)
	assert.Nil(t, c2.ParentID)
	assert.Empty(t, c2.FriendIDs)
}

func TestAccountsGormRepository_RepairIntegrityProtectsMasters(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateUser(ctx, domain.User{ID: "root", Username: "root", Email: "r@x", Role: accessDomain.RoleMaster, ParentID: strPtr("gone-1"), FriendIDs: []string{"gone-2"}}))
	require.NoError(t, repo.CreateCoinTransaction(ctx, domain.CoinTransaction{UserID: "root", CounterpartyID: strPtr("gone-3"), Amount: 1}))

	fixed, err := repo.RepairIntegrity(ctx, true)
	require.NoError(t, err)
	assert.Zero(t, fixed.Total())

	fixed, err = repo.RepairIntegrity(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, IntegrityReport{DanglingParents: 1, DanglingFriendRefs: 1, DanglingCounterparties: 1}, fixed)
}

func TestAccountsGormRepository_Stats(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.CreateUser(ctx, domain.User{ID: "rich", Username: "rich", Email: "r@x", Kidzcoin: 5_000_000}))
	require.NoError(t, repo.CreateUser(ctx, domain.User{ID: "s", Username: "s", Email: "s@x", Status: domain.StatusSuspended}))
	require.NoError(t, repo.CreatePendingAction(ctx, domain.PendingAction{UserID: "s", Kind: "k", ExpiresAt: now.Add(time.Hour), CreatedAt: now.Add(-10 * 24 * time.Hour)}))
	require.NoError(t, repo.CreateCoinTransaction(ctx, domain.CoinTransaction{UserID: "rich", Amount: 100}))
	require.NoError(t, repo.CreateCoinTransaction(ctx, domain.CoinTransaction{UserID: "rich", Amount: -40}))

	n, err := repo.LargeBalances(ctx, 1_000_000)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = repo.CountByStatus(ctx, string(domain.StatusSuspended))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = repo.PendingBacklog(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = repo.StalePending(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = repo.CoinsIssued(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 100, n)

	n, err = repo.NewUsers(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	assert.NoError(t, repo.Ping(ctx))
}
