package repository

import (
	"context"
	"time"

	"github.com/AzielCF/az-admin/accounts/domain"
)

// Ping checks the underlying connection.
func (r *AccountsGormRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// PendingBacklog counts pending actions that have not expired yet.
func (r *AccountsGormRepository) PendingBacklog(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&pendingActionModel{}).
		Where("status = ? AND expires_at > ?", domain.PendingStatusPending, time.Now().UTC()).
		Count(&n).Error
	return n, err
}

// StalePending counts pending actions created before the cutoff and never processed.
func (r *AccountsGormRepository) StalePending(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&pendingActionModel{}).
		Where("status = ? AND created_at < ?", domain.PendingStatusPending, before.UTC()).
		Count(&n).Error
	return n, err
}

func (r *AccountsGormRepository) LargeBalances(ctx context.Context, threshold int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&userModel{}).Where("kidzcoin > ?", threshold).Count(&n).Error
	return n, err
}

func (r *AccountsGormRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&userModel{}).Where("status = ?", status).Count(&n).Error
	return n, err
}

func (r *AccountsGormRepository) OrphanedReferences(ctx context.Context) (int64, error) {
	rep, err := r.CheckIntegrity(ctx)
	if err != nil {
		return 0, err
	}
	return rep.Total(), nil
}

// --- Analytics counters over [from, to) ---

func (r *AccountsGormRepository) NewUsers(ctx context.Context, from, to time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&userModel{}).
		Where("created_at >= ? AND created_at < ?", from.UTC(), to.UTC()).Count(&n).Error
	return n, err
}

func (r *AccountsGormRepository) ActiveUsers(ctx context.Context, from, to time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&userModel{}).
		Where("last_login_at >= ? AND last_login_at < ?", from.UTC(), to.UTC()).Count(&n).Error
	return n, err
}

// CoinsIssued sums positive coin movements.
func (r *AccountsGormRepository) CoinsIssued(ctx context.Context, from, to time.Time) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).Model(&coinTransactionModel{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("amount > 0 AND created_at >= ? AND created_at < ?", from.UTC(), to.UTC()).
		Scan(&sum).Error
	return sum, err
}

func (r *AccountsGormRepository) PendingActionsCreated(ctx context.Context, from, to time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&pendingActionModel{}).
		Where("created_at >= ? AND created_at < ?", from.UTC(), to.UTC()).Count(&n).Error
	return n, err
}
