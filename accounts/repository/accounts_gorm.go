package repository

import (
	"context"
	"errors"
	"time"

	"github.com/AzielCF/az-admin/accounts/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// AccountsGormRepository implements domain.Repository on GORM.
type AccountsGormRepository struct {
	db *gorm.DB
}

func NewAccountsGormRepository(db *gorm.DB) *AccountsGormRepository {
	return &AccountsGormRepository{db: db}
}

// WithTx returns a repository bound to an open transaction.
func (r *AccountsGormRepository) WithTx(tx *gorm.DB) *AccountsGormRepository {
	return &AccountsGormRepository{db: tx}
}

func (r *AccountsGormRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(
		&userModel{},
		&pendingActionModel{},
		&invitationModel{},
		&coinTransactionModel{},
	)
}

func (r *AccountsGormRepository) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now().UTC()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Status == "" {
		u.Status = domain.StatusActive
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}
	model := toUserModel(u)
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *AccountsGormRepository) GetUser(ctx context.Context, id string) (domain.User, error) {
	var m userModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, err
	}
	return fromUserModel(m), nil
}

func (r *AccountsGormRepository) ListUsers(ctx context.Context, filter domain.UserFilter) (domain.UserPage, error) {
	page, limit := normalizePage(filter.Page, filter.Limit)

	q := r.db.WithContext(ctx).Model(&userModel{})
	if filter.Role != "" {
		q = q.Where("role = ?", filter.Role)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return domain.UserPage{}, err
	}

	var models []userModel
	if err := q.Order("created_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&models).Error; err != nil {
		return domain.UserPage{}, err
	}

	items := make([]domain.User, 0, len(models))
	for _, m := range models {
		items = append(items, fromUserModel(m))
	}
	return domain.UserPage{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// UpdateUserFields applies a partial update and bumps updated_at.
func (r *AccountsGormRepository) UpdateUserFields(ctx context.Context, id string, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&userModel{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *AccountsGormRepository) CreatePendingAction(ctx context.Context, p domain.PendingAction) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = domain.PendingStatusPending
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	model := toPendingActionModel(p)
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *AccountsGormRepository) CreateInvitation(ctx context.Context, inv domain.Invitation) error {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.Status == "" {
		inv.Status = domain.InvitationPending
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	model := toInvitationModel(inv)
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *AccountsGormRepository) CreateCoinTransaction(ctx context.Context, tx domain.CoinTransaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	model := toCoinTransactionModel(tx)
	return r.db.WithContext(ctx).Create(&model).Error
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}
