package repository

import (
	"context"
	"time"

	"github.com/AzielCF/az-admin/notify/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type notificationModel struct {
	ID        string    `gorm:"primaryKey;column:id"`
	UserID    string    `gorm:"column:user_id;not null;index"`
	Message   string    `gorm:"column:message;type:text;not null"`
	ViaEmail  bool      `gorm:"column:via_email;default:false"`
	Read      bool      `gorm:"column:read;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index"`
}

func (notificationModel) TableName() string { return "notifications" }

type NotificationGormRepository struct {
	db *gorm.DB
}

func NewNotificationGormRepository(db *gorm.DB) *NotificationGormRepository {
	return &NotificationGormRepository{db: db}
}

func (r *NotificationGormRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&notificationModel{})
}

// Create stores n, assigning an id when it has none. Storing an id that
// already exists is a no-op.
func (r *NotificationGormRepository) Create(ctx context.Context, n *domain.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	m := notificationModel{
		ID:        n.ID,
		UserID:    n.UserID,
		Message:   n.Message,
		ViaEmail:  n.ViaEmail,
		Read:      n.Read,
		CreatedAt: n.CreatedAt.UTC(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&m).Error
}

func (r *NotificationGormRepository) ListForUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var models []notificationModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Notification, 0, len(models))
	for _, m := range models {
		out = append(out, domain.Notification{
			ID:        m.ID,
			UserID:    m.UserID,
			Message:   m.Message,
			ViaEmail:  m.ViaEmail,
			Read:      m.Read,
			CreatedAt: m.CreatedAt,
		})
	}
	return out, nil
}
