package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/AzielCF/az-admin/audit/domain"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type auditLogModel struct {
	ID             string         `gorm:"primaryKey;column:id"`
	ActorID        string         `gorm:"column:actor_id;not null;index"`
	ActorRole      string         `gorm:"column:actor_role"`
	Action         string         `gorm:"column:action;not null;index"`
	TargetID       string         `gorm:"column:target_id;index"`
	Reason         sql.NullString `gorm:"column:reason"`
	PreviousValues sql.NullString `gorm:"column:previous_values;type:text"` // JSON
	NewValues      sql.NullString `gorm:"column:new_values;type:text"`      // JSON
	Details        sql.NullString `gorm:"column:details;type:text"`         // JSON
	IP             sql.NullString `gorm:"column:ip"`
	UserAgent      sql.NullString `gorm:"column:user_agent"`
	RequestID      sql.NullString `gorm:"column:request_id"`
	CreatedAt      time.Time      `gorm:"column:created_at;not null;index"`
}

func (auditLogModel) TableName() string { return "admin_audit_logs" }

func (auditLogModel) BeforeUpdate(tx *gorm.DB) error { return domain.ErrImmutable }

func (auditLogModel) BeforeDelete(tx *gorm.DB) error { return domain.ErrImmutable }

type AuditGormRepository struct {
	db *gorm.DB
}

func NewAuditGormRepository(db *gorm.DB) *AuditGormRepository {
	return &AuditGormRepository{db: db}
}

func (r *AuditGormRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&auditLogModel{})
}

// Insert appends rec using db, which may be an open transaction. A nil db
// writes through the repository connection.
func (r *AuditGormRepository) Insert(ctx context.Context, db *gorm.DB, rec *domain.Record) error {
	if db == nil {
		db = r.db
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	model := toAuditLogModel(*rec)
	return db.WithContext(ctx).Create(&model).Error
}

func (r *AuditGormRepository) Query(ctx context.Context, filter domain.Filter) (domain.Page, error) {
	page, limit := filter.Page, filter.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	q := r.db.WithContext(ctx).Model(&auditLogModel{})
	if filter.ActorID != "" {
		q = q.Where("actor_id = ?", filter.ActorID)
	}
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	if filter.TargetID != "" {
		q = q.Where("target_id = ?", filter.TargetID)
	}
	if filter.Since != nil {
		q = q.Where("created_at >= ?", filter.Since.UTC())
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return domain.Page{}, err
	}

	var models []auditLogModel
	if err := q.Order("created_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&models).Error; err != nil {
		return domain.Page{}, err
	}

	items := make([]domain.Record, 0, len(models))
	for _, m := range models {
		items = append(items, fromAuditLogModel(m))
	}
	return domain.Page{Items: items, Total: total, Page: page, Limit: limit}, nil
}

func (r *AuditGormRepository) CountBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&auditLogModel{}).
		Where("created_at >= ? AND created_at < ? AND action <> ?", from.UTC(), to.UTC(), string(domain.ActionAccessDenied)).
		Count(&n).Error
	return n, err
}

func toAuditLogModel(rec domain.Record) auditLogModel {
	return auditLogModel{
		ID:             rec.ID,
		ActorID:        rec.ActorID,
		ActorRole:      rec.ActorRole,
		Action:         string(rec.Action),
		TargetID:       rec.TargetID,
		Reason:         nullString(rec.Reason),
		PreviousValues: encodeJSON(rec.PreviousValues),
		NewValues:      encodeJSON(rec.NewValues),
		Details:        encodeJSON(rec.Details),
		IP:             nullString(rec.Request.IP),
		UserAgent:      nullString(rec.Request.UserAgent),
		RequestID:      nullString(rec.Request.RequestID),
		CreatedAt:      rec.CreatedAt.UTC(),
	}
}

func fromAuditLogModel(m auditLogModel) domain.Record {
	return domain.Record{
		ID:             m.ID,
		ActorID:        m.ActorID,
		ActorRole:      m.ActorRole,
		Action:         domain.Action(m.Action),
		TargetID:       m.TargetID,
		Reason:         m.Reason.String,
		PreviousValues: decodeJSON(m.PreviousValues),
		NewValues:      decodeJSON(m.NewValues),
		Details:        decodeJSON(m.Details),
		Request: domain.RequestMetadata{
			IP:        m.IP.String,
			UserAgent: m.UserAgent.String,
			RequestID: m.RequestID.String,
		},
		CreatedAt: m.CreatedAt,
	}
}

func encodeJSON(v map[string]any) sql.NullString {
	if len(v) == 0 {
		return sql.NullString{}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(data), Valid: true}
}

func decodeJSON(s sql.NullString) map[string]any {
	if !s.Valid || s.String == "" {
		return nil
	}
	out := make(map[string]any)
	if err := json.Unmarshal([]byte(s.String), &out); err != nil {
		return nil
	}
	return out
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
