package infrastructure

import (
	"context"
	"errors"
	"strings"

	"github.com/AzielCF/az-admin/core/settings/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AdminSettingModel struct {
	Key   string `gorm:"primaryKey;column:key"`
	Value string `gorm:"column:value"`
}

func (AdminSettingModel) TableName() string {
	return "admin_settings"
}

type SettingsGormRepository struct {
	db *gorm.DB
}

func NewSettingsGormRepository(db *gorm.DB) *SettingsGormRepository {
	return &SettingsGormRepository{db: db}
}

func (r *SettingsGormRepository) WithTx(tx *gorm.DB) domain.ISettingsRepository {
	return &SettingsGormRepository{db: tx}
}

func (r *SettingsGormRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&AdminSettingModel{})
}

func (r *SettingsGormRepository) Get(ctx context.Context, key string) (string, error) {
	var m AdminSettingModel
	if err := r.db.WithContext(ctx).First(&m, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(m.Value), nil
}

func (r *SettingsGormRepository) All(ctx context.Context) (map[string]string, error) {
	var models []AdminSettingModel
	if err := r.db.WithContext(ctx).Order("key").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(models))
	for _, m := range models {
		out[m.Key] = strings.TrimSpace(m.Value)
	}
	return out, nil
}

func (r *SettingsGormRepository) Set(ctx context.Context, key string, value string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"value": value}),
	}).Create(&AdminSettingModel{
		Key:   key,
		Value: value,
	}).Error
}

func (r *SettingsGormRepository) Delete(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Delete(&AdminSettingModel{}, "key = ?", key).Error
}
