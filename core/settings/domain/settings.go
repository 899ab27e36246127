package domain

import (
	"context"

	"gorm.io/gorm"
)

// Setting represents a runtime override stored in the database.
type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ISettingsRepository defines the contract for persisting runtime overrides.
type ISettingsRepository interface {
	// Basic CRUD
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
	All(ctx context.Context) (map[string]string, error)

	// WithTx binds the repository to a caller transaction.
	WithTx(tx *gorm.DB) ISettingsRepository

	// InitSchema creates the necessary tables
	InitSchema(ctx context.Context) error
}

// Keys an operator may override at runtime.
const (
	KeyQuotaDefaultLimit        = "quota_default_limit"
	KeyQuotaAdminLimit          = "quota_admin_limit"
	KeyHealthPendingBacklog     = "health_pending_backlog_threshold"
	KeyHealthLargeBalance       = "health_large_balance_threshold"
	KeyHealthSuspendedThreshold = "health_suspended_threshold"
	KeyHealthBannedThreshold    = "health_banned_threshold"
	KeyHealthMemoryHighRatio    = "health_memory_high_ratio"
	KeyHealthMemoryMediumRatio  = "health_memory_medium_ratio"
)

// Kind is how a setting value is parsed.
type Kind int

const (
	KindInt Kind = iota
	KindRatio
)

// Known lists every overridable key with its value kind.
var Known = map[string]Kind{
	KeyQuotaDefaultLimit:        KindInt,
	KeyQuotaAdminLimit:          KindInt,
	KeyHealthPendingBacklog:     KindInt,
	KeyHealthLargeBalance:       KindInt,
	KeyHealthSuspendedThreshold: KindInt,
	KeyHealthBannedThreshold:    KindInt,
	KeyHealthMemoryHighRatio:    KindRatio,
	KeyHealthMemoryMediumRatio:  KindRatio,
}
