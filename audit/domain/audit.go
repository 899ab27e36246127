package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrImmutable is returned when something tries to change a written audit record.
var ErrImmutable = errors.New("audit records are append-only")

type Action string

const (
	ActionSuspend            Action = "suspend"
	ActionActivate           Action = "activate"
	ActionBan                Action = "ban"
	ActionBulkUpdate         Action = "bulk_update"
	ActionBulkResetBalances  Action = "bulk_reset_balances"
	ActionBulkCleanupExpired Action = "bulk_cleanup_expired"
	ActionBulkExport         Action = "bulk_export"
	ActionSystemMaintenance  Action = "system_maintenance"
	ActionAccessDenied       Action = "admin_access_denied"
	ActionCacheFlush         Action = "cache_flush"
	ActionSettingsUpdate     Action = "settings_update"
)

type Level string

const (
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// LargeImpactThreshold is the records_affected count from which a bulk update
// is reported as a warning.
const LargeImpactThreshold = 100

// RequestMetadata describes the request that caused an audited action.
type RequestMetadata struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type Record struct {
	ID             string          `json:"id"`
	ActorID        string          `json:"actor_id"`
	ActorRole      string          `json:"actor_role"`
	Action         Action          `json:"action"`
	TargetID       string          `json:"target_id"`
	Reason         string          `json:"reason,omitempty"`
	PreviousValues map[string]any  `json:"previous_values,omitempty"`
	NewValues      map[string]any  `json:"new_values,omitempty"`
	Details        map[string]any  `json:"details,omitempty"`
	Request        RequestMetadata `json:"request"`
	CreatedAt      time.Time       `json:"timestamp"`

	// Derived on read.
	Description string `json:"description,omitempty"`
	Level       Level  `json:"level,omitempty"`
}

type Filter struct {
	ActorID  string
	Action   string
	TargetID string
	Since    *time.Time
	Page     int
	Limit    int
}

type Page struct {
	Items []Record `json:"items"`
	Total int64    `json:"total"`
	Page  int      `json:"page"`
	Limit int      `json:"limit"`
}

// Repository is an append-only store. It has no update or delete operations.
type Repository interface {
	InitSchema(ctx context.Context) error
	Insert(ctx context.Context, db *gorm.DB, rec *Record) error
	Query(ctx context.Context, filter Filter) (Page, error)
	CountBetween(ctx context.Context, from, to time.Time) (int64, error)
}
