package domain

import (
	"context"
	"time"
)

type Level string

const (
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
	LevelError    Level = "error"
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Rank orders priorities, higher first.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// Alert is computed per request and never stored.
type Alert struct {
	Level             Level     `json:"level"`
	Message           string    `json:"message"`
	RecommendedAction string    `json:"recommended_action"`
	Priority          Priority  `json:"priority"`
	Timestamp         time.Time `json:"timestamp"`
}

// SignalSource exposes the persistent-store counters the health rules read.
type SignalSource interface {
	Ping(ctx context.Context) error
	PendingBacklog(ctx context.Context) (int64, error)
	StalePending(ctx context.Context, before time.Time) (int64, error)
	LargeBalances(ctx context.Context, threshold int64) (int64, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
	OrphanedReferences(ctx context.Context) (int64, error)
}

// CacheChecker reports whether the cache backend answers.
type CacheChecker interface {
	Ping(ctx context.Context) bool
}
