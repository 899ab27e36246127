package application

import (
	"context"
	"fmt"
	"time"

	"github.com/AzielCF/az-admin/audit/domain"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Trail writes and reads the admin audit log.
type Trail struct {
	repo domain.Repository
}

func NewTrail(repo domain.Repository) *Trail {
	return &Trail{repo: repo}
}

// Record appends rec outside of any caller transaction.
func (t *Trail) Record(ctx context.Context, rec domain.Record) (domain.Record, error) {
	return t.RecordTx(ctx, nil, rec)
}

// RecordTx appends rec on tx so the record commits or rolls back together
// with the mutation it describes.
func (t *Trail) RecordTx(ctx context.Context, tx *gorm.DB, rec domain.Record) (domain.Record, error) {
	if rec.ActorID == "" {
		return domain.Record{}, fmt.Errorf("audit record requires an actor")
	}
	if rec.Action == "" {
		return domain.Record{}, fmt.Errorf("audit record requires an action")
	}
	if err := t.repo.Insert(ctx, tx, &rec); err != nil {
		return domain.Record{}, fmt.Errorf("failed to append audit record: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"actor":  rec.ActorID,
		"action": rec.Action,
		"target": rec.TargetID,
	}).Info("[AUDIT] recorded")
	return Enrich(rec), nil
}

// RecordDenied logs a rejected admin attempt. Failures are logged only.
func (t *Trail) RecordDenied(ctx context.Context, actorID, actorRole string, attempted string, req domain.RequestMetadata) {
	_, err := t.Record(ctx, domain.Record{
		ActorID:   actorID,
		ActorRole: actorRole,
		Action:    domain.ActionAccessDenied,
		TargetID:  attempted,
		Details:   map[string]any{"attempted": attempted},
		Request:   req,
	})
	if err != nil {
		logrus.WithError(err).WithField("actor", actorID).Warn("[AUDIT] failed to record denied access")
	}
}

func (t *Trail) Query(ctx context.Context, filter domain.Filter) (domain.Page, error) {
	page, err := t.repo.Query(ctx, filter)
	if err != nil {
		return domain.Page{}, err
	}
	for i := range page.Items {
		page.Items[i] = Enrich(page.Items[i])
	}
	return page, nil
}

// CountBetween counts audited admin actions in [from, to).
func (t *Trail) CountBetween(ctx context.Context, from, to time.Time) (int64, error) {
	return t.repo.CountBetween(ctx, from, to)
}

// Enrich fills the derived description and level of rec.
func Enrich(rec domain.Record) domain.Record {
	rec.Description = Describe(rec)
	rec.Level = LevelOf(rec)
	return rec
}

var descriptions = map[domain.Action]func(rec domain.Record) string{
	domain.ActionSuspend: func(rec domain.Record) string {
		return withReason(fmt.Sprintf("Suspended user %s", rec.TargetID), rec.Reason)
	},
	domain.ActionActivate: func(rec domain.Record) string {
		return fmt.Sprintf("Reactivated user %s", rec.TargetID)
	},
	domain.ActionBan: func(rec domain.Record) string {
		return withReason(fmt.Sprintf("Banned user %s", rec.TargetID), rec.Reason)
	},
	domain.ActionBulkUpdate: func(rec domain.Record) string {
		return fmt.Sprintf("Bulk updated %d %s", affected(rec), rec.TargetID)
	},
	domain.ActionBulkResetBalances: func(rec domain.Record) string {
		return fmt.Sprintf("Reset balances of %d users", affected(rec))
	},
	domain.ActionBulkCleanupExpired: func(rec domain.Record) string {
		return fmt.Sprintf("Expired %d stale records in %s", affected(rec), rec.TargetID)
	},
	domain.ActionBulkExport: func(rec domain.Record) string {
		return fmt.Sprintf("Exported %d records from %s", affected(rec), rec.TargetID)
	},
	domain.ActionSystemMaintenance: func(rec domain.Record) string {
		return fmt.Sprintf("Ran system maintenance, repaired %d references", affected(rec))
	},
	domain.ActionAccessDenied: func(rec domain.Record) string {
		return fmt.Sprintf("Denied access to %s", rec.TargetID)
	},
	domain.ActionCacheFlush: func(rec domain.Record) string {
		return fmt.Sprintf("Flushed cache namespace %s", rec.TargetID)
	},
	domain.ActionSettingsUpdate: func(rec domain.Record) string {
		return fmt.Sprintf("Changed setting %s", rec.TargetID)
	},
}

// Describe renders the fixed human-readable description for rec.
func Describe(rec domain.Record) string {
	if fn, ok := descriptions[rec.Action]; ok {
		return fn(rec)
	}
	return fmt.Sprintf("%s on %s", rec.Action, rec.TargetID)
}

// LevelOf classifies rec by impact.
func LevelOf(rec domain.Record) domain.Level {
	switch rec.Action {
	case domain.ActionBan, domain.ActionBulkResetBalances, domain.ActionSystemMaintenance:
		return domain.LevelCritical
	case domain.ActionSuspend, domain.ActionAccessDenied:
		return domain.LevelWarning
	case domain.ActionBulkUpdate:
		if affected(rec) >= domain.LargeImpactThreshold {
			return domain.LevelWarning
		}
	}
	return domain.LevelInfo
}

func affected(rec domain.Record) int64 {
	v, ok := rec.Details["records_affected"]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	case uint64:
		return int64(n)
	}
	return 0
}

func withReason(s, reason string) string {
	if reason == "" {
		return s
	}
	return s + ": " + reason
}
