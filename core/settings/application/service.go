package application

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	accessDomain "github.com/AzielCF/az-admin/access/domain"
	auditApp "github.com/AzielCF/az-admin/audit/application"
	auditDomain "github.com/AzielCF/az-admin/audit/domain"
	cacheDomain "github.com/AzielCF/az-admin/cache/domain"
	"github.com/AzielCF/az-admin/core/config"
	"github.com/AzielCF/az-admin/core/settings/domain"
	pkgError "github.com/AzielCF/az-admin/pkg/error"
	"github.com/AzielCF/az-admin/validations"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// settingsTarget is the audit target of every settings change.
const settingsTarget = "settings"

type SettingsService struct {
	db     *gorm.DB
	repo   domain.ISettingsRepository
	trail  *auditApp.Trail
	cache  cacheDomain.Invalidator
	access accessDomain.Checker
	base   config.Config

	mu        sync.RWMutex
	listeners []func(*DynamicSettings)
}

func NewSettingsService(
	db *gorm.DB,
	repo domain.ISettingsRepository,
	trail *auditApp.Trail,
	cache cacheDomain.Invalidator,
	access accessDomain.Checker,
	base config.Config,
) *SettingsService {
	return &SettingsService{
		db:     db,
		repo:   repo,
		trail:  trail,
		cache:  cache,
		access: access,
		base:   base,
	}
}

// DynamicSettings holds the overrides currently stored. Nil fields fall back
// to the static configuration.
type DynamicSettings struct {
	QuotaDefaultLimit       *int     `json:"quota_default_limit,omitempty"`
	QuotaAdminLimit         *int     `json:"quota_admin_limit,omitempty"`
	PendingBacklogThreshold *int64   `json:"health_pending_backlog_threshold,omitempty"`
	LargeBalanceThreshold   *int64   `json:"health_large_balance_threshold,omitempty"`
	SuspendedThreshold      *int64   `json:"health_suspended_threshold,omitempty"`
	BannedThreshold         *int64   `json:"health_banned_threshold,omitempty"`
	MemoryHighRatio         *float64 `json:"health_memory_high_ratio,omitempty"`
	MemoryMediumRatio       *float64 `json:"health_memory_medium_ratio,omitempty"`
}

func parseDynamic(values map[string]string) *DynamicSettings {
	ds := &DynamicSettings{}

	intOf := func(key string) *int64 {
		if n, err := strconv.ParseInt(values[key], 10, 64); err == nil && n > 0 {
			return &n
		}
		return nil
	}
	ratioOf := func(key string) *float64 {
		if f, err := strconv.ParseFloat(values[key], 64); err == nil && f > 0 && f <= 1 {
			return &f
		}
		return nil
	}

	if n := intOf(domain.KeyQuotaDefaultLimit); n != nil {
		v := int(*n)
		ds.QuotaDefaultLimit = &v
	}
	if n := intOf(domain.KeyQuotaAdminLimit); n != nil {
		v := int(*n)
		ds.QuotaAdminLimit = &v
	}
	ds.PendingBacklogThreshold = intOf(domain.KeyHealthPendingBacklog)
	ds.LargeBalanceThreshold = intOf(domain.KeyHealthLargeBalance)
	ds.SuspendedThreshold = intOf(domain.KeyHealthSuspendedThreshold)
	ds.BannedThreshold = intOf(domain.KeyHealthBannedThreshold)
	ds.MemoryHighRatio = ratioOf(domain.KeyHealthMemoryHighRatio)
	ds.MemoryMediumRatio = ratioOf(domain.KeyHealthMemoryMediumRatio)
	return ds
}

// ApplyHealth returns cfg with the stored overrides applied.
func (ds *DynamicSettings) ApplyHealth(cfg config.HealthConfig) config.HealthConfig {
	if ds == nil {
		return cfg
	}
	if ds.PendingBacklogThreshold != nil {
		cfg.PendingBacklogThreshold = *ds.PendingBacklogThreshold
	}
	if ds.LargeBalanceThreshold != nil {
		cfg.LargeBalanceThreshold = *ds.LargeBalanceThreshold
	}
	if ds.SuspendedThreshold != nil {
		cfg.SuspendedThreshold = *ds.SuspendedThreshold
	}
	if ds.BannedThreshold != nil {
		cfg.BannedThreshold = *ds.BannedThreshold
	}
	if ds.MemoryHighRatio != nil {
		cfg.MemoryHighRatio = *ds.MemoryHighRatio
	}
	if ds.MemoryMediumRatio != nil {
		cfg.MemoryMediumRatio = *ds.MemoryMediumRatio
	}
	return cfg
}

// ApplyQuota returns cfg with the stored overrides applied.
func (ds *DynamicSettings) ApplyQuota(cfg config.QuotaConfig) config.QuotaConfig {
	if ds == nil {
		return cfg
	}
	if ds.QuotaDefaultLimit != nil {
		cfg.DefaultLimit = *ds.QuotaDefaultLimit
	}
	if ds.QuotaAdminLimit != nil {
		cfg.AdminLimit = *ds.QuotaAdminLimit
	}
	return cfg
}

func (s *SettingsService) GetDynamicSettings(ctx context.Context) (*DynamicSettings, error) {
	values, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	return parseDynamic(values), nil
}

// HealthThresholds returns the effective health thresholds. A store error
// falls back to the static configuration.
func (s *SettingsService) HealthThresholds(ctx context.Context) config.HealthConfig {
	ds, err := s.GetDynamicSettings(ctx)
	if err != nil {
		logrus.WithError(err).Warn("[SETTINGS] failed to load overrides, using static thresholds")
		return s.base.Health
	}
	return ds.ApplyHealth(s.base.Health)
}

// QuotaConfig returns the effective quota configuration.
func (s *SettingsService) QuotaConfig(ctx context.Context) config.QuotaConfig {
	ds, err := s.GetDynamicSettings(ctx)
	if err != nil {
		logrus.WithError(err).Warn("[SETTINGS] failed to load overrides, using static quota")
		return s.base.Quota
	}
	return ds.ApplyQuota(s.base.Quota)
}

// OnChange registers fn to run after every committed update.
func (s *SettingsService) OnChange(fn func(*DynamicSettings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Update stores the given overrides. An empty value removes the override.
// The change and its audit record commit together.
func (s *SettingsService) Update(ctx context.Context, actor accessDomain.Actor, values map[string]string) (*DynamicSettings, error) {
	meta := auditDomain.RequestMetadata{IP: actor.IP, UserAgent: actor.UserAgent, RequestID: actor.RequestID}
	if !s.access.HasCapability(actor.Role, accessDomain.CapSystemMaintenance) {
		s.trail.RecordDenied(ctx, actor.ID, string(actor.Role), string(auditDomain.ActionSettingsUpdate), meta)
		return nil, pkgError.AuthorizationError(fmt.Sprintf("role %q may not change settings", actor.Role))
	}
	if err := validations.ValidateSettings(ctx, values); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	txCtx := context.WithoutCancel(ctx)
	err := s.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.All(txCtx)
		if err != nil {
			return err
		}

		previous := make(map[string]any, len(keys))
		next := make(map[string]any, len(keys))
		for _, k := range keys {
			if old, ok := current[k]; ok {
				previous[k] = old
			}
			if values[k] == "" {
				err = repo.Delete(txCtx, k)
			} else {
				err = repo.Set(txCtx, k, values[k])
				next[k] = values[k]
			}
			if err != nil {
				return fmt.Errorf("store %s: %w", k, err)
			}
		}

		_, err = s.trail.RecordTx(txCtx, tx, auditDomain.Record{
			ActorID:        actor.ID,
			ActorRole:      string(actor.Role),
			Action:         auditDomain.ActionSettingsUpdate,
			TargetID:       settingsTarget,
			PreviousValues: previous,
			NewValues:      next,
			Details:        map[string]any{"keys": keys},
			Request:        meta,
		})
		return err
	})
	if err != nil {
		return nil, pkgError.NewTransactionError(string(auditDomain.ActionSettingsUpdate), err)
	}

	ds, err := s.GetDynamicSettings(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateNamespaces(ctx, cacheDomain.NamespaceLogs)

	s.mu.RLock()
	listeners := append([]func(*DynamicSettings){}, s.listeners...)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(ds)
	}

	logrus.WithFields(logrus.Fields{"actor": actor.ID, "keys": keys}).Info("[SETTINGS] overrides updated")
	return ds, nil
}
