package application

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	accountsDomain "github.com/AzielCF/az-admin/accounts/domain"
	"github.com/AzielCF/az-admin/core/config"
	"github.com/AzielCF/az-admin/monitor/domain"
	"github.com/AzielCF/az-admin/pkg/metrics"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ThresholdProvider returns the health thresholds in effect for one run.
type ThresholdProvider interface {
	HealthThresholds(ctx context.Context) config.HealthConfig
}

// StaticThresholds serves a fixed configuration.
type StaticThresholds config.HealthConfig

func (s StaticThresholds) HealthThresholds(context.Context) config.HealthConfig {
	return config.HealthConfig(s)
}

// rule inspects one signal and returns at most one alert.
type rule struct {
	name  string
	check func(ctx context.Context, cfg config.HealthConfig) (*domain.Alert, error)
}

// Generator derives alerts from the current state. It keeps no state between runs.
type Generator struct {
	signals    domain.SignalSource
	cache      domain.CacheChecker
	thresholds ThresholdProvider
	now        func() time.Time
	heapBytes  func() uint64
	rules      []rule
}

func NewGenerator(signals domain.SignalSource, cache domain.CacheChecker, thresholds ThresholdProvider) *Generator {
	g := &Generator{
		signals:    signals,
		cache:      cache,
		thresholds: thresholds,
		now:        time.Now,
		heapBytes:  heapAlloc,
	}
	g.rules = []rule{
		{name: "store", check: g.storeRule},
		{name: "cache", check: g.cacheRule},
		{name: "memory", check: g.memoryRule},
		{name: "pending_backlog", check: g.backlogRule},
		{name: "stale_pending", check: g.staleRule},
		{name: "large_balances", check: g.balanceRule},
		{name: "suspended", check: g.suspendedRule},
		{name: "banned", check: g.bannedRule},
		{name: "orphans", check: g.orphanRule},
	}
	return g
}

func heapAlloc() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapAlloc
}

// Generate runs every rule and returns the alerts ordered by priority.
// A failing rule does not stop the others; all failures are reported
// together as one error alert.
func (g *Generator) Generate(ctx context.Context) []domain.Alert {
	cfg := g.thresholds.HealthThresholds(ctx)
	now := g.now().UTC()

	var (
		mu       sync.Mutex
		alerts   []domain.Alert
		failures []string
	)

	var eg errgroup.Group
	for _, r := range g.rules {
		eg.Go(func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = fmt.Errorf("panic: %v", rec)
				}
				if err != nil {
					logrus.WithError(err).WithField("rule", r.name).Warn("[HEALTH] rule failed")
					mu.Lock()
					failures = append(failures, r.name)
					mu.Unlock()
				}
			}()

			alert, err := r.check(ctx, cfg)
			if err != nil || alert == nil {
				return err
			}
			mu.Lock()
			alerts = append(alerts, *alert)
			mu.Unlock()
			return nil
		})
	}
	// Rule errors are collected above; Wait only joins the goroutines.
	_ = eg.Wait()

	if len(failures) > 0 {
		sort.Strings(failures)
		alerts = append(alerts, domain.Alert{
			Level:             domain.LevelError,
			Message:           fmt.Sprintf("Health checks could not be completed: %s", strings.Join(failures, ", ")),
			RecommendedAction: "Check the service logs for the failing checks",
			Priority:          domain.PriorityHigh,
		})
	}

	for i := range alerts {
		alerts[i].Timestamp = now
	}
	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].Priority.Rank() != alerts[j].Priority.Rank() {
			return alerts[i].Priority.Rank() > alerts[j].Priority.Rank()
		}
		return alerts[i].Message < alerts[j].Message
	})

	for _, a := range alerts {
		metrics.AlertsGenerated.WithLabelValues(string(a.Level)).Inc()
	}
	return alerts
}

func (g *Generator) storeRule(ctx context.Context, _ config.HealthConfig) (*domain.Alert, error) {
	if err := g.signals.Ping(ctx); err != nil {
		return &domain.Alert{
			Level:             domain.LevelCritical,
			Message:           fmt.Sprintf("Persistent store is unreachable: %v", err),
			RecommendedAction: "Check database connectivity and credentials",
			Priority:          domain.PriorityCritical,
		}, nil
	}
	return nil, nil
}

func (g *Generator) cacheRule(ctx context.Context, _ config.HealthConfig) (*domain.Alert, error) {
	if g.cache == nil || g.cache.Ping(ctx) {
		return nil, nil
	}
	return &domain.Alert{
		Level:             domain.LevelWarning,
		Message:           "Cache store is unreachable; requests are served without caching",
		RecommendedAction: "Check the Valkey instance",
		Priority:          domain.PriorityHigh,
	}, nil
}

func (g *Generator) memoryRule(_ context.Context, cfg config.HealthConfig) (*domain.Alert, error) {
	if cfg.MemoryLimitBytes == 0 {
		return nil, nil
	}
	used := g.heapBytes()
	ratio := float64(used) / float64(cfg.MemoryLimitBytes)
	usage := fmt.Sprintf("%s of %s (%.0f%%)", humanize.Bytes(used), humanize.Bytes(cfg.MemoryLimitBytes), ratio*100)

	switch {
	case ratio >= cfg.MemoryHighRatio:
		return &domain.Alert{
			Level:             domain.LevelCritical,
			Message:           "Memory usage is critical: " + usage,
			RecommendedAction: "Restart the service or raise its memory limit",
			Priority:          domain.PriorityCritical,
		}, nil
	case ratio >= cfg.MemoryMediumRatio:
		return &domain.Alert{
			Level:             domain.LevelWarning,
			Message:           "Memory usage is elevated: " + usage,
			RecommendedAction: "Watch memory growth and plan capacity",
			Priority:          domain.PriorityHigh,
		}, nil
	}
	return nil, nil
}

func (g *Generator) backlogRule(ctx context.Context, cfg config.HealthConfig) (*domain.Alert, error) {
	n, err := g.signals.PendingBacklog(ctx)
	if err != nil || n <= cfg.PendingBacklogThreshold {
		return nil, err
	}
	return &domain.Alert{
		Level:             domain.LevelWarning,
		Message:           fmt.Sprintf("%s pending actions are awaiting review", humanize.Comma(n)),
		RecommendedAction: "Review the pending actions queue",
		Priority:          domain.PriorityHigh,
	}, nil
}

func (g *Generator) staleRule(ctx context.Context, cfg config.HealthConfig) (*domain.Alert, error) {
	age := cfg.StalePendingAge
	if age <= 0 {
		age = 7 * 24 * time.Hour
	}
	n, err := g.signals.StalePending(ctx, g.now().Add(-age))
	if err != nil || n == 0 {
		return nil, err
	}
	return &domain.Alert{
		Level:             domain.LevelInfo,
		Message:           fmt.Sprintf("%s pending actions have not been processed for over %s", humanize.Comma(n), age),
		RecommendedAction: "Run cleanup_expired to sweep stale records",
		Priority:          domain.PriorityLow,
	}, nil
}

func (g *Generator) balanceRule(ctx context.Context, cfg config.HealthConfig) (*domain.Alert, error) {
	n, err := g.signals.LargeBalances(ctx, cfg.LargeBalanceThreshold)
	if err != nil || n == 0 {
		return nil, err
	}
	return &domain.Alert{
		Level:             domain.LevelWarning,
		Message:           fmt.Sprintf("%s accounts hold more than %s coins", humanize.Comma(n), humanize.Comma(cfg.LargeBalanceThreshold)),
		RecommendedAction: "Audit recent coin transactions for these accounts",
		Priority:          domain.PriorityMedium,
	}, nil
}

func (g *Generator) suspendedRule(ctx context.Context, cfg config.HealthConfig) (*domain.Alert, error) {
	n, err := g.signals.CountByStatus(ctx, string(accountsDomain.StatusSuspended))
	if err != nil || n <= cfg.SuspendedThreshold {
		return nil, err
	}
	return &domain.Alert{
		Level:             domain.LevelInfo,
		Message:           fmt.Sprintf("%s accounts are suspended", humanize.Comma(n)),
		RecommendedAction: "Review suspensions that can be lifted",
		Priority:          domain.PriorityLow,
	}, nil
}

func (g *Generator) bannedRule(ctx context.Context, cfg config.HealthConfig) (*domain.Alert, error) {
	n, err := g.signals.CountByStatus(ctx, string(accountsDomain.StatusBanned))
	if err != nil || n <= cfg.BannedThreshold {
		return nil, err
	}
	return &domain.Alert{
		Level:             domain.LevelWarning,
		Message:           fmt.Sprintf("%s accounts are banned", humanize.Comma(n)),
		RecommendedAction: "Check for abuse patterns or overly aggressive moderation",
		Priority:          domain.PriorityMedium,
	}, nil
}

func (g *Generator) orphanRule(ctx context.Context, _ config.HealthConfig) (*domain.Alert, error) {
	n, err := g.signals.OrphanedReferences(ctx)
	if err != nil || n == 0 {
		return nil, err
	}
	return &domain.Alert{
		Level:             domain.LevelWarning,
		Message:           fmt.Sprintf("%s records reference accounts that no longer exist", humanize.Comma(n)),
		RecommendedAction: "Run system maintenance to repair references",
		Priority:          domain.PriorityMedium,
	}, nil
}
