package application

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	accessDomain "github.com/AzielCF/az-admin/access/domain"
	"github.com/AzielCF/az-admin/analytics/domain"
	auditApp "github.com/AzielCF/az-admin/audit/application"
	auditDomain "github.com/AzielCF/az-admin/audit/domain"
	cacheApp "github.com/AzielCF/az-admin/cache/application"
	cacheDomain "github.com/AzielCF/az-admin/cache/domain"
	pkgError "github.com/AzielCF/az-admin/pkg/error"
	"github.com/AzielCF/az-admin/pkg/timeutils"
	"github.com/AzielCF/az-admin/validations"
	"golang.org/x/sync/errgroup"
)

// DefaultTTL is how long a computed report is reused.
const DefaultTTL = 3 * time.Minute

// AccountCounters are the account-store aggregates behind the tracked metrics.
type AccountCounters interface {
	NewUsers(ctx context.Context, from, to time.Time) (int64, error)
	ActiveUsers(ctx context.Context, from, to time.Time) (int64, error)
	CoinsIssued(ctx context.Context, from, to time.Time) (int64, error)
	PendingActionsCreated(ctx context.Context, from, to time.Time) (int64, error)
}

// CountersFrom maps every tracked metric to its source.
func CountersFrom(accounts AccountCounters, trail *auditApp.Trail) map[string]domain.Counter {
	return map[string]domain.Counter{
		domain.MetricNewUsers:              accounts.NewUsers,
		domain.MetricActiveUsers:           accounts.ActiveUsers,
		domain.MetricCoinsIssued:           accounts.CoinsIssued,
		domain.MetricAdminActions:          trail.CountBetween,
		domain.MetricPendingActionsCreated: accounts.PendingActionsCreated,
	}
}

// Aggregator compares each metric over a trailing period with the period
// before it.
type Aggregator struct {
	counters      map[string]domain.Counter
	cache         *cacheApp.Store
	trail         *auditApp.Trail
	access        accessDomain.Checker
	ttl           time.Duration
	defaultPeriod string
	now           func() time.Time
}

func NewAggregator(
	counters map[string]domain.Counter,
	cache *cacheApp.Store,
	trail *auditApp.Trail,
	access accessDomain.Checker,
	ttl time.Duration,
	defaultPeriod string,
) *Aggregator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if defaultPeriod == "" {
		defaultPeriod = "7d"
	}
	return &Aggregator{
		counters:      counters,
		cache:         cache,
		trail:         trail,
		access:        access,
		ttl:           ttl,
		defaultPeriod: defaultPeriod,
		now:           time.Now,
	}
}

// Metrics returns the report for q. The bool reports a cache hit.
func (a *Aggregator) Metrics(ctx context.Context, actor accessDomain.Actor, q domain.Query) (domain.Report, bool, error) {
	if !a.access.HasCapability(actor.Role, accessDomain.CapViewAnalytics) {
		a.trail.RecordDenied(ctx, actor.ID, string(actor.Role), string(accessDomain.CapViewAnalytics), auditDomain.RequestMetadata{
			IP:        actor.IP,
			UserAgent: actor.UserAgent,
			RequestID: actor.RequestID,
		})
		return nil, false, pkgError.AuthorizationError(fmt.Sprintf("role %q may not view analytics", actor.Role))
	}

	q = a.normalize(q)
	if err := validations.ValidateAnalyticsQuery(ctx, q); err != nil {
		return nil, false, err
	}

	key := cacheApp.BuildKey(cacheDomain.NamespaceAnalytics, "metrics", map[string]string{
		"period":  q.Period,
		"metrics": strings.Join(q.Metrics, ","),
	}, actor.ID)

	return cacheApp.Remember(ctx, a.cache, key, a.ttl, func(ctx context.Context) (domain.Report, error) {
		return a.compute(ctx, q)
	})
}

func (a *Aggregator) normalize(q domain.Query) domain.Query {
	q.Period = strings.ToLower(strings.TrimSpace(q.Period))
	if q.Period == "" {
		q.Period = a.defaultPeriod
	}
	if len(q.Metrics) == 0 {
		q.Metrics = append([]string(nil), domain.AllMetrics...)
	}
	seen := make(map[string]bool, len(q.Metrics))
	names := make([]string, 0, len(q.Metrics))
	for _, m := range q.Metrics {
		m = strings.ToLower(strings.TrimSpace(m))
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		names = append(names, m)
	}
	sort.Strings(names)
	q.Metrics = names
	return q
}

func (a *Aggregator) compute(ctx context.Context, q domain.Query) (domain.Report, error) {
	span, err := timeutils.ParseSpan(q.Period)
	if err != nil {
		return nil, pkgError.ValidationError(err.Error())
	}
	current := timeutils.Trailing(a.now().UTC(), span)
	previous := current.Previous()

	var mu sync.Mutex
	report := make(domain.Report, len(q.Metrics))

	for _, name := range q.Metrics {
		if _, ok := a.counters[name]; !ok {
			return nil, pkgError.ValidationError(fmt.Sprintf("metric %q is not tracked", name))
		}
	}

	eg, ctx := errgroup.WithContext(ctx)
	for _, name := range q.Metrics {
		count := a.counters[name]
		eg.Go(func() error {
			cur, err := count(ctx, current.From, current.To)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			prev, err := count(ctx, previous.From, previous.To)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			mu.Lock()
			report[name] = domain.NewMetric(cur, prev)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}
