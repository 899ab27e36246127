package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	accessDomain "github.com/AzielCF/az-admin/access/domain"
	"github.com/AzielCF/az-admin/core/config"
	"github.com/AzielCF/az-admin/pkg/metrics"
	"github.com/AzielCF/az-admin/pkg/timeutils"
	"github.com/AzielCF/az-admin/quota/domain"
	"github.com/sirupsen/logrus"
)

// Limiter enforces fixed-window request quotas per caller. It is created once
// at startup and shared by every handler.
type Limiter struct {
	counter      domain.Counter
	mu           sync.RWMutex
	rules        map[domain.RouteClass]domain.Rule
	testIdentity string
	now          func() time.Time
}

func NewLimiter(counter domain.Counter, rules map[domain.RouteClass]domain.Rule, testIdentity string) *Limiter {
	return &Limiter{
		counter:      counter,
		rules:        copyRules(rules),
		testIdentity: testIdentity,
		now:          time.Now,
	}
}

func copyRules(rules map[domain.RouteClass]domain.Rule) map[domain.RouteClass]domain.Rule {
	copied := make(map[domain.RouteClass]domain.Rule, len(rules))
	for k, v := range rules {
		copied[k] = v
	}
	return copied
}

// SetRules replaces the route-class table. Counters already taken in the
// current window are kept.
func (l *Limiter) SetRules(rules map[domain.RouteClass]domain.Rule) {
	copied := copyRules(rules)
	l.mu.Lock()
	l.rules = copied
	l.mu.Unlock()
}

// RulesFrom builds the route-class table from configuration.
func RulesFrom(cfg config.QuotaConfig) map[domain.RouteClass]domain.Rule {
	return map[domain.RouteClass]domain.Rule{
		domain.ClassDefault: {Window: cfg.Window, Limit: cfg.DefaultLimit},
		domain.ClassAdmin:   {Window: cfg.Window, Limit: cfg.AdminLimit},
	}
}

// SetClock overrides the time source. Intended for tests.
func (l *Limiter) SetClock(now func() time.Time) {
	l.now = now
}

func (l *Limiter) rule(class domain.RouteClass) domain.Rule {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if r, ok := l.rules[class]; ok {
		return r
	}
	return l.rules[domain.ClassDefault]
}

func (l *Limiter) exempt(id domain.Identity, role accessDomain.Role) bool {
	if role.Privileged() {
		return true
	}
	return l.testIdentity != "" && (id.ActorID == l.testIdentity || id.IP == l.testIdentity)
}

// Key returns the counter key for id in the window starting at windowStart.
func Key(class domain.RouteClass, id domain.Identity, windowStart time.Time) string {
	actor := id.ActorID
	if actor == "" {
		actor = "anonymous"
	}
	return fmt.Sprintf("%s:%s:%s:%d", class, id.IP, actor, windowStart.Unix())
}

// Allow consumes one unit of the caller's budget. Exempt callers are always
// allowed and consume nothing. Counter failures allow the request.
func (l *Limiter) Allow(ctx context.Context, class domain.RouteClass, id domain.Identity, role accessDomain.Role) domain.Decision {
	rule := l.rule(class)
	start := timeutils.WindowStart(l.now(), rule.Window)
	resetAt := start.Add(rule.Window)

	if l.exempt(id, role) {
		metrics.QuotaDecisions.WithLabelValues(string(class), "exempt").Inc()
		return domain.Decision{Allowed: true, Remaining: domain.Unlimited, Limit: domain.Unlimited, ResetAt: resetAt, Exempt: true}
	}

	count, ok, err := l.counter.Take(ctx, Key(class, id, start), rule.Limit, rule.Window)
	if err != nil {
		metrics.QuotaDecisions.WithLabelValues(string(class), "fail_open").Inc()
		logrus.WithError(err).WithFields(logrus.Fields{
			"class": class,
			"ip":    id.IP,
			"actor": id.ActorID,
		}).Warn("[QUOTA] counter unavailable, allowing request")
		return domain.Decision{Allowed: true, Remaining: rule.Limit, Limit: rule.Limit, ResetAt: resetAt}
	}

	if !ok {
		metrics.QuotaDecisions.WithLabelValues(string(class), "denied").Inc()
		logrus.WithFields(logrus.Fields{
			"class": class,
			"ip":    id.IP,
			"actor": id.ActorID,
		}).Debug("[QUOTA] request denied")
		return domain.Decision{Allowed: false, Remaining: 0, Limit: rule.Limit, ResetAt: resetAt}
	}

	metrics.QuotaDecisions.WithLabelValues(string(class), "allowed").Inc()
	return domain.Decision{Allowed: true, Remaining: remaining(rule.Limit, count), Limit: rule.Limit, ResetAt: resetAt}
}

// Status reports the caller's current decision without consuming budget.
func (l *Limiter) Status(ctx context.Context, class domain.RouteClass, id domain.Identity, role accessDomain.Role) domain.Decision {
	rule := l.rule(class)
	start := timeutils.WindowStart(l.now(), rule.Window)
	resetAt := start.Add(rule.Window)

	if l.exempt(id, role) {
		return domain.Decision{Allowed: true, Remaining: domain.Unlimited, Limit: domain.Unlimited, ResetAt: resetAt, Exempt: true}
	}

	count, err := l.counter.Peek(ctx, Key(class, id, start))
	if err != nil {
		return domain.Decision{Allowed: true, Remaining: rule.Limit, Limit: rule.Limit, ResetAt: resetAt}
	}
	rem := remaining(rule.Limit, count)
	return domain.Decision{Allowed: rem > 0, Remaining: rem, Limit: rule.Limit, ResetAt: resetAt}
}

func remaining(limit, count int) int {
	if count >= limit {
		return 0
	}
	return limit - count
}
