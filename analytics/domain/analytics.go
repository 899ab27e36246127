package domain

import (
	"context"
	"math"
	"time"
)

type Trend string

const (
	TrendUp      Trend = "up"
	TrendDown    Trend = "down"
	TrendNeutral Trend = "neutral"
)

// Tracked metric names.
const (
	MetricNewUsers              = "new_users"
	MetricActiveUsers           = "active_users"
	MetricCoinsIssued           = "coins_issued"
	MetricAdminActions          = "admin_actions"
	MetricPendingActionsCreated = "pending_actions_created"
)

var AllMetrics = []string{
	MetricNewUsers, MetricActiveUsers, MetricCoinsIssued, MetricAdminActions, MetricPendingActionsCreated,
}

// Counter aggregates one signal over [from, to).
type Counter func(ctx context.Context, from, to time.Time) (int64, error)

type Metric struct {
	Value    int64 `json:"value"`
	Previous int64 `json:"previous"`
	Change   int64 `json:"change"`
	Trend    Trend `json:"trend"`
}

// Report maps metric names to their values for one period.
type Report map[string]Metric

type Query struct {
	Period  string   `json:"period"`
	Metrics []string `json:"metrics"`
}

// Change is the rounded percentage change from previous to current. Growth
// from zero counts as 100.
func Change(current, previous int64) int64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return int64(math.Round(100 * float64(current-previous) / float64(previous)))
}

func TrendOf(change int64) Trend {
	switch {
	case change > 0:
		return TrendUp
	case change < 0:
		return TrendDown
	default:
		return TrendNeutral
	}
}

// NewMetric builds a Metric from the two period aggregates.
func NewMetric(current, previous int64) Metric {
	change := Change(current, previous)
	return Metric{Value: current, Previous: previous, Change: change, Trend: TrendOf(change)}
}
