package domain

import (
	"context"
	"math"
	"time"
)

// Unlimited is the remaining-budget sentinel reported for exempt identities.
const Unlimited = math.MaxInt32

// RouteClass selects the window and ceiling applied to a request.
type RouteClass string

const (
	ClassDefault RouteClass = "default"
	ClassAdmin   RouteClass = "admin"
)

// Rule is the fixed-window policy for one route class.
type Rule struct {
	Window time.Duration
	Limit  int
}

// Identity is the caller a quota window is counted for.
type Identity struct {
	IP      string
	ActorID string
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	ResetAt   time.Time `json:"reset_at"`
	Exempt    bool      `json:"exempt"`
}

// Counter increments fixed-window counters. Take must increment and compare
// atomically: it only counts the call when count < limit and reports the
// resulting count. ttl is applied when the window key is first created.
type Counter interface {
	Take(ctx context.Context, key string, limit int, ttl time.Duration) (count int, ok bool, err error)
	// Peek reads the current count without consuming budget.
	Peek(ctx context.Context, key string) (int, error)
}
