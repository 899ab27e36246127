package domain

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by a Backend when the key does not exist or has expired.
var ErrMiss = errors.New("cache miss")

// Namespaces group cache keys by the admin resource they memoize. A mutation
// invalidates every namespace it could have affected with "<namespace>:*".
const (
	NamespaceUsers     = "admin:users"
	NamespaceLogs      = "admin:logs"
	NamespaceAnalytics = "admin:analytics"
)

// AllNamespaces lists every namespace the admin API writes to.
var AllNamespaces = []string{NamespaceUsers, NamespaceLogs, NamespaceAnalytics}

// NamespacePattern returns the glob matching every key in ns.
func NamespacePattern(ns string) string {
	return ns + ":*"
}

// Entry is a cached JSON value with its absolute expiry.
type Entry struct {
	Key       string    `json:"key"`
	Value     []byte    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Backend is the raw key-value store behind the cache. Implementations may
// fail at any time; callers go through Store, which absorbs those failures.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Keys resolves a glob pattern ("admin:users:*") into concrete keys.
	Keys(ctx context.Context, pattern string) ([]string, error)
	DeleteMany(ctx context.Context, keys ...string) (int64, error)
	Ping(ctx context.Context) error
}

// Invalidator is the slice of the cache mutating services depend on.
type Invalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) int
	InvalidateNamespaces(ctx context.Context, namespaces ...string) int
}

// Failable lets a cached response declare itself a failure so it is never memoized.
type Failable interface {
	Failed() bool
}
