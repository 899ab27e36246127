package application

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/AzielCF/az-admin/cache/domain"
	"github.com/AzielCF/az-admin/pkg/metrics"
	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
)

// errCallerDone marks a backend error seen after the caller's context ended.
// It says nothing about backend health.
var errCallerDone = errors.New("cache caller context done")

// Options tunes the availability tracking of a Store.
type Options struct {
	// FailureThreshold consecutive backend errors mark the cache unavailable.
	FailureThreshold uint32
	// RetryAfter is how long the cache stays unavailable before one trial call
	// is let through to detect a reconnect.
	RetryAfter time.Duration
	// OpTimeout bounds every backend call.
	OpTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.FailureThreshold == 0 {
		o.FailureThreshold = 3
	}
	if o.RetryAfter <= 0 {
		o.RetryAfter = 30 * time.Second
	}
	if o.OpTimeout <= 0 {
		o.OpTimeout = 250 * time.Millisecond
	}
	return o
}

// Store is the cache facade used by every read path. It never returns backend
// errors: a failing backend degrades to misses and no-op writes.
type Store struct {
	backend   domain.Backend
	breaker   *gobreaker.CircuitBreaker[any]
	available atomic.Bool
	timeout   time.Duration
}

func NewStore(backend domain.Backend, opts Options) *Store {
	opts = opts.withDefaults()
	s := &Store{
		backend: backend,
		timeout: opts.OpTimeout,
	}
	s.available.Store(true)
	metrics.CacheAvailable.Set(1)

	s.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "cache",
		MaxRequests: 1,
		Timeout:     opts.RetryAfter,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrMiss) || errors.Is(err, errCallerDone)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			switch to {
			case gobreaker.StateOpen:
				s.setAvailable(false)
				logrus.Warnf("[CACHE] backend unavailable (%s -> %s), serving without cache", from, to)
			case gobreaker.StateClosed:
				s.setAvailable(true)
				logrus.Infof("[CACHE] backend reachable again (%s -> %s)", from, to)
			}
		},
	})
	return s
}

func (s *Store) setAvailable(v bool) {
	s.available.Store(v)
	if v {
		metrics.CacheAvailable.Set(1)
	} else {
		metrics.CacheAvailable.Set(0)
	}
}

// Available reports whether the backend is currently considered reachable.
func (s *Store) Available() bool {
	return s.available.Load()
}

func (s *Store) call(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	return s.breaker.Execute(func() (any, error) {
		opCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		res, err := fn(opCtx)
		if err != nil && ctx.Err() != nil {
			return res, fmt.Errorf("%w: %w", errCallerDone, err)
		}
		return res, err
	})
}

// Get returns the cached JSON for key. The second result is false on a miss,
// on a backend error and while the backend is unavailable.
func (s *Store) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	res, err := s.call(ctx, func(ctx context.Context) (any, error) {
		return s.backend.Get(ctx, key)
	})
	switch {
	case err == nil:
		metrics.CacheRequests.WithLabelValues("hit").Inc()
		return json.RawMessage(res.([]byte)), true
	case errors.Is(err, domain.ErrMiss):
		metrics.CacheRequests.WithLabelValues("miss").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CacheRequests.WithLabelValues("skipped").Inc()
	default:
		metrics.CacheRequests.WithLabelValues("error").Inc()
		logrus.WithError(err).WithField("key", key).Debug("[CACHE] get failed")
	}
	return nil, false
}

// Set stores value as JSON under key. It reports whether the write reached the backend.
func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	var data []byte
	switch v := value.(type) {
	case json.RawMessage:
		data = v
	case []byte:
		data = v
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			logrus.WithError(err).WithField("key", key).Warn("[CACHE] value is not serializable, skipping")
			return false
		}
		data = encoded
	}

	_, err := s.call(ctx, func(ctx context.Context) (any, error) {
		return nil, s.backend.Set(ctx, key, data, ttl)
	})
	if err != nil {
		if !errors.Is(err, gobreaker.ErrOpenState) && !errors.Is(err, gobreaker.ErrTooManyRequests) {
			logrus.WithError(err).WithField("key", key).Debug("[CACHE] set failed")
		}
		return false
	}
	return true
}

// DeleteByPattern removes every key matching the glob pattern and returns how
// many were deleted. Failures count as zero deletions.
func (s *Store) DeleteByPattern(ctx context.Context, pattern string) int {
	res, err := s.call(ctx, func(ctx context.Context) (any, error) {
		keys, err := s.backend.Keys(ctx, pattern)
		if err != nil {
			return int64(0), err
		}
		if len(keys) == 0 {
			return int64(0), nil
		}
		return s.backend.DeleteMany(ctx, keys...)
	})
	if err != nil {
		if !errors.Is(err, gobreaker.ErrOpenState) && !errors.Is(err, gobreaker.ErrTooManyRequests) {
			logrus.WithError(err).WithField("pattern", pattern).Warn("[CACHE] pattern invalidation failed")
		}
		return 0
	}

	n := int(res.(int64))
	if n > 0 {
		metrics.CacheInvalidatedKeys.Add(float64(n))
		logrus.Debugf("[CACHE] invalidated %d keys matching %s", n, pattern)
	}
	return n
}

// InvalidateNamespaces clears every key under each namespace.
func (s *Store) InvalidateNamespaces(ctx context.Context, namespaces ...string) int {
	total := 0
	for _, ns := range namespaces {
		total += s.DeleteByPattern(ctx, domain.NamespacePattern(ns))
	}
	return total
}

// Ping checks the backend through the availability tracker.
func (s *Store) Ping(ctx context.Context) bool {
	_, err := s.call(ctx, func(ctx context.Context) (any, error) {
		return nil, s.backend.Ping(ctx)
	})
	return err == nil
}
