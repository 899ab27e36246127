package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/AzielCF/az-admin/cache/domain"
	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

// BuildKey derives a deterministic cache key "namespace:subresource:digest:actor"
// from normalized query parameters. Parameter order, key case and surrounding
// whitespace do not change the key; empty values are dropped.
func BuildKey(namespace, subresource string, params map[string]string, actorID string) string {
	names := make([]string, 0, len(params))
	normalized := make(map[string]string, len(params))
	for k, v := range params {
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		if _, dup := normalized[k]; !dup {
			names = append(names, k)
		}
		normalized[k] = v
	}
	sort.Strings(names)

	var b strings.Builder
	for i, k := range names {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(normalized[k])
	}
	sum := sha256.Sum256([]byte(b.String()))

	if actorID == "" {
		actorID = "anonymous"
	}
	return strings.Join([]string{namespace, subresource, hex.EncodeToString(sum[:8]), actorID}, ":")
}

// Remember returns the value cached under key or computes, caches and returns
// it. Errors and values reporting Failed() are returned but never cached.
func Remember[T any](ctx context.Context, s *Store, key string, ttl time.Duration, compute func(ctx context.Context) (T, error)) (T, bool, error) {
	if raw, ok := s.Get(ctx, key); ok {
		var cached T
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, true, nil
		}
		logrus.WithField("key", key).Warn("[CACHE] undecodable entry, recomputing")
	}

	value, err := compute(ctx)
	if err != nil {
		return value, false, err
	}
	if shouldCache(value) {
		s.Set(ctx, key, value, ttl)
	}
	return value, false, nil
}

// RememberRaw is Remember for handlers that write the cached JSON verbatim.
func RememberRaw(ctx context.Context, s *Store, key string, ttl time.Duration, compute func(ctx context.Context) (any, error)) (json.RawMessage, bool, error) {
	if raw, ok := s.Get(ctx, key); ok {
		return raw, true, nil
	}

	value, err := compute(ctx)
	if err != nil {
		return nil, false, err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, false, err
	}
	if shouldCache(value) {
		s.Set(ctx, key, json.RawMessage(data), ttl)
	}
	return data, false, nil
}

func shouldCache(value any) bool {
	if f, ok := value.(domain.Failable); ok && f.Failed() {
		return false
	}
	return true
}
