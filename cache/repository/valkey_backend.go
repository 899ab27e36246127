package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AzielCF/az-admin/cache/domain"
	"github.com/AzielCF/az-admin/infrastructure/valkey"
	valkeylib "github.com/valkey-io/valkey-go"
)

// scanBatch is the COUNT hint passed to SCAN while resolving patterns.
const scanBatch = 200

// ValkeyBackend implements domain.Backend using Valkey. Keys are stored under
// the client prefix plus "cache:" so patterns never touch quota counters.
type ValkeyBackend struct {
	client *valkey.Client
	prefix string
}

func NewValkeyBackend(client *valkey.Client) *ValkeyBackend {
	return &ValkeyBackend{
		client: client,
		prefix: client.Key("cache") + ":",
	}
}

func (s *ValkeyBackend) fullKey(key string) string {
	return s.prefix + key
}

func (s *ValkeyBackend) inner() valkeylib.Client {
	return s.client.Inner()
}

func (s *ValkeyBackend) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := s.inner().B().Get().Key(s.fullKey(key)).Build()

	data, err := s.inner().Do(ctx, cmd).AsBytes()
	if err != nil {
		if valkey.IsNil(err) {
			return nil, domain.ErrMiss
		}
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}
	return data, nil
}

func (s *ValkeyBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var cmd valkeylib.Completed
	if ttl > 0 {
		cmd = s.inner().B().Set().Key(s.fullKey(key)).Value(valkeylib.BinaryString(value)).Ex(ttl).Build()
	} else {
		cmd = s.inner().B().Set().Key(s.fullKey(key)).Value(valkeylib.BinaryString(value)).Build()
	}

	if err := s.inner().Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}
	return nil
}

// Keys walks the keyspace with SCAN MATCH, never KEYS, so a large cache does not
// block the server.
func (s *ValkeyBackend) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	err := s.client.Scan(ctx, s.fullKey(pattern), scanBatch, func(key string) {
		keys = append(keys, strings.TrimPrefix(key, s.prefix))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan cache keys: %w", err)
	}
	return keys, nil
}

func (s *ValkeyBackend) DeleteMany(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.fullKey(k)
	}

	n, err := s.inner().Do(ctx, s.inner().B().Del().Key(full...).Build()).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("failed to delete cache keys: %w", err)
	}
	return n, nil
}

func (s *ValkeyBackend) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}
