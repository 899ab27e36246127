package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/AzielCF/az-admin/infrastructure/valkey"
	valkeylib "github.com/valkey-io/valkey-go"
)

// takeScript increments the window only while it is below the limit and sets
// the expiry when the window is created. Returns {count, allowed}.
var takeScript = valkeylib.NewLuaScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
local limit = tonumber(ARGV[1])
if current >= limit then
  return {current, 0}
end
current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return {current, 1}
`)

// ValkeyCounter implements domain.Counter on Valkey so every instance shares
// the same windows.
type ValkeyCounter struct {
	client *valkey.Client
	prefix string
}

func NewValkeyCounter(client *valkey.Client) *ValkeyCounter {
	return &ValkeyCounter{
		client: client,
		prefix: client.Key("quota") + ":",
	}
}

func (s *ValkeyCounter) fullKey(key string) string {
	return s.prefix + key
}

func (s *ValkeyCounter) Take(ctx context.Context, key string, limit int, ttl time.Duration) (int, bool, error) {
	res, err := takeScript.Exec(ctx, s.client.Inner(),
		[]string{s.fullKey(key)},
		[]string{strconv.Itoa(limit), strconv.FormatInt(ttl.Milliseconds(), 10)},
	).ToArray()
	if err != nil {
		return 0, false, fmt.Errorf("failed to take quota: %w", err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("unexpected quota script reply of length %d", len(res))
	}

	count, err := res[0].AsInt64()
	if err != nil {
		return 0, false, fmt.Errorf("failed to read quota count: %w", err)
	}
	allowed, err := res[1].AsInt64()
	if err != nil {
		return 0, false, fmt.Errorf("failed to read quota verdict: %w", err)
	}
	return int(count), allowed == 1, nil
}

func (s *ValkeyCounter) Peek(ctx context.Context, key string) (int, error) {
	cmd := s.client.Inner().B().Get().Key(s.fullKey(key)).Build()
	n, err := s.client.Inner().Do(ctx, cmd).AsInt64()
	if err != nil {
		if valkey.IsNil(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read quota: %w", err)
	}
	return int(n), nil
}
