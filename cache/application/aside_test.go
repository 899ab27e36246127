package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type report struct {
	Total int    `json:"total"`
	Error string `json:"error,omitempty"`
}

func (r report) Failed() bool { return r.Error != "" }

func TestBuildKey_Deterministic(t *testing.T) {
	a := BuildKey("admin:users", "list", map[string]string{"page": "1", "role": "admin"}, "u1")
	b := BuildKey("admin:users", "list", map[string]string{" Role ": "admin", "PAGE": "1", "status": ""}, "u1")
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "admin:users:list:"))
	assert.True(t, strings.HasSuffix(a, ":u1"))

	other := BuildKey("admin:users", "list", map[string]string{"page": "2", "role": "admin"}, "u1")
	assert.NotEqual(t, a, other)

	otherActor := BuildKey("admin:users", "list", map[string]string{"page": "1", "role": "admin"}, "u2")
	assert.NotEqual(t, a, otherActor)
}

func TestRemember_ComputesOnceThenHits(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	calls := 0
	compute := func(ctx context.Context) (report, error) {
		calls++
		return report{Total: 42}, nil
	}

	v, hit, err := Remember(ctx, s, "admin:analytics:m:d:u", time.Minute, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 42, v.Total)

	v, hit, err = Remember(ctx, s, "admin:analytics:m:d:u", time.Minute, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 42, v.Total)
	assert.Equal(t, 1, calls)
}

func TestRemember_DoesNotCacheFailures(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _, err := Remember(ctx, s, "k1", time.Minute, func(ctx context.Context) (report, error) {
		return report{}, errors.New("db down")
	})
	require.Error(t, err)
	_, ok := s.Get(ctx, "k1")
	assert.False(t, ok)

	v, _, err := Remember(ctx, s, "k2", time.Minute, func(ctx context.Context) (report, error) {
		return report{Error: "partial"}, nil
	})
	require.NoError(t, err)
	assert.True(t, v.Failed())
	_, ok = s.Get(ctx, "k2")
	assert.False(t, ok)
}

func TestRememberRaw_ReturnsCachedBytesVerbatim(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, hit, err := RememberRaw(ctx, s, "raw", time.Minute, func(ctx context.Context) (any, error) {
		return report{Total: 7}, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)

	second, hit, err := RememberRaw(ctx, s, "raw", time.Minute, func(ctx context.Context) (any, error) {
		t.Fatal("compute must not run on a hit")
		return nil, nil
	})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.JSONEq(t, string(first), string(second))
}
