package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCounter_TakeStopsAtLimit(t *testing.T) {
	c := NewMemoryCounter()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		n, ok, err := c.Take(ctx, "k", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, i, n)
	}
	n, ok, err := c.Take(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3, n, "denied calls are not counted")
}

func TestMemoryCounter_ExpiryAndSweep(t *testing.T) {
	c := NewMemoryCounter()
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_, _, _ = c.Take(ctx, "a", 1, time.Second)
	_, _, _ = c.Take(ctx, "b", 1, time.Hour)

	now = now.Add(2 * time.Second)
	got, err := c.Peek(ctx, "a")
	require.NoError(t, err)
	assert.Zero(t, got)

	assert.Equal(t, 1, c.Sweep())
	_, ok, _ := c.Take(ctx, "a", 1, time.Second)
	assert.True(t, ok)
}
