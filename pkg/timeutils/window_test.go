package timeutils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowStart_FixedBoundaries(t *testing.T) {
	size := 15 * time.Minute
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, base, WindowStart(base.Add(14*time.Minute+59*time.Second), size))
	assert.Equal(t, base.Add(size), WindowStart(base.Add(size), size))
}

func TestPeriod_Previous(t *testing.T) {
	now := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	p := Trailing(now, 7*24*time.Hour)
	prev := p.Previous()

	assert.Equal(t, p.From, prev.To)
	assert.Equal(t, p.Length(), prev.Length())
	assert.Equal(t, time.Date(2026, 2, 22, 0, 0, 0, 0, time.UTC), prev.From)
}

func TestParseSpan(t *testing.T) {
	cases := map[string]time.Duration{
		"30m": 30 * time.Minute,
		"24h": 24 * time.Hour,
		"7d":  7 * 24 * time.Hour,
		"2w":  14 * 24 * time.Hour,
	}
	for in, want := range cases {
		got, err := ParseSpan(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "d", "0d", "-1h", "7y", "xh"} {
		_, err := ParseSpan(bad)
		assert.Error(t, err, bad)
	}
}
