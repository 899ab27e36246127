package timeutils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WindowStart returns the start of the fixed window of length size that contains t.
// Windows are aligned to the Unix epoch so every process computes the same boundaries.
func WindowStart(t time.Time, size time.Duration) time.Time {
	if size <= 0 {
		return t
	}
	return t.Truncate(size)
}

// Period is a half-open time range [From, To).
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Length returns To - From.
func (p Period) Length() time.Duration {
	return p.To.Sub(p.From)
}

// Previous returns the period of equal length that ends where p starts.
func (p Period) Previous() Period {
	return Period{From: p.From.Add(-p.Length()), To: p.From}
}

// Trailing returns the period of length d ending at now.
func Trailing(now time.Time, d time.Duration) Period {
	return Period{From: now.Add(-d), To: now}
}

// ParseSpan parses spans such as "24h", "7d", "4w" or "30m".
func ParseSpan(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid span %q", s)
	}

	unit := s[len(s)-1]
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid span %q", s)
	}

	switch unit {
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid span unit in %q", s)
	}
}
