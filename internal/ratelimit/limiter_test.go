package ratelimit

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPolicy = Policy{
	DailyLimit:     10,
	PerDomainLimit: 3,
	MinInterval:    0,
}

func newTestLimiter(t *testing.T, policy Policy) (*Limiter, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rate_limit.json")
	l, err := New(path, policy)
	require.NoError(t, err)
	return l, path
}

func TestLoadOrResetNeverCarriesOverAcrossDates(t *testing.T) {
	l, path := newTestLimiter(t, testPolicy)
	ctx := context.Background()

	day1 := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	require.NoError(t, l.RecordSend(ctx, "a@x.com", "x.com", day1))
	require.NoError(t, l.RecordSend(ctx, "b@x.com", "x.com", day1.Add(time.Minute)))

	// Same date, fresh limiter: counts persist.
	sameDay, err := New(path, testPolicy)
	require.NoError(t, err)
	win := sameDay.LoadOrReset(day1.Add(2 * time.Hour))
	assert.Equal(t, 2, win.TotalSent)

	// Next date: zeroed window, old data discarded.
	day2 := day1.AddDate(0, 0, 1)
	win = sameDay.LoadOrReset(day2)
	assert.Equal(t, 0, win.TotalSent)
	assert.Empty(t, win.DomainCounts)
	assert.Equal(t, "2026-08-21", win.Date)
}

func TestTotalSentEqualsDomainSumAfterEveryRecord(t *testing.T) {
	l, _ := newTestLimiter(t, testPolicy)
	ctx := context.Background()
	now := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)

	sends := []string{"x.com", "y.com", "x.com", "z.com", "y.com"}
	for i, domain := range sends {
		now = now.Add(time.Minute)
		require.NoError(t, l.RecordSend(ctx, "user@"+domain, domain, now))

		win := l.LoadOrReset(now)
		sum := 0
		for _, n := range win.DomainCounts {
			sum += n
		}
		assert.Equal(t, win.TotalSent, sum, "after send %d", i+1)
		assert.Equal(t, i+1, win.TotalSent)
	}
}

func TestAdmissionCheckOrder(t *testing.T) {
	// The check order is a contract: daily total, then per-domain total,
	// then elapsed interval. The first failing check names the denial.
	now := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("daily limit reported even when domain limit also exceeded", func(t *testing.T) {
		l, _ := newTestLimiter(t, Policy{DailyLimit: 2, PerDomainLimit: 1, MinInterval: time.Hour})
		require.NoError(t, l.RecordSend(ctx, "a@x.com", "x.com", now))
		require.NoError(t, l.RecordSend(ctx, "b@x.com", "x.com", now.Add(time.Second)))

		d := l.CheckAdmission("c@x.com", "x.com", now.Add(2*time.Second))
		require.False(t, d.Allowed)
		assert.Equal(t, ReasonDailyLimit, d.Reason)
	})

	t.Run("domain limit reported before rate delay", func(t *testing.T) {
		l, _ := newTestLimiter(t, Policy{DailyLimit: 10, PerDomainLimit: 1, MinInterval: time.Hour})
		require.NoError(t, l.RecordSend(ctx, "a@x.com", "x.com", now))

		d := l.CheckAdmission("b@x.com", "x.com", now.Add(time.Second))
		require.False(t, d.Allowed)
		assert.Equal(t, ReasonDomainLimit, d.Reason)
	})

	t.Run("rate delay when only the interval fails", func(t *testing.T) {
		l, _ := newTestLimiter(t, Policy{DailyLimit: 10, PerDomainLimit: 5, MinInterval: time.Hour})
		require.NoError(t, l.RecordSend(ctx, "a@x.com", "x.com", now))

		d := l.CheckAdmission("b@y.com", "y.com", now.Add(time.Minute))
		require.False(t, d.Allowed)
		assert.Equal(t, ReasonRateDelay, d.Reason)

		d = l.CheckAdmission("b@y.com", "y.com", now.Add(2*time.Hour))
		assert.True(t, d.Allowed)
	})
}

func TestFailedSendConsumesNoBudget(t *testing.T) {
	// A failed delivery never calls RecordSend; admission state must be
	// byte-identical before and after.
	l, _ := newTestLimiter(t, Policy{DailyLimit: 2, PerDomainLimit: 2, MinInterval: 0})
	now := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)

	before := l.LoadOrReset(now)
	require.Equal(t, 0, before.TotalSent)

	d := l.CheckAdmission("a@x.com", "x.com", now)
	require.True(t, d.Allowed)
	// ... send fails here; RecordSend is not called ...

	after := l.LoadOrReset(now)
	assert.Equal(t, 0, after.TotalSent)
	assert.Empty(t, after.DomainCounts)
}

func TestCorruptWindowFileResetsToZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rate_limit.json")
	require.NoError(t, writeFile(path, "{{{"))

	l, err := New(path, testPolicy)
	require.NoError(t, err)

	now := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	win := l.LoadOrReset(now)
	assert.Equal(t, 0, win.TotalSent)
	assert.Equal(t, "2026-08-20", win.Date)
}

func TestInconsistentCountersRepairedFromDomainSum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rate_limit.json")
	require.NoError(t, writeFile(path,
		`{"date":"2026-08-20","total_sent":99,"domain_counts":{"x.com":2,"y.com":1},"last_updated":"2026-08-20T08:00:00Z"}`))

	l, err := New(path, testPolicy)
	require.NoError(t, err)

	win := l.LoadOrReset(time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC))
	assert.Equal(t, 3, win.TotalSent)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
