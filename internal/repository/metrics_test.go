package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	mr := miniredis.RunT(t)
	m := NewMetricsWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	m.now = func() time.Time { return time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { m.Close() })
	return m
}

func TestRecordAndRouteStats(t *testing.T) {
	ctx := context.Background()
	m := newTestMetrics(t)

	require.NoError(t, m.Record(ctx, Call{Route: "/anime/:slug", Status: 200, LatencyMs: 40}))
	require.NoError(t, m.Record(ctx, Call{Route: "/anime/:slug", Status: 200, LatencyMs: 10}))
	require.NoError(t, m.Record(ctx, Call{Route: "/anime/:slug", Status: 502, LatencyMs: 70, UpstreamErrors: []string{"http_502"}}))

	stats, err := m.GetRouteStats(ctx, "/anime/:slug")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalCalls)
	assert.Equal(t, int64(2), stats.SuccessCalls)
	assert.Equal(t, int64(1), stats.ErrorCalls)
	assert.InDelta(t, 40.0, stats.AvgLatencyMs, 0.001)
	assert.Equal(t, 10.0, stats.MinLatencyMs)
	assert.Equal(t, 70.0, stats.MaxLatencyMs)
	assert.Equal(t, map[string]int64{"http_502": 1}, stats.UpstreamFailures)
}

func TestOverallStats(t *testing.T) {
	ctx := context.Background()
	m := newTestMetrics(t)
	m.RecordServerStart(ctx)

	for i := 0; i < 3; i++ {
		require.NoError(t, m.Record(ctx, Call{Route: "/", Status: 200, LatencyMs: 5}))
	}
	require.NoError(t, m.Record(ctx, Call{Route: "/search", Status: 500, LatencyMs: 5, UpstreamErrors: []string{"format"}}))

	stats, err := m.GetOverallStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.TotalCalls)
	assert.Equal(t, int64(4), stats.TodayCalls)
	assert.InDelta(t, 25.0, stats.ErrorRate, 0.001)
	assert.Equal(t, map[string]int64{"format": 1}, stats.UpstreamFailures)
	require.Len(t, stats.TopRoutes, 2)
	assert.Equal(t, "/", stats.TopRoutes[0].Route)
	require.Len(t, stats.DailyTrend, 7)
	assert.Equal(t, "2026-10-15", stats.DailyTrend[6].Date)
	assert.Equal(t, int64(4), stats.DailyTrend[6].TotalCalls)
}

func TestResetMetrics(t *testing.T) {
	ctx := context.Background()
	m := newTestMetrics(t)
	require.NoError(t, m.Record(ctx, Call{Route: "/", Status: 200, LatencyMs: 1}))

	require.NoError(t, m.ResetMetrics(ctx))

	stats, err := m.GetOverallStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalCalls)
	assert.Empty(t, stats.TopRoutes)
}
