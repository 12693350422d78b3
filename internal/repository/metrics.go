package repository

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const metricsPrefix = "arnime:metrics"

// RouteStats represents statistics for one route
type RouteStats struct {
	Route            string           `json:"route"`
	TotalCalls       int64            `json:"total_calls"`
	SuccessCalls     int64            `json:"success_calls"`
	ErrorCalls       int64            `json:"error_calls"`
	AvgLatencyMs     float64          `json:"avg_latency_ms"`
	MaxLatencyMs     float64          `json:"max_latency_ms"`
	MinLatencyMs     float64          `json:"min_latency_ms"`
	UpstreamFailures map[string]int64 `json:"upstream_failures,omitempty"`
}

// DailyStats represents daily request statistics
type DailyStats struct {
	Date       string  `json:"date"`
	TotalCalls int64   `json:"total_calls"`
	AvgLatency float64 `json:"avg_latency"`
}

// OverallStats represents overall server statistics
type OverallStats struct {
	TotalCalls       int64            `json:"total_calls"`
	TodayCalls       int64            `json:"today_calls"`
	AvgLatencyMs     float64          `json:"avg_latency_ms"`
	ErrorRate        float64          `json:"error_rate"`
	UpstreamFailures map[string]int64 `json:"upstream_failures"`
	TopRoutes        []RouteStats     `json:"top_routes"`
	DailyTrend       []DailyStats     `json:"daily_trend"`
	Uptime           int64            `json:"uptime_seconds"`
}

// Call is one finished request
type Call struct {
	Route     string
	Status    int
	LatencyMs float64
	// UpstreamErrors are the error kinds of failed upstream calls
	UpstreamErrors []string
}

// keeps min_latency/max_latency correct under concurrent writers
var latencyBounds = redis.NewScript(`
local v = tonumber(ARGV[1])
local min = tonumber(redis.call('HGET', KEYS[1], 'min_latency'))
if min == nil or v < min then redis.call('HSET', KEYS[1], 'min_latency', ARGV[1]) end
local max = tonumber(redis.call('HGET', KEYS[1], 'max_latency'))
if max == nil or v > max then redis.call('HSET', KEYS[1], 'max_latency', ARGV[1]) end
return 1
`)

// Metrics stores request metrics in Redis
type Metrics struct {
	client *redis.Client
	now    func() time.Time
}

// NewMetrics creates a new Metrics instance
func NewMetrics(redisURL string) (*Metrics, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	return NewMetricsWithClient(redis.NewClient(opt)), nil
}

// NewMetricsWithClient wraps an existing client
func NewMetricsWithClient(client *redis.Client) *Metrics {
	return &Metrics{client: client, now: time.Now}
}

func key(parts ...string) string {
	return metricsPrefix + ":" + strings.Join(parts, ":")
}

// Record stores one finished request
func (m *Metrics) Record(ctx context.Context, call Call) error {
	now := m.now()
	today := now.Format("2006-01-02")
	hour := now.Format("2006-01-02-15")

	routeKey := key("route", call.Route)

	pipe := m.client.Pipeline()

	pipe.HIncrBy(ctx, routeKey, "total", 1)
	pipe.HIncrByFloat(ctx, routeKey, "latency_sum", call.LatencyMs)
	latencyBounds.Eval(ctx, pipe, []string{routeKey}, strconv.FormatFloat(call.LatencyMs, 'f', -1, 64))

	if call.Status >= 200 && call.Status < 400 {
		pipe.HIncrBy(ctx, routeKey, "success", 1)
	} else {
		pipe.HIncrBy(ctx, routeKey, "error", 1)
	}

	for _, kind := range call.UpstreamErrors {
		pipe.HIncrBy(ctx, routeKey, "upstream:"+kind, 1)
		pipe.HIncrBy(ctx, key("upstream"), kind, 1)
	}

	dailyKey := key("daily", today)
	pipe.HIncrBy(ctx, dailyKey, "total", 1)
	pipe.HIncrByFloat(ctx, dailyKey, "latency_sum", call.LatencyMs)
	pipe.Expire(ctx, dailyKey, 30*24*time.Hour)

	hourlyKey := key("hourly", hour)
	pipe.HIncrBy(ctx, hourlyKey, "total", 1)
	pipe.Expire(ctx, hourlyKey, 48*time.Hour)

	pipe.Incr(ctx, key("global", "total"))
	pipe.IncrByFloat(ctx, key("global", "latency_sum"), call.LatencyMs)

	pipe.SAdd(ctx, key("routes"), call.Route)

	_, err := pipe.Exec(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to record metrics")
	}
	return err
}

// GetRouteStats gets statistics for one route
func (m *Metrics) GetRouteStats(ctx context.Context, route string) (*RouteStats, error) {
	result, err := m.client.HGetAll(ctx, key("route", route)).Result()
	if err != nil {
		return nil, err
	}

	stats := &RouteStats{Route: route}
	if len(result) == 0 {
		return stats, nil
	}

	stats.TotalCalls, _ = strconv.ParseInt(result["total"], 10, 64)
	stats.SuccessCalls, _ = strconv.ParseInt(result["success"], 10, 64)
	stats.ErrorCalls, _ = strconv.ParseInt(result["error"], 10, 64)
	stats.MinLatencyMs, _ = strconv.ParseFloat(result["min_latency"], 64)
	stats.MaxLatencyMs, _ = strconv.ParseFloat(result["max_latency"], 64)
	latencySum, _ := strconv.ParseFloat(result["latency_sum"], 64)

	if stats.TotalCalls > 0 {
		stats.AvgLatencyMs = latencySum / float64(stats.TotalCalls)
	}

	for field, value := range result {
		kind, ok := strings.CutPrefix(field, "upstream:")
		if !ok {
			continue
		}
		if stats.UpstreamFailures == nil {
			stats.UpstreamFailures = make(map[string]int64)
		}
		stats.UpstreamFailures[kind], _ = strconv.ParseInt(value, 10, 64)
	}

	return stats, nil
}

// GetOverallStats gets overall server statistics
func (m *Metrics) GetOverallStats(ctx context.Context) (*OverallStats, error) {
	stats := &OverallStats{UpstreamFailures: map[string]int64{}}

	total, err := m.client.Get(ctx, key("global", "total")).Int64()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	latencySum, _ := m.client.Get(ctx, key("global", "latency_sum")).Float64()
	stats.TotalCalls = total
	if total > 0 {
		stats.AvgLatencyMs = latencySum / float64(total)
	}

	today := m.now().Format("2006-01-02")
	stats.TodayCalls, _ = m.client.HGet(ctx, key("daily", today), "total").Int64()

	upstream, err := m.client.HGetAll(ctx, key("upstream")).Result()
	if err != nil {
		return nil, err
	}
	for kind, value := range upstream {
		stats.UpstreamFailures[kind], _ = strconv.ParseInt(value, 10, 64)
	}

	routes, err := m.client.SMembers(ctx, key("routes")).Result()
	if err != nil {
		return nil, err
	}

	var all []RouteStats
	var totalErrors int64
	for _, route := range routes {
		rs, err := m.GetRouteStats(ctx, route)
		if err == nil && rs.TotalCalls > 0 {
			all = append(all, *rs)
			totalErrors += rs.ErrorCalls
		}
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].TotalCalls != all[j].TotalCalls {
			return all[i].TotalCalls > all[j].TotalCalls
		}
		return all[i].Route < all[j].Route
	})
	if len(all) > 10 {
		all = all[:10]
	}
	stats.TopRoutes = all

	if total > 0 {
		stats.ErrorRate = float64(totalErrors) / float64(total) * 100
	}

	stats.DailyTrend = m.getDailyTrend(ctx, 7)

	startTime, err := m.client.Get(ctx, key("server", "start_time")).Int64()
	if err == nil && startTime > 0 {
		stats.Uptime = m.now().Unix() - startTime
	}

	return stats, nil
}

// getDailyTrend gets daily statistics for the last N days
func (m *Metrics) getDailyTrend(ctx context.Context, days int) []DailyStats {
	trend := make([]DailyStats, 0, days)

	for i := days - 1; i >= 0; i-- {
		date := m.now().AddDate(0, 0, -i).Format("2006-01-02")

		result, err := m.client.HGetAll(ctx, key("daily", date)).Result()
		if err != nil {
			continue
		}

		total, _ := strconv.ParseInt(result["total"], 10, 64)
		latencySum, _ := strconv.ParseFloat(result["latency_sum"], 64)

		avgLatency := 0.0
		if total > 0 {
			avgLatency = latencySum / float64(total)
		}

		trend = append(trend, DailyStats{
			Date:       date,
			TotalCalls: total,
			AvgLatency: avgLatency,
		})
	}

	return trend
}

// RecordServerStart records server start time
func (m *Metrics) RecordServerStart(ctx context.Context) {
	if err := m.client.Set(ctx, key("server", "start_time"), m.now().Unix(), 0).Err(); err != nil {
		log.Warn().Err(err).Msg("Failed to record server start")
	}
}

// ResetMetrics deletes every metrics key
func (m *Metrics) ResetMetrics(ctx context.Context) error {
	iter := m.client.Scan(ctx, 0, metricsPrefix+":*", 500).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan metrics keys: %w", err)
	}

	if len(keys) > 0 {
		return m.client.Del(ctx, keys...).Err()
	}
	return nil
}

// Close closes the Redis connection
func (m *Metrics) Close() error {
	return m.client.Close()
}
