package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 慢查询计数
	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_count",
			Help: "Total number of database queries slower than the configured threshold",
		},
		[]string{"operation"},
	)

	// 统计计算耗时（秒）
	StatsComputeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stats_compute_duration_seconds",
			Help:    "Time spent computing a statistics view",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"view"}, // view: summary, behavior, streak
	)

	// 成就解锁计数
	AchievementUnlockedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "achievement_unlocked_count",
			Help: "Total number of achievements unlocked",
		},
		[]string{"rule"},
	)

	// 限流拒绝计数
	RateLimitedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_rate_limited_count",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"scope"},
	)

	// 事件发布计数
	EventPublishedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_published_count",
			Help: "Total number of events published to the broker",
		},
		[]string{"routing_key", "status"}, // status: success, failed
	)
)

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementSlowQuery 按 SQL 首个关键字归类慢查询
func IncrementSlowQuery(operation string) {
	SlowQueryCount.WithLabelValues(operation).Inc()
}

// RecordStatsCompute 记录统计计算耗时
func RecordStatsCompute(view string, duration time.Duration) {
	StatsComputeDuration.WithLabelValues(view).Observe(duration.Seconds())
}

// IncrementAchievementUnlocked 增加成就解锁计数
func IncrementAchievementUnlocked(rule string) {
	AchievementUnlockedCount.WithLabelValues(rule).Inc()
}

// IncrementRateLimited 增加限流拒绝计数
func IncrementRateLimited(scope string) {
	RateLimitedCount.WithLabelValues(scope).Inc()
}

// IncrementEventPublished 增加事件发布计数
func IncrementEventPublished(routingKey, status string) {
	EventPublishedCount.WithLabelValues(routingKey, status).Inc()
}
