package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 工作流状态转换计数
	WorkflowTransitionCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_transition_count",
			Help: "Total number of workflow transitions attempted",
		},
		[]string{"operation", "result"}, // result: ok, rejected, conflict, error
	)

	// 乐观锁冲突重试计数
	WorkflowRetryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_version_conflict_retries",
			Help: "Retries caused by milestone version conflicts",
		},
		[]string{"operation"},
	)

	// 数据库查询延迟（秒）
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
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

	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	// Outbox 待发送事件数
	OutboxPendingEvents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "outbox_pending_events",
			Help: "Number of outbox events waiting for dispatch",
		},
	)
)

// RecordTransition 记录一次工作流操作结果
func RecordTransition(operation, result string) {
	WorkflowTransitionCount.WithLabelValues(operation, result).Inc()
}

// RecordVersionConflictRetry 记录一次乐观锁冲突重试
func RecordVersionConflictRetry(operation string) {
	WorkflowRetryCount.WithLabelValues(operation).Inc()
}

// RecordDBQueryDuration 记录数据库查询延迟
func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// 慢查询计数
var SlowQueryCount = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "db_slow_query_count",
		Help: "Number of queries slower than the configured threshold",
	},
	[]string{"sql"},
)

// IncrementSlowQuery 增加慢查询计数
func IncrementSlowQuery(sql string, duration time.Duration) {
	SlowQueryCount.WithLabelValues(sql).Inc()
}
