package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API 指标
var (
	// APIRequestsTotal API 请求总数
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ehs_api_requests_total",
			Help: "API 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	// APIRequestDuration API 请求延迟（秒）
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ehs_api_request_duration_seconds",
			Help:    "API 请求延迟分布",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// 许可证生命周期指标
var (
	// PermitTransitionsTotal 许可证状态转换总数
	PermitTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ehs_permit_transitions_total",
			Help: "许可证生命周期操作总数",
		},
		[]string{"operation", "result"},
	)

	// ExtensionDecisionsTotal 延期审批结果总数
	ExtensionDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ehs_permit_extension_decisions_total",
			Help: "延期审批结果总数",
		},
		[]string{"decision"},
	)

	// StopWorkEventsTotal 停工令事件总数
	StopWorkEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ehs_stop_work_events_total",
			Help: "停工令生命周期事件总数",
		},
		[]string{"event", "severity"},
	)

	// StopWorkOpenGauge 当前未关闭的停工令数量
	StopWorkOpenGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ehs_stop_work_open",
			Help: "当前未关闭的停工令数量",
		},
	)
)

// RecordTransition 记录一次生命周期操作结果
func RecordTransition(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	PermitTransitionsTotal.WithLabelValues(operation, result).Inc()
}
