package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 邮件指标
	EmailsIngested prometheus.Counter
	HighRiskEmails prometheus.Counter

	// 规则引擎指标
	RulesEvaluated  prometheus.Counter
	RulesMatched    prometheus.Counter
	RulesSkipped    prometheus.Counter
	ActionsExecuted *prometheus.CounterVec
	EnginePassTime  prometheus.Histogram

	// 事件与投递指标
	EventsEnqueued   *prometheus.CounterVec
	EventsDropped    prometheus.Counter
	DeliveryAttempts *prometheus.CounterVec
	DeliveryDuration prometheus.Histogram
	QueueDepth       prometheus.Gauge

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phishguard_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "phishguard_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		EmailsIngested: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "phishguard_emails_ingested_total",
				Help: "Total number of email records ingested",
			},
		),

		HighRiskEmails: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "phishguard_high_risk_emails_total",
				Help: "Total number of emails scored above the high risk threshold",
			},
		),

		RulesEvaluated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "phishguard_rules_evaluated_total",
				Help: "Total number of rule evaluations",
			},
		),

		RulesMatched: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "phishguard_rules_matched_total",
				Help: "Total number of rule matches",
			},
		),

		RulesSkipped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "phishguard_rules_skipped_total",
				Help: "Total number of rules skipped due to definition errors",
			},
		),

		ActionsExecuted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phishguard_actions_executed_total",
				Help: "Total number of rule actions executed",
			},
			[]string{"action", "result"},
		),

		EnginePassTime: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "phishguard_engine_pass_duration_seconds",
				Help:    "Duration of a full rule pass over one email",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
		),

		EventsEnqueued: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phishguard_events_enqueued_total",
				Help: "Total number of events enqueued for webhook delivery",
			},
			[]string{"event_type"},
		),

		EventsDropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "phishguard_events_dropped_total",
				Help: "Total number of events dropped because the queue was full",
			},
		),

		DeliveryAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phishguard_webhook_delivery_attempts_total",
				Help: "Total number of webhook delivery attempts",
			},
			[]string{"result"},
		),

		DeliveryDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "phishguard_webhook_delivery_duration_seconds",
				Help:    "Duration of webhook delivery attempts",
				Buckets: prometheus.DefBuckets,
			},
		),

		QueueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "phishguard_event_queue_depth",
				Help: "Current number of events waiting for delivery",
			},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phishguard_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "phishguard_panics_total",
				Help: "Total number of recovered panics",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordEmailIngested 记录邮件入库
func (m *Metrics) RecordEmailIngested(highRisk bool) {
	m.EmailsIngested.Inc()
	if highRisk {
		m.HighRiskEmails.Inc()
	}
}

// RecordRulePass 记录一轮规则应用
func (m *Metrics) RecordRulePass(evaluated, matched, skipped int, duration time.Duration) {
	m.RulesEvaluated.Add(float64(evaluated))
	m.RulesMatched.Add(float64(matched))
	m.RulesSkipped.Add(float64(skipped))
	m.EnginePassTime.Observe(duration.Seconds())
}

// RecordAction 记录动作执行结果
func (m *Metrics) RecordAction(action string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.ActionsExecuted.WithLabelValues(action, result).Inc()
}

// RecordEventEnqueued 记录事件入队
func (m *Metrics) RecordEventEnqueued(eventType string) {
	m.EventsEnqueued.WithLabelValues(eventType).Inc()
}

// RecordEventDropped 记录事件因队列满被丢弃
func (m *Metrics) RecordEventDropped() {
	m.EventsDropped.Inc()
}

// RecordDelivery 记录一次投递尝试
func (m *Metrics) RecordDelivery(success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.DeliveryAttempts.WithLabelValues(result).Inc()
	m.DeliveryDuration.Observe(duration.Seconds())
}

// UpdateQueueDepth 更新事件队列深度
func (m *Metrics) UpdateQueueDepth(depth int) {
	m.QueueDepth.Set(float64(depth))
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// Handler 返回 Prometheus 指标处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
