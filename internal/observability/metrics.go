package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dm_http_requests_total",
			Help: "Total number of HTTP requests processed by the dm service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dm_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dm_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
		[]string{"kind"},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dm_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"kind", "event"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dm_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
	messagesSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dm_messages_sent_total",
			Help: "Total number of direct messages created.",
		},
	)
	messageSendFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dm_message_send_failures_total",
			Help: "Total number of failed sends by stage.",
		},
		[]string{"stage"},
	)
	headerReconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dm_header_reconcile_duration_seconds",
			Help:    "Time spent upserting both chat headers of a send.",
			Buckets: prometheus.DefBuckets,
		},
	)
	headerCompensationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dm_header_compensations_total",
			Help: "Total number of chat header writes undone after a failed send.",
		},
		[]string{"action", "result"},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dm_active_sessions",
			Help: "Number of signed-in sessions.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		amqpPublishErrorsTotal,
		messagesSentTotal,
		messageSendFailuresTotal,
		headerReconcileDuration,
		headerCompensationsTotal,
		activeSessions,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Inc()
}

func DecWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Dec()
}

func IncWSEvent(kind, event string) {
	wsEventsTotal.WithLabelValues(kind, event).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}

func IncMessageSent() {
	messagesSentTotal.Inc()
}

// IncSendFailure counts a failed send. stage is "lookup", "headers" or "message".
func IncSendFailure(stage string) {
	messageSendFailuresTotal.WithLabelValues(stage).Inc()
}

func ObserveReconcile(d time.Duration) {
	headerReconcileDuration.Observe(d.Seconds())
}

// IncCompensation counts an undo of a header write. action is "restore" or
// "remove"; result is "ok" or "error".
func IncCompensation(action, result string) {
	headerCompensationsTotal.WithLabelValues(action, result).Inc()
}

func SessionStarted() {
	activeSessions.Inc()
}

func SessionEnded() {
	activeSessions.Dec()
}
