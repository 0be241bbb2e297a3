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
			Name: "listing_chat_http_requests_total",
			Help: "Total number of HTTP requests processed by the listing chat service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "listing_chat_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "listing_chat_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
		[]string{"kind"},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_chat_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"kind", "event"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "listing_chat_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
	syncMergesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_chat_sync_merges_total",
			Help: "Merge steps applied by the sync engine, by view and update source.",
		},
		[]string{"view", "source"},
	)
	syncDedupDropsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_chat_sync_dedup_drops_total",
			Help: "Updates discarded because an equivalent entry was already present.",
		},
		[]string{"view"},
	)
	syncPollErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_chat_sync_poll_errors_total",
			Help: "Poll fetches that failed and were absorbed until the next tick.",
		},
		[]string{"view"},
	)
	syncPendingOptimistic = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "listing_chat_sync_pending_optimistic",
			Help: "Optimistic entries visible locally but not yet confirmed by the store.",
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
		syncMergesTotal,
		syncDedupDropsTotal,
		syncPollErrorsTotal,
		syncPendingOptimistic,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
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

func IncSyncMerge(view, source string) {
	syncMergesTotal.WithLabelValues(view, source).Inc()
}

func IncSyncDedupDrop(view string) {
	syncDedupDropsTotal.WithLabelValues(view).Inc()
}

func IncSyncPollError(view string) {
	syncPollErrorsTotal.WithLabelValues(view).Inc()
}

func IncPendingOptimistic() {
	syncPendingOptimistic.Inc()
}

func DecPendingOptimistic() {
	syncPendingOptimistic.Dec()
}
