package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	WsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_ws_connections",
		Help: "Current number of active websocket connections",
	})
	OnlineUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_online_users",
		Help: "Current number of joined chat users",
	})
	WsMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_ws_messages_total",
		Help: "Total number of chat messages broadcast",
	})
	MessagesRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_messages_rejected_total",
		Help: "Chat messages rejected before broadcast, by reason",
	}, []string{"reason"})
	SlowConsumers = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_ws_slow_consumers_total",
		Help: "Connections evicted because their send buffer was full",
	})
	AdminActions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_admin_actions_total",
		Help: "Admin actions executed, by action",
	}, []string{"action"})
	StoreErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_store_errors_total",
		Help: "Persistence adapter failures, by operation",
	}, []string{"op"})
	HttpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HttpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(
		WsConnections, OnlineUsers, WsMessagesTotal, MessagesRejected, SlowConsumers,
		AdminActions, StoreErrors, HttpRequestsTotal, HttpRequestDuration,
	)
}

// GinMiddleware 统计基础请求指标，供 Prometheus 拉取。
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		labels := prometheus.Labels{"method": c.Request.Method, "path": path, "status": status}
		HttpRequestsTotal.With(labels).Inc()
		HttpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}
