// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "oblivion",
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oblivion",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled.",
	}, []string{"method", "path", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "oblivion",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"method", "path"})

	// Actions counts domain writes: like, unlike, repost, follow, comment, post...
	Actions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oblivion",
		Subsystem: "domain",
		Name:      "actions_total",
		Help:      "Domain actions performed.",
	}, []string{"action"})

	NotificationsDelivered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oblivion",
		Subsystem: "notifications",
		Name:      "delivered_total",
		Help:      "Notifications persisted, by type and outcome.",
	}, []string{"type", "outcome"})

	NotificationQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "oblivion",
		Subsystem: "notifications",
		Name:      "queue_depth",
		Help:      "Pending notifications in the async dispatcher.",
	})

	RealtimeSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "oblivion",
		Subsystem: "realtime",
		Name:      "subscribers",
		Help:      "Active realtime notification subscribers.",
	})

	FanoutLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "oblivion",
		Subsystem: "timeline",
		Name:      "fanout_latency_seconds",
		Help:      "Delay between publishing a post and finishing its timeline fan-out.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	FanoutEntries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "oblivion",
		Subsystem: "timeline",
		Name:      "inbox_entries_total",
		Help:      "Inbox rows written by the fan-out worker.",
	})

	CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oblivion",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Cache lookups by result.",
	}, []string{"result"})

	ExternalCalls = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "oblivion",
		Subsystem: "external",
		Name:      "call_duration_seconds",
		Help:      "Duration of calls to the LLM, chain gateway and object storage.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"target", "op", "success"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpInFlight, httpRequests, httpDuration,
		Actions, NotificationsDelivered, NotificationQueueDepth, RealtimeSubscribers,
		FanoutLatency, FanoutEntries, CacheLookups, ExternalCalls,
	)
}

// Handler exposes the registry.
func Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}

// Middleware records request counts and latency per route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInFlight.Inc()
		c.Next()
		httpInFlight.Dec()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// ObserveExternal records one outbound call.
func ObserveExternal(target, op string, start time.Time, err error) {
	ExternalCalls.WithLabelValues(target, op, strconv.FormatBool(err == nil)).Observe(time.Since(start).Seconds())
}
