package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commitcore_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "commitcore_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	commitmentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "commitcore_commitments_total",
		Help: "Total commitments appended to the log.",
	})

	batchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "commitcore_batch_transactions",
		Help:    "Number of transactions per committed batch.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})

	auditsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commitcore_log_audits_total",
		Help: "Total commitment log integrity audits by result.",
	}, []string{"result"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		requestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		requestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordCommit records a commitment of txCount transactions.
func RecordCommit(txCount int) {
	commitmentsTotal.Inc()
	batchSize.Observe(float64(txCount))
}

// RecordAudit records a log audit result. It matches commitlog.MetricsRecordFunc.
func RecordAudit(intact bool) {
	if intact {
		auditsTotal.WithLabelValues("intact").Inc()
	} else {
		auditsTotal.WithLabelValues("broken").Inc()
	}
}
