// Package metrics declares the prometheus collectors exposed on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Scans counts scan submissions by outcome (checkin, checkout or an error code).
	Scans = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "staffattend_scans_total",
		Help: "Attendance scan submissions by outcome.",
	}, []string{"outcome"})

	// Logins counts login attempts by result.
	Logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "staffattend_logins_total",
		Help: "Login attempts by result.",
	}, []string{"result"})

	// ScanDistance observes the distance of scans from the school in meters.
	ScanDistance = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "staffattend_scan_distance_meters",
		Help:    "Distance between submitted coordinates and the geofence center.",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 5000},
	})

	// EventsStored counts audit events written by the worker.
	EventsStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "staffattend_audit_events_total",
		Help: "Audit events processed by the worker.",
	}, []string{"result"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "staffattend_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// GinMiddleware records request latency per matched route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
