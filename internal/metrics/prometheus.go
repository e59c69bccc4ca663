// Package metrics provides Prometheus instrumentation for the permit office.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "aurospan"

// Login results recorded by RecordLogin.
const (
	LoginSuccess       = "success"
	LoginMissingCode   = "missing_code"
	LoginProviderError = "provider_error"
	LoginSessionError  = "session_error"
)

// Submission results recorded by RecordSubmission.
const (
	SubmissionAccepted = "accepted"
	SubmissionInvalid  = "invalid"
	SubmissionFailed   = "failed"
)

// PrometheusMetrics holds the collectors registered for the server.
type PrometheusMetrics struct {
	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
	LoginCounter        *prometheus.CounterVec
	SubmissionCounter   *prometheus.CounterVec
	AttachmentsStored   prometheus.Counter
	AttachmentBytes     prometheus.Histogram
	NotificationCounter *prometheus.CounterVec
}

// NewPrometheusMetrics creates the collectors and registers them with reg.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route, and status code.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		LoginCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Discord login callbacks by result.",
		}, []string{"result"}),
		SubmissionCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "permit_submissions_total",
			Help:      "Permit application submissions by result.",
		}, []string{"result"}),
		AttachmentsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "permit_attachments_stored_total",
			Help:      "Supporting files written to upload storage.",
		}),
		AttachmentBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "permit_attachment_bytes",
			Help:      "Size of stored supporting files.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		}),
		NotificationCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Staff notifications by outcome.",
		}, []string{"result"}),
	}

	for _, c := range []prometheus.Collector{
		m.HTTPRequests,
		m.HTTPDuration,
		m.LoginCounter,
		m.SubmissionCounter,
		m.AttachmentsStored,
		m.AttachmentBytes,
		m.NotificationCounter,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}

	return m, nil
}

// RecordRequest records one completed HTTP request.
func (m *PrometheusMetrics) RecordRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordLogin records the outcome of a login callback.
func (m *PrometheusMetrics) RecordLogin(result string) {
	if m == nil {
		return
	}
	m.LoginCounter.WithLabelValues(result).Inc()
}

// RecordSubmission records the outcome of a permit submission.
func (m *PrometheusMetrics) RecordSubmission(result string) {
	if m == nil {
		return
	}
	m.SubmissionCounter.WithLabelValues(result).Inc()
}

// RecordAttachment records one stored supporting file.
func (m *PrometheusMetrics) RecordAttachment(size int64) {
	if m == nil {
		return
	}
	m.AttachmentsStored.Inc()
	m.AttachmentBytes.Observe(float64(size))
}

// RecordNotification records whether a staff notification was delivered.
func (m *PrometheusMetrics) RecordNotification(delivered bool) {
	if m == nil {
		return
	}
	result := "delivered"
	if !delivered {
		result = "failed"
	}
	m.NotificationCounter.WithLabelValues(result).Inc()
}
