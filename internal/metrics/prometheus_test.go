package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func newTestMetrics(t *testing.T) *PrometheusMetrics {
	t.Helper()
	m, err := NewPrometheusMetrics(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	return m
}

func TestNewPrometheusMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPrometheusMetrics(reg); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if _, err := NewPrometheusMetrics(reg); err == nil {
		t.Error("expected error registering twice on one registry")
	}
}

func TestPrometheus_RecordRequest(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordRequest("GET", "/laws/:id", 200, 20*time.Millisecond)
	m.RecordRequest("GET", "/laws/:id", 200, 30*time.Millisecond)
	m.RecordRequest("GET", "/laws/:id", 404, time.Millisecond)

	if val := getCounterValue(t, m.HTTPRequests, "GET", "/laws/:id", "200"); val != 2 {
		t.Errorf("expected 2 ok requests, got %f", val)
	}
	if val := getCounterValue(t, m.HTTPRequests, "GET", "/laws/:id", "404"); val != 1 {
		t.Errorf("expected 1 not found request, got %f", val)
	}

	count, sum := getHistogramValues(t, m.HTTPDuration, "GET", "/laws/:id")
	if count != 3 {
		t.Errorf("expected 3 observations, got %d", count)
	}
	if sum < 0.05 || sum > 0.052 {
		t.Errorf("unexpected duration sum %f", sum)
	}
}

func TestPrometheus_RecordLoginAndSubmission(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordLogin(LoginSuccess)
	m.RecordLogin(LoginProviderError)
	m.RecordLogin(LoginProviderError)
	m.RecordSubmission(SubmissionAccepted)
	m.RecordSubmission(SubmissionInvalid)

	if val := getCounterValue(t, m.LoginCounter, LoginProviderError); val != 2 {
		t.Errorf("expected 2 provider errors, got %f", val)
	}
	if val := getCounterValue(t, m.LoginCounter, LoginSuccess); val != 1 {
		t.Errorf("expected 1 success, got %f", val)
	}
	if val := getCounterValue(t, m.SubmissionCounter, SubmissionAccepted); val != 1 {
		t.Errorf("expected 1 accepted, got %f", val)
	}
}

func TestPrometheus_RecordAttachment(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordAttachment(2048)
	m.RecordAttachment(10)

	var out dto.Metric
	if err := m.AttachmentsStored.Write(&out); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if out.GetCounter().GetValue() != 2 {
		t.Errorf("expected 2 attachments, got %f", out.GetCounter().GetValue())
	}

	var hist dto.Metric
	if err := m.AttachmentBytes.Write(&hist); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if hist.GetHistogram().GetSampleSum() != 2058 {
		t.Errorf("expected byte sum 2058, got %f", hist.GetHistogram().GetSampleSum())
	}
}

func TestPrometheus_RecordNotification(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordNotification(true)
	m.RecordNotification(false)
	m.RecordNotification(false)

	if val := getCounterValue(t, m.NotificationCounter, "failed"); val != 2 {
		t.Errorf("expected 2 failures, got %f", val)
	}
}

func TestPrometheus_NilIsNoop(t *testing.T) {
	var m *PrometheusMetrics
	m.RecordRequest("GET", "/", 200, time.Millisecond)
	m.RecordLogin(LoginSuccess)
	m.RecordSubmission(SubmissionAccepted)
	m.RecordAttachment(1)
	m.RecordNotification(true)
}

func getCounterValue(t *testing.T, counter *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	var m dto.Metric
	if err := counter.WithLabelValues(labels...).(prometheus.Metric).Write(&m); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func getHistogramValues(t *testing.T, hist *prometheus.HistogramVec, labels ...string) (uint64, float64) {
	t.Helper()
	observer := hist.WithLabelValues(labels...)
	var m dto.Metric
	if err := observer.(prometheus.Metric).Write(&m); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return m.GetHistogram().GetSampleCount(), m.GetHistogram().GetSampleSum()
}
