package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/feedgate"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Login metrics
	LoginAttemptsTotal metric.Int64Counter
	LoginRetriesTotal  metric.Int64Counter
	LoginFailuresTotal metric.Int64Counter

	// Session lifecycle metrics
	SessionsCreatedTotal metric.Int64Counter
	SessionsRemovedTotal metric.Int64Counter

	// Client cache metrics
	CacheHitsTotal           metric.Int64Counter
	CacheMissesTotal         metric.Int64Counter
	RehydrationFailuresTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.LoginAttemptsTotal, _ = meter.Int64Counter(
		"feedgate.login.attempts.total",
		metric.WithDescription("Total number of credential login attempts against the platform"),
		metric.WithUnit("{attempt}"),
	)

	m.LoginRetriesTotal, _ = meter.Int64Counter(
		"feedgate.login.retries.total",
		metric.WithDescription("Total number of retried login attempts after retryable failures"),
		metric.WithUnit("{attempt}"),
	)

	m.LoginFailuresTotal, _ = meter.Int64Counter(
		"feedgate.login.failures.total",
		metric.WithDescription("Total number of logins that surfaced an error to the caller"),
		metric.WithUnit("{failure}"),
	)

	m.SessionsCreatedTotal, _ = meter.Int64Counter(
		"feedgate.sessions.created.total",
		metric.WithDescription("Total number of session records persisted"),
		metric.WithUnit("{session}"),
	)

	m.SessionsRemovedTotal, _ = meter.Int64Counter(
		"feedgate.sessions.removed.total",
		metric.WithDescription("Total number of session records removed by logout"),
		metric.WithUnit("{session}"),
	)

	m.CacheHitsTotal, _ = meter.Int64Counter(
		"feedgate.client_cache.hits.total",
		metric.WithDescription("Total number of client cache hits"),
		metric.WithUnit("{hit}"),
	)

	m.CacheMissesTotal, _ = meter.Int64Counter(
		"feedgate.client_cache.misses.total",
		metric.WithDescription("Total number of client cache misses triggering rehydration"),
		metric.WithUnit("{miss}"),
	)

	m.RehydrationFailuresTotal, _ = meter.Int64Counter(
		"feedgate.client_cache.rehydration_failures.total",
		metric.WithDescription("Total number of failed session rehydrations"),
		metric.WithUnit("{failure}"),
	)

	return m
}
