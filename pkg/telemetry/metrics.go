// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/neurosync/pkg/errors"
)

// Metrics holds the instruments recorded by the router, the limiter and the
// chat service. A nil *Metrics is valid and records nothing.
type Metrics struct {
	routes         metric.Int64Counter
	llmLatency     metric.Float64Histogram
	limiterWaits   metric.Int64Counter
	limiterRetries metric.Int64Counter
	errorCounter   metric.Int64Counter
	fallbacks      metric.Int64Counter
	healthStatus   metric.Int64Gauge
}

// NewMetrics creates the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWithProvider(otel.GetMeterProvider())
}

// NewMetricsWithProvider creates the instruments on mp.
func NewMetricsWithProvider(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter("neurosync")
	m := &Metrics{}
	var err error

	if m.routes, err = meter.Int64Counter("neurosync.router.routes",
		metric.WithDescription("Messages handled by route")); err != nil {
		return nil, err
	}
	if m.llmLatency, err = meter.Float64Histogram("neurosync.llm.latency_ms",
		metric.WithDescription("Remote model call latency"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if m.limiterWaits, err = meter.Int64Counter("neurosync.limiter.waits",
		metric.WithDescription("Calls delayed to honor the minimum interval")); err != nil {
		return nil, err
	}
	if m.limiterRetries, err = meter.Int64Counter("neurosync.limiter.retries",
		metric.WithDescription("Calls retried after a quota failure")); err != nil {
		return nil, err
	}
	if m.errorCounter, err = meter.Int64Counter("neurosync.errors.total",
		metric.WithDescription("Errors by code and component")); err != nil {
		return nil, err
	}
	if m.fallbacks, err = meter.Int64Counter("neurosync.fallback.invocations",
		metric.WithDescription("Replies produced by the local fallback model")); err != nil {
		return nil, err
	}
	if m.healthStatus, err = meter.Int64Gauge("neurosync.health.status",
		metric.WithDescription("Component health (0=unhealthy, 1=degraded, 2=healthy)")); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordRoute counts one routed message.
func (m *Metrics) RecordRoute(ctx context.Context, route, failure string) {
	if m == nil {
		return
	}
	m.routes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("route", route),
		attribute.String("failure", failure),
	))
}

// RecordLLMLatency records the duration of one remote model call.
func (m *Metrics) RecordLLMLatency(ctx context.Context, model string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.llmLatency.Record(ctx, float64(d.Microseconds())/1000, metric.WithAttributes(
		attribute.String(AttrLLMModel, model),
		attribute.Bool("success", err == nil),
	))
}

// RecordLimiterWait counts one throttled call.
func (m *Metrics) RecordLimiterWait(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.limiterWaits.Add(ctx, 1)
}

// RecordLimiterRetry counts one quota retry.
func (m *Metrics) RecordLimiterRetry(ctx context.Context, err error) {
	if m == nil {
		return
	}
	m.limiterRetries.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrErrorCode, string(errors.CodeOf(err))),
	))
}

// RecordError counts err under its code and kind.
func (m *Metrics) RecordError(ctx context.Context, err error, component string) {
	if m == nil || err == nil {
		return
	}
	e := errors.As(err)
	m.errorCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrErrorCode, string(e.Code)),
		attribute.String(AttrErrorKind, errors.KindOf(err).String()),
		attribute.String(AttrComponent, component),
	))
}

// RecordFallback counts one reply served by the local model.
func (m *Metrics) RecordFallback(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordHealthStatus records the health of a component.
func (m *Metrics) RecordHealthStatus(ctx context.Context, component string, status int64) {
	if m == nil {
		return
	}
	m.healthStatus.Record(ctx, status, metric.WithAttributes(attribute.String(AttrComponent, component)))
}
