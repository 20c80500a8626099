package daemon

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds operational metrics using OTEL semantic conventions
type Metrics struct {
	auditRuns     metric.Int64Counter
	auditDuration metric.Float64Histogram
	resources     metric.Int64Gauge
	nonCompliant  metric.Int64Gauge
}

// NewMetrics creates daemon metrics following OTEL semantic conventions
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("diagaudit.daemon")

	auditRuns, err := meter.Int64Counter(
		"diagaudit.daemon.audit_runs",
		metric.WithDescription("Number of audit runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	auditDuration, err := meter.Float64Histogram(
		"diagaudit.daemon.audit.duration",
		metric.WithDescription("Duration of audit runs"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	resources, err := meter.Int64Gauge(
		"diagaudit.resources.evaluated",
		metric.WithDescription("Resources evaluated in the latest audit run"),
		metric.WithUnit("{resource}"),
	)
	if err != nil {
		return nil, err
	}

	nonCompliant, err := meter.Int64Gauge(
		"diagaudit.resources.non_compliant",
		metric.WithDescription("Non-compliant resources in the latest audit run"),
		metric.WithUnit("{resource}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		auditRuns:     auditRuns,
		auditDuration: auditDuration,
		resources:     resources,
		nonCompliant:  nonCompliant,
	}, nil
}

// RecordRun records the outcome of one audit cycle.
func (m *Metrics) RecordRun(ctx context.Context, status string, duration time.Duration, total, nonCompliant int) {
	attrs := metric.WithAttributes(attribute.String("status", status))

	m.auditRuns.Add(ctx, 1, attrs)
	m.auditDuration.Record(ctx, duration.Seconds(), attrs)

	if status == "ok" {
		m.resources.Record(ctx, int64(total))
		m.nonCompliant.Record(ctx, int64(nonCompliant))
	}
}
