// Package telemetry provides structured logging and OpenTelemetry wiring.
package telemetry

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTELHook adds trace and span IDs to every log entry
type OTELHook struct{}

func (h OTELHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return
	}

	e.Str("trace_id", span.SpanContext().TraceID().String())
	e.Str("span_id", span.SpanContext().SpanID().String())

	if level == zerolog.ErrorLevel {
		span.SetStatus(codes.Error, msg)
	}
}

// Logger wraps zerolog with OTEL integration
type Logger struct {
	zerolog.Logger
}

// NewLogger creates a new logger with OTEL hooks
func NewLogger(service string) *Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	logger := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", service).
		Logger().
		Hook(OTELHook{})

	return &Logger{Logger: logger}
}

// WithContext returns a logger with context (for trace propagation)
func (l *Logger) WithContext(ctx context.Context) *zerolog.Logger {
	logger := l.Logger.With().Ctx(ctx).Logger()
	return &logger
}

// Convenience methods for audit runs

func (l *Logger) LogPolicyLoaded(ctx context.Context, version string, kinds int, frameworks int) {
	l.WithContext(ctx).Info().
		Str("policy_version", version).
		Int("resource_kinds", kinds).
		Int("frameworks", frameworks).
		Msg("retention policy loaded")
}

func (l *Logger) LogClassificationGap(ctx context.Context, resourceID, rawType string) {
	l.WithContext(ctx).Debug().
		Str("resource_id", resourceID).
		Str("raw_type", rawType).
		Msg("resource type has no policy mapping, skipping")
}

func (l *Logger) LogPolicyGap(ctx context.Context, resourceID, kind string) {
	l.WithContext(ctx).Debug().
		Str("resource_id", resourceID).
		Str("kind", kind).
		Msg("kind has no policy requirements, skipping")
}

func (l *Logger) LogSnapshotUnavailable(ctx context.Context, resourceID string, err error) {
	l.WithContext(ctx).Warn().
		Err(err).
		Str("resource_id", resourceID).
		Msg("diagnostic snapshot unavailable, treating as not configured")
}

func (l *Logger) LogRunComplete(ctx context.Context, total, compliant, nonCompliant int, rate float64) {
	l.WithContext(ctx).Info().
		Int("total_resources", total).
		Int("compliant", compliant).
		Int("non_compliant", nonCompliant).
		Float64("compliance_rate_percent", rate).
		Msg("audit run complete")
}
