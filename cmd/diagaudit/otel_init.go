package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/diagaudit/diagaudit/config"
	"github.com/diagaudit/diagaudit/telemetry"
)

// setupTelemetry initializes the OTEL provider from the run config. With no
// endpoint configured the provider stays local-only. A failed init warns and
// returns a nil provider instead of aborting the run.
func setupTelemetry(ctx context.Context, cfg *config.Config, opts ...telemetry.Option) (*telemetry.Provider, func()) {
	provider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Endpoint:    cfg.OTEL.Endpoint,
		Insecure:    cfg.OTEL.Insecure,
		ServiceName: cfg.OTEL.ServiceName,
		SampleRate:  cfg.OTEL.SampleRate,
	}, opts...)
	if err != nil {
		log.Warn().Err(err).Msg("telemetry initialization failed, running without export")
		return nil, func() {}
	}

	if cfg.OTEL.Endpoint != "" {
		log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("telemetry export enabled")
	}

	return provider, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}
}
