package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/prometheus"

	"github.com/diagaudit/diagaudit/config"
	"github.com/diagaudit/diagaudit/internal/daemon"
	"github.com/diagaudit/diagaudit/orchestrator"
	"github.com/diagaudit/diagaudit/policy"
	"github.com/diagaudit/diagaudit/providers/azure"
	"github.com/diagaudit/diagaudit/storage"
	"github.com/diagaudit/diagaudit/telemetry"
)

var daemonMetricsAddr string

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run continuous compliance audits",
	Long: `Run diagaudit in daemon mode: audit the subscription on the configured
interval, persist every run in the history store, and expose
Prometheus metrics and a health endpoint.

Endpoints:
- /metrics  Prometheus metrics
- /health   Daemon health snapshot

The daemon shuts down gracefully on SIGTERM/SIGINT.`,
	Example: `  diagaudit daemon                       # Audit on the configured interval
  diagaudit daemon --metrics-addr :2112  # Custom metrics address`,
	RunE: runDaemonCmd,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().StringVar(&daemonMetricsAddr, "metrics-addr", ":9090", "Metrics HTTP server address")
}

func runDaemonCmd(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	setupLogging(cfg)

	ctx := cmd.Context()

	// The meter provider must be in place before daemon metrics are created.
	// The prometheus reader backs /metrics; the OTLP reader is added when the
	// config names an endpoint.
	promExporter, err := prometheus.New()
	if err != nil {
		return fmt.Errorf("create prometheus exporter: %w", err)
	}
	tp, telemetryShutdown := setupTelemetry(ctx, cfg, telemetry.WithMetricReader(promExporter))
	defer telemetryShutdown()

	pol, err := loadRetentionPolicy(cfg.PolicyPath)
	if err != nil {
		return err
	}

	var extra []orchestrator.Option
	if tp != nil {
		extra = append(extra, orchestrator.WithTelemetry(tp))
	}
	auditor, err := buildAuditor(ctx, cfg, pol, extra...)
	if err != nil {
		return err
	}

	var history *storage.HistoryStore
	if cfg.Output.History != "" {
		if err := os.MkdirAll(cfg.Output.History, 0755); err != nil {
			return fmt.Errorf("create history dir: %w", err)
		}
		history, err = storage.NewHistoryStore(cfg.Output.History)
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		defer func() { _ = history.Close() }()
	}

	d, err := daemon.New(daemon.Config{Interval: cfg.Audit.Interval}, auditor, history)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	fmt.Printf("Daemon starting: environment=%s interval=%s metrics=%s\n",
		cfg.Environment, cfg.Audit.Interval, daemonMetricsAddr)

	var g run.Group

	loopCtx, loopCancel := context.WithCancel(ctx)
	g.Add(func() error {
		return d.Start(loopCtx)
	}, func(error) {
		loopCancel()
	})

	srv := &http.Server{
		Addr:              daemonMetricsAddr,
		Handler:           daemonMux(d),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Add(func() error {
		return srv.ListenAndServe()
	}, func(error) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})

	g.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))

	err = g.Run()
	if _, ok := err.(run.SignalError); ok || err == http.ErrServerClosed {
		fmt.Println("Daemon stopped")
		return nil
	}
	return err
}

func daemonMux(d *daemon.Daemon) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(d.Health())
	})
	return mux
}

// buildAuditor wires a provider and orchestrator from config.
func buildAuditor(ctx context.Context, cfg *config.Config, pol *policy.RetentionPolicy, extra ...orchestrator.Option) (*orchestrator.Orchestrator, error) {
	provider, err := azure.NewProvider(ctx, azure.Config{SubscriptionID: cfg.SubscriptionID})
	if err != nil {
		return nil, fmt.Errorf("create azure provider: %w", err)
	}

	opts, err := orchestratorOptions(ctx, cfg)
	if err != nil {
		return nil, err
	}
	opts = append(opts, extra...)
	return orchestrator.New(provider, pol, cfg.Environment, opts...), nil
}

// orchestratorOptions translates config into run options, compiling the
// exemption bundle when one is configured.
func orchestratorOptions(ctx context.Context, cfg *config.Config) ([]orchestrator.Option, error) {
	opts := []orchestrator.Option{
		orchestrator.WithConcurrency(cfg.Audit.Concurrency),
	}
	if cfg.ExemptionsDir != "" {
		engine := policy.NewExemptionEngine()
		if err := engine.LoadBundle(ctx, cfg.ExemptionsDir); err != nil {
			return nil, fmt.Errorf("load exemptions: %w", err)
		}
		opts = append(opts, orchestrator.WithExemptions(engine))
	}
	return opts, nil
}
