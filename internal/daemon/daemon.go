// Package daemon runs continuous audit cycles on an interval.
package daemon

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/diagaudit/diagaudit/report"
	"github.com/diagaudit/diagaudit/storage"
	"github.com/diagaudit/diagaudit/telemetry"
)

// Auditor produces one compliance report per invocation.
type Auditor interface {
	Run(ctx context.Context) (*report.Report, error)
}

// Config holds daemon configuration.
type Config struct {
	Interval time.Duration
}

// Daemon repeatedly audits and persists the results.
type Daemon struct {
	auditor  Auditor
	history  *storage.HistoryStore
	metrics  *Metrics
	logger   *telemetry.Logger
	interval time.Duration

	startTime time.Time
	runCount  atomic.Int64
	lastRunID atomic.Int64
}

// New creates a daemon. The history store may be nil; runs are then not
// persisted.
func New(cfg Config, auditor Auditor, history *storage.HistoryStore) (*Daemon, error) {
	metrics, err := NewMetrics()
	if err != nil {
		return nil, err
	}

	return &Daemon{
		auditor:   auditor,
		history:   history,
		metrics:   metrics,
		logger:    telemetry.NewLogger("daemon"),
		interval:  cfg.Interval,
		startTime: time.Now(),
	}, nil
}

// Start runs an immediate audit, then audits on every interval tick until
// the context is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	d.runOnce(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.runOnce(ctx)
		}
	}
}

func (d *Daemon) runOnce(ctx context.Context) {
	start := time.Now()
	d.runCount.Add(1)

	r, err := d.auditor.Run(ctx)
	if err != nil {
		d.logger.WithContext(ctx).Error().Err(err).Msg("audit run failed")
		d.metrics.RecordRun(ctx, "error", time.Since(start), 0, 0)
		return
	}

	d.metrics.RecordRun(ctx, "ok", time.Since(start), r.TotalResources, r.NonCompliantResources)

	if d.history != nil {
		runID, err := d.history.SaveRun(r)
		if err != nil {
			d.logger.WithContext(ctx).Error().Err(err).Msg("failed to persist audit run")
			return
		}
		d.lastRunID.Store(runID)
	}
}

// HealthStatus reports daemon liveness.
type HealthStatus struct {
	Status    string        `json:"status"`
	Uptime    time.Duration `json:"uptime"`
	RunCount  int64         `json:"run_count"`
	LastRunID int64         `json:"last_run_id,omitempty"`
}

// Health returns the daemon health snapshot.
func (d *Daemon) Health() HealthStatus {
	return HealthStatus{
		Status:    "healthy",
		Uptime:    time.Since(d.startTime),
		RunCount:  d.runCount.Load(),
		LastRunID: d.lastRunID.Load(),
	}
}
