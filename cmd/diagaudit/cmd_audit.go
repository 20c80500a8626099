package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/diagaudit/diagaudit/config"
	"github.com/diagaudit/diagaudit/orchestrator"
	"github.com/diagaudit/diagaudit/policy"
	"github.com/diagaudit/diagaudit/report"
	"github.com/diagaudit/diagaudit/storage"
	"github.com/diagaudit/diagaudit/telemetry"
	"github.com/diagaudit/diagaudit/types"
)

var (
	auditValidateOnly bool
	auditRequire      string
)

// auditCmd represents the audit command
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Run one compliance audit against the subscription",
	Long: `Run one complete audit: discover resources, fetch their diagnostic
settings, evaluate them against the retention policy, and write the
JSON and HTML reports.

Resources whose type has no policy mapping are skipped and excluded
from the totals; they are out of scope, not failures. A resource whose
diagnostic settings cannot be fetched is reported as not configured.`,
	Example: `  diagaudit audit                          # Audit with diagaudit.yaml
  diagaudit audit -c prod.yaml             # Audit with a specific config
  diagaudit audit --validate-only          # Exit 1 when findings exist
  diagaudit audit --require key_vault      # Fail unless policy covers key vaults`,
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().BoolVar(&auditValidateOnly, "validate-only", false, "Exit with code 1 when any resource is non-compliant")
	auditCmd.Flags().StringVar(&auditRequire, "require", "", "Comma-separated resource kinds the policy must cover")
}

func runAudit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	setupLogging(cfg)

	tp, telemetryShutdown := setupTelemetry(ctx, cfg)
	defer telemetryShutdown()

	pol, err := loadPolicy(cfg)
	if err != nil {
		return err
	}
	telemetry.NewLogger("audit").LogPolicyLoaded(ctx, pol.Version,
		len(pol.ResourcePolicies), len(pol.ComplianceFrameworks))

	var extra []orchestrator.Option
	if tp != nil {
		extra = append(extra, orchestrator.WithTelemetry(tp))
	}
	auditor, err := buildAuditor(ctx, cfg, pol, extra...)
	if err != nil {
		return err
	}

	r, err := auditor.Run(ctx)
	if err != nil {
		return fmt.Errorf("audit run: %w", err)
	}

	if err := persistReport(cfg, r); err != nil {
		return err
	}
	printSummary(r)

	if auditValidateOnly && r.NonCompliantResources > 0 {
		return errNonCompliant
	}
	return nil
}

func loadPolicy(cfg *config.Config) (*policy.RetentionPolicy, error) {
	var opts []policy.LoadOption
	if auditRequire != "" {
		var kinds []types.ResourceKind
		for _, k := range strings.Split(auditRequire, ",") {
			kinds = append(kinds, types.ResourceKind(strings.TrimSpace(k)))
		}
		opts = append(opts, policy.WithMandatoryKinds(kinds...))
	}
	return loadRetentionPolicy(cfg.PolicyPath, opts...)
}

// persistReport writes the rendered artifacts and records the run in the
// history store. File names embed environment and timestamp so successive
// runs never overwrite each other.
func persistReport(cfg *config.Config, r *report.Report) error {
	if err := os.MkdirAll(cfg.Output.Dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	stamp := r.Timestamp.UTC().Format("20060102-150405")
	base := fmt.Sprintf("compliance-%s-%s", cfg.Environment, stamp)

	for _, format := range cfg.Output.Formats {
		var (
			data []byte
			err  error
		)
		switch format {
		case "json":
			data, err = report.RenderJSON(r)
		case "html":
			data, err = report.RenderHTML(r)
		}
		if err != nil {
			return err
		}

		path := filepath.Join(cfg.Output.Dir, base+"."+format)
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("write report %s: %w", path, err)
		}
		fmt.Printf("Report written: %s\n", path)
	}

	if cfg.Output.History != "" {
		if err := os.MkdirAll(cfg.Output.History, 0755); err != nil {
			return fmt.Errorf("create history dir: %w", err)
		}
		history, err := storage.NewHistoryStore(cfg.Output.History)
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		defer func() { _ = history.Close() }()

		if _, err := history.SaveRun(r); err != nil {
			return err
		}
	}

	return nil
}

func printSummary(r *report.Report) {
	fmt.Printf("\nEnvironment:     %s\n", r.Environment)
	fmt.Printf("Policy version:  %s\n", r.PolicyVersion)
	fmt.Printf("Resources:       %d total, %d compliant, %d non-compliant\n",
		r.TotalResources, r.CompliantResources, r.NonCompliantResources)
	fmt.Printf("Compliance rate: %.2f%%\n", r.ComplianceRatePercent)
}
