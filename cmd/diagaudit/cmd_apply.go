package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/diagaudit/diagaudit/config"
	"github.com/diagaudit/diagaudit/orchestrator"
	"github.com/diagaudit/diagaudit/providers/azure"
	"github.com/diagaudit/diagaudit/remediation"
)

var applyDryRun bool

// applyCmd represents the apply command
var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Converge non-compliant resources to the policy target",
	Long: `Run an audit, then apply the planned diagnostic configuration to every
non-compliant resource. The applier compares live state first and only
writes when the target is not already satisfied, so re-running apply
after a successful convergence is a no-op.

Requires audit.workspace_id in the config: applied settings route to
that Log Analytics workspace.`,
	Example: `  diagaudit apply              # Converge everything non-compliant
  diagaudit apply --dry-run    # Show what would change`,
	RunE: runApply,
}

func init() {
	rootCmd.AddCommand(applyCmd)

	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "Plan only, change nothing")
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	setupLogging(cfg)

	if !applyDryRun && cfg.Audit.WorkspaceID == "" {
		return fmt.Errorf("audit.workspace_id is required to apply diagnostic settings")
	}

	pol, err := loadPolicy(cfg)
	if err != nil {
		return err
	}

	provider, err := azure.NewProvider(ctx, azure.Config{SubscriptionID: cfg.SubscriptionID})
	if err != nil {
		return fmt.Errorf("create azure provider: %w", err)
	}

	opts, err := orchestratorOptions(ctx, cfg)
	if err != nil {
		return err
	}
	r, err := orchestrator.New(provider, pol, cfg.Environment, opts...).Run(ctx)
	if err != nil {
		return fmt.Errorf("audit run: %w", err)
	}

	applied, skipped := 0, 0
	for _, result := range r.ResourceDetails {
		if result.IsCompliant() {
			continue
		}

		target := remediation.Plan(result.Kind, pol.RequirementsFor(result.Kind))
		if applyDryRun {
			fmt.Printf("would apply: %s (%s, %d log + %d metric categories)\n",
				result.Resource.Name, result.Kind, len(target.Logs), len(target.Metrics))
			continue
		}

		outcome, err := provider.Apply(ctx, result.Resource.ID, target, cfg.Audit.WorkspaceID)
		if err != nil {
			return fmt.Errorf("apply to %s: %w", result.Resource.ID, err)
		}
		switch outcome {
		case azure.OutcomeApplied:
			applied++
			fmt.Printf("applied: %s (%s)\n", result.Resource.Name, result.Kind)
		case azure.OutcomeNoop:
			skipped++
		}
	}

	if applyDryRun {
		fmt.Printf("\n%d of %d resources would change\n", r.NonCompliantResources, r.TotalResources)
		return nil
	}
	fmt.Printf("\nApplied %d, already satisfied %d, compliant %d\n",
		applied, skipped, r.CompliantResources)
	return nil
}
