package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/diagaudit/diagaudit/remediation"
	"github.com/diagaudit/diagaudit/types"
)

var (
	planPolicyPath string
	planKind       string
)

// planCmd represents the plan command
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the remediation target for a resource kind",
	Long: `Print the target diagnostic configuration the policy implies for a
resource kind: every required category enabled at the policy retention.

The plan is computed from policy alone. An applier compares it against
live state and acts only on the delta, so applying the same plan twice
is a no-op.`,
	Example: `  diagaudit plan --policy policy.yaml --kind key_vault
  diagaudit plan --policy policy.yaml        # Plans for every covered kind`,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().StringVarP(&planPolicyPath, "policy", "p", "policy.yaml", "Path to the policy document")
	planCmd.Flags().StringVarP(&planKind, "kind", "k", "", "Resource kind to plan for (default: all covered kinds)")
}

func runPlan(cmd *cobra.Command, args []string) error {
	pol, err := loadRetentionPolicy(planPolicyPath)
	if err != nil {
		return err
	}

	var kinds []types.ResourceKind
	if planKind != "" {
		kinds = []types.ResourceKind{types.ResourceKind(planKind)}
	} else {
		for kind := range pol.ResourcePolicies {
			kinds = append(kinds, kind)
		}
		sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	}

	var plans []types.TargetDiagnosticConfig
	for _, kind := range kinds {
		reqs := pol.RequirementsFor(kind)
		if reqs.IsEmpty() {
			return fmt.Errorf("policy has no requirements for kind %q", kind)
		}
		plans = append(plans, remediation.Plan(kind, reqs))
	}

	out, err := json.MarshalIndent(plans, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal plans: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
