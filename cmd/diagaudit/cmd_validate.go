package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/diagaudit/diagaudit/policy"
	"github.com/diagaudit/diagaudit/types"
)

var (
	validatePolicyPath string
	validateRequire    string
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a retention policy document",
	Long: `Validate a retention policy document without touching any cloud
resources. Every violation is reported at once: missing sections,
tier floors below the framework minimums, and category retention
below the applicable tier floor.`,
	Example: `  diagaudit validate --policy policy.yaml
  diagaudit validate --policy policy.yaml --require key_vault,sql_database`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validatePolicyPath, "policy", "p", "policy.yaml", "Path to the policy document")
	validateCmd.Flags().StringVar(&validateRequire, "require", "", "Comma-separated resource kinds the policy must cover")
}

func runValidate(cmd *cobra.Command, args []string) error {
	var opts []policy.LoadOption
	if validateRequire != "" {
		var kinds []types.ResourceKind
		for _, k := range strings.Split(validateRequire, ",") {
			kinds = append(kinds, types.ResourceKind(strings.TrimSpace(k)))
		}
		opts = append(opts, policy.WithMandatoryKinds(kinds...))
	}

	pol, err := loadRetentionPolicy(validatePolicyPath, opts...)
	if err != nil {
		return err
	}

	fmt.Printf("Policy %s is valid\n", pol.Version)
	fmt.Printf("  Frameworks: %s\n", strings.Join(pol.ComplianceFrameworks, ", "))
	fmt.Printf("  Resource kinds covered: %d\n", len(pol.ResourcePolicies))
	return nil
}
