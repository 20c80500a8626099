package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/diagaudit/diagaudit/policy"
)

// errNonCompliant marks a completed run that found non-compliant resources.
// In validate-only mode it maps to exit code 1.
var errNonCompliant = errors.New("non-compliant resources found")

// policyLoadError marks any failure to produce a usable policy, whether the
// file is unreadable, malformed, or invalid. All of them map to exit code 2
// so CI can tell a broken policy apart from non-compliant resources.
type policyLoadError struct {
	err error
}

func (e *policyLoadError) Error() string { return e.err.Error() }
func (e *policyLoadError) Unwrap() error { return e.err }

// loadRetentionPolicy loads a policy document and tags failures for the
// exit code mapping in Execute.
func loadRetentionPolicy(path string, opts ...policy.LoadOption) (*policy.RetentionPolicy, error) {
	pol, err := policy.Load(path, opts...)
	if err != nil {
		return nil, &policyLoadError{err: err}
	}
	return pol, nil
}

var (
	version    = "0.1.0"
	configPath string

	rootCmd = &cobra.Command{
		Use:   "diagaudit",
		Short: "Diagnostic Retention Compliance Auditor",
		Long: `Diagaudit - Diagnostic Retention Compliance Auditor

Diagaudit checks whether your cloud resources' diagnostic settings satisfy
your organization's retention policy: minimum retention days per log and
metric category, mandatory categories per resource kind, and framework
floors. It produces deterministic JSON and HTML reports suitable for
audit archiving, and can plan the target configuration a remediation
step should converge to.`,
		Version: version,
	}
)

// Execute runs the root command and maps error classes to exit codes:
// 0 all compliant, 1 non-compliant findings, 2 policy load failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		var verr *policy.ValidationError
		if errors.As(err, &verr) {
			for _, v := range verr.Violations {
				fmt.Fprintf(os.Stderr, "  - %s\n", v)
			}
		}
		os.Exit(exitCode(err))
	}
}

// exitCode classifies an error from a command run. Any policy load failure
// is exit 2, everything else exit 1.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ple *policyLoadError
	var verr *policy.ValidationError
	if errors.As(err, &ple) || errors.As(err, &verr) {
		return 2
	}
	return 1
}

// init sets up the root command
func init() {
	rootCmd.SetVersionTemplate(`Diagaudit {{.Version}} - Diagnostic Retention Compliance Auditor
`)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "diagaudit.yaml", "Path to run configuration")
}
