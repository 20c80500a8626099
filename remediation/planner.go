// Package remediation computes the target diagnostic configuration a
// non-compliant resource should converge to.
package remediation

import (
	"github.com/diagaudit/diagaudit/policy"
	"github.com/diagaudit/diagaudit/types"
)

// Plan computes the complete target state for a resource kind: every
// required category enabled with the policy retention, independent of the
// resource's current state. The planner never inspects live state;
// the applier compares current against target and acts only on the delta,
// so applying a plan to an already conformant resource is a no-op.
func Plan(kind types.ResourceKind, reqs policy.ResourceRequirements) types.TargetDiagnosticConfig {
	return types.TargetDiagnosticConfig{
		Kind:    kind,
		Logs:    targetCategories(reqs.Logs),
		Metrics: targetCategories(reqs.Metrics),
	}
}

func targetCategories(reqs []policy.CategoryRequirement) []types.TargetCategory {
	if len(reqs) == 0 {
		return nil
	}
	targets := make([]types.TargetCategory, 0, len(reqs))
	for _, req := range reqs {
		targets = append(targets, types.TargetCategory{
			Category:      req.Category,
			Enabled:       true,
			RetentionDays: req.RetentionDays,
		})
	}
	return targets
}

// Satisfies reports whether an observed snapshot already meets a target:
// every target category present, enabled, and at or above the target
// retention. Appliers use this for the no-op check.
func Satisfies(target types.TargetDiagnosticConfig, snapshot *types.DiagnosticSnapshot) bool {
	if target.IsEmpty() {
		return true
	}
	if snapshot == nil {
		return false
	}
	return categoriesSatisfied(target.Logs, snapshot.Logs) &&
		categoriesSatisfied(target.Metrics, snapshot.Metrics)
}

func categoriesSatisfied(targets []types.TargetCategory, actual map[string]types.SettingState) bool {
	for _, tc := range targets {
		state, ok := actual[tc.Category]
		if !ok || !state.Enabled || state.RetentionDays < tc.RetentionDays {
			return false
		}
	}
	return true
}
