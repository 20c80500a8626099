// Package evaluator compares a resource's diagnostic snapshot against the
// retention requirements for its kind and produces ordered findings.
package evaluator

import (
	"fmt"

	"github.com/diagaudit/diagaudit/policy"
	"github.com/diagaudit/diagaudit/types"
)

type severityKey struct {
	entity types.EntityKind
	issue  types.IssueKind
}

// severityMatrix ranks findings in one inspectable table instead of
// scattered branches. Log failures outrank metric failures of the same kind
// because logs carry the audit trail needed for forensics.
var severityMatrix = map[severityKey]types.Severity{
	{types.EntityLog, types.IssueMissingCategory}:          types.SeverityHigh,
	{types.EntityLog, types.IssueDisabled}:                 types.SeverityHigh,
	{types.EntityLog, types.IssueInsufficientRetention}:    types.SeverityMedium,
	{types.EntityMetric, types.IssueMissingCategory}:       types.SeverityMedium,
	{types.EntityMetric, types.IssueDisabled}:              types.SeverityMedium,
	{types.EntityMetric, types.IssueInsufficientRetention}: types.SeverityLow,
}

// SeverityFor looks up the severity for an entity/issue pair.
func SeverityFor(entity types.EntityKind, issue types.IssueKind) types.Severity {
	return severityMatrix[severityKey{entity, issue}]
}

// Evaluate produces the compliance verdict for one resource. It is pure:
// same inputs, same result, no I/O. A nil snapshot means the resource has no
// diagnostic configuration or it could not be retrieved; both collapse into
// a single high-severity finding, never one finding per required category.
func Evaluate(desc types.ResourceDescriptor, kind types.ResourceKind, snapshot *types.DiagnosticSnapshot, reqs policy.ResourceRequirements) types.ResourceComplianceResult {
	if snapshot == nil {
		issue := types.ComplianceIssue{
			Category: "",
			Issue:    types.IssueMissingCategory,
			Expected: "diagnostic settings configured",
			Actual:   "not configured",
			Severity: types.SeverityHigh,
		}
		return types.NewResult(desc, kind, []types.ComplianceIssue{issue})
	}

	var issues []types.ComplianceIssue
	issues = append(issues, checkCategories(types.EntityLog, reqs.Logs, snapshot.Logs)...)
	issues = append(issues, checkCategories(types.EntityMetric, reqs.Metrics, snapshot.Metrics)...)

	return types.NewResult(desc, kind, issues)
}

// checkCategories walks requirements in policy-declared order, so finding
// order is deterministic and mirrors the policy document.
func checkCategories(entity types.EntityKind, reqs []policy.CategoryRequirement, actual map[string]types.SettingState) []types.ComplianceIssue {
	var issues []types.ComplianceIssue

	for _, req := range reqs {
		state, ok := actual[req.Category]

		switch {
		case !ok:
			issues = append(issues, types.ComplianceIssue{
				Category: req.Category,
				Issue:    types.IssueMissingCategory,
				Expected: fmt.Sprintf("enabled, %d days", req.RetentionDays),
				Actual:   "not configured",
				Severity: SeverityFor(entity, types.IssueMissingCategory),
			})
		case !state.Enabled:
			issues = append(issues, types.ComplianceIssue{
				Category: req.Category,
				Issue:    types.IssueDisabled,
				Expected: "enabled",
				Actual:   "disabled",
				Severity: SeverityFor(entity, types.IssueDisabled),
			})
		case state.RetentionDays < req.RetentionDays:
			issues = append(issues, types.ComplianceIssue{
				Category: req.Category,
				Issue:    types.IssueInsufficientRetention,
				Expected: fmt.Sprintf("%d days", req.RetentionDays),
				Actual:   fmt.Sprintf("%d days", state.RetentionDays),
				Severity: SeverityFor(entity, types.IssueInsufficientRetention),
			})
		}
	}

	return issues
}
