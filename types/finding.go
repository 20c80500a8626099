package types

// IssueKind is the closed set of compliance finding types.
type IssueKind string

const (
	IssueMissingCategory       IssueKind = "missing_category"
	IssueDisabled              IssueKind = "disabled"
	IssueInsufficientRetention IssueKind = "insufficient_retention"
)

// Severity ranks a finding. Log failures outrank metric failures of the
// same kind: logs carry the audit trail, metrics are operational telemetry.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// EntityKind distinguishes log requirements from metric requirements when
// looking up severity.
type EntityKind string

const (
	EntityLog    EntityKind = "log"
	EntityMetric EntityKind = "metric"
)

// ComplianceStatus is the per-resource verdict.
type ComplianceStatus string

const (
	StatusCompliant    ComplianceStatus = "compliant"
	StatusNonCompliant ComplianceStatus = "non_compliant"
)

// ComplianceIssue is one itemized finding against a resource.
type ComplianceIssue struct {
	Category string    `json:"category"`
	Issue    IssueKind `json:"issue"`
	Expected string    `json:"expected"`
	Actual   string    `json:"actual"`
	Severity Severity  `json:"severity"`
}

// ResourceComplianceResult is the evaluator's verdict for one resource.
// Status is compliant exactly when Issues is empty.
type ResourceComplianceResult struct {
	Resource ResourceDescriptor `json:"resource"`
	Kind     ResourceKind       `json:"kind"`
	Status   ComplianceStatus   `json:"status"`
	Issues   []ComplianceIssue  `json:"issues"`
}

// NewResult builds a result with the status derived from the issue list,
// so the status/issues invariant cannot drift.
func NewResult(resource ResourceDescriptor, kind ResourceKind, issues []ComplianceIssue) ResourceComplianceResult {
	status := StatusCompliant
	if len(issues) > 0 {
		status = StatusNonCompliant
	}
	return ResourceComplianceResult{
		Resource: resource,
		Kind:     kind,
		Status:   status,
		Issues:   issues,
	}
}

// IsCompliant reports whether the resource passed every check.
func (r *ResourceComplianceResult) IsCompliant() bool {
	return r.Status == StatusCompliant
}
