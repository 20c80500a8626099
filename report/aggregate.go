// Package report folds per-resource results into a run-level report and
// renders it for machines and auditors.
package report

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/diagaudit/diagaudit/types"
)

// Report is the immutable outcome of one audit run.
type Report struct {
	Timestamp             time.Time                        `json:"timestamp"`
	Environment           string                           `json:"environment"`
	PolicyVersion         string                           `json:"policy_version"`
	ComplianceFrameworks  []string                         `json:"compliance_frameworks"`
	TotalResources        int                              `json:"total_resources"`
	CompliantResources    int                              `json:"compliant_resources"`
	NonCompliantResources int                              `json:"non_compliant_resources"`
	ComplianceRatePercent float64                          `json:"compliance_rate_percent"`
	ResourceDetails       []types.ResourceComplianceResult `json:"resource_details"`
}

// Meta carries run identity into aggregation.
type Meta struct {
	Timestamp     time.Time
	Environment   string
	PolicyVersion string
	Frameworks    []string
}

// Aggregate folds per-resource results into run totals. Input order is
// preserved in ResourceDetails; callers normalize presentation order before
// rendering. Frameworks are sorted so the report value is independent of
// policy map iteration.
func Aggregate(meta Meta, results []types.ResourceComplianceResult) *Report {
	compliant := 0
	for _, r := range results {
		if r.IsCompliant() {
			compliant++
		}
	}

	total := len(results)
	rate := 0.0
	if total > 0 {
		rate = math.Round(float64(compliant)/float64(total)*100*100) / 100
	}

	frameworks := append([]string(nil), meta.Frameworks...)
	sort.Strings(frameworks)

	return &Report{
		Timestamp:             meta.Timestamp,
		Environment:           meta.Environment,
		PolicyVersion:         meta.PolicyVersion,
		ComplianceFrameworks:  frameworks,
		TotalResources:        total,
		CompliantResources:    compliant,
		NonCompliantResources: total - compliant,
		ComplianceRatePercent: rate,
		ResourceDetails:       results,
	}
}

// Validate checks the report's internal invariants. A failure here is a
// programming defect, not a user condition; renderers refuse to serialize
// an inconsistent report.
func (r *Report) Validate() error {
	if r.CompliantResources+r.NonCompliantResources != r.TotalResources {
		return fmt.Errorf("inconsistent report: %d compliant + %d non-compliant != %d total",
			r.CompliantResources, r.NonCompliantResources, r.TotalResources)
	}
	for i := range r.ResourceDetails {
		detail := &r.ResourceDetails[i]
		if detail.IsCompliant() != (len(detail.Issues) == 0) {
			return fmt.Errorf("inconsistent result for %s: status %s with %d issues",
				detail.Resource.ID, detail.Status, len(detail.Issues))
		}
	}
	return nil
}
