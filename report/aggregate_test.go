package report

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagaudit/diagaudit/types"
)

func testMeta() Meta {
	return Meta{
		Timestamp:     time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Environment:   "production",
		PolicyVersion: "1.2",
		Frameworks:    []string{"SOC2", "ISO27001"},
	}
}

func makeResults(compliant, nonCompliant int) []types.ResourceComplianceResult {
	var results []types.ResourceComplianceResult
	for i := 0; i < compliant; i++ {
		results = append(results, types.NewResult(
			types.ResourceDescriptor{ID: fmt.Sprintf("/ok/%d", i), Name: fmt.Sprintf("ok-%d", i)},
			types.KindKeyVault, nil))
	}
	for i := 0; i < nonCompliant; i++ {
		results = append(results, types.NewResult(
			types.ResourceDescriptor{ID: fmt.Sprintf("/bad/%d", i), Name: fmt.Sprintf("bad-%d", i)},
			types.KindKeyVault,
			[]types.ComplianceIssue{{Issue: types.IssueDisabled, Severity: types.SeverityHigh}}))
	}
	return results
}

func TestAggregate_Totals(t *testing.T) {
	r := Aggregate(testMeta(), makeResults(8, 2))

	assert.Equal(t, 10, r.TotalResources)
	assert.Equal(t, 8, r.CompliantResources)
	assert.Equal(t, 2, r.NonCompliantResources)
	assert.Equal(t, 80.0, r.ComplianceRatePercent)
	require.NoError(t, r.Validate())
}

func TestAggregate_TotalInvariantHolds(t *testing.T) {
	cases := [][2]int{{0, 0}, {1, 0}, {0, 1}, {3, 7}, {50, 1}}
	for _, c := range cases {
		r := Aggregate(testMeta(), makeResults(c[0], c[1]))
		assert.Equal(t, r.TotalResources, r.CompliantResources+r.NonCompliantResources)
	}
}

func TestAggregate_EmptyRunHasZeroRate(t *testing.T) {
	r := Aggregate(testMeta(), nil)
	assert.Equal(t, 0, r.TotalResources)
	assert.Equal(t, 0.0, r.ComplianceRatePercent)
	require.NoError(t, r.Validate())
}

func TestAggregate_RateRounding(t *testing.T) {
	// 1/3 compliant → 33.33, not 33.333...
	r := Aggregate(testMeta(), makeResults(1, 2))
	assert.Equal(t, 33.33, r.ComplianceRatePercent)
}

func TestAggregate_PreservesInputOrder(t *testing.T) {
	results := makeResults(1, 1)
	r := Aggregate(testMeta(), results)
	require.Len(t, r.ResourceDetails, 2)
	assert.Equal(t, results[0].Resource.ID, r.ResourceDetails[0].Resource.ID)
	assert.Equal(t, results[1].Resource.ID, r.ResourceDetails[1].Resource.ID)
}

func TestAggregate_SortsFrameworks(t *testing.T) {
	meta := testMeta()
	meta.Frameworks = []string{"SOC2", "ISO27001", "PCI-DSS"}
	r := Aggregate(meta, nil)
	assert.Equal(t, []string{"ISO27001", "PCI-DSS", "SOC2"}, r.ComplianceFrameworks)
}

func TestValidate_CatchesInconsistentReport(t *testing.T) {
	r := Aggregate(testMeta(), makeResults(2, 1))
	r.CompliantResources = 99
	assert.Error(t, r.Validate())
}
