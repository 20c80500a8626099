package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagaudit/diagaudit/policy"
	"github.com/diagaudit/diagaudit/types"
)

var testVault = types.ResourceDescriptor{
	ID:      "/subscriptions/s1/resourceGroups/rg/providers/Microsoft.KeyVault/vaults/kv-prod",
	RawType: "Microsoft.KeyVault/vaults",
	Name:    "kv-prod",
}

func auditLogReqs() policy.ResourceRequirements {
	return policy.ResourceRequirements{
		Logs: []policy.CategoryRequirement{
			{Category: "AuditLogs", Enabled: true, RetentionDays: 180},
		},
	}
}

func TestEvaluate_FullyCompliant(t *testing.T) {
	snapshot := &types.DiagnosticSnapshot{
		Logs: map[string]types.SettingState{
			"AuditLogs": {Enabled: true, RetentionDays: 365},
		},
	}

	result := Evaluate(testVault, types.KindKeyVault, snapshot, auditLogReqs())

	assert.Empty(t, result.Issues)
	assert.Equal(t, types.StatusCompliant, result.Status)
}

func TestEvaluate_DisabledCategory(t *testing.T) {
	snapshot := &types.DiagnosticSnapshot{
		Logs: map[string]types.SettingState{
			"AuditLogs": {Enabled: false, RetentionDays: 180},
		},
	}

	result := Evaluate(testVault, types.KindKeyVault, snapshot, auditLogReqs())

	require.Len(t, result.Issues, 1)
	issue := result.Issues[0]
	assert.Equal(t, "AuditLogs", issue.Category)
	assert.Equal(t, types.IssueDisabled, issue.Issue)
	assert.Equal(t, types.SeverityHigh, issue.Severity)
	assert.Equal(t, types.StatusNonCompliant, result.Status)
}

func TestEvaluate_InsufficientRetention(t *testing.T) {
	reqs := policy.ResourceRequirements{
		Logs: []policy.CategoryRequirement{
			{Category: "StorageDelete", Enabled: true, RetentionDays: 180},
		},
	}
	snapshot := &types.DiagnosticSnapshot{
		Logs: map[string]types.SettingState{
			"StorageDelete": {Enabled: true, RetentionDays: 90},
		},
	}

	result := Evaluate(testVault, types.KindStorageAccount, snapshot, reqs)

	require.Len(t, result.Issues, 1)
	issue := result.Issues[0]
	assert.Equal(t, types.IssueInsufficientRetention, issue.Issue)
	assert.Equal(t, types.SeverityMedium, issue.Severity)
	assert.Equal(t, "180 days", issue.Expected)
	assert.Equal(t, "90 days", issue.Actual)
}

func TestEvaluate_AbsentSnapshotCollapsesToOneIssue(t *testing.T) {
	// Two required log categories, but no snapshot at all: exactly one
	// finding, not one per category.
	reqs := policy.ResourceRequirements{
		Logs: []policy.CategoryRequirement{
			{Category: "AuditEvent", Enabled: true, RetentionDays: 365},
			{Category: "AzurePolicyEvaluationDetails", Enabled: true, RetentionDays: 180},
		},
	}

	result := Evaluate(testVault, types.KindKeyVault, nil, reqs)

	require.Len(t, result.Issues, 1)
	issue := result.Issues[0]
	assert.Equal(t, "", issue.Category)
	assert.Equal(t, types.IssueMissingCategory, issue.Issue)
	assert.Equal(t, types.SeverityHigh, issue.Severity)
	assert.Equal(t, "diagnostic settings configured", issue.Expected)
	assert.Equal(t, "not configured", issue.Actual)
	assert.Equal(t, types.StatusNonCompliant, result.Status)
}

func TestEvaluate_MissingLogCategory(t *testing.T) {
	snapshot := &types.DiagnosticSnapshot{
		Logs: map[string]types.SettingState{},
	}

	result := Evaluate(testVault, types.KindKeyVault, snapshot, auditLogReqs())

	require.Len(t, result.Issues, 1)
	issue := result.Issues[0]
	assert.Equal(t, types.IssueMissingCategory, issue.Issue)
	assert.Equal(t, types.SeverityHigh, issue.Severity)
	assert.Equal(t, "enabled, 180 days", issue.Expected)
}

func TestEvaluate_MetricSeverityOneStepLower(t *testing.T) {
	reqs := policy.ResourceRequirements{
		Metrics: []policy.CategoryRequirement{
			{Category: "AllMetrics", Enabled: true, RetentionDays: 90},
		},
	}

	tests := []struct {
		name      string
		snapshot  *types.DiagnosticSnapshot
		wantIssue types.IssueKind
		wantSev   types.Severity
	}{
		{
			name:      "missing metric is medium",
			snapshot:  &types.DiagnosticSnapshot{Metrics: map[string]types.SettingState{}},
			wantIssue: types.IssueMissingCategory,
			wantSev:   types.SeverityMedium,
		},
		{
			name: "disabled metric is medium",
			snapshot: &types.DiagnosticSnapshot{Metrics: map[string]types.SettingState{
				"AllMetrics": {Enabled: false, RetentionDays: 90},
			}},
			wantIssue: types.IssueDisabled,
			wantSev:   types.SeverityMedium,
		},
		{
			name: "short metric retention is low",
			snapshot: &types.DiagnosticSnapshot{Metrics: map[string]types.SettingState{
				"AllMetrics": {Enabled: true, RetentionDays: 30},
			}},
			wantIssue: types.IssueInsufficientRetention,
			wantSev:   types.SeverityLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Evaluate(testVault, types.KindAppService, tt.snapshot, reqs)
			require.Len(t, result.Issues, 1)
			assert.Equal(t, tt.wantIssue, result.Issues[0].Issue)
			assert.Equal(t, tt.wantSev, result.Issues[0].Severity)
		})
	}
}

func TestEvaluate_FindingOrderFollowsPolicy(t *testing.T) {
	reqs := policy.ResourceRequirements{
		Logs: []policy.CategoryRequirement{
			{Category: "B-Logs", Enabled: true, RetentionDays: 90},
			{Category: "A-Logs", Enabled: true, RetentionDays: 90},
		},
		Metrics: []policy.CategoryRequirement{
			{Category: "AllMetrics", Enabled: true, RetentionDays: 90},
		},
	}
	snapshot := &types.DiagnosticSnapshot{
		Logs:    map[string]types.SettingState{},
		Metrics: map[string]types.SettingState{},
	}

	result := Evaluate(testVault, types.KindAppService, snapshot, reqs)

	require.Len(t, result.Issues, 3)
	// Policy declaration order, logs before metrics. Not alphabetical.
	assert.Equal(t, "B-Logs", result.Issues[0].Category)
	assert.Equal(t, "A-Logs", result.Issues[1].Category)
	assert.Equal(t, "AllMetrics", result.Issues[2].Category)
}

func TestEvaluate_EmptyRequirements(t *testing.T) {
	snapshot := &types.DiagnosticSnapshot{}
	result := Evaluate(testVault, types.KindKeyVault, snapshot, policy.ResourceRequirements{})
	assert.Equal(t, types.StatusCompliant, result.Status)
}

func TestSeverityMatrix(t *testing.T) {
	assert.Equal(t, types.SeverityHigh, SeverityFor(types.EntityLog, types.IssueMissingCategory))
	assert.Equal(t, types.SeverityHigh, SeverityFor(types.EntityLog, types.IssueDisabled))
	assert.Equal(t, types.SeverityMedium, SeverityFor(types.EntityLog, types.IssueInsufficientRetention))
	assert.Equal(t, types.SeverityMedium, SeverityFor(types.EntityMetric, types.IssueMissingCategory))
	assert.Equal(t, types.SeverityMedium, SeverityFor(types.EntityMetric, types.IssueDisabled))
	assert.Equal(t, types.SeverityLow, SeverityFor(types.EntityMetric, types.IssueInsufficientRetention))
}
