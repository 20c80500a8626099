package policy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagaudit/diagaudit/types"
)

const validPolicyDoc = `
version: "1.2"
compliance_frameworks: [SOC2, ISO27001]
retention_tiers:
  standard: 90
  audit: 180
  critical_audit: 365
validation_rules:
  minimum_retention_days: 90
  audit_logs_minimum_retention: 180
  critical_audit_logs_minimum_retention: 365
  all_resources_must_have_diagnostics: true
resource_policies:
  key_vault:
    logs:
      - category: AuditEvent
        enabled: true
        retention_days: 365
        tier: critical_audit
    metrics:
      - category: AllMetrics
        enabled: true
        retention_days: 90
  app_service:
    logs:
      - category: AppServiceHTTPLogs
        enabled: true
        retention_days: 90
      - category: AppServiceAuditLogs
        enabled: true
        retention_days: 180
`

func TestParse_ValidDocument(t *testing.T) {
	p, err := Parse([]byte(validPolicyDoc))
	require.NoError(t, err)

	assert.Equal(t, "1.2", p.Version)
	assert.Equal(t, []string{"SOC2", "ISO27001"}, p.ComplianceFrameworks)
	assert.Equal(t, 365, p.RetentionTiers.CriticalAudit)

	reqs := p.RequirementsFor(types.KindKeyVault)
	require.Len(t, reqs.Logs, 1)
	assert.Equal(t, "AuditEvent", reqs.Logs[0].Category)
	assert.Equal(t, TierCriticalAudit, reqs.Logs[0].EffectiveTier())
}

func TestParse_AggregatesAllViolations(t *testing.T) {
	doc := `
retention_tiers:
  standard: 30
  audit: 90
  critical_audit: 180
validation_rules:
  minimum_retention_days: 90
resource_policies:
  key_vault:
    logs:
      - category: AuditEvent
        enabled: true
        retention_days: 30
`
	_, err := Parse([]byte(doc))
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "error should be a *ValidationError")

	// Missing version, audit floor < 180, critical audit floor < 365,
	// standard floor below minimum_retention_days, AuditEvent below its
	// audit tier floor. All five must be reported together.
	assert.Len(t, verr.Violations, 5)
	assert.Contains(t, verr.Error(), "5 violation(s)")
}

func TestParse_MandatoryKinds(t *testing.T) {
	_, err := Parse([]byte(validPolicyDoc),
		WithMandatoryKinds(types.KindKeyVault, types.KindSQLDatabase))
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Violations, 1)
	assert.Contains(t, verr.Violations[0], "sql_database")
}

func TestRequirementsFor_UnknownKindIsEmpty(t *testing.T) {
	p, err := Parse([]byte(validPolicyDoc))
	require.NoError(t, err)

	reqs := p.RequirementsFor(types.KindStorageAccount)
	assert.True(t, reqs.IsEmpty())
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validPolicyDoc), 0644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "1.2", p.Version)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestEffectiveTier_AuditNameHeuristic(t *testing.T) {
	tests := []struct {
		name string
		req  CategoryRequirement
		want Tier
	}{
		{"explicit tier wins", CategoryRequirement{Category: "AuditEvent", Tier: TierCriticalAudit}, TierCriticalAudit},
		{"audit substring", CategoryRequirement{Category: "AppServiceAuditLogs"}, TierAudit},
		{"plain category", CategoryRequirement{Category: "AppServiceHTTPLogs"}, TierStandard},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.req.EffectiveTier())
		})
	}
}
