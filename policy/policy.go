// Package policy loads and serves the retention policy for an audit run.
package policy

import (
	"strings"

	"github.com/diagaudit/diagaudit/types"
)

// Tier is a policy-level retention floor class.
type Tier string

const (
	TierStandard      Tier = "standard"
	TierAudit         Tier = "audit"
	TierCriticalAudit Tier = "critical_audit"
)

// RetentionTiers holds the global minimum retention per tier.
type RetentionTiers struct {
	Standard      int `yaml:"standard" json:"standard"`
	Audit         int `yaml:"audit" json:"audit"`
	CriticalAudit int `yaml:"critical_audit" json:"critical_audit"`
}

// Floor returns the minimum retention days for a tier.
func (t RetentionTiers) Floor(tier Tier) int {
	switch tier {
	case TierAudit:
		return t.Audit
	case TierCriticalAudit:
		return t.CriticalAudit
	default:
		return t.Standard
	}
}

// ValidationRules are the load-time floors the document must satisfy.
type ValidationRules struct {
	MinimumRetentionDays              int  `yaml:"minimum_retention_days" json:"minimum_retention_days"`
	AuditLogsMinimumRetention         int  `yaml:"audit_logs_minimum_retention" json:"audit_logs_minimum_retention"`
	CriticalAuditLogsMinimumRetention int  `yaml:"critical_audit_logs_minimum_retention" json:"critical_audit_logs_minimum_retention"`
	AllResourcesMustHaveDiagnostics   bool `yaml:"all_resources_must_have_diagnostics" json:"all_resources_must_have_diagnostics"`
}

// CategoryRequirement is one required log or metric category for a kind.
type CategoryRequirement struct {
	Category      string `yaml:"category" json:"category"`
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	RetentionDays int    `yaml:"retention_days" json:"retention_days"`
	Tier          Tier   `yaml:"tier,omitempty" json:"tier,omitempty"`
}

// EffectiveTier resolves the tier a requirement is held to. Explicit tiers
// win; otherwise categories named like audit logs default to the audit tier.
func (c CategoryRequirement) EffectiveTier() Tier {
	if c.Tier != "" {
		return c.Tier
	}
	if strings.Contains(strings.ToLower(c.Category), "audit") {
		return TierAudit
	}
	return TierStandard
}

// ResourceRequirements lists the categories a resource kind must configure.
// Declaration order is preserved; it drives finding order in evaluation.
type ResourceRequirements struct {
	Logs    []CategoryRequirement `yaml:"logs" json:"logs"`
	Metrics []CategoryRequirement `yaml:"metrics" json:"metrics"`
}

// IsEmpty reports whether no requirements apply.
func (r ResourceRequirements) IsEmpty() bool {
	return len(r.Logs) == 0 && len(r.Metrics) == 0
}

// RetentionPolicy is the immutable policy document for a run.
type RetentionPolicy struct {
	Version              string                                      `yaml:"version" json:"version"`
	ComplianceFrameworks []string                                    `yaml:"compliance_frameworks" json:"compliance_frameworks"`
	RetentionTiers       RetentionTiers                              `yaml:"retention_tiers" json:"retention_tiers"`
	ValidationRules      ValidationRules                             `yaml:"validation_rules" json:"validation_rules"`
	ResourcePolicies     map[types.ResourceKind]ResourceRequirements `yaml:"resource_policies" json:"resource_policies"`
}

// RequirementsFor returns the requirements for a kind. Kinds absent from the
// policy get an empty set, not an error; callers treat that as "no policy
// applies, skip".
func (p *RetentionPolicy) RequirementsFor(kind types.ResourceKind) ResourceRequirements {
	return p.ResourcePolicies[kind]
}
