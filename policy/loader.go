package policy

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/diagaudit/diagaudit/types"
)

// Hard floors the tiers must meet regardless of what the document says.
const (
	auditFloorDays         = 180
	criticalAuditFloorDays = 365
)

// ValidationError aggregates every violation found in a policy document.
// The full list is reported at once so a bad document gets fixed in one
// round trip, not one violation at a time.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("policy validation failed with %d violation(s): %s",
		len(e.Violations), strings.Join(e.Violations, "; "))
}

// LoadOption customizes policy loading.
type LoadOption func(*loadOptions)

type loadOptions struct {
	mandatoryKinds []types.ResourceKind
}

// WithMandatoryKinds makes loading fail when the document has no
// requirements for any of the given kinds.
func WithMandatoryKinds(kinds ...types.ResourceKind) LoadOption {
	return func(o *loadOptions) {
		o.mandatoryKinds = append(o.mandatoryKinds, kinds...)
	}
}

// Load reads, parses and validates a retention policy document. On
// validation failure the returned error is a *ValidationError carrying
// every violation, not just the first.
func Load(path string, opts ...LoadOption) (*RetentionPolicy, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return Parse(data, opts...)
}

// Parse validates a policy document already in memory.
func Parse(data []byte, opts ...LoadOption) (*RetentionPolicy, error) {
	var options loadOptions
	for _, opt := range opts {
		opt(&options)
	}

	var p RetentionPolicy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}

	if violations := validate(&p, options); len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}

	return &p, nil
}

func validate(p *RetentionPolicy, options loadOptions) []string {
	var violations []string

	violations = append(violations, validateSections(p)...)
	violations = append(violations, validateTiers(p)...)
	violations = append(violations, validateRequirements(p)...)
	violations = append(violations, validateMandatoryKinds(p, options.mandatoryKinds)...)

	return violations
}

func validateSections(p *RetentionPolicy) []string {
	var violations []string
	if p.Version == "" {
		violations = append(violations, "version is required")
	}
	if p.RetentionTiers == (RetentionTiers{}) {
		violations = append(violations, "retention_tiers section is required")
	}
	if len(p.ResourcePolicies) == 0 {
		violations = append(violations, "resource_policies section is required")
	}
	return violations
}

func validateTiers(p *RetentionPolicy) []string {
	var violations []string

	if p.RetentionTiers.Audit < auditFloorDays {
		violations = append(violations, fmt.Sprintf(
			"audit tier floor %d is below the %d day minimum",
			p.RetentionTiers.Audit, auditFloorDays))
	}
	if p.RetentionTiers.CriticalAudit < criticalAuditFloorDays {
		violations = append(violations, fmt.Sprintf(
			"critical audit tier floor %d is below the %d day minimum",
			p.RetentionTiers.CriticalAudit, criticalAuditFloorDays))
	}

	rules := p.ValidationRules
	if rules.MinimumRetentionDays > 0 && p.RetentionTiers.Standard < rules.MinimumRetentionDays {
		violations = append(violations, fmt.Sprintf(
			"standard tier floor %d is below minimum_retention_days %d",
			p.RetentionTiers.Standard, rules.MinimumRetentionDays))
	}
	if rules.AuditLogsMinimumRetention > 0 && p.RetentionTiers.Audit < rules.AuditLogsMinimumRetention {
		violations = append(violations, fmt.Sprintf(
			"audit tier floor %d is below audit_logs_minimum_retention %d",
			p.RetentionTiers.Audit, rules.AuditLogsMinimumRetention))
	}
	if rules.CriticalAuditLogsMinimumRetention > 0 && p.RetentionTiers.CriticalAudit < rules.CriticalAuditLogsMinimumRetention {
		violations = append(violations, fmt.Sprintf(
			"critical audit tier floor %d is below critical_audit_logs_minimum_retention %d",
			p.RetentionTiers.CriticalAudit, rules.CriticalAuditLogsMinimumRetention))
	}

	return violations
}

func validateRequirements(p *RetentionPolicy) []string {
	// Sorted kinds keep the violation list stable across runs.
	kinds := make([]types.ResourceKind, 0, len(p.ResourcePolicies))
	for kind := range p.ResourcePolicies {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	var violations []string
	for _, kind := range kinds {
		reqs := p.ResourcePolicies[kind]
		for _, req := range reqs.Logs {
			violations = append(violations, validateCategory(p, kind, "log", req)...)
		}
		for _, req := range reqs.Metrics {
			violations = append(violations, validateCategory(p, kind, "metric", req)...)
		}
	}
	return violations
}

func validateCategory(p *RetentionPolicy, kind types.ResourceKind, entity string, req CategoryRequirement) []string {
	var violations []string

	if req.Category == "" {
		violations = append(violations, fmt.Sprintf("%s: %s requirement with empty category", kind, entity))
		return violations
	}
	if req.RetentionDays <= 0 {
		violations = append(violations, fmt.Sprintf(
			"%s/%s: retention_days must be positive, got %d", kind, req.Category, req.RetentionDays))
		return violations
	}

	floor := p.RetentionTiers.Floor(req.EffectiveTier())
	if req.RetentionDays < floor {
		violations = append(violations, fmt.Sprintf(
			"%s/%s: retention %d days is below the %s tier floor of %d days",
			kind, req.Category, req.RetentionDays, req.EffectiveTier(), floor))
	}

	return violations
}

func validateMandatoryKinds(p *RetentionPolicy, kinds []types.ResourceKind) []string {
	var violations []string
	for _, kind := range kinds {
		if _, ok := p.ResourcePolicies[kind]; !ok {
			violations = append(violations, fmt.Sprintf("resource_policies is missing mandatory kind %s", kind))
		}
	}
	return violations
}
