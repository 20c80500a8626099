package types

// TargetCategory is one category in a remediation target: always enabled,
// retention pinned to the policy value.
type TargetCategory struct {
	Category      string `json:"category"`
	Enabled       bool   `json:"enabled"`
	RetentionDays int    `json:"retention_days"`
}

// TargetDiagnosticConfig is the complete diagnostic configuration a
// remediation step should converge a resource to. It is computed from policy
// alone; the applier compares it against live state and acts only on the
// delta, so applying it twice is a no-op.
type TargetDiagnosticConfig struct {
	Kind    ResourceKind     `json:"kind"`
	Logs    []TargetCategory `json:"logs"`
	Metrics []TargetCategory `json:"metrics"`
}

// IsEmpty reports whether the target demands nothing, meaning no policy
// applies to the kind.
func (t *TargetDiagnosticConfig) IsEmpty() bool {
	return len(t.Logs) == 0 && len(t.Metrics) == 0
}
