package types

// ResourceKind is the canonical category of a monitored cloud resource.
// Kinds select which retention requirements apply; anything the policy
// does not know about classifies as KindUnsupported and is skipped.
type ResourceKind string

const (
	KindAppService     ResourceKind = "app_service"
	KindFunctionApp    ResourceKind = "function_app"
	KindSQLDatabase    ResourceKind = "sql_database"
	KindStorageAccount ResourceKind = "storage_account"
	KindKeyVault       ResourceKind = "key_vault"
	KindUnsupported    ResourceKind = "unsupported"
)

// ResourceDescriptor identifies one discovered cloud resource.
type ResourceDescriptor struct {
	ID      string `json:"id"`
	RawType string `json:"raw_type"`
	Name    string `json:"name"`
	Hint    string `json:"hint,omitempty"` // platform kind string, e.g. "functionapp"
}

// SettingState is the observed configuration of one log or metric category.
type SettingState struct {
	Enabled       bool `json:"enabled"`
	RetentionDays int  `json:"retention_days"`
}

// DiagnosticSnapshot is the actual diagnostic configuration observed for one
// resource. A nil snapshot means not configured or unreachable; the engine
// deliberately does not distinguish the two.
type DiagnosticSnapshot struct {
	Logs    map[string]SettingState `json:"logs"`
	Metrics map[string]SettingState `json:"metrics"`
}
