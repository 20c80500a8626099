// Package classifier maps raw platform resource types to the canonical
// kinds the retention policy knows about.
package classifier

import (
	"strings"

	"github.com/diagaudit/diagaudit/types"
)

// kindByType is the static mapping from ARM type strings to resource kinds.
// Keys are lowercase; lookups normalize case first.
var kindByType = map[string]types.ResourceKind{
	"microsoft.web/sites":               types.KindAppService,
	"microsoft.sql/servers/databases":   types.KindSQLDatabase,
	"microsoft.storage/storageaccounts": types.KindStorageAccount,
	"microsoft.keyvault/vaults":         types.KindKeyVault,
}

// Classify resolves a raw ARM type string to a resource kind. The hint is
// the platform "kind" property, which is the only way to tell a function app
// apart from a plain app service (both are Microsoft.Web/sites). Unknown
// types classify as KindUnsupported; they are out of policy scope, not
// failures.
func Classify(rawType, hint string) types.ResourceKind {
	kind, ok := kindByType[strings.ToLower(rawType)]
	if !ok {
		return types.KindUnsupported
	}

	if kind == types.KindAppService && strings.Contains(strings.ToLower(hint), "functionapp") {
		return types.KindFunctionApp
	}

	return kind
}

// IsSupported reports whether a kind participates in evaluation.
func IsSupported(kind types.ResourceKind) bool {
	return kind != types.KindUnsupported
}
