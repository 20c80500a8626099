package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/monitor/armmonitor"

	"github.com/diagaudit/diagaudit/remediation"
	"github.com/diagaudit/diagaudit/types"
)

// settingName is the diagnostic setting this tool owns on each resource.
const settingName = "diagaudit-retention"

// ApplyOutcome reports what the applier did.
type ApplyOutcome string

const (
	OutcomeNoop    ApplyOutcome = "noop"    // live state already satisfies the target
	OutcomeApplied ApplyOutcome = "applied" // diagnostic setting created or updated
)

// Apply converges a resource's diagnostic settings to the planned target.
// The live state is compared first: a resource already at or above the
// target is left untouched and reports a no-op, so repeated applies of the
// same plan are safe.
func (p *Provider) Apply(ctx context.Context, resourceID string, target types.TargetDiagnosticConfig, workspaceID string) (ApplyOutcome, error) {
	if target.IsEmpty() {
		return OutcomeNoop, nil
	}
	if workspaceID == "" {
		return "", fmt.Errorf("workspace ID is required to apply diagnostic settings")
	}

	snapshot, err := p.GetSnapshot(ctx, resourceID)
	if err != nil {
		return "", fmt.Errorf("read current state of %s: %w", resourceID, err)
	}

	if remediation.Satisfies(target, snapshot) {
		p.logger.WithContext(ctx).Debug().
			Str("resource_id", resourceID).
			Msg("diagnostic settings already satisfy target, skipping")
		return OutcomeNoop, nil
	}

	resource := buildSettingsResource(target, workspaceID)
	if _, err := p.diagnostics.CreateOrUpdate(ctx, resourceID, settingName, resource, nil); err != nil {
		return "", fmt.Errorf("apply diagnostic settings to %s: %w", resourceID, err)
	}

	p.logger.WithContext(ctx).Info().
		Str("resource_id", resourceID).
		Int("log_categories", len(target.Logs)).
		Int("metric_categories", len(target.Metrics)).
		Msg("diagnostic settings applied")

	return OutcomeApplied, nil
}

func buildSettingsResource(target types.TargetDiagnosticConfig, workspaceID string) armmonitor.DiagnosticSettingsResource {
	props := &armmonitor.DiagnosticSettings{
		WorkspaceID: to.Ptr(workspaceID),
	}

	for _, tc := range target.Logs {
		props.Logs = append(props.Logs, &armmonitor.LogSettings{
			Category: to.Ptr(tc.Category),
			Enabled:  to.Ptr(tc.Enabled),
			RetentionPolicy: &armmonitor.RetentionPolicy{
				Enabled: to.Ptr(true),
				Days:    to.Ptr(int32(tc.RetentionDays)),
			},
		})
	}
	for _, tc := range target.Metrics {
		props.Metrics = append(props.Metrics, &armmonitor.MetricSettings{
			Category: to.Ptr(tc.Category),
			Enabled:  to.Ptr(tc.Enabled),
			RetentionPolicy: &armmonitor.RetentionPolicy{
				Enabled: to.Ptr(true),
				Days:    to.Ptr(int32(tc.RetentionDays)),
			},
		})
	}

	return armmonitor.DiagnosticSettingsResource{Properties: props}
}
