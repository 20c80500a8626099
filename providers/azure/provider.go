// Package azure implements the discovery and remediation collaborators
// against the Azure Resource Manager APIs. The evaluation engine never
// talks to these clients directly; it consumes their output as plain
// domain types.
package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/monitor/armmonitor"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"

	"github.com/diagaudit/diagaudit/telemetry"
	"github.com/diagaudit/diagaudit/types"
)

// Config holds Azure provider settings.
type Config struct {
	SubscriptionID string
}

// Provider lists resources and fetches their diagnostic settings.
type Provider struct {
	resources   *armresources.Client
	diagnostics *armmonitor.DiagnosticSettingsClient
	logger      *telemetry.Logger
}

// NewProvider creates a provider using the default credential chain.
func NewProvider(_ context.Context, cfg Config) (*Provider, error) {
	if cfg.SubscriptionID == "" {
		return nil, fmt.Errorf("subscription ID is required")
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("create credential: %w", err)
	}

	return NewProviderWithCredential(cfg, cred)
}

// NewProviderWithCredential creates a provider with an explicit credential.
func NewProviderWithCredential(cfg Config, cred azcore.TokenCredential) (*Provider, error) {
	resourcesClient, err := armresources.NewClient(cfg.SubscriptionID, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create resources client: %w", err)
	}

	diagnosticsClient, err := armmonitor.NewDiagnosticSettingsClient(cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create diagnostic settings client: %w", err)
	}

	return &Provider{
		resources:   resourcesClient,
		diagnostics: diagnosticsClient,
		logger:      telemetry.NewLogger("azure-provider"),
	}, nil
}

// ListResources enumerates every resource in the subscription as plain
// descriptors. Classification happens downstream; the provider does not
// filter by type.
func (p *Provider) ListResources(ctx context.Context) ([]types.ResourceDescriptor, error) {
	var descriptors []types.ResourceDescriptor

	pager := p.resources.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list resources: %w", err)
		}
		for _, res := range page.Value {
			descriptors = append(descriptors, types.ResourceDescriptor{
				ID:      deref(res.ID),
				RawType: deref(res.Type),
				Name:    deref(res.Name),
				Hint:    deref(res.Kind),
			})
		}
	}

	p.logger.WithContext(ctx).Info().
		Int("count", len(descriptors)).
		Msg("listed subscription resources")

	return descriptors, nil
}

// GetSnapshot fetches the diagnostic settings for one resource. A resource
// with no settings at all returns (nil, nil); the engine treats nil as
// "not configured".
func (p *Provider) GetSnapshot(ctx context.Context, resourceID string) (*types.DiagnosticSnapshot, error) {
	var settings []*armmonitor.DiagnosticSettingsResource

	pager := p.diagnostics.NewListPager(resourceID, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list diagnostic settings for %s: %w", resourceID, err)
		}
		settings = append(settings, page.Value...)
	}

	if len(settings) == 0 {
		return nil, nil
	}

	return convertSettings(settings), nil
}

// convertSettings merges every diagnostic setting on a resource into one
// snapshot. When a category appears in multiple settings the strongest
// observation wins: enabled beats disabled, longer retention beats shorter.
func convertSettings(settings []*armmonitor.DiagnosticSettingsResource) *types.DiagnosticSnapshot {
	snapshot := &types.DiagnosticSnapshot{
		Logs:    make(map[string]types.SettingState),
		Metrics: make(map[string]types.SettingState),
	}

	for _, setting := range settings {
		if setting == nil || setting.Properties == nil {
			continue
		}
		for _, log := range setting.Properties.Logs {
			if log == nil || log.Category == nil {
				continue
			}
			mergeState(snapshot.Logs, *log.Category, settingState(log.Enabled, log.RetentionPolicy))
		}
		for _, metric := range setting.Properties.Metrics {
			if metric == nil || metric.Category == nil {
				continue
			}
			mergeState(snapshot.Metrics, *metric.Category, settingState(metric.Enabled, metric.RetentionPolicy))
		}
	}

	return snapshot
}

func settingState(enabled *bool, retention *armmonitor.RetentionPolicy) types.SettingState {
	state := types.SettingState{}
	if enabled != nil {
		state.Enabled = *enabled
	}
	if retention != nil && retention.Days != nil {
		state.RetentionDays = int(*retention.Days)
	}
	return state
}

func mergeState(into map[string]types.SettingState, category string, state types.SettingState) {
	existing, ok := into[category]
	if !ok {
		into[category] = state
		return
	}
	if state.Enabled && !existing.Enabled {
		existing.Enabled = true
	}
	if state.RetentionDays > existing.RetentionDays {
		existing.RetentionDays = state.RetentionDays
	}
	into[category] = existing
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
