package azure

import (
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/monitor/armmonitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagaudit/diagaudit/types"
)

func setting(logs []*armmonitor.LogSettings, metrics []*armmonitor.MetricSettings) *armmonitor.DiagnosticSettingsResource {
	return &armmonitor.DiagnosticSettingsResource{
		Properties: &armmonitor.DiagnosticSettings{
			Logs:    logs,
			Metrics: metrics,
		},
	}
}

func logSetting(category string, enabled bool, days int32) *armmonitor.LogSettings {
	return &armmonitor.LogSettings{
		Category: to.Ptr(category),
		Enabled:  to.Ptr(enabled),
		RetentionPolicy: &armmonitor.RetentionPolicy{
			Enabled: to.Ptr(enabled),
			Days:    to.Ptr(days),
		},
	}
}

func TestConvertSettings_SingleSetting(t *testing.T) {
	snapshot := convertSettings([]*armmonitor.DiagnosticSettingsResource{
		setting(
			[]*armmonitor.LogSettings{logSetting("AuditEvent", true, 365)},
			[]*armmonitor.MetricSettings{{
				Category: to.Ptr("AllMetrics"),
				Enabled:  to.Ptr(true),
				RetentionPolicy: &armmonitor.RetentionPolicy{
					Enabled: to.Ptr(true),
					Days:    to.Ptr(int32(90)),
				},
			}},
		),
	})

	require.NotNil(t, snapshot)
	assert.Equal(t, types.SettingState{Enabled: true, RetentionDays: 365}, snapshot.Logs["AuditEvent"])
	assert.Equal(t, types.SettingState{Enabled: true, RetentionDays: 90}, snapshot.Metrics["AllMetrics"])
}

func TestConvertSettings_MergesMultipleSettings(t *testing.T) {
	// Same category across two settings: enabled wins, longest retention wins.
	snapshot := convertSettings([]*armmonitor.DiagnosticSettingsResource{
		setting([]*armmonitor.LogSettings{logSetting("AuditEvent", false, 400)}, nil),
		setting([]*armmonitor.LogSettings{logSetting("AuditEvent", true, 180)}, nil),
	})

	assert.Equal(t, types.SettingState{Enabled: true, RetentionDays: 400}, snapshot.Logs["AuditEvent"])
}

func TestConvertSettings_IgnoresNilEntries(t *testing.T) {
	snapshot := convertSettings([]*armmonitor.DiagnosticSettingsResource{
		nil,
		{Properties: nil},
		setting([]*armmonitor.LogSettings{nil, {Category: nil}}, nil),
	})

	assert.Empty(t, snapshot.Logs)
	assert.Empty(t, snapshot.Metrics)
}

func TestConvertSettings_MissingRetentionPolicyMeansZeroDays(t *testing.T) {
	snapshot := convertSettings([]*armmonitor.DiagnosticSettingsResource{
		setting([]*armmonitor.LogSettings{{
			Category: to.Ptr("AuditEvent"),
			Enabled:  to.Ptr(true),
		}}, nil),
	})

	assert.Equal(t, types.SettingState{Enabled: true, RetentionDays: 0}, snapshot.Logs["AuditEvent"])
}

func TestBuildSettingsResource(t *testing.T) {
	target := types.TargetDiagnosticConfig{
		Kind: types.KindKeyVault,
		Logs: []types.TargetCategory{
			{Category: "AuditEvent", Enabled: true, RetentionDays: 365},
		},
		Metrics: []types.TargetCategory{
			{Category: "AllMetrics", Enabled: true, RetentionDays: 90},
		},
	}

	resource := buildSettingsResource(target, "/workspaces/la-prod")

	require.NotNil(t, resource.Properties)
	assert.Equal(t, "/workspaces/la-prod", *resource.Properties.WorkspaceID)
	require.Len(t, resource.Properties.Logs, 1)
	assert.Equal(t, "AuditEvent", *resource.Properties.Logs[0].Category)
	assert.True(t, *resource.Properties.Logs[0].Enabled)
	assert.Equal(t, int32(365), *resource.Properties.Logs[0].RetentionPolicy.Days)
	require.Len(t, resource.Properties.Metrics, 1)
	assert.Equal(t, int32(90), *resource.Properties.Metrics[0].RetentionPolicy.Days)
}

func TestNewProvider_RequiresSubscription(t *testing.T) {
	_, err := NewProvider(t.Context(), Config{})
	assert.Error(t, err)
}
