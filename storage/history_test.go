package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagaudit/diagaudit/report"
	"github.com/diagaudit/diagaudit/types"
)

func testReport(env string, ts time.Time, nonCompliant int) *report.Report {
	var results []types.ResourceComplianceResult
	results = append(results, types.NewResult(
		types.ResourceDescriptor{ID: "/sub/1/ok", Name: "ok"}, types.KindKeyVault, nil))
	for i := 0; i < nonCompliant; i++ {
		results = append(results, types.NewResult(
			types.ResourceDescriptor{ID: "/sub/1/bad", Name: "bad"}, types.KindKeyVault,
			[]types.ComplianceIssue{{Issue: types.IssueDisabled, Severity: types.SeverityHigh}}))
	}
	return report.Aggregate(report.Meta{
		Timestamp:     ts,
		Environment:   env,
		PolicyVersion: "1.0",
	}, results)
}

func TestHistoryStore_SaveAndGet(t *testing.T) {
	store, err := NewHistoryStore(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	runID, err := store.SaveRun(testReport("production", ts, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), runID)

	loaded, err := store.GetRun(runID)
	require.NoError(t, err)
	assert.Equal(t, "production", loaded.Environment)
	assert.Equal(t, 2, loaded.TotalResources)
	assert.Equal(t, 1, loaded.NonCompliantResources)
}

func TestHistoryStore_LastRunByEnvironment(t *testing.T) {
	store, err := NewHistoryStore(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	_, err = store.SaveRun(testReport("production", base, 0))
	require.NoError(t, err)
	_, err = store.SaveRun(testReport("staging", base.Add(time.Hour), 1))
	require.NoError(t, err)
	_, err = store.SaveRun(testReport("production", base.Add(2*time.Hour), 2))
	require.NoError(t, err)

	last, err := store.LastRun("production")
	require.NoError(t, err)
	assert.Equal(t, 2, last.NonCompliantResources)

	last, err = store.LastRun("")
	require.NoError(t, err)
	assert.Equal(t, "production", last.Environment)

	_, err = store.LastRun("dev")
	assert.Error(t, err)
}

func TestHistoryStore_IndexSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewHistoryStore(dir)
	require.NoError(t, err)
	ts := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	_, err = store.SaveRun(testReport("production", ts, 0))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewHistoryStore(dir)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	runs := reopened.ListRuns(10)
	require.Len(t, runs, 1)
	assert.Equal(t, int64(1), runs[0].RunID)

	// Run counter continues, no ID reuse.
	runID, err := reopened.SaveRun(testReport("production", ts.Add(time.Hour), 1))
	require.NoError(t, err)
	assert.Equal(t, int64(2), runID)
}

func TestHistoryStore_ListRunsNewestFirst(t *testing.T) {
	store, err := NewHistoryStore(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err = store.SaveRun(testReport("production", base.Add(time.Duration(i)*time.Hour), i))
		require.NoError(t, err)
	}

	runs := store.ListRuns(3)
	require.Len(t, runs, 3)
	assert.Equal(t, int64(5), runs[0].RunID)
	assert.Equal(t, int64(3), runs[2].RunID)
}

func TestHistoryStore_RefusesInconsistentReport(t *testing.T) {
	store, err := NewHistoryStore(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	bad := testReport("production", time.Now(), 0)
	bad.CompliantResources = 42
	_, err = store.SaveRun(bad)
	assert.Error(t, err)
}
