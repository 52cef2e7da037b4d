package indicatorpipe_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nulllvoid/indicatorpipe"
)

func TestNewReport(t *testing.T) {
	t.Parallel()

	state := indicatorpipe.NewState(testQuery())
	state.SetTable(indicatorpipe.NewIndicatorTable(lifeExpectancy, 2019, []indicatorpipe.IndicatorRecord{
		{Key: "PRT", Value: 81.1, Valid: true, Status: indicatorpipe.StatusOK},
		{Key: "DEU", Status: indicatorpipe.StatusFailed},
	}))
	state.SetPrimary(datasetOf("1", "2", "3"))
	state.SetMerged(&indicatorpipe.MergedDataset{
		Rows:  make([]indicatorpipe.MergedRow, 3),
		Stats: indicatorpipe.MergeStats{Rows: 3, Matched: 1, Absent: 1, OutOfRange: 1, UnmatchedIDs: []int{3}},
	})
	state.SetOutput("merged.csv")
	state.AddWarning(errors.New("fetch DEU failed"))

	started := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	report := indicatorpipe.NewReport("run-1", "life_expectancy", state, started, 1500*time.Millisecond)

	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, keys("PRT", "DEU"), report.Keys)
	assert.Equal(t, 1, report.Present)
	assert.Equal(t, keys("DEU"), report.FailedKeys)
	assert.Empty(t, report.NoDataKeys)
	assert.Equal(t, 3, report.PrimaryRows)
	assert.Equal(t, 3, report.MergedRows)
	require.NotNil(t, report.Merge)
	assert.Equal(t, []int{3}, report.Merge.UnmatchedIDs)
	assert.Equal(t, []string{"fetch DEU failed"}, report.Warnings)
	assert.Equal(t, 1.5, report.Duration)

	var buf bytes.Buffer
	require.NoError(t, report.WriteJSON(&buf))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
	assert.Equal(t, "merged.csv", decoded["output"])
	assert.Equal(t, "2024-06-01T12:00:00Z", decoded["started_at"])
	assert.Equal(t, []any{"DEU"}, decoded["failed_keys"])
	assert.NotContains(t, decoded, "errors")
}

func TestNewReport_BeforeMerge(t *testing.T) {
	t.Parallel()

	report := indicatorpipe.NewReport("run-2", "fetch", indicatorpipe.NewState(testQuery()), time.Now(), 0)

	assert.Nil(t, report.Merge)
	assert.Zero(t, report.PrimaryRows)
	assert.Zero(t, report.Present)
}
