package indicatorpipe_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nulllvoid/indicatorpipe"
)

func mergedSample(t *testing.T) *indicatorpipe.MergedDataset {
	t.Helper()
	merged, err := indicatorpipe.NewMerger().Merge(context.Background(), datasetOf("1", "2", "9"), tableOf(ptr(81.1), ptr(80.9)))
	require.NoError(t, err)
	return merged
}

func TestNewSinkForPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		{path: "out/merged.csv", want: "csv"},
		{path: "merged.PARQUET", want: "parquet"},
		{path: "merged", want: "csv"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			sink := indicatorpipe.NewSinkForPath(tt.path, ';', "NA")
			assert.Equal(t, tt.want, sink.Name())
			assert.Equal(t, tt.path, sink.Location())
		})
	}
}

func TestCSVSink_Write(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "merged.csv")
	sink := indicatorpipe.NewCSVSink(path, ';', "NA")

	require.NoError(t, sink.Write(context.Background(), mergedSample(t)))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"Marital status;Nacionality;Target;life_expectancy\n"+
			"1;1;row1;81.1\n"+
			"1;2;row2;80.9\n"+
			"1;9;row3;NA\n",
		string(b))
}

func TestCSVSink_CanceledWritesNothing(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "merged.csv")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := indicatorpipe.NewCSVSink(path, ';', "NA").Write(ctx, mergedSample(t))

	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, path)
}

func TestParquetSink_Write(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "merged.parquet")
	require.NoError(t, indicatorpipe.NewParquetSink(path).Write(context.Background(), mergedSample(t)))

	b, err := os.ReadFile(path)
	require.NoError(t, err)

	pf, err := parquet.OpenFile(bytes.NewReader(b), int64(len(b)))
	require.NoError(t, err)
	assert.Equal(t, int64(3), pf.NumRows())

	names := make([]string, 0)
	for _, field := range pf.Schema().Fields() {
		names = append(names, field.Name())
	}
	sort.Strings(names)
	assert.Equal(t, []string{"Marital status", "Nacionality", "Target", "life_expectancy"}, names)
}

func TestWriteParquet_HeaderErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		header  []string
		wantErr string
	}{
		{name: "empty header", header: nil, wantErr: "empty header"},
		{name: "blank column", header: []string{"a", " ", "v"}, wantErr: "column 2 has no name"},
		{name: "duplicate column", header: []string{"a", " a", "v"}, wantErr: "duplicate column"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := indicatorpipe.WriteParquet(io.Discard, &indicatorpipe.MergedDataset{Header: tt.header})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWriteTableCSV(t *testing.T) {
	t.Parallel()

	table := indicatorpipe.NewIndicatorTable(lifeExpectancy, 2019, []indicatorpipe.IndicatorRecord{
		{Key: "PRT", Country: "Portugal", Indicator: lifeExpectancy, Year: 2019, Value: 81.1, Valid: true, Status: indicatorpipe.StatusOK},
		{Key: "DEU", Country: "Germany", Indicator: lifeExpectancy, Year: 2019, Status: indicatorpipe.StatusFailed},
	})

	var sb strings.Builder
	require.NoError(t, indicatorpipe.WriteTableCSV(&sb, table, "NA"))

	assert.Equal(t,
		"id,key,country,indicator,year,value,status\n"+
			"1,PRT,Portugal,SP.DYN.LE00.IN,2019,81.1,ok\n"+
			"2,DEU,Germany,SP.DYN.LE00.IN,2019,NA,failed\n",
		sb.String())
}

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("previous"), 0o644))

	boom := errors.New("boom")
	err := indicatorpipe.WriteFileAtomic(path, func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(b))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, indicatorpipe.WriteFileAtomic(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "complete")
		return err
	}))
	b, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "complete", string(b))
}

func TestWriteFileAtomic_MissingDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing", "out.csv")
	err := indicatorpipe.WriteFileAtomic(path, func(io.Writer) error { return nil })

	assert.Error(t, err)
	assert.NoFileExists(t, path)
}
