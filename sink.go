package indicatorpipe

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// Sink persists a merged dataset. Implementations write all rows or nothing.
type Sink interface {
	Name() string
	Location() string
	Write(ctx context.Context, merged *MergedDataset) error
}

type CSVSink struct {
	path   string
	comma  rune
	marker string
}

func NewCSVSink(path string, comma rune, marker string) *CSVSink {
	return &CSVSink{path: path, comma: comma, marker: marker}
}

func (s *CSVSink) Name() string     { return "csv" }
func (s *CSVSink) Location() string { return s.path }

func (s *CSVSink) Write(ctx context.Context, merged *MergedDataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return WriteFileAtomic(s.path, func(w io.Writer) error {
		return merged.Dataset(s.marker).WriteCSV(w, s.comma)
	})
}

type ParquetSink struct {
	path string
}

func NewParquetSink(path string) *ParquetSink {
	return &ParquetSink{path: path}
}

func (s *ParquetSink) Name() string     { return "parquet" }
func (s *ParquetSink) Location() string { return s.path }

func (s *ParquetSink) Write(ctx context.Context, merged *MergedDataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return WriteFileAtomic(s.path, func(w io.Writer) error {
		return WriteParquet(w, merged)
	})
}

// NewSinkForPath picks the parquet sink for a .parquet path and the CSV sink
// otherwise.
func NewSinkForPath(path string, comma rune, marker string) Sink {
	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		return NewParquetSink(path)
	}
	return NewCSVSink(path, comma, marker)
}

const parquetBatchSize = 1024

// WriteParquet stores primary columns as optional strings and the indicator
// column as an optional double. Column names are the trimmed header names.
func WriteParquet(w io.Writer, merged *MergedDataset) error {
	if len(merged.Header) == 0 {
		return fmt.Errorf("write parquet: empty header")
	}

	names := make([]string, len(merged.Header))
	group := parquet.Group{}
	for i, h := range merged.Header {
		name := strings.TrimSpace(h)
		if name == "" {
			return fmt.Errorf("write parquet: column %d has no name", i+1)
		}
		if _, dup := group[name]; dup {
			return fmt.Errorf("write parquet: duplicate column '%s'", name)
		}
		names[i] = name
		if i == len(merged.Header)-1 {
			group[name] = parquet.Optional(parquet.Leaf(parquet.DoubleType))
		} else {
			group[name] = parquet.Optional(parquet.String())
		}
	}

	schema := parquet.NewSchema("indicatorpipe", group)
	writer := parquet.NewGenericWriter[map[string]any](w, schema)

	valueName := names[len(names)-1]
	batch := make([]map[string]any, 0, parquetBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := writer.Write(batch); err != nil {
			return fmt.Errorf("write parquet rows: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	for _, r := range merged.Rows {
		row := make(map[string]any, len(names))
		for i, f := range r.Fields {
			row[names[i]] = f
		}
		if r.Valid {
			row[valueName] = r.Value
		}
		batch = append(batch, row)
		if len(batch) == parquetBatchSize {
			if err := flush(); err != nil {
				_ = writer.Close()
				return err
			}
		}
	}
	if err := flush(); err != nil {
		_ = writer.Close()
		return err
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

// WriteTableCSV exports an indicator table, one row per positional
// identifier.
func WriteTableCSV(w io.Writer, table *IndicatorTable, marker string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"id", "key", "country", "indicator", "year", "value", "status"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range table.Records {
		value := marker
		if r.Valid {
			value = strconv.FormatFloat(r.Value, 'f', -1, 64)
		}
		row := []string{
			strconv.Itoa(r.ID),
			string(r.Key),
			r.Country,
			r.Indicator,
			strconv.Itoa(r.Year),
			value,
			string(r.Status),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write record %d: %w", r.ID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteFileAtomic writes through a temporary file in the target directory and
// renames it into place only when fn succeeds.
func WriteFileAtomic(path string, fn func(w io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = fn(bw); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
