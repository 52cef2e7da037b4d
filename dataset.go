package indicatorpipe

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

const DefaultDelimiter = ';'

// Dataset is a delimited table kept as raw strings so that every field passes
// through a merge unchanged.
type Dataset struct {
	Header []string
	Rows   [][]string
}

// ReadDataset parses a delimited file with a header row. Every row must have
// as many fields as the header.
func ReadDataset(r io.Reader, comma rune) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.Comma = comma

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read dataset header: empty input")
	}
	if err != nil {
		return nil, fmt.Errorf("read dataset header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	ds := &Dataset{Header: header, Rows: make([][]string, 0)}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read dataset: %w", err)
		}
		ds.Rows = append(ds.Rows, row)
	}

	return ds, nil
}

func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// ColumnIndex finds a column by name, ignoring surrounding whitespace in the
// header. It returns -1 when the column is absent.
func (d *Dataset) ColumnIndex(name string) int {
	want := strings.TrimSpace(name)
	for i, h := range d.Header {
		if strings.TrimSpace(h) == want {
			return i
		}
	}
	return -1
}

// WriteCSV writes the dataset with the given delimiter.
func (d *Dataset) WriteCSV(w io.Writer, comma rune) error {
	writer := csv.NewWriter(w)
	writer.Comma = comma

	if err := writer.Write(d.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := writer.WriteAll(d.Rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}
