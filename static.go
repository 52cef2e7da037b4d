package indicatorpipe

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// StaticFetcher serves values from a fixed key→value map, typically loaded
// from a local overrides file. Keys not in the map report ErrNoData so a
// chain falls through to the next fetcher.
type StaticFetcher struct {
	BaseFetcher
	values map[CountryKey]float64
}

func NewStaticFetcher(name string, priority int, values map[CountryKey]float64) *StaticFetcher {
	return &StaticFetcher{BaseFetcher: NewBaseFetcher(name, priority), values: values}
}

func (f *StaticFetcher) Fetch(ctx context.Context, key CountryKey, indicator string, year int) (IndicatorRecord, error) {
	if err := ctx.Err(); err != nil {
		return f.failed(key, indicator, year, ErrNetwork, "context done", err)
	}
	v, ok := f.values[key]
	if !ok {
		return f.noData(key, indicator, year, "no override")
	}
	rec := f.absent(key, indicator, year)
	rec.Value = v
	rec.Valid = true
	rec.Status = StatusOK
	return rec, nil
}

func (f *StaticFetcher) Len() int { return len(f.values) }

// ReadStaticValues parses "key,value" rows. A header row is accepted when its
// second field is not numeric.
func ReadStaticValues(r io.Reader) (map[CountryKey]float64, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	values := make(map[CountryKey]float64)
	for n := 1; ; n++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read overrides: %w", err)
		}

		v, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			if n == 1 {
				continue
			}
			return nil, fmt.Errorf("overrides record %d: value %q: %w", n, row[1], err)
		}

		key, err := ParseCountryKey(row[0])
		if err != nil {
			return nil, fmt.Errorf("overrides record %d: %w", n, err)
		}
		values[key] = v
	}
	return values, nil
}
