package indicatorpipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/hashicorp/go-multierror"

	"github.com/nulllvoid/indicatorpipe/internal/logctx"
)

const (
	DefaultKeyColumn     = "Nacionality"
	DefaultValueColumn   = "life_expectancy"
	DefaultMissingMarker = "NA"
)

// BadKeyPolicy decides what happens to a row whose foreign key is empty or
// not an integer.
type BadKeyPolicy int

const (
	// MarkMissing keeps the row with a missing indicator value and records a
	// warning.
	MarkMissing BadKeyPolicy = iota
	// AbortOnBadKey fails the whole merge at the first bad key.
	AbortOnBadKey
)

func (p BadKeyPolicy) String() string {
	switch p {
	case AbortOnBadKey:
		return "abort"
	default:
		return "mark"
	}
}

func ParseBadKeyPolicy(s string) (BadKeyPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mark":
		return MarkMissing, nil
	case "abort":
		return AbortOnBadKey, nil
	default:
		return MarkMissing, NewValidationError("on_bad_key", fmt.Sprintf("'%s' must be 'mark' or 'abort'", s))
	}
}

// MergedRow is a primary row plus the resolved indicator value. Fields is the
// primary row itself and is never modified.
type MergedRow struct {
	Fields []string
	Value  float64
	Valid  bool
}

type MergeStats struct {
	Rows         int   `json:"rows"`
	Matched      int   `json:"matched"`
	Absent       int   `json:"absent"`
	OutOfRange   int   `json:"out_of_range"`
	BadKeys      int   `json:"bad_keys"`
	UnmatchedIDs []int `json:"unmatched_ids,omitempty"`
}

type MergedDataset struct {
	Header      []string
	ValueColumn string
	Rows        []MergedRow
	Stats       MergeStats

	// Warnings holds the MergeKeyErrors of rows kept under MarkMissing.
	Warnings error
}

func (m *MergedDataset) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Rows)
}

// Dataset renders the merged rows as plain strings, writing marker for
// missing values.
func (m *MergedDataset) Dataset(marker string) *Dataset {
	ds := &Dataset{Header: m.Header, Rows: make([][]string, 0, len(m.Rows))}
	for _, r := range m.Rows {
		row := make([]string, 0, len(r.Fields)+1)
		row = append(row, r.Fields...)
		if r.Valid {
			row = append(row, strconv.FormatFloat(r.Value, 'f', -1, 64))
		} else {
			row = append(row, marker)
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds
}

// Merger left-joins an IndicatorTable onto a Dataset. The key column holds
// the 1-based positional identifier of the table record.
type Merger struct {
	keyColumn   string
	valueColumn string
	policy      BadKeyPolicy
}

type MergerOption func(*Merger)

func NewMerger(opts ...MergerOption) *Merger {
	m := &Merger{
		keyColumn:   DefaultKeyColumn,
		valueColumn: DefaultValueColumn,
		policy:      MarkMissing,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func MergerWithKeyColumn(name string) MergerOption {
	return func(m *Merger) {
		m.keyColumn = name
	}
}

func MergerWithValueColumn(name string) MergerOption {
	return func(m *Merger) {
		m.valueColumn = name
	}
}

func MergerWithBadKeyPolicy(p BadKeyPolicy) MergerOption {
	return func(m *Merger) {
		m.policy = p
	}
}

func (m *Merger) KeyColumn() string    { return m.keyColumn }
func (m *Merger) ValueColumn() string  { return m.valueColumn }
func (m *Merger) Policy() BadKeyPolicy { return m.policy }

// Merge keeps every primary row, in order. Out-of-range identifiers resolve
// to a missing value and are counted, never reported as errors.
func (m *Merger) Merge(ctx context.Context, primary *Dataset, table *IndicatorTable) (*MergedDataset, error) {
	if primary == nil {
		return nil, errors.New("merge: nil dataset")
	}

	keyIdx := primary.ColumnIndex(m.keyColumn)
	if keyIdx < 0 {
		return nil, fmt.Errorf("%w: '%s'", ErrKeyColumnMissing, m.keyColumn)
	}
	if primary.ColumnIndex(m.valueColumn) >= 0 {
		return nil, fmt.Errorf("%w: '%s'", ErrValueColumnExists, m.valueColumn)
	}

	out := &MergedDataset{
		Header:      append(slices.Clone(primary.Header), m.valueColumn),
		ValueColumn: m.valueColumn,
		Rows:        make([]MergedRow, 0, len(primary.Rows)),
	}

	unmatched := mapset.NewThreadUnsafeSet[int]()
	var warnings *multierror.Error

	for i, fields := range primary.Rows {
		if i%1024 == 0 && ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
		}

		row := MergedRow{Fields: fields}

		id, raw, err := foreignKey(fields, keyIdx)
		if err != nil {
			kerr := NewMergeKeyError(i+1, m.keyColumn, raw, err)
			if m.policy == AbortOnBadKey {
				return nil, kerr
			}
			warnings = multierror.Append(warnings, kerr)
			out.Stats.BadKeys++
			out.Rows = append(out.Rows, row)
			continue
		}

		rec, ok := table.Lookup(id)
		switch {
		case !ok:
			out.Stats.OutOfRange++
			unmatched.Add(id)
		case !rec.Valid:
			out.Stats.Absent++
		default:
			row.Value = rec.Value
			row.Valid = true
			out.Stats.Matched++
		}
		out.Rows = append(out.Rows, row)
	}

	out.Stats.Rows = len(out.Rows)
	if unmatched.Cardinality() > 0 {
		out.Stats.UnmatchedIDs = unmatched.ToSlice()
		slices.Sort(out.Stats.UnmatchedIDs)
	}
	out.Warnings = warnings.ErrorOrNil()

	logger := logctx.FromContext(ctx)
	if out.Warnings != nil {
		logger.Warn("Rows with unusable keys kept with missing indicator",
			slog.String("column", m.keyColumn),
			slog.Int("rows", out.Stats.BadKeys))
	}
	if len(out.Stats.UnmatchedIDs) > 0 {
		logger.Warn("Foreign keys outside the indicator table",
			slog.Any("ids", out.Stats.UnmatchedIDs),
			slog.Int("tableRows", table.Len()))
	}

	return out, nil
}

func foreignKey(fields []string, idx int) (int, string, error) {
	if idx >= len(fields) {
		return 0, "", errors.New("field missing")
	}
	raw := fields[idx]
	v := strings.TrimSpace(raw)
	if v == "" {
		return 0, raw, errors.New("empty key")
	}
	id, err := strconv.Atoi(v)
	if err != nil {
		return 0, raw, fmt.Errorf("not an integer: %w", err)
	}
	return id, raw, nil
}
