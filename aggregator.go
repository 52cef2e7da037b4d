package indicatorpipe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nulllvoid/indicatorpipe/internal/logctx"
)

// Aggregator runs one fetch per key and assembles the results into an
// IndicatorTable in request order. A failure for one key is recorded as an
// absent value and never aborts the batch.
type Aggregator struct {
	fetcher    Fetcher
	maxWorkers int
	metrics    Metrics
}

type AggregatorOption func(*Aggregator)

func NewAggregator(fetcher Fetcher, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		fetcher:    fetcher,
		maxWorkers: 1,
		metrics:    NoopMetrics{},
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.maxWorkers < 1 {
		a.maxWorkers = 1
	}

	return a
}

// AggregatorWithMaxWorkers allows up to n fetches in flight. Results are
// still placed in request order.
func AggregatorWithMaxWorkers(n int) AggregatorOption {
	return func(a *Aggregator) {
		a.maxWorkers = n
	}
}

func AggregatorWithMetrics(m Metrics) AggregatorOption {
	return func(a *Aggregator) {
		if m != nil {
			a.metrics = m
		}
	}
}

func (a *Aggregator) MaxWorkers() int { return a.maxWorkers }

// Aggregate returns exactly len(q.Keys) records. It only fails for an
// invalid query or a canceled context.
func (a *Aggregator) Aggregate(ctx context.Context, q Query) (*IndicatorTable, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	records := make([]IndicatorRecord, len(q.Keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.maxWorkers)

	for i, key := range q.Keys {
		g.Go(func() error {
			records[i] = a.fetchOne(gctx, key, q.Indicator, q.Year)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCanceled, err)
	}

	table := NewIndicatorTable(q.Indicator, q.Year, records)

	logger := logctx.FromContext(ctx)
	if err := table.Err(); err != nil {
		logger.Warn("Indicator fetch failures recorded as absent",
			slog.Any("keys", table.FailedKeys()),
			slog.Any("error", err))
	}
	logger.Info("Indicator table assembled",
		slog.String("indicator", q.Indicator),
		slog.Int("year", q.Year),
		slog.Int("rows", table.Len()),
		slog.Int("present", table.PresentCount()))

	return table, nil
}

func (a *Aggregator) fetchOne(ctx context.Context, key CountryKey, indicator string, year int) IndicatorRecord {
	logger := logctx.FromContext(ctx)

	start := time.Now()
	rec, err := a.fetcher.Fetch(ctx, key, indicator, year)
	duration := time.Since(start)

	rec.Key = key
	rec.Indicator = indicator
	rec.Year = year
	rec.Err = err

	switch {
	case err == nil && rec.Valid:
		rec.Status = StatusOK
	case err == nil || IsNoData(err):
		rec.Valid = false
		rec.Value = 0
		rec.Status = StatusNoData
		logger.Debug("No indicator data",
			slog.String("key", string(key)),
			slog.Any("reason", err))
	default:
		rec.Valid = false
		rec.Value = 0
		rec.Status = StatusFailed
		logger.Warn("Indicator fetch failed",
			slog.String("key", string(key)),
			slog.Duration("duration", duration),
			slog.Any("error", err))
	}

	if rec.Source == "" {
		rec.Source = a.fetcher.Name()
	}
	a.metrics.RecordFetch(rec.Source, rec.Status, duration)

	return rec
}
