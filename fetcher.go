package indicatorpipe

import "context"

// Fetcher retrieves one indicator observation for one key. A key without
// data yields an absent record together with an error of kind ErrNoData.
type Fetcher interface {
	Name() string
	Priority() int
	Fetch(ctx context.Context, key CountryKey, indicator string, year int) (IndicatorRecord, error)
}

type BaseFetcher struct {
	name     string
	priority int
}

func NewBaseFetcher(name string, priority int) BaseFetcher {
	return BaseFetcher{name: name, priority: priority}
}

func (f BaseFetcher) Name() string  { return f.name }
func (f BaseFetcher) Priority() int { return f.priority }

func (f BaseFetcher) absent(key CountryKey, indicator string, year int) IndicatorRecord {
	return IndicatorRecord{
		Key:       key,
		Indicator: indicator,
		Year:      year,
		Status:    StatusNoData,
		Source:    f.name,
	}
}

func (f BaseFetcher) noData(key CountryKey, indicator string, year int, message string) (IndicatorRecord, error) {
	return f.absent(key, indicator, year), NewFetchError(f.name, key, ErrNoData, message, nil)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc struct {
	BaseFetcher
	fn func(ctx context.Context, key CountryKey, indicator string, year int) (IndicatorRecord, error)
}

func NewFetcherFunc(name string, priority int, fn func(ctx context.Context, key CountryKey, indicator string, year int) (IndicatorRecord, error)) *FetcherFunc {
	return &FetcherFunc{BaseFetcher: NewBaseFetcher(name, priority), fn: fn}
}

func (f *FetcherFunc) Fetch(ctx context.Context, key CountryKey, indicator string, year int) (IndicatorRecord, error) {
	return f.fn(ctx, key, indicator, year)
}

func (f BaseFetcher) failed(key CountryKey, indicator string, year int, kind error, message string, err error) (IndicatorRecord, error) {
	rec := f.absent(key, indicator, year)
	rec.Status = StatusFailed
	return rec, NewFetchError(f.name, key, kind, message, err)
}
