package indicatorpipe

import (
	"context"
	"errors"
	"sort"

	"golang.org/x/sync/errgroup"
)

type FallbackMode int

const (
	// FallbackSequential asks fetchers in priority order and stops at the
	// first one with a value.
	FallbackSequential FallbackMode = iota
	// FallbackParallel asks every fetcher at once and keeps the value of the
	// highest-priority fetcher that has one.
	FallbackParallel
)

// FetcherChain combines fetchers by priority (lower first). It is itself a
// Fetcher.
type FetcherChain struct {
	fetchers     []Fetcher
	fallbackMode FallbackMode
}

type FetcherChainOption func(*FetcherChain)

func NewFetcherChain(opts ...FetcherChainOption) *FetcherChain {
	chain := &FetcherChain{
		fetchers:     make([]Fetcher, 0),
		fallbackMode: FallbackSequential,
	}

	for _, opt := range opts {
		opt(chain)
	}

	sort.SliceStable(chain.fetchers, func(i, j int) bool {
		return chain.fetchers[i].Priority() < chain.fetchers[j].Priority()
	})

	return chain
}

func ChainWithFetcher(f Fetcher) FetcherChainOption {
	return func(c *FetcherChain) {
		c.fetchers = append(c.fetchers, f)
	}
}

func ChainWithFallbackMode(mode FallbackMode) FetcherChainOption {
	return func(c *FetcherChain) {
		c.fallbackMode = mode
	}
}

func (c *FetcherChain) Name() string { return "chain" }

func (c *FetcherChain) Priority() int {
	if len(c.fetchers) == 0 {
		return 0
	}
	return c.fetchers[0].Priority()
}

func (c *FetcherChain) FetcherCount() int {
	return len(c.fetchers)
}

func (c *FetcherChain) Fetch(ctx context.Context, key CountryKey, indicator string, year int) (IndicatorRecord, error) {
	if len(c.fetchers) == 0 {
		return IndicatorRecord{Key: key, Indicator: indicator, Year: year, Status: StatusFailed}, ErrNoFetcherAvailable
	}

	switch c.fallbackMode {
	case FallbackParallel:
		return c.fetchParallel(ctx, key, indicator, year)
	default:
		return c.fetchSequential(ctx, key, indicator, year)
	}
}

type chainResult struct {
	rec IndicatorRecord
	err error
}

func (c *FetcherChain) fetchSequential(ctx context.Context, key CountryKey, indicator string, year int) (IndicatorRecord, error) {
	results := make([]chainResult, 0, len(c.fetchers))

	for _, fetcher := range c.fetchers {
		if ctx.Err() != nil {
			break
		}

		rec, err := fetcher.Fetch(ctx, key, indicator, year)
		if err == nil && rec.Valid {
			return rec, nil
		}
		results = append(results, chainResult{rec: rec, err: err})
	}

	return c.settle(ctx, key, indicator, year, results)
}

func (c *FetcherChain) fetchParallel(ctx context.Context, key CountryKey, indicator string, year int) (IndicatorRecord, error) {
	results := make([]chainResult, len(c.fetchers))

	g, gctx := errgroup.WithContext(ctx)
	for i, fetcher := range c.fetchers {
		g.Go(func() error {
			rec, err := fetcher.Fetch(gctx, key, indicator, year)
			results[i] = chainResult{rec: rec, err: err}
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r.err == nil && r.rec.Valid {
			return r.rec, nil
		}
	}

	return c.settle(ctx, key, indicator, year, results)
}

// settle picks the outcome when no fetcher produced a value. A failure takes
// precedence over a no-data answer.
func (c *FetcherChain) settle(ctx context.Context, key CountryKey, indicator string, year int, results []chainResult) (IndicatorRecord, error) {
	if err := ctx.Err(); err != nil {
		return IndicatorRecord{Key: key, Indicator: indicator, Year: year, Status: StatusFailed},
			NewFetchError(c.Name(), key, ErrNetwork, "context done", err)
	}

	for _, r := range results {
		if r.err != nil && !errors.Is(r.err, ErrNoData) {
			return r.rec, r.err
		}
	}

	for _, r := range results {
		if r.err != nil {
			return r.rec, r.err
		}
	}

	return IndicatorRecord{Key: key, Indicator: indicator, Year: year, Status: StatusNoData},
		NewFetchError(c.Name(), key, ErrNoData, "no fetcher returned a value", nil)
}
