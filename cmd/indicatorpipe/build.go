package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/nulllvoid/indicatorpipe"
	"github.com/nulllvoid/indicatorpipe/config"
)

// buildFetcher assembles the fetch chain: local overrides first, then the
// (optionally cached) World Bank API.
func buildFetcher(cfg *config.Config) (indicatorpipe.Fetcher, error) {
	api := indicatorpipe.NewHTTPFetcher(
		indicatorpipe.HTTPWithBaseURL(cfg.Indicator.BaseURL),
		indicatorpipe.HTTPWithTimeout(cfg.Indicator.Timeout),
		indicatorpipe.HTTPWithRetries(cfg.Indicator.Retries, cfg.Indicator.RetryDelay),
	)

	var remote indicatorpipe.Fetcher = api
	if cfg.Indicator.CacheTTL > 0 {
		remote = indicatorpipe.NewCachingFetcher(api, cfg.Indicator.CacheTTL)
	}

	opts := []indicatorpipe.FetcherChainOption{
		indicatorpipe.ChainWithFetcher(remote),
	}

	if cfg.Indicator.Overrides != "" {
		f, err := os.Open(cfg.Indicator.Overrides)
		if err != nil {
			return nil, fmt.Errorf("open overrides: %w", err)
		}
		defer func() { _ = f.Close() }()

		values, err := indicatorpipe.ReadStaticValues(f)
		if err != nil {
			return nil, err
		}
		opts = append(opts, indicatorpipe.ChainWithFetcher(indicatorpipe.NewStaticFetcher("overrides", 0, values)))
	}

	return indicatorpipe.NewFetcherChain(opts...), nil
}

func buildQuery(cfg *config.Config, logger *slog.Logger) (indicatorpipe.Query, error) {
	q, err := indicatorpipe.NewQuery(cfg.Indicator.Keys, cfg.Indicator.Code, cfg.Indicator.Year)
	if err != nil {
		return indicatorpipe.Query{}, err
	}

	logger.Info("Positional key order",
		slog.Any("keys", q.Keys),
		slog.String("indicator", q.Indicator),
		slog.Int("year", q.Year))
	if dups := q.DuplicateKeys(); len(dups) > 0 {
		logger.Warn("Keys requested more than once", slog.Any("keys", dups))
	}

	return q, nil
}
