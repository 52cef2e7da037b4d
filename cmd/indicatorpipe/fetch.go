package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/nulllvoid/indicatorpipe"
	"github.com/nulllvoid/indicatorpipe/internal/logctx"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the indicator table only",
	Long: `Fetch the indicator for every key and write the ordered table as CSV
(id,key,country,indicator,year,value,status). The id column is the value the
dataset's nationality column must hold for a row to match.`,
	RunE: func(c *cobra.Command, _ []string) error {
		out, err := c.Flags().GetString("table-output")
		if err != nil {
			return err
		}
		return runFetch(c.Context(), out)
	},
}

func init() {
	fetchCmd.Flags().String("table-output", "-", "where to write the table (- for stdout)")
}

func runFetch(parent context.Context, out string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, closeLog, err := setupLogging(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	ctx, cancel := handleSignals(parent)
	defer cancel()
	ctx = logctx.WithLogger(ctx, logger)

	fetcher, err := buildFetcher(cfg)
	if err != nil {
		return err
	}
	q, err := buildQuery(cfg, logger)
	if err != nil {
		return err
	}

	agg := indicatorpipe.NewAggregator(fetcher, indicatorpipe.AggregatorWithMaxWorkers(cfg.Indicator.MaxWorkers))
	table, err := agg.Aggregate(ctx, q)
	if err != nil {
		return err
	}

	return writeOutput(out, func(w io.Writer) error {
		return indicatorpipe.WriteTableCSV(w, table, cfg.Dataset.MissingMarker)
	})
}
