package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nulllvoid/indicatorpipe"
	"github.com/nulllvoid/indicatorpipe/internal/logctx"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch the indicator, merge it into the dataset and write the result",
	RunE: func(c *cobra.Command, _ []string) error {
		return run(c.Context())
	},
}

func init() {
	runCmd.Flags().String("input", "", "primary dataset (delimited, with header row)")
	runCmd.Flags().String("output", "merged.csv", "output file; a .parquet extension selects Parquet")
	runCmd.Flags().String("report", "", "write the JSON run report to this file instead of stdout")
	runCmd.Flags().String("on-bad-key", indicatorpipe.MarkMissing.String(), "rows with unusable keys: mark or abort")
	runCmd.Flags().String("delimiter", string(indicatorpipe.DefaultDelimiter), "field delimiter of input and CSV output")

	mustBind("dataset.input", runCmd.Flags().Lookup("input"))
	mustBind("dataset.output", runCmd.Flags().Lookup("output"))
	mustBind("report", runCmd.Flags().Lookup("report"))
	mustBind("dataset.on_bad_key", runCmd.Flags().Lookup("on-bad-key"))
	mustBind("dataset.delimiter", runCmd.Flags().Lookup("delimiter"))
}

func run(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Dataset.Input == "" {
		return errors.New("no input dataset; set --input or dataset.input")
	}

	logger, closeLog, err := setupLogging(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	ctx, cancel := handleSignals(parent)
	defer cancel()
	ctx = logctx.WithLogger(ctx, logger)

	metrics, err := indicatorpipe.NewOtelMetrics(nil)
	if err != nil {
		return err
	}

	fetcher, err := buildFetcher(cfg)
	if err != nil {
		return err
	}
	q, err := buildQuery(cfg, logger)
	if err != nil {
		return err
	}

	comma, err := cfg.Dataset.Comma()
	if err != nil {
		return err
	}
	policy, err := indicatorpipe.ParseBadKeyPolicy(cfg.Dataset.OnBadKey)
	if err != nil {
		return err
	}

	p := indicatorpipe.New("indicatorpipe",
		indicatorpipe.WithTimeout(cfg.Timeout),
		indicatorpipe.WithMetrics(metrics),
		indicatorpipe.WithMiddleware(indicatorpipe.RecoveryMiddleware()),
		indicatorpipe.WithMiddleware(indicatorpipe.ContextLoggerMiddleware(logger)),
		indicatorpipe.WithMiddleware(indicatorpipe.LoggingMiddleware(logger)),
		indicatorpipe.WithValidation(indicatorpipe.Query.Validate),
		indicatorpipe.WithAggregator(indicatorpipe.NewAggregator(fetcher,
			indicatorpipe.AggregatorWithMaxWorkers(cfg.Indicator.MaxWorkers),
			indicatorpipe.AggregatorWithMetrics(metrics),
		)),
		indicatorpipe.WithSource(indicatorpipe.NewFileSource(cfg.Dataset.Input, comma)),
		indicatorpipe.WithMerger(indicatorpipe.NewMerger(
			indicatorpipe.MergerWithKeyColumn(cfg.Dataset.KeyColumn),
			indicatorpipe.MergerWithValueColumn(cfg.Dataset.ValueColumn),
			indicatorpipe.MergerWithBadKeyPolicy(policy),
		)),
		indicatorpipe.WithSink(indicatorpipe.NewSinkForPath(cfg.Dataset.Output, comma, cfg.Dataset.MissingMarker)),
	)

	report, err := p.Execute(ctx, q)
	if err != nil {
		return err
	}

	logger.Info("Run complete",
		"runID", report.RunID,
		"rows", report.MergedRows,
		"present", report.Present,
		"failedKeys", len(report.FailedKeys),
		"output", report.Output)

	return writeOutput(cfg.Report, report.WriteJSON)
}

// writeOutput writes to stdout for "" or "-", and atomically to path
// otherwise.
func writeOutput(path string, fn func(w io.Writer) error) error {
	if path == "" || path == "-" {
		return fn(os.Stdout)
	}
	if err := indicatorpipe.WriteFileAtomic(path, fn); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
