package main

import (
	"fmt"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"

	"github.com/nulllvoid/indicatorpipe/config"
)

// setupLogging installs the default logger: text on stderr, fanned out to a
// JSON file when one is configured. DEBUG in the environment forces debug
// level.
func setupLogging(cfg config.LogConfig) (*slog.Logger, func() error, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, nil, err
	}
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	closer := func() error { return nil }

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		handler = slogmulti.Fanout(handler, slog.NewJSONHandler(f, opts))
		closer = f.Close
	}

	logger := slog.New(handler).With(slog.String("service", "indicatorpipe"))
	slog.SetDefault(logger)
	return logger, closer, nil
}
