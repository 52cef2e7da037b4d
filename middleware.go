package indicatorpipe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nulllvoid/indicatorpipe/internal/logctx"
)

type StageFunc func(ctx context.Context, state *State) error

type Middleware func(stageName string, next StageFunc) StageFunc

// Logger is satisfied by *slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

func LoggingMiddleware(logger Logger) Middleware {
	return func(stageName string, next StageFunc) StageFunc {
		return func(ctx context.Context, state *State) error {
			start := time.Now()
			err := next(ctx, state)
			if err != nil {
				logger.Error("Stage failed",
					"stage", stageName,
					"duration", time.Since(start),
					"error", err,
				)
				return err
			}
			logger.Info("Stage completed",
				"stage", stageName,
				"duration", time.Since(start),
				"rows", state.RowCount(),
			)
			return nil
		}
	}
}

// ContextLoggerMiddleware stores logger, tagged with the stage name, in the
// stage context so that components below can log through logctx.
func ContextLoggerMiddleware(logger *slog.Logger) Middleware {
	return func(stageName string, next StageFunc) StageFunc {
		return func(ctx context.Context, state *State) error {
			return next(logctx.WithLogger(ctx, logger.With(slog.String("stage", stageName))), state)
		}
	}
}

func RecoveryMiddleware() Middleware {
	return func(stageName string, next StageFunc) StageFunc {
		return func(ctx context.Context, state *State) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = NewPipelineError("", stageName, "panic", fmt.Errorf("%v", r))
				}
			}()
			return next(ctx, state)
		}
	}
}
