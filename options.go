package indicatorpipe

import (
	"context"
	"time"
)

type Option func(*Pipeline)

func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.config.Timeout = d
	}
}

func WithFailFast(enabled bool) Option {
	return func(p *Pipeline) {
		p.config.FailFast = enabled
	}
}

func WithMetrics(m Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithValidation puts a required validation stage in front of all others.
func WithValidation(fn func(Query) error) Option {
	return func(p *Pipeline) {
		stage := NewStage("validation", true, func(ctx context.Context, state *State) error {
			return fn(state.Query())
		})
		p.stages = append([]Stage{stage}, p.stages...)
	}
}

func WithStage(stage Stage) Option {
	return func(p *Pipeline) {
		p.AddStage(stage)
	}
}

func WithMiddleware(m Middleware) Option {
	return func(p *Pipeline) {
		p.Use(m)
	}
}

func WithConfig(cfg Config) Option {
	return func(p *Pipeline) {
		p.config = cfg
	}
}

func WithAggregator(a *Aggregator) Option {
	return func(p *Pipeline) {
		p.AddStage(NewFetchStage(a))
	}
}

// WithFetchers aggregates through a sequential chain of the given fetchers.
func WithFetchers(fetchers ...Fetcher) Option {
	return func(p *Pipeline) {
		opts := make([]FetcherChainOption, 0, len(fetchers))
		for _, f := range fetchers {
			opts = append(opts, ChainWithFetcher(f))
		}
		p.AddStage(NewFetchStage(NewAggregator(NewFetcherChain(opts...), AggregatorWithMetrics(p.metrics))))
	}
}

func WithSource(src Source) Option {
	return func(p *Pipeline) {
		p.AddStage(NewLoadStage(src))
	}
}

func WithMerger(m *Merger) Option {
	return func(p *Pipeline) {
		p.AddStage(NewMergeStage(m))
	}
}

func WithSink(s Sink) Option {
	return func(p *Pipeline) {
		p.AddStage(NewWriteStage(s))
	}
}
