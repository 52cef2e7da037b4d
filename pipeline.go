package indicatorpipe

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Pipeline struct {
	name       string
	stages     []Stage
	middleware []Middleware
	config     Config
	metrics    Metrics
}

func New(name string, opts ...Option) *Pipeline {
	p := &Pipeline{
		name:   name,
		stages: make([]Stage, 0),
		config: DefaultConfig(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Execute runs every stage once, in order. A failing required stage stops
// the run and no report is produced.
func (p *Pipeline) Execute(ctx context.Context, q Query) (*Report, error) {
	started := time.Now()
	runID := uuid.New()

	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	state := NewState(q)

	for _, stage := range p.stages {
		if ctx.Err() != nil {
			return nil, NewPipelineError(p.name, stage.Name(), "execute", ctx.Err())
		}

		stageStart := time.Now()
		err := p.executeStage(ctx, stage, state)
		stageDuration := time.Since(stageStart)

		if p.metrics != nil {
			p.metrics.RecordStageDuration(p.name, stage.Name(), stageDuration)
		}

		if err != nil {
			if p.metrics != nil {
				p.metrics.RecordError(p.name, stage.Name(), "execution_error")
			}
			if stage.Required() || p.config.FailFast {
				return nil, NewPipelineError(p.name, stage.Name(), "execute", err)
			}
			state.AddError(NewPipelineError(p.name, stage.Name(), "execute", err))
		}
	}

	if p.metrics != nil {
		p.metrics.RecordRowCount(p.name, state.RowCount())
	}

	return NewReport(runID.String(), p.name, state, started, time.Since(started)), nil
}

func (p *Pipeline) executeStage(ctx context.Context, stage Stage, state *State) error {
	execute := stage.Execute

	for i := len(p.middleware) - 1; i >= 0; i-- {
		execute = p.middleware[i](stage.Name(), execute)
	}

	return execute(ctx, state)
}

func (p *Pipeline) AddStage(stage Stage) {
	p.stages = append(p.stages, stage)
}

func (p *Pipeline) Use(m Middleware) {
	p.middleware = append(p.middleware, m)
}

func (p *Pipeline) Name() string {
	return p.name
}

func (p *Pipeline) StageCount() int {
	return len(p.stages)
}

func (p *Pipeline) Config() Config {
	return p.config
}
