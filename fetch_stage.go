package indicatorpipe

import "context"

// FetchStage builds the indicator table for the run's query.
type FetchStage struct {
	aggregator *Aggregator
}

func NewFetchStage(a *Aggregator) *FetchStage {
	return &FetchStage{aggregator: a}
}

func (s *FetchStage) Name() string   { return "fetch" }
func (s *FetchStage) Required() bool { return true }

func (s *FetchStage) Execute(ctx context.Context, state *State) error {
	table, err := s.aggregator.Aggregate(ctx, state.Query())
	if err != nil {
		return err
	}

	state.SetTable(table)
	for _, r := range table.Records {
		if r.Status == StatusFailed && r.Err != nil {
			state.AddWarning(r.Err)
		}
	}
	return nil
}
