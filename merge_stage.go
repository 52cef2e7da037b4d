package indicatorpipe

import (
	"context"
	"errors"

	"github.com/hashicorp/go-multierror"
)

// MergeStage joins the fetched table onto the loaded dataset.
type MergeStage struct {
	merger *Merger
}

func NewMergeStage(m *Merger) *MergeStage {
	return &MergeStage{merger: m}
}

func (s *MergeStage) Name() string   { return "merge" }
func (s *MergeStage) Required() bool { return true }

func (s *MergeStage) Execute(ctx context.Context, state *State) error {
	table := state.Table()
	if table == nil {
		return errors.New("no indicator table; fetch stage must run first")
	}
	primary := state.Primary()
	if primary == nil {
		return errors.New("no primary dataset; load stage must run first")
	}

	merged, err := s.merger.Merge(ctx, primary, table)
	if err != nil {
		return err
	}

	state.SetMerged(merged)

	var merr *multierror.Error
	if errors.As(merged.Warnings, &merr) {
		for _, w := range merr.Errors {
			state.AddWarning(w)
		}
	}
	return nil
}

// WriteStage hands the merged dataset to a sink.
type WriteStage struct {
	sink Sink
}

func NewWriteStage(sink Sink) *WriteStage {
	return &WriteStage{sink: sink}
}

func (s *WriteStage) Name() string   { return "write" }
func (s *WriteStage) Required() bool { return true }

func (s *WriteStage) Execute(ctx context.Context, state *State) error {
	merged := state.Merged()
	if merged == nil {
		return errors.New("nothing to write; merge stage must run first")
	}
	if err := s.sink.Write(ctx, merged); err != nil {
		return err
	}
	state.SetOutput(s.sink.Location())
	return nil
}
