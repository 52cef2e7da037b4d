package indicatorpipe

import (
	"bufio"
	"context"
	"fmt"
	"os"
)

// Source provides the primary dataset.
type Source interface {
	Name() string
	Load(ctx context.Context) (*Dataset, error)
}

type FileSource struct {
	path  string
	comma rune
}

func NewFileSource(path string, comma rune) *FileSource {
	return &FileSource{path: path, comma: comma}
}

func (s *FileSource) Name() string { return s.path }

func (s *FileSource) Load(ctx context.Context) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer func() { _ = f.Close() }()

	ds, err := ReadDataset(bufio.NewReader(f), s.comma)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return ds, nil
}

// DatasetSource serves an in-memory dataset.
type DatasetSource struct {
	ds *Dataset
}

func NewDatasetSource(ds *Dataset) *DatasetSource {
	return &DatasetSource{ds: ds}
}

func (s *DatasetSource) Name() string { return "memory" }

func (s *DatasetSource) Load(context.Context) (*Dataset, error) {
	return s.ds, nil
}

// LoadStage reads the primary dataset into the run state.
type LoadStage struct {
	source Source
}

func NewLoadStage(src Source) *LoadStage {
	return &LoadStage{source: src}
}

func (s *LoadStage) Name() string   { return "load" }
func (s *LoadStage) Required() bool { return true }

func (s *LoadStage) Execute(ctx context.Context, state *State) error {
	ds, err := s.source.Load(ctx)
	if err != nil {
		return err
	}
	state.SetPrimary(ds)
	state.SetMetadata("source", s.source.Name())
	return nil
}
