package indicatorpipe

import "sync"

// State is shared by the stages of one pipeline run.
type State struct {
	mu       sync.RWMutex
	query    Query
	table    *IndicatorTable
	primary  *Dataset
	merged   *MergedDataset
	output   string
	metadata map[string]any
	warnings []error
	errors   []error
}

func NewState(q Query) *State {
	return &State{
		query:    q,
		metadata: make(map[string]any),
		warnings: make([]error, 0),
		errors:   make([]error, 0),
	}
}

func (s *State) Query() Query {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query
}

func (s *State) Table() *IndicatorTable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table
}

func (s *State) SetTable(t *IndicatorTable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table = t
}

func (s *State) Primary() *Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.primary
}

func (s *State) SetPrimary(d *Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.primary = d
}

func (s *State) Merged() *MergedDataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.merged
}

func (s *State) SetMerged(m *MergedDataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.merged = m
}

func (s *State) Output() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.output
}

func (s *State) SetOutput(location string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.output = location
}

func (s *State) SetMetadata(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata[key] = value
}

func (s *State) GetMetadata(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.metadata[key]
	return v, ok
}

// AddWarning records a recovered problem: a failed key or a kept row with a
// bad foreign key.
func (s *State) AddWarning(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, err)
}

func (s *State) Warnings() []error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.warnings
}

func (s *State) AddError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, err)
}

func (s *State) Errors() []error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errors
}

func (s *State) HasErrors() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.errors) > 0
}

// RowCount is the number of merged rows, or zero before the merge stage.
func (s *State) RowCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.merged.Len()
}
