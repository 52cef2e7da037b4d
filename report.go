package indicatorpipe

import (
	"encoding/json"
	"io"
	"time"
)

// Report summarises one pipeline run.
type Report struct {
	RunID       string       `json:"run_id"`
	Pipeline    string       `json:"pipeline"`
	Indicator   string       `json:"indicator"`
	Year        int          `json:"year"`
	Keys        []CountryKey `json:"keys"`
	Present     int          `json:"present"`
	FailedKeys  []CountryKey `json:"failed_keys,omitempty"`
	NoDataKeys  []CountryKey `json:"no_data_keys,omitempty"`
	PrimaryRows int          `json:"primary_rows"`
	MergedRows  int          `json:"merged_rows"`
	Merge       *MergeStats  `json:"merge,omitempty"`
	Output      string       `json:"output,omitempty"`
	Warnings    []string     `json:"warnings,omitempty"`
	Errors      []string     `json:"errors,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	Duration    float64      `json:"duration_seconds"`
}

func NewReport(runID, pipeline string, state *State, started time.Time, duration time.Duration) *Report {
	q := state.Query()
	r := &Report{
		RunID:     runID,
		Pipeline:  pipeline,
		Indicator: q.Indicator,
		Year:      q.Year,
		Keys:      q.Keys,
		Output:    state.Output(),
		StartedAt: started.UTC(),
		Duration:  duration.Seconds(),
	}

	if table := state.Table(); table != nil {
		r.Present = table.PresentCount()
		r.FailedKeys = table.FailedKeys()
		r.NoDataKeys = table.NoDataKeys()
	}
	r.PrimaryRows = state.Primary().Len()
	if merged := state.Merged(); merged != nil {
		r.MergedRows = merged.Len()
		stats := merged.Stats
		r.Merge = &stats
	}
	for _, w := range state.Warnings() {
		r.Warnings = append(r.Warnings, w.Error())
	}
	for _, e := range state.Errors() {
		r.Errors = append(r.Errors, e.Error())
	}

	return r
}

func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
