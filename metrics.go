package indicatorpipe

import "time"

type Metrics interface {
	RecordStageDuration(pipeline, stage string, duration time.Duration)
	RecordFetch(source string, status FetchStatus, duration time.Duration)
	RecordRowCount(pipeline string, count int)
	RecordError(pipeline, stage, errorType string)
}

type NoopMetrics struct{}

func (NoopMetrics) RecordStageDuration(string, string, time.Duration) {}
func (NoopMetrics) RecordFetch(string, FetchStatus, time.Duration)    {}
func (NoopMetrics) RecordRowCount(string, int)                        {}
func (NoopMetrics) RecordError(string, string, string)                {}
