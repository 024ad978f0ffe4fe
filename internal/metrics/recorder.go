package metrics

import "time"

// ResultLabel enumerates save result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
)

// Recorder defines observability hooks for the state store.
type Recorder interface {
	ObserveSaveDuration(d time.Duration)
	IncSaveResult(result ResultLabel)
	IncSaveRetry()
	IncEndpointCreated(group string)
	SetEndpointCount(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveSaveDuration(time.Duration) {}
func (NoopRecorder) IncSaveResult(ResultLabel)         {}
func (NoopRecorder) IncSaveRetry()                     {}
func (NoopRecorder) IncEndpointCreated(string)         {}
func (NoopRecorder) SetEndpointCount(int)              {}

// SaveResult maps a save error to its result label.
func SaveResult(err error) ResultLabel {
	if err != nil {
		return ResultFailed
	}
	return ResultSuccess
}
