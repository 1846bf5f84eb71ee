package metrics

import "time"

// MetricsRecorder interface for recording store connection metrics
type MetricsRecorder interface {
	RecordConnect(at time.Time)
	RecordConnectionError(err error)
}

// MetricsHook listens to store connection signals and records them
type MetricsHook struct {
	recorder MetricsRecorder
}

// NewMetricsHook creates a new metrics hook
func NewMetricsHook(recorder MetricsRecorder) *MetricsHook {
	return &MetricsHook{
		recorder: recorder,
	}
}

// OnConnect is called when the store connection is (re)established
func (h *MetricsHook) OnConnect() {
	h.recorder.RecordConnect(time.Now())
}

// OnError is called when the store connection fails
func (h *MetricsHook) OnError(err error) {
	h.recorder.RecordConnectionError(err)
}
