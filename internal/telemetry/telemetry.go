// Package telemetry gives the trainer and the inference path a place to
// report progress and latency without hard-coding a destination: a pluggable
// Sink lets a caller wire anything from a discard target to a Prometheus
// exporter without touching the training loop itself.
package telemetry

import "time"

// IterationStats describes one completed boosting iteration.
type IterationStats struct {
	RunID          string
	Iteration      int
	TrainLoss      float64
	ValidationLoss float64 // NaN if no validation split was configured
	Duration       time.Duration
}

// InferenceStats describes one PredictRow call.
type InferenceStats struct {
	RunID    string
	Duration time.Duration
}

// Sink receives training and inference lifecycle events. Implementations
// must not block the caller for long: the trainer invokes these synchronously
// on the hot path between iterations.
type Sink interface {
	OnTrainingStart(runID string, numRows uint64, loss string)
	OnIteration(stats IterationStats)
	OnTrainingEnd(runID string, totalIterations int, finalLoss float64)
	OnInference(stats InferenceStats)
}

// NopSink discards every event. It is the default when a caller supplies no
// Sink, so telemetry is always optional and never required for correctness.
type NopSink struct{}

func (NopSink) OnTrainingStart(string, uint64, string) {}
func (NopSink) OnIteration(IterationStats)             {}
func (NopSink) OnTrainingEnd(string, int, float64)     {}
func (NopSink) OnInference(InferenceStats)             {}
