package telemetry

import (
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// NewRunID mints a fresh run identifier for one training run's telemetry
// events, distinct from the model's on-disk name so a run can be retried
// under the same output path without colliding metric label values.
func NewRunID() string {
	return uuid.New().String()
}

// PrometheusSink publishes iteration and inference metrics to a Prometheus
// registry. It is the only Sink implementation in this package that does
// anything observable outside the process.
type PrometheusSink struct {
	trainLoss      *prometheus.GaugeVec
	validationLoss *prometheus.GaugeVec
	iterationSecs  prometheus.Histogram
	inferenceSecs  prometheus.Histogram
	trainingRuns   prometheus.Counter
}

// NewPrometheusSink registers its metrics with reg and returns a ready Sink.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	s := &PrometheusSink{
		trainLoss: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gbdt",
			Name:      "train_loss",
			Help:      "Training loss after the most recent completed iteration.",
		}, []string{"run_id"}),
		validationLoss: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gbdt",
			Name:      "validation_loss",
			Help:      "Validation loss after the most recent completed iteration.",
		}, []string{"run_id"}),
		iterationSecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gbdt",
			Name:      "iteration_duration_seconds",
			Help:      "Wall-clock duration of one boosting iteration.",
		}),
		inferenceSecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gbdt",
			Name:      "inference_duration_seconds",
			Help:      "Wall-clock duration of one PredictRow call.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
		trainingRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gbdt",
			Name:      "training_runs_total",
			Help:      "Number of training runs started.",
		}),
	}
	for _, c := range []prometheus.Collector{s.trainLoss, s.validationLoss, s.iterationSecs, s.inferenceSecs, s.trainingRuns} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *PrometheusSink) OnTrainingStart(_ string, _ uint64, _ string) {
	s.trainingRuns.Inc()
}

func (s *PrometheusSink) OnIteration(stats IterationStats) {
	s.trainLoss.WithLabelValues(stats.RunID).Set(stats.TrainLoss)
	if !isNaN(stats.ValidationLoss) {
		s.validationLoss.WithLabelValues(stats.RunID).Set(stats.ValidationLoss)
	}
	s.iterationSecs.Observe(stats.Duration.Seconds())
}

func (s *PrometheusSink) OnTrainingEnd(string, int, float64) {}

func (s *PrometheusSink) OnInference(stats InferenceStats) {
	s.inferenceSecs.Observe(stats.Duration.Seconds())
}

func isNaN(f float64) bool { return f != f }
