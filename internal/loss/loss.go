package loss

import (
	"math/rand"

	"github.com/tarstars/gbdt_engine/internal/dataset"
	"github.com/tarstars/gbdt_engine/internal/ranking"
	"github.com/tarstars/gbdt_engine/internal/tree"
)

// Loss is the polymorphic capability set every boosting loss must implement:
// per-loss initial prediction, gradient/hessian computation, leaf-value
// assignment, prediction update, and evaluation. Each of the five concrete
// losses in this package is an immutable value type parameterized by a
// Config, so there are no cyclic references between a loss and the state it
// operates on.
type Loss interface {
	// Kind returns the stable on-disk loss-kind vocabulary entry.
	Kind() Kind

	// Dimension returns trees_per_iteration: the number of gradient
	// dimensions / trees grown per boosting iteration.
	Dimension() int

	// Validate checks task/label compatibility.
	Validate(task Task, labelSpec dataset.ColumnSpec) error

	// InitialPredictions returns the length-Dimension() starting point
	// for the running predictions vector.
	InitialPredictions(ds dataset.Dataset, labelCol int, weights []float32) ([]float32, error)

	// UpdateGradients rewrites gradients (and, if present, its hessians)
	// from the current predictions.
	UpdateGradients(ds dataset.Dataset, labelCol int, predictions []float32, groupIndex *ranking.GroupIndex, gradients *GradientData, rng *rand.Rand) error

	// LeafSetter returns the closure the external tree grower calls once
	// per finalized leaf of the tree being grown for gradient dimension
	// d. The closure closes over predictions and gradients (read-only).
	LeafSetter(d int, ds dataset.Dataset, predictions []float32, gradients *GradientData, weights []float32) tree.LeafSetter

	// UpdatePredictions adds newTrees' leaf contributions into
	// predictions in place and returns the mean absolute contribution.
	UpdatePredictions(newTrees []tree.Tree, ds dataset.Dataset, predictions []float32) (float64, error)

	// LossAndMetrics evaluates the loss and its secondary metrics.
	LossAndMetrics(ds dataset.Dataset, labelCol int, predictions []float32, weights []float32, groupIndex *ranking.GroupIndex) (float64, []float64, error)

	// SecondaryMetricNames names the values LossAndMetrics returns.
	SecondaryMetricNames() []string
}

// sumWeights returns Σ w, defaulting every weight to 1 when weights is nil.
func sumWeights(n int, weights []float32) float64 {
	if weights == nil {
		return float64(n)
	}
	var s float64
	for _, w := range weights {
		s += float64(w)
	}
	return s
}

func weightAt(weights []float32, i int) float64 {
	if weights == nil {
		return 1.0
	}
	return float64(weights[i])
}
