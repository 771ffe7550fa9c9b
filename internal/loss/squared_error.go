package loss

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/tarstars/gbdt_engine/internal/dataset"
	"github.com/tarstars/gbdt_engine/internal/ranking"
	"github.com/tarstars/gbdt_engine/internal/tree"
)

// SquaredErrorLoss implements plain squared error for regression and for
// ranking tasks that want an MSE surrogate. Its Newton step is degenerate,
// so it never carries a hessian.
type SquaredErrorLoss struct {
	Config Config
	Task   Task // Regression or Ranking, fixed at construction
}

func (SquaredErrorLoss) Kind() Kind    { return SquaredError }
func (SquaredErrorLoss) Dimension() int { return 1 }

func (l SquaredErrorLoss) Validate(task Task, _ dataset.ColumnSpec) error {
	if task != Regression && task != Ranking {
		return fmt.Errorf("%w: squared error requires a regression or ranking task, got %s", ErrConfiguration, task)
	}
	return nil
}

func (l SquaredErrorLoss) InitialPredictions(ds dataset.Dataset, labelCol int, weights []float32) ([]float32, error) {
	labels := ds.NumericalColumn(labelCol)
	sw := sumWeights(len(labels), weights)
	if sw <= 0 {
		return nil, fmt.Errorf("%w: sum of weights must be positive, got %g", ErrData, sw)
	}
	var wy float64
	for i, y := range labels {
		wy += weightAt(weights, i) * float64(y)
	}
	return []float32{float32(wy / sw)}, nil
}

func (l SquaredErrorLoss) UpdateGradients(ds dataset.Dataset, labelCol int, predictions []float32, _ *ranking.GroupIndex, gradients *GradientData, _ *rand.Rand) error {
	labels := ds.NumericalColumn(labelCol)
	g := gradients.Gradient(0)
	for i, y := range labels {
		g[i] = float64(y) - float64(predictions[i])
	}
	return nil
}

func (l SquaredErrorLoss) LeafSetter(_ int, _ dataset.Dataset, _ []float32, gradients *GradientData, _ []float32) tree.LeafSetter {
	g := gradients.Gradient(0)
	cfg := l.Config
	return func(selected []uint64, leafWeights []float32, node *tree.Node) {
		var num, sumW float64
		for i, row := range selected {
			wi := 1.0
			if leafWeights != nil {
				wi = float64(leafWeights[i])
			}
			num += wi * g[row]
			sumW += wi
		}
		leaf := cfg.Shrinkage * num / (sumW + cfg.L2Regularization/2)
		node.Regressor.TopValue = float32(leaf)
		if cfg.UseHessianGain {
			node.Regressor.SumGradients = num
			node.Regressor.SumHessians = sumW
			node.Regressor.SumWeights = sumW
		}
	}
}

func (l SquaredErrorLoss) UpdatePredictions(newTrees []tree.Tree, ds dataset.Dataset, predictions []float32) (float64, error) {
	if len(newTrees) != 1 {
		return 0, fmt.Errorf("%w: squared error expects exactly 1 tree per iteration, got %d", ErrInternal, len(newTrees))
	}
	return applyUnivariateTree(newTrees[0], ds, predictions)
}

// LossAndMetrics reports RMSE as the loss value even though the loss being
// optimized is squared error. This mismatch is intentional: it preserves
// backward compatibility with persisted validation_loss values and must not
// be "fixed" silently.
func (l SquaredErrorLoss) LossAndMetrics(ds dataset.Dataset, labelCol int, predictions []float32, weights []float32, groupIndex *ranking.GroupIndex) (float64, []float64, error) {
	labels := ds.NumericalColumn(labelCol)
	sw := sumWeights(len(labels), weights)
	if sw <= 0 {
		metrics := []float64{math.NaN()}
		if l.Task == Ranking {
			metrics = append(metrics, math.NaN())
		}
		return math.NaN(), metrics, nil
	}
	var sumSq float64
	for i, y := range labels {
		d := float64(y) - float64(predictions[i])
		sumSq += weightAt(weights, i) * d * d
	}
	rmse := math.Sqrt(sumSq / sw)

	if l.Task == Ranking {
		ndcg := math.NaN()
		if groupIndex != nil {
			ndcg = groupIndex.NDCG(predictions, weights, ranking.DefaultTruncation)
		}
		return rmse, []float64{rmse, ndcg}, nil
	}
	return rmse, []float64{rmse}, nil
}

func (l SquaredErrorLoss) SecondaryMetricNames() []string {
	if l.Task == Ranking {
		return []string{"rmse", "NDCG@5"}
	}
	return []string{"rmse"}
}
