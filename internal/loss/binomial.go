package loss

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/tarstars/gbdt_engine/internal/dataset"
	"github.com/tarstars/gbdt_engine/internal/ranking"
	"github.com/tarstars/gbdt_engine/internal/tree"
)

// BinomialLoss implements binomial log-likelihood for binary classification.
// Labels are the categorical values {1, 2} (1 = negative, 2 = positive;
// 0 is OOV and must never appear); predictions are a single logit.
type BinomialLoss struct {
	Config Config
}

func (BinomialLoss) Kind() Kind    { return BinomialLogLikelihood }
func (BinomialLoss) Dimension() int { return 1 }

func (l BinomialLoss) Validate(task Task, labelSpec dataset.ColumnSpec) error {
	if task != Classification {
		return fmt.Errorf("%w: binomial log-likelihood requires a classification task, got %s", ErrConfiguration, task)
	}
	if labelSpec.Kind != dataset.Categorical || labelSpec.NumberOfUniqueValues != 3 {
		return fmt.Errorf("%w: binomial log-likelihood requires a categorical label with exactly 3 unique values (OOV + 2 classes), got %d", ErrConfiguration, labelSpec.NumberOfUniqueValues)
	}
	return nil
}

func sigmoid(f float32) float64 {
	return 1.0 / (1.0 + math.Exp(-float64(f)))
}

// InitialPredictions returns [log(p/(1-p))] with sentinel handling at the
// extremes: p==0 => -MaxFloat32, p==1 => +MaxFloat32.
func (l BinomialLoss) InitialPredictions(ds dataset.Dataset, labelCol int, weights []float32) ([]float32, error) {
	labels := ds.CategoricalColumn(labelCol)
	n := len(labels)
	sw := sumWeights(n, weights)
	if sw <= 0 {
		return nil, fmt.Errorf("%w: sum of weights must be positive, got %g", ErrData, sw)
	}
	var positiveWeight float64
	for i, label := range labels {
		if label == 0 {
			return nil, fmt.Errorf("%w: OOV label 0 present in training data for binomial loss", ErrData)
		}
		if label == 2 {
			positiveWeight += weightAt(weights, i)
		}
	}
	p := positiveWeight / sw
	switch {
	case p == 0:
		return []float32{-math.MaxFloat32}, nil
	case p == 1:
		return []float32{math.MaxFloat32}, nil
	default:
		return []float32{float32(math.Log(p / (1 - p)))}, nil
	}
}

func (l BinomialLoss) UpdateGradients(ds dataset.Dataset, labelCol int, predictions []float32, _ *ranking.GroupIndex, gradients *GradientData, _ *rand.Rand) error {
	labels := ds.CategoricalColumn(labelCol)
	g := gradients.Gradient(0)
	h := gradients.Hessian(0)
	for i, label := range labels {
		y := 0.0
		if label == 2 {
			y = 1.0
		}
		p := sigmoid(predictions[i])
		g[i] = y - p
		if h != nil {
			h[i] = p * (1 - p)
		}
	}
	return nil
}

func (l BinomialLoss) LeafSetter(_ int, _ dataset.Dataset, predictions []float32, gradients *GradientData, weights []float32) tree.LeafSetter {
	g := gradients.Gradient(0)
	cfg := l.Config
	return func(selected []uint64, leafWeights []float32, node *tree.Node) {
		var n, d, w float64
		for i, row := range selected {
			wi := 1.0
			if leafWeights != nil {
				wi = float64(leafWeights[i])
			}
			p := sigmoid(predictions[row])
			n += wi * g[row]
			d += wi * p * (1 - p)
			w += wi
		}
		if d < 0.001 {
			d = 0.001
		}
		leaf := cfg.Shrinkage * softThreshold(n, cfg.L1Regularization) / (d + cfg.L2Regularization)
		leaf = clamp(leaf, cfg.ClampLeafLogit)
		node.Regressor.TopValue = float32(leaf)
		if cfg.UseHessianGain {
			node.Regressor.SumGradients = n
			node.Regressor.SumHessians = d
			node.Regressor.SumWeights = w
		}
	}
}

func (l BinomialLoss) UpdatePredictions(newTrees []tree.Tree, ds dataset.Dataset, predictions []float32) (float64, error) {
	if len(newTrees) != 1 {
		return 0, fmt.Errorf("%w: binomial log-likelihood expects exactly 1 tree per iteration, got %d", ErrInternal, len(newTrees))
	}
	return applyUnivariateTree(newTrees[0], ds, predictions)
}

// applyUnivariateTree is shared by every loss whose Dimension() is 1: it
// adds the single tree's per-row leaf value into predictions[row] and
// returns the mean absolute contribution.
func applyUnivariateTree(t tree.Tree, ds dataset.Dataset, predictions []float32) (float64, error) {
	n := int(ds.NumRows())
	if len(predictions) != n {
		return 0, fmt.Errorf("%w: predictions has %d rows, dataset has %d", ErrInternal, len(predictions), n)
	}
	var sumAbs float64
	for row := 0; row < n; row++ {
		reg := t.LeafRegressor(featureAccessor(ds, row))
		predictions[row] += reg.TopValue
		sumAbs += math.Abs(float64(reg.TopValue))
	}
	return sumAbs / float64(n), nil
}

// featureAccessor gives a Tree.LeafRegressor a way to read a numerical
// feature value for one row without the tree package depending on dataset.
func featureAccessor(ds dataset.Dataset, row int) func(int) float32 {
	return func(featureIdx int) float32 {
		if featureIdx < 0 {
			return 0
		}
		return ds.NumericalColumn(featureIdx)[row]
	}
}

func (l BinomialLoss) LossAndMetrics(ds dataset.Dataset, labelCol int, predictions []float32, weights []float32, _ *ranking.GroupIndex) (float64, []float64, error) {
	labels := ds.CategoricalColumn(labelCol)
	n := len(labels)
	sw := sumWeights(n, weights)
	if sw <= 0 {
		return math.NaN(), []float64{math.NaN()}, nil
	}
	var sumLoss, correct, totalW float64
	for i, label := range labels {
		y := 0.0
		if label == 2 {
			y = 1.0
		}
		f := float64(predictions[i])
		w := weightAt(weights, i)
		sumLoss += -2 * w * (y*f - math.Log1p(math.Exp(f)))
		predictedPositive := f > 0
		if predictedPositive == (y == 1) {
			correct += w
		}
		totalW += w
	}
	return sumLoss / sw, []float64{correct / totalW}, nil
}

func (l BinomialLoss) SecondaryMetricNames() []string { return []string{"accuracy"} }
