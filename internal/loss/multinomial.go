package loss

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/tarstars/gbdt_engine/internal/dataset"
	"github.com/tarstars/gbdt_engine/internal/ranking"
	"github.com/tarstars/gbdt_engine/internal/tree"
)

// MultinomialLoss implements multinomial log-likelihood for multi-class
// classification (Friedman algorithm 6). Its output dimension K excludes the
// OOV class, so no training example may carry label 0. Validate cannot check
// this without scanning the whole label column, so UpdateGradients treats a
// zero label as a data error instead of silently dropping the example.
type MultinomialLoss struct {
	Config     Config
	NumClasses int // includes the OOV slot at index 0
}

func (l MultinomialLoss) Kind() Kind     { return MultinomialLogLikelihood }
func (l MultinomialLoss) Dimension() int { return l.NumClasses - 1 }

func (l MultinomialLoss) Validate(task Task, labelSpec dataset.ColumnSpec) error {
	if task != Classification {
		return fmt.Errorf("%w: multinomial log-likelihood requires a classification task, got %s", ErrConfiguration, task)
	}
	if labelSpec.Kind != dataset.Categorical {
		return fmt.Errorf("%w: multinomial log-likelihood requires a categorical label column", ErrConfiguration)
	}
	return nil
}

// InitialPredictions returns the zero vector of length K, per Friedman
// algorithm 6.
func (l MultinomialLoss) InitialPredictions(_ dataset.Dataset, _ int, _ []float32) ([]float32, error) {
	return make([]float32, l.Dimension()), nil
}

// softmaxRow computes p_k = exp(f_k) / Σ exp(f_m) for one row's K logits,
// stored contiguously at predictions[row*K : row*K+K]. Logits are shifted by
// their max before exponentiating so a uniform-but-large accumulator still
// yields a finite, correctly normalized distribution.
func softmaxRow(predictions []float32, row, k int) []float64 {
	maxLogit := math.Inf(-1)
	for c := 0; c < k; c++ {
		if v := float64(predictions[row*k+c]); v > maxLogit {
			maxLogit = v
		}
	}
	p := make([]float64, k)
	var sum float64
	for c := 0; c < k; c++ {
		p[c] = math.Exp(float64(predictions[row*k+c]) - maxLogit)
		sum += p[c]
	}
	for c := range p {
		p[c] /= sum
	}
	return p
}

func (l MultinomialLoss) UpdateGradients(ds dataset.Dataset, labelCol int, predictions []float32, _ *ranking.GroupIndex, gradients *GradientData, _ *rand.Rand) error {
	labels := ds.CategoricalColumn(labelCol)
	k := l.Dimension()
	gs := make([][]float64, k)
	hs := make([][]float64, k)
	for d := 0; d < k; d++ {
		gs[d] = gradients.Gradient(d)
		hs[d] = gradients.Hessian(d)
	}
	for row, label := range labels {
		if label == 0 {
			return fmt.Errorf("%w: OOV label 0 present in training data for multinomial loss at row %d", ErrData, row)
		}
		p := softmaxRow(predictions, row, k)
		for c := 0; c < k; c++ {
			indicator := 0.0
			if int(label) == c+1 {
				indicator = 1.0
			}
			g := indicator - p[c]
			gs[c][row] = g
			if hs[c] != nil {
				absG := math.Abs(g)
				hs[c][row] = absG * (1 - absG)
			}
		}
	}
	return nil
}

func (l MultinomialLoss) LeafSetter(d int, _ dataset.Dataset, _ []float32, gradients *GradientData, _ []float32) tree.LeafSetter {
	g := gradients.Gradient(d)
	h := gradients.Hessian(d)
	k := l.Dimension()
	cfg := l.Config
	return func(selected []uint64, leafWeights []float32, node *tree.Node) {
		var n, dd, w float64
		for i, row := range selected {
			wi := 1.0
			if leafWeights != nil {
				wi = float64(leafWeights[i])
			}
			n += wi * g[row]
			dd += wi * h[row]
			w += wi
		}
		n *= float64(k - 1)
		dd *= float64(k)
		if dd < 0.001 {
			dd = 0.001
		}
		leaf := cfg.Shrinkage * softThreshold(n, cfg.L1Regularization) / (dd + cfg.L2Regularization)
		leaf = clamp(leaf, cfg.ClampLeafLogit)
		node.Regressor.TopValue = float32(leaf)
		if cfg.UseHessianGain {
			node.Regressor.SumGradients = n
			node.Regressor.SumHessians = dd
			node.Regressor.SumWeights = w
		}
	}
}

// UpdatePredictions requires exactly Dimension() trees, one per class; tree
// d's row contribution lands at predictions[row*Dimension()+d].
func (l MultinomialLoss) UpdatePredictions(newTrees []tree.Tree, ds dataset.Dataset, predictions []float32) (float64, error) {
	k := l.Dimension()
	if len(newTrees) != k {
		return 0, fmt.Errorf("%w: multinomial log-likelihood expects %d trees per iteration, got %d", ErrInternal, k, len(newTrees))
	}
	n := int(ds.NumRows())
	if len(predictions) != n*k {
		return 0, fmt.Errorf("%w: predictions has %d entries, expected %d", ErrInternal, len(predictions), n*k)
	}
	var sumAbs float64
	accessor := func(row int) func(int) float32 { return featureAccessor(ds, row) }
	for d, t := range newTrees {
		for row := 0; row < n; row++ {
			reg := t.LeafRegressor(accessor(row))
			predictions[row*k+d] += reg.TopValue
			sumAbs += math.Abs(float64(reg.TopValue))
		}
	}
	return sumAbs / float64(n*k), nil
}

func (l MultinomialLoss) LossAndMetrics(ds dataset.Dataset, labelCol int, predictions []float32, weights []float32, _ *ranking.GroupIndex) (float64, []float64, error) {
	labels := ds.CategoricalColumn(labelCol)
	k := l.Dimension()
	sw := sumWeights(len(labels), weights)
	if sw <= 0 {
		return math.NaN(), []float64{math.NaN()}, nil
	}
	var sumLoss, correctW float64
	for row, label := range labels {
		p := softmaxRow(predictions, row, k)
		classIdx := int(label) - 1 // 0-based index into p
		if classIdx < 0 || classIdx >= k {
			return 0, nil, fmt.Errorf("%w: label %d out of range for %d classes", ErrData, label, k)
		}
		w := weightAt(weights, row)
		sumLoss += -w * math.Log(p[classIdx])

		argmax := 0
		for c := 1; c < k; c++ {
			if p[c] > p[argmax] {
				argmax = c
			}
		}
		if argmax == classIdx {
			correctW += w
		}
	}
	return sumLoss / sw, []float64{correctW / sw}, nil
}

func (l MultinomialLoss) SecondaryMetricNames() []string { return []string{"accuracy"} }
