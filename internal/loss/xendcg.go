package loss

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/tarstars/gbdt_engine/internal/dataset"
	"github.com/tarstars/gbdt_engine/internal/ranking"
	"github.com/tarstars/gbdt_engine/internal/tree"
)

// XeNdcgLoss implements the cross-entropy NDCG ranking loss: a softmax over
// each group's predictions, differentiated through three orders against a
// per-item gamma parameter.
type XeNdcgLoss struct {
	Config Config
}

func (XeNdcgLoss) Kind() Kind    { return XeNdcgMart }
func (XeNdcgLoss) Dimension() int { return 1 }

func (l XeNdcgLoss) Validate(task Task, _ dataset.ColumnSpec) error {
	if task != Ranking {
		return fmt.Errorf("%w: XE-NDCG requires a ranking task, got %s", ErrConfiguration, task)
	}
	return nil
}

func (l XeNdcgLoss) InitialPredictions(_ dataset.Dataset, _ int, _ []float32) ([]float32, error) {
	return []float32{0.0}, nil
}

// expRandSource adapts a *math/rand.Rand to golang.org/x/exp/rand.Source, as
// required by gonum's distuv package.
type expRandSource struct {
	*rand.Rand
}

func (s expRandSource) Seed(seed uint64) { s.Rand.Seed(int64(seed)) }

func (l XeNdcgLoss) initParams(n int, rng *rand.Rand) []float64 {
	params := make([]float64, n)
	if l.Config.XeNdcgGamma == GammaOne {
		for i := range params {
			params[i] = 1.0
		}
		return params
	}
	u := distuv.Uniform{Min: 0, Max: 1, Src: expRandSource{rng}}
	for i := range params {
		params[i] = u.Rand()
	}
	return params
}

func (l XeNdcgLoss) UpdateGradients(_ dataset.Dataset, _ int, predictions []float32, groupIndex *ranking.GroupIndex, gradients *GradientData, rng *rand.Rand) error {
	if groupIndex == nil {
		return fmt.Errorf("%w: XE-NDCG requires a ranking group index", ErrConfiguration)
	}
	g := gradients.Gradient(0)
	h := gradients.Hessian(0)

	for _, group := range groupIndex.Groups {
		n := len(group.Items)
		if n <= 1 {
			continue
		}

		params := l.initParams(n, rng)

		preds := make([]float64, n)
		maxPred := math.Inf(-1)
		for i, item := range group.Items {
			preds[i] = float64(predictions[item.ExampleIdx])
			if preds[i] > maxPred {
				maxPred = preds[i]
			}
		}
		p := make([]float64, n)
		var sumExp float64
		for i := range preds {
			p[i] = math.Exp(preds[i] - maxPred)
			sumExp += p[i]
		}
		for i := range p {
			p[i] = clampProbability(p[i] / (sumExp + 1e-20))
		}

		// First order.
		nu := make([]float64, n)
		var s float64
		for i, item := range group.Items {
			nu[i] = math.Exp2(float64(item.Relevance)) - params[i]
			s += nu[i]
		}
		if s == 0 {
			continue
		}
		rho := 1.0 / s

		gi := make([]float64, n)
		var l1 float64
		for i := range gi {
			term := -nu[i]*rho + p[i]
			gi[i] = -term
			params[i] = term / (1 - p[i])
			l1 += params[i]
		}

		// Second order.
		for i := range gi {
			t := p[i] * (l1 - params[i])
			gi[i] -= t
			params[i] = t / (1 - p[i])
		}
		var l2 float64
		for _, param := range params {
			l2 += param
		}

		// Third order & hessian.
		hi := make([]float64, n)
		for i := range gi {
			gi[i] -= p[i] * (l2 - params[i])
			hi[i] = p[i] * (1 - p[i])
		}

		for i, item := range group.Items {
			g[item.ExampleIdx] += gi[i]
			h[item.ExampleIdx] += hi[i]
		}
	}
	return nil
}

func clampProbability(p float64) float64 {
	const lo, hi = 1e-5, 0.99999
	if p < lo {
		return lo
	}
	if p > hi {
		return hi
	}
	return p
}

func (l XeNdcgLoss) LeafSetter(_ int, _ dataset.Dataset, _ []float32, gradients *GradientData, weights []float32) tree.LeafSetter {
	g := gradients.Gradient(0)
	h := gradients.Hessian(0)
	cfg := l.Config
	return func(selected []uint64, leafWeights []float32, node *tree.Node) {
		ndcgLeafValue(selected, leafWeights, g, h, cfg, node)
	}
}

func (l XeNdcgLoss) UpdatePredictions(newTrees []tree.Tree, ds dataset.Dataset, predictions []float32) (float64, error) {
	if len(newTrees) != 1 {
		return 0, fmt.Errorf("%w: XE-NDCG expects exactly 1 tree per iteration, got %d", ErrInternal, len(newTrees))
	}
	return applyUnivariateTree(newTrees[0], ds, predictions)
}

func (l XeNdcgLoss) LossAndMetrics(_ dataset.Dataset, _ int, predictions []float32, weights []float32, groupIndex *ranking.GroupIndex) (float64, []float64, error) {
	if groupIndex == nil {
		return math.NaN(), nil, nil
	}
	ndcg := groupIndex.NDCG(predictions, weights, ranking.DefaultTruncation)
	return -ndcg, nil, nil
}

func (l XeNdcgLoss) SecondaryMetricNames() []string { return nil }
