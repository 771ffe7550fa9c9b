package loss

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/tarstars/gbdt_engine/internal/dataset"
	"github.com/tarstars/gbdt_engine/internal/ranking"
	"github.com/tarstars/gbdt_engine/internal/tree"
)

// LambdaMartNDCGLoss implements the LambdaMART pairwise ranking loss: per
// group, every relevance-discordant pair of items contributes a lambda
// gradient proportional to the NDCG swap it would cause.
type LambdaMartNDCGLoss struct {
	Config Config
}

func (LambdaMartNDCGLoss) Kind() Kind    { return LambdaMartNDCG5 }
func (LambdaMartNDCGLoss) Dimension() int { return 1 }

func (l LambdaMartNDCGLoss) Validate(task Task, _ dataset.ColumnSpec) error {
	if task != Ranking {
		return fmt.Errorf("%w: LambdaMART-NDCG requires a ranking task, got %s", ErrConfiguration, task)
	}
	return nil
}

func (l LambdaMartNDCGLoss) InitialPredictions(_ dataset.Dataset, _ int, _ []float32) ([]float32, error) {
	return []float32{0.0}, nil
}

// rankedPair is one item as seen during lambda accumulation: its group-local
// original rank (position in the relevance-sorted Items slice), its dataset
// row, its relevance, and its current prediction.
type rankedPair struct {
	origRank int
	example  uint64
	relevance float32
	prediction float64
}

func (l LambdaMartNDCGLoss) UpdateGradients(_ dataset.Dataset, _ int, predictions []float32, groupIndex *ranking.GroupIndex, gradients *GradientData, rng *rand.Rand) error {
	if groupIndex == nil {
		return fmt.Errorf("%w: LambdaMART-NDCG requires a ranking group index", ErrConfiguration)
	}
	g := gradients.Gradient(0)
	h := gradients.Hessian(0)
	calc := ranking.NewNDCGCalculator(ranking.DefaultTruncation)
	lambda := l.Config.LambdaLoss

	for _, group := range groupIndex.Groups {
		items := make([]rankedPair, len(group.Items))
		for i, item := range group.Items {
			items[i] = rankedPair{
				origRank:   i,
				example:    item.ExampleIdx,
				relevance:  item.Relevance,
				prediction: float64(predictions[item.ExampleIdx]),
			}
		}

		z := 1.0
		if !l.Config.GradientUseNonNormalizedDCG {
			var maxDCG float64
			limit := len(items)
			if limit > ranking.DefaultTruncation {
				limit = ranking.DefaultTruncation
			}
			for r := 0; r < limit; r++ {
				maxDCG += calc.Term(items[r].relevance, r)
			}
			if maxDCG > 0 {
				z = 1.0 / maxDCG
			}
		}

		// Random tie-breaking: shuffle before the stable sort by
		// descending prediction.
		rng.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
		sort.SliceStable(items, func(i, j int) bool { return items[i].prediction > items[j].prediction })

		for a := 0; a < len(items); a++ {
			for b := a + 1; b < len(items); b++ {
				itemA, itemB := items[a], items[b]
				if itemA.relevance == itemB.relevance {
					continue
				}

				var termSwap float64
				if a < ranking.DefaultTruncation {
					termSwap += calc.Term(itemB.relevance, a) - calc.Term(itemA.relevance, a)
				}
				if b < ranking.DefaultTruncation {
					termSwap += calc.Term(itemA.relevance, b) - calc.Term(itemB.relevance, b)
				}
				deltaU := math.Abs(termSwap) * z

				signedLambda := lambda
				if itemA.origRank >= itemB.origRank {
					signedLambda = -lambda
				}

				rho := 1.0 / (1.0 + math.Exp(signedLambda*(itemA.prediction-itemB.prediction)))
				deltaG := signedLambda * rho * deltaU
				deltaH := deltaU * rho * (1 - rho) * lambda * lambda

				g[itemA.example] += deltaG
				h[itemA.example] += deltaH
				g[itemB.example] -= deltaG
				h[itemB.example] += deltaH
			}
		}
	}
	return nil
}

func (l LambdaMartNDCGLoss) LeafSetter(_ int, _ dataset.Dataset, _ []float32, gradients *GradientData, weights []float32) tree.LeafSetter {
	g := gradients.Gradient(0)
	h := gradients.Hessian(0)
	cfg := l.Config
	return func(selected []uint64, leafWeights []float32, node *tree.Node) {
		ndcgLeafValue(selected, leafWeights, g, h, cfg, node)
	}
}

// ndcgLeafValue is the shared leaf-value routine reused verbatim by
// XeNdcgLoss.
func ndcgLeafValue(selected []uint64, leafWeights []float32, g, h []float64, cfg Config, node *tree.Node) {
	var sumG, sumH, sumW float64
	for i, row := range selected {
		wi := 1.0
		if leafWeights != nil {
			wi = float64(leafWeights[i])
		}
		sumG += wi * g[row]
		sumH += wi * h[row]
		sumW += wi
	}
	denom := sumH
	if denom < 0.001 {
		denom = 0.001
	}
	leaf := cfg.Shrinkage * softThreshold(sumG, cfg.L1Regularization) / (denom + cfg.L2Regularization)
	node.Regressor.TopValue = float32(leaf)
	if cfg.UseHessianGain {
		node.Regressor.SumGradients = sumG
		node.Regressor.SumHessians = sumH
		node.Regressor.SumWeights = sumW
	}
}

func (l LambdaMartNDCGLoss) UpdatePredictions(newTrees []tree.Tree, ds dataset.Dataset, predictions []float32) (float64, error) {
	if len(newTrees) != 1 {
		return 0, fmt.Errorf("%w: LambdaMART-NDCG expects exactly 1 tree per iteration, got %d", ErrInternal, len(newTrees))
	}
	return applyUnivariateTree(newTrees[0], ds, predictions)
}

func (l LambdaMartNDCGLoss) LossAndMetrics(_ dataset.Dataset, _ int, predictions []float32, weights []float32, groupIndex *ranking.GroupIndex) (float64, []float64, error) {
	if groupIndex == nil {
		return math.NaN(), []float64{math.NaN()}, nil
	}
	ndcg := groupIndex.NDCG(predictions, weights, ranking.DefaultTruncation)
	return -ndcg, []float64{ndcg}, nil
}

func (l LambdaMartNDCGLoss) SecondaryMetricNames() []string { return []string{"NDCG@5"} }
