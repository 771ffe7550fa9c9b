// Package ensemble holds the trained model: an ordered tree list plus the
// header metadata needed to interpret it, and the task-specific inference
// switch over the five loss kinds.
package ensemble

import (
	"fmt"
	"math"

	"github.com/tarstars/gbdt_engine/internal/loss"
	"github.com/tarstars/gbdt_engine/internal/tree"
)

// Sentinel error kinds mirrored from the loss package; ensemble validation
// and inference raise the same three kinds so callers can type-switch once
// across the whole core.
var (
	ErrConfiguration = loss.ErrConfiguration
	ErrData          = loss.ErrData
	ErrInternal      = loss.ErrInternal
)

// Ensemble is the trained model: trees_per_iteration trees are appended per
// boosting round, in round-robin gradient-dimension order.
type Ensemble struct {
	Trees               []tree.Tree
	Loss                loss.Kind
	Task                loss.Task
	TreesPerIteration   uint32
	InitialPredictions  []float32
	ValidationLoss      *float32
	NumClasses          uint32 // classification only; includes the OOV slot
	RankingGroupColumn  int    // -1 unless Task == Ranking
}

// Prediction is the task-specific outbound shape PredictRow returns.
type Prediction struct {
	// Classification: len(Counts) == NumClasses, Counts[0] == 0 (OOV),
	// Sum == 1, PredictedClass is 1-based.
	Counts          []float64
	PredictedClass  int

	// Regression / Ranking: a single scalar.
	Value float64
}

// PredictRow evaluates every tree against one row's features (via featureAt,
// the same accessor shape tree.Tree.LeafRegressor already takes) and returns
// the task-specific outbound prediction shape.
func (e Ensemble) PredictRow(featureAt func(int) float32) (Prediction, error) {
	switch e.Loss {
	case loss.BinomialLogLikelihood:
		return e.predictBinomial(featureAt), nil
	case loss.MultinomialLogLikelihood:
		return e.predictMultinomial(featureAt)
	case loss.SquaredError:
		return e.predictScalar(featureAt), nil
	case loss.LambdaMartNDCG5, loss.XeNdcgMart:
		return e.predictScalar(featureAt), nil
	default:
		return Prediction{}, fmt.Errorf("%w: unknown loss kind %q", ErrInternal, e.Loss)
	}
}

func (e Ensemble) predictBinomial(featureAt func(int) float32) Prediction {
	acc := float64(e.InitialPredictions[0])
	for _, t := range e.Trees {
		acc += float64(t.LeafRegressor(featureAt).TopValue)
	}
	p := 1.0 / (1.0 + math.Exp(-acc))
	counts := make([]float64, 3)
	counts[1] = 1 - p
	counts[2] = p
	predicted := 1
	if p > 0.5 {
		predicted = 2
	}
	return Prediction{Counts: counts, PredictedClass: predicted}
}

func (e Ensemble) predictMultinomial(featureAt func(int) float32) (Prediction, error) {
	k := int(e.TreesPerIteration)
	if k <= 0 {
		return Prediction{}, fmt.Errorf("%w: multinomial ensemble has trees_per_iteration %d", ErrInternal, e.TreesPerIteration)
	}
	if len(e.Trees)%k != 0 {
		return Prediction{}, fmt.Errorf("%w: multinomial ensemble has %d trees, not a multiple of %d classes", ErrInternal, len(e.Trees), k)
	}
	acc := make([]float64, k)
	for t, tr := range e.Trees {
		acc[t%k] += float64(tr.LeafRegressor(featureAt).TopValue)
	}

	maxAcc := math.Inf(-1)
	for c := 0; c < k; c++ {
		if acc[c] > maxAcc {
			maxAcc = acc[c]
		}
	}
	var sumExp float64
	exp := make([]float64, k)
	for c := 0; c < k; c++ {
		exp[c] = math.Exp(acc[c] - maxAcc)
		sumExp += exp[c]
	}
	counts := make([]float64, k+1)
	argmax := 0
	for c := 0; c < k; c++ {
		counts[c+1] = exp[c] / sumExp
		if acc[c] > acc[argmax] {
			argmax = c
		}
	}
	return Prediction{Counts: counts, PredictedClass: argmax + 1}, nil
}

func (e Ensemble) predictScalar(featureAt func(int) float32) Prediction {
	acc := float64(e.InitialPredictions[0])
	for _, t := range e.Trees {
		acc += float64(t.LeafRegressor(featureAt).TopValue)
	}
	return Prediction{Value: acc}
}

// Validate checks every structural and task/loss consistency rule an
// ensemble must satisfy before it can be trusted for inference or saved.
func (e Ensemble) Validate() error {
	if e.TreesPerIteration == 0 {
		return fmt.Errorf("%w: trees_per_iteration must be positive", ErrConfiguration)
	}
	if len(e.Trees)%int(e.TreesPerIteration) != 0 {
		return fmt.Errorf("%w: %d trees is not a multiple of trees_per_iteration %d", ErrConfiguration, len(e.Trees), e.TreesPerIteration)
	}
	if uint32(len(e.InitialPredictions)) != e.TreesPerIteration {
		return fmt.Errorf("%w: initial_predictions has %d entries, expected trees_per_iteration %d", ErrConfiguration, len(e.InitialPredictions), e.TreesPerIteration)
	}
	expected, err := e.expectedInitialPredictionsSize()
	if err != nil {
		return err
	}
	if expected != int(e.TreesPerIteration) {
		return fmt.Errorf("%w: loss %q expects %d initial predictions, ensemble declares trees_per_iteration %d", ErrConfiguration, e.Loss, expected, e.TreesPerIteration)
	}
	for i, t := range e.Trees {
		for _, node := range t.Nodes {
			if node.IsLeaf() {
				continue
			}
			if node.FeatureNumber < 0 {
				return fmt.Errorf("%w: tree %d has a non-leaf node with no feature", ErrConfiguration, i)
			}
		}
	}
	if err := validateTaskLossPair(e.Task, e.Loss, int(e.NumClasses)); err != nil {
		return err
	}
	if e.Task == loss.Ranking && e.RankingGroupColumn < 0 {
		return fmt.Errorf("%w: ranking task requires a ranking group column", ErrConfiguration)
	}
	return nil
}

// expectedInitialPredictionsSize is the loss's gradient dimension K,
// independent of whatever the ensemble happens to declare — for
// MultinomialLogLikelihood that is NumClasses-1 (the OOV slot excluded);
// every other loss is univariate.
func (e Ensemble) expectedInitialPredictionsSize() (int, error) {
	switch e.Loss {
	case loss.BinomialLogLikelihood, loss.SquaredError, loss.LambdaMartNDCG5, loss.XeNdcgMart:
		return 1, nil
	case loss.MultinomialLogLikelihood:
		return int(e.NumClasses) - 1, nil
	default:
		return 0, fmt.Errorf("%w: unknown loss kind %q", ErrConfiguration, e.Loss)
	}
}

func validateTaskLossPair(task loss.Task, kind loss.Kind, numClasses int) error {
	switch kind {
	case loss.BinomialLogLikelihood, loss.MultinomialLogLikelihood:
		if task != loss.Classification {
			return fmt.Errorf("%w: loss %q requires a classification task, got %s", ErrConfiguration, kind, task)
		}
	case loss.SquaredError:
		if task != loss.Regression && task != loss.Ranking {
			return fmt.Errorf("%w: loss %q requires a regression or ranking task, got %s", ErrConfiguration, kind, task)
		}
	case loss.LambdaMartNDCG5, loss.XeNdcgMart:
		if task != loss.Ranking {
			return fmt.Errorf("%w: loss %q requires a ranking task, got %s", ErrConfiguration, kind, task)
		}
	default:
		return fmt.Errorf("%w: unknown loss kind %q", ErrConfiguration, kind)
	}
	if kind == loss.MultinomialLogLikelihood && numClasses < 3 {
		return fmt.Errorf("%w: multinomial log-likelihood requires at least 3 classes (OOV + 2), got %d", ErrConfiguration, numClasses)
	}
	return nil
}
