// Package trainer drives the per-iteration training loop: it owns the
// running predictions vector and the growing tree list, and calls into
// loss.Loss and tree.Grower to do the actual numeric and structural work.
package trainer

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/tarstars/gbdt_engine/internal/dataset"
	"github.com/tarstars/gbdt_engine/internal/ensemble"
	"github.com/tarstars/gbdt_engine/internal/loss"
	"github.com/tarstars/gbdt_engine/internal/ranking"
	"github.com/tarstars/gbdt_engine/internal/telemetry"
	"github.com/tarstars/gbdt_engine/internal/tree"
)

// Trainer owns one training run: a fixed loss and grower, a training
// dataset, and an optional validation split. Its zero value is not usable;
// build one with New.
type Trainer struct {
	Loss   loss.Loss
	Task   loss.Task
	Grower tree.Grower

	Dataset     dataset.Dataset
	LabelColumn        int
	Weights            []float32
	GroupIndex         *ranking.GroupIndex
	RankingGroupColumn int // -1 unless Task == loss.Ranking

	ValidationDataset    dataset.Dataset
	ValidationWeights    []float32
	ValidationGroupIndex *ranking.GroupIndex

	Rng  *rand.Rand
	Sink telemetry.Sink

	runID              string
	predictions        []float32
	valPreds           []float32
	trees              []tree.Tree
	initial            []float32
	iteration          int
	lastValidationLoss float64 // NaN until Step runs with a ValidationDataset configured
}

// New validates the loss against the training task and label column and
// returns a Trainer ready to Step through iterations.
func New(t Trainer) (*Trainer, error) {
	if t.Loss == nil {
		return nil, fmt.Errorf("%w: trainer requires a Loss", ensemble.ErrConfiguration)
	}
	if t.Grower == nil {
		return nil, fmt.Errorf("%w: trainer requires a Grower", ensemble.ErrConfiguration)
	}
	if t.Dataset == nil {
		return nil, fmt.Errorf("%w: trainer requires a Dataset", ensemble.ErrConfiguration)
	}
	spec := t.Dataset.Spec()
	if t.LabelColumn < 0 || t.LabelColumn >= len(spec.Columns) {
		return nil, fmt.Errorf("%w: label column %d out of range", ensemble.ErrConfiguration, t.LabelColumn)
	}
	if err := t.Loss.Validate(t.Task, spec.Columns[t.LabelColumn]); err != nil {
		return nil, err
	}
	if t.Task == loss.Ranking && t.GroupIndex == nil {
		return nil, fmt.Errorf("%w: ranking task requires a group index", ensemble.ErrConfiguration)
	}
	if t.Rng == nil {
		t.Rng = rand.New(rand.NewSource(1))
	}
	if t.Sink == nil {
		t.Sink = telemetry.NopSink{}
	}

	initial, err := t.Loss.InitialPredictions(t.Dataset, t.LabelColumn, t.Weights)
	if err != nil {
		return nil, err
	}
	t.initial = initial
	t.predictions = broadcastInitial(initial, t.Dataset.NumRows())
	if t.ValidationDataset != nil {
		t.valPreds = broadcastInitial(initial, t.ValidationDataset.NumRows())
	}
	t.runID = telemetry.NewRunID()
	t.lastValidationLoss = nan()
	t.Sink.OnTrainingStart(t.runID, t.Dataset.NumRows(), string(t.Loss.Kind()))
	return &t, nil
}

func broadcastInitial(initial []float32, numRows uint64) []float32 {
	k := len(initial)
	out := make([]float32, int(numRows)*k)
	for row := 0; row < int(numRows); row++ {
		copy(out[row*k:row*k+k], initial)
	}
	return out
}

// usesHessian reports whether gradients allocated for this loss should carry
// a hessian plane. SquaredErrorLoss's Newton step is degenerate and never
// reads one.
func usesHessian(l loss.Loss) bool {
	_, isSquaredError := l.(loss.SquaredErrorLoss)
	return !isSquaredError
}

// IterationResult is what Step reports about the iteration it just ran.
type IterationResult struct {
	TrainLoss      float64
	TrainMetrics   []float64
	ValidationLoss float64 // NaN when no validation dataset is configured
}

// Step runs exactly one iteration of the training state machine: update
// gradients, grow trees_per_iteration trees, apply their update to
// predictions, then optionally evaluate on the validation split.
func (t *Trainer) Step() (IterationResult, error) {
	start := time.Now()
	k := t.Loss.Dimension()
	n := int(t.Dataset.NumRows())

	gradients := loss.NewGradientData(k, n, usesHessian(t.Loss))
	if err := t.Loss.UpdateGradients(t.Dataset, t.LabelColumn, t.predictions, t.GroupIndex, gradients, t.Rng); err != nil {
		return IterationResult{}, fmt.Errorf("update_gradients: %w", err)
	}

	newTrees := make([]tree.Tree, k)
	for d := 0; d < k; d++ {
		setLeaf := t.Loss.LeafSetter(d, t.Dataset, t.predictions, gradients, t.Weights)
		newTrees[d] = t.Grower.Grow(uint64(n), t.Weights, setLeaf)
	}

	if _, err := t.Loss.UpdatePredictions(newTrees, t.Dataset, t.predictions); err != nil {
		return IterationResult{}, fmt.Errorf("update_predictions: %w", err)
	}
	t.trees = append(t.trees, newTrees...)

	trainLoss, trainMetrics, err := t.Loss.LossAndMetrics(t.Dataset, t.LabelColumn, t.predictions, t.Weights, t.GroupIndex)
	if err != nil {
		return IterationResult{}, fmt.Errorf("loss_and_metrics: %w", err)
	}

	validationLoss := nan()
	if t.ValidationDataset != nil {
		if _, err := t.Loss.UpdatePredictions(newTrees, t.ValidationDataset, t.valPreds); err != nil {
			return IterationResult{}, fmt.Errorf("update_predictions (validation): %w", err)
		}
		validationLoss, _, err = t.Loss.LossAndMetrics(t.ValidationDataset, t.LabelColumn, t.valPreds, t.ValidationWeights, t.ValidationGroupIndex)
		if err != nil {
			return IterationResult{}, fmt.Errorf("loss_and_metrics (validation): %w", err)
		}
	}

	t.iteration++
	t.lastValidationLoss = validationLoss
	t.Sink.OnIteration(telemetry.IterationStats{
		RunID:          t.runID,
		Iteration:      t.iteration,
		TrainLoss:      trainLoss,
		ValidationLoss: validationLoss,
		Duration:       time.Since(start),
	})
	log.Printf("iteration %d: loss=%g", t.iteration, trainLoss)

	return IterationResult{TrainLoss: trainLoss, TrainMetrics: trainMetrics, ValidationLoss: validationLoss}, nil
}

// Run steps the trainer maxIterations times, stopping early if step returns
// an error. Termination policy beyond a fixed iteration count (early
// stopping) belongs to the caller.
func (t *Trainer) Run(maxIterations int) ([]IterationResult, error) {
	results := make([]IterationResult, 0, maxIterations)
	for i := 0; i < maxIterations; i++ {
		res, err := t.Step()
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	finalLoss := nan()
	if len(results) > 0 {
		finalLoss = results[len(results)-1].TrainLoss
	}
	t.Sink.OnTrainingEnd(t.runID, len(results), finalLoss)
	return results, nil
}

// Ensemble snapshots the trainer's current state into a persistable model.
func (t *Trainer) Ensemble() ensemble.Ensemble {
	var validationLoss *float32
	if t.ValidationDataset != nil {
		v := float32(t.lastValidationLoss)
		validationLoss = &v
	}
	numClasses := uint32(0)
	if ml, ok := t.Loss.(loss.MultinomialLoss); ok {
		numClasses = uint32(ml.NumClasses)
	}
	return ensemble.Ensemble{
		Trees:              append([]tree.Tree(nil), t.trees...),
		Loss:               t.Loss.Kind(),
		Task:               t.Task,
		TreesPerIteration:  uint32(t.Loss.Dimension()),
		InitialPredictions: t.initial,
		ValidationLoss:     validationLoss,
		NumClasses:         numClasses,
		RankingGroupColumn: t.RankingGroupColumn,
	}
}

func nan() float64 {
	var zero float64
	return zero / zero
}
