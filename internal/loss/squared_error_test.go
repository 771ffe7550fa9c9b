package loss

import (
	"errors"
	"testing"

	"github.com/tarstars/gbdt_engine/internal/dataset"
	"github.com/tarstars/gbdt_engine/internal/tree"
)

func TestSquaredErrorValidateAcceptsRegressionAndRanking(t *testing.T) {
	l := SquaredErrorLoss{Config: DefaultConfig(), Task: Regression}
	if err := l.Validate(Regression, dataset.ColumnSpec{}); err != nil {
		t.Fatalf("Validate(Regression): %v", err)
	}
	if err := l.Validate(Ranking, dataset.ColumnSpec{}); err != nil {
		t.Fatalf("Validate(Ranking): %v", err)
	}
	if err := l.Validate(Classification, dataset.ColumnSpec{}); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for Classification, got %v", err)
	}
}

func TestSquaredErrorInitialPredictionsIsWeightedMean(t *testing.T) {
	l := SquaredErrorLoss{Config: DefaultConfig(), Task: Regression}
	ds := newRegressionDataset(t, []float32{1, 2, 3})
	initial, err := l.InitialPredictions(ds, 0, nil)
	if err != nil {
		t.Fatalf("InitialPredictions: %v", err)
	}
	if !approxEqual(float64(initial[0]), 2.0, 1e-6) {
		t.Fatalf("mean of [1,2,3] should be 2, got %v", initial[0])
	}
}

func TestSquaredErrorUpdateGradientsIsResidual(t *testing.T) {
	l := SquaredErrorLoss{Config: DefaultConfig(), Task: Regression}
	ds := newRegressionDataset(t, []float32{5, -3})
	predictions := []float32{2, 2}
	gd := NewGradientData(1, 2, false)
	if err := l.UpdateGradients(ds, 0, predictions, nil, gd, deterministicRNG()); err != nil {
		t.Fatalf("UpdateGradients: %v", err)
	}
	g := gd.Gradient(0)
	if !approxEqual(g[0], 3, 1e-9) || !approxEqual(g[1], -5, 1e-9) {
		t.Fatalf("residuals = %v, want [3, -5]", g)
	}
}

func TestSquaredErrorLossAndMetricsIsRMSE(t *testing.T) {
	l := SquaredErrorLoss{Config: DefaultConfig(), Task: Regression}
	ds := newRegressionDataset(t, []float32{0, 0})
	predictions := []float32{3, 4}
	lossVal, metrics, err := l.LossAndMetrics(ds, 0, predictions, nil, nil)
	if err != nil {
		t.Fatalf("LossAndMetrics: %v", err)
	}
	want := 3.5355339059327378 // sqrt((9+16)/2)
	if !approxEqual(lossVal, want, 1e-9) {
		t.Fatalf("RMSE = %v, want %v", lossVal, want)
	}
	if metrics[0] != lossVal {
		t.Fatalf("SecondaryMetricNames()[0]=rmse should equal the loss value")
	}
}

func TestSquaredErrorUpdatePredictionsRejectsWrongTreeCount(t *testing.T) {
	l := SquaredErrorLoss{Config: DefaultConfig(), Task: Regression}
	ds := newRegressionDataset(t, []float32{1})
	if _, err := l.UpdatePredictions([]tree.Tree{leafValueTree(1), leafValueTree(1)}, ds, []float32{0}); !errors.Is(err, ErrInternal) {
		t.Fatalf("expected ErrInternal for 2 trees, got %v", err)
	}
}
