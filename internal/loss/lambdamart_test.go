package loss

import (
	"errors"
	"testing"

	"github.com/tarstars/gbdt_engine/internal/dataset"
	"github.com/tarstars/gbdt_engine/internal/ranking"
)

func buildTwoItemGroup(t *testing.T, relevances []float32) (dataset.Dataset, *ranking.GroupIndex) {
	t.Helper()
	spec := dataset.DataSpec{Columns: []dataset.ColumnSpec{
		{Name: "label", Kind: dataset.Numerical},
		{Name: "group", Kind: dataset.Categorical, NumberOfUniqueValues: 2},
	}}
	ds := dataset.NewInMemory(spec, uint64(len(relevances)))
	ds.SetNumerical(0, relevances)
	groups := make([]uint32, len(relevances))
	for i := range groups {
		groups[i] = 1
	}
	ds.SetCategorical(1, groups)
	idx, err := ranking.BuildGroupIndex(ds, 0, 1)
	if err != nil {
		t.Fatalf("BuildGroupIndex: %v", err)
	}
	return ds, idx
}

func TestLambdaMartValidateRequiresRankingTask(t *testing.T) {
	l := LambdaMartNDCGLoss{Config: DefaultConfig()}
	if err := l.Validate(Regression, dataset.ColumnSpec{}); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestLambdaMartUpdateGradientsPushesHigherRelevanceUp(t *testing.T) {
	l := LambdaMartNDCGLoss{Config: DefaultConfig()}
	ds, idx := buildTwoItemGroup(t, []float32{2, 0})
	// Both examples start at the same prediction: the more relevant one
	// (example 0, relevance 2) must get a positive gradient push.
	predictions := []float32{0, 0}
	gd := NewGradientData(1, 2, true)
	if err := l.UpdateGradients(ds, 0, predictions, idx, gd, deterministicRNG()); err != nil {
		t.Fatalf("UpdateGradients: %v", err)
	}
	g := gd.Gradient(0)
	if g[0] <= 0 {
		t.Fatalf("higher-relevance example should get a positive gradient, got %v", g[0])
	}
	if g[1] >= 0 {
		t.Fatalf("lower-relevance example should get a negative gradient, got %v", g[1])
	}
}

func TestLambdaMartUpdateGradientsSkipsTiedRelevancePairs(t *testing.T) {
	l := LambdaMartNDCGLoss{Config: DefaultConfig()}
	ds, idx := buildTwoItemGroup(t, []float32{1, 1})
	predictions := []float32{0.3, -0.3}
	gd := NewGradientData(1, 2, true)
	if err := l.UpdateGradients(ds, 0, predictions, idx, gd, deterministicRNG()); err != nil {
		t.Fatalf("UpdateGradients: %v", err)
	}
	g := gd.Gradient(0)
	if g[0] != 0 || g[1] != 0 {
		t.Fatalf("tied-relevance pairs should contribute no gradient, got %v", g)
	}
}

func TestLambdaMartLossAndMetricsReportsNDCG(t *testing.T) {
	l := LambdaMartNDCGLoss{Config: DefaultConfig()}
	ds, idx := buildTwoItemGroup(t, []float32{2, 0})
	_ = ds
	predictions := []float32{5, -5} // matches relevance order exactly
	lossVal, metrics, err := l.LossAndMetrics(nil, 0, predictions, nil, idx)
	if err != nil {
		t.Fatalf("LossAndMetrics: %v", err)
	}
	if !approxEqual(metrics[0], 1.0, 1e-9) {
		t.Fatalf("NDCG for a perfectly ranked group = %v, want 1.0", metrics[0])
	}
	if !approxEqual(lossVal, -1.0, 1e-9) {
		t.Fatalf("loss should be -NDCG = -1.0, got %v", lossVal)
	}
}
