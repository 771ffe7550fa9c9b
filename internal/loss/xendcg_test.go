package loss

import (
	"errors"
	"testing"

	"github.com/tarstars/gbdt_engine/internal/dataset"
)

func TestXeNdcgValidateRequiresRankingTask(t *testing.T) {
	l := XeNdcgLoss{Config: DefaultConfig()}
	if err := l.Validate(Classification, dataset.ColumnSpec{}); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestXeNdcgUpdateGradientsSkipsSingletonGroups(t *testing.T) {
	l := XeNdcgLoss{Config: DefaultConfig()}
	ds, idx := buildTwoItemGroup(t, []float32{1})
	predictions := []float32{0}
	gd := NewGradientData(1, 1, true)
	if err := l.UpdateGradients(ds, 0, predictions, idx, gd, deterministicRNG()); err != nil {
		t.Fatalf("UpdateGradients: %v", err)
	}
	if gd.Gradient(0)[0] != 0 {
		t.Fatalf("a singleton group should contribute no gradient, got %v", gd.Gradient(0)[0])
	}
}

func TestXeNdcgUpdateGradientsProducesFiniteHessian(t *testing.T) {
	cfg := DefaultConfig()
	cfg.XeNdcgGamma = GammaOne
	l := XeNdcgLoss{Config: cfg}
	ds, idx := buildTwoItemGroup(t, []float32{2, 0})
	predictions := []float32{0.1, -0.1}
	gd := NewGradientData(1, 2, true)
	if err := l.UpdateGradients(ds, 0, predictions, idx, gd, deterministicRNG()); err != nil {
		t.Fatalf("UpdateGradients: %v", err)
	}
	h := gd.Hessian(0)
	for i, v := range h {
		if v < 0 || v > 0.25 {
			t.Fatalf("hessian[%d] = %v, want in [0, 0.25] (p*(1-p) range)", i, v)
		}
	}
}

func TestXeNdcgSecondaryMetricNamesIsEmpty(t *testing.T) {
	l := XeNdcgLoss{Config: DefaultConfig()}
	if got := l.SecondaryMetricNames(); len(got) != 0 {
		t.Fatalf("expected no secondary metrics, got %v", got)
	}
}

func TestXeNdcgLossAndMetricsReportsNegativeNDCG(t *testing.T) {
	l := XeNdcgLoss{Config: DefaultConfig()}
	_, idx := buildTwoItemGroup(t, []float32{2, 0})
	predictions := []float32{5, -5}
	lossVal, _, err := l.LossAndMetrics(nil, 0, predictions, nil, idx)
	if err != nil {
		t.Fatalf("LossAndMetrics: %v", err)
	}
	if !approxEqual(lossVal, -1.0, 1e-9) {
		t.Fatalf("loss for a perfectly ranked group = %v, want -1.0", lossVal)
	}
}
