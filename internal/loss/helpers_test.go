package loss

import (
	"math"
	"math/rand"
	"testing"

	"github.com/tarstars/gbdt_engine/internal/dataset"
	"github.com/tarstars/gbdt_engine/internal/tree"
)

func newBinaryDataset(t *testing.T, labels []uint32) dataset.Dataset {
	t.Helper()
	spec := dataset.DataSpec{Columns: []dataset.ColumnSpec{
		{Name: "label", Kind: dataset.Categorical, NumberOfUniqueValues: 3},
	}}
	ds := dataset.NewInMemory(spec, uint64(len(labels)))
	ds.SetCategorical(0, labels)
	return ds
}

func newRegressionDataset(t *testing.T, labels []float32) dataset.Dataset {
	t.Helper()
	spec := dataset.DataSpec{Columns: []dataset.ColumnSpec{
		{Name: "label", Kind: dataset.Numerical},
	}}
	ds := dataset.NewInMemory(spec, uint64(len(labels)))
	ds.SetNumerical(0, labels)
	return ds
}

func newMultinomialDataset(t *testing.T, labels []uint32, numClasses uint32) dataset.Dataset {
	t.Helper()
	spec := dataset.DataSpec{Columns: []dataset.ColumnSpec{
		{Name: "label", Kind: dataset.Categorical, NumberOfUniqueValues: numClasses},
	}}
	ds := dataset.NewInMemory(spec, uint64(len(labels)))
	ds.SetCategorical(0, labels)
	return ds
}

// leafValueTree is a one-leaf tree carrying a fixed prediction, used to drive
// UpdatePredictions without a real grower.
func leafValueTree(value float32) tree.Tree {
	t := tree.NewStumpTree()
	t.Nodes[0].Regressor.TopValue = value
	return t
}

func deterministicRNG() *rand.Rand {
	return rand.New(rand.NewSource(7))
}

func approxEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}
