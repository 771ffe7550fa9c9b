package dataset

import "testing"

func buildSpec() DataSpec {
	return DataSpec{Columns: []ColumnSpec{
		{Name: "x", Kind: Numerical},
		{Name: "cat", Kind: Categorical, NumberOfUniqueValues: 4},
		{Name: "h", Kind: Hash},
	}}
}

func TestInMemoryRoundTrip(t *testing.T) {
	ds := NewInMemory(buildSpec(), 3)
	ds.SetNumerical(0, []float32{1, 2, 3})
	ds.SetCategorical(1, []uint32{0, 1, 2})
	ds.SetHash(2, []uint64{10, 20, 30})

	if got := ds.NumRows(); got != 3 {
		t.Fatalf("NumRows() = %d, want 3", got)
	}
	if got := ds.NumericalColumn(0); got[1] != 2 {
		t.Fatalf("NumericalColumn(0)[1] = %v, want 2", got[1])
	}
	if got := ds.CategoricalColumn(1); got[2] != 2 {
		t.Fatalf("CategoricalColumn(1)[2] = %v, want 2", got[2])
	}
	if got := ds.HashColumn(2); got[0] != 10 {
		t.Fatalf("HashColumn(2)[0] = %v, want 10", got[0])
	}
}

func TestInMemorySetNumericalPanicsOnWrongKind(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic setting a numerical column onto a categorical slot")
		}
	}()
	ds := NewInMemory(buildSpec(), 3)
	ds.SetNumerical(1, []float32{1, 2, 3})
}

func TestInMemorySetNumericalPanicsOnLengthMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic setting a column with the wrong length")
		}
	}()
	ds := NewInMemory(buildSpec(), 3)
	ds.SetNumerical(0, []float32{1, 2})
}
