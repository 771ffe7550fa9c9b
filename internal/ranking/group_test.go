package ranking

import (
	"testing"

	"github.com/tarstars/gbdt_engine/internal/dataset"
)

func buildRankingDataset(t *testing.T, labels []float32, groups []uint32) dataset.Dataset {
	t.Helper()
	spec := dataset.DataSpec{Columns: []dataset.ColumnSpec{
		{Name: "label", Kind: dataset.Numerical},
		{Name: "group", Kind: dataset.Categorical, NumberOfUniqueValues: 3},
	}}
	ds := dataset.NewInMemory(spec, uint64(len(labels)))
	ds.SetNumerical(0, labels)
	ds.SetCategorical(1, groups)
	return ds
}

func TestBuildGroupIndexSortsByRelevanceThenGroupsRows(t *testing.T) {
	ds := buildRankingDataset(t, []float32{1, 3, 2, 0}, []uint32{1, 1, 2, 2})
	idx, err := BuildGroupIndex(ds, 0, 1)
	if err != nil {
		t.Fatalf("BuildGroupIndex: %v", err)
	}
	if len(idx.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(idx.Groups))
	}
	first := idx.Groups[0]
	if first.GroupID != 1 {
		t.Fatalf("expected first group to be group 1 (lowest first-item row index), got %d", first.GroupID)
	}
	if first.Items[0].Relevance != 3 || first.Items[1].Relevance != 1 {
		t.Fatalf("group 1 not sorted by descending relevance: %+v", first.Items)
	}
}

func TestBuildGroupIndexRejectsOversizedGroup(t *testing.T) {
	n := MaxGroupSize + 1
	labels := make([]float32, n)
	groups := make([]uint32, n)
	for i := range groups {
		groups[i] = 1
	}
	ds := buildRankingDataset(t, labels, groups)
	if _, err := BuildGroupIndex(ds, 0, 1); err == nil {
		t.Fatalf("expected an error for a group exceeding MaxGroupSize")
	}
}

func TestBuildGroupIndexRejectsNonGroupableColumn(t *testing.T) {
	spec := dataset.DataSpec{Columns: []dataset.ColumnSpec{
		{Name: "label", Kind: dataset.Numerical},
		{Name: "not_a_group", Kind: dataset.Numerical},
	}}
	ds := dataset.NewInMemory(spec, 2)
	ds.SetNumerical(0, []float32{1, 2})
	ds.SetNumerical(1, []float32{1, 2})
	if _, err := BuildGroupIndex(ds, 0, 1); err == nil {
		t.Fatalf("expected an error using a numerical column as the group key")
	}
}
