// Package ranking builds and serves the grouped, relevance-sorted view of a
// dataset that ranking losses and NDCG evaluation need.
package ranking

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tarstars/gbdt_engine/internal/dataset"
)

// MaxGroupSize is the hard cap on the number of items in a single ranking
// group. A dataset that violates it is a configuration error, not a
// recoverable one — the caller built the group column wrong.
const MaxGroupSize = 2000

// ErrGroupTooLarge is returned by BuildGroupIndex when a group exceeds
// MaxGroupSize items.
var ErrGroupTooLarge = errors.New("ranking: group exceeds maximum size")

// Item is one ranked example: its label-column relevance and its row index
// in the owning dataset.
type Item struct {
	Relevance  float32
	ExampleIdx uint64
}

// Group is one ranking group: all items sharing a group-column value, sorted
// by descending relevance (ties broken by descending example index).
type Group struct {
	GroupID uint64
	Items   []Item
}

// GroupIndex is the immutable, once-built structure ranking losses and NDCG
// evaluation consume: every dataset row belongs to exactly one group.
type GroupIndex struct {
	Groups   []Group
	NumItems uint64
}

// groupColumn extracts a group id per row from either a categorical or a
// hash column.
func groupColumn(ds dataset.Dataset, groupCol int) ([]uint64, error) {
	spec := ds.Spec()
	if groupCol < 0 || groupCol >= len(spec.Columns) {
		return nil, fmt.Errorf("ranking: group column index %d out of range", groupCol)
	}
	n := ds.NumRows()
	ids := make([]uint64, n)
	switch spec.Columns[groupCol].Kind {
	case dataset.Categorical:
		col := ds.CategoricalColumn(groupCol)
		for i := range ids {
			ids[i] = uint64(col[i])
		}
	case dataset.Hash:
		col := ds.HashColumn(groupCol)
		copy(ids, col)
	default:
		return nil, fmt.Errorf("ranking: group column %d must be categorical or hash, got %s", groupCol, spec.Columns[groupCol].Kind)
	}
	return ids, nil
}

// BuildGroupIndex partitions rows into groups by the group column, sorts
// each group's items by descending relevance (ties by descending example
// index), then sorts the groups by ascending first-item example index (ties
// by ascending group id).
func BuildGroupIndex(ds dataset.Dataset, labelCol, groupCol int) (*GroupIndex, error) {
	spec := ds.Spec()
	if labelCol < 0 || labelCol >= len(spec.Columns) || spec.Columns[labelCol].Kind != dataset.Numerical {
		return nil, fmt.Errorf("ranking: label column %d must be numerical", labelCol)
	}
	groupIDs, err := groupColumn(ds, groupCol)
	if err != nil {
		return nil, err
	}
	labels := ds.NumericalColumn(labelCol)

	numItems := ds.NumRows()
	byGroup := make(map[uint64][]Item)
	for row := uint64(0); row < numItems; row++ {
		gid := groupIDs[row]
		byGroup[gid] = append(byGroup[gid], Item{Relevance: labels[row], ExampleIdx: row})
	}

	groups := make([]Group, 0, len(byGroup))
	for gid, items := range byGroup {
		if len(items) > MaxGroupSize {
			return nil, fmt.Errorf("%w: group %d has %d items (max %d)", ErrGroupTooLarge, gid, len(items), MaxGroupSize)
		}
		sort.Slice(items, func(i, j int) bool {
			if items[i].Relevance != items[j].Relevance {
				return items[i].Relevance > items[j].Relevance
			}
			return items[i].ExampleIdx > items[j].ExampleIdx
		})
		groups = append(groups, Group{GroupID: gid, Items: items})
	}

	sort.Slice(groups, func(i, j int) bool {
		fi, fj := groups[i].Items[0].ExampleIdx, groups[j].Items[0].ExampleIdx
		if fi != fj {
			return fi < fj
		}
		return groups[i].GroupID < groups[j].GroupID
	})

	return &GroupIndex{Groups: groups, NumItems: numItems}, nil
}
