// Package dataset defines the columnar data contract the loss, ranking and
// ensemble packages train and predict against. Loading, sharding and
// on-disk formats belong to the caller; this package only fixes the shape a
// column must have to be usable by the core.
package dataset

import (
	"fmt"
	"log"
)

// ColumnKind identifies the storage type of a dataset column.
type ColumnKind int

const (
	// Numerical columns hold f32 values; NaN marks a missing value.
	Numerical ColumnKind = iota
	// Categorical columns hold u32 vocabulary indices; index 0 is OOV.
	Categorical
	// Hash columns hold u64 values with no reserved sentinel.
	Hash
)

func (k ColumnKind) String() string {
	switch k {
	case Numerical:
		return "NUMERICAL"
	case Categorical:
		return "CATEGORICAL"
	case Hash:
		return "HASH"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(k))
	}
}

// ColumnSpec describes one column of a DataSpec.
type ColumnSpec struct {
	Name string
	Kind ColumnKind
	// NumberOfUniqueValues includes the reserved OOV slot at index 0 and is
	// only meaningful for Categorical columns.
	NumberOfUniqueValues uint32
}

// DataSpec is the abstract description of every column in a Dataset.
type DataSpec struct {
	Columns []ColumnSpec
}

// Dataset is the columnar contract every loss and ranking-group operation
// consumes. Implementations are read-only: nothing in this repository ever
// mutates a column value.
type Dataset interface {
	NumRows() uint64
	Spec() DataSpec
	NumericalColumn(idx int) []float32
	CategoricalColumn(idx int) []uint32
	HashColumn(idx int) []uint64
}

// InMemory is the simplest concrete Dataset: every column already lives in a
// Go slice of the right typed shape. It exists as a lightweight stand-in for
// the sharded columnar dataset that a real training pipeline owns; the core
// packages never construct one themselves.
type InMemory struct {
	spec        DataSpec
	numRows     uint64
	numerical   map[int][]float32
	categorical map[int][]uint32
	hash        map[int][]uint64
}

// NewInMemory builds an InMemory dataset with the given spec and row count.
// Columns are attached afterward with SetNumerical/SetCategorical/SetHash.
func NewInMemory(spec DataSpec, numRows uint64) *InMemory {
	return &InMemory{
		spec:        spec,
		numRows:     numRows,
		numerical:   make(map[int][]float32),
		categorical: make(map[int][]uint32),
		hash:        make(map[int][]uint64),
	}
}

// SetNumerical attaches a numerical column. It panics if the column's kind
// or length disagree with the declared DataSpec: a caller wiring mistake,
// not a recoverable data error.
func (m *InMemory) SetNumerical(idx int, values []float32) {
	m.mustMatch(idx, Numerical, len(values))
	m.numerical[idx] = values
}

// SetCategorical attaches a categorical column.
func (m *InMemory) SetCategorical(idx int, values []uint32) {
	m.mustMatch(idx, Categorical, len(values))
	m.categorical[idx] = values
}

// SetHash attaches a hash column.
func (m *InMemory) SetHash(idx int, values []uint64) {
	m.mustMatch(idx, Hash, len(values))
	m.hash[idx] = values
}

func (m *InMemory) mustMatch(idx int, kind ColumnKind, length int) {
	if idx < 0 || idx >= len(m.spec.Columns) {
		log.Panicf("dataset: column index %d out of range", idx)
	}
	if got := m.spec.Columns[idx].Kind; got != kind {
		log.Panicf("dataset: column %d (%s) is %s, not %s", idx, m.spec.Columns[idx].Name, got, kind)
	}
	if uint64(length) != m.numRows {
		log.Panicf("dataset: column %d has %d rows, dataset has %d", idx, length, m.numRows)
	}
}

func (m *InMemory) NumRows() uint64  { return m.numRows }
func (m *InMemory) Spec() DataSpec   { return m.spec }
func (m *InMemory) NumericalColumn(idx int) []float32 {
	return m.numerical[idx]
}
func (m *InMemory) CategoricalColumn(idx int) []uint32 {
	return m.categorical[idx]
}
func (m *InMemory) HashColumn(idx int) []uint64 {
	return m.hash[idx]
}
