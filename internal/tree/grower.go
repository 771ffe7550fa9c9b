package tree

// Grower is the external collaborator tree growing is delegated to: the
// trainer calls Grow once per gradient dimension per iteration and hands it
// the LeafSetter closure the loss produced for that dimension. StumpGrower is
// the only implementation this repository ships; a real split-finder is out
// of scope.
type Grower interface {
	Grow(numRows uint64, weights []float32, setLeaf LeafSetter) Tree
}
