package tree

// StumpGrower is the minimal possible tree-growing algorithm: every tree it
// grows is a single, unsplit leaf covering all rows. It exists only so the
// leaf-setter contract and the per-iteration training loop have something
// concrete to drive in tests and in the demo CLI — it is not a substitute
// for a real split-finder, which is out of scope for this repository.
// Production callers supply their own Grower.
type StumpGrower struct{}

// Grow builds a single no-split tree whose root leaf covers all numRows rows
// and invokes setLeaf once on that leaf. The trainer calls it once per
// gradient dimension.
func (StumpGrower) Grow(numRows uint64, weights []float32, setLeaf LeafSetter) Tree {
	t := NewStumpTree()
	selected := make([]uint64, numRows)
	for i := range selected {
		selected[i] = uint64(i)
	}
	setLeaf(selected, weights, &t.Nodes[0])
	return t
}
