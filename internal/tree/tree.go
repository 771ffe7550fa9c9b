// Package tree defines the tree/leaf shapes the loss layer writes into and
// the ensemble layer reads predictions from. Growing a tree (choosing splits)
// is treated as an external collaborator, consumed only through the
// LeafSetter callback contract.
package tree

// Regressor is the numeric payload of a leaf: the scalar contribution it
// adds to a row's accumulated prediction, plus the optional Newton-step
// statistics used only under hessian-gain split scoring.
type Regressor struct {
	TopValue float32

	SumGradients float64
	SumHessians  float64
	SumWeights   float64
}

// Node is one node of a binary tree, stored flat in Tree.Nodes:
// LeftIndex/RightIndex are -1 on a leaf, and a leaf's numeric output lives
// in Regressor.
type Node struct {
	FeatureNumber int
	Threshold     float32

	LeftIndex  int
	RightIndex int

	// NoSplit marks a root that a real grower decided not to split at
	// all, e.g. because every candidate split reduced loss less than the
	// no-split baseline.
	NoSplit bool

	Regressor Regressor
}

// IsLeaf reports whether this node terminates a root-to-leaf path.
func (n Node) IsLeaf() bool {
	return n.LeftIndex == -1 && n.RightIndex == -1
}

// Tree is a binary regression tree stored as a flat node array rooted at
// index 0.
type Tree struct {
	Nodes []Node
}

// NewStumpTree builds a single-leaf (no-split) tree, the smallest tree the
// leaf-setter contract can produce.
func NewStumpTree() Tree {
	return Tree{Nodes: []Node{{FeatureNumber: -1, LeftIndex: -1, RightIndex: -1, NoSplit: true}}}
}

// LeafRegressor walks the tree for one row's feature values, returning the
// regressor of the leaf the row falls into.
func (t Tree) LeafRegressor(featureAt func(featureIdx int) float32) Regressor {
	idx := 0
	for !t.Nodes[idx].IsLeaf() {
		node := t.Nodes[idx]
		if featureAt(node.FeatureNumber) < node.Threshold {
			idx = node.LeftIndex
		} else {
			idx = node.RightIndex
		}
	}
	return t.Nodes[idx].Regressor
}

// LeafSetter is the callback contract for finalizing a leaf: when the
// external grower decides a leaf is done, it calls this closure with the row
// indices routed to that leaf, their per-row weights, and the node to fill
// in. The closure must set node.Regressor.TopValue and, under hessian-gain
// mode, the Sum{Gradients,Hessians,Weights} triple.
type LeafSetter func(selected []uint64, weights []float32, node *Node)
