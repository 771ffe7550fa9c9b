// Package viz renders trained trees as graphviz figures, one PNG/SVG/JPG per
// tree in an ensemble.
package viz

import (
	"fmt"
	"path/filepath"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	"github.com/tarstars/gbdt_engine/internal/tree"
)

func nodeLabel(t tree.Tree, idx int) string {
	n := t.Nodes[idx]
	if n.IsLeaf() {
		if n.NoSplit {
			return fmt.Sprintf("leaf\nvalue=%.4g\n(no split)", n.Regressor.TopValue)
		}
		return fmt.Sprintf("leaf\nvalue=%.4g", n.Regressor.TopValue)
	}
	return fmt.Sprintf("f[%d] < %.4g", n.FeatureNumber, n.Threshold)
}

func draw(g *cgraph.Graph, t tree.Tree, idx int, parent *cgraph.Node) error {
	current, err := g.CreateNode(fmt.Sprintf("n%d", idx))
	if err != nil {
		return err
	}
	current.Set("label", nodeLabel(t, idx))
	if t.Nodes[idx].IsLeaf() {
		current.Set("shape", "box")
	}
	if parent != nil {
		if _, err := g.CreateEdge("", parent, current); err != nil {
			return err
		}
	}
	if !t.Nodes[idx].IsLeaf() {
		if err := draw(g, t, t.Nodes[idx].LeftIndex, current); err != nil {
			return err
		}
		if err := draw(g, t, t.Nodes[idx].RightIndex, current); err != nil {
			return err
		}
	}
	return nil
}

// RenderTree draws one tree as a graphviz graph. The caller is responsible
// for closing the returned Graphviz instance.
func RenderTree(t tree.Tree) (*graphviz.Graphviz, *cgraph.Graph, error) {
	gv := graphviz.New()
	graph, err := gv.Graph()
	if err != nil {
		return nil, nil, err
	}
	if err := draw(graph, t, 0, nil); err != nil {
		return nil, nil, err
	}
	return gv, graph, nil
}

// RenderEnsemble writes every tree of trees to dumpDir as
// "<prefix>_%05d.<format>".
func RenderEnsemble(trees []tree.Tree, dumpDir, prefix string, format graphviz.Format) error {
	for i, t := range trees {
		gv, graph, err := RenderTree(t)
		if err != nil {
			return fmt.Errorf("viz: tree %d: %w", i, err)
		}
		filename := filepath.Join(dumpDir, fmt.Sprintf("%s_%05d.%s", prefix, i, formatExt(format)))
		if err := gv.RenderFilename(graph, format, filename); err != nil {
			return fmt.Errorf("viz: tree %d: %w", i, err)
		}
		if err := gv.Close(); err != nil {
			return fmt.Errorf("viz: tree %d: %w", i, err)
		}
	}
	return nil
}

func formatExt(f graphviz.Format) string {
	switch f {
	case graphviz.PNG:
		return "png"
	case graphviz.SVG:
		return "svg"
	case graphviz.JPG:
		return "jpg"
	default:
		return "gv"
	}
}
