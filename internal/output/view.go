package output

import (
	"fmt"

	"dagestimator/internal/engine/dag"
	"dagestimator/internal/engine/depgraph"
)

type nodeClass int

const (
	classValue nodeClass = iota
	classOperator
	classCall
	classTarget
	classRoot
)

type viewNode struct {
	id    string
	label string
	class nodeClass
	succ  []int
}

// view is the exporter-neutral form of a DAG or a reduced graph: one entry
// per arena node, edges pointing from user to used.
type view struct {
	title string
	nodes []viewNode
}

func dagView(title string, d *dag.DAG) view {
	v := view{title: title, nodes: make([]viewNode, 0, d.Len())}
	for _, n := range d.Nodes() {
		vn := viewNode{id: fmt.Sprintf("n%d", n.ID), label: n.Label()}
		switch n.Kind {
		case dag.KindOperator:
			vn.class = classOperator
		case dag.KindCallSite:
			vn.class = classCall
			if n.Call != nil {
				vn.label = fmt.Sprintf("%s\\nw=%d d=%d", vn.label, n.Call.Width, n.Call.Depth)
			}
		}
		for _, s := range n.Successors() {
			vn.succ = append(vn.succ, int(s))
		}
		v.nodes = append(v.nodes, vn)
	}
	return v
}

// graphView marks write targets and the measured root. The graph must be
// locked.
func graphView(title string, g *depgraph.Graph) view {
	v := view{title: title, nodes: make([]viewNode, 0, g.Len())}
	for _, n := range g.Nodes() {
		vn := viewNode{id: fmt.Sprintf("v%d", n.ID), label: n.Label(), succ: n.Successors()}
		if n.Kind == depgraph.KindOperator {
			vn.class = classOperator
		}
		v.nodes = append(v.nodes, vn)
	}
	for _, id := range g.WriteTargets() {
		v.nodes[id].class = classTarget
	}
	if root, ok := depgraph.FindRoot(g); ok {
		v.nodes[root.ID].class = classRoot
	}
	return v
}
