package depgraph

import (
	"fmt"

	"dagestimator/internal/engine/dag"
	"dagestimator/internal/engine/ir"
)

// Reduce scans a locked DAG in id order and emits one dependency unit per
// memory write: the write target becomes a parentless node and the stored
// value's operand tree is copied beneath it. Loads collapse into the address they read,
// comparisons and call sites are dropped, and only pointer-typed values are
// admitted. The DAG moves to the reduced state and the returned graph is locked.
func Reduce(d *dag.DAG) *Graph {
	d.MustBeLocked("reduce")
	r := &reducer{dag: d, graph: newGraph()}
	for _, n := range d.Nodes() {
		if n.Kind == dag.KindOperator && n.Op == ir.KindStore {
			r.emitUnit(n)
		}
	}
	d.MarkReduced()
	r.graph.lock()
	return r.graph
}

type reducer struct {
	dag   *dag.DAG
	graph *Graph

	// unit is the target of the write currently being copied.
	unit *Node
	// expanded holds the operators whose operands were already copied
	// within the current unit.
	expanded map[int]bool
}

func (r *reducer) emitUnit(store *dag.Node) {
	if store.Target == dag.NoNode {
		panic(fmt.Sprintf("depgraph: store %q has no target", store.Name))
	}
	primary := r.addValue(r.dag.Node(store.Target), nil)
	if primary == nil {
		return
	}
	r.graph.primary = appendUnique(r.graph.primary, primary.ID)

	r.unit = primary
	r.expanded = make(map[int]bool)
	for _, operand := range store.Successors() {
		r.walk(r.dag.Node(operand), primary)
	}
	r.unit = nil
	r.expanded = nil
}

func (r *reducer) walk(n *dag.Node, parent *Node) {
	switch n.Kind {
	case dag.KindCallSite:
		return
	case dag.KindValue:
		if n.Pair != dag.NoNode {
			r.walk(r.dag.Node(n.Pair), parent)
			return
		}
		r.addValue(n, parent)
	case dag.KindOperator:
		switch n.Op {
		case ir.KindLoad:
			r.addValue(r.dag.Node(n.Target), parent)
		case ir.KindStore, ir.KindCompare:
			return
		default:
			op := r.graph.lookupOrAdd(operatorKey(n), KindOperator, n.Name, n.Opcode, n.ID)
			r.graph.link(parent, op)
			if r.expanded[op.ID] {
				return
			}
			r.expanded[op.ID] = true
			for _, operand := range n.Successors() {
				r.walk(r.dag.Node(operand), op)
			}
		}
	}
}

// addValue admits an addressable value, linking it under parent when given.
// A unit reading its own target is not linked to itself.
func (r *reducer) addValue(n *dag.Node, parent *Node) *Node {
	if !n.Type.IsPointer() {
		return nil
	}
	key := n.Name
	if key == "" {
		key = fmt.Sprintf("#%d", n.ID)
	}
	v := r.graph.lookupOrAdd(key, KindValue, n.Name, "", n.ID)
	if parent != nil && v != r.unit {
		r.graph.link(parent, v)
	}
	return v
}

func operatorKey(n *dag.Node) string {
	return "op:" + n.Opcode + ":" + n.Name
}

func appendUnique(ids []int, id int) []int {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
