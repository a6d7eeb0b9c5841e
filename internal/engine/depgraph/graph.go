// Package depgraph derives the variable dependency graph from a locked DAG
// and measures its width and depth.
package depgraph

import (
	"fmt"

	"dagestimator/internal/engine/dag"
	"dagestimator/internal/shared/util"
)

type NodeKind int

const (
	KindValue NodeKind = iota
	KindOperator
)

func (k NodeKind) String() string {
	if k == KindOperator {
		return "operator"
	}
	return "value"
}

// Node is a vertex of the reduced graph. Source points back at the DAG node
// it was derived from.
type Node struct {
	ID        int
	Kind      NodeKind
	Name      string
	Opcode    string
	Source    dag.NodeID
	Dependent bool

	succ util.OrderedSet[int]
}

func (n *Node) Successors() []int { return n.succ.Items() }

func (n *Node) HasDependents() bool { return n.succ.Len() > 0 }

func (n *Node) Label() string {
	if n.Kind == KindOperator {
		return n.Opcode + " " + n.Name
	}
	return n.Name
}

// Graph is the reduced dependency graph. It owns its own arena; nothing is
// shared with the DAG it came from.
type Graph struct {
	nodes   []*Node
	byKey   map[string]int
	primary []int
	edges   int
	state   dag.State
}

func newGraph() *Graph {
	return &Graph{byKey: make(map[string]int), state: dag.StateBuilding}
}

func (g *Graph) State() dag.State { return g.state }

func (g *Graph) Len() int { return len(g.nodes) }

func (g *Graph) EdgeCount() int { return g.edges }

func (g *Graph) Node(id int) *Node { return g.nodes[id] }

// Nodes returns the arena in id order. The slice must not be modified.
func (g *Graph) Nodes() []*Node { return g.nodes }

// WriteTargets returns the ids of every write target in the order units were emitted.
func (g *Graph) WriteTargets() []int { return g.primary }

func (g *Graph) lock() {
	if g.state != dag.StateBuilding {
		panic(fmt.Sprintf("depgraph: lock on a %s graph", g.state))
	}
	g.state = dag.StateLocked
}

func (g *Graph) mustBuild() {
	if g.state != dag.StateBuilding {
		panic(fmt.Sprintf("depgraph: mutation of a %s graph", g.state))
	}
}

// mustQuery guards the analyzer: queries are allowed once the graph is
// locked and may be repeated.
func (g *Graph) mustQuery(op string) {
	switch g.state {
	case dag.StateLocked:
		g.state = dag.StateAnalyzed
	case dag.StateAnalyzed:
	default:
		panic(fmt.Sprintf("depgraph: %s on a %s graph", op, g.state))
	}
}

// lookupOrAdd returns the node registered under key, creating it on first
// sight. The first registration wins.
func (g *Graph) lookupOrAdd(key string, kind NodeKind, name, opcode string, src dag.NodeID) *Node {
	g.mustBuild()
	if id, ok := g.byKey[key]; ok {
		return g.nodes[id]
	}
	n := &Node{ID: len(g.nodes), Kind: kind, Name: name, Opcode: opcode, Source: src}
	g.nodes = append(g.nodes, n)
	g.byKey[key] = n.ID
	return n
}

// link records that parent depends on child.
func (g *Graph) link(parent, child *Node) {
	g.mustBuild()
	if parent.succ.Add(child.ID) {
		g.edges++
	}
	child.Dependent = true
}
