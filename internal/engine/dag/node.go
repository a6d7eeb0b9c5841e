package dag

import (
	"fmt"

	"dagestimator/internal/engine/ir"
	"dagestimator/internal/shared/util"
)

// NodeID indexes a node inside the arena of the graph that owns it.
type NodeID int

// NoNode marks an unset node reference.
const NoNode NodeID = -1

type NodeKind int

const (
	KindValue NodeKind = iota
	KindOperator
	KindCallSite
)

func (k NodeKind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindOperator:
		return "operator"
	case KindCallSite:
		return "call"
	default:
		return fmt.Sprintf("nodekind(%d)", int(k))
	}
}

// CallSummary carries the precomputed counters of a called routine.
type CallSummary struct {
	Callee string
	Width  int
	Depth  int
	Reads  int
	Writes int
}

// Node is a vertex of the instruction-level DAG. Edges point from a node to
// the nodes it uses; the reverse set records who uses it.
type Node struct {
	ID     NodeID
	Kind   NodeKind
	Name   string
	Opcode string
	Op     ir.Kind
	Type   ir.Type

	// Pair links a computed value to its defining operator and back.
	Pair NodeID
	// Target is the address value of a load or store operator.
	Target NodeID
	Call   *CallSummary

	succ util.OrderedSet[NodeID]
	pred util.OrderedSet[NodeID]
}

func (n *Node) Identity() NodeID { return n.ID }

func (n *Node) ResolvedName() string { return n.Name }

// Successors returns the nodes n uses, in link order.
func (n *Node) Successors() []NodeID { return n.succ.Items() }

// Predecessors returns the nodes that use n, in link order.
func (n *Node) Predecessors() []NodeID { return n.pred.Items() }

func (n *Node) HasSuccessor(id NodeID) bool { return n.succ.Has(id) }

// Label is the display form used by exporters.
func (n *Node) Label() string {
	switch n.Kind {
	case KindOperator:
		if n.Op == ir.KindStore {
			return n.Name
		}
		return n.Opcode + " " + n.Name
	case KindCallSite:
		return "call " + n.Name
	default:
		if n.Name == "" {
			return fmt.Sprintf("<unnamed #%d>", n.ID)
		}
		return n.Name
	}
}
