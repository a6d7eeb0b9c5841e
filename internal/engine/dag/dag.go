package dag

import "fmt"

// State is the lifecycle shared by the DAG and the reduced graph.
type State int

const (
	StateUninitialized State = iota
	StateBuilding
	StateLocked
	StateReduced
	StateAnalyzed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateBuilding:
		return "building"
	case StateLocked:
		return "locked"
	case StateReduced:
		return "reduced"
	case StateAnalyzed:
		return "analyzed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DAG owns a flat table of nodes keyed by increasing id.
type DAG struct {
	nodes []*Node
	edges int
	state State
}

func (d *DAG) newNode(kind NodeKind) *Node {
	n := &Node{ID: NodeID(len(d.nodes)), Kind: kind, Pair: NoNode, Target: NoNode}
	d.nodes = append(d.nodes, n)
	return n
}

// link adds from -> to and the reverse edge. Repeated links are no-ops.
func (d *DAG) link(from, to NodeID) {
	if d.nodes[from].succ.Add(to) {
		d.nodes[to].pred.Add(from)
		d.edges++
	}
}

func (d *DAG) State() State { return d.state }

func (d *DAG) Len() int { return len(d.nodes) }

func (d *DAG) EdgeCount() int { return d.edges }

func (d *DAG) Node(id NodeID) *Node { return d.nodes[id] }

// Nodes returns the arena in id order. The slice must not be modified.
func (d *DAG) Nodes() []*Node { return d.nodes }

// CallSites returns the call-site annotations in creation order.
func (d *DAG) CallSites() []*Node {
	var out []*Node
	for _, n := range d.nodes {
		if n.Kind == KindCallSite {
			out = append(out, n)
		}
	}
	return out
}

// MustBeLocked panics unless the DAG has been locked.
func (d *DAG) MustBeLocked(op string) {
	if d.state != StateLocked {
		panic(fmt.Sprintf("dag: %s requires a locked DAG, state is %s", op, d.state))
	}
}

// MarkReduced records that a reduced graph was derived from d.
func (d *DAG) MarkReduced() {
	d.MustBeLocked("reduce")
	d.state = StateReduced
}
