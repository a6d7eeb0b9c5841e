package output

import (
	"fmt"
	"strings"

	"dagestimator/internal/engine/dag"
	"dagestimator/internal/engine/depgraph"
)

type DOTGenerator struct{}

func NewDOTGenerator() *DOTGenerator {
	return &DOTGenerator{}
}

// GenerateDAG renders the instruction-level DAG of one region.
func (d *DOTGenerator) GenerateDAG(title string, g *dag.DAG) (string, error) {
	if g == nil {
		return "", fmt.Errorf("dot: nil dag")
	}
	return d.generate(dagView(title, g)), nil
}

// GenerateGraph renders the reduced dependency graph of one region.
func (d *DOTGenerator) GenerateGraph(title string, g *depgraph.Graph) (string, error) {
	if g == nil {
		return "", fmt.Errorf("dot: nil dependency graph")
	}
	return d.generate(graphView(title, g)), nil
}

func (d *DOTGenerator) generate(v view) string {
	var buf strings.Builder

	buf.WriteString("digraph region {\n")
	buf.WriteString(fmt.Sprintf("  label=\"%s\";\n", escapeDOT(v.title)))
	buf.WriteString("  labelloc=t;\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  node [shape=box, style=rounded, fontname=\"Helvetica\", fontsize=10];\n")
	buf.WriteString("  edge [fontname=\"Helvetica\", fontsize=8, penwidth=1.2];\n")
	buf.WriteString("  nodesep=0.4;\n\n")

	for _, n := range v.nodes {
		label := escapeDOT(n.label)
		switch n.class {
		case classOperator:
			buf.WriteString(fmt.Sprintf("  %s [label=\"%s\", shape=ellipse, color=\"grey\"];\n", n.id, label))
		case classCall:
			buf.WriteString(fmt.Sprintf("  %s [label=\"%s\", shape=component, fillcolor=\"lightyellow\", style=filled];\n", n.id, label))
		case classTarget:
			buf.WriteString(fmt.Sprintf("  %s [label=\"%s\", fillcolor=\"aliceblue\", style=\"rounded,filled\", color=\"steelblue\"];\n", n.id, label))
		case classRoot:
			buf.WriteString(fmt.Sprintf("  %s [label=\"%s\", fillcolor=\"mistyrose\", style=\"rounded,filled\", color=\"red\", penwidth=2.0];\n", n.id, label))
		default:
			buf.WriteString(fmt.Sprintf("  %s [label=\"%s\", color=\"darkslategrey\"];\n", n.id, label))
		}
	}
	buf.WriteString("\n")

	for _, n := range v.nodes {
		for _, s := range n.succ {
			buf.WriteString(fmt.Sprintf("  %s -> %s;\n", n.id, v.nodes[s].id))
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func escapeDOT(s string) string {
	return strings.ReplaceAll(s, "\"", "\\\"")
}
