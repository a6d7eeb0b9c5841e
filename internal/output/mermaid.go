package output

import (
	"fmt"
	"strings"
	"unicode"

	"dagestimator/internal/engine/dag"
	"dagestimator/internal/engine/depgraph"
)

type MermaidGenerator struct{}

func NewMermaidGenerator() *MermaidGenerator {
	return &MermaidGenerator{}
}

func (m *MermaidGenerator) GenerateDAG(title string, g *dag.DAG) (string, error) {
	if g == nil {
		return "", fmt.Errorf("mermaid: nil dag")
	}
	return m.generate(dagView(title, g)), nil
}

func (m *MermaidGenerator) GenerateGraph(title string, g *depgraph.Graph) (string, error) {
	if g == nil {
		return "", fmt.Errorf("mermaid: nil dependency graph")
	}
	return m.generate(graphView(title, g)), nil
}

func (m *MermaidGenerator) generate(v view) string {
	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString(fmt.Sprintf("title: %s\n", escapeMermaidLabel(v.title)))
	b.WriteString("---\n")
	b.WriteString("flowchart TB\n")

	byClass := make(map[nodeClass][]string)
	for _, n := range v.nodes {
		label := strings.ReplaceAll(escapeMermaidLabel(n.label), "\\n", "<br/>")
		switch n.class {
		case classOperator:
			b.WriteString(fmt.Sprintf("  %s([\"%s\"])\n", n.id, label))
		case classCall:
			b.WriteString(fmt.Sprintf("  %s[[\"%s\"]]\n", n.id, label))
		default:
			b.WriteString(fmt.Sprintf("  %s[\"%s\"]\n", n.id, label))
		}
		byClass[n.class] = append(byClass[n.class], n.id)
	}

	b.WriteString("\n")
	for _, n := range v.nodes {
		for _, s := range n.succ {
			b.WriteString(fmt.Sprintf("  %s --> %s\n", n.id, v.nodes[s].id))
		}
	}

	classes := []struct {
		class nodeClass
		name  string
		style string
	}{
		{classOperator, "operatorNode", "fill:#efefef,stroke:#808080"},
		{classCall, "callNode", "fill:#fffbe6,stroke:#8a4f00"},
		{classTarget, "targetNode", "fill:#f7fbff,stroke:#4d6480,stroke-width:1px"},
		{classRoot, "rootNode", "fill:#ffecec,stroke:#cc0000,stroke-width:2px"},
	}
	for _, c := range classes {
		ids := byClass[c.class]
		if len(ids) == 0 {
			continue
		}
		b.WriteString(fmt.Sprintf("  classDef %s %s;\n", c.name, c.style))
		b.WriteString(fmt.Sprintf("  class %s %s;\n", strings.Join(ids, ","), c.name))
	}
	return b.String()
}

// SanitizeID turns a region path into a token safe for Mermaid ids and file
// names.
func SanitizeID(name string) string {
	if name == "" {
		return "m"
	}
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	out := b.String()
	if unicode.IsDigit(rune(out[0])) {
		return "m_" + out
	}
	return out
}

var mermaidEscaper = strings.NewReplacer("\"", "#quot;", "<", "#lt;", ">", "#gt;")

func escapeMermaidLabel(s string) string {
	return mermaidEscaper.Replace(s)
}
