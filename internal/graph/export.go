package graph

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExportDOT generates a Graphviz DOT representation of the graph.
func ExportDOT(g *Graph) string {
	var b strings.Builder
	b.WriteString("digraph build {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [fontname=\"Helvetica\"];\n")
	b.WriteString("  edge [fontname=\"Helvetica\" fontsize=10];\n\n")

	// Group nodes by target using subgraphs
	order, byTarget := groupByTarget(g)
	for _, target := range order {
		b.WriteString(fmt.Sprintf("  subgraph cluster_%s {\n", sanitizeID(target)))
		b.WriteString(fmt.Sprintf("    label=%q;\n", target))
		b.WriteString("    style=dashed;\n")
		b.WriteString("    color=\"#58a6ff\";\n")
		for _, n := range byTarget[target] {
			b.WriteString(fmt.Sprintf("    %q [label=%q shape=%s style=filled fillcolor=\"%s\"];\n",
				n.ID, n.Name, nodeShape(n.Kind), nodeColor(n.Kind)))
		}
		b.WriteString("  }\n\n")
	}

	for _, e := range g.Edges {
		label := ""
		if e.Label != "" {
			label = fmt.Sprintf(" label=%q", e.Label)
		}
		b.WriteString(fmt.Sprintf("  %q -> %q [style=%s color=\"%s\"%s];\n",
			e.From, e.To, edgeStyle(e.Kind), edgeColor(e.Kind), label))
	}

	b.WriteString("}\n")
	return b.String()
}

// ExportMermaid generates a Mermaid diagram of the graph.
func ExportMermaid(g *Graph) string {
	var b strings.Builder
	b.WriteString("graph LR\n")

	order, byTarget := groupByTarget(g)
	for _, target := range order {
		b.WriteString(fmt.Sprintf("  subgraph %s\n", sanitizeID(target)))
		for _, n := range byTarget[target] {
			b.WriteString(fmt.Sprintf("    %s%s\n", sanitizeID(n.ID), mermaidNodeShape(n)))
		}
		b.WriteString("  end\n")
	}

	for _, e := range g.Edges {
		label := ""
		if e.Label != "" {
			label = "|" + e.Label + "|"
		}
		b.WriteString(fmt.Sprintf("  %s %s%s %s\n",
			sanitizeID(e.From), mermaidArrow(e.Kind), label, sanitizeID(e.To)))
	}

	return b.String()
}

// ExportJSON serializes the graph to JSON.
func ExportJSON(g *Graph) ([]byte, error) {
	return json.MarshalIndent(g, "", "  ")
}

// FormatStats returns a human-readable summary of graph statistics.
func FormatStats(g *Graph) string {
	var b strings.Builder
	b.WriteString("Build Graph Statistics\n")
	b.WriteString("======================\n\n")
	b.WriteString(fmt.Sprintf("Nodes:       %d total\n", g.Stats.TotalNodes))
	b.WriteString(fmt.Sprintf("  Targets:   %d\n", g.Stats.TargetCount))
	b.WriteString(fmt.Sprintf("  Sources:   %d\n", g.Stats.SourceCount))
	b.WriteString(fmt.Sprintf("  Tasks:     %d\n", g.Stats.TaskCount))
	b.WriteString(fmt.Sprintf("  Artifacts: %d\n", g.Stats.ArtifactCount))
	b.WriteString(fmt.Sprintf("Edges:       %d total\n", g.Stats.TotalEdges))
	b.WriteString(fmt.Sprintf("Compiled:    %d\n", g.Stats.CompiledCount))
	return b.String()
}

// groupByTarget keeps targets and nodes in first-seen order so exports
// are stable.
func groupByTarget(g *Graph) ([]string, map[string][]Node) {
	var order []string
	byTarget := make(map[string][]Node)
	for _, n := range g.Nodes {
		if _, ok := byTarget[n.Target]; !ok {
			order = append(order, n.Target)
		}
		byTarget[n.Target] = append(byTarget[n.Target], n)
	}
	return order, byTarget
}

func sanitizeID(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, s)
}

func nodeShape(kind NodeKind) string {
	switch kind {
	case NodeTarget:
		return "box3d"
	case NodeTask:
		return "box"
	case NodeSource:
		return "note"
	case NodeArtifact:
		return "folder"
	default:
		return "box"
	}
}

func nodeColor(kind NodeKind) string {
	switch kind {
	case NodeTarget:
		return "#1f6feb"
	case NodeTask:
		return "#238636"
	case NodeSource:
		return "#8957e5"
	case NodeArtifact:
		return "#d29922"
	default:
		return "#30363d"
	}
}

func edgeStyle(kind EdgeKind) string {
	switch kind {
	case EdgeHasSource:
		return "dashed"
	case EdgeConsumes:
		return "solid"
	case EdgeProduces:
		return "bold"
	case EdgeCompiles:
		return "dotted"
	default:
		return "solid"
	}
}

func edgeColor(kind EdgeKind) string {
	switch kind {
	case EdgeHasSource:
		return "#8b949e"
	case EdgeConsumes:
		return "#3fb950"
	case EdgeProduces:
		return "#d29922"
	case EdgeCompiles:
		return "#f85149"
	default:
		return "#c9d1d9"
	}
}

func mermaidNodeShape(n Node) string {
	name := strings.ReplaceAll(n.Name, `"`, "#quot;")
	switch n.Kind {
	case NodeTarget:
		return fmt.Sprintf("[[\"%s\"]]", name)
	case NodeTask:
		return fmt.Sprintf("[\"%s\"]", name)
	case NodeSource:
		return fmt.Sprintf("([\"%s\"])", name)
	case NodeArtifact:
		return fmt.Sprintf("[(\"%s\")]", name)
	default:
		return fmt.Sprintf("[\"%s\"]", name)
	}
}

func mermaidArrow(kind EdgeKind) string {
	switch kind {
	case EdgeHasSource:
		return "-.->"
	case EdgeConsumes:
		return "-->"
	case EdgeProduces:
		return "==>"
	case EdgeCompiles:
		return "-..->"
	default:
		return "-->"
	}
}
