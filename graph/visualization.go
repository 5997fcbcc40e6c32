package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/smallnest/nodeflow/node"
)

// Exporter provides methods to export graphs in different formats
type Exporter struct {
	graph *node.Graph
}

// NewExporter creates a new graph exporter for the given graph
func NewExporter(g *node.Graph) *Exporter {
	return &Exporter{graph: g}
}

// MermaidOptions defines configuration for Mermaid diagram generation
type MermaidOptions struct {
	// Direction of the flowchart (e.g., "TD", "LR")
	Direction string
	// PortLabels labels each edge with "fromPort -> toPort".
	PortLabels bool
}

// DrawMermaid renders g as a Mermaid flowchart.
func DrawMermaid(g *node.Graph) string {
	return NewExporter(g).DrawMermaid()
}

// DrawMermaid generates a Mermaid diagram representation of the graph
func (ge *Exporter) DrawMermaid() string {
	return ge.DrawMermaidWithOptions(MermaidOptions{
		Direction:  "TD",
		PortLabels: true,
	})
}

// DrawMermaidWithOptions generates a Mermaid diagram with custom options
func (ge *Exporter) DrawMermaidWithOptions(opts MermaidOptions) string {
	var sb strings.Builder

	direction := opts.Direction
	if direction == "" {
		direction = "TD"
	}
	sb.WriteString(fmt.Sprintf("flowchart %s\n", direction))
	ge.writeMermaid(&sb, ge.graph, "", "    ", opts)
	return sb.String()
}

func (ge *Exporter) writeMermaid(sb *strings.Builder, g *node.Graph, scope, indent string, opts MermaidOptions) {
	if g == nil {
		return
	}
	var inputs []string
	for _, n := range g.Nodes {
		id := mermaidID(scope, n.ID)
		switch {
		case n.Payload.Kind == node.SubGraphPayload:
			sb.WriteString(fmt.Sprintf("%ssubgraph %s[\"%s\"]\n", indent, id, escape(n.Label())))
			ge.writeMermaid(sb, n.Payload.Graph, id, indent+"    ", opts)
			sb.WriteString(indent + "end\n")
		case n.IsInput():
			sb.WriteString(fmt.Sprintf("%s%s[/\"%s\"/]\n", indent, id, escape(n.Label())))
			inputs = append(inputs, id)
		default:
			sb.WriteString(fmt.Sprintf("%s%s[\"%s\"]\n", indent, id, escape(n.Label())))
		}
	}

	for _, c := range g.Connections {
		from, to := mermaidID(scope, c.FromNodeID), mermaidID(scope, c.ToNodeID)
		if opts.PortLabels {
			sb.WriteString(fmt.Sprintf("%s%s -->|%s| %s\n", indent, from, escape(c.FromPortName+" -> "+c.ToPortName), to))
		} else {
			sb.WriteString(fmt.Sprintf("%s%s --> %s\n", indent, from, to))
		}
	}

	for _, id := range inputs {
		sb.WriteString(fmt.Sprintf("%sstyle %s fill:#87CEEB\n", indent, id))
	}
}

// DrawDOT generates a DOT (Graphviz) representation of the graph
func (ge *Exporter) DrawDOT() string {
	var sb strings.Builder

	sb.WriteString("digraph G {\n")
	sb.WriteString("    rankdir=TD;\n")
	sb.WriteString("    node [shape=box];\n")

	if ge.graph != nil {
		for _, n := range ge.graph.Nodes {
			attrs := fmt.Sprintf("label=%q", n.Label())
			switch {
			case n.IsInput():
				attrs += ", shape=parallelogram, style=filled, fillcolor=lightblue"
			case n.Payload.Kind == node.SubGraphPayload:
				attrs += ", shape=box3d"
			}
			sb.WriteString(fmt.Sprintf("    %q [%s];\n", n.ID, attrs))
		}
		for _, c := range ge.graph.Connections {
			sb.WriteString(fmt.Sprintf("    %q -> %q [label=%q];\n", c.FromNodeID, c.ToNodeID, c.FromPortName+" -> "+c.ToPortName))
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}

// DrawASCII generates an ASCII tree of the graph, starting from nodes
// without incoming connections.
func (ge *Exporter) DrawASCII() string {
	if ge.graph == nil || len(ge.graph.Nodes) == 0 {
		return "Empty graph\n"
	}

	var roots []string
	for _, n := range ge.graph.Nodes {
		if len(ge.graph.Incoming(n.ID)) == 0 {
			roots = append(roots, n.ID)
		}
	}
	sort.Strings(roots)

	var sb strings.Builder
	visited := make(map[string]bool)
	sb.WriteString("Graph Execution Flow:\n")
	for i, id := range roots {
		ge.drawASCIINode(id, "", i == len(roots)-1, visited, &sb)
	}
	return sb.String()
}

// drawASCIINode recursively draws ASCII representation of nodes
func (ge *Exporter) drawASCIINode(id string, prefix string, isLast bool, visited map[string]bool, sb *strings.Builder) {
	connector := "├──"
	nextPrefix := prefix + "│   "
	if isLast {
		connector = "└──"
		nextPrefix = prefix + "    "
	}

	if visited[id] {
		sb.WriteString(fmt.Sprintf("%s%s %s (seen)\n", prefix, connector, id))
		return
	}
	visited[id] = true
	sb.WriteString(fmt.Sprintf("%s%s %s\n", prefix, connector, id))

	seen := make(map[string]bool)
	var targets []string
	for _, c := range ge.graph.Outgoing(id) {
		if !seen[c.ToNodeID] {
			seen[c.ToNodeID] = true
			targets = append(targets, c.ToNodeID)
		}
	}
	sort.Strings(targets)

	for i, target := range targets {
		ge.drawASCIINode(target, nextPrefix, i == len(targets)-1, visited, sb)
	}
}

func mermaidID(scope, id string) string {
	var sb strings.Builder
	if scope != "" {
		sb.WriteString(scope)
		sb.WriteString("_")
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}

func escape(s string) string {
	return strings.ReplaceAll(s, `"`, "#quot;")
}
