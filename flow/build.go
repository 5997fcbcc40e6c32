package flow

import (
	"encoding/json"
	"fmt"

	"github.com/smallnest/nodeflow/node"
	"github.com/smallnest/nodeflow/registry"
)

// Build creates a graph from d, constructing nodes through reg. Sub-graph
// nodes are built recursively.
func Build(d *Descriptor, reg *registry.Registry) (*node.Graph, error) {
	g := node.NewGraph(d.Name)
	g.ID = d.ID
	for _, nd := range d.Nodes {
		n, err := buildNode(nd, reg)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", nd.ID, err)
		}
		g.AddNode(n)
	}
	for _, c := range d.Connections {
		g.Connect(c.FromNodeID, c.FromPortName, c.ToNodeID, c.ToPortName)
	}
	return g, nil
}

func buildNode(nd NodeDescriptor, reg *registry.Registry) (*node.Node, error) {
	if isSubGraph(nd) {
		inner, err := Build(nd.Graph, reg)
		if err != nil {
			return nil, err
		}
		n, err := registry.CreateSubGraph(nd.ID, inner)
		if err != nil {
			return nil, err
		}
		if nd.Title != "" {
			n.Title = nd.Title
		}
		return n, nil
	}

	n, err := reg.CreateWithID(nd.ID, nd.Type, nd.SubType, nd.Args)
	if err != nil {
		return nil, err
	}
	if nd.Title != "" {
		n.Title = nd.Title
	}
	return n, nil
}

// Load parses a descriptor and builds it.
func Load(b []byte, reg *registry.Registry) (*node.Graph, error) {
	d, err := Parse(b)
	if err != nil {
		return nil, err
	}
	return Build(d, reg)
}

// Describe converts a graph back into a descriptor.
func Describe(g *node.Graph) *Descriptor {
	d := &Descriptor{ID: g.ID, Name: g.Name}
	for _, n := range g.Nodes {
		nd := NodeDescriptor{ID: n.ID, Type: n.Type, SubType: n.SubType, Title: n.Title, Args: n.Args}
		if n.Payload.Kind == node.SubGraphPayload {
			nd.Type, nd.SubType, nd.Args = registry.SubGraphType, "", nil
			nd.Graph = Describe(n.Payload.Graph)
		}
		d.Nodes = append(d.Nodes, nd)
	}
	for _, c := range g.Connections {
		d.Connections = append(d.Connections, Connection(c))
	}
	return d
}

// Marshal writes g as an indented JSON descriptor. Construction args must
// be JSON encodable.
func Marshal(g *node.Graph) ([]byte, error) {
	return json.MarshalIndent(Describe(g), "", "  ")
}
