// Package node holds the static description of a graph: nodes with typed
// ports, the connections between them, and the contract node
// implementations fulfil.
package node

import (
	"context"
	"fmt"

	"github.com/smallnest/nodeflow/data"
)

// Values maps port names to the data on those ports.
type Values = map[string]data.Data

// PortDef declares one input or output port.
type PortDef struct {
	Name        string        `json:"name"`
	Types       data.TypeSpec `json:"types"`
	Required    bool          `json:"required,omitempty"`
	Default     *data.Data    `json:"default,omitempty"`
	Description string        `json:"description,omitempty"`
}

// Implementation is the unit of work behind a leaf node.
type Implementation interface {
	// Ports declares the input and output ports of the node.
	Ports() (inputs, outputs []PortDef)

	// Process computes outputs from the assembled inputs. ctx is cancelled
	// when the run or the node is aborted.
	Process(ctx context.Context, inputs Values, pc *ProcessContext) (Values, error)
}

// InputNode marks implementations that supply externally provided data
// instead of computing it. The processor never calls Process on them.
type InputNode interface {
	Implementation

	// InputName is the key under which run inputs may address the node in
	// addition to its id.
	InputName() string

	// OutputPort is the port the supplied value is published on.
	OutputPort() string
}

// Kinded is implemented by implementations that know their registry kind.
type Kinded interface {
	Kind() (typ, subType string)
}

// PayloadKind tags the payload variant of a node.
type PayloadKind int

const (
	// LeafPayload wraps an Implementation.
	LeafPayload PayloadKind = iota
	// SubGraphPayload wraps a nested Graph.
	SubGraphPayload
)

func (k PayloadKind) String() string {
	switch k {
	case LeafPayload:
		return "leaf"
	case SubGraphPayload:
		return "subgraph"
	default:
		return fmt.Sprintf("PayloadKind(%d)", int(k))
	}
}

// Payload is what a node executes: an implementation or a nested graph.
type Payload struct {
	Kind  PayloadKind
	Impl  Implementation
	Graph *Graph
}

// Leaf builds a payload wrapping impl.
func Leaf(impl Implementation) Payload {
	return Payload{Kind: LeafPayload, Impl: impl}
}

// SubGraph builds a payload wrapping g.
func SubGraph(g *Graph) Payload {
	return Payload{Kind: SubGraphPayload, Graph: g}
}

// Node is a static graph node. It owns its port declarations but not the
// connections touching it.
type Node struct {
	ID      string
	Type    string
	SubType string
	Title   string
	Inputs  []PortDef
	Outputs []PortDef
	Payload Payload

	// Args keeps the construction arguments so a node can be described again.
	Args map[string]any
}

// Input returns the input port named name.
func (n *Node) Input(name string) (PortDef, bool) {
	return findPort(n.Inputs, name)
}

// Output returns the output port named name.
func (n *Node) Output(name string) (PortDef, bool) {
	return findPort(n.Outputs, name)
}

// IsInput reports whether the node is an input-type node.
func (n *Node) IsInput() bool {
	if n.Payload.Kind != LeafPayload {
		return false
	}
	_, ok := n.Payload.Impl.(InputNode)
	return ok
}

// Label is the display name of the node.
func (n *Node) Label() string {
	if n.Title != "" {
		return n.Title
	}
	return n.ID
}

func (n *Node) String() string {
	return fmt.Sprintf("%s(%s/%s)", n.ID, n.Type, n.SubType)
}

func findPort(ports []PortDef, name string) (PortDef, bool) {
	for _, p := range ports {
		if p.Name == name {
			return p, true
		}
	}
	return PortDef{}, false
}
