// Package registry resolves (type, subType) kinds to node constructors so
// graphs can be built from descriptors as well as from code.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/smallnest/nodeflow/node"
)

// ErrUnregisteredKind is returned when no constructor exists for a kind.
var ErrUnregisteredKind = errors.New("unregistered node kind")

// RawType is the node type given to implementations that do not report one.
const RawType = "raw"

// SubGraphType is the node type of sub-graph nodes.
const SubGraphType = "subgraph"

// Kind identifies a node implementation.
type Kind struct {
	Type    string `json:"type"`
	SubType string `json:"subType"`
}

func (k Kind) String() string {
	if k.SubType == "" {
		return k.Type
	}
	return k.Type + "/" + k.SubType
}

// Constructor builds a fresh implementation from construction arguments.
// args may be nil.
type Constructor func(args map[string]any) (node.Implementation, error)

// Registry maps kinds to constructors. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	ctors  map[Kind]Constructor
	titles map[Kind]string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		ctors:  make(map[Kind]Constructor),
		titles: make(map[Kind]string),
	}
}

// Register adds a constructor. Registering the same kind twice panics.
func (r *Registry) Register(typ, subType string, ctor Constructor) {
	r.RegisterTitled(typ, subType, "", ctor)
}

// RegisterTitled is Register with a default title for created nodes.
func (r *Registry) RegisterTitled(typ, subType, title string, ctor Constructor) {
	k := Kind{Type: typ, SubType: subType}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.ctors[k]; exists {
		panic(fmt.Sprintf("node kind %q already registered", k))
	}
	r.ctors[k] = ctor
	if title != "" {
		r.titles[k] = title
	}
}

// Has reports whether a constructor exists for the kind.
func (r *Registry) Has(typ, subType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ctors[Kind{Type: typ, SubType: subType}]
	return ok
}

// Kinds lists the registered kinds in sorted order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	kinds := make([]Kind, 0, len(r.ctors))
	for k := range r.ctors {
		kinds = append(kinds, k)
	}
	r.mu.RUnlock()

	sort.Slice(kinds, func(i, j int) bool {
		if kinds[i].Type != kinds[j].Type {
			return kinds[i].Type < kinds[j].Type
		}
		return kinds[i].SubType < kinds[j].SubType
	})
	return kinds
}

// Create builds a node of the given kind with a generated id.
func (r *Registry) Create(typ, subType string, args map[string]any) (*node.Node, error) {
	return r.CreateWithID(uuid.NewString(), typ, subType, args)
}

// CreateWithID builds a node of the given kind with a caller chosen id.
func (r *Registry) CreateWithID(id, typ, subType string, args map[string]any) (*node.Node, error) {
	k := Kind{Type: typ, SubType: subType}
	r.mu.RLock()
	ctor, ok := r.ctors[k]
	title := r.titles[k]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnregisteredKind, k)
	}

	impl, err := ctor(args)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", k, err)
	}
	n := wrap(id, typ, subType, impl)
	n.Title = title
	n.Args = args
	return n, nil
}

// CreateRaw wraps an already constructed implementation. The node kind comes
// from node.Kinded when impl implements it, otherwise it is "raw".
func (r *Registry) CreateRaw(impl node.Implementation) *node.Node {
	return CreateRaw(uuid.NewString(), impl)
}

// CreateRaw wraps impl in a node with the given id.
func CreateRaw(id string, impl node.Implementation) *node.Node {
	typ, subType := RawType, ""
	if k, ok := impl.(node.Kinded); ok {
		typ, subType = k.Kind()
	}
	return wrap(id, typ, subType, impl)
}

func wrap(id, typ, subType string, impl node.Implementation) *node.Node {
	inputs, outputs := impl.Ports()
	return &node.Node{
		ID:      id,
		Type:    typ,
		SubType: subType,
		Inputs:  inputs,
		Outputs: outputs,
		Payload: node.Leaf(impl),
	}
}

// CreateSubGraph wraps g in a node. Every input node of g becomes an optional
// input port named after the input node's id, and every output port of a
// node without outgoing connections becomes an output port "<node>.<port>".
func CreateSubGraph(id string, g *node.Graph) (*node.Node, error) {
	if g == nil {
		return nil, errors.New("nil sub-graph")
	}
	n := &node.Node{
		ID:      id,
		Type:    SubGraphType,
		SubType: g.Name,
		Title:   g.Name,
		Payload: node.SubGraph(g),
	}
	for _, inner := range g.Nodes {
		if inner == nil {
			return nil, fmt.Errorf("sub-graph %s contains a nil node", g.Name)
		}
		if inner.IsInput() {
			in := inner.Payload.Impl.(node.InputNode)
			out, _ := inner.Output(in.OutputPort())
			n.Inputs = append(n.Inputs, node.PortDef{
				Name:        inner.ID,
				Types:       out.Types,
				Description: inner.Label(),
			})
		}
		if len(g.Outgoing(inner.ID)) > 0 {
			continue
		}
		for _, p := range inner.Outputs {
			n.Outputs = append(n.Outputs, node.PortDef{
				Name:        inner.ID + "." + p.Name,
				Types:       p.Types,
				Description: p.Description,
			})
		}
	}
	return n, nil
}

// Default is the process wide registry used by the package level helpers.
var Default = New()

// Register adds a constructor to Default.
func Register(typ, subType string, ctor Constructor) { Default.Register(typ, subType, ctor) }

// Create builds a node from Default.
func Create(typ, subType string, args map[string]any) (*node.Node, error) {
	return Default.Create(typ, subType, args)
}
