package node

import (
	"context"
	"testing"

	"github.com/smallnest/nodeflow/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echo struct{}

func (echo) Ports() ([]PortDef, []PortDef) {
	return []PortDef{{Name: "in", Types: data.Types(data.String), Required: true}},
		[]PortDef{{Name: "out", Types: data.Types(data.String)}}
}

func (echo) Process(_ context.Context, in Values, _ *ProcessContext) (Values, error) {
	return Values{"out": in["in"]}, nil
}

type askUser struct{ echo }

func (askUser) InputName() string  { return "question" }
func (askUser) OutputPort() string { return "out" }

func newNode(id string, impl Implementation) *Node {
	in, out := impl.Ports()
	return &Node{ID: id, Type: "test", SubType: "echo", Inputs: in, Outputs: out, Payload: Leaf(impl)}
}

func TestNodePorts(t *testing.T) {
	n := newNode("a", echo{})

	p, ok := n.Input("in")
	require.True(t, ok)
	assert.True(t, p.Required)

	_, ok = n.Output("in")
	assert.False(t, ok)

	assert.Equal(t, "a", n.Label())
	n.Title = "Echo"
	assert.Equal(t, "Echo", n.Label())
	assert.Equal(t, "a(test/echo)", n.String())
}

func TestIsInput(t *testing.T) {
	assert.False(t, newNode("a", echo{}).IsInput())
	assert.True(t, newNode("b", askUser{}).IsInput())

	sub := &Node{ID: "s", Payload: SubGraph(NewGraph("inner"))}
	assert.False(t, sub.IsInput())
	assert.Equal(t, "subgraph", sub.Payload.Kind.String())
}

func TestGraphConnections(t *testing.T) {
	g := NewGraph("g").
		AddNode(newNode("a", echo{}), newNode("b", echo{}), newNode("c", echo{})).
		Connect("a", "out", "b", "in").
		Connect("a", "out", "c", "in")

	n, ok := g.Node("b")
	require.True(t, ok)
	assert.Equal(t, "b", n.ID)

	_, ok = g.Node("missing")
	assert.False(t, ok)

	assert.Len(t, g.Outgoing("a"), 2)
	assert.Len(t, g.Incoming("c"), 1)
	assert.Equal(t, "a.out -> c.in", g.Incoming("c")[0].String())
	assert.Equal(t, "b:in", PortKey("b", "in"))
}

func TestProcessContext(t *testing.T) {
	var traced []string
	pc := NewProcessContext("run", "a", Settings{"key": "secret"}, nil, func(s string) {
		traced = append(traced, s)
	})

	v, ok := pc.Settings.String("key")
	assert.True(t, ok)
	assert.Equal(t, "secret", v)

	_, ok = pc.Setting("other")
	assert.False(t, ok)

	pc.Trace("step %d", 1)
	assert.Equal(t, []string{"step 1"}, traced)

	var nilCtx *ProcessContext
	nilCtx.Trace("ignored")
	_, ok = nilCtx.Setting("key")
	assert.False(t, ok)
}
