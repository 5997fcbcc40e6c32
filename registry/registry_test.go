package registry

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/smallnest/nodeflow/data"
	"github.com/smallnest/nodeflow/graph"
	"github.com/smallnest/nodeflow/log"
	"github.com/smallnest/nodeflow/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type repeat struct{ times int }

func (repeat) Ports() (inputs, outputs []node.PortDef) {
	return []node.PortDef{{Name: "in", Types: data.Types(data.String), Required: true}},
		[]node.PortDef{{Name: "out", Types: data.Types(data.String)}}
}

func (r repeat) Process(_ context.Context, in node.Values, _ *node.ProcessContext) (node.Values, error) {
	s, _ := in["in"].AsString()
	return node.Values{"out": data.Text(strings.Repeat(s, r.times))}, nil
}

type kinded struct{ repeat }

func (kinded) Kind() (string, string) { return "text", "repeat" }

type source struct{}

func (source) Ports() (inputs, outputs []node.PortDef) {
	return nil, []node.PortDef{{Name: "value", Types: data.Types(data.String)}}
}

func (source) Process(context.Context, node.Values, *node.ProcessContext) (node.Values, error) {
	return nil, errors.New("input nodes are not processed")
}

func (source) InputName() string  { return "" }
func (source) OutputPort() string { return "value" }

func newRepeat(args map[string]any) (node.Implementation, error) {
	times := 2
	if v, ok := args["times"].(int); ok {
		times = v
	}
	if times < 1 {
		return nil, errors.New("times must be positive")
	}
	return repeat{times: times}, nil
}

func TestRegistry_Create(t *testing.T) {
	r := New()
	r.RegisterTitled("text", "repeat", "Repeat", newRepeat)

	n, err := r.Create("text", "repeat", map[string]any{"times": 3})
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, "text", n.Type)
	assert.Equal(t, "repeat", n.SubType)
	assert.Equal(t, "Repeat", n.Title)
	assert.Equal(t, 3, n.Args["times"])
	require.Len(t, n.Inputs, 1)
	assert.Equal(t, "in", n.Inputs[0].Name)
	assert.Equal(t, node.LeafPayload, n.Payload.Kind)

	other, err := r.Create("text", "repeat", nil)
	require.NoError(t, err)
	assert.NotEqual(t, n.ID, other.ID)

	n, err = r.CreateWithID("fixed", "text", "repeat", nil)
	require.NoError(t, err)
	assert.Equal(t, "fixed", n.ID)
}

func TestRegistry_Errors(t *testing.T) {
	r := New()
	r.Register("text", "repeat", newRepeat)

	_, err := r.Create("text", "missing", nil)
	assert.ErrorIs(t, err, ErrUnregisteredKind)
	assert.ErrorContains(t, err, "text/missing")

	_, err = r.Create("text", "repeat", map[string]any{"times": 0})
	assert.ErrorContains(t, err, "times must be positive")

	assert.Panics(t, func() { r.Register("text", "repeat", newRepeat) })
}

func TestRegistry_Kinds(t *testing.T) {
	r := New()
	r.Register("text", "repeat", newRepeat)
	r.Register("input", "text", newRepeat)
	r.Register("text", "concat", newRepeat)

	assert.Equal(t, []Kind{{"input", "text"}, {"text", "concat"}, {"text", "repeat"}}, r.Kinds())
	assert.True(t, r.Has("input", "text"))
	assert.False(t, r.Has("input", "number"))
	assert.Equal(t, "input/text", Kind{"input", "text"}.String())
}

func TestCreateRaw(t *testing.T) {
	r := New()
	n := r.CreateRaw(repeat{times: 1})
	assert.Equal(t, RawType, n.Type)
	assert.NotEmpty(t, n.ID)

	n = CreateRaw("k", kinded{repeat{times: 1}})
	assert.Equal(t, "k", n.ID)
	assert.Equal(t, "text", n.Type)
	assert.Equal(t, "repeat", n.SubType)
	assert.Len(t, n.Outputs, 1)
}

func TestCreateSubGraph(t *testing.T) {
	inner := node.NewGraph("shout").
		AddNode(CreateRaw("topic", source{}), CreateRaw("twice", repeat{times: 2})).
		Connect("topic", "value", "twice", "in")

	sub, err := CreateSubGraph("sub", inner)
	require.NoError(t, err)
	assert.Equal(t, SubGraphType, sub.Type)
	assert.Equal(t, node.SubGraphPayload, sub.Payload.Kind)
	require.Len(t, sub.Inputs, 1)
	assert.Equal(t, "topic", sub.Inputs[0].Name)
	assert.False(t, sub.Inputs[0].Required)
	require.Len(t, sub.Outputs, 1)
	assert.Equal(t, "twice.out", sub.Outputs[0].Name)

	outer := node.NewGraph("outer").AddNode(CreateRaw("word", source{}), sub).
		Connect("word", "value", "sub", "topic")
	run := graph.NewProcessor(outer, graph.WithLogger(&log.NoOpLogger{})).
		Run(context.Background(), node.Values{"word": data.Text("go")}, nil)

	ev, err := run.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, graph.EventDone, ev.Type)
	assert.Equal(t, data.Text("gogo"), ev.Results["sub"]["twice.out"])

	_, err = CreateSubGraph("nil", nil)
	assert.Error(t, err)
}

func TestDefaultRegistry(t *testing.T) {
	Register("registry-test", "repeat", newRepeat)
	n, err := Create("registry-test", "repeat", nil)
	require.NoError(t, err)
	assert.Equal(t, "registry-test", n.Type)
}
