package nodes

import (
	"context"
	"strings"

	"github.com/smallnest/nodeflow/data"
	"github.com/smallnest/nodeflow/node"
)

// StaticText emits a fixed text.
type StaticText struct {
	Text string
}

func (t *StaticText) Kind() (string, string) { return "text", "static" }

func (t *StaticText) Ports() (inputs, outputs []node.PortDef) {
	return nil, []node.PortDef{{Name: "text", Types: data.Types(data.String)}}
}

func (t *StaticText) Process(context.Context, node.Values, *node.ProcessContext) (node.Values, error) {
	return node.Values{"text": data.Text(t.Text)}, nil
}

// JoinText concatenates a list of texts with a separator.
type JoinText struct {
	Separator string
}

func (j *JoinText) Kind() (string, string) { return "text", "join" }

func (j *JoinText) Ports() (inputs, outputs []node.PortDef) {
	return []node.PortDef{{Name: "texts", Types: data.Types(data.String.Array()), Required: true}},
		[]node.PortDef{{Name: "text", Types: data.Types(data.String)}}
}

func (j *JoinText) Process(_ context.Context, in node.Values, _ *node.ProcessContext) (node.Values, error) {
	items, _ := in["texts"].Items()
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i], _ = item.AsString()
	}
	return node.Values{"text": data.Text(strings.Join(parts, j.Separator))}, nil
}
