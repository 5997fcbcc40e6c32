package nodes

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallnest/nodeflow/data"
	"github.com/smallnest/nodeflow/node"
)

const inputPort = "value"

// Input publishes a value supplied by the caller, either in the run inputs
// or through userInput.
type Input struct {
	Name        string
	Type        data.DataType
	Description string
	Default     *data.Data
}

// NewInput builds an input node from args "name", "description" and
// "default". The data type comes from the node subtype.
func NewInput(t data.DataType, args map[string]any) (*Input, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("unknown data type %q", t)
	}
	in := &Input{
		Name:        argString(args, "name", ""),
		Type:        t,
		Description: argString(args, "description", ""),
	}
	if v, ok := args["default"]; ok {
		d, err := data.Convert(data.Coerce(v), data.Types(t))
		if err != nil {
			return nil, fmt.Errorf("default: %w", err)
		}
		in.Default = &d
	}
	return in, nil
}

func (in *Input) Kind() (string, string) { return "input", string(in.Type) }

func (in *Input) Ports() (inputs, outputs []node.PortDef) {
	return nil, []node.PortDef{{
		Name:        inputPort,
		Types:       data.Types(in.Type),
		Default:     in.Default,
		Description: in.Description,
	}}
}

func (in *Input) Process(context.Context, node.Values, *node.ProcessContext) (node.Values, error) {
	return nil, errors.New("input nodes receive their value from the caller")
}

func (in *Input) InputName() string  { return in.Name }
func (in *Input) OutputPort() string { return inputPort }
