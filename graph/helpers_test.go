package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/smallnest/nodeflow/data"
	"github.com/smallnest/nodeflow/log"
	"github.com/smallnest/nodeflow/node"
)

var stringPort = data.Types(data.String)

// upper upper-cases its required "in" port onto "out".
type upper struct{}

func (upper) Ports() (inputs, outputs []node.PortDef) {
	return []node.PortDef{{Name: "in", Types: stringPort, Required: true}},
		[]node.PortDef{{Name: "out", Types: stringPort}}
}

func (upper) Process(_ context.Context, inputs node.Values, _ *node.ProcessContext) (node.Values, error) {
	s, _ := inputs["in"].AsString()
	return node.Values{"out": data.Text(strings.ToUpper(s))}, nil
}

// textInput is an input node publishing on "value".
type textInput struct {
	name string
}

func (textInput) Ports() (inputs, outputs []node.PortDef) {
	return nil, []node.PortDef{{Name: "value", Types: stringPort}}
}

func (textInput) Process(context.Context, node.Values, *node.ProcessContext) (node.Values, error) {
	return nil, errors.New("input nodes are never processed")
}

func (t textInput) InputName() string { return t.name }
func (textInput) OutputPort() string  { return "value" }

// fn adapts a function to a node with one optional string input and one output.
type fn func(ctx context.Context, inputs node.Values, pc *node.ProcessContext) (node.Values, error)

func (fn) Ports() (inputs, outputs []node.PortDef) {
	return []node.PortDef{{Name: "in", Types: data.Types(data.Unknown)}},
		[]node.PortDef{{Name: "out", Types: data.Types(data.Unknown)}}
}

func (f fn) Process(ctx context.Context, inputs node.Values, pc *node.ProcessContext) (node.Values, error) {
	return f(ctx, inputs, pc)
}

func failing(msg string) fn {
	return func(context.Context, node.Values, *node.ProcessContext) (node.Values, error) {
		return nil, errors.New(msg)
	}
}

func constant(v data.Data) fn {
	return func(context.Context, node.Values, *node.ProcessContext) (node.Values, error) {
		return node.Values{"out": v}, nil
	}
}

// blocking waits for cancellation.
func blocking() fn {
	return func(ctx context.Context, _ node.Values, _ *node.ProcessContext) (node.Values, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

func stubNode(id string, impl node.Implementation) *node.Node {
	in, out := impl.Ports()
	return &node.Node{
		ID:      id,
		Type:    "test",
		SubType: fmt.Sprintf("%T", impl),
		Inputs:  in,
		Outputs: out,
		Payload: node.Leaf(impl),
	}
}

func inputNode(id string) *node.Node {
	return stubNode(id, textInput{name: id + "-name"})
}

func quiet() Option {
	return WithLogger(&log.NoOpLogger{})
}

// drain collects every remaining event of run, failing the test if the run
// does not settle in time.
func drain(t *testing.T, run *Run) []Event {
	t.Helper()
	out := make(chan []Event, 1)
	go func() { out <- Collect(run) }()
	select {
	case events := <-out:
		return events
	case <-time.After(5 * time.Second):
		t.Fatal("run did not settle")
		return nil
	}
}

// until reads events up to and including the first one of type typ about
// nodeID. An empty nodeID matches any node.
func until(t *testing.T, run *Run, typ EventType, nodeID string) []Event {
	t.Helper()
	var seen []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-run.Events():
			if !ok {
				t.Fatalf("stream closed before %s %s; saw %v", typ, nodeID, eventTypes(seen))
			}
			seen = append(seen, ev)
			if ev.Type == typ && (nodeID == "" || ev.NodeID() == nodeID) {
				return seen
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s %s", typ, nodeID)
		}
	}
}

// lifecycle drops bookkeeping events and keeps node lifecycle and terminal
// events of the run itself.
func lifecycle(events []Event) []Event {
	var out []Event
	for _, ev := range events {
		switch ev.Type {
		case EventStart, EventNewAbortController, EventTrace:
			continue
		}
		if ev.IsSubProcessor {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func eventTypes(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

func find(events []Event, typ EventType, nodeID string) (int, bool) {
	for i, ev := range events {
		if ev.Type == typ && ev.NodeID() == nodeID {
			return i, true
		}
	}
	return -1, false
}

func count(events []Event, typ EventType) int {
	n := 0
	for _, ev := range events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}
