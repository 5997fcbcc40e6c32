package graph

import (
	"encoding/json"
	"time"

	"github.com/smallnest/nodeflow/node"
)

// EventType identifies an event on a run's stream.
type EventType string

const (
	EventStart              EventType = "start"
	EventNodeStart          EventType = "nodeStart"
	EventNodeFinish         EventType = "nodeFinish"
	EventNodeError          EventType = "nodeError"
	EventNodeExcluded       EventType = "nodeExcluded"
	EventRequireInput       EventType = "requireInput"
	EventDone               EventType = "done"
	EventAbort              EventType = "abort"
	EventGraphAbort         EventType = "graphAbort"
	EventGraphError         EventType = "graphError"
	EventNewAbortController EventType = "newAbortController"
	EventTrace              EventType = "trace"
	EventError              EventType = "error"
)

// Event is one entry of a run's ordered event stream.
type Event struct {
	Type EventType
	// RunID is the run that produced the event. Forwarded sub-graph events
	// keep the id of the nested run.
	RunID string
	// Seq is the position of the event in the stream it was read from.
	Seq  int64
	Time time.Time

	Node    *node.Node
	Inputs  node.Values
	Outputs node.Values
	// Results holds the outputs of terminal nodes on done.
	Results map[string]node.Values
	Err     error
	// Ports lists the ports a requireInput event waits on. Empty for input nodes.
	Ports []string
	// Controller is the node-scoped abort controller of newAbortController.
	Controller *AbortController
	Message    string
	// Cached marks nodeStart/nodeFinish of nodes restored from prior results.
	Cached bool

	IsSubProcessor bool
}

// IsTerminal reports whether e ends its run's stream.
func (e Event) IsTerminal() bool {
	switch e.Type {
	case EventDone, EventAbort, EventGraphAbort, EventGraphError, EventError:
		return true
	default:
		return false
	}
}

// NodeID returns the id of the node the event is about, if any.
func (e Event) NodeID() string {
	if e.Node == nil {
		return ""
	}
	return e.Node.ID
}

type nodeRef struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	SubType string `json:"subType"`
	Title   string `json:"title,omitempty"`
}

type eventPayload struct {
	RunID          string                 `json:"runId"`
	Seq            int64                  `json:"seq"`
	Time           time.Time              `json:"time"`
	Node           *nodeRef               `json:"node,omitempty"`
	Inputs         node.Values            `json:"inputs,omitempty"`
	Outputs        node.Values            `json:"outputs,omitempty"`
	Results        map[string]node.Values `json:"results,omitempty"`
	Error          string                 `json:"error,omitempty"`
	Ports          []string               `json:"ports,omitempty"`
	Message        string                 `json:"message,omitempty"`
	Cached         bool                   `json:"cached,omitempty"`
	IsSubProcessor bool                   `json:"isSubProcessor"`
}

// MarshalJSON encodes the event body. The type is carried separately by the
// SSE framing, so it is not part of the payload.
func (e Event) MarshalJSON() ([]byte, error) {
	p := eventPayload{
		RunID:          e.RunID,
		Seq:            e.Seq,
		Time:           e.Time,
		Inputs:         e.Inputs,
		Outputs:        e.Outputs,
		Results:        e.Results,
		Ports:          e.Ports,
		Message:        e.Message,
		Cached:         e.Cached,
		IsSubProcessor: e.IsSubProcessor,
	}
	if e.Node != nil {
		p.Node = &nodeRef{ID: e.Node.ID, Type: e.Node.Type, SubType: e.Node.SubType, Title: e.Node.Title}
	}
	if e.Err != nil {
		p.Error = e.Err.Error()
	}
	return json.Marshal(p)
}
