package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrCycle is returned when the connections of a graph form a cycle.
	ErrCycle = errors.New("graph contains a cycle")

	// ErrDanglingConnection is returned when a connection references a node that does not exist.
	ErrDanglingConnection = errors.New("connection references an unknown node")

	// ErrUnknownPort is returned when a connection references a port the node does not declare.
	ErrUnknownPort = errors.New("connection references an unknown port")

	// ErrFanIn is returned when more than one connection targets the same input port.
	ErrFanIn = errors.New("input port has more than one incoming connection")

	// ErrIncompatiblePorts is returned when a connection joins ports whose types cannot convert.
	ErrIncompatiblePorts = errors.New("connected ports have incompatible types")

	// ErrDuplicateNode is returned when two nodes share an id.
	ErrDuplicateNode = errors.New("duplicate node id")

	// ErrEmptyPayload is returned for nodes without an implementation or sub-graph.
	ErrEmptyPayload = errors.New("node has no implementation")

	// ErrMissingInput is returned when a connected required input received no value.
	ErrMissingInput = errors.New("required input has no value")

	// ErrInvalidInput is returned when an input value cannot be converted to the port type.
	ErrInvalidInput = errors.New("invalid input value")

	// ErrInvalidOutput is returned when a node produces a value that does not match its type.
	ErrInvalidOutput = errors.New("invalid output value")

	// ErrAborted is returned by nested runs and node invocations cut short by an abort.
	ErrAborted = errors.New("run aborted")

	// ErrUnknownNode is returned by UserInput for ids that are not part of the run.
	ErrUnknownNode = errors.New("unknown node")

	// ErrNotAwaiting is returned by UserInput for nodes that are not waiting for input.
	ErrNotAwaiting = errors.New("node is not awaiting input")

	// ErrRunFinished is returned by UserInput once the run has settled.
	ErrRunFinished = errors.New("run already finished")
)

// GraphError reports every structural problem found while building a run.
type GraphError struct {
	Graph    string
	Problems []error
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("invalid graph %q: %v", e.Graph, errors.Join(e.Problems...))
}

func (e *GraphError) Unwrap() []error {
	return e.Problems
}

// NodeError is the error carried by a nodeError event.
type NodeError struct {
	NodeID string
	Err    error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %v", e.NodeID, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}
