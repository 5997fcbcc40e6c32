package graph

import (
	"errors"
	"fmt"

	"github.com/smallnest/nodeflow/data"
	"github.com/smallnest/nodeflow/node"
)

// Validate reports every structural problem of g, including those of nested
// sub-graphs. It returns nil for a graph that can be run.
func Validate(g *node.Graph) error {
	_, err := buildDependencies(g)
	return err
}

// buildDependencies derives the dependency graph of g. All problems are
// collected into one GraphError so callers see the whole picture at once.
func buildDependencies(g *node.Graph) (*DependencyGraph, error) {
	if g == nil {
		return nil, &GraphError{Problems: []error{errors.New("graph is nil")}}
	}

	var problems []error
	deps := NewDependencyGraph()

	for _, n := range g.Nodes {
		if n == nil {
			problems = append(problems, errors.New("graph contains a nil node"))
			continue
		}
		if _, exists := deps.Node(n.ID); exists {
			problems = append(problems, fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID))
			continue
		}
		deps.AddNode(n)

		switch n.Payload.Kind {
		case node.LeafPayload:
			if n.Payload.Impl == nil {
				problems = append(problems, fmt.Errorf("%w: %s", ErrEmptyPayload, n.ID))
			}
		case node.SubGraphPayload:
			if n.Payload.Graph == nil {
				problems = append(problems, fmt.Errorf("%w: %s", ErrEmptyPayload, n.ID))
				break
			}
			if err := Validate(n.Payload.Graph); err != nil {
				problems = append(problems, fmt.Errorf("sub-graph %s: %w", n.ID, err))
			}
		default:
			problems = append(problems, fmt.Errorf("node %s: unknown payload %s", n.ID, n.Payload.Kind))
		}
	}

	for _, c := range g.Connections {
		if err := connect(deps, c); err != nil {
			problems = append(problems, err)
		}
	}

	if len(problems) == 0 {
		if cycle := deps.FindCycle(); cycle != nil {
			problems = append(problems, fmt.Errorf("%w: %v", ErrCycle, cycle))
		}
	}

	if len(problems) > 0 {
		return nil, &GraphError{Graph: g.Name, Problems: problems}
	}
	return deps, nil
}

func connect(deps *DependencyGraph, c node.Connection) error {
	src, ok := deps.Node(c.FromNodeID)
	if !ok {
		return fmt.Errorf("%w: %s (from %s)", ErrDanglingConnection, c, c.FromNodeID)
	}
	dst, ok := deps.Node(c.ToNodeID)
	if !ok {
		return fmt.Errorf("%w: %s (to %s)", ErrDanglingConnection, c, c.ToNodeID)
	}

	out, ok := src.Node.Output(c.FromPortName)
	if !ok {
		return fmt.Errorf("%w: %s has no output %q", ErrUnknownPort, c.FromNodeID, c.FromPortName)
	}
	in, ok := dst.Node.Input(c.ToPortName)
	if !ok {
		return fmt.Errorf("%w: %s has no input %q", ErrUnknownPort, c.ToNodeID, c.ToPortName)
	}

	if prev, taken := dst.incoming[c.ToPortName]; taken {
		return fmt.Errorf("%w: %s.%s fed by %s and %s", ErrFanIn, c.ToNodeID, c.ToPortName, prev, c)
	}
	if !compatible(out.Types, in.Types) {
		return fmt.Errorf("%w: %s (%s -> %s)", ErrIncompatiblePorts, c, out.Types, in.Types)
	}

	dst.incoming[c.ToPortName] = c
	deps.AddDependency(c.FromNodeID, c.ToNodeID)
	return nil
}

// compatible reports whether some type of from converts to spec. Untyped
// ports on either side are compatible with everything.
func compatible(from, spec data.TypeSpec) bool {
	if len(from) == 0 || len(spec) == 0 {
		return true
	}
	for _, t := range from {
		if data.CanConvert(t, spec) {
			return true
		}
	}
	return false
}
