package graph

import (
	"github.com/smallnest/nodeflow/node"
)

// NodeState is the execution state of a node within one run.
type NodeState string

const (
	StatePending   NodeState = "pending"
	StateRunning   NodeState = "running"
	StateCompleted NodeState = "completed"
	StateFailed    NodeState = "failed"
	StateExcluded  NodeState = "excluded"
	StateAborted   NodeState = "aborted"
)

// IsTerminal reports whether the state is final for the run.
func (s NodeState) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateExcluded, StateAborted:
		return true
	default:
		return false
	}
}

// RuntimeNode wraps a static node with the state of one run. It is created
// fresh for every run.
type RuntimeNode struct {
	Node         *node.Node
	State        NodeState
	Dependencies []*RuntimeNode
	Dependents   []*RuntimeNode
	LastResult   node.Values
	Err          error

	// incoming maps an input port to the connection feeding it.
	incoming map[string]node.Connection
	// supplied holds values bound to unconnected ports by userInput.
	supplied node.Values
	// missing lists the ports a suspended node is waiting on.
	missing   []string
	suspended bool
	queued    bool
	started   bool
}

// DependencyGraph is the dependency relation derived from a graph's
// connections: the target node of a connection depends on its source.
type DependencyGraph struct {
	nodes map[string]*RuntimeNode
	order []*RuntimeNode
}

// NewDependencyGraph creates an empty dependency graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{nodes: make(map[string]*RuntimeNode)}
}

// AddNode registers a runtime node for n. Adding the same id twice returns
// the node registered first.
func (g *DependencyGraph) AddNode(n *node.Node) *RuntimeNode {
	if rn, ok := g.nodes[n.ID]; ok {
		return rn
	}
	rn := &RuntimeNode{
		Node:     n,
		State:    StatePending,
		incoming: make(map[string]node.Connection),
		supplied: make(node.Values),
	}
	g.nodes[n.ID] = rn
	g.order = append(g.order, rn)
	return rn
}

// AddDependency records that node to depends on node from. Repeated pairs
// are recorded once. It reports false when either id is unknown.
func (g *DependencyGraph) AddDependency(from, to string) bool {
	src, ok := g.nodes[from]
	if !ok {
		return false
	}
	dst, ok := g.nodes[to]
	if !ok {
		return false
	}
	for _, d := range dst.Dependencies {
		if d == src {
			return true
		}
	}
	dst.Dependencies = append(dst.Dependencies, src)
	src.Dependents = append(src.Dependents, dst)
	return true
}

// Node returns the runtime node with the given id.
func (g *DependencyGraph) Node(id string) (*RuntimeNode, bool) {
	rn, ok := g.nodes[id]
	return rn, ok
}

// Nodes returns the runtime nodes in insertion order.
func (g *DependencyGraph) Nodes() []*RuntimeNode {
	return g.order
}

// Roots returns the nodes without dependencies.
func (g *DependencyGraph) Roots() []*RuntimeNode {
	var roots []*RuntimeNode
	for _, rn := range g.order {
		if len(rn.Dependencies) == 0 {
			roots = append(roots, rn)
		}
	}
	return roots
}

// IsReady reports whether every dependency of rn has completed.
func (g *DependencyGraph) IsReady(rn *RuntimeNode) bool {
	for _, d := range rn.Dependencies {
		if d.State != StateCompleted {
			return false
		}
	}
	return true
}

// IsCyclic reports whether the dependency relation contains a cycle.
func (g *DependencyGraph) IsCyclic() bool {
	return g.FindCycle() != nil
}

// FindCycle returns the ids along one cycle, first id repeated at the end,
// or nil when the graph is acyclic. It is a depth-first search keeping the
// current path on a stack; reaching a node still on the stack closes a cycle.
func (g *DependencyGraph) FindCycle() []string {
	const (
		unvisited = iota
		onStack
		done
	)
	mark := make(map[*RuntimeNode]int, len(g.order))
	var stack []*RuntimeNode
	var cycle []string

	var visit func(rn *RuntimeNode) bool
	visit = func(rn *RuntimeNode) bool {
		mark[rn] = onStack
		stack = append(stack, rn)
		for _, next := range rn.Dependents {
			switch mark[next] {
			case onStack:
				start := len(stack) - 1
				for stack[start] != next {
					start--
				}
				for _, s := range stack[start:] {
					cycle = append(cycle, s.Node.ID)
				}
				cycle = append(cycle, next.Node.ID)
				return true
			case unvisited:
				if visit(next) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		mark[rn] = done
		return false
	}

	for _, rn := range g.order {
		if mark[rn] == unvisited && visit(rn) {
			return cycle
		}
	}
	return nil
}

// Downstream returns every node reachable from rn through dependents,
// breadth first, without rn itself.
func (g *DependencyGraph) Downstream(rn *RuntimeNode) []*RuntimeNode {
	seen := map[*RuntimeNode]bool{rn: true}
	queue := append([]*RuntimeNode(nil), rn.Dependents...)
	var out []*RuntimeNode
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if seen[next] {
			continue
		}
		seen[next] = true
		out = append(out, next)
		queue = append(queue, next.Dependents...)
	}
	return out
}
