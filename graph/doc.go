// Package graph executes node graphs.
//
// A Processor turns a static node.Graph into runs. Each Run derives a
// DependencyGraph from the graph's connections, rejects malformed graphs
// before anything executes, and then schedules nodes as their dependencies
// complete. Independent nodes run concurrently on their own goroutines while
// a single coordinator owns all run state and writes the event stream.
//
// # Events
//
// A run's stream starts with a start event and ends with exactly one terminal
// event: done, abort (graphAbort for nested runs), graphError or error. Per
// node it carries nodeStart followed by nodeFinish or nodeError, nodeExcluded
// for dependents of failed nodes, and requireInput for nodes waiting on
// UserInput. Events of nested sub-graph runs are forwarded with
// IsSubProcessor set.
//
// # Example
//
//	p := graph.NewProcessor(g, graph.WithFailFast())
//	run := p.Run(ctx, node.Values{"question": data.Text("hi")}, nil)
//	for ev := range run.Events() {
//		if ev.Type == graph.EventRequireInput {
//			_ = run.UserInput(ev.NodeID(), data.Text("more"))
//		}
//	}
package graph
