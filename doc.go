// NodeFlow - Running Typed Node Graphs in Go
//
// NodeFlow executes directed acyclic graphs of nodes connected through typed
// ports. Nodes run as soon as their inputs are available, independent
// branches run concurrently, and every run reports its progress as an
// ordered stream of events. Graphs can nest other graphs, pause for user
// input, and be aborted at any time.
//
// # Quick Start
//
// Install the command:
//
//	go install github.com/smallnest/nodeflow/cmd/nodeflow@latest
//
// Describe a graph in JSON:
//
//	{
//	  "name": "summary",
//	  "nodes": [
//	    {"id": "topic", "type": "input", "subType": "string"},
//	    {"id": "prompt", "type": "prompt", "subType": "template",
//	     "args": {"template": "Summarize {{.topic}} in one sentence."}},
//	    {"id": "model", "type": "chat-model", "subType": "openai"}
//	  ],
//	  "connections": [
//	    {"fromNodeId": "topic", "fromPortName": "value", "toNodeId": "prompt", "toPortName": "topic"},
//	    {"fromNodeId": "prompt", "fromPortName": "prompt", "toNodeId": "model", "toPortName": "prompt"}
//	  ]
//	}
//
// and run it:
//
//	NODEFLOW_OPENAI_API_KEY=sk-... nodeflow run -input topic=goroutines summary.json
//
// Or embed the engine:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"os"
//
//		"github.com/smallnest/nodeflow/data"
//		"github.com/smallnest/nodeflow/flow"
//		"github.com/smallnest/nodeflow/graph"
//		"github.com/smallnest/nodeflow/node"
//		"github.com/smallnest/nodeflow/nodes"
//	)
//
//	func main() {
//		b, _ := os.ReadFile("summary.json")
//		g, err := flow.Load(b, nodes.NewRegistry())
//		if err != nil {
//			panic(err)
//		}
//
//		run := graph.NewProcessor(g).Run(context.Background(),
//			node.Values{"topic": data.Text("goroutines")}, nil)
//		for ev := range run.Events() {
//			fmt.Println(ev.Type, ev.NodeID())
//		}
//	}
//
// # Packages
//
//   - data: typed values carried between ports and their conversions
//   - node: nodes, ports, connections and the Implementation contract
//   - graph: validation, dependency analysis and the run processor
//   - registry: node kinds and their constructors
//   - nodes: builtin kinds (prompts, chat models, splitters, formatters)
//   - guardrail: composable validation rules
//   - flow: JSON graph descriptors
//   - store: persistence of node results (memory, file, redis, postgres, sqlite)
//   - transport/sse: Server-Sent Events streaming and an HTTP run API
//   - config: environment based configuration
//   - log: leveled logging on top of golog
package nodeflow
