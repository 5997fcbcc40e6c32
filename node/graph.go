package node

import "fmt"

// Connection is a directed edge from an output port to an input port.
type Connection struct {
	FromNodeID   string `json:"fromNodeId"`
	FromPortName string `json:"fromPortName"`
	ToNodeID     string `json:"toNodeId"`
	ToPortName   string `json:"toPortName"`
}

func (c Connection) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", c.FromNodeID, c.FromPortName, c.ToNodeID, c.ToPortName)
}

// Graph is a set of nodes and the connections between them.
type Graph struct {
	ID          string
	Name        string
	Nodes       []*Node
	Connections []Connection
}

// NewGraph creates an empty graph.
func NewGraph(name string) *Graph {
	return &Graph{Name: name}
}

// AddNode appends nodes to the graph and returns the graph for chaining.
func (g *Graph) AddNode(nodes ...*Node) *Graph {
	g.Nodes = append(g.Nodes, nodes...)
	return g
}

// Connect adds a connection from fromID.fromPort to toID.toPort.
func (g *Graph) Connect(fromID, fromPort, toID, toPort string) *Graph {
	g.Connections = append(g.Connections, Connection{
		FromNodeID:   fromID,
		FromPortName: fromPort,
		ToNodeID:     toID,
		ToPortName:   toPort,
	})
	return g
}

// Node looks a node up by id.
func (g *Graph) Node(id string) (*Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return nil, false
}

// Incoming returns the connections ending at node id.
func (g *Graph) Incoming(id string) []Connection {
	var out []Connection
	for _, c := range g.Connections {
		if c.ToNodeID == id {
			out = append(out, c)
		}
	}
	return out
}

// Outgoing returns the connections leaving node id.
func (g *Graph) Outgoing(id string) []Connection {
	var out []Connection
	for _, c := range g.Connections {
		if c.FromNodeID == id {
			out = append(out, c)
		}
	}
	return out
}

// PortKey is the run input key addressing an unconnected port of a plain node.
func PortKey(nodeID, port string) string {
	return nodeID + ":" + port
}
