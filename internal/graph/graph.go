package graph

import (
	"fmt"
	"strings"
	"sync"
)

// Node is one resource module in the graph.
type Node struct {
	ID        string
	Module    string // engine address prefix, e.g. module.network
	DependsOn []string
}

// NodeState tracks what the current run knows about a node.
type NodeState int

const (
	StatePending NodeState = iota
	StateAvailable
	StateDestroyed
)

func (s NodeState) String() string {
	switch s {
	case StatePending:
		return "Pending"
	case StateAvailable:
		return "Available"
	case StateDestroyed:
		return "Destroyed"
	default:
		return "Unknown"
	}
}

type node struct {
	Node
	state      NodeState
	dependents []string
}

// Graph is a directed acyclic graph of resource modules. An edge A -> B
// means B consumes outputs of A, so A is created first and destroyed last.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]*node
	order []string // declaration order, used as the stable tie-break
}

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*node)}
}

// Build creates a graph from node declarations and validates it.
func Build(nodes []Node) (*Graph, error) {
	g := New()
	for _, n := range nodes {
		if err := g.AddNode(n); err != nil {
			return nil, err
		}
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// AddNode adds a node. The module address defaults to module.<id>.
func (g *Graph) AddNode(n Node) error {
	if n.ID == "" {
		return fmt.Errorf("node with empty id")
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[n.ID]; ok {
		return fmt.Errorf("duplicate node: %s", n.ID)
	}
	if n.Module == "" {
		n.Module = "module." + n.ID
	}
	n.DependsOn = append([]string(nil), n.DependsOn...)
	g.nodes[n.ID] = &node{Node: n}
	g.order = append(g.order, n.ID)
	return nil
}

// Validate rejects unknown dependencies, self references and cycles. It also
// (re)builds the dependents index.
func (g *Graph) Validate() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, id := range g.order {
		g.nodes[id].dependents = nil
	}
	for _, id := range g.order {
		n := g.nodes[id]
		seen := make(map[string]bool, len(n.DependsOn))
		for _, dep := range n.DependsOn {
			if dep == id {
				return fmt.Errorf("self-referential dependency not allowed: %s -> %s", id, id)
			}
			d, ok := g.nodes[dep]
			if !ok {
				return fmt.Errorf("node %s depends on unknown node %s", id, dep)
			}
			if seen[dep] {
				continue
			}
			seen[dep] = true
			d.dependents = append(d.dependents, id)
		}
	}
	return g.detectCycle()
}

// detectCycle runs a depth-first search and reports the first cycle as a
// path. Caller holds the lock.
func (g *Graph) detectCycle() error {
	const (
		unvisited = iota
		visiting
		done
	)
	mark := make(map[string]int, len(g.nodes))
	var stack []string

	var visit func(id string) error
	visit = func(id string) error {
		switch mark[id] {
		case done:
			return nil
		case visiting:
			start := 0
			for i, s := range stack {
				if s == id {
					start = i
					break
				}
			}
			path := append(append([]string(nil), stack[start:]...), id)
			return fmt.Errorf("cycle detected: %s", strings.Join(path, " -> "))
		}
		mark[id] = visiting
		stack = append(stack, id)
		for _, dep := range g.nodes[id].DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		mark[id] = done
		return nil
	}

	for _, id := range g.order {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}

// TopologicalOrder returns the creation order: every node appears after all
// of its dependencies. Ties are broken by declaration order.
func (g *Graph) TopologicalOrder() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	indegree := make(map[string]int, len(g.nodes))
	for _, id := range g.order {
		n := g.nodes[id]
		deps := make(map[string]bool, len(n.DependsOn))
		for _, d := range n.DependsOn {
			if _, ok := g.nodes[d]; !ok {
				return nil, fmt.Errorf("node %s depends on unknown node %s", id, d)
			}
			deps[d] = true
		}
		indegree[id] = len(deps)
	}

	result := make([]string, 0, len(g.order))
	emitted := make(map[string]bool, len(g.order))
	for len(result) < len(g.order) {
		next := ""
		for _, id := range g.order {
			if !emitted[id] && indegree[id] == 0 {
				next = id
				break
			}
		}
		if next == "" {
			return nil, fmt.Errorf("graph contains a cycle")
		}
		emitted[next] = true
		result = append(result, next)
		for _, id := range g.order {
			if emitted[id] {
				continue
			}
			for _, d := range uniq(g.nodes[id].DependsOn) {
				if d == next {
					indegree[id]--
				}
			}
		}
	}
	return result, nil
}

// ReverseOrder returns the destruction order, the exact reverse of
// TopologicalOrder.
func (g *Graph) ReverseOrder() ([]string, error) {
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order, nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.Node, true
}

// Nodes returns all nodes in declaration order.
func (g *Graph) Nodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id].Node)
	}
	return out
}

// Dependents returns the ids of nodes that depend on id, in declaration order.
// Only valid after Validate.
func (g *Graph) Dependents(id string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return append([]string(nil), n.dependents...), nil
}

// NodeForAddress maps an engine resource address such as
// module.cluster.aws_eks_cluster.this or module.db["primary"].x to its node.
func (g *Graph) NodeForAddress(address string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	best, bestLen := "", 0
	for _, id := range g.order {
		m := g.nodes[id].Module
		if !strings.HasPrefix(address, m) {
			continue
		}
		rest := address[len(m):]
		if rest != "" && rest[0] != '.' && rest[0] != '[' {
			continue
		}
		if len(m) > bestLen {
			best, bestLen = id, len(m)
		}
	}
	return best, best != ""
}

// MarkAvailable records that the node's resources exist.
func (g *Graph) MarkAvailable(id string) error {
	return g.setState(id, StateAvailable)
}

// MarkDestroyed records that the node's resources are gone.
func (g *Graph) MarkDestroyed(id string) error {
	return g.setState(id, StateDestroyed)
}

// IsAvailable reports whether the node was marked available.
func (g *Graph) IsAvailable(id string) bool {
	return g.State(id) == StateAvailable
}

// State returns the node's state; unknown ids are Pending.
func (g *Graph) State(id string) NodeState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if n, ok := g.nodes[id]; ok {
		return n.state
	}
	return StatePending
}

func (g *Graph) setState(id string, s NodeState) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("node not found: %s", id)
	}
	n.state = s
	return nil
}

func uniq(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
