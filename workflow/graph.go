package workflow

import (
	"sort"
	"strings"

	"github.com/modelscope/agentscope-sub001/types"
)

// Edge connects two nodes. A non-empty SourceHandle marks conditional
// routing out of a branching node; an empty one is unconditional data or
// control flow. Multiple edges between the same pair are permitted.
type Edge struct {
	Source       string `json:"source" yaml:"source"`
	SourceHandle string `json:"source_handle,omitempty" yaml:"source_handle,omitempty"`
	Target       string `json:"target" yaml:"target"`
	TargetHandle string `json:"target_handle,omitempty" yaml:"target_handle,omitempty"`
}

// Graph is a validated acyclic multigraph over node descriptors and edges.
// It is immutable after Build and safe for concurrent readers.
type Graph struct {
	nodes map[string]Node
	descs map[string]Descriptor
	// order preserves insertion order for deterministic traversal.
	order []string
	out   map[string][]Edge
	in    map[string][]Edge
}

// Node returns the instantiated node for an id.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Descriptor returns the declaration of a node.
func (g *Graph) Descriptor(id string) (Descriptor, bool) {
	d, ok := g.descs[id]
	return d, ok
}

// NodeIDs returns all node ids in insertion order.
func (g *Graph) NodeIDs() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Len returns the node count.
func (g *Graph) Len() int { return len(g.order) }

// OutEdges returns the outgoing edges of a node.
func (g *Graph) OutEdges(id string) []Edge { return g.out[id] }

// InEdges returns the incoming edges of a node.
func (g *Graph) InEdges(id string) []Edge { return g.in[id] }

// Successors returns the distinct direct successors of a node in edge order.
func (g *Graph) Successors(id string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range g.out[id] {
		if !seen[e.Target] {
			seen[e.Target] = true
			out = append(out, e.Target)
		}
	}
	return out
}

// Predecessors returns the distinct direct predecessors of a node.
func (g *Graph) Predecessors(id string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range g.in[id] {
		if !seen[e.Source] {
			seen[e.Source] = true
			out = append(out, e.Source)
		}
	}
	return out
}

// Descendants returns the set of nodes reachable from id, excluding id.
func (g *Graph) Descendants(id string) map[string]bool {
	reached := make(map[string]bool)
	var walk func(string)
	walk = func(cur string) {
		for _, succ := range g.Successors(cur) {
			if !reached[succ] {
				reached[succ] = true
				walk(succ)
			}
		}
	}
	walk(id)
	return reached
}

// BranchHandle derives the branch label of an edge by stripping the source
// node's id prefix (plus one separator) from the edge's source handle.
func (g *Graph) BranchHandle(e Edge) string {
	h := strings.TrimPrefix(e.SourceHandle, e.Source)
	return strings.TrimLeft(h, "-_./")
}

// HandleCount returns how many branch outcomes a node defines.
func (g *Graph) HandleCount(id string) int {
	return len(g.descs[id].Handles)
}

// DefaultStartNodes returns the entry-typed nodes: every session pseudo
// node plus the single genuine start node. It fails when the graph does not
// declare exactly one genuine start.
func (g *Graph) DefaultStartNodes() ([]string, error) {
	var session, starts []string
	for _, id := range g.order {
		tr := TraitsOf(g.descs[id].Type)
		if !tr.Entry {
			continue
		}
		if tr.Session {
			session = append(session, id)
		} else {
			starts = append(starts, id)
		}
	}
	if len(starts) > 1 {
		return nil, types.NewGraphError(types.ErrGraphEntry,
			"multiple start nodes found: %v", starts)
	}
	if len(starts) == 0 && len(session) == 0 {
		return nil, types.NewGraphError(types.ErrGraphEntry, "no start node found")
	}
	return append(session, starts...), nil
}

// DefaultEndNodes returns the single exit-typed node.
func (g *Graph) DefaultEndNodes() ([]string, error) {
	var ends []string
	for _, id := range g.order {
		if TraitsOf(g.descs[id].Type).Exit {
			ends = append(ends, id)
		}
	}
	if len(ends) != 1 {
		return nil, types.NewGraphError(types.ErrGraphExit,
			"expected exactly one end node, found %d: %v", len(ends), ends)
	}
	return ends, nil
}

// PauseNodesFrom walks forward from each start node and records the first
// suspend-typed node on each path; traversal along a path stops at that
// node, so a pause node's own downstream is not searched from that path.
// A start node of suspend type does not pause on itself.
func (g *Graph) PauseNodesFrom(startNodes []string) []string {
	pauseSet := make(map[string]bool)
	for _, start := range startNodes {
		visited := make(map[string]bool)
		var walk func(string)
		walk = func(cur string) {
			for _, succ := range g.Successors(cur) {
				if visited[succ] {
					continue
				}
				visited[succ] = true
				if TraitsOf(g.descs[succ].Type).Suspend {
					pauseSet[succ] = true
					continue
				}
				walk(succ)
			}
		}
		walk(start)
	}
	out := make([]string, 0, len(pauseSet))
	for id := range pauseSet {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SortedNodes computes the nodes that must run this turn: the union of each
// start node plus its descendants, minus each stop or pause node plus its
// descendants, in topological order of the induced subgraph. Pass a nil
// pause list when pausing is disabled.
func (g *Graph) SortedNodes(start, stop, pause []string) ([]string, error) {
	include := make(map[string]bool)
	for _, id := range start {
		if _, ok := g.descs[id]; !ok {
			return nil, types.NewGraphError(types.ErrGraphUnknownNode,
				"start node %q not in graph", id)
		}
		include[id] = true
		for d := range g.Descendants(id) {
			include[d] = true
		}
	}

	exclude := make(map[string]bool)
	for _, id := range append(append([]string{}, stop...), pause...) {
		if _, ok := g.descs[id]; !ok {
			return nil, types.NewGraphError(types.ErrGraphUnknownNode,
				"boundary node %q not in graph", id)
		}
		exclude[id] = true
		for d := range g.Descendants(id) {
			exclude[d] = true
		}
	}

	selected := make(map[string]bool)
	for id := range include {
		if !exclude[id] {
			selected[id] = true
		}
	}
	return g.topoSort(selected)
}

// topoSort is Kahn's algorithm over the subgraph induced by selected,
// breaking ties by insertion order for determinism.
func (g *Graph) topoSort(selected map[string]bool) ([]string, error) {
	indegree := make(map[string]int, len(selected))
	for id := range selected {
		indegree[id] = 0
	}
	for id := range selected {
		for _, succ := range g.Successors(id) {
			if selected[succ] {
				indegree[succ]++
			}
		}
	}

	var ready []string
	for _, id := range g.order {
		if selected[id] && indegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	out := make([]string, 0, len(selected))
	for len(ready) > 0 {
		cur := ready[0]
		ready = ready[1:]
		out = append(out, cur)
		for _, succ := range g.Successors(cur) {
			if !selected[succ] {
				continue
			}
			indegree[succ]--
			if indegree[succ] == 0 {
				ready = append(ready, succ)
			}
		}
	}
	if len(out) != len(selected) {
		// Build already rejected cycles; reaching here means the induced
		// subgraph disagrees with the validated graph.
		return nil, types.NewGraphError(types.ErrGraphCycle,
			"cycle in induced subgraph: ordered %d of %d nodes", len(out), len(selected))
	}
	return out, nil
}
