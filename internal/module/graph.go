package module

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dominikbraun/graph"
)

// Graph is a set of module records and the edges between them.
//
// Vertices and adjacency live in a directed graph.Graph keyed by
// Identity. The graph holds one edge per module pair, so the ordered edge
// list keeps every specifier, including a second specifier resolving to
// the same module and edges whose target is not yet added.
type Graph struct {
	// Entries are the entry identities the graph was built from.
	Entries []Identity

	g       graph.Graph[Identity, *Record]
	order   []Identity
	edges   []Edge
	out     map[Identity][]int
	pending map[Identity][]int
}

func recordID(r *Record) Identity { return r.ID }

// NewGraph creates an empty graph.
func NewGraph(entries ...Identity) *Graph {
	return &Graph{
		Entries: entries,
		g:       graph.New(recordID, graph.Directed()),
		out:     make(map[Identity][]int),
		pending: make(map[Identity][]int),
	}
}

// Add inserts a record. It reports false, leaving the graph unchanged, if a
// record with the same identity already exists.
func (g *Graph) Add(r *Record) bool {
	if g.Has(r.ID) {
		return false
	}
	r.Index = len(g.order)
	if err := g.g.AddVertex(r); err != nil {
		return false
	}
	g.order = append(g.order, r.ID)

	waiting := g.pending[r.ID]
	delete(g.pending, r.ID)
	for _, i := range waiting {
		g.link(i)
	}
	return true
}

// AddEdge records a dependency edge. Endpoints may be added later.
func (g *Graph) AddEdge(e Edge) {
	i := len(g.edges)
	g.out[e.From] = append(g.out[e.From], i)
	g.edges = append(g.edges, e)
	g.link(i)
}

// link connects edge i in the adjacency graph once both endpoints exist.
func (g *Graph) link(i int) {
	e := g.edges[i]
	for _, id := range []Identity{e.From, e.To} {
		if !g.Has(id) {
			g.pending[id] = append(g.pending[id], i)
			return
		}
	}
	// Both endpoints exist; the only failure left is graph.ErrEdgeAlreadyExists.
	_ = g.g.AddEdge(e.From, e.To)
}

// Get returns the record for id.
func (g *Graph) Get(id Identity) (*Record, bool) {
	r, err := g.g.Vertex(id)
	if err != nil {
		return nil, false
	}
	return r, true
}

// Has reports whether id is in the graph.
func (g *Graph) Has(id Identity) bool {
	_, ok := g.Get(id)
	return ok
}

// Len returns the number of modules.
func (g *Graph) Len() int {
	return len(g.order)
}

// Modules returns the records in first-discovery order.
func (g *Graph) Modules() []*Record {
	out := make([]*Record, 0, len(g.order))
	for _, id := range g.order {
		r, _ := g.Get(id)
		out = append(out, r)
	}
	return out
}

// Edges returns every edge in insertion order.
func (g *Graph) Edges() []Edge {
	return slices.Clone(g.edges)
}

// EdgesFrom returns the outgoing edges of id in declaration order.
func (g *Graph) EdgesFrom(id Identity) []Edge {
	idx := g.out[id]
	out := make([]Edge, 0, len(idx))
	for _, i := range idx {
		out = append(out, g.edges[i])
	}
	return out
}

// CheckClosed verifies that both endpoints of every edge are modules of the
// graph.
func (g *Graph) CheckClosed() error {
	if len(g.pending) == 0 {
		return nil
	}
	var missing []string
	for _, e := range g.edges {
		if !g.Has(e.From) {
			missing = append(missing, fmt.Sprintf("%s (source of %q)", e.From, e.Specifier))
		}
		if !g.Has(e.To) {
			missing = append(missing, fmt.Sprintf("%s (target of %q)", e.To, e.Specifier))
		}
	}
	return fmt.Errorf("graph not closed: %s", strings.Join(missing, ", "))
}

// Dependents returns every module that transitively imports one of ids,
// including the ids themselves that are in the graph, in discovery order.
func (g *Graph) Dependents(ids ...Identity) []Identity {
	preds, err := g.g.PredecessorMap()
	if err != nil {
		return nil
	}

	seen := make(map[Identity]bool)
	stack := make([]Identity, 0, len(ids))
	for _, id := range ids {
		if g.Has(id) && !seen[id] {
			seen[id] = true
			stack = append(stack, id)
		}
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for from := range preds[id] {
			if !seen[from] {
				seen[from] = true
				stack = append(stack, from)
			}
		}
	}
	return g.inOrder(seen)
}

// Cycles returns the groups of modules that import each other, directly or
// through other members of the group. Members are in discovery order and
// groups are ordered by their first member.
func (g *Graph) Cycles() [][]Identity {
	sccs, err := graph.StronglyConnectedComponents(g.g)
	if err != nil {
		return nil
	}
	adj, err := g.g.AdjacencyMap()
	if err != nil {
		return nil
	}

	var out [][]Identity
	for _, scc := range sccs {
		if len(scc) == 1 {
			if _, self := adj[scc[0]][scc[0]]; !self {
				continue
			}
		}
		members := make(map[Identity]bool, len(scc))
		for _, id := range scc {
			members[id] = true
		}
		out = append(out, g.inOrder(members))
	}
	slices.SortFunc(out, func(a, b []Identity) int {
		ra, _ := g.Get(a[0])
		rb, _ := g.Get(b[0])
		return ra.Index - rb.Index
	})
	return out
}

func (g *Graph) inOrder(set map[Identity]bool) []Identity {
	out := make([]Identity, 0, len(set))
	for _, id := range g.order {
		if set[id] {
			out = append(out, id)
		}
	}
	return out
}

// ByPath returns the records whose file path equals path, for any query.
func (g *Graph) ByPath(path string) []*Record {
	var out []*Record
	for _, id := range g.order {
		if id.Path() == path {
			r, _ := g.Get(id)
			out = append(out, r)
		}
	}
	return out
}
