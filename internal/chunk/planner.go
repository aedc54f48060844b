// Package chunk partitions a module graph into output chunks.
//
// The default planner emits one chunk per named entry. Each chunk holds the
// modules reachable from its entry, ordered so that every module comes
// after the modules it depends on. Back edges of cycles are skipped, which
// is safe because the chunk runtime registers a module's exports before
// running its factory.
//
// Modules shared between entries are copied into every chunk that reaches
// them. Splitting shared code into common chunks belongs to a different
// Planner.
package chunk

import (
	"fmt"

	"github.com/vango-dev/vpack/internal/module"
)

// Entry names one entry point of the build.
type Entry struct {
	Name string
	ID   module.Identity
}

// Chunk is a group of modules emitted together.
type Chunk struct {
	// Name is the entry name; it feeds the [name] filename token.
	Name string

	// Entry is the identity of the chunk's entry module.
	Entry module.Identity

	// Modules are in dependency order: dependencies before dependents,
	// entry last.
	Modules []*module.Record

	// Hash is set by the emitter from the serialized chunk.
	Hash string

	// Files are the code assets emitted for the chunk.
	Files []string
}

// Planner assigns graph modules to chunks.
type Planner interface {
	Plan(g *module.Graph, entries []Entry) ([]*Chunk, error)
}

// EntryPlanner is the default Planner: one chunk per entry.
type EntryPlanner struct{}

// Plan implements Planner.
func (EntryPlanner) Plan(g *module.Graph, entries []Entry) ([]*Chunk, error) {
	return Plan(g, entries)
}

// Plan builds one chunk per entry, in entry order.
func Plan(g *module.Graph, entries []Entry) ([]*Chunk, error) {
	chunks := make([]*Chunk, 0, len(entries))
	names := make(map[string]bool, len(entries))

	for _, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("chunk entry %s has no name", e.ID)
		}
		if names[e.Name] {
			return nil, fmt.Errorf("duplicate chunk name %q", e.Name)
		}
		names[e.Name] = true

		if !g.Has(e.ID) {
			return nil, fmt.Errorf("entry %q (%s) is not in the graph", e.Name, e.ID)
		}
		chunks = append(chunks, &Chunk{
			Name:    e.Name,
			Entry:   e.ID,
			Modules: order(g, e.ID),
		})
	}
	return chunks, nil
}

// order returns the modules reachable from entry in depth-first post-order,
// following edges in declaration order.
func order(g *module.Graph, entry module.Identity) []*module.Record {
	var (
		out     []*module.Record
		visited = make(map[module.Identity]bool)
	)

	type frame struct {
		id    module.Identity
		edges []module.Edge
		next  int
	}
	visited[entry] = true
	stack := []*frame{{id: entry, edges: g.EdgesFrom(entry)}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next < len(top.edges) {
			to := top.edges[top.next].To
			top.next++
			if visited[to] || !g.Has(to) {
				continue
			}
			visited[to] = true
			stack = append(stack, &frame{id: to, edges: g.EdgesFrom(to)})
			continue
		}
		stack = stack[:len(stack)-1]
		rec, _ := g.Get(top.id)
		out = append(out, rec)
	}
	return out
}

// Contains reports whether the chunk includes id.
func (c *Chunk) Contains(id module.Identity) bool {
	for _, m := range c.Modules {
		if m.ID == id {
			return true
		}
	}
	return false
}
