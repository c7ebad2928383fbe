// Package graph holds an in-memory snapshot of entities indexed by
// identifier. It checks structural rules (unique identifiers across kinds,
// resolvable references, acyclic hierarchies), orders records so parents
// precede children, and computes derived activity timestamps.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/c5t/c5t/internal/types"
)

// CollisionError reports an identifier used by two different kinds.
type CollisionError struct {
	ID       string
	Existing types.Kind
	Incoming types.Kind
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("identifier %s is used by both %s and %s", e.ID, e.Existing, e.Incoming)
}

// DanglingRefError reports a reference that resolves to nothing.
type DanglingRefError struct {
	Kind   types.Kind
	ID     string
	Field  string
	Target string
}

func (e *DanglingRefError) Error() string {
	return fmt.Sprintf("%s %s: %s %s does not exist", e.Kind, e.ID, e.Field, e.Target)
}

// DanglingLinkError reports a join record whose endpoint does not exist.
type DanglingLinkError struct {
	Link   types.Link
	Field  string
	Target string
}

func (e *DanglingLinkError) Error() string {
	return fmt.Sprintf("%s: %s %s does not exist", e.Link, e.Field, e.Target)
}

// CycleError reports records whose parent references form a loop.
type CycleError struct {
	Kind types.Kind
	IDs  []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s reference cycle through %s", e.Kind, strings.Join(e.IDs, ", "))
}

// Graph is an arena of entities plus an index by identifier.
type Graph struct {
	nodes []types.Entity
	index map[string]int
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{index: make(map[string]int)}
}

// Add inserts e. Adding an identifier already held by another kind returns
// a *CollisionError; adding one held by the same kind replaces it.
func (g *Graph) Add(e types.Entity) error {
	id := e.EntityID()
	if i, ok := g.index[id]; ok {
		existing := g.nodes[i]
		if existing.EntityKind() != e.EntityKind() {
			return &CollisionError{ID: id, Existing: existing.EntityKind(), Incoming: e.EntityKind()}
		}
		g.nodes[i] = e
		return nil
	}
	g.index[id] = len(g.nodes)
	g.nodes = append(g.nodes, e)
	return nil
}

// Get returns the entity with the given identifier.
func (g *Graph) Get(id string) (types.Entity, bool) {
	i, ok := g.index[id]
	if !ok {
		return nil, false
	}
	return g.nodes[i], true
}

// Has returns true if id is present with the given kind.
func (g *Graph) Has(kind types.Kind, id string) bool {
	e, ok := g.Get(id)
	return ok && e.EntityKind() == kind
}

// OfKind returns the entities of one kind ordered by identifier.
func (g *Graph) OfKind(kind types.Kind) []types.Entity {
	var out []types.Entity
	for _, e := range g.nodes {
		if e.EntityKind() == kind {
			out = append(out, e)
		}
	}
	sortByID(out)
	return out
}

// Validate checks that every reference resolves inside the graph and that
// no hierarchy contains a cycle. All problems are returned.
func (g *Graph) Validate() []error {
	var errs []error
	for _, kind := range types.Kinds {
		for _, e := range g.OfKind(kind) {
			for _, ref := range e.Refs() {
				if !g.Has(ref.Kind, ref.ID) {
					errs = append(errs, &DanglingRefError{
						Kind:   kind,
						ID:     e.EntityID(),
						Field:  ref.Field,
						Target: ref.ID,
					})
				}
			}
		}
		if _, cyclic := Order(g.OfKind(kind)); len(cyclic) > 0 {
			errs = append(errs, &CycleError{Kind: kind, IDs: ids(cyclic)})
		}
	}
	return errs
}

// ValidateLink checks that both endpoints of l exist with the right kinds.
func (g *Graph) ValidateLink(l types.Link) error {
	for _, ref := range l.Refs() {
		if !g.Has(ref.Kind, ref.ID) {
			return &DanglingLinkError{Link: l, Field: ref.Field, Target: ref.ID}
		}
	}
	return nil
}

// Order sorts records of a single kind so that every record follows its
// parent when the parent is among them. Records that sit on, or below, a
// parent cycle are returned separately and left out of the ordering.
// Ordering is deterministic: siblings are visited by identifier.
func Order(records []types.Entity) (ordered, cyclic []types.Entity) {
	byID := make(map[string]types.Entity, len(records))
	for _, e := range records {
		byID[e.EntityID()] = e
	}

	sorted := append([]types.Entity(nil), records...)
	sortByID(sorted)

	const (
		unvisited = iota
		visiting
		done
		broken
	)
	state := make(map[string]int, len(records))

	var visit func(e types.Entity) bool
	visit = func(e types.Entity) bool {
		id := e.EntityID()
		switch state[id] {
		case done:
			return true
		case visiting, broken:
			state[id] = broken
			return false
		}
		state[id] = visiting

		for _, ref := range e.Refs() {
			if !ref.IsParent(e.EntityKind()) {
				continue
			}
			parent, ok := byID[ref.ID]
			if !ok {
				continue
			}
			if !visit(parent) {
				state[id] = broken
				return false
			}
		}

		state[id] = done
		ordered = append(ordered, e)
		return true
	}

	for _, e := range sorted {
		if state[e.EntityID()] == unvisited {
			visit(e)
		}
	}

	for _, e := range sorted {
		if state[e.EntityID()] == broken {
			cyclic = append(cyclic, e)
		}
	}
	return ordered, cyclic
}

func sortByID(records []types.Entity) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].EntityID() < records[j].EntityID()
	})
}

func ids(records []types.Entity) []string {
	out := make([]string, len(records))
	for i, e := range records {
		out[i] = e.EntityID()
	}
	return out
}
