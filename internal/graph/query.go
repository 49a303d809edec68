package graph

import (
	"fmt"
	"sort"

	"codegraph/internal/ast"
)

// Query is the read-only algorithm layer over a Store snapshot. It never
// mutates the graph.
type Query struct {
	store *Store
}

// NewQuery creates a query engine over a store.
func NewQuery(store *Store) *Query {
	return &Query{store: store}
}

// PathResult is the outcome of TracePath. Found=false with a zero path
// means no path exists within the depth budget; that is a normal
// outcome, not an error.
type PathResult struct {
	Found    bool         `json:"found"`
	Source   ast.NodeID   `json:"source"`
	Target   ast.NodeID   `json:"target"`
	Distance int          `json:"distance"`
	Path     []ast.NodeID `json:"path,omitempty"`
	Edges    []ast.Edge   `json:"edges,omitempty"`
}

// TraceOptions tunes path tracing.
type TraceOptions struct {
	// MaxDepth bounds the search; 0 means the default of 10.
	MaxDepth int
	// FollowReverse additionally traverses edges against their direction.
	FollowReverse bool
}

const defaultTraceDepth = 10

// TracePath finds a shortest path from source to target by breadth-first
// search over the directed edge relation. When several frontier edges are
// available they are visited ordered by (edge kind, target id) ascending,
// so the returned path is reproducible among equal-length alternatives.
func (q *Query) TracePath(source, target ast.NodeID, opts TraceOptions) (PathResult, error) {
	if !q.store.HasNode(source) {
		return PathResult{}, fmt.Errorf("trace path: source %s: %w", source.Hex(), ErrNotFound)
	}
	if !q.store.HasNode(target) {
		return PathResult{}, fmt.Errorf("trace path: target %s: %w", target.Hex(), ErrNotFound)
	}

	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = defaultTraceDepth
	}

	if source == target {
		return PathResult{
			Found:  true,
			Source: source,
			Target: target,
			Path:   []ast.NodeID{source},
		}, nil
	}

	type hop struct {
		id    ast.NodeID
		depth int
	}
	queue := []hop{{id: source}}
	visited := map[ast.NodeID]bool{source: true}
	parent := make(map[ast.NodeID]ast.NodeID)
	parentEdge := make(map[ast.NodeID]ast.Edge)

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current.depth >= maxDepth {
			continue
		}

		for _, step := range q.frontier(current.id, opts.FollowReverse) {
			if visited[step.neighbor] {
				continue
			}
			visited[step.neighbor] = true
			parent[step.neighbor] = current.id
			parentEdge[step.neighbor] = step.edge

			if step.neighbor == target {
				return q.reconstruct(source, target, parent, parentEdge), nil
			}
			queue = append(queue, hop{id: step.neighbor, depth: current.depth + 1})
		}
	}

	return PathResult{Found: false, Source: source, Target: target}, nil
}

type frontierStep struct {
	neighbor ast.NodeID
	edge     ast.Edge
}

// frontier returns the traversable steps from a node, sorted by
// (edge kind, neighbor id) for deterministic tie-breaking.
func (q *Query) frontier(id ast.NodeID, followReverse bool) []frontierStep {
	var steps []frontierStep
	for _, e := range q.store.OutgoingEdges(id) {
		steps = append(steps, frontierStep{neighbor: e.Target, edge: e})
	}
	if followReverse {
		for _, e := range q.store.IncomingEdges(id) {
			steps = append(steps, frontierStep{neighbor: e.Source, edge: e})
		}
	}
	sort.Slice(steps, func(i, j int) bool {
		if steps[i].edge.Kind != steps[j].edge.Kind {
			return steps[i].edge.Kind < steps[j].edge.Kind
		}
		return steps[i].neighbor.Less(steps[j].neighbor)
	})
	return steps
}

// reconstruct walks the parent chain from target back to source.
func (q *Query) reconstruct(source, target ast.NodeID, parent map[ast.NodeID]ast.NodeID, parentEdge map[ast.NodeID]ast.Edge) PathResult {
	var path []ast.NodeID
	var edges []ast.Edge

	current := target
	path = append(path, current)
	for current != source {
		edges = append(edges, parentEdge[current])
		current = parent[current]
		path = append(path, current)
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
		edges[i], edges[j] = edges[j], edges[i]
	}

	return PathResult{
		Found:    true,
		Source:   source,
		Target:   target,
		Distance: len(path) - 1,
		Path:     path,
		Edges:    edges,
	}
}

// DependencyType selects which outgoing edges count as dependencies.
type DependencyType string

const (
	DepDirect  DependencyType = "direct" // all edge kinds
	DepCalls   DependencyType = "calls"
	DepImports DependencyType = "imports"
	DepReads   DependencyType = "reads"
	DepWrites  DependencyType = "writes"
)

// edgeKind maps a dependency type to its edge kind; ok=false means "all".
func (d DependencyType) edgeKind() (ast.EdgeKind, bool) {
	switch d {
	case DepCalls:
		return ast.EdgeKindCalls, true
	case DepImports:
		return ast.EdgeKindImports, true
	case DepReads:
		return ast.EdgeKindReads, true
	case DepWrites:
		return ast.EdgeKindWrites, true
	default:
		return "", false
	}
}

// Dependency is one direct outgoing relationship of a node.
type Dependency struct {
	Node     ast.Node       `json:"node"`
	EdgeKind ast.EdgeKind   `json:"edgeKind"`
	Type     DependencyType `json:"type"`
}

// FindDependencies lists the nodes a symbol directly depends on, optionally
// filtered to one edge kind.
func (q *Query) FindDependencies(id ast.NodeID, depType DependencyType) ([]Dependency, error) {
	if !q.store.HasNode(id) {
		return nil, fmt.Errorf("find dependencies: %s: %w", id.Hex(), ErrNotFound)
	}

	wantKind, filtered := depType.edgeKind()
	var out []Dependency
	for _, e := range q.store.OutgoingEdges(id) {
		if filtered && e.Kind != wantKind {
			continue
		}
		target, ok := q.store.GetNode(e.Target)
		if !ok {
			continue
		}
		out = append(out, Dependency{Node: target, EdgeKind: e.Kind, Type: depType})
	}
	return out, nil
}

// Reference is one incoming relationship to a symbol.
type Reference struct {
	Node         ast.Node     `json:"node"`
	EdgeKind     ast.EdgeKind `json:"edgeKind,omitempty"`
	IsDefinition bool         `json:"isDefinition,omitempty"`
}

// FindReferences lists the nodes referring to a symbol via incoming edges.
// With includeDefinitions the symbol's own definition node is part of the
// result set.
func (q *Query) FindReferences(id ast.NodeID, includeDefinitions bool) ([]Reference, error) {
	node, ok := q.store.GetNode(id)
	if !ok {
		return nil, fmt.Errorf("find references: %s: %w", id.Hex(), ErrNotFound)
	}

	var out []Reference
	if includeDefinitions {
		out = append(out, Reference{Node: node, IsDefinition: true})
	}
	for _, e := range q.store.IncomingEdges(id) {
		source, ok := q.store.GetNode(e.Source)
		if !ok {
			continue
		}
		out = append(out, Reference{Node: source, EdgeKind: e.Kind})
	}
	return out, nil
}
