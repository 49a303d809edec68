package graph

import (
	"sort"
	"strings"

	"codegraph/internal/ast"
	"codegraph/internal/patch"
)

// Linker resolves call-site nodes to the definitions they most likely
// target, across file boundaries. Backends can only emit edges within one
// file; the linker runs after patches land and proposes the cross-file
// Calls edges as ordinary patches, one per file, so they go through the
// same validate/apply path as everything else.
type Linker struct {
	store *Store
}

// NewLinker creates a linker over a store.
func NewLinker(store *Store) *Linker {
	return &Linker{store: store}
}

// Link scans every Call node and resolves its callee name against the
// symbol index. A call resolves when exactly matching Function or Method
// definitions exist; with several same-named candidates, all of them get
// an edge (the graph records possibility, not proof). Already-present
// edges are skipped. Returned patches are grouped by the call site's file
// and sorted by path for determinism.
func (l *Linker) Link(repoID string) []patch.AstPatch {
	builders := make(map[string]*patch.Builder)

	for _, call := range l.store.NodesByKind(ast.NodeKindCall) {
		callee := calleeName(call.Name)
		if callee == "" {
			continue
		}

		for _, def := range l.store.NodesByName(callee) {
			if def.Kind != ast.NodeKindFunction && def.Kind != ast.NodeKindMethod {
				continue
			}
			edge := ast.NewEdge(call.ID, def.ID, ast.EdgeKindCalls)
			if l.hasEdge(call.ID, edge) {
				continue
			}
			b, ok := builders[call.File]
			if !ok {
				b = patch.NewBuilder(repoID, call.File)
				builders[call.File] = b
			}
			b.AddEdge(edge)
		}
	}

	files := make([]string, 0, len(builders))
	for f := range builders {
		files = append(files, f)
	}
	sort.Strings(files)

	out := make([]patch.AstPatch, 0, len(files))
	for _, f := range files {
		out = append(out, builders[f].Build())
	}
	return out
}

func (l *Linker) hasEdge(source ast.NodeID, edge ast.Edge) bool {
	for _, e := range l.store.OutgoingEdges(source) {
		if e == edge {
			return true
		}
	}
	return false
}

// calleeName extracts the bare symbol from a call expression name:
// "pkg.helper" and "obj.method" both resolve by their last segment.
func calleeName(name string) string {
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		name = name[idx+1:]
	}
	return strings.TrimSpace(name)
}
