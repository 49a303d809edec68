package export

import (
	"fmt"
	"sort"
	"strings"

	"codegraph/internal/ast"
	"codegraph/internal/graph"
)

// defaultMermaidKinds are the relationships drawn when the caller does
// not name any: the structural edges a reader can follow by eye.
var defaultMermaidKinds = []ast.EdgeKind{
	ast.EdgeKindCalls,
	ast.EdgeKindExtends,
	ast.EdgeKindImplements,
}

// Mermaid produces a Mermaid "graph TD" diagram of the edges whose kind
// is in kinds (or defaultMermaidKinds when empty). Nodes are grouped
// into one subgraph per source file; only edge endpoints are drawn, so
// leaf nodes without relationships stay out of the picture.
func Mermaid(store *graph.Store, kinds ...ast.EdgeKind) string {
	if len(kinds) == 0 {
		kinds = defaultMermaidKinds
	}
	wanted := make(map[ast.EdgeKind]bool, len(kinds))
	for _, k := range kinds {
		wanted[k] = true
	}

	files := store.Files()
	sort.Strings(files)

	// Collect the drawable edges and the nodes they touch, per file.
	var edges []ast.Edge
	members := make(map[string][]ast.Node) // file -> nodes to draw
	seen := make(map[ast.NodeID]bool)
	include := func(id ast.NodeID) {
		if seen[id] {
			return
		}
		if n, ok := store.GetNode(id); ok {
			seen[id] = true
			members[n.File] = append(members[n.File], n)
		}
	}
	for _, f := range files {
		for _, e := range store.EdgesInFile(f) {
			if !wanted[e.Kind] {
				continue
			}
			edges = append(edges, e)
			include(e.Source)
			include(e.Target)
		}
	}

	// Short sequential IDs keep the diagram readable and stable.
	ids := make(map[ast.NodeID]string)
	nextID := 0
	getID := func(id ast.NodeID) string {
		if mid, ok := ids[id]; ok {
			return mid
		}
		mid := fmt.Sprintf("N%d", nextID)
		nextID++
		ids[id] = mid
		return mid
	}

	var sb strings.Builder
	sb.WriteString("graph TD\n")

	sub := 0
	for _, f := range files {
		nodes := members[f]
		if len(nodes) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("  subgraph F%d[\"%s\"]\n", sub, shortPath(f)))
		sub++
		for _, n := range nodes {
			sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", getID(n.ID), nodeLabel(n)))
		}
		sb.WriteString("  end\n")
	}

	for _, e := range edges {
		sb.WriteString(fmt.Sprintf("  %s -->|%s| %s\n",
			getID(e.Source), strings.ToLower(string(e.Kind)), getID(e.Target)))
	}

	return sb.String()
}

// nodeLabel renders a node for display, quoting-safe.
func nodeLabel(n ast.Node) string {
	name := strings.ReplaceAll(n.Name, `"`, "'")
	if n.Kind == ast.NodeKindModule || n.Kind == ast.NodeKindClass {
		return fmt.Sprintf("%s (%s)", name, n.Kind)
	}
	return name
}

// shortPath returns the last 2 path segments for readability.
func shortPath(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) <= 2 {
		return path
	}
	return strings.Join(parts[len(parts)-2:], "/")
}
