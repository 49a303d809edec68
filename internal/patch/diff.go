package patch

import "codegraph/internal/ast"

// Diff computes the patch that turns one file's previous graph contents
// (oldNodes, oldEdges) into the contents of a fresh parse (newNodes,
// newEdges). Nodes are compared by ID, edges by the full
// (source, target, kind) triple; unchanged elements drop out.
func Diff(repoID, filePath string, oldNodes []ast.Node, oldEdges []ast.Edge, newNodes []ast.Node, newEdges []ast.Edge) AstPatch {
	b := NewBuilder(repoID, filePath)

	oldNodeSet := make(map[ast.NodeID]bool, len(oldNodes))
	for _, n := range oldNodes {
		oldNodeSet[n.ID] = true
	}
	newNodeSet := make(map[ast.NodeID]bool, len(newNodes))
	for _, n := range newNodes {
		newNodeSet[n.ID] = true
	}

	for _, n := range newNodes {
		if !oldNodeSet[n.ID] {
			b.AddNode(n)
		}
	}
	for _, n := range oldNodes {
		if !newNodeSet[n.ID] {
			b.RemoveNode(n.ID)
		}
	}

	oldEdgeSet := make(map[ast.Edge]bool, len(oldEdges))
	for _, e := range oldEdges {
		oldEdgeSet[e] = true
	}
	newEdgeSet := make(map[ast.Edge]bool, len(newEdges))
	for _, e := range newEdges {
		newEdgeSet[e] = true
	}

	for _, e := range newEdges {
		if !oldEdgeSet[e] {
			b.AddEdge(e)
		}
	}
	for _, e := range oldEdges {
		if !newEdgeSet[e] {
			b.RemoveEdge(e)
		}
	}

	return b.Build()
}
