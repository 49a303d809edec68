package patch

import (
	"fmt"

	"codegraph/internal/ast"
)

// Merge combines two patches for the same (repoID, filePath) into one.
// Additions and removals are unioned with cancellation: an element added by
// one patch and removed by the other drops out of the merged result
// entirely. When both patches add a node with the same ID, the payload of
// the later patch (by timestamp) wins.
func Merge(a, b AstPatch) (AstPatch, error) {
	if a.RepoID != b.RepoID || a.FilePath != b.FilePath {
		return AstPatch{}, fmt.Errorf("merge patches: %s/%s and %s/%s target different files",
			a.RepoID, a.FilePath, b.RepoID, b.FilePath)
	}

	earlier, later := a, b
	if a.TimestampMs > b.TimestampMs {
		earlier, later = b, a
	}

	merged := New(a.RepoID, a.FilePath)
	merged.TimestampMs = later.TimestampMs

	// Later payload wins on node ID conflicts, so insert earlier first.
	addedNodes := make(map[ast.NodeID]ast.Node)
	for _, n := range earlier.AddedNodes {
		addedNodes[n.ID] = n
	}
	for _, n := range later.AddedNodes {
		addedNodes[n.ID] = n
	}

	removedNodes := make(map[ast.NodeID]bool)
	for _, id := range earlier.RemovedNodes {
		removedNodes[id] = true
	}
	for _, id := range later.RemovedNodes {
		removedNodes[id] = true
	}

	// Cancellation: an ID both added and removed across the pair nets out.
	for id := range removedNodes {
		if _, ok := addedNodes[id]; ok {
			delete(addedNodes, id)
			delete(removedNodes, id)
		}
	}

	addedEdges := make(map[ast.Edge]bool)
	for _, e := range earlier.AddedEdges {
		addedEdges[e] = true
	}
	for _, e := range later.AddedEdges {
		addedEdges[e] = true
	}

	removedEdges := make(map[ast.Edge]bool)
	for _, e := range earlier.RemovedEdges {
		removedEdges[e] = true
	}
	for _, e := range later.RemovedEdges {
		removedEdges[e] = true
	}

	for e := range removedEdges {
		if addedEdges[e] {
			delete(addedEdges, e)
			delete(removedEdges, e)
		}
	}

	// Preserve original ordering where possible: walk the source slices and
	// emit survivors once each.
	emittedNode := make(map[ast.NodeID]bool)
	for _, n := range append(earlier.AddedNodes, later.AddedNodes...) {
		if payload, ok := addedNodes[n.ID]; ok && !emittedNode[n.ID] {
			emittedNode[n.ID] = true
			merged.AddedNodes = append(merged.AddedNodes, payload)
		}
	}
	emittedRemoval := make(map[ast.NodeID]bool)
	for _, id := range append(earlier.RemovedNodes, later.RemovedNodes...) {
		if removedNodes[id] && !emittedRemoval[id] {
			emittedRemoval[id] = true
			merged.RemovedNodes = append(merged.RemovedNodes, id)
		}
	}
	emittedEdge := make(map[ast.Edge]bool)
	for _, e := range append(earlier.AddedEdges, later.AddedEdges...) {
		if addedEdges[e] && !emittedEdge[e] {
			emittedEdge[e] = true
			merged.AddedEdges = append(merged.AddedEdges, e)
		}
	}
	emittedEdgeRemoval := make(map[ast.Edge]bool)
	for _, e := range append(earlier.RemovedEdges, later.RemovedEdges...) {
		if removedEdges[e] && !emittedEdgeRemoval[e] {
			emittedEdgeRemoval[e] = true
			merged.RemovedEdges = append(merged.RemovedEdges, e)
		}
	}

	return merged, nil
}
