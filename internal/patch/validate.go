package patch

import (
	"fmt"

	"codegraph/internal/ast"
)

// GraphView is the read surface Validate needs from a graph store. Keeping
// it an interface here avoids an import cycle with the store package.
type GraphView interface {
	HasNode(id ast.NodeID) bool
}

// ValidationError describes why a patch was rejected. A rejected patch is
// discarded whole; the graph is never partially updated.
type ValidationError struct {
	PatchID string
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("patch %s rejected: %s", e.PatchID, e.Reason)
}

// Validate checks a patch against the current graph contents:
//
//  1. no added node ID may already exist in the graph, unless the patch
//     simultaneously removes it (a replace);
//  2. every added edge endpoint must exist in the graph or in the patch's
//     added nodes, net of the patch's removals;
//  3. added node IDs must be unique within the patch.
func Validate(p AstPatch, graph GraphView) error {
	removed := make(map[ast.NodeID]bool, len(p.RemovedNodes))
	for _, id := range p.RemovedNodes {
		removed[id] = true
	}

	added := make(map[ast.NodeID]bool, len(p.AddedNodes))
	for _, n := range p.AddedNodes {
		if added[n.ID] {
			return &ValidationError{
				PatchID: p.ID,
				Reason:  fmt.Sprintf("duplicate added node id %s", n.ID.Hex()),
			}
		}
		added[n.ID] = true

		if graph.HasNode(n.ID) && !removed[n.ID] {
			return &ValidationError{
				PatchID: p.ID,
				Reason:  fmt.Sprintf("added node id %s already exists", n.ID.Hex()),
			}
		}
	}

	// An endpoint is live if it survives the patch: either newly added, or
	// already present and not removed.
	live := func(id ast.NodeID) bool {
		if added[id] {
			return true
		}
		return graph.HasNode(id) && !removed[id]
	}

	for _, e := range p.AddedEdges {
		if !live(e.Source) {
			return &ValidationError{
				PatchID: p.ID,
				Reason:  fmt.Sprintf("edge source %s does not resolve to a live node", e.Source.Hex()),
			}
		}
		if !live(e.Target) {
			return &ValidationError{
				PatchID: p.ID,
				Reason:  fmt.Sprintf("edge target %s does not resolve to a live node", e.Target.Hex()),
			}
		}
	}

	return nil
}
