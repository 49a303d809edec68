// Package patch computes and represents per-file graph mutations. A patch
// is the only unit of change a graph store accepts: constructed by Diff,
// checked by Validate, then applied atomically or rejected whole.
package patch

import (
	"time"

	"github.com/google/uuid"

	"codegraph/internal/ast"
)

// AstPatch is the set of node/edge additions and removals for one file at
// one point in time.
type AstPatch struct {
	ID           string       `json:"id"`
	RepoID       string       `json:"repoId"`
	FilePath     string       `json:"filePath"`
	TimestampMs  int64        `json:"timestampMs"`
	AddedNodes   []ast.Node   `json:"addedNodes"`
	RemovedNodes []ast.NodeID `json:"removedNodes"`
	AddedEdges   []ast.Edge   `json:"addedEdges"`
	RemovedEdges []ast.Edge   `json:"removedEdges"`
}

// New creates an empty patch for one file, stamped with the current time.
func New(repoID, filePath string) AstPatch {
	return AstPatch{
		ID:          uuid.NewString(),
		RepoID:      repoID,
		FilePath:    filePath,
		TimestampMs: time.Now().UnixMilli(),
	}
}

// IsEmpty reports whether the patch carries no operations.
func (p AstPatch) IsEmpty() bool {
	return len(p.AddedNodes) == 0 &&
		len(p.RemovedNodes) == 0 &&
		len(p.AddedEdges) == 0 &&
		len(p.RemovedEdges) == 0
}

// OperationCount returns the total number of add/remove operations.
func (p AstPatch) OperationCount() int {
	return len(p.AddedNodes) + len(p.RemovedNodes) + len(p.AddedEdges) + len(p.RemovedEdges)
}

// Builder assembles a patch operation by operation.
type Builder struct {
	patch AstPatch
}

// NewBuilder starts a builder for one file.
func NewBuilder(repoID, filePath string) *Builder {
	return &Builder{patch: New(repoID, filePath)}
}

// AddNode queues a node for insertion.
func (b *Builder) AddNode(n ast.Node) *Builder {
	b.patch.AddedNodes = append(b.patch.AddedNodes, n)
	return b
}

// AddNodes queues several nodes for insertion.
func (b *Builder) AddNodes(nodes []ast.Node) *Builder {
	b.patch.AddedNodes = append(b.patch.AddedNodes, nodes...)
	return b
}

// RemoveNode queues a node for removal by ID.
func (b *Builder) RemoveNode(id ast.NodeID) *Builder {
	b.patch.RemovedNodes = append(b.patch.RemovedNodes, id)
	return b
}

// RemoveNodes queues several node removals.
func (b *Builder) RemoveNodes(ids []ast.NodeID) *Builder {
	b.patch.RemovedNodes = append(b.patch.RemovedNodes, ids...)
	return b
}

// AddEdge queues an edge for insertion.
func (b *Builder) AddEdge(e ast.Edge) *Builder {
	b.patch.AddedEdges = append(b.patch.AddedEdges, e)
	return b
}

// AddEdges queues several edges for insertion.
func (b *Builder) AddEdges(edges []ast.Edge) *Builder {
	b.patch.AddedEdges = append(b.patch.AddedEdges, edges...)
	return b
}

// RemoveEdge queues an edge for removal.
func (b *Builder) RemoveEdge(e ast.Edge) *Builder {
	b.patch.RemovedEdges = append(b.patch.RemovedEdges, e)
	return b
}

// RemoveEdges queues several edge removals.
func (b *Builder) RemoveEdges(edges []ast.Edge) *Builder {
	b.patch.RemovedEdges = append(b.patch.RemovedEdges, edges...)
	return b
}

// WithTimestamp overrides the patch timestamp.
func (b *Builder) WithTimestamp(ms int64) *Builder {
	b.patch.TimestampMs = ms
	return b
}

// Build returns the assembled patch.
func (b *Builder) Build() AstPatch {
	return b.patch
}
