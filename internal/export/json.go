// Package export renders graph snapshots for external tools: a JSON
// document for programmatic consumers and Mermaid diagrams for humans.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"codegraph/internal/ast"
	"codegraph/internal/graph"
)

// GraphExport is the top-level JSON export structure. Files are sorted
// by path and edges follow their source file's order, so exporting the
// same graph twice yields byte-identical output.
type GraphExport struct {
	RepoID     string       `json:"repoId"`
	ExportedAt string       `json:"exportedAt"`
	Stats      graph.Stats  `json:"stats"`
	Files      []FileExport `json:"files"`
	Edges      []ast.Edge   `json:"edges,omitempty"`
}

// FileExport holds one file's nodes in insertion order.
type FileExport struct {
	Path  string     `json:"path"`
	Nodes []ast.Node `json:"nodes"`
}

// Snapshot captures the current graph contents. Cross-file edges appear
// once, under the file owning their source node.
func Snapshot(store *graph.Store, repoID string) *GraphExport {
	files := store.Files()
	sort.Strings(files)

	out := &GraphExport{
		RepoID:     repoID,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Stats:      store.Stats(),
		Files:      make([]FileExport, 0, len(files)),
	}
	for _, f := range files {
		out.Files = append(out.Files, FileExport{Path: f, Nodes: store.NodesInFile(f)})
		out.Edges = append(out.Edges, store.EdgesInFile(f)...)
	}
	return out
}

// WriteJSON streams an indented snapshot of the graph to w.
func WriteJSON(w io.Writer, store *graph.Store, repoID string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Snapshot(store, repoID)); err != nil {
		return fmt.Errorf("encode graph export: %w", err)
	}
	return nil
}
