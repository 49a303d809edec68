// Package graph holds the in-memory universal AST graph: concurrent,
// indexed storage of nodes and edges plus the read-only query engine over
// them. The store owns node and edge lifetime; everything else refers to
// graph contents by NodeID only.
package graph

import (
	"errors"
	"sync"

	"codegraph/internal/ast"
	"codegraph/internal/patch"
)

// ErrNotFound is returned when a query names an unknown node or file.
var ErrNotFound = errors.New("not found")

// Store is the single owner of all current nodes and edges across a
// repository, with derived indices for lookup by file, kind, and name and
// adjacency lists for traversal.
//
// Concurrency: patches for the same file are serialized (single writer per
// file); reads proceed concurrently and never observe a half-applied
// patch.
type Store struct {
	mu       sync.RWMutex
	nodes    map[ast.NodeID]ast.Node
	outgoing map[ast.NodeID][]ast.Edge
	incoming map[ast.NodeID][]ast.Edge
	edgeSet  map[ast.Edge]bool
	byFile   map[string][]ast.NodeID
	byKind   map[ast.NodeKind][]ast.NodeID
	byName   map[string][]ast.NodeID

	flmu      sync.Mutex
	fileLocks map[string]*sync.Mutex
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		nodes:     make(map[ast.NodeID]ast.Node),
		outgoing:  make(map[ast.NodeID][]ast.Edge),
		incoming:  make(map[ast.NodeID][]ast.Edge),
		edgeSet:   make(map[ast.Edge]bool),
		byFile:    make(map[string][]ast.NodeID),
		byKind:    make(map[ast.NodeKind][]ast.NodeID),
		byName:    make(map[string][]ast.NodeID),
		fileLocks: make(map[string]*sync.Mutex),
	}
}

// fileLock returns the writer mutex for one file path, creating it on
// first use.
func (s *Store) fileLock(path string) *sync.Mutex {
	s.flmu.Lock()
	defer s.flmu.Unlock()
	l, ok := s.fileLocks[path]
	if !ok {
		l = &sync.Mutex{}
		s.fileLocks[path] = l
	}
	return l
}

// lockedView adapts the store's maps to patch.GraphView for validation
// that runs while s.mu is already held.
type lockedView struct{ s *Store }

func (v lockedView) HasNode(id ast.NodeID) bool {
	_, ok := v.s.nodes[id]
	return ok
}

// ApplyPatch validates a patch against the current graph and applies it as
// one atomic unit: removals (with cascade), then insertions. A validation
// failure rejects the whole patch and leaves the graph untouched.
func (s *Store) ApplyPatch(p patch.AstPatch) error {
	fl := s.fileLock(p.FilePath)
	fl.Lock()
	defer fl.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := patch.Validate(p, lockedView{s}); err != nil {
		return err
	}

	for _, id := range p.RemovedNodes {
		s.removeNodeLocked(id)
	}
	for _, e := range p.RemovedEdges {
		s.removeEdgeLocked(e)
	}
	for _, n := range p.AddedNodes {
		s.addNodeLocked(n)
	}
	for _, e := range p.AddedEdges {
		s.addEdgeLocked(e)
	}
	return nil
}

// RemoveFile removes every node currently indexed under the file, with the
// same cascade semantics as a patch removing them all. It is the
// invalidation path for deleted files.
func (s *Store) RemoveFile(path string) {
	fl := s.fileLock(path)
	fl.Lock()
	defer fl.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := append([]ast.NodeID(nil), s.byFile[path]...)
	for _, id := range ids {
		s.removeNodeLocked(id)
	}
	delete(s.byFile, path)
}

// addNodeLocked inserts a node and updates all indices. Caller holds s.mu.
func (s *Store) addNodeLocked(n ast.Node) {
	if _, exists := s.nodes[n.ID]; exists {
		return
	}
	s.nodes[n.ID] = n
	s.byFile[n.File] = append(s.byFile[n.File], n.ID)
	s.byKind[n.Kind] = append(s.byKind[n.Kind], n.ID)
	s.byName[n.Name] = append(s.byName[n.Name], n.ID)
}

// addEdgeLocked inserts an edge unless the identical triple is already
// present: the store is a set of edges, not a multiset.
func (s *Store) addEdgeLocked(e ast.Edge) {
	if s.edgeSet[e] {
		return
	}
	s.edgeSet[e] = true
	s.outgoing[e.Source] = append(s.outgoing[e.Source], e)
	s.incoming[e.Target] = append(s.incoming[e.Target], e)
}

// removeEdgeLocked removes one edge triple from both adjacency lists.
func (s *Store) removeEdgeLocked(e ast.Edge) {
	if !s.edgeSet[e] {
		return
	}
	delete(s.edgeSet, e)
	s.outgoing[e.Source] = dropEdge(s.outgoing[e.Source], e)
	s.incoming[e.Target] = dropEdge(s.incoming[e.Target], e)
}

// removeNodeLocked removes a node, its index entries, and, by cascade, every
// edge that references it as source or target, whether or not those edges
// were listed for removal.
func (s *Store) removeNodeLocked(id ast.NodeID) {
	n, ok := s.nodes[id]
	if !ok {
		return
	}
	delete(s.nodes, id)

	s.byFile[n.File] = dropID(s.byFile[n.File], id)
	if len(s.byFile[n.File]) == 0 {
		delete(s.byFile, n.File)
	}
	s.byKind[n.Kind] = dropID(s.byKind[n.Kind], id)
	if len(s.byKind[n.Kind]) == 0 {
		delete(s.byKind, n.Kind)
	}
	s.byName[n.Name] = dropID(s.byName[n.Name], id)
	if len(s.byName[n.Name]) == 0 {
		delete(s.byName, n.Name)
	}

	for _, e := range s.outgoing[id] {
		delete(s.edgeSet, e)
		s.incoming[e.Target] = dropEdge(s.incoming[e.Target], e)
	}
	delete(s.outgoing, id)

	for _, e := range s.incoming[id] {
		delete(s.edgeSet, e)
		s.outgoing[e.Source] = dropEdge(s.outgoing[e.Source], e)
	}
	delete(s.incoming, id)
}

// HasNode reports whether a node is present. Implements patch.GraphView.
func (s *Store) HasNode(id ast.NodeID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nodes[id]
	return ok
}

// GetNode returns a node by ID.
func (s *Store) GetNode(id ast.NodeID) (ast.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	return n, ok
}

// NodesInFile returns all nodes currently indexed under a file, in
// insertion order.
func (s *Store) NodesInFile(path string) []ast.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byFile[path]
	out := make([]ast.Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.nodes[id])
	}
	return out
}

// EdgesInFile returns every edge whose source node lives in the file.
// Together with NodesInFile this is the "previous state" input to a diff.
func (s *Store) EdgesInFile(path string) []ast.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ast.Edge
	for _, id := range s.byFile[path] {
		out = append(out, s.outgoing[id]...)
	}
	return out
}

// NodesByKind returns all nodes of one kind.
func (s *Store) NodesByKind(kind ast.NodeKind) []ast.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byKind[kind]
	out := make([]ast.Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.nodes[id])
	}
	return out
}

// NodesByName returns all nodes sharing a symbol name.
func (s *Store) NodesByName(name string) []ast.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byName[name]
	out := make([]ast.Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.nodes[id])
	}
	return out
}

// SymbolNames returns every distinct symbol name in the graph.
func (s *Store) SymbolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.byName))
	for name := range s.byName {
		out = append(out, name)
	}
	return out
}

// OutgoingEdges returns a copy of the edges leaving a node, in insertion
// order. Insertion order is meaningful: for Extends edges it is the
// declared base-class order that C3 linearization depends on.
func (s *Store) OutgoingEdges(id ast.NodeID) []ast.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ast.Edge(nil), s.outgoing[id]...)
}

// IncomingEdges returns a copy of the edges arriving at a node.
func (s *Store) IncomingEdges(id ast.NodeID) []ast.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ast.Edge(nil), s.incoming[id]...)
}

// NodeCount returns the number of nodes currently stored.
func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// Files returns every file path with at least one node.
func (s *Store) Files() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.byFile))
	for f := range s.byFile {
		out = append(out, f)
	}
	return out
}

// Stats summarizes graph contents.
type Stats struct {
	Nodes       int                  `json:"nodes"`
	Edges       int                  `json:"edges"`
	Files       int                  `json:"files"`
	NodesByKind map[ast.NodeKind]int `json:"nodesByKind"`
}

// Stats returns counts of nodes, edges, and files.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byKind := make(map[ast.NodeKind]int, len(s.byKind))
	for k, ids := range s.byKind {
		byKind[k] = len(ids)
	}
	return Stats{
		Nodes:       len(s.nodes),
		Edges:       len(s.edgeSet),
		Files:       len(s.byFile),
		NodesByKind: byKind,
	}
}

// Clear drops all graph contents.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = make(map[ast.NodeID]ast.Node)
	s.outgoing = make(map[ast.NodeID][]ast.Edge)
	s.incoming = make(map[ast.NodeID][]ast.Edge)
	s.edgeSet = make(map[ast.Edge]bool)
	s.byFile = make(map[string][]ast.NodeID)
	s.byKind = make(map[ast.NodeKind][]ast.NodeID)
	s.byName = make(map[string][]ast.NodeID)
}

func dropID(ids []ast.NodeID, id ast.NodeID) []ast.NodeID {
	out := ids[:0]
	for _, candidate := range ids {
		if candidate != id {
			out = append(out, candidate)
		}
	}
	return out
}

func dropEdge(edges []ast.Edge, e ast.Edge) []ast.Edge {
	out := edges[:0]
	for _, candidate := range edges {
		if candidate != e {
			out = append(out, candidate)
		}
	}
	return out
}
