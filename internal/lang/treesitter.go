// Package lang holds the tree-sitter language backends. Each backend
// turns one language's concrete syntax tree into universal AST nodes and
// edges; everything grammar-specific stays inside this package.
package lang

import (
	"bytes"
	"path/filepath"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"codegraph/internal/ast"
	"codegraph/internal/parser"
)

// tsBackend is the common shape of a tree-sitter backed LanguageParser.
// The extract hook does the grammar-specific walking; parsing, tree reuse,
// and module-node creation are shared.
type tsBackend struct {
	name       string
	extensions []string
	language   *tree_sitter.Language
	astLang    ast.Language
	extract    func(w *walker)
}

func (b *tsBackend) LanguageName() string { return b.name }

func (b *tsBackend) SupportedExtensions() []string {
	return append([]string(nil), b.extensions...)
}

// ParseFile parses the file content, reusing the previous tree when the
// caller supplies one, and extracts universal AST nodes and edges. The
// returned tree handle stays open so the next parse of the same file can
// reuse it.
func (b *tsBackend) ParseFile(pc parser.ParseContext) (*parser.ParseResult, error) {
	p := tree_sitter.NewParser()
	defer p.Close()

	if err := p.SetLanguage(b.language); err != nil {
		return nil, &parser.ParseError{File: pc.FilePath, Msg: "set language " + b.name, Err: err}
	}

	// Tree-sitter requires the previous tree be edited to reflect the
	// source change before it can seed a re-parse. Without the previous
	// content the edit cannot be computed, so the tree is discarded and
	// the parse starts from scratch.
	oldTree, _ := pc.OldTree.(*tree_sitter.Tree)
	if oldTree != nil {
		if pc.OldContent == nil {
			oldTree = nil
		} else {
			editTree(oldTree, pc.OldContent, pc.Content)
		}
	}
	tree := p.Parse(pc.Content, oldTree)
	if tree == nil {
		return nil, &parser.ParseError{File: pc.FilePath, Msg: "parser returned no tree"}
	}

	w := newWalker(pc, b.astLang, tree.RootNode())
	b.extract(w)

	return &parser.ParseResult{
		Tree:  tree,
		Nodes: w.nodes,
		Edges: w.edges,
	}, nil
}

// walker carries the per-file extraction state: the accumulating node and
// edge lists, the enclosing-definition stack for attributing calls, and
// the class name index used to resolve same-file inheritance.
type walker struct {
	repoID   string
	filePath string
	source   []byte
	lang     ast.Language
	root     *tree_sitter.Node

	module ast.Node
	scope  []ast.NodeID

	nodes []ast.Node
	edges []ast.Edge

	classIDs     map[string]ast.NodeID
	pendingExt   []pendingEdge
	pendingImpl  []pendingEdge
	pendingPairs []pendingPair
}

// pendingEdge defers an inheritance edge until all class definitions in
// the file are known, so order of declaration does not matter.
type pendingEdge struct {
	source   ast.NodeID
	baseName string
}

// pendingPair defers an Implements edge where both endpoints are named,
// not yet resolved. Rust trait impls use this: the impl block may precede
// both declarations.
type pendingPair struct {
	typeName  string
	traitName string
}

func newWalker(pc parser.ParseContext, lang ast.Language, root *tree_sitter.Node) *walker {
	w := &walker{
		repoID:   pc.RepoID,
		filePath: pc.FilePath,
		source:   pc.Content,
		lang:     lang,
		root:     root,
		classIDs: make(map[string]ast.NodeID),
	}

	base := filepath.Base(pc.FilePath)
	moduleName := strings.TrimSuffix(base, filepath.Ext(base))
	w.module = ast.NewNode(pc.RepoID, ast.NodeKindModule, moduleName, lang, pc.FilePath, w.spanOf(root))
	w.nodes = append(w.nodes, w.module)
	w.scope = []ast.NodeID{w.module.ID}
	return w
}

// spanOf converts a tree-sitter node's location to a Span with 1-based
// lines and columns.
func (w *walker) spanOf(n *tree_sitter.Node) ast.Span {
	start := n.StartPosition()
	end := n.EndPosition()
	return ast.Span{
		StartByte:   uint32(n.StartByte()),
		EndByte:     uint32(n.EndByte()),
		StartLine:   uint32(start.Row) + 1,
		EndLine:     uint32(end.Row) + 1,
		StartColumn: uint32(start.Column) + 1,
		EndColumn:   uint32(end.Column) + 1,
	}
}

func (w *walker) text(n *tree_sitter.Node) string {
	return n.Utf8Text(w.source)
}

// builder starts a node builder pre-filled with the walker's file context.
func (w *walker) builder(kind ast.NodeKind, name string, n *tree_sitter.Node) *ast.NodeBuilder {
	return ast.NewNodeBuilder(w.repoID, kind).
		Name(name).
		Language(w.lang).
		File(w.filePath).
		Span(w.spanOf(n))
}

func (w *walker) add(n ast.Node) ast.NodeID {
	w.nodes = append(w.nodes, n)
	return n.ID
}

func (w *walker) addEdge(source, target ast.NodeID, kind ast.EdgeKind) {
	w.edges = append(w.edges, ast.NewEdge(source, target, kind))
}

// enclosing returns the innermost definition currently on the scope stack.
func (w *walker) enclosing() ast.NodeID {
	return w.scope[len(w.scope)-1]
}

func (w *walker) push(id ast.NodeID) { w.scope = append(w.scope, id) }
func (w *walker) pop()               { w.scope = w.scope[:len(w.scope)-1] }

// registerClass records a class definition for same-file base resolution.
func (w *walker) registerClass(name string, id ast.NodeID) {
	if _, exists := w.classIDs[name]; !exists {
		w.classIDs[name] = id
	}
}

func (w *walker) deferExtends(source ast.NodeID, baseName string) {
	w.pendingExt = append(w.pendingExt, pendingEdge{source: source, baseName: baseName})
}

func (w *walker) deferImplements(source ast.NodeID, traitName string) {
	w.pendingImpl = append(w.pendingImpl, pendingEdge{source: source, baseName: traitName})
}

func (w *walker) deferImplementsPair(typeName, traitName string) {
	w.pendingPairs = append(w.pendingPairs, pendingPair{typeName: typeName, traitName: traitName})
}

// resolvePending emits Extends and Implements edges for every deferred
// base that resolved to a class defined in this file. Cross-file bases are
// left to the linker.
func (w *walker) resolvePending() {
	for _, p := range w.pendingExt {
		if target, ok := w.classIDs[p.baseName]; ok {
			w.addEdge(p.source, target, ast.EdgeKindExtends)
		}
	}
	for _, p := range w.pendingImpl {
		if target, ok := w.classIDs[p.baseName]; ok {
			w.addEdge(p.source, target, ast.EdgeKindImplements)
		}
	}
	for _, p := range w.pendingPairs {
		source, haveType := w.classIDs[p.typeName]
		target, haveTrait := w.classIDs[p.traitName]
		if haveType && haveTrait {
			w.addEdge(source, target, ast.EdgeKindImplements)
		}
	}
}

// editTree records the difference between the old and new source on the
// old tree as a single InputEdit covering the changed region, bounded by
// the longest common prefix and suffix. Identical content needs no edit.
func editTree(tree *tree_sitter.Tree, oldSrc, newSrc []byte) {
	if bytes.Equal(oldSrc, newSrc) {
		return
	}

	prefix := 0
	for prefix < len(oldSrc) && prefix < len(newSrc) && oldSrc[prefix] == newSrc[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(oldSrc)-prefix && suffix < len(newSrc)-prefix &&
		oldSrc[len(oldSrc)-1-suffix] == newSrc[len(newSrc)-1-suffix] {
		suffix++
	}

	startByte := uint(prefix)
	oldEndByte := uint(len(oldSrc) - suffix)
	newEndByte := uint(len(newSrc) - suffix)

	tree.Edit(&tree_sitter.InputEdit{
		StartByte:      startByte,
		OldEndByte:     oldEndByte,
		NewEndByte:     newEndByte,
		StartPosition:  pointAt(newSrc, startByte),
		OldEndPosition: pointAt(oldSrc, oldEndByte),
		NewEndPosition: pointAt(newSrc, newEndByte),
	})
}

// pointAt computes the 0-based row/column of a byte offset in src.
func pointAt(src []byte, offset uint) tree_sitter.Point {
	var p tree_sitter.Point
	for i := uint(0); i < offset && i < uint(len(src)); i++ {
		if src[i] == '\n' {
			p.Row++
			p.Column = 0
		} else {
			p.Column++
		}
	}
	return p
}

// eachChild invokes fn for every non-nil child of n.
func eachChild(n *tree_sitter.Node, fn func(child *tree_sitter.Node)) {
	for i := uint(0); i < n.ChildCount(); i++ {
		if child := n.Child(i); child != nil {
			fn(child)
		}
	}
}

// sigText returns the declaration text up to (not including) its body,
// collapsed to one line. It is a display signature, not a resolved type.
func (w *walker) sigText(n *tree_sitter.Node) string {
	end := n.EndByte()
	if body := n.ChildByFieldName("body"); body != nil {
		end = body.StartByte()
	}
	start := n.StartByte()
	if end < start || end > uint(len(w.source)) {
		return ""
	}
	sig := string(w.source[start:end])
	sig = strings.Join(strings.Fields(sig), " ")
	return strings.TrimSuffix(strings.TrimSpace(sig), ":")
}

// RegisterAll registers every built-in language backend on a registry.
func RegisterAll(r *parser.Registry) {
	r.Register(NewGoParser())
	r.Register(NewPythonParser())
	r.Register(NewTypeScriptParser())
	r.Register(NewRustParser())
}
