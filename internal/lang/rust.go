package lang

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"

	"codegraph/internal/ast"
	"codegraph/internal/parser"
)

// NewRustParser returns the Rust language backend.
func NewRustParser() parser.LanguageParser {
	return &tsBackend{
		name:       "rust",
		extensions: []string{"rs"},
		language:   tree_sitter.NewLanguage(tree_sitter_rust.Language()),
		astLang:    ast.LangRust,
		extract:    extractRust,
	}
}

func extractRust(w *walker) {
	rsWalk(w, w.root, false)
	w.resolvePending()
}

// rsWalk traverses the syntax tree. insideImpl marks function items inside
// impl blocks as methods.
func rsWalk(w *walker, node *tree_sitter.Node, insideImpl bool) {
	childInsideImpl := insideImpl

	switch node.Kind() {
	case "function_item":
		kind := ast.NodeKindFunction
		if insideImpl {
			kind = ast.NodeKindMethod
		}
		if id, ok := rsNamed(w, node, kind, true); ok {
			w.push(id)
			defer w.pop()
		}
		childInsideImpl = false

	case "struct_item", "enum_item", "trait_item", "union_item":
		if id, ok := rsNamed(w, node, ast.NodeKindClass, false); ok {
			if nameNode := node.ChildByFieldName("name"); nameNode != nil {
				w.registerClass(w.text(nameNode), id)
			}
		}

	case "impl_item":
		rsImpl(w, node)
		childInsideImpl = true

	case "static_item", "const_item":
		rsNamed(w, node, ast.NodeKindVariable, false)

	case "use_declaration":
		rsUse(w, node)

	case "call_expression":
		rsCall(w, node)

	case "macro_invocation":
		rsMacro(w, node)
	}

	eachChild(node, func(child *tree_sitter.Node) {
		rsWalk(w, child, childInsideImpl)
	})
}

func rsNamed(w *walker, node *tree_sitter.Node, kind ast.NodeKind, withSig bool) (ast.NodeID, bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return ast.NodeID{}, false
	}
	b := w.builder(kind, w.text(nameNode), node)
	if withSig {
		b.Signature(w.sigText(node))
	}
	return w.add(b.Build()), true
}

// rsImpl handles "impl Trait for Type": when both the trait and the type
// are defined in this file the pair gets an Implements edge. Inherent
// impls contribute nothing themselves; their methods are picked up by the
// surrounding walk.
func rsImpl(w *walker, node *tree_sitter.Node) {
	traitNode := node.ChildByFieldName("trait")
	typeNode := node.ChildByFieldName("type")
	if traitNode == nil || typeNode == nil {
		return
	}
	typeName := rsBareName(w.text(typeNode))
	traitName := rsBareName(w.text(traitNode))
	if typeName == "" || traitName == "" {
		return
	}
	w.deferImplementsPair(typeName, traitName)
}

// rsBareName strips generic arguments and path qualifiers from a type
// expression.
func rsBareName(name string) string {
	if idx := strings.IndexByte(name, '<'); idx >= 0 {
		name = name[:idx]
	}
	if idx := strings.LastIndex(name, "::"); idx >= 0 {
		name = name[idx+2:]
	}
	return strings.TrimSpace(name)
}

func rsUse(w *walker, node *tree_sitter.Node) {
	arg := node.ChildByFieldName("argument")
	if arg == nil {
		return
	}
	path := w.text(arg)
	if path == "" {
		return
	}
	n := w.builder(ast.NodeKindImport, path, node).Build()
	w.addEdge(w.module.ID, w.add(n), ast.EdgeKindImports)
}

func rsCall(w *walker, node *tree_sitter.Node) {
	fnNode := node.ChildByFieldName("function")
	if fnNode == nil {
		return
	}
	switch fnNode.Kind() {
	case "identifier", "field_expression", "scoped_identifier":
	default:
		return
	}
	callee := w.text(fnNode)
	if callee == "" {
		return
	}
	n := w.builder(ast.NodeKindCall, callee, node).Build()
	w.addEdge(w.enclosing(), w.add(n), ast.EdgeKindCalls)
}

// rsMacro records macro invocations like println! as call nodes; they are
// calls for dependency purposes even though the grammar treats them
// differently.
func rsMacro(w *walker, node *tree_sitter.Node) {
	macroNode := node.ChildByFieldName("macro")
	if macroNode == nil {
		return
	}
	name := w.text(macroNode)
	if name == "" {
		return
	}
	n := w.builder(ast.NodeKindCall, name+"!", node).Build()
	w.addEdge(w.enclosing(), w.add(n), ast.EdgeKindCalls)
}
