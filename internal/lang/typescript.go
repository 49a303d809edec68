package lang

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"codegraph/internal/ast"
	"codegraph/internal/parser"
)

// NewTypeScriptParser returns the TypeScript language backend. Plain
// JavaScript files parse under the same grammar, so the backend claims
// the js extensions too.
func NewTypeScriptParser() parser.LanguageParser {
	return &tsBackend{
		name:       "typescript",
		extensions: []string{"ts", "tsx", "js", "mjs", "cjs"},
		language:   tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()),
		astLang:    ast.LangTypeScript,
		extract:    extractTypeScript,
	}
}

func extractTypeScript(w *walker) {
	tsWalk(w, w.root, false)
	w.resolvePending()
}

func tsWalk(w *walker, node *tree_sitter.Node, insideClass bool) {
	childInsideClass := insideClass

	switch node.Kind() {
	case "function_declaration":
		if id, ok := tsNamed(w, node, ast.NodeKindFunction); ok {
			w.push(id)
			defer w.pop()
		}

	case "method_definition":
		if id, ok := tsNamed(w, node, ast.NodeKindMethod); ok {
			w.push(id)
			defer w.pop()
		}
		childInsideClass = false

	case "class_declaration", "abstract_class_declaration":
		if id, ok := tsClass(w, node); ok {
			w.push(id)
			defer w.pop()
		}
		childInsideClass = true

	case "interface_declaration":
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			name := w.text(nameNode)
			id := w.add(w.builder(ast.NodeKindClass, name, node).Build())
			w.registerClass(name, id)
			for _, base := range tsHeritage(w, node, "extends_type_clause") {
				w.deferExtends(id, base)
			}
		}

	case "lexical_declaration":
		tsLexical(w, node)

	case "import_statement":
		tsImport(w, node)

	case "call_expression":
		tsCall(w, node)
	}

	eachChild(node, func(child *tree_sitter.Node) {
		tsWalk(w, child, childInsideClass)
	})
}

func tsNamed(w *walker, node *tree_sitter.Node, kind ast.NodeKind) (ast.NodeID, bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return ast.NodeID{}, false
	}
	n := w.builder(kind, w.text(nameNode), node).
		Signature(w.sigText(node)).
		Build()
	return w.add(n), true
}

func tsClass(w *walker, node *tree_sitter.Node) (ast.NodeID, bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return ast.NodeID{}, false
	}
	name := w.text(nameNode)

	extends := tsHeritage(w, node, "extends_clause")
	implements := tsHeritage(w, node, "implements_clause")

	b := w.builder(ast.NodeKindClass, name, node)
	if len(extends) > 0 {
		b.Meta(ast.MetaBases, extends)
	}
	id := w.add(b.Build())
	w.registerClass(name, id)

	for _, base := range extends {
		w.deferExtends(id, base)
	}
	for _, iface := range implements {
		w.deferImplements(id, iface)
	}
	return id, true
}

// tsHeritage reads base names out of a class_heritage child clause of the
// given kind.
func tsHeritage(w *walker, node *tree_sitter.Node, clauseKind string) []string {
	var out []string
	collect := func(clause *tree_sitter.Node) {
		eachChild(clause, func(item *tree_sitter.Node) {
			switch item.Kind() {
			case "identifier", "type_identifier", "member_expression", "nested_type_identifier", "generic_type":
				name := w.text(item)
				if idx := strings.IndexByte(name, '<'); idx >= 0 {
					name = name[:idx]
				}
				if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
					name = name[idx+1:]
				}
				if name != "" {
					out = append(out, name)
				}
			}
		})
	}

	eachChild(node, func(child *tree_sitter.Node) {
		switch child.Kind() {
		case clauseKind:
			collect(child)
		case "class_heritage":
			eachChild(child, func(clause *tree_sitter.Node) {
				if clause.Kind() == clauseKind {
					collect(clause)
				}
			})
		}
	})
	return out
}

// tsLexical records const/let declarations: arrow functions become
// function nodes, everything else at the top level becomes a variable.
func tsLexical(w *walker, node *tree_sitter.Node) {
	topLevel := tsIsTopLevel(node)
	eachChild(node, func(child *tree_sitter.Node) {
		if child.Kind() != "variable_declarator" {
			return
		}
		nameNode := child.ChildByFieldName("name")
		if nameNode == nil || nameNode.Kind() != "identifier" {
			return
		}
		name := w.text(nameNode)

		value := child.ChildByFieldName("value")
		if value != nil && value.Kind() == "arrow_function" {
			w.add(w.builder(ast.NodeKindFunction, name, child).Build())
			return
		}
		if topLevel {
			w.add(w.builder(ast.NodeKindVariable, name, child).Build())
		}
	})
}

func tsImport(w *walker, node *tree_sitter.Node) {
	sourceNode := node.ChildByFieldName("source")
	if sourceNode == nil {
		return
	}
	importPath := strings.Trim(w.text(sourceNode), "\"'`")
	if importPath == "" {
		return
	}
	n := w.builder(ast.NodeKindImport, importPath, node).Build()
	w.addEdge(w.module.ID, w.add(n), ast.EdgeKindImports)
}

func tsCall(w *walker, node *tree_sitter.Node) {
	fnNode := node.ChildByFieldName("function")
	if fnNode == nil {
		return
	}
	switch fnNode.Kind() {
	case "identifier", "member_expression":
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

func tsIsTopLevel(node *tree_sitter.Node) bool {
	parent := node.Parent()
	if parent == nil {
		return false
	}
	switch parent.Kind() {
	case "program":
		return true
	case "export_statement":
		grandparent := parent.Parent()
		return grandparent != nil && grandparent.Kind() == "program"
	}
	return false
}
