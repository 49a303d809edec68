package lang

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"

	"codegraph/internal/ast"
	"codegraph/internal/parser"
)

// NewGoParser returns the Go language backend.
func NewGoParser() parser.LanguageParser {
	return &tsBackend{
		name:       "go",
		extensions: []string{"go"},
		language:   tree_sitter.NewLanguage(tree_sitter_go.Language()),
		astLang:    ast.LangGo,
		extract:    extractGo,
	}
}

func extractGo(w *walker) {
	// The package clause names the module node better than the file name.
	eachChild(w.root, func(child *tree_sitter.Node) {
		if child.Kind() == "package_clause" {
			eachChild(child, func(inner *tree_sitter.Node) {
				if inner.Kind() == "package_identifier" {
					w.module.Name = w.text(inner)
					w.nodes[0] = w.module
				}
			})
		}
	})

	goWalk(w, w.root)
	w.resolvePending()
}

func goWalk(w *walker, node *tree_sitter.Node) {
	switch node.Kind() {
	case "function_declaration":
		if id, ok := goDefinition(w, node, ast.NodeKindFunction); ok {
			w.push(id)
			defer w.pop()
		}

	case "method_declaration":
		if id, ok := goDefinition(w, node, ast.NodeKindMethod); ok {
			w.push(id)
			defer w.pop()
		}

	case "type_declaration":
		eachChild(node, func(child *tree_sitter.Node) {
			if child.Kind() == "type_spec" {
				goTypeSpec(w, child)
			}
		})

	case "var_declaration", "const_declaration":
		if goIsTopLevel(node) {
			goValueSpecs(w, node)
		}

	case "import_spec":
		goImport(w, node)

	case "call_expression":
		goCall(w, node)
	}

	eachChild(node, func(child *tree_sitter.Node) {
		goWalk(w, child)
	})
}

func goDefinition(w *walker, node *tree_sitter.Node, kind ast.NodeKind) (ast.NodeID, bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return ast.NodeID{}, false
	}
	n := w.builder(kind, w.text(nameNode), node).
		Signature(w.sigText(node)).
		Build()
	return w.add(n), true
}

// goTypeSpec maps struct and interface declarations onto class nodes;
// other type specs (aliases, basic definitions) become variables of the
// type namespace and are skipped.
func goTypeSpec(w *walker, node *tree_sitter.Node) {
	nameNode := node.ChildByFieldName("name")
	typeNode := node.ChildByFieldName("type")
	if nameNode == nil || typeNode == nil {
		return
	}
	switch typeNode.Kind() {
	case "struct_type", "interface_type":
	default:
		return
	}

	name := w.text(nameNode)
	n := w.builder(ast.NodeKindClass, name, node).Build()
	id := w.add(n)
	w.registerClass(name, id)

	// Embedded struct fields act as inheritance for traversal purposes.
	if typeNode.Kind() == "struct_type" {
		for _, embedded := range goEmbeddedFields(w, typeNode) {
			w.deferExtends(id, embedded)
		}
	}
}

// goEmbeddedFields returns the type names of embedded (anonymous) struct
// fields.
func goEmbeddedFields(w *walker, structType *tree_sitter.Node) []string {
	var out []string
	eachChild(structType, func(child *tree_sitter.Node) {
		if child.Kind() != "field_declaration_list" {
			return
		}
		eachChild(child, func(field *tree_sitter.Node) {
			if field.Kind() != "field_declaration" {
				return
			}
			// An embedded field has a type but no name children.
			if field.ChildByFieldName("name") != nil {
				return
			}
			typeNode := field.ChildByFieldName("type")
			if typeNode == nil {
				return
			}
			name := w.text(typeNode)
			name = strings.TrimPrefix(name, "*")
			if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
				name = name[idx+1:]
			}
			if name != "" {
				out = append(out, name)
			}
		})
	})
	return out
}

func goValueSpecs(w *walker, node *tree_sitter.Node) {
	eachChild(node, func(spec *tree_sitter.Node) {
		kind := spec.Kind()
		if kind != "var_spec" && kind != "const_spec" {
			return
		}
		nameNode := spec.ChildByFieldName("name")
		if nameNode == nil {
			return
		}
		n := w.builder(ast.NodeKindVariable, w.text(nameNode), spec).Build()
		w.add(n)
	})
}

func goImport(w *walker, node *tree_sitter.Node) {
	pathNode := node.ChildByFieldName("path")
	if pathNode == nil {
		return
	}
	importPath := strings.Trim(w.text(pathNode), "\"")
	if importPath == "" {
		return
	}
	n := w.builder(ast.NodeKindImport, importPath, node).Build()
	w.addEdge(w.module.ID, w.add(n), ast.EdgeKindImports)
}

func goCall(w *walker, node *tree_sitter.Node) {
	fnNode := node.ChildByFieldName("function")
	if fnNode == nil {
		return
	}
	switch fnNode.Kind() {
	case "identifier", "selector_expression":
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

// goIsTopLevel reports whether the declaration sits directly under the
// source file node.
func goIsTopLevel(node *tree_sitter.Node) bool {
	parent := node.Parent()
	return parent != nil && parent.Kind() == "source_file"
}
