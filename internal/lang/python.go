package lang

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"codegraph/internal/ast"
	"codegraph/internal/parser"
)

// NewPythonParser returns the Python language backend. It is the richest
// backend: besides symbols, imports, and calls it records base classes,
// metaclasses, decorators, and mixin tags so inheritance queries have
// something to work with.
func NewPythonParser() parser.LanguageParser {
	return &tsBackend{
		name:       "python",
		extensions: []string{"py", "pyw"},
		language:   tree_sitter.NewLanguage(tree_sitter_python.Language()),
		astLang:    ast.LangPython,
		extract:    extractPython,
	}
}

func extractPython(w *walker) {
	pyWalk(w, w.root, false)
	w.resolvePending()
}

// pyWalk traverses the syntax tree. insideClass tells function definitions
// apart from methods.
func pyWalk(w *walker, node *tree_sitter.Node, insideClass bool) {
	childInsideClass := insideClass

	switch node.Kind() {
	case "function_definition":
		kind := ast.NodeKindFunction
		if insideClass {
			kind = ast.NodeKindMethod
		}
		if id, ok := pyFunction(w, node, kind); ok {
			w.push(id)
			defer w.pop()
		}
		childInsideClass = false

	case "class_definition":
		if id, ok := pyClass(w, node); ok {
			w.push(id)
			defer w.pop()
		}
		childInsideClass = true

	case "import_statement":
		pyImport(w, node)

	case "import_from_statement":
		pyFromImport(w, node)

	case "call":
		pyCall(w, node)

	case "assignment":
		pyAssignment(w, node, insideClass)
	}

	eachChild(node, func(child *tree_sitter.Node) {
		pyWalk(w, child, childInsideClass)
	})
}

func pyFunction(w *walker, node *tree_sitter.Node, kind ast.NodeKind) (ast.NodeID, bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return ast.NodeID{}, false
	}

	b := w.builder(kind, w.text(nameNode), node).Signature(w.sigText(node))
	if decorators := pyDecorators(w, node); len(decorators) > 0 {
		b.Meta(ast.MetaDecorators, decorators)
	}
	return w.add(b.Build()), true
}

func pyClass(w *walker, node *tree_sitter.Node) (ast.NodeID, bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return ast.NodeID{}, false
	}
	name := w.text(nameNode)

	bases, metaclass := pySuperclasses(w, node)
	mixins := pyMixins(bases)

	b := w.builder(ast.NodeKindClass, name, node)
	if len(bases) > 0 {
		b.Meta(ast.MetaBases, bases)
	}
	if metaclass != "" {
		b.Meta(ast.MetaMetaclass, metaclass)
	}
	if len(mixins) > 0 {
		b.Meta(ast.MetaMixins, mixins)
	}
	// A class deriving from type is itself a metaclass.
	for _, base := range bases {
		if base == "type" {
			b.Meta(ast.MetaIsMetaclass, true)
			break
		}
	}
	if decorators := pyDecorators(w, node); len(decorators) > 0 {
		b.Meta(ast.MetaDecorators, decorators)
	}

	id := w.add(b.Build())
	w.registerClass(name, id)
	for _, base := range bases {
		w.deferExtends(id, base)
	}
	return id, true
}

// pySuperclasses reads the base list of a class definition. A
// metaclass=Name keyword argument is returned separately and not treated
// as a base.
func pySuperclasses(w *walker, node *tree_sitter.Node) (bases []string, metaclass string) {
	args := node.ChildByFieldName("superclasses")
	if args == nil {
		return nil, ""
	}
	eachChild(args, func(arg *tree_sitter.Node) {
		switch arg.Kind() {
		case "identifier", "attribute":
			name := w.text(arg)
			if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
				name = name[idx+1:]
			}
			if name != "" {
				bases = append(bases, name)
			}
		case "keyword_argument":
			key := arg.ChildByFieldName("name")
			value := arg.ChildByFieldName("value")
			if key != nil && value != nil && w.text(key) == "metaclass" {
				metaclass = w.text(value)
			}
		}
	})
	return bases, metaclass
}

// pyMixins returns the bases following the *Mixin naming convention.
func pyMixins(bases []string) []string {
	var out []string
	for _, base := range bases {
		if strings.HasSuffix(base, "Mixin") {
			out = append(out, base)
		}
	}
	return out
}

// pyDecorators collects decorator names when the definition is wrapped in
// a decorated_definition.
func pyDecorators(w *walker, node *tree_sitter.Node) []string {
	parent := node.Parent()
	if parent == nil || parent.Kind() != "decorated_definition" {
		return nil
	}
	var out []string
	eachChild(parent, func(child *tree_sitter.Node) {
		if child.Kind() != "decorator" {
			return
		}
		name := strings.TrimPrefix(w.text(child), "@")
		// Strip call arguments: @lru_cache(maxsize=1) records lru_cache.
		if idx := strings.IndexByte(name, '('); idx >= 0 {
			name = name[:idx]
		}
		if name != "" {
			out = append(out, name)
		}
	})
	return out
}

func pyImport(w *walker, node *tree_sitter.Node) {
	eachChild(node, func(child *tree_sitter.Node) {
		var target *tree_sitter.Node
		switch child.Kind() {
		case "dotted_name":
			target = child
		case "aliased_import":
			target = child.ChildByFieldName("name")
		}
		if target == nil {
			return
		}
		moduleName := w.text(target)
		if moduleName == "" {
			return
		}
		n := w.builder(ast.NodeKindImport, moduleName, child).Build()
		w.addEdge(w.module.ID, w.add(n), ast.EdgeKindImports)
	})
}

func pyFromImport(w *walker, node *tree_sitter.Node) {
	moduleNode := node.ChildByFieldName("module_name")
	if moduleNode == nil {
		return
	}
	moduleName := w.text(moduleNode)
	if moduleName == "" {
		return
	}
	n := w.builder(ast.NodeKindImport, moduleName, node).Build()
	w.addEdge(w.module.ID, w.add(n), ast.EdgeKindImports)
}

func pyCall(w *walker, node *tree_sitter.Node) {
	fnNode := node.ChildByFieldName("function")
	if fnNode == nil {
		return
	}
	switch fnNode.Kind() {
	case "identifier", "attribute":
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

// pyAssignment records module-level and class-level assignments to plain
// identifiers as variable nodes. Local assignments inside functions are
// too noisy to keep.
func pyAssignment(w *walker, node *tree_sitter.Node, insideClass bool) {
	parent := node.Parent()
	if parent == nil || parent.Kind() != "expression_statement" {
		return
	}
	grandparent := parent.Parent()
	if grandparent == nil {
		return
	}
	switch grandparent.Kind() {
	case "module":
	case "block":
		if !insideClass {
			return
		}
	default:
		return
	}

	left := node.ChildByFieldName("left")
	if left == nil || left.Kind() != "identifier" {
		return
	}
	n := w.builder(ast.NodeKindVariable, w.text(left), node).Build()
	w.add(n)
}
