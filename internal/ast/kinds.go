package ast

import "strings"

// NodeKind classifies nodes in the universal AST. The vocabulary is fixed
// and shared across every language backend; backends map grammar-specific
// constructs onto it so the graph stays language-agnostic.
type NodeKind string

const (
	NodeKindModule    NodeKind = "module"
	NodeKindClass     NodeKind = "class"
	NodeKindFunction  NodeKind = "function"
	NodeKindMethod    NodeKind = "method"
	NodeKindParameter NodeKind = "parameter"
	NodeKindVariable  NodeKind = "variable"
	NodeKindCall      NodeKind = "call"
	NodeKindImport    NodeKind = "import"
	NodeKindLiteral   NodeKind = "literal"
	NodeKindRoute     NodeKind = "route"
	NodeKindSQLQuery  NodeKind = "sql_query"
	NodeKindEvent     NodeKind = "event"
	NodeKindUnknown   NodeKind = "unknown"
)

// EdgeKind classifies directed relationships between nodes.
type EdgeKind string

const (
	EdgeKindCalls      EdgeKind = "CALLS"
	EdgeKindReads      EdgeKind = "READS"
	EdgeKindWrites     EdgeKind = "WRITES"
	EdgeKindImports    EdgeKind = "IMPORTS"
	EdgeKindEmits      EdgeKind = "EMITS"
	EdgeKindRoutesTo   EdgeKind = "ROUTES_TO"
	EdgeKindRaises     EdgeKind = "RAISES"
	EdgeKindExtends    EdgeKind = "EXTENDS"
	EdgeKindImplements EdgeKind = "IMPLEMENTS"
)

// Language identifies a programming language for parsing.
type Language string

const (
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangPython     Language = "python"
	LangJava       Language = "java"
	LangGo         Language = "go"
	LangRust       Language = "rust"
	LangC          Language = "c"
	LangCpp        Language = "cpp"
	LangUnknown    Language = "unknown"
)

// LanguageFromExtension maps a file extension (with or without the leading
// dot, case-insensitive) to a Language. Unrecognized extensions map to
// LangUnknown.
func LanguageFromExtension(ext string) Language {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	switch ext {
	case "js", "mjs", "cjs":
		return LangJavaScript
	case "ts", "tsx":
		return LangTypeScript
	case "py", "pyw":
		return LangPython
	case "java":
		return LangJava
	case "go":
		return LangGo
	case "rs":
		return LangRust
	case "c", "h":
		return LangC
	case "cpp", "cc", "cxx", "hpp", "hxx":
		return LangCpp
	default:
		return LangUnknown
	}
}
