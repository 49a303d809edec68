package parser

import (
	"errors"
	"fmt"

	"codegraph/internal/ast"
)

// ErrUnsupportedLanguage is returned when no backend is registered for a
// file's extension.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// ParseError reports a syntax or backend failure in a single file. It is
// never fatal to a batch: ParseFiles records it per file and moves on.
type ParseError struct {
	File string
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.File, e.Msg, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.File, e.Msg)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseContext is a backend's input for one file. OldTree is an opaque
// handle from a previous parse of the same file; the engine never inspects
// it, only forwards it so the backend's grammar engine can reuse unchanged
// subtrees. OldContent is the source that OldTree was parsed from; the
// backend needs it to tell the grammar engine how the source changed
// before the old tree can be reused.
type ParseContext struct {
	RepoID     string
	FilePath   string
	Content    []byte
	OldTree    any
	OldContent []byte
}

// NewParseContext builds a context without an old tree.
func NewParseContext(repoID, filePath string, content []byte) ParseContext {
	return ParseContext{RepoID: repoID, FilePath: filePath, Content: content}
}

// WithOldTree returns a copy carrying the previous syntax tree handle and
// the source it was parsed from.
func (c ParseContext) WithOldTree(tree any, oldContent []byte) ParseContext {
	c.OldTree = tree
	c.OldContent = oldContent
	return c
}

// ParseResult is a backend's output for one file. Tree is the opaque
// syntax tree handle the engine caches for the next incremental parse.
type ParseResult struct {
	Tree  any
	Nodes []ast.Node
	Edges []ast.Edge
}

// LanguageParser is the capability contract a language backend implements
// to plug into the engine. Implementations must be safe for concurrent
// ParseFile calls.
type LanguageParser interface {
	// LanguageName returns the backend's human-readable language name.
	LanguageName() string

	// SupportedExtensions lists the file extensions (without dots) the
	// backend owns.
	SupportedExtensions() []string

	// ParseFile parses one file into universal AST nodes and edges.
	ParseFile(ctx ParseContext) (*ParseResult, error)
}
