package ast

import "fmt"

// Node is a single element of the universal AST. Nodes are immutable once
// inserted into a store; replacing one means removing it and adding a node
// with a fresh ID.
type Node struct {
	ID        NodeID         `json:"id"`
	Kind      NodeKind       `json:"kind"`
	Name      string         `json:"name"`
	Language  Language       `json:"language"`
	File      string         `json:"file"`
	Span      Span           `json:"span"`
	Signature string         `json:"signature,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Well-known metadata keys written by language backends. The metadata bag
// is open; these are the keys the query engine reads.
const (
	MetaBases       = "bases"        // []string: declared base class names, in order
	MetaIsMetaclass = "is_metaclass" // bool: the class is itself a metaclass
	MetaMetaclass   = "metaclass"    // string: name of the declared metaclass
	MetaDecorators  = "decorators"   // []string: applied decorator names
	MetaMixins      = "mixins"       // []string: base names the backend tagged as mixins
)

// NewNode constructs a node and derives its ID from the identity tuple.
func NewNode(repoID string, kind NodeKind, name string, lang Language, file string, span Span) Node {
	return Node{
		ID:       NewNodeID(repoID, file, span, kind),
		Kind:     kind,
		Name:     name,
		Language: lang,
		File:     file,
		Span:     span,
	}
}

// MetaString reads a string metadata value, returning "" when absent or of
// the wrong type.
func (n Node) MetaString(key string) string {
	v, _ := n.Metadata[key].(string)
	return v
}

// MetaBool reads a boolean metadata value, defaulting to false.
func (n Node) MetaBool(key string) bool {
	v, _ := n.Metadata[key].(bool)
	return v
}

// MetaStrings reads a string-slice metadata value. It tolerates []any
// contents, which is what a JSON round-trip produces.
func (n Node) MetaStrings(key string) []string {
	switch v := n.Metadata[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func (n Node) String() string {
	return fmt.Sprintf("%s %s %q at %s:%s", n.Language, n.Kind, n.Name, n.File, n.Span)
}

// Edge is a directed, typed relationship between two nodes. Equality is by
// the full (Source, Target, Kind) triple; stores deduplicate identical
// edges on insert.
type Edge struct {
	Source NodeID   `json:"source"`
	Target NodeID   `json:"target"`
	Kind   EdgeKind `json:"kind"`
}

// NewEdge builds an edge.
func NewEdge(source, target NodeID, kind EdgeKind) Edge {
	return Edge{Source: source, Target: target, Kind: kind}
}

func (e Edge) String() string {
	return fmt.Sprintf("%s -%s-> %s", e.Source, e.Kind, e.Target)
}

// NodeBuilder assembles nodes field by field. Backends use it while walking
// a syntax tree; Build derives the ID last so every identity field is set.
type NodeBuilder struct {
	repoID    string
	kind      NodeKind
	name      string
	lang      Language
	file      string
	span      Span
	signature string
	metadata  map[string]any
}

// NewNodeBuilder starts a builder for the given repository and kind.
func NewNodeBuilder(repoID string, kind NodeKind) *NodeBuilder {
	return &NodeBuilder{
		repoID: repoID,
		kind:   kind,
		lang:   LangUnknown,
		span:   NewSpan(0, 0, 1, 1, 1, 1),
	}
}

// Name sets the node name.
func (b *NodeBuilder) Name(name string) *NodeBuilder {
	b.name = name
	return b
}

// Language sets the source language.
func (b *NodeBuilder) Language(lang Language) *NodeBuilder {
	b.lang = lang
	return b
}

// File sets the source file path.
func (b *NodeBuilder) File(file string) *NodeBuilder {
	b.file = file
	return b
}

// Span sets the source location.
func (b *NodeBuilder) Span(span Span) *NodeBuilder {
	b.span = span
	return b
}

// Signature sets the optional type signature.
func (b *NodeBuilder) Signature(sig string) *NodeBuilder {
	b.signature = sig
	return b
}

// Meta sets one metadata key.
func (b *NodeBuilder) Meta(key string, value any) *NodeBuilder {
	if b.metadata == nil {
		b.metadata = make(map[string]any)
	}
	b.metadata[key] = value
	return b
}

// Build derives the ID and returns the finished node.
func (b *NodeBuilder) Build() Node {
	return Node{
		ID:        NewNodeID(b.repoID, b.file, b.span, b.kind),
		Kind:      b.kind,
		Name:      b.name,
		Language:  b.lang,
		File:      b.file,
		Span:      b.span,
		Signature: b.signature,
		Metadata:  b.metadata,
	}
}
