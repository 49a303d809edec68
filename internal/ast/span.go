package ast

import "fmt"

// Span is a source location covering the half-open byte range
// [StartByte, EndByte). Byte offsets are 0-indexed; lines and columns are
// 1-indexed. Spans of sibling nodes in the same file must not overlap;
// that is a producer (backend) obligation, not enforced here.
type Span struct {
	StartByte   uint32 `json:"startByte"`
	EndByte     uint32 `json:"endByte"`
	StartLine   uint32 `json:"startLine"`
	EndLine     uint32 `json:"endLine"`
	StartColumn uint32 `json:"startColumn"`
	EndColumn   uint32 `json:"endColumn"`
}

// NewSpan builds a span from explicit offsets.
func NewSpan(startByte, endByte, startLine, endLine, startColumn, endColumn uint32) Span {
	return Span{
		StartByte:   startByte,
		EndByte:     endByte,
		StartLine:   startLine,
		EndLine:     endLine,
		StartColumn: startColumn,
		EndColumn:   endColumn,
	}
}

// Len returns the span length in bytes.
func (s Span) Len() int {
	return int(s.EndByte) - int(s.StartByte)
}

// IsEmpty reports whether the span covers zero bytes.
func (s Span) IsEmpty() bool {
	return s.StartByte == s.EndByte
}

// Valid reports whether byte and line ordering hold.
func (s Span) Valid() bool {
	return s.StartByte <= s.EndByte && s.StartLine <= s.EndLine
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", s.StartLine, s.StartColumn, s.EndLine, s.EndColumn)
}
