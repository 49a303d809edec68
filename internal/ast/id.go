package ast

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"lukechampine.com/blake3"
)

// NodeID is a deterministic, content-derived 16-byte node identifier.
// Identical (repoID, filePath, span, kind) inputs always produce the same
// ID; there is no randomness or clock involved. Because the span feeds the
// hash, the identity is position-sensitive: an edit above a symbol shifts
// its span and therefore its ID on the next parse.
type NodeID [16]byte

// NewNodeID derives an ID from the node's identity tuple. The hash input
// is repoID || filePath || startByte(LE64) || endByte(LE64) || kind.
func NewNodeID(repoID, filePath string, span Span, kind NodeKind) NodeID {
	h := blake3.New(32, nil)
	h.Write([]byte(repoID))
	h.Write([]byte(filePath))

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(span.StartByte))
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(span.EndByte))
	h.Write(buf[:])

	h.Write([]byte(kind))

	var id NodeID
	copy(id[:], h.Sum(nil)[:16])
	return id
}

// ParseNodeID decodes a 32-character hex string into a NodeID.
func ParseNodeID(s string) (NodeID, error) {
	var id NodeID
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("parse node id %q: %w", s, err)
	}
	if len(raw) != len(id) {
		return id, fmt.Errorf("parse node id %q: want %d bytes, got %d", s, len(id), len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// Hex returns the full 32-character hex form.
func (id NodeID) Hex() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether the ID is the zero value.
func (id NodeID) IsZero() bool {
	return id == NodeID{}
}

// Less gives a total order over IDs by byte comparison. Used for
// deterministic tie-breaking in graph traversals.
func (id NodeID) Less(other NodeID) bool {
	for i := range id {
		if id[i] != other[i] {
			return id[i] < other[i]
		}
	}
	return false
}

// String returns the short (8-character) form used in logs.
func (id NodeID) String() string {
	return id.Hex()[:8]
}

// MarshalText implements encoding.TextMarshaler so IDs serialize as hex in
// JSON objects and map keys.
func (id NodeID) MarshalText() ([]byte, error) {
	return []byte(id.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *NodeID) UnmarshalText(text []byte) error {
	parsed, err := ParseNodeID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
