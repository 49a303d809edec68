package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codegraph/internal/ast"
)

func testNode(name string, start uint32) ast.Node {
	span := ast.NewSpan(start, start+10, 1, 1, 1, 11)
	return ast.NewNode("repo", ast.NodeKindFunction, name, ast.LangPython, "app.py", span)
}

// fakeView is a GraphView backed by a plain set.
type fakeView map[ast.NodeID]bool

func (v fakeView) HasNode(id ast.NodeID) bool { return v[id] }

func TestPatch_EmptyAndCounts(t *testing.T) {
	p := New("repo", "app.py")
	assert.True(t, p.IsEmpty())
	assert.Equal(t, 0, p.OperationCount())
	assert.NotEmpty(t, p.ID)
	assert.Greater(t, p.TimestampMs, int64(0))

	n1 := testNode("f1", 0)
	n2 := testNode("f2", 20)
	p = NewBuilder("repo", "app.py").
		AddNode(n1).
		AddNode(n2).
		AddEdge(ast.NewEdge(n1.ID, n2.ID, ast.EdgeKindCalls)).
		RemoveNode(testNode("old", 50).ID).
		Build()

	assert.False(t, p.IsEmpty())
	assert.Equal(t, 4, p.OperationCount())
}

func TestDiff_AddedAndRemoved(t *testing.T) {
	kept := testNode("kept", 0)
	gone := testNode("gone", 20)
	fresh := testNode("fresh", 40)

	keepEdge := ast.NewEdge(kept.ID, gone.ID, ast.EdgeKindCalls)
	newEdge := ast.NewEdge(kept.ID, fresh.ID, ast.EdgeKindCalls)

	p := Diff("repo", "app.py",
		[]ast.Node{kept, gone}, []ast.Edge{keepEdge},
		[]ast.Node{kept, fresh}, []ast.Edge{newEdge})

	require.Len(t, p.AddedNodes, 1)
	assert.Equal(t, fresh.ID, p.AddedNodes[0].ID)
	require.Len(t, p.RemovedNodes, 1)
	assert.Equal(t, gone.ID, p.RemovedNodes[0])
	assert.Equal(t, []ast.Edge{newEdge}, p.AddedEdges)
	assert.Equal(t, []ast.Edge{keepEdge}, p.RemovedEdges)
}

func TestDiff_IdenticalParsesProduceEmptyPatch(t *testing.T) {
	a := testNode("a", 0)
	b := testNode("b", 20)
	edges := []ast.Edge{ast.NewEdge(a.ID, b.ID, ast.EdgeKindCalls)}

	p := Diff("repo", "app.py", []ast.Node{a, b}, edges, []ast.Node{b, a}, edges)
	assert.True(t, p.IsEmpty(), "order of node slices must not matter")
}

func TestValidate_DuplicateAddedID(t *testing.T) {
	n := testNode("dup", 0)
	p := NewBuilder("repo", "app.py").AddNode(n).AddNode(n).Build()

	err := Validate(p, fakeView{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "duplicate")
}

func TestValidate_AddedIDAlreadyInGraph(t *testing.T) {
	n := testNode("exists", 0)
	p := NewBuilder("repo", "app.py").AddNode(n).Build()

	err := Validate(p, fakeView{n.ID: true})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "already exists")
}

func TestValidate_ReplaceIsLegitimate(t *testing.T) {
	n := testNode("replaced", 0)
	p := NewBuilder("repo", "app.py").RemoveNode(n.ID).AddNode(n).Build()

	assert.NoError(t, Validate(p, fakeView{n.ID: true}))
}

func TestValidate_DanglingEdgeEndpoint(t *testing.T) {
	n := testNode("n", 0)
	ghost := testNode("ghost", 20)

	p := NewBuilder("repo", "app.py").
		AddNode(n).
		AddEdge(ast.NewEdge(n.ID, ghost.ID, ast.EdgeKindCalls)).
		Build()

	err := Validate(p, fakeView{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "edge target")
}

func TestValidate_EdgeToExistingGraphNode(t *testing.T) {
	existing := testNode("existing", 0)
	fresh := testNode("fresh", 20)

	p := NewBuilder("repo", "app.py").
		AddNode(fresh).
		AddEdge(ast.NewEdge(fresh.ID, existing.ID, ast.EdgeKindCalls)).
		Build()

	assert.NoError(t, Validate(p, fakeView{existing.ID: true}))
}

func TestValidate_EdgeToNodeRemovedBySamePatch(t *testing.T) {
	doomed := testNode("doomed", 0)
	fresh := testNode("fresh", 20)

	p := NewBuilder("repo", "app.py").
		RemoveNode(doomed.ID).
		AddNode(fresh).
		AddEdge(ast.NewEdge(fresh.ID, doomed.ID, ast.EdgeKindCalls)).
		Build()

	err := Validate(p, fakeView{doomed.ID: true})
	assert.Error(t, err, "an edge may not target a node the patch removes")
}

func TestMerge_Cancellation(t *testing.T) {
	x := testNode("x", 0)

	a := NewBuilder("repo", "app.py").AddNode(x).WithTimestamp(1000).Build()
	b := NewBuilder("repo", "app.py").RemoveNode(x.ID).WithTimestamp(2000).Build()

	merged, err := Merge(a, b)
	require.NoError(t, err)
	assert.True(t, merged.IsEmpty(), "add then remove of the same node must net out")
	assert.Equal(t, int64(2000), merged.TimestampMs)
}

func TestMerge_EdgeCancellation(t *testing.T) {
	a := testNode("a", 0)
	b := testNode("b", 20)
	e := ast.NewEdge(a.ID, b.ID, ast.EdgeKindCalls)

	p1 := NewBuilder("repo", "app.py").AddEdge(e).WithTimestamp(1000).Build()
	p2 := NewBuilder("repo", "app.py").RemoveEdge(e).WithTimestamp(2000).Build()

	merged, err := Merge(p1, p2)
	require.NoError(t, err)
	assert.Empty(t, merged.AddedEdges)
	assert.Empty(t, merged.RemovedEdges)
}

func TestMerge_LaterPayloadWins(t *testing.T) {
	span := ast.NewSpan(0, 10, 1, 1, 1, 11)
	early := ast.NewNode("repo", ast.NodeKindFunction, "old_name", ast.LangPython, "app.py", span)
	late := early
	late.Name = "new_name"

	p1 := NewBuilder("repo", "app.py").AddNode(early).WithTimestamp(1000).Build()
	p2 := NewBuilder("repo", "app.py").AddNode(late).WithTimestamp(2000).Build()

	merged, err := Merge(p1, p2)
	require.NoError(t, err)
	require.Len(t, merged.AddedNodes, 1)
	assert.Equal(t, "new_name", merged.AddedNodes[0].Name)

	// Argument order must not matter.
	merged2, err := Merge(p2, p1)
	require.NoError(t, err)
	require.Len(t, merged2.AddedNodes, 1)
	assert.Equal(t, "new_name", merged2.AddedNodes[0].Name)
}

func TestMerge_Union(t *testing.T) {
	a := testNode("a", 0)
	b := testNode("b", 20)

	p1 := NewBuilder("repo", "app.py").AddNode(a).WithTimestamp(1000).Build()
	p2 := NewBuilder("repo", "app.py").AddNode(b).WithTimestamp(2000).Build()

	merged, err := Merge(p1, p2)
	require.NoError(t, err)
	assert.Len(t, merged.AddedNodes, 2)
}

func TestMerge_DifferentFilesRejected(t *testing.T) {
	p1 := New("repo", "a.py")
	p2 := New("repo", "b.py")

	_, err := Merge(p1, p2)
	assert.Error(t, err)
}
