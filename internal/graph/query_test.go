package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codegraph/internal/ast"
	"codegraph/internal/patch"
)

// chain builds a store holding a -> b -> c over Calls edges and returns
// the three nodes.
func chain(t *testing.T) (*Store, ast.Node, ast.Node, ast.Node) {
	t.Helper()
	s := NewStore()
	a := mkNode("a.py", "a", ast.NodeKindFunction, 0)
	b := mkNode("b.py", "b", ast.NodeKindFunction, 0)
	c := mkNode("c.py", "c", ast.NodeKindFunction, 0)

	mustApply(t, s, patch.NewBuilder("repo", "a.py").AddNode(a).Build())
	mustApply(t, s, patch.NewBuilder("repo", "b.py").AddNode(b).Build())
	mustApply(t, s, patch.NewBuilder("repo", "c.py").AddNode(c).Build())
	mustApply(t, s, patch.NewBuilder("repo", "a.py").
		AddEdge(ast.NewEdge(a.ID, b.ID, ast.EdgeKindCalls)).
		Build())
	mustApply(t, s, patch.NewBuilder("repo", "b.py").
		AddEdge(ast.NewEdge(b.ID, c.ID, ast.EdgeKindCalls)).
		Build())
	return s, a, b, c
}

func TestTracePath_FindsShortestPath(t *testing.T) {
	s, a, b, c := chain(t)
	q := NewQuery(s)

	res, err := q.TracePath(a.ID, c.ID, TraceOptions{MaxDepth: 2})
	require.NoError(t, err)

	assert.True(t, res.Found)
	assert.Equal(t, 2, res.Distance)
	assert.Equal(t, []ast.NodeID{a.ID, b.ID, c.ID}, res.Path)
	require.Len(t, res.Edges, 2)
	assert.Equal(t, ast.EdgeKindCalls, res.Edges[0].Kind)
	assert.Equal(t, a.ID, res.Edges[0].Source)
	assert.Equal(t, c.ID, res.Edges[1].Target)
}

func TestTracePath_DepthBudgetExcludesPath(t *testing.T) {
	s, a, _, c := chain(t)
	q := NewQuery(s)

	res, err := q.TracePath(a.ID, c.ID, TraceOptions{MaxDepth: 1})
	require.NoError(t, err)

	assert.False(t, res.Found)
	assert.Empty(t, res.Path)
	assert.Zero(t, res.Distance)
}

func TestTracePath_SourceEqualsTarget(t *testing.T) {
	s, a, _, _ := chain(t)
	q := NewQuery(s)

	res, err := q.TracePath(a.ID, a.ID, TraceOptions{})
	require.NoError(t, err)

	assert.True(t, res.Found)
	assert.Zero(t, res.Distance)
	assert.Equal(t, []ast.NodeID{a.ID}, res.Path)
	assert.Empty(t, res.Edges)
}

func TestTracePath_UnknownEndpoint(t *testing.T) {
	s, a, _, _ := chain(t)
	q := NewQuery(s)
	ghost := mkNode("ghost.py", "ghost", ast.NodeKindFunction, 0)

	_, err := q.TracePath(ghost.ID, a.ID, TraceOptions{})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = q.TracePath(a.ID, ghost.ID, TraceOptions{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTracePath_NoPathWithoutReverse(t *testing.T) {
	s, a, _, c := chain(t)
	q := NewQuery(s)

	res, err := q.TracePath(c.ID, a.ID, TraceOptions{MaxDepth: 5})
	require.NoError(t, err)
	assert.False(t, res.Found)

	res, err = q.TracePath(c.ID, a.ID, TraceOptions{MaxDepth: 5, FollowReverse: true})
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, 2, res.Distance)
}

func TestTracePath_DeterministicAmongEqualPaths(t *testing.T) {
	s := NewStore()
	src := mkNode("m.py", "src", ast.NodeKindFunction, 0)
	mid1 := mkNode("m.py", "mid1", ast.NodeKindFunction, 20)
	mid2 := mkNode("m.py", "mid2", ast.NodeKindFunction, 40)
	dst := mkNode("m.py", "dst", ast.NodeKindFunction, 60)

	mustApply(t, s, patch.NewBuilder("repo", "m.py").
		AddNodes([]ast.Node{src, mid1, mid2, dst}).
		AddEdge(ast.NewEdge(src.ID, mid1.ID, ast.EdgeKindCalls)).
		AddEdge(ast.NewEdge(src.ID, mid2.ID, ast.EdgeKindCalls)).
		AddEdge(ast.NewEdge(mid1.ID, dst.ID, ast.EdgeKindCalls)).
		AddEdge(ast.NewEdge(mid2.ID, dst.ID, ast.EdgeKindCalls)).
		Build())

	q := NewQuery(s)
	first, err := q.TracePath(src.ID, dst.ID, TraceOptions{})
	require.NoError(t, err)
	require.True(t, first.Found)

	for i := 0; i < 10; i++ {
		again, err := q.TracePath(src.ID, dst.ID, TraceOptions{})
		require.NoError(t, err)
		assert.Equal(t, first.Path, again.Path, "equal-length alternatives must resolve the same way every run")
	}

	// The tie-break is the smaller node id.
	want := mid1.ID
	if mid2.ID.Less(mid1.ID) {
		want = mid2.ID
	}
	assert.Equal(t, want, first.Path[1])
}

func TestFindDependencies_FilterByKind(t *testing.T) {
	s := NewStore()
	a := mkNode("a.py", "a", ast.NodeKindFunction, 0)
	b := mkNode("a.py", "b", ast.NodeKindFunction, 20)
	v := mkNode("a.py", "v", ast.NodeKindVariable, 40)

	mustApply(t, s, patch.NewBuilder("repo", "a.py").
		AddNodes([]ast.Node{a, b, v}).
		AddEdge(ast.NewEdge(a.ID, b.ID, ast.EdgeKindCalls)).
		AddEdge(ast.NewEdge(a.ID, v.ID, ast.EdgeKindReads)).
		Build())

	q := NewQuery(s)

	calls, err := q.FindDependencies(a.ID, DepCalls)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, b.ID, calls[0].Node.ID)
	assert.Equal(t, ast.EdgeKindCalls, calls[0].EdgeKind)

	all, err := q.FindDependencies(a.ID, DepDirect)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	writes, err := q.FindDependencies(a.ID, DepWrites)
	require.NoError(t, err)
	assert.Empty(t, writes)

	_, err = q.FindDependencies(mkNode("x.py", "x", ast.NodeKindFunction, 0).ID, DepDirect)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindReferences(t *testing.T) {
	s := NewStore()
	def := mkNode("lib.py", "helper", ast.NodeKindFunction, 0)
	caller1 := mkNode("a.py", "a", ast.NodeKindFunction, 0)
	caller2 := mkNode("b.py", "b", ast.NodeKindFunction, 0)

	mustApply(t, s, patch.NewBuilder("repo", "lib.py").AddNode(def).Build())
	mustApply(t, s, patch.NewBuilder("repo", "a.py").
		AddNode(caller1).
		AddEdge(ast.NewEdge(caller1.ID, def.ID, ast.EdgeKindCalls)).
		Build())
	mustApply(t, s, patch.NewBuilder("repo", "b.py").
		AddNode(caller2).
		AddEdge(ast.NewEdge(caller2.ID, def.ID, ast.EdgeKindReads)).
		Build())

	q := NewQuery(s)

	refs, err := q.FindReferences(def.ID, false)
	require.NoError(t, err)
	assert.Len(t, refs, 2)
	for _, r := range refs {
		assert.False(t, r.IsDefinition)
	}

	withDef, err := q.FindReferences(def.ID, true)
	require.NoError(t, err)
	require.Len(t, withDef, 3)
	assert.True(t, withDef[0].IsDefinition)
	assert.Equal(t, def.ID, withDef[0].Node.ID)

	_, err = q.FindReferences(mkNode("x.py", "x", ast.NodeKindFunction, 0).ID, false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLinker_ResolvesCrossFileCalls(t *testing.T) {
	s := NewStore()
	def := mkNode("lib.py", "helper", ast.NodeKindFunction, 0)
	caller := mkNode("app.py", "main", ast.NodeKindFunction, 0)
	site := mkNode("app.py", "lib.helper", ast.NodeKindCall, 20)

	mustApply(t, s, patch.NewBuilder("repo", "lib.py").AddNode(def).Build())
	mustApply(t, s, patch.NewBuilder("repo", "app.py").
		AddNodes([]ast.Node{caller, site}).
		AddEdge(ast.NewEdge(caller.ID, site.ID, ast.EdgeKindCalls)).
		Build())

	linker := NewLinker(s)
	patches := linker.Link("repo")
	require.Len(t, patches, 1)
	assert.Equal(t, "app.py", patches[0].FilePath)
	require.Len(t, patches[0].AddedEdges, 1)
	assert.Equal(t, site.ID, patches[0].AddedEdges[0].Source)
	assert.Equal(t, def.ID, patches[0].AddedEdges[0].Target)

	mustApply(t, s, patches[0])

	// Second pass finds nothing new.
	assert.Empty(t, linker.Link("repo"))
}

func TestLinker_SkipsUnresolvableAndNonCallables(t *testing.T) {
	s := NewStore()
	site := mkNode("app.py", "does_not_exist", ast.NodeKindCall, 0)
	variable := mkNode("lib.py", "helper", ast.NodeKindVariable, 0)
	site2 := mkNode("app.py", "helper", ast.NodeKindCall, 20)

	mustApply(t, s, patch.NewBuilder("repo", "lib.py").AddNode(variable).Build())
	mustApply(t, s, patch.NewBuilder("repo", "app.py").AddNodes([]ast.Node{site, site2}).Build())

	assert.Empty(t, NewLinker(s).Link("repo"), "calls to unknown or non-callable symbols produce no edges")
}
