package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codegraph/internal/ast"
	"codegraph/internal/graph"
	"codegraph/internal/parser"
	"codegraph/internal/watcher"
)

// scriptParser is a line-oriented stub backend: "fn NAME" lines produce
// function nodes, "call NAME" lines produce call nodes wired to the
// module. It keeps pipeline tests independent of real grammars.
type scriptParser struct{}

func (s *scriptParser) LanguageName() string          { return "script" }
func (s *scriptParser) SupportedExtensions() []string { return []string{"zz"} }

func (s *scriptParser) ParseFile(pc parser.ParseContext) (*parser.ParseResult, error) {
	module := ast.NewNode(pc.RepoID, ast.NodeKindModule, filepath.Base(pc.FilePath), ast.LangUnknown, pc.FilePath,
		ast.NewSpan(0, uint32(len(pc.Content)), 1, 1, 1, 1))
	res := &parser.ParseResult{Tree: struct{}{}, Nodes: []ast.Node{module}}

	offset := uint32(0)
	for i, line := range strings.Split(string(pc.Content), "\n") {
		fields := strings.Fields(line)
		start := offset
		offset += uint32(len(line)) + 1
		if len(fields) != 2 {
			continue
		}
		span := ast.NewSpan(start, start+uint32(len(line)), uint32(i+1), uint32(i+1), 1, uint32(len(line)+1))
		switch fields[0] {
		case "fn":
			n := ast.NewNode(pc.RepoID, ast.NodeKindFunction, fields[1], ast.LangUnknown, pc.FilePath, span)
			res.Nodes = append(res.Nodes, n)
		case "call":
			n := ast.NewNode(pc.RepoID, ast.NodeKindCall, fields[1], ast.LangUnknown, pc.FilePath, span)
			res.Nodes = append(res.Nodes, n)
			res.Edges = append(res.Edges, ast.NewEdge(module.ID, n.ID, ast.EdgeKindCalls))
		}
	}
	return res, nil
}

func stubRegistry() *parser.Registry {
	r := parser.NewRegistry()
	r.Register(&scriptParser{})
	return r
}

func writeRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func newTestPipeline(t *testing.T, root string) *Pipeline {
	t.Helper()
	p, err := New(root, WithRegistry(stubRegistry()))
	require.NoError(t, err)
	return p
}

func TestPipeline_IndexRepo(t *testing.T) {
	root := writeRepo(t, map[string]string{
		"lib.zz":  "fn helper\n",
		"app.zz":  "fn main\ncall helper\n",
		"README":  "not indexable\n",
		"skip.py": "also skipped, no backend\n",
	})
	p := newTestPipeline(t, root)

	stats, err := p.IndexRepo(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.FilesScanned)
	assert.Equal(t, 2, stats.FilesParsed)
	assert.Zero(t, stats.FilesFailed)

	store := p.Store()
	require.Len(t, store.NodesByName("helper"), 2, "function definition plus call site")
	require.Len(t, store.NodesByName("main"), 1)

	// The linker connected the call site in app.zz to the definition in
	// lib.zz.
	var callSite ast.Node
	for _, n := range store.NodesByName("helper") {
		if n.Kind == ast.NodeKindCall {
			callSite = n
		}
	}
	require.NotEqual(t, ast.NodeID{}, callSite.ID)

	q := graph.NewQuery(store)
	deps, err := q.FindDependencies(callSite.ID, graph.DepCalls)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, ast.NodeKindFunction, deps[0].Node.Kind)
	assert.Equal(t, "lib.zz", deps[0].Node.File)
}

func TestPipeline_ModifyEventPatchesGraph(t *testing.T) {
	root := writeRepo(t, map[string]string{"app.zz": "fn alpha\n"})
	p := newTestPipeline(t, root)

	_, err := p.IndexRepo(context.Background())
	require.NoError(t, err)
	require.Len(t, p.Store().NodesByName("alpha"), 1)

	path := filepath.Join(root, "app.zz")
	require.NoError(t, os.WriteFile(path, []byte("fn alpha\nfn beta\n"), 0o644))
	p.handleChange(watcher.ChangeEvent{Root: root, Path: path, Kind: watcher.ChangeModified})

	assert.Len(t, p.Store().NodesByName("alpha"), 1, "unchanged symbol survives the patch")
	assert.Len(t, p.Store().NodesByName("beta"), 1, "new symbol arrives")
}

func TestPipeline_DeleteEventRemovesFile(t *testing.T) {
	root := writeRepo(t, map[string]string{
		"a.zz": "fn alpha\n",
		"b.zz": "fn beta\ncall alpha\n",
	})
	p := newTestPipeline(t, root)
	_, err := p.IndexRepo(context.Background())
	require.NoError(t, err)

	path := filepath.Join(root, "a.zz")
	require.NoError(t, os.Remove(path))
	p.handleChange(watcher.ChangeEvent{Root: root, Path: path, Kind: watcher.ChangeDeleted})

	store := p.Store()
	assert.Empty(t, store.NodesInFile("a.zz"))
	assert.NotEmpty(t, store.NodesInFile("b.zz"), "other files untouched")

	// The cross-file call edge into the deleted definition is gone too.
	for _, n := range store.NodesByName("alpha") {
		assert.Equal(t, ast.NodeKindCall, n.Kind, "only the call site remains")
		assert.Empty(t, store.OutgoingEdges(n.ID))
	}
}

func TestPipeline_RenameEventMovesFile(t *testing.T) {
	root := writeRepo(t, map[string]string{"old.zz": "fn alpha\n"})
	p := newTestPipeline(t, root)
	_, err := p.IndexRepo(context.Background())
	require.NoError(t, err)

	oldPath := filepath.Join(root, "old.zz")
	newPath := filepath.Join(root, "new.zz")
	require.NoError(t, os.Rename(oldPath, newPath))
	p.handleChange(watcher.ChangeEvent{
		Root: root, Path: newPath, OldPath: oldPath, Kind: watcher.ChangeRenamed,
	})

	store := p.Store()
	assert.Empty(t, store.NodesInFile("old.zz"))
	nodes := store.NodesInFile("new.zz")
	require.NotEmpty(t, nodes)
	assert.Len(t, store.NodesByName("alpha"), 1)
}

func TestPipeline_ReparseIdenticalContentIsNoop(t *testing.T) {
	root := writeRepo(t, map[string]string{"app.zz": "fn alpha\n"})
	p := newTestPipeline(t, root)
	_, err := p.IndexRepo(context.Background())
	require.NoError(t, err)

	before := p.Store().Stats()
	p.handleChange(watcher.ChangeEvent{
		Root: root, Path: filepath.Join(root, "app.zz"), Kind: watcher.ChangeModified,
	})
	assert.Equal(t, before, p.Store().Stats())
}

func TestScanner_Filters(t *testing.T) {
	root := writeRepo(t, map[string]string{
		"keep.zz":            "fn a\n",
		"sub/nested.zz":      "fn b\n",
		"vendor/dep.zz":      "fn c\n",
		"generated_thing.zz": "fn d\n",
		"notes.txt":          "skip\n",
		".gitignore":         "generated_*\n",
		"codegraph.yml":      "exclude:\n  - vendor\n",
	})
	p := newTestPipeline(t, root)

	files, err := p.scanner.Scan()
	require.NoError(t, err)

	rels := make([]string, 0, len(files))
	for _, f := range files {
		rel, _ := filepath.Rel(root, f)
		rels = append(rels, filepath.ToSlash(rel))
	}
	assert.ElementsMatch(t, []string{"keep.zz", "sub/nested.zz"}, rels)
}

func TestPipeline_RepoIDDefaultsToRootName(t *testing.T) {
	root := writeRepo(t, map[string]string{"a.zz": "fn a\n"})
	p := newTestPipeline(t, root)
	assert.Equal(t, filepath.Base(root), p.RepoID())
}
