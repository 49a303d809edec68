package parser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codegraph/internal/ast"
)

// stubBackend is a scriptable LanguageParser for engine tests.
type stubBackend struct {
	name string
	exts []string

	mu        sync.Mutex
	calls     int
	oldTrees  []any
	oldSrcs   [][]byte
	failPaths map[string]bool
	delay     time.Duration
}

func newStubBackend(name string, exts ...string) *stubBackend {
	return &stubBackend{name: name, exts: exts, failPaths: make(map[string]bool)}
}

func (s *stubBackend) LanguageName() string          { return s.name }
func (s *stubBackend) SupportedExtensions() []string { return s.exts }

func (s *stubBackend) ParseFile(ctx ParseContext) (*ParseResult, error) {
	s.mu.Lock()
	s.calls++
	s.oldTrees = append(s.oldTrees, ctx.OldTree)
	s.oldSrcs = append(s.oldSrcs, ctx.OldContent)
	fail := s.failPaths[ctx.FilePath]
	delay := s.delay
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if fail {
		return nil, &ParseError{File: ctx.FilePath, Msg: "scripted failure"}
	}

	span := ast.NewSpan(0, uint32(len(ctx.Content)), 1, 1, 1, 1)
	node := ast.NewNode(ctx.RepoID, ast.NodeKindModule, ctx.FilePath, ast.LangUnknown, ctx.FilePath, span)
	return &ParseResult{
		Tree:  fmt.Sprintf("tree-%s-%d", ctx.FilePath, s.calls),
		Nodes: []ast.Node{node},
	}, nil
}

func TestRegistry_CaseInsensitiveLookup(t *testing.T) {
	reg := NewRegistry()
	reg.Register(newStubBackend("python", "py", "pyw"))

	for _, ext := range []string{"py", ".py", "PY", ".PY", "pyw"} {
		p, ok := reg.GetParser(ext)
		require.True(t, ok, "extension %q should resolve", ext)
		assert.Equal(t, "python", p.LanguageName())
	}

	_, ok := reg.GetParser("rb")
	assert.False(t, ok)
}

func TestRegistry_RegisterOverwrites(t *testing.T) {
	reg := NewRegistry()
	reg.Register(newStubBackend("first", "py"))
	reg.Register(newStubBackend("second", "py"))

	p, ok := reg.GetParser("py")
	require.True(t, ok)
	assert.Equal(t, "second", p.LanguageName())
}

func TestRegistry_ListLanguages(t *testing.T) {
	reg := NewRegistry()
	reg.Register(newStubBackend("python", "py"))
	reg.Register(newStubBackend("go", "go"))
	reg.Register(newStubBackend("typescript", "ts", "tsx"))

	assert.Equal(t, []string{"go", "python", "typescript"}, reg.ListLanguages())
}

func TestEngine_ParseFile_UnsupportedExtension(t *testing.T) {
	eng := NewEngine(NewRegistry())

	_, err := eng.ParseFile(NewParseContext("repo", "README.md", nil))
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)

	_, err = eng.ParseFile(NewParseContext("repo", "Makefile", nil))
	assert.ErrorIs(t, err, ErrUnsupportedLanguage, "no extension at all")
}

func TestEngine_ParseFile_IncrementalCache(t *testing.T) {
	backend := newStubBackend("python", "py")
	reg := NewRegistry()
	reg.Register(backend)
	eng := NewEngine(reg)

	_, err := eng.ParseFile(NewParseContext("repo", "a.py", []byte("x = 1")))
	require.NoError(t, err)

	_, err = eng.ParseFile(NewParseContext("repo", "a.py", []byte("x = 2")))
	require.NoError(t, err)

	require.Len(t, backend.oldTrees, 2)
	assert.Nil(t, backend.oldTrees[0], "first parse has no previous tree")
	assert.NotNil(t, backend.oldTrees[1], "second parse must receive the cached tree")
	assert.Nil(t, backend.oldSrcs[0])
	assert.Equal(t, []byte("x = 1"), backend.oldSrcs[1],
		"second parse must receive the content the cached tree came from")
}

func TestEngine_ParseFile_ExplicitOldTreeWins(t *testing.T) {
	backend := newStubBackend("python", "py")
	reg := NewRegistry()
	reg.Register(backend)
	eng := NewEngine(reg)

	_, err := eng.ParseFile(NewParseContext("repo", "a.py", []byte("x")).WithOldTree("caller-tree", []byte("y")))
	require.NoError(t, err)

	require.Len(t, backend.oldTrees, 1)
	assert.Equal(t, "caller-tree", backend.oldTrees[0])
	assert.Equal(t, []byte("y"), backend.oldSrcs[0])
}

func TestEngine_Forget(t *testing.T) {
	backend := newStubBackend("python", "py")
	reg := NewRegistry()
	reg.Register(backend)
	eng := NewEngine(reg)

	_, err := eng.ParseFile(NewParseContext("repo", "a.py", []byte("x")))
	require.NoError(t, err)
	eng.Forget("a.py")

	_, err = eng.ParseFile(NewParseContext("repo", "a.py", []byte("y")))
	require.NoError(t, err)

	require.Len(t, backend.oldTrees, 2)
	assert.Nil(t, backend.oldTrees[1], "forgotten path must parse from scratch")
}

func TestEngine_ParseFiles_PreservesInputOrder(t *testing.T) {
	backend := newStubBackend("python", "py")
	reg := NewRegistry()
	reg.Register(backend)
	eng := NewEngine(reg, WithWorkers(4))

	var contexts []ParseContext
	for i := 0; i < 50; i++ {
		contexts = append(contexts, NewParseContext("repo", fmt.Sprintf("f%02d.py", i), []byte("pass")))
	}

	results := eng.ParseFiles(context.Background(), contexts)
	require.Len(t, results, len(contexts))
	for i, res := range results {
		assert.Equal(t, contexts[i].FilePath, res.FilePath, "result %d out of order", i)
		assert.NoError(t, res.Err)
		assert.NotNil(t, res.Result)
	}
}

func TestEngine_ParseFiles_PartialFailure(t *testing.T) {
	backend := newStubBackend("python", "py")
	backend.failPaths["bad.py"] = true
	reg := NewRegistry()
	reg.Register(backend)
	eng := NewEngine(reg, WithWorkers(2))

	contexts := []ParseContext{
		NewParseContext("repo", "ok1.py", []byte("a")),
		NewParseContext("repo", "bad.py", []byte("b")),
		NewParseContext("repo", "ok2.py", []byte("c")),
		NewParseContext("repo", "none.txt", []byte("d")),
	}

	results := eng.ParseFiles(context.Background(), contexts)
	require.Len(t, results, 4)

	assert.NoError(t, results[0].Err)
	assert.NoError(t, results[2].Err)

	var perr *ParseError
	require.ErrorAs(t, results[1].Err, &perr)
	assert.Equal(t, "bad.py", perr.File)

	assert.ErrorIs(t, results[3].Err, ErrUnsupportedLanguage, "unsupported file fails alone")
}

func TestEngine_ParseFiles_PerFileTimeout(t *testing.T) {
	backend := newStubBackend("python", "py")
	backend.delay = 200 * time.Millisecond
	reg := NewRegistry()
	reg.Register(backend)
	eng := NewEngine(reg, WithFileTimeout(20*time.Millisecond))

	results := eng.ParseFiles(context.Background(), []ParseContext{
		NewParseContext("repo", "slow.py", []byte("x")),
	})

	require.Len(t, results, 1)
	var perr *ParseError
	require.ErrorAs(t, results[0].Err, &perr)
	assert.True(t, strings.Contains(perr.Msg, "timed out"), "got: %s", perr.Msg)
}

func TestEngine_ParseFiles_CanceledContext(t *testing.T) {
	backend := newStubBackend("python", "py")
	reg := NewRegistry()
	reg.Register(backend)
	eng := NewEngine(reg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := eng.ParseFiles(ctx, []ParseContext{
		NewParseContext("repo", "a.py", []byte("x")),
	})
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
}
