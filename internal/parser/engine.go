package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultWorkers = 8

// Engine orchestrates parsing through a Registry. It keeps a per-path
// cache of the last syntax tree and the source it came from, so repeated
// parses of the same file are incremental without callers threading tree
// handles themselves.
type Engine struct {
	registry *Registry
	workers  int
	timeout  time.Duration // per-file budget in ParseFiles; 0 disables

	mu    sync.Mutex
	trees map[string]cachedParse
}

// cachedParse pairs a syntax tree with the content it was parsed from.
// The content is required to compute the source edit when the tree is
// reused on the next parse.
type cachedParse struct {
	tree    any
	content []byte
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithWorkers bounds the ParseFiles worker pool.
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithFileTimeout sets the per-file parse budget for batch parsing. A file
// that exceeds it fails with a ParseError; the rest of the batch is
// unaffected.
func WithFileTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.timeout = d
	}
}

// NewEngine creates an engine over the given registry.
func NewEngine(registry *Registry, opts ...EngineOption) *Engine {
	e := &Engine{
		registry: registry,
		workers:  defaultWorkers,
		trees:    make(map[string]cachedParse),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ParseFile resolves a backend by the file's extension and delegates. When
// the context carries no old tree, the engine supplies the cached tree and
// prior content from the previous parse of the same path, if any. The new
// tree and content are cached on success.
func (e *Engine) ParseFile(ctx ParseContext) (*ParseResult, error) {
	ext := filepath.Ext(ctx.FilePath)
	if ext == "" {
		return nil, fmt.Errorf("%s: %w", ctx.FilePath, ErrUnsupportedLanguage)
	}

	backend, ok := e.registry.GetParser(ext)
	if !ok {
		return nil, fmt.Errorf("%s: %w", ctx.FilePath, ErrUnsupportedLanguage)
	}

	if ctx.OldTree == nil {
		e.mu.Lock()
		if cached, ok := e.trees[ctx.FilePath]; ok {
			ctx.OldTree = cached.tree
			ctx.OldContent = cached.content
		}
		e.mu.Unlock()
	}

	result, err := backend.ParseFile(ctx)
	if err != nil {
		return nil, err
	}

	if result.Tree != nil {
		e.mu.Lock()
		e.trees[ctx.FilePath] = cachedParse{tree: result.Tree, content: ctx.Content}
		e.mu.Unlock()
	}
	return result, nil
}

// FileResult pairs one input of a batch with its outcome. Exactly one of
// Result and Err is set.
type FileResult struct {
	FilePath string
	Result   *ParseResult
	Err      error
}

// ParseFiles parses a batch across a bounded worker pool. The returned
// slice has one entry per input, in input order, regardless of completion
// order. A failed file never aborts the batch.
func (e *Engine) ParseFiles(ctx context.Context, contexts []ParseContext) []FileResult {
	results := make([]FileResult, len(contexts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, pc := range contexts {
		g.Go(func() error {
			results[i] = FileResult{
				FilePath: pc.FilePath,
			}
			results[i].Result, results[i].Err = e.parseOne(gctx, pc)
			return nil // partial-failure semantics: errors stay per file
		})
	}

	// The closures never return errors, so Wait only observes ctx
	// cancellation from the caller.
	_ = g.Wait()
	return results
}

// parseOne runs a single parse under the per-file timeout, if configured.
func (e *Engine) parseOne(ctx context.Context, pc ParseContext) (*ParseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ParseError{File: pc.FilePath, Msg: "canceled", Err: err}
	}
	if e.timeout <= 0 {
		return e.ParseFile(pc)
	}

	type outcome struct {
		result *ParseResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		r, err := e.ParseFile(pc)
		done <- outcome{r, err}
	}()

	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		return out.result, out.err
	case <-timer.C:
		return nil, &ParseError{File: pc.FilePath, Msg: fmt.Sprintf("timed out after %s", e.timeout)}
	case <-ctx.Done():
		return nil, &ParseError{File: pc.FilePath, Msg: "canceled", Err: ctx.Err()}
	}
}

// ClearCache drops every cached tree.
func (e *Engine) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.trees = make(map[string]cachedParse)
}

// Forget drops the cached tree for one path, forcing the next parse of it
// to run from scratch.
func (e *Engine) Forget(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.trees, path)
}
