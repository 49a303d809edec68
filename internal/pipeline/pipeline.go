// Package pipeline wires the engine together: full-repository indexing
// and the watch loop that keeps the graph current as files change on
// disk.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"codegraph/internal/config"
	"codegraph/internal/graph"
	"codegraph/internal/lang"
	"codegraph/internal/parser"
	"codegraph/internal/patch"
	"codegraph/internal/watcher"
)

// Pipeline drives scan → parse → diff → patch → apply for one
// repository. Graph file keys are root-relative paths, so the graph is
// independent of where the repository happens to be checked out.
type Pipeline struct {
	repoID   string
	root     string
	cfg      *config.ProjectConfig
	registry *parser.Registry
	engine   *parser.Engine
	store    *graph.Store
	scanner  *Scanner
	linker   *graph.Linker
	log      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger; the default is slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// WithStore supplies an existing store instead of a fresh one.
func WithStore(s *graph.Store) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithRegistry supplies a registry instead of the built-in backends;
// tests use this to index with stub parsers.
func WithRegistry(r *parser.Registry) Option {
	return func(p *Pipeline) { p.registry = r }
}

// New builds a pipeline for the repository rooted at root, loading
// codegraph.yml from it when present.
func New(root string, opts ...Option) (*Pipeline, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}

	cfg, err := config.Load(abs)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		root: abs,
		cfg:  cfg,
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.repoID = cfg.RepoID
	if p.repoID == "" {
		p.repoID = filepath.Base(abs)
	}
	if p.store == nil {
		p.store = graph.NewStore()
	}
	if p.registry == nil {
		p.registry = parser.NewRegistry()
		lang.RegisterAll(p.registry)
	}

	var engineOpts []parser.EngineOption
	if cfg.Workers > 0 {
		engineOpts = append(engineOpts, parser.WithWorkers(cfg.Workers))
	}
	if cfg.FileTimeout > 0 {
		engineOpts = append(engineOpts, parser.WithFileTimeout(cfg.FileTimeout))
	}
	p.engine = parser.NewEngine(p.registry, engineOpts...)

	p.scanner, err = NewScanner(abs, p.registry, cfg)
	if err != nil {
		return nil, err
	}
	p.linker = graph.NewLinker(p.store)
	return p, nil
}

// Store exposes the graph store for queries.
func (p *Pipeline) Store() *graph.Store { return p.store }

// RepoID returns the repository identity used in node IDs.
func (p *Pipeline) RepoID() string { return p.repoID }

// IndexStats summarizes one full indexing pass.
type IndexStats struct {
	FilesScanned int
	FilesParsed  int
	FilesFailed  int
	Nodes        int
	Edges        int
	Elapsed      time.Duration
}

// IndexRepo scans the repository, parses every indexable file, and
// applies one patch per file. Per-file failures are logged and skipped;
// the rest of the repository still lands in the graph. A final link pass
// resolves cross-file calls.
func (p *Pipeline) IndexRepo(ctx context.Context) (IndexStats, error) {
	start := time.Now()

	files, err := p.scanner.Scan()
	if err != nil {
		return IndexStats{}, err
	}
	p.log.Info("indexing repository", "repo", p.repoID, "files", len(files))

	contexts := make([]parser.ParseContext, 0, len(files))
	for _, abs := range files {
		content, err := os.ReadFile(abs)
		if err != nil {
			p.log.Warn("read file", "path", abs, "error", err)
			continue
		}
		contexts = append(contexts, parser.NewParseContext(p.repoID, p.relPath(abs), content))
	}

	stats := IndexStats{FilesScanned: len(files)}
	for _, fr := range p.engine.ParseFiles(ctx, contexts) {
		if fr.Err != nil {
			stats.FilesFailed++
			p.log.Warn("parse file", "path", fr.FilePath, "error", fr.Err)
			continue
		}
		if err := p.applyResult(fr.FilePath, fr.Result); err != nil {
			stats.FilesFailed++
			p.log.Warn("apply patch", "path", fr.FilePath, "error", err)
			continue
		}
		stats.FilesParsed++
	}

	p.link()

	snapshot := p.store.Stats()
	stats.Nodes = snapshot.Nodes
	stats.Edges = snapshot.Edges
	stats.Elapsed = time.Since(start)
	p.log.Info("index complete",
		"repo", p.repoID,
		"parsed", stats.FilesParsed,
		"failed", stats.FilesFailed,
		"nodes", stats.Nodes,
		"edges", stats.Edges,
		"elapsed", stats.Elapsed)
	return stats, ctx.Err()
}

// Watch consumes debounced change events until the context ends,
// re-parsing changed files and patching the graph in place. It returns
// nil on context cancellation, any other watcher failure is returned.
func (p *Pipeline) Watch(ctx context.Context) error {
	debounce := p.cfg.Debounce
	if debounce <= 0 {
		debounce = 50 * time.Millisecond
	}
	w, err := watcher.New(
		watcher.WithLogger(p.log),
		watcher.WithDebounce(debounce),
	)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.WatchDir(p.root, p.root); err != nil {
		return err
	}
	p.log.Info("watching repository", "repo", p.repoID, "root", p.root)

	for {
		ev, err := w.NextChange(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		p.handleChange(ev)
	}
}

// handleChange routes one debounced event. Failures are logged, never
// fatal to the loop.
func (p *Pipeline) handleChange(ev watcher.ChangeEvent) {
	switch ev.Kind {
	case watcher.ChangeCreated, watcher.ChangeModified:
		if !p.scanner.WantsPath(ev.Path) {
			return
		}
		if err := p.reparse(ev.Path); err != nil {
			p.log.Warn("reparse", "path", ev.Path, "error", err)
		}

	case watcher.ChangeDeleted:
		p.removeFile(ev.Path)

	case watcher.ChangeRenamed:
		p.removeFile(ev.OldPath)
		if !p.scanner.WantsPath(ev.Path) {
			return
		}
		if err := p.reparse(ev.Path); err != nil {
			p.log.Warn("reparse after rename", "path", ev.Path, "error", err)
		}
	}
}

// reparse runs one file through parse → diff → apply and then re-links.
func (p *Pipeline) reparse(abs string) error {
	content, err := os.ReadFile(abs)
	if err != nil {
		// The file vanished between the event and the read; treat it as
		// deleted.
		if os.IsNotExist(err) {
			p.removeFile(abs)
			return nil
		}
		return err
	}

	rel := p.relPath(abs)
	result, err := p.engine.ParseFile(parser.NewParseContext(p.repoID, rel, content))
	if err != nil {
		return err
	}
	if err := p.applyResult(rel, result); err != nil {
		return err
	}
	p.link()
	p.log.Debug("file re-indexed", "path", rel, "nodes", len(result.Nodes))
	return nil
}

// applyResult diffs a parse result against the file's current graph
// contents and applies the patch.
func (p *Pipeline) applyResult(rel string, result *parser.ParseResult) error {
	oldNodes := p.store.NodesInFile(rel)
	oldEdges := p.store.EdgesInFile(rel)
	ap := patch.Diff(p.repoID, rel, oldNodes, oldEdges, result.Nodes, result.Edges)
	if ap.IsEmpty() {
		return nil
	}
	return p.store.ApplyPatch(ap)
}

// removeFile drops a file's nodes and cached tree.
func (p *Pipeline) removeFile(abs string) {
	rel := p.relPath(abs)
	p.store.RemoveFile(rel)
	p.engine.Forget(rel)
	p.log.Debug("file removed from graph", "path", rel)
}

// link applies cross-file call resolution patches.
func (p *Pipeline) link() {
	for _, lp := range p.linker.Link(p.repoID) {
		if err := p.store.ApplyPatch(lp); err != nil {
			p.log.Warn("link patch rejected", "path", lp.FilePath, "error", err)
		}
	}
}

// relPath converts an absolute path under the root to the slash-form
// relative key used in the graph. Paths outside the root pass through
// unchanged.
func (p *Pipeline) relPath(abs string) string {
	rel, err := filepath.Rel(p.root, abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}
