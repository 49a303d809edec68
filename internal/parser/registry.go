package parser

import (
	"sort"
	"strings"
	"sync"
)

// Registry maps file extensions to language backends. It is read-mostly:
// registration happens at startup, lookups happen on every parse, and both
// are safe to interleave.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]LanguageParser // key: lowercase extension, no dot
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[string]LanguageParser),
	}
}

// Register adds a backend for every extension it declares, overwriting any
// previous mapping for those extensions.
func (r *Registry) Register(p LanguageParser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range p.SupportedExtensions() {
		r.backends[normalizeExt(ext)] = p
	}
}

// GetParser looks up the backend for an extension. The second return is
// false when no backend owns the extension.
func (r *Registry) GetParser(ext string) (LanguageParser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.backends[normalizeExt(ext)]
	return p, ok
}

// ListLanguages returns the distinct registered language names, sorted.
func (r *Registry) ListLanguages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var names []string
	for _, p := range r.backends {
		name := p.LanguageName()
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
