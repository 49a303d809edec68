package pipeline

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/sabhiram/go-gitignore"

	"codegraph/internal/config"
	"codegraph/internal/parser"
)

// Scanner enumerates the parseable files of a repository: files whose
// extension has a registered backend, filtered by .gitignore rules and
// config exclude globs.
type Scanner struct {
	root     string
	registry *parser.Registry
	cfg      *config.ProjectConfig
	ignore   *gitignore.GitIgnore // nil when gitignore handling is off
}

// NewScanner builds a scanner rooted at a repository directory.
func NewScanner(root string, registry *parser.Registry, cfg *config.ProjectConfig) (*Scanner, error) {
	s := &Scanner{root: root, registry: registry, cfg: cfg}

	if cfg.Gitignore() {
		path := filepath.Join(root, ".gitignore")
		if _, err := os.Stat(path); err == nil {
			ign, err := gitignore.CompileIgnoreFile(path)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", path, err)
			}
			s.ignore = ign
		}
	}
	return s, nil
}

// Scan walks the tree and returns the absolute paths of indexable files,
// in walk order.
func (s *Scanner) Scan() ([]string, error) {
	var files []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(s.root, path)
		if relErr != nil || rel == "." {
			return nil
		}

		if d.IsDir() {
			if s.skipDir(rel, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if s.WantsFile(rel) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.root, err)
	}
	return files, nil
}

// WantsFile reports whether a root-relative file path should be indexed.
func (s *Scanner) WantsFile(rel string) bool {
	if s.excluded(rel) {
		return false
	}
	ext := filepath.Ext(rel)
	if ext == "" {
		return false
	}
	backend, ok := s.registry.GetParser(ext)
	if !ok {
		return false
	}
	return s.cfg.WantsLanguage(backend.LanguageName())
}

// WantsPath is WantsFile for absolute paths under the scan root.
func (s *Scanner) WantsPath(abs string) bool {
	rel, err := filepath.Rel(s.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	return s.WantsFile(rel)
}

func (s *Scanner) skipDir(rel, name string) bool {
	if name == ".git" {
		return true
	}
	return s.excluded(rel)
}

func (s *Scanner) excluded(rel string) bool {
	rel = filepath.ToSlash(rel)
	if s.ignore != nil && s.ignore.MatchesPath(rel) {
		return true
	}
	for _, pattern := range s.cfg.Exclude {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
		// A bare directory pattern also covers everything inside it.
		if !strings.HasSuffix(pattern, "/**") {
			if matched, _ := doublestar.Match(pattern+"/**", rel); matched {
				return true
			}
		}
	}
	return false
}
