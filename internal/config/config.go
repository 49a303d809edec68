// Package config loads project-level settings from codegraph.yml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ProjectConfig holds settings loaded from codegraph.yml at a repository
// root. Zero values fall back to the defaults below.
type ProjectConfig struct {
	// RepoID overrides the repository identity used in node IDs; the
	// default is the repository root's base name.
	RepoID string `yaml:"repoId,omitempty"`

	// Languages restricts indexing to these language names. Empty means
	// every registered backend.
	Languages []string `yaml:"languages,omitempty"`

	// Exclude lists glob patterns (doublestar syntax) for paths to skip,
	// in addition to .gitignore rules.
	Exclude []string `yaml:"exclude,omitempty"`

	// Workers bounds the parse worker pool. Zero means the engine default.
	Workers int `yaml:"workers,omitempty"`

	// FileTimeout caps a single file's parse, e.g. "5s". Zero disables the
	// cap.
	FileTimeout time.Duration `yaml:"fileTimeout,omitempty"`

	// Debounce is the watcher coalescing window, e.g. "50ms". Zero means
	// the watcher default.
	Debounce time.Duration `yaml:"debounce,omitempty"`

	// FollowGitignore controls whether .gitignore rules are honored while
	// scanning. Defaults to true.
	FollowGitignore *bool `yaml:"followGitignore,omitempty"`
}

// WantsLanguage reports whether a backend language name passes the
// Languages allowlist.
func (c *ProjectConfig) WantsLanguage(name string) bool {
	if len(c.Languages) == 0 {
		return true
	}
	for _, l := range c.Languages {
		if l == name {
			return true
		}
	}
	return false
}

// Gitignore reports the effective FollowGitignore setting.
func (c *ProjectConfig) Gitignore() bool {
	return c.FollowGitignore == nil || *c.FollowGitignore
}

// Load reads codegraph.yml or codegraph.yaml from the given directory.
// A missing file yields a zero-value config, not an error; a present but
// malformed file is an error.
func Load(dir string) (*ProjectConfig, error) {
	for _, name := range []string{"codegraph.yml", "codegraph.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var cfg ProjectConfig
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return &cfg, nil
	}
	return &ProjectConfig{}, nil
}
