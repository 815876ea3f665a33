// Package config loads and saves the .locasset.yaml project configuration.
//
// The file lives in the project root and declares where assets are
// stored, which languages new assets start with, and how the
// translation provider is reached. Every field has a default, so a
// missing file yields a usable configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/minios-linux/locasset/langmeta"
)

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// ProjectFile is the top-level .locasset.yaml structure.
type ProjectFile struct {
	// SourceLang is the default locale of newly created assets (default "en").
	SourceLang string `yaml:"source_lang,omitempty"`
	// Languages are the extra locales new assets are created with.
	Languages []string `yaml:"languages,omitempty"`
	// Store selects the persistence backend.
	Store StoreConfig `yaml:"store,omitempty"`
	// Translate configures the machine translation pass.
	Translate TranslateConfig `yaml:"translate,omitempty"`

	root string
}

// StoreConfig selects and locates the asset store.
type StoreConfig struct {
	// Backend: "yaml" (default) or "sqlite".
	Backend string `yaml:"backend,omitempty"`
	// Dir is the asset directory for the yaml backend (default "assets").
	Dir string `yaml:"dir,omitempty"`
	// Path is the database file for the sqlite backend (default "locasset.db").
	Path string `yaml:"path,omitempty"`
}

// TranslateConfig configures the translation provider and engine.
type TranslateConfig struct {
	Provider string `yaml:"provider,omitempty"`
	Model    string `yaml:"model,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"`
	Proxy    string `yaml:"proxy,omitempty"`
	// MaxConcurrent bounds parallel requests (default 3).
	MaxConcurrent int `yaml:"max_concurrent,omitempty"`
	// RequestTimeout bounds one request, e.g. "90s". Empty or "0" means the
	// engine waits for the provider indefinitely.
	RequestTimeout Duration `yaml:"request_timeout,omitempty"`
	// MaxRetries on 429/5xx (default 3).
	MaxRetries int `yaml:"max_retries,omitempty"`
	// Prompt overrides the system prompt.
	Prompt string `yaml:"prompt,omitempty"`
}

// Store backends.
const (
	BackendYAML   = "yaml"
	BackendSQLite = "sqlite"
)

// Duration is a time.Duration written as "90s" in YAML.
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", node.Line, s, err)
	}
	if parsed < 0 {
		return fmt.Errorf("line %d: negative duration %q", node.Line, s)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// FileName is the default config file name.
const FileName = ".locasset.yaml"

// Default returns the configuration used when no file exists.
func Default(rootDir string) *ProjectFile {
	pf := &ProjectFile{root: rootDir}
	pf.applyDefaults()
	return pf
}

// Load loads and validates .locasset.yaml from rootDir. A missing file
// yields Default(rootDir).
func Load(rootDir string) (*ProjectFile, error) {
	path := filepath.Join(rootDir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(rootDir), nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var pf ProjectFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	pf.root = rootDir
	pf.applyDefaults()
	if err := pf.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &pf, nil
}

func (pf *ProjectFile) applyDefaults() {
	if pf.SourceLang == "" {
		pf.SourceLang = "en"
	}
	if pf.Store.Backend == "" {
		pf.Store.Backend = BackendYAML
	}
	if pf.Store.Dir == "" {
		pf.Store.Dir = "assets"
	}
	if pf.Store.Path == "" {
		pf.Store.Path = "locasset.db"
	}
	if pf.Translate.Provider == "" {
		pf.Translate.Provider = "google"
	}
	if pf.Translate.MaxConcurrent <= 0 {
		pf.Translate.MaxConcurrent = 3
	}
	if pf.Translate.MaxRetries <= 0 {
		pf.Translate.MaxRetries = 3
	}
}

func (pf *ProjectFile) validate() error {
	switch pf.Store.Backend {
	case BackendYAML, BackendSQLite:
	default:
		return fmt.Errorf("unknown store backend %q (valid: yaml, sqlite)", pf.Store.Backend)
	}

	if !langmeta.Known(pf.SourceLang) {
		return fmt.Errorf("unknown source_lang %q", pf.SourceLang)
	}
	pf.SourceLang = langmeta.Resolve(pf.SourceLang).Code

	seen := map[string]bool{pf.SourceLang: true}
	langs := pf.Languages[:0]
	for _, l := range pf.Languages {
		if !langmeta.Known(l) {
			return fmt.Errorf("unknown language %q", l)
		}
		code := langmeta.Resolve(l).Code
		if seen[code] {
			continue
		}
		seen[code] = true
		langs = append(langs, code)
	}
	pf.Languages = langs
	return nil
}

// Root returns the project root directory.
func (pf *ProjectFile) Root() string { return pf.root }

// InitialLanguages returns the locales a new asset is created with,
// source language first.
func (pf *ProjectFile) InitialLanguages() []string {
	return append([]string{pf.SourceLang}, pf.Languages...)
}

// AbsStoreDir returns the absolute asset directory (yaml backend).
func (pf *ProjectFile) AbsStoreDir() string {
	return pf.abs(pf.Store.Dir)
}

// AbsStorePath returns the absolute database path (sqlite backend).
func (pf *ProjectFile) AbsStorePath() string {
	return pf.abs(pf.Store.Path)
}

func (pf *ProjectFile) abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(pf.root, p)
}

// Save writes the configuration to rootDir/.locasset.yaml.
func (pf *ProjectFile) Save() error {
	data, err := yaml.Marshal(pf)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	path := filepath.Join(pf.root, FileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
