// Package config resolves process settings from the environment and project
// settings from <root>/.adi/config.toml or <root>/.adi/config.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/adi-family/llm-code-indexer-mcp/pkg/types"
)

const (
	// DataDir holds the index database and project config, relative to the root
	DataDir = ".adi"

	DefaultDBName      = "index.db"
	DefaultMaxFileSize = 1 << 20
	DefaultSearchLimit = 10
)

// DefaultExcludes are always skipped during discovery
var DefaultExcludes = []string{
	"**/.git/**",
	"**/.adi/**",
	"**/node_modules/**",
	"**/vendor/**",
	"**/target/**",
	"**/dist/**",
	"**/build/**",
	"**/__pycache__/**",
}

// Env holds settings read from ADI_* environment variables
type Env struct {
	LogLevel          string `env:"ADI_LOG_LEVEL" envDefault:"info"`
	DBPath            string `env:"ADI_DB_PATH"`
	EmbeddingProvider string `env:"ADI_EMBEDDING_PROVIDER"`
	EmbeddingModel    string `env:"ADI_EMBEDDING_MODEL"`
	EmbeddingBaseURL  string `env:"ADI_EMBEDDING_BASE_URL"`
	OpenAIKey         string `env:"OPENAI_API_KEY"`
	JinaKey           string `env:"JINA_API_KEY"`
	Workers           int    `env:"ADI_WORKERS" envDefault:"0"`
	Watch             bool   `env:"ADI_WATCH" envDefault:"false"`
}

// LoadEnv parses the process environment
func LoadEnv() (*Env, error) {
	cfg := &Env{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// LoadEnvFrom parses vars instead of the process environment
func LoadEnvFrom(vars map[string]string) (*Env, error) {
	cfg := &Env{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// IndexConfig controls file discovery
type IndexConfig struct {
	Include     []string `toml:"include" yaml:"include" json:"include"`
	Exclude     []string `toml:"exclude" yaml:"exclude" json:"exclude"`
	MaxFileSize int64    `toml:"max_file_size" yaml:"max_file_size" json:"max_file_size"`
	Languages   []string `toml:"languages" yaml:"languages" json:"languages,omitempty"`
}

// EmbeddingConfig selects the embedding provider. Keys never leave the
// process.
type EmbeddingConfig struct {
	Provider  string `toml:"provider" yaml:"provider" json:"provider"`
	Model     string `toml:"model" yaml:"model" json:"model"`
	BaseURL   string `toml:"base_url" yaml:"base_url" json:"base_url,omitempty"`
	OpenAIKey string `toml:"-" yaml:"-" json:"-"`
	JinaKey   string `toml:"-" yaml:"-" json:"-"`
}

// SearchConfig holds search defaults
type SearchConfig struct {
	DefaultLimit int `toml:"default_limit" yaml:"default_limit" json:"default_limit"`
}

// Project is the content of .adi/config.toml or .adi/config.yaml
type Project struct {
	Index     IndexConfig     `toml:"index" yaml:"index" json:"index"`
	Embedding EmbeddingConfig `toml:"embedding" yaml:"embedding" json:"embedding"`
	Search    SearchConfig    `toml:"search" yaml:"search" json:"search"`
}

// Config is the merged configuration for one project
type Config struct {
	ProjectPath string          `json:"project_path"`
	ProjectName string          `json:"project_name"`
	DBPath      string          `json:"db_path"`
	Watch       bool            `json:"watch"`
	Workers     int             `json:"workers"`
	Index       IndexConfig     `json:"index"`
	Embedding   EmbeddingConfig `json:"embedding"`
	Search      SearchConfig    `json:"search"`
	// Source is the project config file that was loaded, empty if none
	Source string `json:"config_file,omitempty"`
}

// Resolve merges defaults, the project config file under root and e.
// root must be absolute. e may be nil.
func Resolve(root string, e *Env) (*Config, error) {
	if e == nil {
		e = &Env{}
	}

	project, source, err := LoadProject(root)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ProjectPath: root,
		ProjectName: DetectProjectName(root),
		DBPath:      e.DBPath,
		Watch:       e.Watch,
		Workers:     e.Workers,
		Index:       project.Index,
		Embedding:   project.Embedding,
		Search:      project.Search,
		Source:      source,
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(root, DataDir, DefaultDBName)
	}
	if e.EmbeddingProvider != "" {
		cfg.Embedding.Provider = strings.ToLower(e.EmbeddingProvider)
	}
	if e.EmbeddingModel != "" {
		cfg.Embedding.Model = e.EmbeddingModel
	}
	if e.EmbeddingBaseURL != "" {
		cfg.Embedding.BaseURL = e.EmbeddingBaseURL
	}
	cfg.Embedding.OpenAIKey = e.OpenAIKey
	cfg.Embedding.JinaKey = e.JinaKey

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultProject returns project settings used when no config file exists
func DefaultProject() *Project {
	return &Project{
		Index: IndexConfig{
			Exclude:     append([]string(nil), DefaultExcludes...),
			MaxFileSize: DefaultMaxFileSize,
		},
		Search: SearchConfig{DefaultLimit: DefaultSearchLimit},
	}
}

// LoadProject reads the project config file under root. TOML wins over YAML
// when both exist. Excludes from the file are added to DefaultExcludes.
func LoadProject(root string) (*Project, string, error) {
	project := DefaultProject()

	candidates := []struct {
		name      string
		unmarshal func([]byte, any) error
	}{
		{"config.toml", toml.Unmarshal},
		{"config.yaml", yaml.Unmarshal},
		{"config.yml", yaml.Unmarshal},
	}

	for _, c := range candidates {
		path := filepath.Join(root, DataDir, c.name)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("failed to read %s: %w", path, err)
		}

		var file Project
		if err := c.unmarshal(data, &file); err != nil {
			return nil, "", fmt.Errorf("failed to parse %s: %w", path, err)
		}
		project.merge(&file)
		return project, path, nil
	}

	return project, "", nil
}

func (p *Project) merge(file *Project) {
	p.Index.Include = file.Index.Include
	p.Index.Exclude = append(p.Index.Exclude, file.Index.Exclude...)
	if file.Index.MaxFileSize > 0 {
		p.Index.MaxFileSize = file.Index.MaxFileSize
	}
	p.Index.Languages = file.Index.Languages
	if file.Embedding.Provider != "" {
		p.Embedding.Provider = strings.ToLower(file.Embedding.Provider)
	}
	if file.Embedding.Model != "" {
		p.Embedding.Model = file.Embedding.Model
	}
	if file.Embedding.BaseURL != "" {
		p.Embedding.BaseURL = file.Embedding.BaseURL
	}
	if file.Search.DefaultLimit > 0 {
		p.Search.DefaultLimit = file.Search.DefaultLimit
	}
}

// Validate checks glob syntax and language names
func (c *Config) Validate() error {
	for _, pattern := range append(append([]string(nil), c.Index.Include...), c.Index.Exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid glob pattern %q", pattern)
		}
	}
	for _, name := range c.Index.Languages {
		if !types.ParseLanguage(name).IsKnown() {
			return fmt.Errorf("unknown language %q", name)
		}
	}
	switch c.Embedding.Provider {
	case "", "local", "openai", "jina":
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	return nil
}

// Excluded reports whether rel, a slash separated path relative to the
// root, matches an exclude pattern. Patterns ending in /** also match the
// directory itself so walks can skip it.
func (c *IndexConfig) Excluded(rel string) bool {
	for _, pattern := range c.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		if dir, found := strings.CutSuffix(pattern, "/**"); found {
			if ok, _ := doublestar.Match(dir, rel); ok {
				return true
			}
		}
	}
	return false
}

// Included reports whether rel matches the include list. An empty list
// includes everything.
func (c *IndexConfig) Included(rel string) bool {
	if len(c.Include) == 0 {
		return true
	}
	for _, pattern := range c.Include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// AllowsLanguage reports whether lang is indexed
func (c *IndexConfig) AllowsLanguage(lang types.Language) bool {
	if !lang.IsKnown() {
		return false
	}
	if len(c.Languages) == 0 {
		return true
	}
	for _, name := range c.Languages {
		if types.ParseLanguage(name) == lang {
			return true
		}
	}
	return false
}
