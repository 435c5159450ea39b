// Package config loads and defaults the RPG encoder's configuration surface
// as described in spec.md §6. Configuration is a single YAML document,
// conventionally at <repo>/.please/config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pleaseai/soop-sub000/internal/logging"
)

// Config holds the full, resolved configuration for one encoder/session.
type Config struct {
	Discovery  DiscoveryConfig  `yaml:"discovery"`
	Semantic   SemanticConfig   `yaml:"semantic"`
	Cache      CacheConfig      `yaml:"cache"`
	Evolution  EvolutionConfig  `yaml:"evolution"`
	Search     SearchConfig     `yaml:"search"`
	Logging    LoggingConfig    `yaml:"logging"`
	Validation ValidationConfig `yaml:"validation"`
}

// DiscoveryConfig governs file discovery (spec.md §4.4, §6).
type DiscoveryConfig struct {
	Include           []string `yaml:"include"`
	Exclude           []string `yaml:"exclude"`
	MaxDepth          int      `yaml:"max_depth"`
	RespectGitignore  bool     `yaml:"respect_gitignore"`
	IncludeSource     bool     `yaml:"include_source"`
}

// SemanticConfig governs the Phase 2 LLM collaborator (spec.md §4.4, §6).
type SemanticConfig struct {
	UseLLM    bool   `yaml:"use_llm"`
	Provider  string `yaml:"provider"`
	MaxTokens int    `yaml:"max_tokens"`
}

// CacheConfig governs the semantic cache (spec.md §4.3, §6).
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled"`
	TTL      time.Duration `yaml:"ttl"`
	CacheDir string        `yaml:"cache_dir"`
}

// EvolutionConfig governs the evolution engine (spec.md §4.5, §6).
type EvolutionConfig struct {
	ForceRegenerateThreshold float64 `yaml:"force_regenerate_threshold"`
	DriftThreshold           float64 `yaml:"drift_threshold"`
	InteractiveDriftThreshold float64 `yaml:"interactive_drift_threshold"`
	UseLLM                   bool    `yaml:"use_llm"`
	IncludeSource            bool    `yaml:"include_source"`
}

// SearchConfig governs hybrid search fusion weights (spec.md §4.1, §6).
type SearchConfig struct {
	VectorWeight float64 `yaml:"vector_weight"`
	RRFConstant  int     `yaml:"rrf_constant"`
}

// LoggingConfig mirrors internal/logging's inputs.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
	Categories map[string]bool `yaml:"categories"`
}

// ValidationConfig holds the validation.strict setting. No code reads it:
// the encoder does not run the Datalog invariant analyzer
// (internal/analyze) after an encode.
type ValidationConfig struct {
	Strict bool `yaml:"strict"`
}

// Default returns the configuration literal from spec.md §6.
func Default() *Config {
	return &Config{
		Discovery: DiscoveryConfig{
			Include:          []string{"**/*.go", "**/*.py", "**/*.ts", "**/*.tsx", "**/*.js", "**/*.jsx", "**/*.rs", "**/*.java"},
			Exclude:          []string{"**/vendor/**", "**/node_modules/**", "**/.git/**", "**/dist/**", "**/build/**"},
			MaxDepth:         10,
			RespectGitignore: true,
			IncludeSource:    false,
		},
		Semantic: SemanticConfig{
			UseLLM:    hasAnyProviderKey(),
			Provider:  defaultProvider(),
			MaxTokens: 1024,
		},
		Cache: CacheConfig{
			Enabled:  true,
			TTL:      7 * 24 * time.Hour,
			CacheDir: filepath.Join(".please", "cache"),
		},
		Evolution: EvolutionConfig{
			ForceRegenerateThreshold:  0.5,
			DriftThreshold:            0.3,
			InteractiveDriftThreshold: 0.5,
		},
		Search: SearchConfig{
			VectorWeight: 0.7,
			RRFConstant:  60,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// hasAnyProviderKey mirrors spec.md §6's "true if any provider key is
// present in environment" default for semantic.use_llm.
func hasAnyProviderKey() bool {
	for _, env := range []string{"GEMINI_API_KEY", "GENAI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY"} {
		if os.Getenv(env) != "" {
			return true
		}
	}
	return false
}

func defaultProvider() string {
	switch {
	case os.Getenv("GEMINI_API_KEY") != "" || os.Getenv("GENAI_API_KEY") != "":
		return "gemini"
	case os.Getenv("ANTHROPIC_API_KEY") != "":
		return "anthropic"
	case os.Getenv("OPENAI_API_KEY") != "":
		return "openai"
	default:
		return ""
	}
}

// Load reads configuration from a YAML file, falling back to Default()
// fields for anything the file omits. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	logging.Get(logging.CategoryConfig).Debug("loading config from %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Get(logging.CategoryConfig).Info("config file not found, using defaults: %s", path)
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	logging.Get(logging.CategoryConfig).Info("config loaded: llm=%v provider=%s cache_dir=%s", cfg.Semantic.UseLLM, cfg.Semantic.Provider, cfg.Cache.CacheDir)
	return cfg, nil
}

// Save writes the configuration back to path as YAML, creating parent
// directories as needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// ResolveCacheDir returns the absolute cache directory for a repository root.
func (c *Config) ResolveCacheDir(repoRoot string) string {
	if filepath.IsAbs(c.Cache.CacheDir) {
		return c.Cache.CacheDir
	}
	return filepath.Join(repoRoot, c.Cache.CacheDir)
}
