// Package config loads adscribe configuration from .adscribe/config.yaml
// with environment-variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all adscribe configuration.
type Config struct {
	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Guideline corpus configuration
	Corpus CorpusConfig `yaml:"corpus"`

	// Pipeline configuration
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Scoring thresholds
	Scoring ScoringConfig `yaml:"scoring"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the generation provider.
type LLMConfig struct {
	Provider        string  `yaml:"provider"` // chat, gemini
	APIKey          string  `yaml:"api_key"`
	Model           string  `yaml:"model"`
	BaseURL         string  `yaml:"base_url"`
	Timeout         string  `yaml:"timeout"`
	Temperature     float64 `yaml:"temperature"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
}

// ParseTimeout returns the configured timeout or a default.
func (l LLMConfig) ParseTimeout() time.Duration {
	if l.Timeout == "" {
		return 120 * time.Second
	}
	d, err := time.ParseDuration(l.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// CorpusConfig configures the guideline corpus source.
type CorpusConfig struct {
	// Path to the YAML corpus directory
	Path string `yaml:"path"`

	// DatabasePath points at a compiled SQLite corpus store; when set it
	// takes precedence over Path at startup.
	DatabasePath string `yaml:"database_path"`

	// Watch enables automatic cache invalidation when the YAML
	// directory changes.
	Watch bool `yaml:"watch"`
}

// PipelineConfig configures the generate-score-retry loop.
type PipelineConfig struct {
	MinScore            int  `yaml:"min_score"`
	MaxAttempts         int  `yaml:"max_attempts"`
	FloorScore          int  `yaml:"floor_score"`
	HardMaxLength       int  `yaml:"hard_max_length"`
	ClearFinalText      bool `yaml:"clear_final_text"`
	AbortOnStageFailure bool `yaml:"abort_on_stage_failure"`
}

// ScoringConfig configures the quality scorer.
type ScoringConfig struct {
	MaxLength        int      `yaml:"max_length"`
	MinLength        int      `yaml:"min_length"`
	LengthTolerance  float64  `yaml:"length_tolerance"`
	TermWindow       int      `yaml:"term_window"`
	TermMinCount     int      `yaml:"term_min_count"`
	TermMaxCount     int      `yaml:"term_max_count"`
	AllowedFigures   []string `yaml:"allowed_figures"`
	DensityThreshold int      `yaml:"density_threshold"`
	PassThreshold    int      `yaml:"pass_threshold"`
}

// LoggingConfig configures categorized file logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:        "chat",
			Temperature:     0.7,
			MaxOutputTokens: 4096,
			Timeout:         "120s",
		},
		Corpus: CorpusConfig{
			Path: "guidelines",
		},
		Pipeline: PipelineConfig{
			MinScore:       70,
			MaxAttempts:    3,
			FloorScore:     30,
			ClearFinalText: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the default config path under a workspace.
func DefaultPath(workspace string) string {
	return filepath.Join(workspace, ".adscribe", "config.yaml")
}

// Load reads config from path, falling back to defaults for a missing
// file, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets environment variables win over file values for
// secrets and provider selection.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ADSCRIBE_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("ADSCRIBE_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("ADSCRIBE_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case "gemini":
			c.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		default:
			c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
}

// Validate rejects configurations that would make the pipeline
// misbehave. These are programming/deployment mistakes and fail fast.
func (c *Config) Validate() error {
	if c.Pipeline.MinScore < 0 || c.Pipeline.MinScore > 100 {
		return fmt.Errorf("pipeline.min_score must be in [0,100], got %d", c.Pipeline.MinScore)
	}
	if c.Pipeline.MaxAttempts < 1 {
		return fmt.Errorf("pipeline.max_attempts must be at least 1, got %d", c.Pipeline.MaxAttempts)
	}
	if c.Pipeline.FloorScore < 0 || c.Pipeline.FloorScore > 100 {
		return fmt.Errorf("pipeline.floor_score must be in [0,100], got %d", c.Pipeline.FloorScore)
	}
	return nil
}
