// Package config loads and validates the docrag configuration. Values
// merge in precedence order: defaults, then the YAML file, then
// DOCRAG_* environment variables. The loaded Config is treated as
// immutable; components receive the values they need at construction.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vibhup/docrag/internal/errors"
)

// DefaultConfigFile is the per-project configuration file name.
const DefaultConfigFile = "docrag.yaml"

// Duration wraps time.Duration so YAML values read and write in the
// human form ("30s", "2m") rather than integer nanoseconds.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the complete docrag configuration.
type Config struct {
	Chunking  ChunkingConfig  `yaml:"chunking" json:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding" json:"embedding"`
	Vector    VectorConfig    `yaml:"vector" json:"vector"`
	Synthesis SynthesisConfig `yaml:"synthesis" json:"synthesis"`
	Query     QueryConfig     `yaml:"query" json:"query"`
	Indexing  IndexingConfig  `yaml:"indexing" json:"indexing"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// ChunkingConfig tunes the document chunker.
type ChunkingConfig struct {
	MaxTokens      int `yaml:"max_tokens" json:"max_tokens"`
	OverlapTokens  int `yaml:"overlap_tokens" json:"overlap_tokens"`
	MinChunkTokens int `yaml:"min_chunk_tokens" json:"min_chunk_tokens"`
}

// EmbeddingConfig configures the embedding model client.
type EmbeddingConfig struct {
	Endpoint   string   `yaml:"endpoint" json:"endpoint"`
	Model      string   `yaml:"model" json:"model"`
	Dimensions int      `yaml:"dimensions" json:"dimensions"`
	Normalize  bool     `yaml:"normalize" json:"normalize"`
	APIKey     string   `yaml:"api_key" json:"-"`
	Timeout    Duration `yaml:"timeout" json:"timeout"`
	CacheSize  int      `yaml:"cache_size" json:"cache_size"`
}

// VectorConfig selects and configures the vector index backend.
type VectorConfig struct {
	// Backend is "local" (on-disk index) or "remote" (vector bucket API).
	Backend string `yaml:"backend" json:"backend"`

	// Remote backend settings.
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	Bucket    string `yaml:"bucket" json:"bucket"`
	IndexName string `yaml:"index_name" json:"index_name"`
	APIKey    string `yaml:"api_key" json:"-"`

	// Local backend settings.
	Dir string `yaml:"dir" json:"dir"`
}

// SynthesisConfig configures the answer generation client.
type SynthesisConfig struct {
	Endpoint    string   `yaml:"endpoint" json:"endpoint"`
	Model       string   `yaml:"model" json:"model"`
	MaxTokens   int      `yaml:"max_tokens" json:"max_tokens"`
	Temperature float64  `yaml:"temperature" json:"temperature"`
	APIKey      string   `yaml:"api_key" json:"-"`
	Timeout     Duration `yaml:"timeout" json:"timeout"`
}

// QueryConfig tunes retrieval.
type QueryConfig struct {
	TopK             int `yaml:"top_k" json:"top_k"`
	MaxContextTokens int `yaml:"max_context_tokens" json:"max_context_tokens"`
}

// IndexingConfig tunes batch indexing.
type IndexingConfig struct {
	DocsDir     string `yaml:"docs_dir" json:"docs_dir"`
	ChunksDir   string `yaml:"chunks_dir" json:"chunks_dir"`
	Concurrency int    `yaml:"concurrency" json:"concurrency"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	FilePath string `yaml:"file" json:"file"`
}

// NewConfig returns the default configuration.
func NewConfig() *Config {
	return &Config{
		Chunking: ChunkingConfig{
			MaxTokens:      6000,
			OverlapTokens:  200,
			MinChunkTokens: 100,
		},
		Embedding: EmbeddingConfig{
			Model:      "amazon.titan-embed-text-v2:0",
			Dimensions: 1024,
			Normalize:  true,
			Timeout:    Duration(30 * time.Second),
			CacheSize:  1000,
		},
		Vector: VectorConfig{
			Backend: "local",
			Dir:     defaultIndexDir(),
		},
		Synthesis: SynthesisConfig{
			Model:       "anthropic.claude-3-5-sonnet-20240620-v1:0",
			MaxTokens:   4000,
			Temperature: 0.1,
			Timeout:     Duration(120 * time.Second),
		},
		Query: QueryConfig{
			TopK:             5,
			MaxContextTokens: 8000,
		},
		Indexing: IndexingConfig{
			DocsDir:     "docs",
			Concurrency: 4,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func defaultIndexDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "docrag", "index")
	}
	return filepath.Join(home, ".docrag", "index")
}

// Load reads configuration from path, merged over defaults and under
// environment overrides. An empty path looks for DefaultConfigFile in
// the working directory; a missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	explicit := path != ""
	if path == "" {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.New(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("failed to parse %s", path), err)
		}
	case os.IsNotExist(err) && !explicit:
		// Defaults only.
	case os.IsNotExist(err):
		return nil, errors.New(errors.ErrCodeConfigNotFound,
			fmt.Sprintf("config file %s not found", path), err)
	default:
		return nil, errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("failed to read %s", path), err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies DOCRAG_* environment variables, the highest
// precedence layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DOCRAG_EMBEDDING_ENDPOINT"); v != "" {
		c.Embedding.Endpoint = v
	}
	if v := os.Getenv("DOCRAG_EMBEDDING_MODEL"); v != "" {
		c.Embedding.Model = v
	}
	if v := os.Getenv("DOCRAG_EMBEDDING_API_KEY"); v != "" {
		c.Embedding.APIKey = v
	}
	if v := os.Getenv("DOCRAG_VECTOR_BACKEND"); v != "" {
		c.Vector.Backend = v
	}
	if v := os.Getenv("DOCRAG_VECTOR_ENDPOINT"); v != "" {
		c.Vector.Endpoint = v
	}
	if v := os.Getenv("DOCRAG_VECTOR_BUCKET"); v != "" {
		c.Vector.Bucket = v
	}
	if v := os.Getenv("DOCRAG_VECTOR_INDEX"); v != "" {
		c.Vector.IndexName = v
	}
	if v := os.Getenv("DOCRAG_VECTOR_API_KEY"); v != "" {
		c.Vector.APIKey = v
	}
	if v := os.Getenv("DOCRAG_VECTOR_DIR"); v != "" {
		c.Vector.Dir = v
	}
	if v := os.Getenv("DOCRAG_SYNTHESIS_ENDPOINT"); v != "" {
		c.Synthesis.Endpoint = v
	}
	if v := os.Getenv("DOCRAG_SYNTHESIS_MODEL"); v != "" {
		c.Synthesis.Model = v
	}
	if v := os.Getenv("DOCRAG_SYNTHESIS_API_KEY"); v != "" {
		c.Synthesis.APIKey = v
	}
	if v := os.Getenv("DOCRAG_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			c.Query.TopK = k
		}
	}
	if v := os.Getenv("DOCRAG_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks invariants the rest of the system relies on.
func (c *Config) Validate() error {
	if c.Chunking.MaxTokens <= 0 {
		return errors.ConfigError("chunking.max_tokens must be positive", nil)
	}
	if c.Chunking.OverlapTokens < 0 || c.Chunking.OverlapTokens >= c.Chunking.MaxTokens {
		return errors.ConfigError("chunking.overlap_tokens must be non-negative and below max_tokens", nil)
	}
	if c.Chunking.MinChunkTokens < 0 || c.Chunking.MinChunkTokens > c.Chunking.MaxTokens {
		return errors.ConfigError("chunking.min_chunk_tokens must be between 0 and max_tokens", nil)
	}
	if c.Embedding.Dimensions <= 0 {
		return errors.ConfigError("embedding.dimensions must be positive", nil)
	}

	switch c.Vector.Backend {
	case "local":
		if c.Vector.Dir == "" {
			return errors.ConfigError("vector.dir is required for the local backend", nil)
		}
	case "remote":
		if c.Vector.Endpoint == "" || c.Vector.Bucket == "" || c.Vector.IndexName == "" {
			return errors.ConfigError("vector.endpoint, vector.bucket and vector.index_name are required for the remote backend", nil)
		}
	default:
		return errors.ConfigError(fmt.Sprintf("unknown vector backend %q", c.Vector.Backend), nil)
	}

	if c.Query.TopK <= 0 {
		return errors.ConfigError("query.top_k must be positive", nil)
	}
	if c.Synthesis.Temperature < 0 || c.Synthesis.Temperature > 1 {
		return errors.ConfigError("synthesis.temperature must be between 0 and 1", nil)
	}
	return nil
}

// WriteYAML writes the configuration to path, for scaffolding a starter
// config file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.ConfigError("failed to marshal config", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.New(errors.ErrCodeRecordWrite, "failed to write config file", err)
	}
	return nil
}
