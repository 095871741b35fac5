package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables that override file settings.
// FINRAG_RETRIEVE_TOP_K maps to retrieve.top_k.
const EnvPrefix = "FINRAG_"

// Config holds all configuration for finrag.
type Config struct {
	Data      DataConfig      `yaml:"data"`
	Cache     CacheConfig     `yaml:"cache"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Seed      SeedConfig      `yaml:"seed"`
}

// DataConfig locates the source files. Relative paths resolve against the root directory.
type DataConfig struct {
	Dir         string `yaml:"dir"`
	NewsFile    string `yaml:"news_file"`
	StocksFile  string `yaml:"stocks_file"`
	ReportsFile string `yaml:"reports_file"`
}

// CacheConfig locates the persisted index artifacts.
type CacheConfig struct {
	Dir          string `yaml:"dir"`
	IndexFile    string `yaml:"index_file"`
	MetadataFile string `yaml:"metadata_file"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider       string        `yaml:"provider"` // "hash", "openai", "deepseek", "jina", "ollama"
	Model          string        `yaml:"model"`
	APIKeyEnv      string        `yaml:"api_key_env"`
	BaseURL        string        `yaml:"base_url"`
	Dimension      int           `yaml:"dimension"` // 0 uses the model's known dimension
	BatchSize      int           `yaml:"batch_size"`
	QueryCacheSize int           `yaml:"query_cache_size"` // 0 disables the query embedding cache
	Timeout        time.Duration `yaml:"timeout"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK           int     `yaml:"top_k"`
	RelevanceRatio float64 `yaml:"relevance_ratio"` // keep results scoring at least ratio*best
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "console"
}

// SeedConfig controls the synthetic data generator.
type SeedConfig struct {
	RandomSeed int64 `yaml:"random_seed"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			Dir:         "data",
			NewsFile:    "news.csv",
			StocksFile:  "stocks.csv",
			ReportsFile: "reports.json",
		},
		Cache: CacheConfig{
			Dir:          filepath.Join("data", "cache"),
			IndexFile:    "rag.index",
			MetadataFile: "rag_metadata.json",
		},
		Embedding: EmbeddingConfig{
			Provider:  "hash",
			Model:     "hashing-trigram-v1",
			APIKeyEnv: "OPENAI_API_KEY",
			BatchSize: 16,
			Timeout:   60 * time.Second,
		},
		Retrieve: RetrieveConfig{
			TopK:           4,
			RelevanceRatio: 0.6,
		},
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8000,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Seed: SeedConfig{
			RandomSeed: 42,
		},
	}
}

// Load loads configuration from a YAML file, then applies FINRAG_* environment overrides.
// A missing file yields the defaults (plus overrides).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := k.Load(rawbytes.Provider(data), kyaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := DefaultConfig()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// envKey maps FINRAG_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// LoadFromDir loads configuration from a directory (looks for finrag.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "finrag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".finrag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	// No file: defaults, still subject to environment overrides.
	return Load(filepath.Join(dir, "finrag.yaml"))
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.Retrieve.TopK <= 0 {
		return fmt.Errorf("retrieve.top_k must be positive, got %d", c.Retrieve.TopK)
	}
	if c.Retrieve.RelevanceRatio <= 0 || c.Retrieve.RelevanceRatio > 1 {
		return fmt.Errorf("retrieve.relevance_ratio must be in (0, 1], got %g", c.Retrieve.RelevanceRatio)
	}
	if c.Embedding.Dimension < 0 {
		return fmt.Errorf("embedding.dimension must not be negative, got %d", c.Embedding.Dimension)
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("embedding.batch_size must be positive, got %d", c.Embedding.BatchSize)
	}
	switch c.Embedding.Provider {
	case "hash", "openai", "deepseek", "jina", "ollama":
	default:
		return fmt.Errorf("unsupported embedding provider: %s", c.Embedding.Provider)
	}
	return nil
}

// SourcePaths returns the news, stocks and reports paths under root, in fingerprint order.
func (c *Config) SourcePaths(root string) (news, stocks, reports string) {
	dir := resolve(root, c.Data.Dir)
	return filepath.Join(dir, c.Data.NewsFile),
		filepath.Join(dir, c.Data.StocksFile),
		filepath.Join(dir, c.Data.ReportsFile)
}

// CacheDir returns the directory holding the index artifacts.
func (c *Config) CacheDir(root string) string {
	return resolve(root, c.Cache.Dir)
}

// EnsureCacheDir ensures the cache directory exists.
func (c *Config) EnsureCacheDir(root string) error {
	return os.MkdirAll(c.CacheDir(root), 0755)
}

func resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}
