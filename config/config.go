// Package config loads the application configuration from YAML with
// defaults for every field, so a missing file still yields a runnable
// local setup.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kaiteki-lab/kotae/ai"
)

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	APIKey      string `yaml:"api_key"`
	AdminAPIKey string `yaml:"admin_api_key"`
}

// StorageConfig configures the badger-backed store.
type StorageConfig struct {
	Path            string `yaml:"path"`
	MaxRowsPerShard int    `yaml:"max_rows_per_shard"`
}

// AIConfig configures the model API clients.
type AIConfig struct {
	Host            string `yaml:"host"`
	EmbeddingModel  string `yaml:"embedding_model"`
	GenerationModel string `yaml:"generation_model"`
	TimeoutSecs     int    `yaml:"timeout_secs"`
}

// SearchConfig configures retrieval defaults.
type SearchConfig struct {
	DefaultLimit   int     `yaml:"default_limit"`
	SemanticWeight float64 `yaml:"semantic_weight"`
	KeywordWeight  float64 `yaml:"keyword_weight"`
}

// IngestConfig configures the ingestion pipeline.
type IngestConfig struct {
	ChunkSize       int     `yaml:"chunk_size"`
	ChunkOverlap    int     `yaml:"chunk_overlap"`
	PoolSize        int     `yaml:"pool_size"`
	EmbedRatePerSec float64 `yaml:"embed_rate_per_sec"`
}

// Config is the root application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	AI      AIConfig      `yaml:"ai"`
	Search  SearchConfig  `yaml:"search"`
	Ingest  IngestConfig  `yaml:"ingest"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Storage: StorageConfig{
			Path:            "data/kotae",
			MaxRowsPerShard: 5000,
		},
		AI: AIConfig{
			Host:            "http://localhost:11434/v1",
			EmbeddingModel:  "embeddinggemma",
			GenerationModel: "qwen2.5:3b",
			TimeoutSecs:     30,
		},
		Search: SearchConfig{
			DefaultLimit:   10,
			SemanticWeight: 0.7,
			KeywordWeight:  0.3,
		},
		Ingest: IngestConfig{
			ChunkSize:       800,
			ChunkOverlap:    100,
			EmbedRatePerSec: 5,
		},
	}
}

// Load reads a config file. A missing file returns the defaults; a present
// but malformed file is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults restores defaults for fields the file zeroed or omitted.
func (c *Config) applyDefaults() {
	d := Default()
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Storage.Path == "" {
		c.Storage.Path = d.Storage.Path
	}
	if c.Storage.MaxRowsPerShard <= 0 {
		c.Storage.MaxRowsPerShard = d.Storage.MaxRowsPerShard
	}
	if c.AI.Host == "" {
		c.AI.Host = d.AI.Host
	}
	if c.AI.EmbeddingModel == "" {
		c.AI.EmbeddingModel = d.AI.EmbeddingModel
	}
	if c.AI.GenerationModel == "" {
		c.AI.GenerationModel = d.AI.GenerationModel
	}
	if c.AI.TimeoutSecs <= 0 {
		c.AI.TimeoutSecs = d.AI.TimeoutSecs
	}
	if c.Search.DefaultLimit <= 0 {
		c.Search.DefaultLimit = d.Search.DefaultLimit
	}
	if c.Search.SemanticWeight <= 0 && c.Search.KeywordWeight <= 0 {
		c.Search.SemanticWeight = d.Search.SemanticWeight
		c.Search.KeywordWeight = d.Search.KeywordWeight
	}
	if c.Ingest.ChunkSize <= 0 {
		c.Ingest.ChunkSize = d.Ingest.ChunkSize
	}
	if c.Ingest.ChunkOverlap < 0 {
		c.Ingest.ChunkOverlap = d.Ingest.ChunkOverlap
	}
	if c.Ingest.EmbedRatePerSec <= 0 {
		c.Ingest.EmbedRatePerSec = d.Ingest.EmbedRatePerSec
	}
}

// AIClientConfig converts the file config into the model client config.
func (c *Config) AIClientConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithHost(c.AI.Host),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithGenerationModel(c.AI.GenerationModel),
		ai.WithTimeout(time.Duration(c.AI.TimeoutSecs)*time.Second),
	)
}
