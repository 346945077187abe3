package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port        int              `json:"port"`
	JWTSecret   string           `json:"jwt_secret"`
	JWTTTLHours int              `json:"jwt_ttl_hours"`
	CORSOrigins []string         `json:"cors_origins"`
	LogConfig   logger.LogConfig `json:"log_config"`
	Database    DatabaseConfig   `json:"database"`
	AI          AIConfig         `json:"ai"`
	Chunking    ChunkingConfig   `json:"chunking"`
	Search      SearchConfig     `json:"search"`
	Cache       CacheConfig      `json:"cache"`
	Jobs        JobsConfig       `json:"jobs"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type AIConfig struct {
	Provider         string      `json:"provider"`
	Model            string      `json:"model"`
	Data             interface{} `json:"data"`
	TimeoutSeconds   int         `json:"timeout_seconds"`
	EmbedConcurrency int         `json:"embed_concurrency"`
}

type ChunkingConfig struct {
	MinTokens int `json:"min_tokens"`
	MaxTokens int `json:"max_tokens"`
}

type SearchConfig struct {
	DefaultK     int     `json:"default_k"`
	MaxK         int     `json:"max_k"`
	DefaultAlpha float64 `json:"default_alpha"`
}

type CacheConfig struct {
	LRUSize       int `json:"lru_size"`
	LRUTTLMinutes int `json:"lru_ttl_minutes"`
	RetentionDays int `json:"retention_days"`
}

type JobsConfig struct {
	EmbeddingRetrySpec string `json:"embedding_retry_spec"`
	CacheCleanupSpec   string `json:"cache_cleanup_spec"`
	RetryBatchSize     int    `json:"retry_batch_size"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.AI.Model == "" {
		return nil, fmt.Errorf("ai.model is required")
	}
	applyDefaults(&cfg)
	if cfg.Search.DefaultAlpha < 0 || cfg.Search.DefaultAlpha > 1 {
		return nil, fmt.Errorf("search.default_alpha must be in [0,1]")
	}
	if cfg.Chunking.MinTokens > cfg.Chunking.MaxTokens {
		return nil, fmt.Errorf("chunking.min_tokens must not exceed max_tokens")
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.AI.TimeoutSeconds <= 0 {
		cfg.AI.TimeoutSeconds = 30
	}
	if cfg.AI.EmbedConcurrency <= 0 {
		cfg.AI.EmbedConcurrency = 4
	}
	if cfg.Chunking.MinTokens <= 0 {
		cfg.Chunking.MinTokens = 800
	}
	if cfg.Chunking.MaxTokens <= 0 {
		cfg.Chunking.MaxTokens = 1200
	}
	if cfg.Search.DefaultK <= 0 {
		cfg.Search.DefaultK = 10
	}
	if cfg.Search.MaxK <= 0 {
		cfg.Search.MaxK = 100
	}
	if cfg.Search.DefaultAlpha == 0 {
		cfg.Search.DefaultAlpha = 0.6
	}
	if cfg.Cache.LRUSize <= 0 {
		cfg.Cache.LRUSize = 10000
	}
	if cfg.Cache.LRUTTLMinutes <= 0 {
		cfg.Cache.LRUTTLMinutes = 120
	}
	if cfg.Cache.RetentionDays <= 0 {
		cfg.Cache.RetentionDays = 90
	}
	if cfg.Jobs.EmbeddingRetrySpec == "" {
		cfg.Jobs.EmbeddingRetrySpec = "*/5 * * * *"
	}
	if cfg.Jobs.CacheCleanupSpec == "" {
		cfg.Jobs.CacheCleanupSpec = "0 4 * * *"
	}
	if cfg.Jobs.RetryBatchSize <= 0 {
		cfg.Jobs.RetryBatchSize = 200
	}
}
