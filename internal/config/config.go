package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xxxsen/common/logger"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port         int                `json:"port"`
	LogConfig    logger.LogConfig   `json:"log_config"`
	Database     DatabaseConfig     `json:"database"`
	ContentStore ContentStoreConfig `json:"content_store"`
	Analysis     AnalysisConfig     `json:"analysis"`
	JobStore     JobStoreConfig     `json:"job_store"`
	RateLimit    RateLimitConfig    `json:"rate_limit"`
}

type DatabaseConfig struct {
	Driver   string `json:"driver"`
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type ContentStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type AnalysisConfig struct {
	FileServiceURL string  `json:"file_service_url"`
	Workers        int     `json:"workers"`
	QueueSize      int     `json:"queue_size"`
	FetchTimeout   int64   `json:"fetch_timeout_ms"`
	MaxAttempts    int     `json:"max_attempts"`
	RetryDelay     int64   `json:"retry_delay_ms"`
	RateLimit      float64 `json:"rate_limit"`
	CacheSize      int     `json:"cache_size"`
	CacheTTL       int64   `json:"cache_ttl_seconds"`
	MaxUploadBytes int64   `json:"max_upload_bytes"`
}

type JobStoreConfig struct {
	Type           string `json:"type"`
	RedisURL       string `json:"redis_url"`
	RetentionHours int    `json:"retention_hours"`
	CleanupSpec    string `json:"cleanup_spec"`
}

// RateLimitConfig throttles the upload and analyze endpoints per client.
// Zero RequestsPerSecond disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second"`
	Burst             int     `json:"burst"`
}

func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := decodeYAML(content, &cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	default:
		if err := json.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// decodeYAML routes YAML through the json tags so both formats share one
// set of field names.
func decodeYAML(content []byte, dst *Config) error {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return err
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

func (cfg *Config) normalize() error {
	if cfg.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.DSN == "" && cfg.Database.Host == "" {
			return fmt.Errorf("database.dsn or database.host is required for postgres")
		}
		if cfg.Database.Port == 0 {
			cfg.Database.Port = 5432
		}
	case "sqlite":
		if cfg.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for sqlite")
		}
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite")
	}
	if cfg.ContentStore.Type == "" {
		cfg.ContentStore.Type = "local"
	}
	switch cfg.ContentStore.Type {
	case "local", "s3":
	default:
		return fmt.Errorf("content_store.type must be local or s3")
	}
	if cfg.ContentStore.Data == nil {
		return fmt.Errorf("content_store.data is required")
	}
	a := &cfg.Analysis
	if a.FileServiceURL == "" {
		a.FileServiceURL = fmt.Sprintf("http://127.0.0.1:%d/api/v1", cfg.Port)
	}
	if a.Workers <= 0 {
		a.Workers = 4
	}
	if a.QueueSize <= 0 {
		a.QueueSize = 1024
	}
	if a.FetchTimeout <= 0 {
		a.FetchTimeout = 10000
	}
	if a.MaxAttempts <= 0 {
		a.MaxAttempts = 4
	}
	if a.RetryDelay <= 0 {
		a.RetryDelay = 5000
	}
	if a.CacheSize <= 0 {
		a.CacheSize = 4096
	}
	if a.CacheTTL <= 0 {
		a.CacheTTL = 3600
	}
	if a.MaxUploadBytes <= 0 {
		a.MaxUploadBytes = 32 * 1024 * 1024
	}
	if cfg.JobStore.Type == "" {
		cfg.JobStore.Type = "memory"
	}
	switch cfg.JobStore.Type {
	case "memory":
	case "redis":
		if cfg.JobStore.RedisURL == "" {
			return fmt.Errorf("job_store.redis_url is required for redis job store")
		}
	default:
		return fmt.Errorf("job_store.type must be memory or redis")
	}
	if cfg.JobStore.RetentionHours <= 0 {
		cfg.JobStore.RetentionHours = 24
	}
	if cfg.JobStore.CleanupSpec == "" {
		cfg.JobStore.CleanupSpec = "*/10 * * * *"
	}
	if cfg.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("rate_limit.requests_per_second must not be negative")
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 10
	}
	return nil
}
