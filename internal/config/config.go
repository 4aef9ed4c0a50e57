// Package config holds the service configuration, loaded from a YAML file
// and validated at load/save time so ingestion never has to re-check
// tunable combinations mid-archive.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Storage backends for binary artifacts extracted from archives.
const (
	StorageBackendLocal = "local"
	StorageBackendS3    = "s3"
)

// LogConfig controls slog output.
type LogConfig struct {
	Level      string `yaml:"level" json:"level" mapstructure:"level"`
	File       string `yaml:"file" json:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups" mapstructure:"max_backups"`
}

// DatabaseConfig points at the SQLite database file.
type DatabaseConfig struct {
	Path string `yaml:"path" json:"path" mapstructure:"path"`
}

// UploadConfig bounds the chunked upload path.
type UploadConfig struct {
	MaxFileSizeMB       int    `yaml:"max_file_size_mb" json:"max_file_size_mb" mapstructure:"max_file_size_mb"`
	ChunkSizeMB         int    `yaml:"chunk_size_mb" json:"chunk_size_mb" mapstructure:"chunk_size_mb"`
	// MaxConcurrentChunks is a client-facing hint surfaced through the
	// settings API: how many chunks an uploader should send in parallel.
	// The server accepts chunks in any order and does not enforce it.
	MaxConcurrentChunks int    `yaml:"max_concurrent_chunks" json:"max_concurrent_chunks" mapstructure:"max_concurrent_chunks"`
	APIConcurrency      int    `yaml:"api_concurrency" json:"api_concurrency" mapstructure:"api_concurrency"`
	TempCleanupHours    int    `yaml:"temp_cleanup_hours" json:"temp_cleanup_hours" mapstructure:"temp_cleanup_hours"`
	TempDir             string `yaml:"temp_dir" json:"temp_dir" mapstructure:"temp_dir"`
}

// BatchConfig sizes the per-table persistence batches and the binary
// materialization fan-out.
type BatchConfig struct {
	CredentialsBatchSize   int `yaml:"credentials_batch_size" json:"credentials_batch_size" mapstructure:"credentials_batch_size"`
	PasswordStatsBatchSize int `yaml:"password_stats_batch_size" json:"password_stats_batch_size" mapstructure:"password_stats_batch_size"`
	FilesBatchSize         int `yaml:"files_batch_size" json:"files_batch_size" mapstructure:"files_batch_size"`
	FileWriteParallelLimit int `yaml:"file_write_parallel_limit" json:"file_write_parallel_limit" mapstructure:"file_write_parallel_limit"`
}

// StorageConfig selects where extracted binary artifacts go.
type StorageConfig struct {
	Backend   string `yaml:"backend" json:"backend" mapstructure:"backend"`
	LocalPath string `yaml:"local_path" json:"local_path" mapstructure:"local_path"`
	Endpoint  string `yaml:"endpoint" json:"endpoint" mapstructure:"endpoint"`
	Bucket    string `yaml:"bucket" json:"bucket" mapstructure:"bucket"`
	AccessKey string `yaml:"access_key" json:"access_key" mapstructure:"access_key"`
	SecretKey string `yaml:"secret_key" json:"secret_key" mapstructure:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl" json:"use_ssl" mapstructure:"use_ssl"`
}

// IngestConfig bounds a single archive run.
type IngestConfig struct {
	ProcessingTimeoutMinutes int `yaml:"processing_timeout_minutes" json:"processing_timeout_minutes" mapstructure:"processing_timeout_minutes"`
}

// Config is the root configuration.
type Config struct {
	Address  string         `yaml:"address" json:"address" mapstructure:"address"`
	Log      LogConfig      `yaml:"log" json:"log" mapstructure:"log"`
	Database DatabaseConfig `yaml:"database" json:"database" mapstructure:"database"`
	Upload   UploadConfig   `yaml:"upload" json:"upload" mapstructure:"upload"`
	Batch    BatchConfig    `yaml:"batch" json:"batch" mapstructure:"batch"`
	Storage  StorageConfig  `yaml:"storage" json:"storage" mapstructure:"storage"`
	Ingest   IngestConfig   `yaml:"ingest" json:"ingest" mapstructure:"ingest"`
}

// ConfigGetter returns the current configuration. Long-lived components hold
// a getter instead of a snapshot so settings updates apply to the next job.
type ConfigGetter func() *Config

// DefaultConfig returns a configuration that passes validation out of the box.
func DefaultConfig() *Config {
	return &Config{
		Address: ":8844",
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
		Database: DatabaseConfig{Path: "lootsift.db"},
		Upload: UploadConfig{
			MaxFileSizeMB:       4096,
			ChunkSizeMB:         10,
			MaxConcurrentChunks: 4,
			APIConcurrency:      2,
			TempCleanupHours:    24,
			TempDir:             filepath.Join(os.TempDir(), "lootsift"),
		},
		Batch: BatchConfig{
			CredentialsBatchSize:   500,
			PasswordStatsBatchSize: 500,
			FilesBatchSize:         200,
			FileWriteParallelLimit: 8,
		},
		Storage: StorageConfig{
			Backend:   StorageBackendLocal,
			LocalPath: "artifacts",
		},
		Ingest: IngestConfig{ProcessingTimeoutMinutes: 120},
	}
}

// MaxFileSizeBytes returns the configured ceiling in bytes.
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.Upload.MaxFileSizeMB) << 20
}

// ChunkSizeBytes returns the configured chunk size in bytes.
func (c *Config) ChunkSizeBytes() int64 {
	return int64(c.Upload.ChunkSizeMB) << 20
}

// Validate checks every tunable range documented for the settings API.
// Invalid combinations are rejected here, at configuration-save time, never
// at ingest time.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	u := c.Upload
	if u.MaxFileSizeMB < 1 {
		return fmt.Errorf("max_file_size_mb must be at least 1, got %d", u.MaxFileSizeMB)
	}
	if u.ChunkSizeMB < 1 || u.ChunkSizeMB > 100 {
		return fmt.Errorf("chunk_size_mb must be between 1 and 100, got %d", u.ChunkSizeMB)
	}
	if u.ChunkSizeMB*10 > u.MaxFileSizeMB {
		return fmt.Errorf("chunk_size_mb (%d) must not exceed 10%% of max_file_size_mb (%d)", u.ChunkSizeMB, u.MaxFileSizeMB)
	}
	if u.MaxConcurrentChunks < 1 || u.MaxConcurrentChunks > 10 {
		return fmt.Errorf("max_concurrent_chunks must be between 1 and 10, got %d", u.MaxConcurrentChunks)
	}
	if u.APIConcurrency < 1 || u.APIConcurrency > 10 {
		return fmt.Errorf("api_concurrency must be between 1 and 10, got %d", u.APIConcurrency)
	}
	if u.TempCleanupHours < 1 || u.TempCleanupHours > 720 {
		return fmt.Errorf("temp_cleanup_hours must be between 1 and 720, got %d", u.TempCleanupHours)
	}
	b := c.Batch
	for name, size := range map[string]int{
		"credentials_batch_size":    b.CredentialsBatchSize,
		"password_stats_batch_size": b.PasswordStatsBatchSize,
		"files_batch_size":          b.FilesBatchSize,
	} {
		if size < 1 || size > 10000 {
			return fmt.Errorf("%s must be between 1 and 10000, got %d", name, size)
		}
	}
	if b.FileWriteParallelLimit < 1 || b.FileWriteParallelLimit > 64 {
		return fmt.Errorf("file_write_parallel_limit must be between 1 and 64, got %d", b.FileWriteParallelLimit)
	}
	switch c.Storage.Backend {
	case StorageBackendLocal:
		if c.Storage.LocalPath == "" {
			return fmt.Errorf("storage local_path is required for the local backend")
		}
	case StorageBackendS3:
		if c.Storage.Endpoint == "" || c.Storage.Bucket == "" {
			return fmt.Errorf("storage endpoint and bucket are required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Ingest.ProcessingTimeoutMinutes < 1 {
		return fmt.Errorf("processing_timeout_minutes must be at least 1, got %d", c.Ingest.ProcessingTimeoutMinutes)
	}
	return nil
}

// LoadConfig reads the YAML file at path, layered over defaults. A missing
// file yields the defaults so a fresh install starts without ceremony.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes the configuration back to disk as YAML.
func SaveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}
