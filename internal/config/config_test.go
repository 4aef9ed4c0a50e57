package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		wantErr     bool
		errContains string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:        "chunk size too small",
			mutate:      func(c *Config) { c.Upload.ChunkSizeMB = 0 },
			wantErr:     true,
			errContains: "chunk_size_mb",
		},
		{
			name:        "chunk size too large",
			mutate:      func(c *Config) { c.Upload.ChunkSizeMB = 101 },
			wantErr:     true,
			errContains: "chunk_size_mb",
		},
		{
			name: "chunk size above 10 percent of max file size",
			mutate: func(c *Config) {
				c.Upload.MaxFileSizeMB = 100
				c.Upload.ChunkSizeMB = 20
			},
			wantErr:     true,
			errContains: "10%",
		},
		{
			name:        "concurrency out of range",
			mutate:      func(c *Config) { c.Upload.MaxConcurrentChunks = 11 },
			wantErr:     true,
			errContains: "max_concurrent_chunks",
		},
		{
			name:        "api concurrency out of range",
			mutate:      func(c *Config) { c.Upload.APIConcurrency = 0 },
			wantErr:     true,
			errContains: "api_concurrency",
		},
		{
			name:        "batch size zero",
			mutate:      func(c *Config) { c.Batch.CredentialsBatchSize = 0 },
			wantErr:     true,
			errContains: "credentials_batch_size",
		},
		{
			name:        "parallel limit too high",
			mutate:      func(c *Config) { c.Batch.FileWriteParallelLimit = 65 },
			wantErr:     true,
			errContains: "file_write_parallel_limit",
		},
		{
			name:        "unknown storage backend",
			mutate:      func(c *Config) { c.Storage.Backend = "ftp" },
			wantErr:     true,
			errContains: "storage backend",
		},
		{
			name: "s3 backend requires endpoint",
			mutate: func(c *Config) {
				c.Storage.Backend = StorageBackendS3
				c.Storage.Bucket = "loot"
			},
			wantErr:     true,
			errContains: "endpoint",
		},
		{
			name:        "cleanup window out of range",
			mutate:      func(c *Config) { c.Upload.TempCleanupHours = 0 },
			wantErr:     true,
			errContains: "temp_cleanup_hours",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Upload.ChunkSizeMB, cfg.Upload.ChunkSizeMB)
}

func TestLoadConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Upload.ChunkSizeMB = 25
	cfg.Batch.FilesBatchSize = 321
	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 25, loaded.Upload.ChunkSizeMB)
	assert.Equal(t, 321, loaded.Batch.FilesBatchSize)
}

func TestManager_GetReturnsCopy(t *testing.T) {
	m := NewManager("", DefaultConfig())
	a := m.Get()
	a.Upload.ChunkSizeMB = 99
	assert.NotEqual(t, 99, m.Get().Upload.ChunkSizeMB)
}

func TestManager_UpdateRejectsInvalid(t *testing.T) {
	m := NewManager("", DefaultConfig())
	bad := DefaultConfig()
	bad.Upload.MaxConcurrentChunks = 0
	err := m.Update(bad)
	require.Error(t, err)
	assert.Equal(t, DefaultConfig().Upload.MaxConcurrentChunks, m.Get().Upload.MaxConcurrentChunks)
}
