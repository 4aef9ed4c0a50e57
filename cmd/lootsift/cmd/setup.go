package cmd

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/lootsift/lootsift/internal/chunkstore"
	"github.com/lootsift/lootsift/internal/config"
	"github.com/lootsift/lootsift/internal/database"
	"github.com/lootsift/lootsift/internal/logging"
	"github.com/lootsift/lootsift/internal/pathutil"
)

// loadConfigAndLogging loads the configuration and installs the global
// logger. Every subcommand starts here.
func loadConfigAndLogging() (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configFile, err)
	}
	logging.Setup(cfg.Log)
	return cfg, nil
}

func openDatabase(cfg *config.Config) (*sql.DB, *database.Repository, error) {
	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	return db, database.NewRepository(db), nil
}

// openChunkStore prepares the temp spool area: assembled archives go to the
// temp dir itself, chunk fragments live under a chunks/ subdirectory.
func openChunkStore(cfg *config.Config) (*chunkstore.Store, error) {
	if err := pathutil.CheckDirectoryWritable(cfg.Upload.TempDir); err != nil {
		return nil, fmt.Errorf("temp directory check failed: %w", err)
	}
	return chunkstore.New(afero.NewOsFs(), filepath.Join(cfg.Upload.TempDir, "chunks"))
}

// checkWritablePaths fails fast on unwritable output locations.
func checkWritablePaths(cfg *config.Config) error {
	if err := pathutil.CheckFileDirectoryWritable(cfg.Log.File, "log"); err != nil {
		return err
	}
	if cfg.Storage.Backend == config.StorageBackendLocal {
		if err := pathutil.CheckDirectoryWritable(cfg.Storage.LocalPath); err != nil {
			return fmt.Errorf("artifact storage check failed: %w", err)
		}
	}
	return nil
}
