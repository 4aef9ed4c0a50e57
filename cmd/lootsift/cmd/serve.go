package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lootsift/lootsift/internal/api"
	"github.com/lootsift/lootsift/internal/chunkstore"
	"github.com/lootsift/lootsift/internal/config"
	"github.com/lootsift/lootsift/internal/filestore"
	"github.com/lootsift/lootsift/internal/importer"
	"github.com/lootsift/lootsift/internal/progress"
)

func init() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ingestion HTTP server",
		RunE:  runServe,
	}
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigAndLogging()
	if err != nil {
		return err
	}
	if err := checkWritablePaths(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, repo, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	chunks, err := openChunkStore(cfg)
	if err != nil {
		return err
	}

	files, err := filestore.FromConfig(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize file store: %w", err)
	}

	manager := config.NewManager(configFile, cfg)
	broker := progress.NewBroker()
	pipeline := importer.NewPipeline(manager.Getter(), repo, files, broker)
	registry := importer.NewRegistry(cfg.Upload.APIConcurrency)

	sweeper := chunkstore.NewSweeper(chunks, manager.Getter())
	sweeper.Start(ctx)

	server := api.NewServer(api.ServerOptions{
		Config:   manager,
		Repo:     repo,
		Chunks:   chunks,
		Pipeline: pipeline,
		Registry: registry,
		Broker:   broker,
	})
	server.SetReady(true)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Listen(cfg.Address)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	if err := server.Shutdown(); err != nil {
		slog.Error("http shutdown failed", "error", err)
	}
	return nil
}
