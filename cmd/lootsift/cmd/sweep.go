package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lootsift/lootsift/internal/chunkstore"
	"github.com/lootsift/lootsift/internal/config"
)

func init() {
	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired chunk fragments from the temp directory",
		Long: `Remove chunk fragments older than the configured temp_cleanup_hours.
The serve command runs this hourly on its own; sweep exists for cron-style
deployments and for reclaiming space while the server is down.`,
		RunE: runSweep,
	}
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigAndLogging()
	if err != nil {
		return err
	}

	chunks, err := openChunkStore(cfg)
	if err != nil {
		return err
	}

	getter := config.ConfigGetter(func() *config.Config { return cfg })
	removed := chunkstore.NewSweeper(chunks, getter).RunOnce(context.Background())
	fmt.Printf("removed %d expired upload(s)\n", removed)
	return nil
}
