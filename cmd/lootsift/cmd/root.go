package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "lootsift",
	Short: "Stealer-log archive ingestion service",
	Long: `lootsift ingests stealer-log ZIP archives: it reassembles chunked
uploads, groups archive entries into devices, filters devices already seen,
extracts credentials, software inventories and system information, and stores
binary artifacts in a local or S3-compatible file store.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yaml", "path to the YAML configuration file")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
