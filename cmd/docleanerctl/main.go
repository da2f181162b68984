// Command docleanerctl is the operational CLI for a docleaner deployment:
// running the retention sweep, reporting queue stats, and a couple of
// diagnostic/debug escape hatches. It never starts an HTTP API; that
// surface is wired elsewhere.
package main

import (
	"fmt"
	"os"

	"github.com/google/gops/agent"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/TUD-CERT/docleaner/internal/config"
	"github.com/TUD-CERT/docleaner/pkg/log"
)

var (
	flagDBPath   string
	flagBlobDir  string
	flagGops     bool
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "docleanerctl",
	Short: "Operational commands for a docleaner deployment",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log.SetLogLevel(flagLogLevel)
		_ = godotenv.Load() // optional, missing .env is not an error

		if err := config.Init(); err != nil {
			return err
		}
		if flagGops {
			if err := agent.Listen(agent.Options{}); err != nil {
				return fmt.Errorf("gops agent: %w", err)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "./var/docleaner.db", "path to the sqlite database file")
	rootCmd.PersistentFlags().StringVar(&flagBlobDir, "blobs", "./var/blobs", "path to the blob storage directory")
	rootCmd.PersistentFlags().BoolVar(&flagGops, "gops", false, "attach a gops diagnostics agent")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "loglevel", "info", "debug, info, notice, warn, err or crit")

	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(serveTasksCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(diagErrCmd)
	rootCmd.AddCommand(diagRunCmd)
	rootCmd.AddCommand(debugCmd)
	rootCmd.AddCommand(serveMetricsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
