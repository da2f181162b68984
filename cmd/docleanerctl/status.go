package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TUD-CERT/docleaner/internal/bootstrap"
	"github.com/TUD-CERT/docleaner/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current job queue stats",
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := bootstrap.New(config.Keys, flagDBPath, flagBlobDir)
		if err != nil {
			return err
		}
		defer deps.Dispatcher.Shutdown()

		stats, err := deps.Jobs.GetStats()
		if err != nil {
			return err
		}
		current := stats.Created + stats.Queued + stats.Running + stats.Success + stats.Error
		fmt.Printf(
			"%d jobs in db (C:%d Q:%d R:%d S:%d E:%d), %d total\n",
			current, stats.Created, stats.Queued, stats.Running, stats.Success, stats.Error, stats.Total,
		)
		return nil
	},
}
