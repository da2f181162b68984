package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TUD-CERT/docleaner/internal/bootstrap"
	"github.com/TUD-CERT/docleaner/internal/config"
)

var flagDeleteJID string

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Operator recovery commands that bypass normal lifecycle guards",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagDeleteJID == "" {
			return cmd.Help()
		}
		deps, err := bootstrap.New(config.Keys, flagDBPath, flagBlobDir)
		if err != nil {
			return err
		}
		defer deps.Dispatcher.Shutdown()

		// Unlike jobservice.Delete, this bypasses the terminal-state
		// guard: it is meant for stuck jobs an operator has already
		// decided are unrecoverable.
		if err := deps.DB.DeleteJob(flagDeleteJID); err != nil {
			return err
		}
		fmt.Printf("debug: force-deleted job %s\n", flagDeleteJID)
		return nil
	},
}

func init() {
	debugCmd.Flags().StringVar(&flagDeleteJID, "delete-jid", "", "force-delete a job regardless of its current status")
}
