package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/TUD-CERT/docleaner/internal/bootstrap"
	"github.com/TUD-CERT/docleaner/internal/config"
	"github.com/TUD-CERT/docleaner/pkg/log"
)

var (
	flagQuiet                  bool
	flagJobKeepaliveMinutes    int
	flagSessionKeepaliveMinutes int
	flagNoSessionPurging       bool
	flagNoStandaloneJobPurging bool
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Run the standalone-job and session retention sweep once",
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := bootstrap.New(config.Keys, flagDBPath, flagBlobDir)
		if err != nil {
			return err
		}
		defer deps.Dispatcher.Shutdown()

		if !flagNoStandaloneJobPurging {
			deleted, err := deps.Jobs.Purge(time.Duration(flagJobKeepaliveMinutes) * time.Minute)
			if err != nil {
				return fmt.Errorf("purge jobs: %w", err)
			}
			if !flagQuiet {
				log.Infof("tasks: purged %d standalone job(s)", len(deleted))
			}
		}
		if !flagNoSessionPurging {
			deleted, err := deps.Sessions.Purge(time.Duration(flagSessionKeepaliveMinutes) * time.Minute)
			if err != nil {
				return fmt.Errorf("purge sessions: %w", err)
			}
			if !flagQuiet {
				log.Infof("tasks: purged %d session(s)", len(deleted))
			}
		}
		return nil
	},
}

func init() {
	tasksCmd.Flags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress progress output")
	tasksCmd.Flags().IntVarP(&flagJobKeepaliveMinutes, "job-keepalive", "j", 10, "minutes a finished standalone job is kept before purging")
	tasksCmd.Flags().IntVarP(&flagSessionKeepaliveMinutes, "session-keepalive", "s", 1440, "minutes a finished session is kept before purging")
	tasksCmd.Flags().BoolVar(&flagNoSessionPurging, "no-session-purging", false, "skip the session retention sweep")
	tasksCmd.Flags().BoolVar(&flagNoStandaloneJobPurging, "no-standalone-job-purging", false, "skip the standalone job retention sweep")
}
