package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/spf13/cobra"

	"github.com/TUD-CERT/docleaner/internal/bootstrap"
	"github.com/TUD-CERT/docleaner/internal/config"
	"github.com/TUD-CERT/docleaner/pkg/log"
)

var flagSweepInterval time.Duration

// serveTasksCmd runs the same retention sweep as "tasks", but internally
// scheduled in a foreground process instead of relying on an external cron
// invoking "tasks" repeatedly.
var serveTasksCmd = &cobra.Command{
	Use:   "serve-tasks",
	Short: "Run the retention sweep on a recurring internal schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := bootstrap.New(config.Keys, flagDBPath, flagBlobDir)
		if err != nil {
			return err
		}
		defer deps.Dispatcher.Shutdown()

		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(flagSweepInterval),
			gocron.NewTask(func() {
				deleted, err := deps.Jobs.Purge(time.Duration(flagJobKeepaliveMinutes) * time.Minute)
				if err != nil {
					log.Errorf("serve-tasks: purge jobs: %v", err)
				} else {
					log.Infof("serve-tasks: purged %d standalone job(s)", len(deleted))
				}
				deleted, err = deps.Sessions.Purge(time.Duration(flagSessionKeepaliveMinutes) * time.Minute)
				if err != nil {
					log.Errorf("serve-tasks: purge sessions: %v", err)
				} else {
					log.Infof("serve-tasks: purged %d session(s)", len(deleted))
				}
			}),
		)
		if err != nil {
			return err
		}

		scheduler.Start()
		log.Infof("serve-tasks: scheduled sweep every %s", flagSweepInterval)

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		log.Infof("serve-tasks: shutting down")
		return scheduler.Shutdown()
	},
}

func init() {
	serveTasksCmd.Flags().DurationVar(&flagSweepInterval, "interval", 5*time.Minute, "how often to run the retention sweep")
	serveTasksCmd.Flags().IntVarP(&flagJobKeepaliveMinutes, "job-keepalive", "j", 10, "minutes a finished standalone job is kept before purging")
	serveTasksCmd.Flags().IntVarP(&flagSessionKeepaliveMinutes, "session-keepalive", "s", 1440, "minutes a finished session is kept before purging")
}
