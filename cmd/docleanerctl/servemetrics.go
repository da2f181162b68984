package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/TUD-CERT/docleaner/internal/bootstrap"
	"github.com/TUD-CERT/docleaner/internal/config"
	"github.com/TUD-CERT/docleaner/internal/metrics"
	"github.com/TUD-CERT/docleaner/pkg/log"
)

var flagMetricsAddr string

var serveMetricsCmd = &cobra.Command{
	Use:   "serve-metrics",
	Short: "Expose Prometheus metrics for the job queue over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := bootstrap.New(config.Keys, flagDBPath, flagBlobDir)
		if err != nil {
			return err
		}
		defer deps.Dispatcher.Shutdown()

		reg := prometheus.NewRegistry()
		reg.MustRegister(metrics.NewCollector(deps.Jobs))

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

		log.Infof("serve-metrics: listening on %s", flagMetricsAddr)
		return http.ListenAndServe(flagMetricsAddr, mux)
	},
}

func init() {
	serveMetricsCmd.Flags().StringVar(&flagMetricsAddr, "addr", ":9110", "address to serve /metrics on")
}
