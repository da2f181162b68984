// Package metrics exposes Prometheus collectors tracking job/queue state,
// wired up by cmd/docleanerctl's serve-metrics command.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/TUD-CERT/docleaner/internal/job"
	"github.com/TUD-CERT/docleaner/internal/jobservice"
)

// Collector is a prometheus.Collector reflecting the job service's current
// stats tuple on every scrape — a pull-based gauge rather than a counter
// maintained alongside every state transition, so it always matches what
// GetStats would return at query time.
type Collector struct {
	svc *jobservice.Service

	jobsByStatus  *prometheus.Desc
	totalJobsEver *prometheus.Desc
}

// NewCollector builds a Collector reading from svc.
func NewCollector(svc *jobservice.Service) *Collector {
	return &Collector{
		svc: svc,
		jobsByStatus: prometheus.NewDesc(
			"docleaner_jobs", "Number of jobs currently in a given status.",
			[]string{"status"}, nil,
		),
		totalJobsEver: prometheus.NewDesc(
			"docleaner_jobs_total", "Cumulative number of jobs ever created.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.jobsByStatus
	ch <- c.totalJobsEver
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats, err := c.svc.GetStats()
	if err != nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.totalJobsEver, prometheus.CounterValue, float64(stats.Total))

	statuses := map[string]int{
		job.Created.String(): stats.Created,
		job.Queued.String():  stats.Queued,
		job.Running.String(): stats.Running,
		job.Success.String(): stats.Success,
		job.Error.String():   stats.Error,
	}
	for status, count := range statuses {
		ch <- prometheus.MustNewConstMetric(c.jobsByStatus, prometheus.GaugeValue, float64(count), status)
	}
}
