package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rainforge_requests_total",
			Help: "Total number of HTTP requests per path",
		},
		[]string{"path"},
	)

	RequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rainforge_request_duration_seconds",
			Help:    "Request duration in seconds per path",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	RequestErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rainforge_request_errors_total",
			Help: "Total number of error responses per path and status code",
		},
		[]string{"path", "code"},
	)

	AssessmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rainforge_assessments_total",
			Help: "Total number of site assessments per scenario and rainfall provider",
		},
		[]string{"scenario", "provider"},
	)

	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rainforge_batches_total",
			Help: "Total number of bulk batch runs per scenario",
		},
		[]string{"scenario"},
	)

	BatchSitesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rainforge_batch_sites_total",
			Help: "Total number of batch sites by outcome",
		},
		[]string{"outcome"},
	)

	BatchDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rainforge_batch_duration_seconds",
			Help:    "Wall-clock duration of bulk batch runs",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		},
	)

	InstallerRPIScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rainforge_installer_rpi_score",
			Help: "Latest Reliability Performance Index score per installer",
		},
		[]string{"installer"},
	)
)

var (
	DBPoolTotalConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rainforge_db_pool_total_conns",
			Help: "Total number of connections in the DB pool per driver",
		},
		[]string{"driver"},
	)

	DBPoolIdleConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rainforge_db_pool_idle_conns",
			Help: "Idle connections in the DB pool per driver",
		},
		[]string{"driver"},
	)

	DBPoolAcquiredConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rainforge_db_pool_acquired_conns",
			Help: "Currently acquired (in-use) connections per driver",
		},
		[]string{"driver"},
	)

	DBPoolAcquiresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rainforge_db_pool_acquires_total",
			Help: "Total number of connection acquires per driver",
		},
		[]string{"driver"},
	)
)

func UpdateDBPoolMetrics(driver string, total, idle, acquired float64, acquires uint64) {
	DBPoolTotalConns.WithLabelValues(driver).Set(total)
	DBPoolIdleConns.WithLabelValues(driver).Set(idle)
	DBPoolAcquiredConns.WithLabelValues(driver).Set(acquired)
	DBPoolAcquiresTotal.WithLabelValues(driver).Add(float64(acquires))
}

// ObserveAssessment records one completed single-site assessment.
func ObserveAssessment(scenario, provider string) {
	AssessmentsTotal.WithLabelValues(scenario, provider).Inc()
}

// ObserveBatch records one completed bulk batch run.
func ObserveBatch(scenario string, processed, failed int, dur time.Duration) {
	BatchesTotal.WithLabelValues(scenario).Inc()
	BatchSitesTotal.WithLabelValues("processed").Add(float64(processed))
	BatchSitesTotal.WithLabelValues("failed").Add(float64(failed))
	BatchDurationSeconds.Observe(dur.Seconds())
}

var (
	ScheduledJobLastRun = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rainforge_job_last_run_timestamp",
			Help: "Unix timestamp of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobLastDurationSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rainforge_job_last_duration_seconds",
			Help: "Duration of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rainforge_job_failures_total",
			Help: "Total number of failed executions per job",
		},
		[]string{"job"},
	)
)

func UpdateJobMetrics(job string, startedAt time.Time, err error) {
	dur := time.Since(startedAt).Seconds()
	ScheduledJobLastDurationSeconds.WithLabelValues(job).Set(dur)
	ScheduledJobLastRun.WithLabelValues(job).Set(float64(time.Now().Unix()))
	if err != nil {
		ScheduledJobFailuresTotal.WithLabelValues(job).Inc()
	}
}
