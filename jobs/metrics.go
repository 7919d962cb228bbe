package jobs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	jobLabel = "job"
)

var (
	jobsScheduled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobs_scheduled_total",
		Help: "The number of jobs given to the job manager.",
	}, []string{
		jobLabel,
	})

	jobsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobs_executed_total",
		Help: "The number of jobs executed by the job manager workers.",
	}, []string{
		jobLabel,
	})

	jobsExecutionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jobs_execution_seconds",
		Help:    "The time to execute a job.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	}, []string{
		jobLabel,
	})
)

func instrumentScheduledJob(name string) {
	jobsScheduled.
		With(prometheus.Labels{jobLabel: name}).
		Inc()
}

func instrumentExecutedJob(name string, start time.Time) {
	jobsExecuted.
		With(prometheus.Labels{jobLabel: name}).
		Inc()

	jobsExecutionLatency.
		With(prometheus.Labels{jobLabel: name}).
		Observe(time.Since(start).Seconds())
}
