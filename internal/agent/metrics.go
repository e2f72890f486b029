package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsPrefix = "largestproduct_agent_"

var tasksExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: metricsPrefix + "tasks_executed_total",
	Help: "Number of tasks executed by terminal state",
}, []string{"state"})

var statusesResent = promauto.NewCounter(prometheus.CounterOpts{
	Name: metricsPrefix + "statuses_resent_total",
	Help: "Number of unacknowledged status updates sent again",
})

var taskDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    metricsPrefix + "task_duration_seconds",
	Help:    "Time taken to evaluate one work unit",
	Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
})
