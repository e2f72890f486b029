package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/armadaproject/largestproduct/internal/coordinator"
)

const metricPrefix = "largestproduct_scheduler_"

var tasksLaunched = promauto.NewCounter(prometheus.CounterOpts{
	Name: metricPrefix + "tasks_launched_total",
	Help: "Number of tasks launched",
})

var tasksFinished = promauto.NewCounter(prometheus.CounterOpts{
	Name: metricPrefix + "tasks_finished_total",
	Help: "Number of distinct tasks that finished successfully",
})

var tasksFailed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: metricPrefix + "tasks_failed_total",
	Help: "Number of task failures by terminal state",
}, []string{"state"})

var offersDeclined = promauto.NewCounter(prometheus.CounterOpts{
	Name: metricPrefix + "offers_declined_total",
	Help: "Number of resource offers declined",
})

var bestProduct = promauto.NewGauge(prometheus.GaugeOpts{
	Name: metricPrefix + "best_product",
	Help: "Largest product received so far in the current run",
})

var runPhase = promauto.NewGauge(prometheus.GaugeOpts{
	Name: metricPrefix + "phase",
	Help: "Phase of the current run: 0 idle, 1 dispatching, 2 awaiting results, 3 done, 4 aborted",
})

func recordTransition(state coordinator.RunState, actions []Action) {
	runPhase.Set(float64(state.Phase))
	if state.Best != nil {
		bestProduct.Set(float64(state.Best.Product))
	}
	for _, action := range actions {
		switch action.(type) {
		case LaunchTask:
			tasksLaunched.Inc()
		case DeclineOffer:
			offersDeclined.Inc()
		}
	}
}
