// Package metrics exposes Prometheus collectors for the long-lived
// collections the server core owns: the size of a task group and the
// outcome of every dispatched RPC request.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var tasksInFlight = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Help:      "Number of task handlers currently tracked by a task group",
		Name:      "tasks_in_flight",
		Namespace: "karyon",
	},
)

var rpcRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Help:      "Total JSON-RPC requests dispatched, by service, method and outcome",
		Name:      "rpc_requests_total",
		Namespace: "karyon",
	},
	[]string{"service", "method", "outcome"},
)

func init() {
	prometheus.MustRegister(
		tasksInFlight,
		rpcRequestsTotal,
	)
}

// SetTasksInFlight records the current size of a task group.
func SetTasksInFlight(n int) {
	tasksInFlight.Set(float64(n))
}

// Outcome labels for ObserveRequest.
const (
	OutcomeOK             = "ok"
	OutcomeMethodNotFound = "method_not_found"
	OutcomeInvalidRequest = "invalid_request"
	OutcomeError          = "error"
)

// ObserveRequest increments the request counter for one dispatched call.
func ObserveRequest(service, method, outcome string) {
	rpcRequestsTotal.WithLabelValues(service, method, outcome).Inc()
}
