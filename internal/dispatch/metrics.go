package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var actionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tracker_actions_total",
		Help: "Dispatched actions by method, action and response status.",
	},
	[]string{"method", "action", "status"},
)

func observeAction(method, action string, status int) {
	if action == "" {
		action = "listExpenses"
	}
	actionsTotal.WithLabelValues(method, action, statusLabel(status)).Inc()
}
