package apiclient

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "schoolctl",
		Subsystem: "client",
		Name:      "requests_total",
		Help:      "Requests sent to the backend by response code class (0xx when no response was received).",
	},
	[]string{"code_class"},
)

var refreshTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "schoolctl",
		Subsystem: "client",
		Name:      "refresh_total",
		Help:      "Access token refresh calls by result.",
	},
	[]string{"result"},
)

var notificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "schoolctl",
		Subsystem: "client",
		Name:      "notifications_total",
		Help:      "Errors reported to the error observer by kind.",
	},
	[]string{"kind"},
)

func codeClass(status int) string {
	if status <= 0 {
		return "0xx"
	}
	return strconv.Itoa(status/100) + "xx"
}
