// Package metrics registers the Prometheus collectors the session and
// forwarding packages update, as package-level collectors registered from
// an init() block.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	BytesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_bytes_sent_total",
		Help: "Total payload bytes of encrypted records written to session transports.",
	})
	BytesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_bytes_received_total",
		Help: "Total payload bytes of encrypted records read from session transports.",
	})
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_active_sessions",
		Help: "Number of sessions currently in the SERVICE phase.",
	})
	FailedLogins = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_failed_logins_total",
		Help: "Number of AUTH_FAILURE responses sent.",
	})
	ActiveForwards = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_active_port_forwards",
		Help: "Number of open port-forward channels across all sessions.",
	})
)

func init() {
	prometheus.MustRegister(
		BytesSent,
		BytesReceived,
		ActiveSessions,
		FailedLogins,
		ActiveForwards,
	)
}
