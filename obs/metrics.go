// Package obs registers the Prometheus metrics for the session and sync
// layers and exposes the scrape handler.
package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	loginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetboard_logins_total",
			Help: "Login attempts by outcome.",
		},
		[]string{"result"},
	)

	activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sheetboard_active_sessions",
		Help: "Currently active sessions in the registry.",
	})

	sheetSavesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetboard_sheet_saves_total",
			Help: "Sheet save attempts by outcome.",
		},
		[]string{"result"},
	)

	remoteRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetboard_remote_requests_total",
			Help: "Remote store calls by operation and outcome.",
		},
		[]string{"op", "result"},
	)
)

// Init registers the metrics with the default registry.
func Init() {
	prometheus.MustRegister(loginsTotal, activeSessions, sheetSavesTotal, remoteRequestsTotal)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveLogin records a login attempt outcome ("ok", "bad_credential",
// "already_active", "capacity", "error").
func ObserveLogin(result string) {
	loginsTotal.WithLabelValues(result).Inc()
}

// SetActiveSessions updates the active-session gauge.
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

// ObserveSave records a sheet save outcome ("ok", "conflict", "error", "noop").
func ObserveSave(result string) {
	sheetSavesTotal.WithLabelValues(result).Inc()
}

// ObserveRemote records a remote call outcome per operation ("fetch", "put").
func ObserveRemote(op, result string) {
	remoteRequestsTotal.WithLabelValues(op, result).Inc()
}
