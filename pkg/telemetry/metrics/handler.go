package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns an HTTP handler exposing the metrics gathered by g in the
// Prometheus exposition format. It is mounted at telemetry.metrics.path.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(
		g,
		promhttp.HandlerOpts{
			// Prefer OpenMetrics when the scraper negotiates it.
			EnableOpenMetrics: true,

			// A failing collector must not hide the others.
			ErrorHandling: promhttp.ContinueOnError,
		},
	)
}
