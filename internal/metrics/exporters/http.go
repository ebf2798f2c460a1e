// Package exporters publishes unit metrics two ways: a Prometheus
// scrape endpoint and a periodic SSE feed for dashboards.
package exporters

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPHandler returns the /metrics scrape handler covering everything
// the metrics package registers on the default registry.
func HTTPHandler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		// One local Prometheus is the expected consumer.
		MaxRequestsInFlight: 3,
	})
}
