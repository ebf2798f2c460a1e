package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	destinationConnected = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "multistream",
		Subsystem: "destination",
		Name:      "connected",
		Help:      "Whether the destination's output is attached and running (1/0)",
	}, []string{"unit_id", "destination_id", "platform"})

	destinationFailures = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "multistream",
		Subsystem: "destination",
		Name:      "consecutive_failures",
		Help:      "Consecutive failed health checks for the destination",
	}, []string{"unit_id", "destination_id", "platform"})

	reconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "multistream",
		Subsystem: "destination",
		Name:      "reconnects_total",
		Help:      "Reconnect attempts scheduled for the destination",
	}, []string{"unit_id", "destination_id"})

	failoversTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "multistream",
		Subsystem: "unit",
		Name:      "failovers_total",
		Help:      "Primary-to-backup failovers triggered on the unit",
	}, []string{"unit_id"})
)

// SetDestinationHealth records a destination's connection state.
func SetDestinationHealth(unitID, destinationID, platform string, connected bool, failures int) {
	value := 0.0
	if connected {
		value = 1.0
	}
	destinationConnected.WithLabelValues(unitID, destinationID, platform).Set(value)
	destinationFailures.WithLabelValues(unitID, destinationID, platform).Set(float64(failures))
}

// IncReconnect counts a scheduled reconnect attempt.
func IncReconnect(unitID, destinationID string) {
	reconnectsTotal.WithLabelValues(unitID, destinationID).Inc()
}

// IncFailover counts a triggered failover on a unit.
func IncFailover(unitID string) {
	failoversTotal.WithLabelValues(unitID).Inc()
}

// DeleteDestinationMetrics removes the series for one destination.
func DeleteDestinationMetrics(unitID, destinationID string) {
	match := prometheus.Labels{"unit_id": unitID, "destination_id": destinationID}
	destinationConnected.DeletePartialMatch(match)
	destinationFailures.DeletePartialMatch(match)
	reconnectsTotal.DeletePartialMatch(match)
}

// deleteDestinationSeries drops every destination series belonging to a
// unit.
func deleteDestinationSeries(unitID string) {
	match := prometheus.Labels{"unit_id": unitID}
	destinationConnected.DeletePartialMatch(match)
	destinationFailures.DeletePartialMatch(match)
	reconnectsTotal.DeletePartialMatch(match)
	failoversTotal.DeletePartialMatch(match)
}
