package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestDestinationHealthGauges(t *testing.T) {
	unitID := "unit_dest_test"
	destID := "twitch_aaa111"

	SetDestinationHealth(unitID, destID, "twitch", true, 0)

	if got := testutil.ToFloat64(destinationConnected.WithLabelValues(unitID, destID, "twitch")); got != 1 {
		t.Errorf("connected = %v, want 1", got)
	}
	if got := testutil.ToFloat64(destinationFailures.WithLabelValues(unitID, destID, "twitch")); got != 0 {
		t.Errorf("failures = %v, want 0", got)
	}

	SetDestinationHealth(unitID, destID, "twitch", false, 3)

	if got := testutil.ToFloat64(destinationConnected.WithLabelValues(unitID, destID, "twitch")); got != 0 {
		t.Errorf("connected = %v, want 0", got)
	}
	if got := testutil.ToFloat64(destinationFailures.WithLabelValues(unitID, destID, "twitch")); got != 3 {
		t.Errorf("failures = %v, want 3", got)
	}

	DeleteDestinationMetrics(unitID, destID)

	// Delete non-existent should not panic
	DeleteDestinationMetrics(unitID, "missing")
}

func TestReconnectAndFailoverCounters(t *testing.T) {
	unitID := "unit_counter_test"
	destID := "youtube_bbb222"

	IncReconnect(unitID, destID)
	IncReconnect(unitID, destID)
	if got := testutil.ToFloat64(reconnectsTotal.WithLabelValues(unitID, destID)); got != 2 {
		t.Errorf("reconnects = %v, want 2", got)
	}

	IncFailover(unitID)
	if got := testutil.ToFloat64(failoversTotal.WithLabelValues(unitID)); got != 1 {
		t.Errorf("failovers = %v, want 1", got)
	}

	DeleteUnitMetrics(unitID)
}

func TestDeleteUnitDropsDestinationSeries(t *testing.T) {
	unitID := "unit_cleanup_test"

	SetDestinationHealth(unitID, "d1", "twitch", true, 0)
	SetDestinationHealth(unitID, "d2", "youtube", false, 2)
	IncReconnect(unitID, "d1")
	IncFailover(unitID)

	DeleteUnitMetrics(unitID)

	// Re-reading a deleted series recreates it at zero.
	if got := testutil.ToFloat64(destinationConnected.WithLabelValues(unitID, "d1", "twitch")); got != 0 {
		t.Errorf("connected after delete = %v, want 0", got)
	}
	if got := testutil.ToFloat64(reconnectsTotal.WithLabelValues(unitID, "d1")); got != 0 {
		t.Errorf("reconnects after delete = %v, want 0", got)
	}
	if got := testutil.ToFloat64(failoversTotal.WithLabelValues(unitID)); got != 0 {
		t.Errorf("failovers after delete = %v, want 0", got)
	}

	DeleteUnitMetrics(unitID)
}
