package exporters

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/smazurov/multistream/internal/metrics"
)

func scrape(t *testing.T) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	HTTPHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return w
}

func TestHTTPHandlerExportsUnitStatus(t *testing.T) {
	metrics.SetUnitStatus("http-test-unit", "active")
	defer metrics.DeleteUnitMetrics("http-test-unit")

	w := scrape(t)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	body := w.Body.String()
	if !strings.Contains(body, "multistream_unit_status") {
		t.Error("scrape output missing unit status metric")
	}
	if !strings.Contains(body, `unit_id="http-test-unit"`) {
		t.Error("scrape output missing unit_id label")
	}
}

func TestHTTPHandlerExportsDestinationHealth(t *testing.T) {
	metrics.SetDestinationHealth("http-test-unit", "dest-1", "twitch", true, 0)
	defer metrics.DeleteDestinationMetrics("http-test-unit", "dest-1")

	body := scrape(t).Body.String()
	if !strings.Contains(body, "multistream_destination_connected") {
		t.Error("scrape output missing destination connected metric")
	}
	if !strings.Contains(body, `platform="twitch"`) {
		t.Error("scrape output missing platform label")
	}
}

func TestHTTPHandlerDeletedSeriesDisappear(t *testing.T) {
	metrics.SetUnitStatus("gone-unit", "active")
	metrics.DeleteUnitMetrics("gone-unit")

	if strings.Contains(scrape(t).Body.String(), `unit_id="gone-unit"`) {
		t.Error("deleted unit series still present in scrape output")
	}
}
