package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/multistream/internal/events"
	"github.com/smazurov/multistream/internal/metrics/exporters"
)

// registerMetricsRoutes wires the per-unit throughput stream. Samples
// originate from the exporter's periodic sweep over the progress data
// health checks record.
func (s *Server) registerMetricsRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "metrics-stream",
		Method:      http.MethodGet,
		Path:        "/api/metrics",
		Summary:     "Metrics Server-Sent Events Stream",
		Description: "Real-time per-unit throughput metrics sampled from the engine",
		Tags:        []string{"metrics"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, exporters.GetEventTypes(), func(ctx context.Context, _ *struct{}, send sse.Sender) {
		ch := make(chan any, 10)
		unsubscribe := events.SubscribeToChannel[events.UnitMetricsEvent](s.eventBus, ch)
		defer unsubscribe()

		pumpEvents(ctx, send, ch)
	})
}
