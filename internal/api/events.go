package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/multistream/internal/events"
)

// registerSSERoutes wires the main event stream. Every connection gets
// one engine-status frame up front so dashboards can render the
// connection state before the first real event arrives.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time event stream for unit lifecycle, destination health, failover and engine status",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"unit-created":       events.UnitCreatedEvent{},
		"unit-updated":       events.UnitUpdatedEvent{},
		"unit-deleted":       events.UnitDeletedEvent{},
		"unit-status":        events.UnitStatusChangedEvent{},
		"destination-health": events.DestinationHealthEvent{},
		"failover":           events.FailoverEvent{},
		"reconnect":          events.ReconnectEvent{},
		"engine-status":      events.EngineStatusEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		ch := make(chan any, 10)
		unsubs := []func(){
			events.SubscribeToChannel[events.UnitCreatedEvent](s.eventBus, ch),
			events.SubscribeToChannel[events.UnitUpdatedEvent](s.eventBus, ch),
			events.SubscribeToChannel[events.UnitDeletedEvent](s.eventBus, ch),
			events.SubscribeToChannel[events.UnitStatusChangedEvent](s.eventBus, ch),
			events.SubscribeToChannel[events.DestinationHealthEvent](s.eventBus, ch),
			events.SubscribeToChannel[events.FailoverEvent](s.eventBus, ch),
			events.SubscribeToChannel[events.ReconnectEvent](s.eventBus, ch),
			events.SubscribeToChannel[events.EngineStatusEvent](s.eventBus, ch),
		}
		defer func() {
			for _, unsub := range unsubs {
				unsub()
			}
		}()

		if err := send.Data(s.currentEngineStatus(ctx)); err != nil {
			return
		}

		pumpEvents(ctx, send, ch)
	})
}

// currentEngineStatus probes the engine with a short timeout for the
// greeting frame.
func (s *Server) currentEngineStatus(ctx context.Context) events.EngineStatusEvent {
	status := events.EngineStatusEvent{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if s.options.Engine != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		status.Available = s.options.Engine.Ping(pingCtx) == nil
		cancel()
	}
	return status
}

// pumpEvents forwards bus events from ch to the SSE sender until the
// client disconnects or a write fails.
func pumpEvents(ctx context.Context, send sse.Sender, ch <-chan any) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			if err := send.Data(ev); err != nil {
				return
			}
		}
	}
}
