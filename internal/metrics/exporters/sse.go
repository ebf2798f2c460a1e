package exporters

import (
	"context"
	"sync"
	"time"

	"github.com/smazurov/multistream/internal/events"
	"github.com/smazurov/multistream/internal/metrics"
)

// EventPublisher is the slice of the event bus the exporter needs.
type EventPublisher interface {
	Publish(ev events.Event)
}

// SSEExporter periodically turns the cached unit metrics into
// UnitMetricsEvents for dashboard SSE subscribers.
type SSEExporter struct {
	bus      EventPublisher
	interval time.Duration
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewSSEExporter creates an exporter publishing once per second.
func NewSSEExporter(bus EventPublisher) *SSEExporter {
	return &SSEExporter{bus: bus, interval: time.Second}
}

// Start launches the export loop.
func (s *SSEExporter) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop halts the loop and waits for it to exit. Safe to call more than
// once or before Start.
func (s *SSEExporter) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *SSEExporter) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep publishes one event per unit that is actually pushing media.
func (s *SSEExporter) sweep() {
	for unitID, m := range metrics.GetAllUnitMetrics() {
		// Idle units keep a status series but have nothing to report.
		if m.Status != "active" && m.Status != "preview" {
			continue
		}
		s.bus.Publish(events.UnitMetricsEvent{
			EventType:     "unit_metrics",
			UnitID:        unitID,
			FPS:           m.FPS,
			BitrateKbit:   m.BitrateKbit,
			BytesSent:     m.BytesSent,
			Frames:        m.Frames,
			DroppedFrames: m.DroppedFrames,
		})
	}
}

// GetEventTypes names the SSE message types for endpoint registration.
func GetEventTypes() map[string]any {
	return map[string]any{
		"unit-metrics": events.UnitMetricsEvent{},
	}
}
