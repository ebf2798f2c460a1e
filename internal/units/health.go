package units

import (
	"context"
	"time"

	"github.com/smazurov/multistream/internal/events"
	"github.com/smazurov/multistream/internal/metrics"
)

// startMonitorLocked launches the unit's monitor goroutine. Caller must
// hold the unit lock. The monitor owns the health ticker; reconnect and
// preview timers are tracked on the managed unit so stop can cancel them.
func (s *Service) startMonitorLocked(m *managedUnit) {
	if m.monitorCancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(s.rootCtx)
	m.monitorCancel = cancel

	interval := time.Duration(m.unit.HealthCheckIntervalSec) * time.Second
	if interval <= 0 {
		interval = DefaultHealthCheckIntervalSec * time.Second
	}

	id := m.unit.ID
	s.wg.Add(1)
	go s.runMonitor(ctx, id, interval)
}

func (s *Service) runMonitor(ctx context.Context, id string, interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.CheckHealth(ctx, id); err != nil {
				s.logger.Warn("Health check failed", "unit_id", id, "error", err)
			}
		}
	}
}

// CheckHealth runs one health tick for a unit and reports whether every
// enabled destination was healthy. A unit that is not live, or has
// monitoring disabled, is trivially healthy.
func (s *Service) CheckHealth(ctx context.Context, id string) (bool, error) {
	m, err := s.getManaged(id)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	healthy, changed, err := s.checkHealthLocked(ctx, m)
	m.mu.Unlock()

	if changed {
		s.persistUnits()
	}
	return healthy, err
}

// checkHealthLocked performs the tick body. Caller must hold the unit
// lock. The changed result reports whether persisted fields moved
// (failover flags, permanently disabled destinations).
func (s *Service) checkHealthLocked(ctx context.Context, m *managedUnit) (bool, bool, error) {
	u := m.unit

	if ctx.Err() != nil {
		return true, false, nil
	}

	if u.Status == StatusPreview && CheckPreviewTimeout(u) {
		s.logger.Info("Preview duration elapsed, cancelling", "unit_id", u.ID)
		return true, false, s.cancelPreviewLocked(ctx, m)
	}

	if (u.Status != StatusActive && u.Status != StatusPreview) || !u.HealthMonitoringEnabled {
		return true, false, nil
	}
	if s.engine == nil {
		return true, false, nil
	}
	if u.ProcessReference == "" {
		return false, false, NewUnitError(ErrCodeValidation, "live unit has no process reference", nil)
	}

	procID, resolveErr := s.engine.ResolveProcess(ctx, u.ProcessReference)
	if resolveErr != nil {
		return false, false, NewUnitError(ErrCodeRemoteUnavailable, "process not found during health check", resolveErr)
	}

	state, stateErr := s.engine.GetProcessState(ctx, procID)
	if stateErr != nil {
		return false, false, NewUnitError(ErrCodeRemoteUnavailable, "failed to fetch process state", stateErr)
	}

	outputs, outErr := s.engine.ListOutputs(ctx, procID)
	if outErr != nil {
		// Treated as "nothing attached": every destination fails this
		// tick rather than silently skipping the check.
		s.logger.Warn("Failed to list outputs during health check", "unit_id", u.ID, "error", outErr)
	}
	attached := make(map[string]bool, len(outputs))
	for _, outputID := range outputs {
		attached[outputID] = true
	}

	now := time.Now().UTC()
	allHealthy := true
	changed := false

	for i := range u.Destinations {
		d := &u.Destinations[i]
		if !d.Enabled {
			continue
		}
		d.LastHealthCheck = now
		wasConnected := d.Connected

		if state.Running && attached[d.ID] {
			d.Connected = true
			d.ConsecutiveFailures = 0
			d.ReconnectAttempts = 0
			if !wasConnected {
				s.publishDestinationHealth(u, d)
			}
		} else {
			d.Connected = false
			d.ConsecutiveFailures++
			allHealthy = false
			s.logger.Warn("Destination unhealthy", "unit_id", u.ID,
				"destination_id", d.ID, "failures", d.ConsecutiveFailures,
				"process_running", state.Running, "output_attached", attached[d.ID])
			if wasConnected || d.ConsecutiveFailures == 1 {
				s.publishDestinationHealth(u, d)
			}
			if d.AutoReconnect && u.FailureThreshold > 0 && d.ConsecutiveFailures >= u.FailureThreshold {
				if s.scheduleReconnectLocked(ctx, m, d, procID) {
					changed = true
				}
			}
		}

		metrics.SetDestinationHealth(u.ID, d.ID, string(d.Platform), d.Connected, d.ConsecutiveFailures)
	}

	s.recordProgressLocked(u, state.Progress.FPS, float64(state.Progress.Bitrate),
		state.Progress.Bytes(), state.Progress.Frames, state.Progress.DroppedFrames)

	if s.checkFailoverLocked(ctx, m) {
		changed = true
	}

	return allHealthy, changed, nil
}

// recordProgressLocked mirrors engine progress into destination counters
// and the metrics registry. The engine reports per-process totals only,
// so connected destinations carry the process figures.
func (s *Service) recordProgressLocked(u *StreamUnit, fps, bitrateKbit float64, bytesSent, frames, dropped uint64) {
	for i := range u.Destinations {
		d := &u.Destinations[i]
		if d.Enabled && d.Connected {
			d.BytesSent = bytesSent
			d.DroppedFrames = dropped
		}
	}
	metrics.UpdateUnitProgress(u.ID, fps, bitrateKbit, bytesSent, frames, dropped)
}

func (s *Service) publishDestinationHealth(u *StreamUnit, d *Destination) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.DestinationHealthEvent{
		UnitID:        u.ID,
		DestinationID: d.ID,
		Platform:      string(d.Platform),
		Connected:     d.Connected,
		Failures:      d.ConsecutiveFailures,
		Timestamp:     eventTimestamp(),
	})
}

func (s *Service) publishReconnect(u *StreamUnit, d *Destination, attempt int, action string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.ReconnectEvent{
		UnitID:        u.ID,
		DestinationID: d.ID,
		Attempt:       attempt,
		DelaySeconds:  u.ReconnectDelaySec,
		Action:        action,
		Timestamp:     eventTimestamp(),
	})
}

// scheduleReconnectLocked detaches an unhealthy output and arms a timer to
// re-add it after the unit's reconnect delay. Caller must hold the unit
// lock. Returns true when a persisted field changed (the destination was
// permanently disabled).
func (s *Service) scheduleReconnectLocked(ctx context.Context, m *managedUnit, d *Destination, procID string) bool {
	u := m.unit
	if u.Status != StatusActive || u.ProcessReference == "" {
		return false
	}
	if _, pending := m.reconnectTimers[d.ID]; pending {
		return false
	}

	if u.MaxReconnectAttempts > 0 && d.ReconnectAttempts >= u.MaxReconnectAttempts {
		s.logger.Warn("Reconnect attempts exhausted, disabling destination",
			"unit_id", u.ID, "destination_id", d.ID, "attempts", d.ReconnectAttempts)
		d.Enabled = false
		d.Connected = false
		s.publishReconnect(u, d, d.ReconnectAttempts, "exhausted")
		return true
	}

	d.ReconnectAttempts++
	attempt := d.ReconnectAttempts
	delay := time.Duration(u.ReconnectDelaySec) * time.Second

	s.logger.Info("Scheduling reconnect", "unit_id", u.ID, "destination_id", d.ID,
		"attempt", attempt, "delay_sec", u.ReconnectDelaySec)

	// Detach now so the engine drops the wedged connection; the timer
	// re-adds the output once the delay elapses.
	if err := s.engine.RemoveOutput(ctx, procID, d.ID); err != nil {
		s.logger.Debug("Output detach before reconnect failed", "unit_id", u.ID,
			"destination_id", d.ID, "error", err)
	}

	s.publishReconnect(u, d, attempt, "scheduled")
	metrics.IncReconnect(u.ID, d.ID)

	if m.reconnectTimers == nil {
		m.reconnectTimers = make(map[string]*time.Timer)
	}
	unitID, destinationID := u.ID, d.ID
	m.reconnectTimers[destinationID] = time.AfterFunc(delay, func() {
		s.completeReconnect(unitID, destinationID, attempt)
	})
	return false
}

// completeReconnect is the timer half of a reconnect: re-resolve the
// process and re-add the output. Runs on the timer goroutine; any state
// that moved while the delay elapsed (stop, delete, disable) aborts it.
func (s *Service) completeReconnect(unitID, destinationID string, attempt int) {
	ctx := s.rootCtx
	if ctx.Err() != nil {
		return
	}

	m, err := s.getManaged(unitID)
	if err != nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.reconnectTimers, destinationID)

	u := m.unit
	d, _ := u.FindDestination(destinationID)
	if d == nil || !d.Enabled || u.Status != StatusActive || u.ProcessReference == "" || s.engine == nil {
		return
	}

	procID, resolveErr := s.engine.ResolveProcess(ctx, u.ProcessReference)
	if resolveErr != nil {
		s.logger.Warn("Reconnect failed: process not resolvable", "unit_id", unitID,
			"destination_id", destinationID, "attempt", attempt, "error", resolveErr)
		s.publishReconnect(u, d, attempt, "failed")
		return
	}

	filter := BuildVideoFilter(u.EffectiveSourceOrientation(), d.TargetOrientation)
	if addErr := s.engine.AddOutput(ctx, procID, d.ID, d.OutputURL(), filter); addErr != nil {
		s.logger.Warn("Reconnect attempt failed", "unit_id", unitID,
			"destination_id", destinationID, "attempt", attempt, "error", addErr)
		s.publishReconnect(u, d, attempt, "failed")
		return
	}

	if !d.Encoding.IsZero() {
		if encErr := s.engine.UpdateOutputEncoding(ctx, procID, d.ID, encodingParams(d.Encoding)); encErr != nil {
			s.logger.Warn("Failed to re-apply encoding after reconnect", "unit_id", unitID,
				"destination_id", destinationID, "error", encErr)
		}
	}

	d.Connected = true
	d.ConsecutiveFailures = 0
	d.ReconnectAttempts = 0

	s.logger.Info("Reconnect succeeded", "unit_id", unitID,
		"destination_id", destinationID, "attempt", attempt)
	s.publishReconnect(u, d, attempt, "succeeded")
	s.publishDestinationHealth(u, d)
}
