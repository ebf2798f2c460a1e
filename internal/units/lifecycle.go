package units

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smazurov/multistream/internal/restreamer"
)

// encodingParams converts local encoding settings to the engine's wire
// shape. Advisory fields never cross the wire.
func encodingParams(e EncodingSettings) restreamer.EncodingParams {
	return restreamer.EncodingParams{
		VideoBitrateKbps: e.VideoBitrateKbps,
		AudioBitrateKbps: e.AudioBitrateKbps,
		Width:            e.Width,
		Height:           e.Height,
		FPSNum:           e.FPSNum,
		FPSDen:           e.FPSDen,
		Preset:           e.Preset,
		Profile:          e.Profile,
	}
}

// StartUnit brings a unit live on the remote engine. Starting an already
// active unit is a no-op; validation failures leave the unit untouched.
func (s *Service) StartUnit(ctx context.Context, id string) error {
	m, err := s.getManaged(id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	err = s.startLocked(ctx, m)
	m.mu.Unlock()
	return err
}

// startLocked creates the remote process for a unit and registers every
// destination that should go live. Caller must hold the unit lock. On
// success the unit is Active with its monitor running.
func (s *Service) startLocked(ctx context.Context, m *managedUnit) error {
	u := m.unit
	switch u.Status {
	case StatusActive:
		return nil
	case StatusStarting, StatusStopping:
		return NewUnitError(ErrCodeConflict, fmt.Sprintf("unit is %s", u.Status), nil)
	case StatusPreview:
		return NewUnitError(ErrCodeConflict, "unit is in preview", nil)
	}

	indices := u.EnabledDestinations()
	if len(indices) == 0 {
		return NewUnitError(ErrCodeValidation, "no enabled destinations configured", nil)
	}
	if u.InputURL == "" {
		return NewUnitError(ErrCodeValidation, "no input URL configured", nil)
	}
	if s.engine == nil {
		return NewUnitError(ErrCodeRemoteUnavailable, "no engine client configured", nil)
	}

	s.setStatusLocked(u, StatusStarting)

	reference := u.ID
	source := u.EffectiveSourceOrientation()
	outputURLs := make([]string, 0, len(indices))
	for _, i := range indices {
		outputURLs = append(outputURLs, u.Destinations[i].OutputURL())
	}

	s.logger.Info("Starting unit", "unit_id", u.ID, "name", u.Name,
		"outputs", len(outputURLs), "input_url", u.InputURL)

	// A process left over from a previous run would collide on the
	// reference, so clear it before creating a fresh one.
	if staleID, resolveErr := s.engine.ResolveProcess(ctx, reference); resolveErr == nil {
		s.logger.Warn("Deleting stale process before start", "unit_id", u.ID, "process_id", staleID)
		if delErr := s.engine.DeleteProcess(ctx, staleID); delErr != nil {
			s.logger.Warn("Failed to delete stale process", "unit_id", u.ID, "error", delErr)
		}
	}

	if err := s.engine.CreateProcess(ctx, reference, u.InputURL, outputURLs, ""); err != nil {
		u.LastError = err.Error()
		s.setStatusLocked(u, StatusError)
		return NewUnitError(ErrCodeRemoteUnavailable, "failed to create remote process", err)
	}

	// Register destinations as managed outputs so health checks and
	// dynamic ops can address them by stable id. Per-destination
	// orientation filters and encoding profiles attach here.
	if procID, resolveErr := s.engine.ResolveProcess(ctx, reference); resolveErr != nil {
		s.logger.Warn("Process created but not yet resolvable", "unit_id", u.ID, "error", resolveErr)
	} else {
		for _, i := range indices {
			d := &u.Destinations[i]
			filter := BuildVideoFilter(source, d.TargetOrientation)
			if addErr := s.engine.AddOutput(ctx, procID, d.ID, d.OutputURL(), filter); addErr != nil {
				s.logger.Warn("Failed to register output", "unit_id", u.ID,
					"destination_id", d.ID, "error", addErr)
				continue
			}
			if !d.Encoding.IsZero() {
				if encErr := s.engine.UpdateOutputEncoding(ctx, procID, d.ID, encodingParams(d.Encoding)); encErr != nil {
					s.logger.Warn("Failed to apply encoding profile", "unit_id", u.ID,
						"destination_id", d.ID, "error", encErr)
				}
			}
		}
	}

	u.ProcessReference = reference
	u.LastError = ""
	for i := range u.Destinations {
		u.Destinations[i].ConsecutiveFailures = 0
		u.Destinations[i].ReconnectAttempts = 0
	}
	s.setStatusLocked(u, StatusActive)
	s.startMonitorLocked(m)

	s.logger.Info("Unit started", "unit_id", u.ID, "process_reference", reference)
	return nil
}

// StopUnit tears down a unit's remote process. Stopping an inactive unit
// is a no-op.
func (s *Service) StopUnit(ctx context.Context, id string) error {
	m, err := s.getManaged(id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	err = s.stopLocked(ctx, m)
	m.mu.Unlock()
	return err
}

// stopLocked cancels monitoring and deletes the remote process. Caller
// must hold the unit lock. Remote failures are logged but the unit still
// lands Inactive so local state never wedges on a dead engine.
func (s *Service) stopLocked(ctx context.Context, m *managedUnit) error {
	u := m.unit
	if u.Status == StatusInactive {
		return nil
	}

	s.setStatusLocked(u, StatusStopping)
	s.stopMonitorLocked(m)

	if u.ProcessReference != "" && s.engine != nil {
		if procID, err := s.engine.ResolveProcess(ctx, u.ProcessReference); err != nil {
			s.logger.Warn("Could not resolve process during stop", "unit_id", u.ID,
				"process_reference", u.ProcessReference, "error", err)
		} else if delErr := s.engine.DeleteProcess(ctx, procID); delErr != nil {
			s.logger.Warn("Failed to delete remote process", "unit_id", u.ID,
				"process_id", procID, "error", delErr)
		}
	}

	u.ProcessReference = ""
	u.LastError = ""
	u.PreviewDurationSec = 0
	u.PreviewStartTime = time.Time{}
	for i := range u.Destinations {
		d := &u.Destinations[i]
		d.Connected = false
		d.ConsecutiveFailures = 0
		d.ReconnectAttempts = 0
	}
	s.setStatusLocked(u, StatusInactive)

	s.logger.Info("Unit stopped", "unit_id", u.ID)
	return nil
}

// stopMonitorLocked cancels the health monitor and any pending reconnect
// or preview timers. Caller must hold the unit lock. The monitor goroutine
// is not waited for here; it re-checks state under the lock on its next
// tick and exits.
func (s *Service) stopMonitorLocked(m *managedUnit) {
	if m.monitorCancel != nil {
		m.monitorCancel()
		m.monitorCancel = nil
	}
	for id, timer := range m.reconnectTimers {
		timer.Stop()
		delete(m.reconnectTimers, id)
	}
	if m.previewTimer != nil {
		m.previewTimer.Stop()
		m.previewTimer = nil
	}
}

// RestartUnit stops and restarts a unit under one lock hold.
func (s *Service) RestartUnit(ctx context.Context, id string) error {
	m, err := s.getManaged(id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if stopErr := s.stopLocked(ctx, m); stopErr != nil {
		return stopErr
	}
	return s.startLocked(ctx, m)
}

// unitIDs returns the current unit ids in creation order.
func (s *Service) unitIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	return ids
}

// StartAll starts every inactive unit marked for auto-start, in creation
// order. Per-unit failures are joined so one bad unit cannot block the
// rest.
func (s *Service) StartAll(ctx context.Context) error {
	var errs []error
	for _, id := range s.unitIDs() {
		m, err := s.getManaged(id)
		if err != nil {
			continue
		}
		m.mu.Lock()
		if m.unit.AutoStart && m.unit.Status == StatusInactive {
			if startErr := s.startLocked(ctx, m); startErr != nil {
				errs = append(errs, fmt.Errorf("unit %s: %w", id, startErr))
			}
		}
		m.mu.Unlock()
	}
	return errors.Join(errs...)
}

// StopAll stops every unit that is not already inactive.
func (s *Service) StopAll(ctx context.Context) error {
	var errs []error
	for _, id := range s.unitIDs() {
		m, err := s.getManaged(id)
		if err != nil {
			continue
		}
		m.mu.Lock()
		if m.unit.Status != StatusInactive {
			if stopErr := s.stopLocked(ctx, m); stopErr != nil {
				errs = append(errs, fmt.Errorf("unit %s: %w", id, stopErr))
			}
		}
		m.mu.Unlock()
	}
	return errors.Join(errs...)
}

// ResyncEngine reconciles local state with the engine after an
// availability transition. Units that believe they are live but whose
// process vanished are restarted; auto-start units stuck inactive or in
// error are started.
func (s *Service) ResyncEngine(ctx context.Context) error {
	if s.engine == nil {
		return nil
	}

	var errs []error
	for _, id := range s.unitIDs() {
		m, err := s.getManaged(id)
		if err != nil {
			continue
		}

		m.mu.Lock()
		u := m.unit
		switch {
		case u.Status == StatusActive || u.Status == StatusPreview:
			if _, resolveErr := s.engine.ResolveProcess(ctx, u.ProcessReference); resolveErr != nil {
				s.logger.Warn("Process lost while engine was away, restarting unit",
					"unit_id", u.ID, "process_reference", u.ProcessReference)
				if stopErr := s.stopLocked(ctx, m); stopErr != nil {
					errs = append(errs, fmt.Errorf("unit %s: %w", id, stopErr))
				} else if startErr := s.startLocked(ctx, m); startErr != nil {
					errs = append(errs, fmt.Errorf("unit %s: %w", id, startErr))
				}
			}
		case u.AutoStart && (u.Status == StatusInactive || u.Status == StatusError):
			if startErr := s.startLocked(ctx, m); startErr != nil {
				errs = append(errs, fmt.Errorf("unit %s: %w", id, startErr))
			}
		}
		m.mu.Unlock()
	}
	return errors.Join(errs...)
}
