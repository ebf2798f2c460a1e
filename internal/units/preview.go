package units

import (
	"context"
	"fmt"
	"time"
)

// CheckPreviewTimeout reports whether a unit's preview window has elapsed.
// A zero duration means the preview runs until explicitly ended.
func CheckPreviewTimeout(u *StreamUnit) bool {
	if u.PreviewDurationSec == 0 || u.PreviewStartTime.IsZero() {
		return false
	}
	return time.Since(u.PreviewStartTime) >= time.Duration(u.PreviewDurationSec)*time.Second
}

// StartPreview starts a unit in preview mode: the stream goes live to its
// destinations but the unit reports Preview and auto-stops when durationSec
// elapses. Duration 0 previews until cancelled or promoted. Only an
// inactive unit can enter preview.
func (s *Service) StartPreview(ctx context.Context, id string, durationSec int) error {
	if durationSec < 0 {
		return NewUnitError(ErrCodeValidation, "preview duration cannot be negative", nil)
	}

	m, err := s.getManaged(id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.unit
	if u.Status != StatusInactive {
		return NewUnitError(ErrCodeConflict, fmt.Sprintf("cannot start preview while unit is %s", u.Status), nil)
	}

	u.PreviewDurationSec = durationSec
	if startErr := s.startLocked(ctx, m); startErr != nil {
		u.PreviewDurationSec = 0
		u.PreviewStartTime = time.Time{}
		return startErr
	}

	u.PreviewStartTime = time.Now().UTC()
	s.setStatusLocked(u, StatusPreview)

	if durationSec > 0 {
		m.previewTimer = time.AfterFunc(time.Duration(durationSec)*time.Second, func() {
			s.expirePreview(id)
		})
	}

	s.logger.Info("Preview started", "unit_id", id, "duration_sec", durationSec)
	return nil
}

// PreviewToLive promotes a previewing unit to fully live. The stream is
// already running, so only the status and preview bookkeeping change.
func (s *Service) PreviewToLive(id string) error {
	m, err := s.getManaged(id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.unit
	if u.Status != StatusPreview {
		return NewUnitError(ErrCodeConflict, fmt.Sprintf("unit is not in preview, current status: %s", u.Status), nil)
	}

	if m.previewTimer != nil {
		m.previewTimer.Stop()
		m.previewTimer = nil
	}
	u.PreviewDurationSec = 0
	u.PreviewStartTime = time.Time{}
	u.LastError = ""
	s.setStatusLocked(u, StatusActive)

	s.logger.Info("Preview promoted to live", "unit_id", id)
	return nil
}

// CancelPreview ends a preview and stops the unit.
func (s *Service) CancelPreview(ctx context.Context, id string) error {
	m, err := s.getManaged(id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.unit
	if u.Status != StatusPreview {
		return NewUnitError(ErrCodeConflict, fmt.Sprintf("unit is not in preview, current status: %s", u.Status), nil)
	}
	return s.cancelPreviewLocked(ctx, m)
}

// cancelPreviewLocked tears the preview down. Caller must hold the unit
// lock. stopLocked clears the preview fields and timers along with the
// rest of the runtime state.
func (s *Service) cancelPreviewLocked(ctx context.Context, m *managedUnit) error {
	return s.stopLocked(ctx, m)
}

// expirePreview is the preview timer callback. The monitor loop also
// checks the timeout each tick, so this only needs to handle the common
// case precisely; a unit already promoted or stopped is left alone.
func (s *Service) expirePreview(id string) {
	if s.rootCtx.Err() != nil {
		return
	}

	m, err := s.getManaged(id)
	if err != nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.previewTimer = nil
	if m.unit.Status != StatusPreview {
		return
	}

	s.logger.Info("Preview duration elapsed, stopping", "unit_id", id)
	if stopErr := s.cancelPreviewLocked(s.rootCtx, m); stopErr != nil {
		s.logger.Warn("Failed to stop expired preview", "unit_id", id, "error", stopErr)
	}
}
