package units

import (
	"context"
	"fmt"
	"time"

	"github.com/smazurov/multistream/internal/events"
	"github.com/smazurov/multistream/internal/metrics"
)

// SetBackup pairs two destinations of a unit so the backup takes over when
// the primary fails. The backup is forced into standby: it is disabled and
// stays detached until a failover activates it. Re-pairing replaces any
// existing link on either side.
func (s *Service) SetBackup(ctx context.Context, unitID, primaryID, backupID string) error {
	if primaryID == backupID {
		return NewUnitError(ErrCodeValidation, "destination cannot back itself up", nil)
	}

	m, err := s.getManaged(unitID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	u := m.unit
	primary, _ := u.FindDestination(primaryID)
	if primary == nil {
		m.mu.Unlock()
		return NewUnitError(ErrCodeNotFound, fmt.Sprintf("destination not found: %s", primaryID), nil)
	}
	backup, _ := u.FindDestination(backupID)
	if backup == nil {
		m.mu.Unlock()
		return NewUnitError(ErrCodeNotFound, fmt.Sprintf("destination not found: %s", backupID), nil)
	}

	if primary.IsBackup {
		m.mu.Unlock()
		return NewUnitError(ErrCodeValidation, "destination is itself a backup", nil)
	}
	if backup.BackupID != "" {
		m.mu.Unlock()
		return NewUnitError(ErrCodeValidation, "backup destination has its own backup", nil)
	}

	if primary.BackupID != "" && primary.BackupID != backupID {
		s.logger.Warn("Replacing existing backup", "unit_id", unitID,
			"primary_id", primaryID, "old_backup_id", primary.BackupID)
		if old, _ := u.FindDestination(primary.BackupID); old != nil {
			old.IsBackup = false
			old.PrimaryID = ""
			old.FailoverActive = false
			old.FailoverStart = time.Time{}
		}
	}
	if backup.IsBackup && backup.PrimaryID != "" && backup.PrimaryID != primaryID {
		s.logger.Warn("Backup already linked to another primary, relinking",
			"unit_id", unitID, "backup_id", backupID, "old_primary_id", backup.PrimaryID)
		if other, _ := u.FindDestination(backup.PrimaryID); other != nil {
			other.BackupID = ""
			other.FailoverActive = false
			other.FailoverStart = time.Time{}
		}
	}

	// A standby must not stream. Detach it if it is currently live.
	if backup.Enabled && u.Status == StatusActive && u.ProcessReference != "" && s.engine != nil {
		if procID, resolveErr := s.engine.ResolveProcess(ctx, u.ProcessReference); resolveErr == nil {
			if removeErr := s.engine.RemoveOutput(ctx, procID, backup.ID); removeErr != nil {
				s.logger.Warn("Failed to detach new backup from live process",
					"unit_id", unitID, "destination_id", backupID, "error", removeErr)
			}
		}
	}

	primary.BackupID = backup.ID
	primary.FailoverActive = false
	primary.FailoverStart = time.Time{}
	backup.IsBackup = true
	backup.PrimaryID = primary.ID
	backup.Enabled = false
	backup.Connected = false
	backup.ConsecutiveFailures = 0
	backup.FailoverActive = false
	backup.FailoverStart = time.Time{}
	u.UpdatedAt = time.Now().UTC()
	name := u.Name
	m.mu.Unlock()

	s.persistUnits()
	s.publishUnitUpdated(unitID, name)

	s.logger.Info("Configured backup destination", "unit_id", unitID,
		"primary_id", primaryID, "backup_id", backupID)
	return nil
}

// RemoveBackup dissolves the failover pair configured on a primary
// destination. If a failover is currently active the backup keeps
// streaming as a regular destination; the primary stays disabled.
func (s *Service) RemoveBackup(unitID, primaryID string) error {
	m, err := s.getManaged(unitID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	u := m.unit
	primary, _ := u.FindDestination(primaryID)
	if primary == nil {
		m.mu.Unlock()
		return NewUnitError(ErrCodeNotFound, fmt.Sprintf("destination not found: %s", primaryID), nil)
	}
	if primary.BackupID == "" {
		m.mu.Unlock()
		return NewUnitError(ErrCodeValidation, "destination has no backup configured", nil)
	}

	backupID := primary.BackupID
	s.unlinkDestinationLocked(u, primary)
	u.UpdatedAt = time.Now().UTC()
	name := u.Name
	m.mu.Unlock()

	s.persistUnits()
	s.publishUnitUpdated(unitID, name)

	s.logger.Info("Removed backup link", "unit_id", unitID,
		"primary_id", primaryID, "backup_id", backupID)
	return nil
}

// TriggerFailover switches a primary destination to its configured backup.
// On a live unit the primary output is detached and the backup attached;
// on an idle unit only the flags move, so the next start brings up the
// backup instead of the primary. Already-active failovers are a no-op.
func (s *Service) TriggerFailover(ctx context.Context, unitID, primaryID string) error {
	m, err := s.getManaged(unitID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	u := m.unit
	primary, _ := u.FindDestination(primaryID)
	if primary == nil {
		m.mu.Unlock()
		return NewUnitError(ErrCodeNotFound, fmt.Sprintf("destination not found: %s", primaryID), nil)
	}

	failErr := s.triggerFailoverLocked(ctx, m, primary)
	m.mu.Unlock()

	if failErr != nil {
		return failErr
	}
	s.persistUnits()
	return nil
}

// triggerFailoverLocked performs the swap. Caller must hold the unit lock.
func (s *Service) triggerFailoverLocked(ctx context.Context, m *managedUnit, primary *Destination) error {
	u := m.unit

	if primary.BackupID == "" {
		return NewUnitError(ErrCodeValidation, "destination has no backup configured", nil)
	}
	backup, _ := u.FindDestination(primary.BackupID)
	if backup == nil {
		return NewUnitError(ErrCodeNotFound, fmt.Sprintf("backup destination not found: %s", primary.BackupID), nil)
	}
	if primary.FailoverActive {
		s.logger.Warn("Failover already active", "unit_id", u.ID, "primary_id", primary.ID)
		return nil
	}

	s.logger.Info("Triggering failover", "unit_id", u.ID,
		"primary_id", primary.ID, "backup_id", backup.ID)

	live := u.Status == StatusActive && u.ProcessReference != "" && s.engine != nil
	if live {
		procID, resolveErr := s.engine.ResolveProcess(ctx, u.ProcessReference)
		if resolveErr != nil {
			return NewUnitError(ErrCodeRemoteUnavailable, "failed to resolve live process", resolveErr)
		}

		if primary.Enabled {
			if removeErr := s.engine.RemoveOutput(ctx, procID, primary.ID); removeErr != nil {
				// Leave the primary enabled so health checks keep
				// observing it; the swap still proceeds.
				s.logger.Warn("Failed to detach primary during failover",
					"unit_id", u.ID, "primary_id", primary.ID, "error", removeErr)
			} else {
				primary.Enabled = false
				primary.Connected = false
			}
		}

		filter := BuildVideoFilter(u.EffectiveSourceOrientation(), backup.TargetOrientation)
		if addErr := s.engine.AddOutput(ctx, procID, backup.ID, backup.OutputURL(), filter); addErr != nil {
			// No rollback: the primary stays as the detach left it. While
			// its failure count sits past the threshold the next health
			// tick retries the swap.
			return NewUnitError(ErrCodeRemoteUnavailable, "failed to attach backup output", addErr)
		}
		if !backup.Encoding.IsZero() {
			if encErr := s.engine.UpdateOutputEncoding(ctx, procID, backup.ID, encodingParams(backup.Encoding)); encErr != nil {
				s.logger.Warn("Failed to apply backup encoding",
					"unit_id", u.ID, "destination_id", backup.ID, "error", encErr)
			}
		}
	} else {
		primary.Enabled = false
	}

	backup.Enabled = true
	backup.Connected = false
	backup.ConsecutiveFailures = 0
	backup.ReconnectAttempts = 0

	now := time.Now().UTC()
	primary.FailoverActive = true
	backup.FailoverActive = true
	primary.FailoverStart = now
	backup.FailoverStart = now
	u.UpdatedAt = now

	metrics.IncFailover(u.ID)
	s.publishFailover(u, primary, backup, "triggered")

	s.logger.Info("Failover complete", "unit_id", u.ID,
		"primary_id", primary.ID, "backup_id", backup.ID)
	return nil
}

// RestorePrimary switches a failed-over pair back to the primary. On a
// live unit the primary output is re-attached before the backup is
// detached, so the stream never goes fully dark mid-restore.
func (s *Service) RestorePrimary(ctx context.Context, unitID, primaryID string) error {
	m, err := s.getManaged(unitID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	u := m.unit
	primary, _ := u.FindDestination(primaryID)
	if primary == nil {
		m.mu.Unlock()
		return NewUnitError(ErrCodeNotFound, fmt.Sprintf("destination not found: %s", primaryID), nil)
	}

	restoreErr := s.restorePrimaryLocked(ctx, m, primary)
	m.mu.Unlock()

	if restoreErr != nil {
		return restoreErr
	}
	s.persistUnits()
	return nil
}

// restorePrimaryLocked performs the swap back. Caller must hold the unit lock.
func (s *Service) restorePrimaryLocked(ctx context.Context, m *managedUnit, primary *Destination) error {
	u := m.unit

	if primary.BackupID == "" {
		return NewUnitError(ErrCodeValidation, "destination has no backup configured", nil)
	}
	backup, _ := u.FindDestination(primary.BackupID)
	if backup == nil {
		return NewUnitError(ErrCodeNotFound, fmt.Sprintf("backup destination not found: %s", primary.BackupID), nil)
	}
	if !primary.FailoverActive {
		s.logger.Warn("No active failover to restore", "unit_id", u.ID, "primary_id", primary.ID)
		return nil
	}

	s.logger.Info("Restoring primary", "unit_id", u.ID,
		"primary_id", primary.ID, "backup_id", backup.ID)

	live := u.Status == StatusActive && u.ProcessReference != "" && s.engine != nil
	if live {
		procID, resolveErr := s.engine.ResolveProcess(ctx, u.ProcessReference)
		if resolveErr != nil {
			return NewUnitError(ErrCodeRemoteUnavailable, "failed to resolve live process", resolveErr)
		}

		filter := BuildVideoFilter(u.EffectiveSourceOrientation(), primary.TargetOrientation)
		if addErr := s.engine.AddOutput(ctx, procID, primary.ID, primary.OutputURL(), filter); addErr != nil {
			return NewUnitError(ErrCodeRemoteUnavailable, "failed to re-attach primary output", addErr)
		}
		primary.Enabled = true
		if !primary.Encoding.IsZero() {
			if encErr := s.engine.UpdateOutputEncoding(ctx, procID, primary.ID, encodingParams(primary.Encoding)); encErr != nil {
				s.logger.Warn("Failed to apply primary encoding",
					"unit_id", u.ID, "destination_id", primary.ID, "error", encErr)
			}
		}

		if removeErr := s.engine.RemoveOutput(ctx, procID, backup.ID); removeErr != nil {
			s.logger.Warn("Failed to detach backup during restore",
				"unit_id", u.ID, "backup_id", backup.ID, "error", removeErr)
		}
	} else {
		primary.Enabled = true
	}

	backup.Enabled = false
	backup.Connected = false
	backup.ConsecutiveFailures = 0
	backup.ReconnectAttempts = 0

	duration := time.Duration(0)
	if !primary.FailoverStart.IsZero() {
		duration = time.Since(primary.FailoverStart).Round(time.Second)
	}

	primary.FailoverActive = false
	backup.FailoverActive = false
	primary.FailoverStart = time.Time{}
	backup.FailoverStart = time.Time{}
	primary.ConsecutiveFailures = 0
	primary.ReconnectAttempts = 0
	u.UpdatedAt = time.Now().UTC()

	s.publishFailover(u, primary, backup, "restored")

	s.logger.Info("Primary restored", "unit_id", u.ID,
		"primary_id", primary.ID, "failover_duration", duration)
	return nil
}

// checkFailoverLocked evaluates every failover pair of a live unit: a
// primary past the failure threshold swaps to its backup, and a recovered
// primary swaps back. Caller must hold the unit lock. Returns true when a
// swap happened.
func (s *Service) checkFailoverLocked(ctx context.Context, m *managedUnit) bool {
	u := m.unit
	if u.Status != StatusActive {
		return false
	}

	changed := false
	for i := range u.Destinations {
		d := &u.Destinations[i]
		if d.IsBackup || d.BackupID == "" {
			continue
		}

		if !d.FailoverActive && !d.Connected &&
			u.FailureThreshold > 0 && d.ConsecutiveFailures >= u.FailureThreshold {
			s.logger.Warn("Primary past failure threshold, failing over",
				"unit_id", u.ID, "primary_id", d.ID, "failures", d.ConsecutiveFailures)
			if err := s.triggerFailoverLocked(ctx, m, d); err != nil {
				s.logger.Warn("Automatic failover failed", "unit_id", u.ID,
					"primary_id", d.ID, "error", err)
			} else {
				changed = true
			}
			continue
		}

		if d.FailoverActive && d.Connected && d.ConsecutiveFailures == 0 {
			s.logger.Info("Primary recovered, restoring from backup",
				"unit_id", u.ID, "primary_id", d.ID)
			if err := s.restorePrimaryLocked(ctx, m, d); err != nil {
				s.logger.Warn("Automatic restore failed", "unit_id", u.ID,
					"primary_id", d.ID, "error", err)
			} else {
				changed = true
			}
		}
	}
	return changed
}

func (s *Service) publishFailover(u *StreamUnit, primary, backup *Destination, action string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.FailoverEvent{
		UnitID:    u.ID,
		PrimaryID: primary.ID,
		BackupID:  backup.ID,
		Action:    action,
		Timestamp: eventTimestamp(),
	})
}
