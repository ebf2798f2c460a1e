package units

import (
	"context"
	"sort"
	"time"
)

// BulkItemResult reports the outcome of one item in a bulk destination
// operation. Index is the caller-supplied display index; DestinationID is
// filled when the index resolved to a destination.
type BulkItemResult struct {
	Index         int    `json:"index"`
	DestinationID string `json:"destination_id,omitempty"`
	OK            bool   `json:"ok"`
	Error         string `json:"error,omitempty"`
}

func bulkOK(results []BulkItemResult) (succeeded, failed int) {
	for _, r := range results {
		if r.OK {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

// BulkSetEnabled enables or disables several destinations by display
// index. Individual failures do not stop the batch. Backup destinations
// are rejected per item; their enabled flag belongs to failover.
func (s *Service) BulkSetEnabled(ctx context.Context, unitID string, indices []int, enabled bool) ([]BulkItemResult, error) {
	if len(indices) == 0 {
		return nil, NewUnitError(ErrCodeValidation, "no destinations specified", nil)
	}

	m, err := s.getManaged(unitID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	u := m.unit
	results := make([]BulkItemResult, 0, len(indices))
	mutated := false

	for _, idx := range indices {
		if idx < 0 || idx >= len(u.Destinations) {
			results = append(results, BulkItemResult{Index: idx, Error: "invalid destination index"})
			continue
		}
		d := &u.Destinations[idx]
		r := BulkItemResult{Index: idx, DestinationID: d.ID}

		switch {
		case d.IsBackup:
			r.Error = "backup destinations are switched through failover"
		case d.Enabled == enabled:
			r.OK = true
		default:
			if setErr := s.setEnabledLocked(ctx, u, d, enabled); setErr != nil {
				r.Error = setErr.Error()
			} else {
				r.OK = true
				mutated = true
			}
		}
		results = append(results, r)
	}

	if mutated {
		u.UpdatedAt = time.Now().UTC()
	}
	name := u.Name
	m.mu.Unlock()

	if mutated {
		s.persistUnits()
		s.publishUnitUpdated(unitID, name)
	}

	succeeded, failed := bulkOK(results)
	s.logger.Info("Bulk enable/disable complete", "unit_id", unitID,
		"enabled", enabled, "succeeded", succeeded, "failed", failed)
	return results, nil
}

// BulkDelete removes several destinations by display index. Indices are
// processed in descending order so earlier removals never shift the
// targets of later ones; duplicate indices fail individually. Backup
// links touching a deleted destination are dissolved first.
func (s *Service) BulkDelete(ctx context.Context, unitID string, indices []int) ([]BulkItemResult, error) {
	if len(indices) == 0 {
		return nil, NewUnitError(ErrCodeValidation, "no destinations specified", nil)
	}

	m, err := s.getManaged(unitID)
	if err != nil {
		return nil, err
	}

	ordered := make([]int, len(indices))
	copy(ordered, indices)
	sort.Sort(sort.Reverse(sort.IntSlice(ordered)))

	m.mu.Lock()
	u := m.unit
	results := make([]BulkItemResult, 0, len(ordered))
	seen := make(map[int]bool, len(ordered))
	mutated := false

	for _, idx := range ordered {
		if seen[idx] {
			results = append(results, BulkItemResult{Index: idx, Error: "duplicate index"})
			continue
		}
		seen[idx] = true

		if idx < 0 || idx >= len(u.Destinations) {
			results = append(results, BulkItemResult{Index: idx, Error: "invalid destination index"})
			continue
		}
		d := &u.Destinations[idx]
		r := BulkItemResult{Index: idx, DestinationID: d.ID}

		s.unlinkDestinationLocked(u, d)
		if u.IsRunning() && d.Enabled && u.ProcessReference != "" && s.engine != nil {
			if procID, resolveErr := s.engine.ResolveProcess(ctx, u.ProcessReference); resolveErr == nil {
				if removeErr := s.engine.RemoveOutput(ctx, procID, d.ID); removeErr != nil {
					s.logger.Warn("Failed to remove live output during bulk delete",
						"unit_id", unitID, "destination_id", d.ID, "error", removeErr)
				}
			}
		}
		u.Destinations = append(u.Destinations[:idx], u.Destinations[idx+1:]...)
		r.OK = true
		mutated = true
		results = append(results, r)
	}

	if mutated {
		u.UpdatedAt = time.Now().UTC()
	}
	name := u.Name
	m.mu.Unlock()

	if mutated {
		s.persistUnits()
		s.publishUnitUpdated(unitID, name)
	}

	succeeded, failed := bulkOK(results)
	s.logger.Info("Bulk delete complete", "unit_id", unitID,
		"succeeded", succeeded, "failed", failed)
	return results, nil
}

// BulkUpdateEncoding applies one encoding settings value to several
// destinations by display index. On an active unit the change is also
// pushed to the live process; a failed push fails that item but keeps the
// stored settings, which apply on the next start.
func (s *Service) BulkUpdateEncoding(ctx context.Context, unitID string, indices []int, encoding EncodingSettings) ([]BulkItemResult, error) {
	if len(indices) == 0 {
		return nil, NewUnitError(ErrCodeValidation, "no destinations specified", nil)
	}

	m, err := s.getManaged(unitID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	u := m.unit

	var procID string
	live := u.Status == StatusActive && u.ProcessReference != "" && s.engine != nil
	if live {
		resolved, resolveErr := s.engine.ResolveProcess(ctx, u.ProcessReference)
		if resolveErr != nil {
			s.logger.Warn("Could not resolve live process for bulk encoding update",
				"unit_id", unitID, "error", resolveErr)
			live = false
		} else {
			procID = resolved
		}
	}

	results := make([]BulkItemResult, 0, len(indices))
	mutated := false

	for _, idx := range indices {
		if idx < 0 || idx >= len(u.Destinations) {
			results = append(results, BulkItemResult{Index: idx, Error: "invalid destination index"})
			continue
		}
		d := &u.Destinations[idx]
		r := BulkItemResult{Index: idx, DestinationID: d.ID, OK: true}

		d.Encoding = encoding
		mutated = true

		if live && d.Enabled && !encoding.IsZero() {
			if encErr := s.engine.UpdateOutputEncoding(ctx, procID, d.ID, encodingParams(encoding)); encErr != nil {
				r.OK = false
				r.Error = "live encoding update failed: " + encErr.Error()
			}
		}
		results = append(results, r)
	}

	if mutated {
		u.UpdatedAt = time.Now().UTC()
	}
	name := u.Name
	m.mu.Unlock()

	if mutated {
		s.persistUnits()
		s.publishUnitUpdated(unitID, name)
	}

	succeeded, failed := bulkOK(results)
	s.logger.Info("Bulk encoding update complete", "unit_id", unitID,
		"succeeded", succeeded, "failed", failed)
	return results, nil
}

// BulkStart attaches several currently disabled destinations to a live
// unit. Unlike BulkSetEnabled it refuses to run on a unit that is not
// Active: it exists to bring outputs into an ongoing stream.
func (s *Service) BulkStart(ctx context.Context, unitID string, indices []int) ([]BulkItemResult, error) {
	return s.bulkToggleLive(ctx, unitID, indices, true)
}

// BulkStop detaches several destinations from a live unit.
func (s *Service) BulkStop(ctx context.Context, unitID string, indices []int) ([]BulkItemResult, error) {
	return s.bulkToggleLive(ctx, unitID, indices, false)
}

func (s *Service) bulkToggleLive(ctx context.Context, unitID string, indices []int, enabled bool) ([]BulkItemResult, error) {
	if len(indices) == 0 {
		return nil, NewUnitError(ErrCodeValidation, "no destinations specified", nil)
	}

	m, err := s.getManaged(unitID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	u := m.unit
	if u.Status != StatusActive {
		m.mu.Unlock()
		return nil, NewUnitError(ErrCodeConflict, "unit is not active", nil)
	}

	results := make([]BulkItemResult, 0, len(indices))
	mutated := false

	for _, idx := range indices {
		if idx < 0 || idx >= len(u.Destinations) {
			results = append(results, BulkItemResult{Index: idx, Error: "invalid destination index"})
			continue
		}
		d := &u.Destinations[idx]
		r := BulkItemResult{Index: idx, DestinationID: d.ID}

		switch {
		case d.Enabled == enabled:
			r.OK = true
		case d.IsBackup:
			r.Error = "backup destinations are switched through failover"
		default:
			if setErr := s.setEnabledLocked(ctx, u, d, enabled); setErr != nil {
				r.Error = setErr.Error()
			} else {
				r.OK = true
				mutated = true
			}
		}
		results = append(results, r)
	}

	if mutated {
		u.UpdatedAt = time.Now().UTC()
	}
	name := u.Name
	m.mu.Unlock()

	if mutated {
		s.persistUnits()
		s.publishUnitUpdated(unitID, name)
	}

	succeeded, failed := bulkOK(results)
	s.logger.Info("Bulk output toggle complete", "unit_id", unitID,
		"enabled", enabled, "succeeded", succeeded, "failed", failed)
	return results, nil
}
