package units

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/multistream/internal/events"
	"github.com/smazurov/multistream/internal/logging"
	"github.com/smazurov/multistream/internal/metrics"
)

// Defaults applied when a unit is created or health monitoring is enabled
// with unset policy fields.
const (
	DefaultInputURL               = "rtmp://localhost/live/obs_input"
	DefaultHealthCheckIntervalSec = 30
	DefaultFailureThreshold       = 3
	DefaultMaxReconnectAttempts   = 5
	DefaultReconnectDelaySec      = 5
)

// ServiceOptions contains dependencies for the unit manager.
type ServiceOptions struct {
	Engine Engine      // Remote engine client, may be nil until configured
	Store  Store       // Persistence backend, nil disables persistence
	Bus    *events.Bus // Event bus for lifecycle notifications
}

// Service manages stream units: CRUD, lifecycle, health monitoring and
// failover. Mutations run under a per-unit lock so slow remote calls on
// one unit never stall operations on another.
type Service struct {
	mu        sync.RWMutex
	units     map[string]*managedUnit
	order     []string
	templates []Template

	engine Engine
	store  Store
	bus    *events.Bus
	logger *slog.Logger

	rootCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// managedUnit pairs a unit with its exclusive lock and monitor state.
// The unit pointer and all timer fields are guarded by mu.
type managedUnit struct {
	mu   sync.Mutex
	unit *StreamUnit

	monitorCancel   context.CancelFunc
	reconnectTimers map[string]*time.Timer
	previewTimer    *time.Timer
}

// NewService creates a unit manager. Call LoadFromStore before serving
// requests and Close on shutdown.
func NewService(opts ServiceOptions) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		units:     make(map[string]*managedUnit),
		templates: builtinTemplates(),
		engine:    opts.Engine,
		store:     opts.Store,
		bus:       opts.Bus,
		logger:    logging.GetLogger("units"),
		rootCtx:   ctx,
		cancel:    cancel,
	}
}

// LoadFromStore loads persisted units and custom templates. Runtime state
// always starts inactive regardless of what the process was doing when it
// last exited.
func (s *Service) LoadFromStore() error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Load(); err != nil {
		return err
	}

	stored := s.store.Units()
	custom := s.store.CustomTemplates()

	s.mu.Lock()
	for i := range stored {
		unit := stored[i]
		unit.Status = StatusInactive
		if _, exists := s.units[unit.ID]; exists {
			s.logger.Warn("Skipping duplicate unit id in store", "unit_id", unit.ID)
			continue
		}
		s.units[unit.ID] = &managedUnit{unit: &unit}
		s.order = append(s.order, unit.ID)
	}
	s.templates = append(builtinTemplates(), custom...)
	s.mu.Unlock()

	s.logger.Info("Loaded units from store", "units", len(stored), "custom_templates", len(custom))
	return nil
}

// Close stops all units, cancels monitors and waits for them to exit.
func (s *Service) Close() error {
	err := s.StopAll(context.Background())
	s.cancel()
	s.wg.Wait()
	return err
}

// getManaged looks up a unit handle by id.
func (s *Service) getManaged(id string) (*managedUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.units[id]
	if !ok {
		return nil, NewUnitError(ErrCodeNotFound, fmt.Sprintf("unit not found: %s", id), nil)
	}
	return m, nil
}

// persistUnits snapshots every unit and writes the collection through the
// store. Callers must not hold any unit lock.
func (s *Service) persistUnits() {
	if s.store == nil {
		return
	}

	s.mu.RLock()
	handles := make([]*managedUnit, 0, len(s.order))
	for _, id := range s.order {
		if m, ok := s.units[id]; ok {
			handles = append(handles, m)
		}
	}
	s.mu.RUnlock()

	snapshot := make([]StreamUnit, 0, len(handles))
	for _, m := range handles {
		m.mu.Lock()
		snapshot = append(snapshot, *m.unit.Clone())
		m.mu.Unlock()
	}

	if err := s.store.SaveUnits(snapshot); err != nil {
		s.logger.Error("Failed to persist units", "error", err)
	}
}

func eventTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// setStatusLocked transitions a unit's status and publishes the change.
// Caller must hold the unit lock.
func (s *Service) setStatusLocked(u *StreamUnit, status UnitStatus) {
	if u.Status == status {
		return
	}
	old := u.Status
	u.Status = status
	metrics.SetUnitStatus(u.ID, string(status))
	if s.bus != nil {
		s.bus.Publish(events.UnitStatusChangedEvent{
			UnitID:    u.ID,
			Name:      u.Name,
			OldStatus: string(old),
			NewStatus: string(status),
			Error:     u.LastError,
			Timestamp: eventTimestamp(),
		})
	}
}

func (s *Service) publishUnitUpdated(id, name string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.UnitUpdatedEvent{
		UnitID:    id,
		Name:      name,
		Action:    "updated",
		Timestamp: eventTimestamp(),
	})
}

// UnitCreateParams contains parameters for creating a new unit.
type UnitCreateParams struct {
	Name      string
	InputURL  string // Optional, defaults to the local ingest
	AutoStart bool
}

// CreateUnit creates a unit with monitoring defaults and persists it.
func (s *Service) CreateUnit(params UnitCreateParams) (*StreamUnit, error) {
	if params.Name == "" {
		return nil, NewUnitError(ErrCodeValidation, "unit name is required", nil)
	}

	now := time.Now().UTC()
	unit := &StreamUnit{
		ID:                      generateUnitID(),
		Name:                    params.Name,
		InputURL:                params.InputURL,
		SourceOrientation:       OrientationAuto,
		AutoDetectOrientation:   true,
		AutoStart:               params.AutoStart,
		AutoReconnect:           true,
		ReconnectDelaySec:       DefaultReconnectDelaySec,
		MaxReconnectAttempts:    DefaultMaxReconnectAttempts,
		HealthMonitoringEnabled: true,
		HealthCheckIntervalSec:  DefaultHealthCheckIntervalSec,
		FailureThreshold:        DefaultFailureThreshold,
		Status:                  StatusInactive,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if unit.InputURL == "" {
		unit.InputURL = DefaultInputURL
	}

	s.mu.Lock()
	s.units[unit.ID] = &managedUnit{unit: unit}
	s.order = append(s.order, unit.ID)
	s.mu.Unlock()

	s.persistUnits()

	if s.bus != nil {
		s.bus.Publish(events.UnitCreatedEvent{
			UnitID:    unit.ID,
			Name:      unit.Name,
			Action:    "created",
			Timestamp: eventTimestamp(),
		})
	}

	s.logger.Info("Created unit", "unit_id", unit.ID, "name", unit.Name)
	return unit.Clone(), nil
}

// GetUnit returns a snapshot of a unit.
func (s *Service) GetUnit(id string) (*StreamUnit, error) {
	m, err := s.getManaged(id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unit.Clone(), nil
}

// ListUnits returns snapshots of all units in creation order.
func (s *Service) ListUnits() []StreamUnit {
	s.mu.RLock()
	handles := make([]*managedUnit, 0, len(s.order))
	for _, id := range s.order {
		if m, ok := s.units[id]; ok {
			handles = append(handles, m)
		}
	}
	s.mu.RUnlock()

	out := make([]StreamUnit, 0, len(handles))
	for _, m := range handles {
		m.mu.Lock()
		out = append(out, *m.unit.Clone())
		m.mu.Unlock()
	}
	return out
}

// DeleteUnit stops a unit if needed and removes it. The unit disappears
// from the collection before the remote teardown so no new operation can
// race the delete.
func (s *Service) DeleteUnit(ctx context.Context, id string) error {
	s.mu.Lock()
	m, ok := s.units[id]
	if !ok {
		s.mu.Unlock()
		return NewUnitError(ErrCodeNotFound, fmt.Sprintf("unit not found: %s", id), nil)
	}
	delete(s.units, id)
	for i, uid := range s.order {
		if uid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	m.mu.Lock()
	name := m.unit.Name
	if m.unit.Status != StatusInactive {
		s.stopLocked(ctx, m)
	}
	m.mu.Unlock()

	s.persistUnits()
	metrics.DeleteUnitMetrics(id)

	if s.bus != nil {
		s.bus.Publish(events.UnitDeletedEvent{
			UnitID:    id,
			Action:    "deleted",
			Timestamp: eventTimestamp(),
		})
	}

	s.logger.Info("Deleted unit", "unit_id", id, "name", name)
	return nil
}

// UnitUpdateParams contains optional updates to a unit's configuration.
// Nil fields are left unchanged.
type UnitUpdateParams struct {
	Name                    *string
	InputURL                *string
	SourceOrientation       *Orientation
	AutoDetectOrientation   *bool
	SourceWidth             *int
	SourceHeight            *int
	AutoStart               *bool
	AutoReconnect           *bool
	ReconnectDelaySec       *int
	MaxReconnectAttempts    *int
	HealthMonitoringEnabled *bool
	HealthCheckIntervalSec  *int
	FailureThreshold        *int
}

func (p *UnitUpdateParams) validate() error {
	if p.Name != nil && *p.Name == "" {
		return NewUnitError(ErrCodeValidation, "unit name cannot be empty", nil)
	}
	if p.InputURL != nil && *p.InputURL == "" {
		return NewUnitError(ErrCodeValidation, "input URL cannot be empty", nil)
	}
	if p.SourceOrientation != nil && !validOrientation(*p.SourceOrientation) {
		return NewUnitError(ErrCodeValidation, fmt.Sprintf("unknown orientation: %s", *p.SourceOrientation), nil)
	}
	for name, v := range map[string]*int{
		"reconnect_delay_sec":       p.ReconnectDelaySec,
		"max_reconnect_attempts":    p.MaxReconnectAttempts,
		"health_check_interval_sec": p.HealthCheckIntervalSec,
		"failure_threshold":         p.FailureThreshold,
	} {
		if v != nil && *v < 0 {
			return NewUnitError(ErrCodeValidation, fmt.Sprintf("%s cannot be negative", name), nil)
		}
	}
	return nil
}

func validOrientation(o Orientation) bool {
	switch o {
	case OrientationAuto, OrientationHorizontal, OrientationVertical, OrientationSquare:
		return true
	}
	return false
}

// UpdateUnit applies configuration changes to a unit. Enabling health
// monitoring fills unset policy fields with defaults and turns on
// auto-reconnect for every destination, mirroring what operators expect
// from a single switch.
func (s *Service) UpdateUnit(id string, params UnitUpdateParams) (*StreamUnit, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	m, err := s.getManaged(id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	u := m.unit
	restartMonitor := false

	if params.Name != nil {
		u.Name = *params.Name
	}
	if params.InputURL != nil {
		u.InputURL = *params.InputURL
	}
	if params.SourceOrientation != nil {
		u.SourceOrientation = *params.SourceOrientation
	}
	if params.AutoDetectOrientation != nil {
		u.AutoDetectOrientation = *params.AutoDetectOrientation
	}
	if params.SourceWidth != nil {
		u.SourceWidth = *params.SourceWidth
	}
	if params.SourceHeight != nil {
		u.SourceHeight = *params.SourceHeight
	}
	if params.AutoStart != nil {
		u.AutoStart = *params.AutoStart
	}
	if params.AutoReconnect != nil {
		u.AutoReconnect = *params.AutoReconnect
	}
	if params.ReconnectDelaySec != nil {
		u.ReconnectDelaySec = *params.ReconnectDelaySec
	}
	if params.MaxReconnectAttempts != nil {
		u.MaxReconnectAttempts = *params.MaxReconnectAttempts
	}
	if params.HealthMonitoringEnabled != nil {
		u.HealthMonitoringEnabled = *params.HealthMonitoringEnabled
		if u.HealthMonitoringEnabled {
			if u.HealthCheckIntervalSec == 0 {
				u.HealthCheckIntervalSec = DefaultHealthCheckIntervalSec
			}
			if u.FailureThreshold == 0 {
				u.FailureThreshold = DefaultFailureThreshold
			}
			if u.MaxReconnectAttempts == 0 {
				u.MaxReconnectAttempts = DefaultMaxReconnectAttempts
			}
			for i := range u.Destinations {
				u.Destinations[i].AutoReconnect = true
			}
		}
	}
	if params.HealthCheckIntervalSec != nil && *params.HealthCheckIntervalSec != u.HealthCheckIntervalSec {
		u.HealthCheckIntervalSec = *params.HealthCheckIntervalSec
		restartMonitor = u.IsRunning()
	}
	if params.FailureThreshold != nil {
		u.FailureThreshold = *params.FailureThreshold
	}
	u.UpdatedAt = time.Now().UTC()

	if restartMonitor {
		s.stopMonitorLocked(m)
		s.startMonitorLocked(m)
	}

	snapshot := u.Clone()
	m.mu.Unlock()

	s.persistUnits()
	s.publishUnitUpdated(snapshot.ID, snapshot.Name)

	return snapshot, nil
}

// DuplicateUnit deep-copies a unit under a new name. Destination ids are
// regenerated and failover links remapped onto the new ids, so the copy
// keeps its primary/backup pairs without sharing remote output identity
// with the source.
func (s *Service) DuplicateUnit(id, newName string) (*StreamUnit, error) {
	if newName == "" {
		return nil, NewUnitError(ErrCodeValidation, "unit name is required", nil)
	}

	m, err := s.getManaged(id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	dup := m.unit.Clone()
	m.mu.Unlock()

	now := time.Now().UTC()
	dup.ID = generateUnitID()
	dup.Name = newName
	dup.Status = StatusInactive
	dup.LastError = ""
	dup.ProcessReference = ""
	dup.PreviewDurationSec = 0
	dup.PreviewStartTime = time.Time{}
	dup.CreatedAt = now
	dup.UpdatedAt = now

	idMap := make(map[string]string, len(dup.Destinations))
	for i := range dup.Destinations {
		d := &dup.Destinations[i]
		newID := generateDestinationID(d.Platform)
		idMap[d.ID] = newID
		d.ID = newID
		d.Connected = false
		d.ConsecutiveFailures = 0
		d.ReconnectAttempts = 0
		d.LastHealthCheck = time.Time{}
		d.BytesSent = 0
		d.DroppedFrames = 0
		d.FailoverActive = false
		d.FailoverStart = time.Time{}
	}
	for i := range dup.Destinations {
		d := &dup.Destinations[i]
		if d.PrimaryID != "" {
			d.PrimaryID = idMap[d.PrimaryID]
			if d.PrimaryID == "" {
				d.IsBackup = false
			}
		}
		if d.BackupID != "" {
			d.BackupID = idMap[d.BackupID]
		}
	}

	s.mu.Lock()
	s.units[dup.ID] = &managedUnit{unit: dup}
	s.order = append(s.order, dup.ID)
	s.mu.Unlock()

	s.persistUnits()

	if s.bus != nil {
		s.bus.Publish(events.UnitCreatedEvent{
			UnitID:    dup.ID,
			Name:      dup.Name,
			Action:    "created",
			Timestamp: eventTimestamp(),
		})
	}

	s.logger.Info("Duplicated unit", "source_unit_id", id, "unit_id", dup.ID, "name", newName)
	return dup.Clone(), nil
}

// DestinationCreateParams contains parameters for adding a destination.
type DestinationCreateParams struct {
	Platform          Platform
	StreamKey         string
	CustomURL         string // Required for the custom platform
	TargetOrientation Orientation
	Encoding          *EncodingSettings
	Enabled           *bool // Defaults to true
	AutoReconnect     *bool // Defaults to the unit's auto-reconnect flag
}

// AddDestination appends a destination to a unit. The new destination is
// configuration only; a running unit picks it up on restart or through an
// explicit bulk start.
func (s *Service) AddDestination(unitID string, params DestinationCreateParams) (*Destination, error) {
	if !params.Platform.Valid() {
		return nil, NewUnitError(ErrCodeValidation, fmt.Sprintf("unknown platform: %s", params.Platform), nil)
	}
	if params.Platform == PlatformCustom {
		if params.CustomURL == "" {
			return nil, NewUnitError(ErrCodeValidation, "custom destinations require a URL", nil)
		}
	} else if params.StreamKey == "" {
		return nil, NewUnitError(ErrCodeValidation, "stream key is required", nil)
	}
	if params.TargetOrientation != "" && !validOrientation(params.TargetOrientation) {
		return nil, NewUnitError(ErrCodeValidation, fmt.Sprintf("unknown orientation: %s", params.TargetOrientation), nil)
	}

	m, err := s.getManaged(unitID)
	if err != nil {
		return nil, err
	}

	orientation := params.TargetOrientation
	if orientation == "" {
		orientation = OrientationAuto
	}

	dest := Destination{
		ID:                generateDestinationID(params.Platform),
		Platform:          params.Platform,
		StreamKey:         params.StreamKey,
		TargetOrientation: orientation,
		Enabled:           true,
	}
	if params.Platform == PlatformCustom {
		dest.IngestURL = params.CustomURL
	} else {
		dest.IngestURL = IngestURL(params.Platform, orientation)
	}
	if params.Encoding != nil {
		dest.Encoding = *params.Encoding
	}
	if params.Enabled != nil {
		dest.Enabled = *params.Enabled
	}

	m.mu.Lock()
	dest.AutoReconnect = m.unit.AutoReconnect
	if params.AutoReconnect != nil {
		dest.AutoReconnect = *params.AutoReconnect
	}
	m.unit.Destinations = append(m.unit.Destinations, dest)
	m.unit.UpdatedAt = time.Now().UTC()
	name := m.unit.Name
	m.mu.Unlock()

	s.persistUnits()
	s.publishUnitUpdated(unitID, name)

	s.logger.Info("Added destination", "unit_id", unitID,
		"destination_id", dest.ID, "platform", string(dest.Platform))
	return &dest, nil
}

// RemoveDestination removes a destination by id, detaching it from the
// live process and dissolving any failover pair it belongs to.
func (s *Service) RemoveDestination(ctx context.Context, unitID, destinationID string) error {
	m, err := s.getManaged(unitID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	u := m.unit
	d, idx := u.FindDestination(destinationID)
	if d == nil {
		m.mu.Unlock()
		return NewUnitError(ErrCodeNotFound, fmt.Sprintf("destination not found: %s", destinationID), nil)
	}

	s.unlinkDestinationLocked(u, d)

	if u.IsRunning() && d.Enabled && u.ProcessReference != "" && s.engine != nil {
		if procID, resolveErr := s.engine.ResolveProcess(ctx, u.ProcessReference); resolveErr == nil {
			if removeErr := s.engine.RemoveOutput(ctx, procID, d.ID); removeErr != nil {
				s.logger.Warn("Failed to remove live output during destination removal",
					"unit_id", unitID, "destination_id", destinationID, "error", removeErr)
			}
		}
	}

	u.Destinations = append(u.Destinations[:idx], u.Destinations[idx+1:]...)
	u.UpdatedAt = time.Now().UTC()
	name := u.Name
	m.mu.Unlock()

	s.persistUnits()
	s.publishUnitUpdated(unitID, name)

	s.logger.Info("Removed destination", "unit_id", unitID, "destination_id", destinationID)
	return nil
}

// unlinkDestinationLocked dissolves the failover pair d participates in,
// in either role. Caller must hold the unit lock.
func (s *Service) unlinkDestinationLocked(u *StreamUnit, d *Destination) {
	if d.BackupID != "" {
		if backup, _ := u.FindDestination(d.BackupID); backup != nil {
			backup.IsBackup = false
			backup.PrimaryID = ""
			backup.FailoverActive = false
			backup.FailoverStart = time.Time{}
		}
		d.BackupID = ""
	}
	if d.PrimaryID != "" {
		if primary, _ := u.FindDestination(d.PrimaryID); primary != nil {
			primary.BackupID = ""
			primary.FailoverActive = false
			primary.FailoverStart = time.Time{}
		}
		d.PrimaryID = ""
		d.IsBackup = false
	}
	d.FailoverActive = false
	d.FailoverStart = time.Time{}
}

// DestinationUpdateParams contains optional updates to a destination.
// Nil fields are left unchanged.
type DestinationUpdateParams struct {
	StreamKey         *string
	CustomURL         *string
	TargetOrientation *Orientation
	Enabled           *bool
	AutoReconnect     *bool
	Encoding          *EncodingSettings
}

// UpdateDestination applies changes to one destination. URL-affecting
// changes are pushed to the live process when the unit is running; toggling
// enabled on a running unit attaches or detaches the output remotely first
// and only flips the local flag when the engine call succeeds.
func (s *Service) UpdateDestination(ctx context.Context, unitID, destinationID string, params DestinationUpdateParams) (*Destination, error) {
	if params.TargetOrientation != nil && !validOrientation(*params.TargetOrientation) {
		return nil, NewUnitError(ErrCodeValidation, fmt.Sprintf("unknown orientation: %s", *params.TargetOrientation), nil)
	}

	m, err := s.getManaged(unitID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	u := m.unit
	d, _ := u.FindDestination(destinationID)
	if d == nil {
		m.mu.Unlock()
		return nil, NewUnitError(ErrCodeNotFound, fmt.Sprintf("destination not found: %s", destinationID), nil)
	}

	if params.Enabled != nil && *params.Enabled != d.Enabled {
		if d.IsBackup {
			m.mu.Unlock()
			return nil, NewUnitError(ErrCodeValidation, "backup destinations are switched through failover", nil)
		}
		if err := s.setEnabledLocked(ctx, u, d, *params.Enabled); err != nil {
			m.mu.Unlock()
			return nil, err
		}
	}

	urlChanged := false
	if params.StreamKey != nil {
		d.StreamKey = *params.StreamKey
		urlChanged = true
	}
	if params.CustomURL != nil && d.Platform == PlatformCustom {
		d.IngestURL = *params.CustomURL
		urlChanged = true
	}
	if params.TargetOrientation != nil {
		d.TargetOrientation = *params.TargetOrientation
		if d.Platform != PlatformCustom {
			d.IngestURL = IngestURL(d.Platform, d.TargetOrientation)
		}
		urlChanged = true
	}
	if params.AutoReconnect != nil {
		d.AutoReconnect = *params.AutoReconnect
	}

	encodingChanged := false
	if params.Encoding != nil {
		d.Encoding = *params.Encoding
		encodingChanged = true
	}

	if u.Status == StatusActive && u.ProcessReference != "" && s.engine != nil && d.Enabled {
		if procID, resolveErr := s.engine.ResolveProcess(ctx, u.ProcessReference); resolveErr == nil {
			if urlChanged {
				filter := BuildVideoFilter(u.EffectiveSourceOrientation(), d.TargetOrientation)
				if updateErr := s.engine.UpdateOutput(ctx, procID, d.ID, d.OutputURL(), filter); updateErr != nil {
					s.logger.Warn("Failed to push output update to live process",
						"unit_id", unitID, "destination_id", destinationID, "error", updateErr)
				}
			}
			if encodingChanged && !d.Encoding.IsZero() {
				if encErr := s.engine.UpdateOutputEncoding(ctx, procID, d.ID, encodingParams(d.Encoding)); encErr != nil {
					s.logger.Warn("Failed to push encoding update to live process",
						"unit_id", unitID, "destination_id", destinationID, "error", encErr)
				}
			}
		}
	}

	u.UpdatedAt = time.Now().UTC()
	snapshot := *d
	name := u.Name
	m.mu.Unlock()

	s.persistUnits()
	s.publishUnitUpdated(unitID, name)

	return &snapshot, nil
}

// setEnabledLocked flips a destination's enabled flag. On an active unit
// the remote output is attached or detached first; the flag only changes
// when the engine call succeeds. Caller must hold the unit lock.
func (s *Service) setEnabledLocked(ctx context.Context, u *StreamUnit, d *Destination, enabled bool) error {
	if u.Status != StatusActive || u.ProcessReference == "" || s.engine == nil {
		d.Enabled = enabled
		return nil
	}

	procID, err := s.engine.ResolveProcess(ctx, u.ProcessReference)
	if err != nil {
		return NewUnitError(ErrCodeRemoteUnavailable, "failed to resolve live process", err)
	}

	if enabled {
		filter := BuildVideoFilter(u.EffectiveSourceOrientation(), d.TargetOrientation)
		if addErr := s.engine.AddOutput(ctx, procID, d.ID, d.OutputURL(), filter); addErr != nil {
			return NewUnitError(ErrCodeRemoteUnavailable, "failed to attach output", addErr)
		}
	} else {
		if removeErr := s.engine.RemoveOutput(ctx, procID, d.ID); removeErr != nil {
			return NewUnitError(ErrCodeRemoteUnavailable, "failed to detach output", removeErr)
		}
		d.Connected = false
		d.ConsecutiveFailures = 0
	}
	d.Enabled = enabled
	return nil
}
