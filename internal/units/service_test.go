package units

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/smazurov/multistream/internal/events"
	"github.com/smazurov/multistream/internal/restreamer"
)

// fakeEngine is an in-memory stand-in for the remote streaming engine.
// Processes and outputs mutate under a lock so reconnect timers and
// monitor goroutines can race test assertions safely.
type fakeEngine struct {
	mu        sync.Mutex
	processes map[string]*fakeProcess
	running   bool
	progress  restreamer.Progress

	failCreate  bool
	failAdd     bool
	failAddIDs  map[string]bool
	failRemove  bool
	failState   bool
	failResolve bool

	createCalls int
	deleteCalls []string
	addCalls    []string
	removeCalls []string
}

type fakeProcess struct {
	id        string
	reference string
	inputURL  string
	outputs   map[string]string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		processes: make(map[string]*fakeProcess),
		running:   true,
	}
}

func (e *fakeEngine) Ping(_ context.Context) error { return nil }

func (e *fakeEngine) ListProcesses(_ context.Context) ([]restreamer.Process, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]restreamer.Process, 0, len(e.processes))
	for _, p := range e.processes {
		out = append(out, restreamer.Process{ID: p.id, Reference: p.reference})
	}
	return out, nil
}

func (e *fakeEngine) ResolveProcess(_ context.Context, ref string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failResolve {
		return "", fmt.Errorf("resolve failed")
	}
	for _, p := range e.processes {
		if p.reference == ref {
			return p.id, nil
		}
	}
	return "", fmt.Errorf("no process with reference %s", ref)
}

func (e *fakeEngine) CreateProcess(_ context.Context, reference, inputURL string, _ []string, _ string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.createCalls++
	if e.failCreate {
		return fmt.Errorf("create failed")
	}
	id := "proc_" + reference
	e.processes[id] = &fakeProcess{
		id:        id,
		reference: reference,
		inputURL:  inputURL,
		outputs:   make(map[string]string),
	}
	return nil
}

func (e *fakeEngine) DeleteProcess(_ context.Context, processID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deleteCalls = append(e.deleteCalls, processID)
	if _, ok := e.processes[processID]; !ok {
		return fmt.Errorf("no process %s", processID)
	}
	delete(e.processes, processID)
	return nil
}

func (e *fakeEngine) GetProcessState(_ context.Context, processID string) (*restreamer.ProcessState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failState {
		return nil, fmt.Errorf("state failed")
	}
	if _, ok := e.processes[processID]; !ok {
		return nil, fmt.Errorf("no process %s", processID)
	}
	order := "stop"
	if e.running {
		order = "start"
	}
	return &restreamer.ProcessState{Order: order, Running: e.running, Progress: e.progress}, nil
}

func (e *fakeEngine) AddOutput(_ context.Context, processID, outputID, outputURL, _ string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.addCalls = append(e.addCalls, outputID)
	if e.failAdd || e.failAddIDs[outputID] {
		return fmt.Errorf("add output failed")
	}
	p, ok := e.processes[processID]
	if !ok {
		return fmt.Errorf("no process %s", processID)
	}
	p.outputs[outputID] = outputURL
	return nil
}

func (e *fakeEngine) RemoveOutput(_ context.Context, processID, outputID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removeCalls = append(e.removeCalls, outputID)
	if e.failRemove {
		return fmt.Errorf("remove output failed")
	}
	p, ok := e.processes[processID]
	if !ok {
		return fmt.Errorf("no process %s", processID)
	}
	delete(p.outputs, outputID)
	return nil
}

func (e *fakeEngine) UpdateOutput(_ context.Context, processID, outputID, outputURL, _ string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.processes[processID]
	if !ok {
		return fmt.Errorf("no process %s", processID)
	}
	if _, ok := p.outputs[outputID]; !ok {
		return fmt.Errorf("no output %s", outputID)
	}
	p.outputs[outputID] = outputURL
	return nil
}

func (e *fakeEngine) ListOutputs(_ context.Context, processID string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.processes[processID]
	if !ok {
		return nil, fmt.Errorf("no process %s", processID)
	}
	out := make([]string, 0, len(p.outputs))
	for id := range p.outputs {
		out = append(out, id)
	}
	return out, nil
}

func (e *fakeEngine) UpdateOutputEncoding(_ context.Context, processID, outputID string, _ restreamer.EncodingParams) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.processes[processID]
	if !ok {
		return fmt.Errorf("no process %s", processID)
	}
	if _, ok := p.outputs[outputID]; !ok {
		return fmt.Errorf("no output %s", outputID)
	}
	return nil
}

func (e *fakeEngine) hasOutput(processID, outputID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.processes[processID]
	if !ok {
		return false
	}
	_, ok = p.outputs[outputID]
	return ok
}

func (e *fakeEngine) dropOutput(processID, outputID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.processes[processID]; ok {
		delete(p.outputs, outputID)
	}
}

func (e *fakeEngine) setRunning(running bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = running
}

// fakeStore records saves without touching disk.
type fakeStore struct {
	mu            sync.Mutex
	units         []StreamUnit
	templates     []Template
	saveUnits     int
	saveTemplates int
}

func (f *fakeStore) Load() error { return nil }

func (f *fakeStore) Units() []StreamUnit {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]StreamUnit(nil), f.units...)
}

func (f *fakeStore) CustomTemplates() []Template {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Template(nil), f.templates...)
}

func (f *fakeStore) SaveUnits(units []StreamUnit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.units = append([]StreamUnit(nil), units...)
	f.saveUnits++
	return nil
}

func (f *fakeStore) SaveTemplates(templates []Template) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.templates = append([]Template(nil), templates...)
	f.saveTemplates++
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeEngine, *fakeStore) {
	t.Helper()
	engine := newFakeEngine()
	store := &fakeStore{}
	svc := NewService(ServiceOptions{
		Engine: engine,
		Store:  store,
		Bus:    events.New(),
	})
	t.Cleanup(func() { _ = svc.Close() })
	return svc, engine, store
}

func addTwitch(t *testing.T, svc *Service, unitID, key string) *Destination {
	t.Helper()
	dest, err := svc.AddDestination(unitID, DestinationCreateParams{
		Platform:  PlatformTwitch,
		StreamKey: key,
	})
	if err != nil {
		t.Fatalf("AddDestination failed: %v", err)
	}
	return dest
}

func TestCreateUnitAppliesDefaults(t *testing.T) {
	svc, _, _ := newTestService(t)

	unit, err := svc.CreateUnit(UnitCreateParams{Name: "Main Show"})
	if err != nil {
		t.Fatalf("CreateUnit failed: %v", err)
	}

	if unit.ID == "" || !strings.HasPrefix(unit.ID, "unit_") {
		t.Errorf("Expected generated unit id, got %q", unit.ID)
	}
	if unit.Status != StatusInactive {
		t.Errorf("Expected status inactive, got %s", unit.Status)
	}
	if unit.InputURL != DefaultInputURL {
		t.Errorf("Expected default input URL, got %q", unit.InputURL)
	}
	if !unit.HealthMonitoringEnabled {
		t.Error("Expected health monitoring enabled by default")
	}
	if unit.HealthCheckIntervalSec != DefaultHealthCheckIntervalSec {
		t.Errorf("Expected interval %d, got %d", DefaultHealthCheckIntervalSec, unit.HealthCheckIntervalSec)
	}
	if unit.FailureThreshold != DefaultFailureThreshold {
		t.Errorf("Expected threshold %d, got %d", DefaultFailureThreshold, unit.FailureThreshold)
	}
	if unit.MaxReconnectAttempts != DefaultMaxReconnectAttempts {
		t.Errorf("Expected max attempts %d, got %d", DefaultMaxReconnectAttempts, unit.MaxReconnectAttempts)
	}
	if unit.ReconnectDelaySec != DefaultReconnectDelaySec {
		t.Errorf("Expected reconnect delay %d, got %d", DefaultReconnectDelaySec, unit.ReconnectDelaySec)
	}
}

func TestCreateUnitRequiresName(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.CreateUnit(UnitCreateParams{})
	if err == nil {
		t.Fatal("Expected error for empty name")
	}
	if ErrorCode(err) != ErrCodeValidation {
		t.Errorf("Expected validation error, got %s", ErrorCode(err))
	}
	if len(svc.ListUnits()) != 0 {
		t.Error("Failed create should not add a unit")
	}
}

func TestCreateUnitGeneratesDistinctIDs(t *testing.T) {
	svc, _, _ := newTestService(t)

	a, err := svc.CreateUnit(UnitCreateParams{Name: "A"})
	if err != nil {
		t.Fatalf("CreateUnit failed: %v", err)
	}
	b, err := svc.CreateUnit(UnitCreateParams{Name: "A"})
	if err != nil {
		t.Fatalf("CreateUnit failed: %v", err)
	}
	if a.ID == b.ID {
		t.Errorf("Expected distinct ids, both %q", a.ID)
	}
}

func TestGetUnitReturnsClone(t *testing.T) {
	svc, _, _ := newTestService(t)

	created, _ := svc.CreateUnit(UnitCreateParams{Name: "Show"})
	addTwitch(t, svc, created.ID, "key1")

	got, err := svc.GetUnit(created.ID)
	if err != nil {
		t.Fatalf("GetUnit failed: %v", err)
	}
	got.Name = "mutated"
	got.Destinations[0].StreamKey = "mutated"

	again, _ := svc.GetUnit(created.ID)
	if again.Name != "Show" {
		t.Errorf("Mutating a returned unit leaked into the manager: name %q", again.Name)
	}
	if again.Destinations[0].StreamKey != "key1" {
		t.Errorf("Mutating returned destinations leaked: key %q", again.Destinations[0].StreamKey)
	}
}

func TestAddDestinationFillsIngestURL(t *testing.T) {
	svc, _, _ := newTestService(t)
	unit, _ := svc.CreateUnit(UnitCreateParams{Name: "Show"})

	dest := addTwitch(t, svc, unit.ID, "live_abc")
	if !strings.HasPrefix(dest.ID, "twitch_") {
		t.Errorf("Expected twitch id prefix, got %q", dest.ID)
	}
	if dest.IngestURL != "rtmp://live.twitch.tv/app" {
		t.Errorf("Unexpected ingest URL %q", dest.IngestURL)
	}
	if !dest.Enabled {
		t.Error("Expected destination enabled by default")
	}
	if !dest.AutoReconnect {
		t.Error("Expected destination to inherit unit auto-reconnect")
	}
	if dest.OutputURL() != "rtmp://live.twitch.tv/app/live_abc" {
		t.Errorf("Unexpected output URL %q", dest.OutputURL())
	}
}

func TestAddDestinationValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	unit, _ := svc.CreateUnit(UnitCreateParams{Name: "Show"})

	tests := []struct {
		name   string
		params DestinationCreateParams
	}{
		{"unknown platform", DestinationCreateParams{Platform: "myspace", StreamKey: "k"}},
		{"missing stream key", DestinationCreateParams{Platform: PlatformYouTube}},
		{"custom without URL", DestinationCreateParams{Platform: PlatformCustom}},
		{"bad orientation", DestinationCreateParams{Platform: PlatformTwitch, StreamKey: "k", TargetOrientation: "diagonal"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddDestination(unit.ID, tt.params)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if ErrorCode(err) != ErrCodeValidation {
				t.Errorf("Expected validation code, got %s", ErrorCode(err))
			}
		})
	}

	got, _ := svc.GetUnit(unit.ID)
	if len(got.Destinations) != 0 {
		t.Errorf("Failed adds should not append destinations, have %d", len(got.Destinations))
	}
}

func TestUpdateUnitRejectsNegativePolicy(t *testing.T) {
	svc, _, _ := newTestService(t)
	unit, _ := svc.CreateUnit(UnitCreateParams{Name: "Show"})

	bad := -1
	_, err := svc.UpdateUnit(unit.ID, UnitUpdateParams{FailureThreshold: &bad})
	if err == nil {
		t.Fatal("Expected validation error")
	}
	if ErrorCode(err) != ErrCodeValidation {
		t.Errorf("Expected validation code, got %s", ErrorCode(err))
	}

	got, _ := svc.GetUnit(unit.ID)
	if got.FailureThreshold != DefaultFailureThreshold {
		t.Errorf("Failed update changed threshold to %d", got.FailureThreshold)
	}
}

func TestUpdateUnitEnableMonitoringFillsDefaults(t *testing.T) {
	svc, _, _ := newTestService(t)
	unit, _ := svc.CreateUnit(UnitCreateParams{Name: "Show"})

	off, zero := false, 0
	noReconnect := false
	if _, err := svc.UpdateUnit(unit.ID, UnitUpdateParams{
		HealthMonitoringEnabled: &off,
		HealthCheckIntervalSec:  &zero,
		FailureThreshold:        &zero,
		MaxReconnectAttempts:    &zero,
		ReconnectDelaySec:       &zero,
		AutoReconnect:           &noReconnect,
	}); err != nil {
		t.Fatalf("UpdateUnit failed: %v", err)
	}

	dest, err := svc.AddDestination(unit.ID, DestinationCreateParams{Platform: PlatformTwitch, StreamKey: "k"})
	if err != nil {
		t.Fatalf("AddDestination failed: %v", err)
	}
	if dest.AutoReconnect {
		t.Fatal("Destination should inherit disabled auto-reconnect")
	}

	on := true
	updated, err := svc.UpdateUnit(unit.ID, UnitUpdateParams{HealthMonitoringEnabled: &on})
	if err != nil {
		t.Fatalf("UpdateUnit failed: %v", err)
	}

	if updated.HealthCheckIntervalSec != DefaultHealthCheckIntervalSec {
		t.Errorf("Expected interval refilled to %d, got %d", DefaultHealthCheckIntervalSec, updated.HealthCheckIntervalSec)
	}
	if updated.FailureThreshold != DefaultFailureThreshold {
		t.Errorf("Expected threshold refilled to %d, got %d", DefaultFailureThreshold, updated.FailureThreshold)
	}
	if updated.MaxReconnectAttempts != DefaultMaxReconnectAttempts {
		t.Errorf("Expected max attempts refilled to %d, got %d", DefaultMaxReconnectAttempts, updated.MaxReconnectAttempts)
	}
	if !updated.Destinations[0].AutoReconnect {
		t.Error("Enabling monitoring should turn on destination auto-reconnect")
	}
}

func TestDeleteUnit(t *testing.T) {
	svc, engine, _ := newTestService(t)
	unit, _ := svc.CreateUnit(UnitCreateParams{Name: "Show"})
	addTwitch(t, svc, unit.ID, "k")

	if err := svc.StartUnit(context.Background(), unit.ID); err != nil {
		t.Fatalf("StartUnit failed: %v", err)
	}
	if err := svc.DeleteUnit(context.Background(), unit.ID); err != nil {
		t.Fatalf("DeleteUnit failed: %v", err)
	}

	if _, err := svc.GetUnit(unit.ID); ErrorCode(err) != ErrCodeNotFound {
		t.Errorf("Expected not found after delete, got %v", err)
	}
	if len(engine.deleteCalls) == 0 {
		t.Error("Deleting a live unit should delete its remote process")
	}
	if err := svc.DeleteUnit(context.Background(), unit.ID); ErrorCode(err) != ErrCodeNotFound {
		t.Errorf("Second delete should be not found, got %v", err)
	}
}

func TestDuplicateUnitRemapsFailoverLinks(t *testing.T) {
	svc, _, _ := newTestService(t)
	unit, _ := svc.CreateUnit(UnitCreateParams{Name: "Show"})
	primary := addTwitch(t, svc, unit.ID, "pk")
	backup, err := svc.AddDestination(unit.ID, DestinationCreateParams{
		Platform:  PlatformYouTube,
		StreamKey: "bk",
	})
	if err != nil {
		t.Fatalf("AddDestination failed: %v", err)
	}
	if err := svc.SetBackup(context.Background(), unit.ID, primary.ID, backup.ID); err != nil {
		t.Fatalf("SetBackup failed: %v", err)
	}

	dup, err := svc.DuplicateUnit(unit.ID, "Show Copy")
	if err != nil {
		t.Fatalf("DuplicateUnit failed: %v", err)
	}

	if dup.ID == unit.ID {
		t.Fatal("Duplicate kept the source id")
	}
	if len(dup.Destinations) != 2 {
		t.Fatalf("Expected 2 destinations, got %d", len(dup.Destinations))
	}

	dupPrimary := dup.Destinations[0]
	dupBackup := dup.Destinations[1]
	if dupPrimary.ID == primary.ID || dupBackup.ID == backup.ID {
		t.Error("Duplicate kept source destination ids")
	}
	if dupPrimary.BackupID != dupBackup.ID {
		t.Errorf("Backup link not remapped: %q != %q", dupPrimary.BackupID, dupBackup.ID)
	}
	if dupBackup.PrimaryID != dupPrimary.ID {
		t.Errorf("Primary link not remapped: %q != %q", dupBackup.PrimaryID, dupPrimary.ID)
	}
	if dupPrimary.FailoverActive || dupBackup.FailoverActive {
		t.Error("Duplicate should clear failover runtime state")
	}
}

func TestRemoveDestinationDissolvesPair(t *testing.T) {
	svc, _, _ := newTestService(t)
	unit, _ := svc.CreateUnit(UnitCreateParams{Name: "Show"})
	primary := addTwitch(t, svc, unit.ID, "pk")
	backup, _ := svc.AddDestination(unit.ID, DestinationCreateParams{Platform: PlatformYouTube, StreamKey: "bk"})
	if err := svc.SetBackup(context.Background(), unit.ID, primary.ID, backup.ID); err != nil {
		t.Fatalf("SetBackup failed: %v", err)
	}

	if err := svc.RemoveDestination(context.Background(), unit.ID, backup.ID); err != nil {
		t.Fatalf("RemoveDestination failed: %v", err)
	}

	got, _ := svc.GetUnit(unit.ID)
	if len(got.Destinations) != 1 {
		t.Fatalf("Expected 1 destination, got %d", len(got.Destinations))
	}
	if got.Destinations[0].BackupID != "" {
		t.Error("Removing the backup should clear the primary's link")
	}
}

func TestUpdateDestinationRejectsBackupToggle(t *testing.T) {
	svc, _, _ := newTestService(t)
	unit, _ := svc.CreateUnit(UnitCreateParams{Name: "Show"})
	primary := addTwitch(t, svc, unit.ID, "pk")
	backup, _ := svc.AddDestination(unit.ID, DestinationCreateParams{Platform: PlatformYouTube, StreamKey: "bk"})
	if err := svc.SetBackup(context.Background(), unit.ID, primary.ID, backup.ID); err != nil {
		t.Fatalf("SetBackup failed: %v", err)
	}

	enable := true
	_, err := svc.UpdateDestination(context.Background(), unit.ID, backup.ID, DestinationUpdateParams{Enabled: &enable})
	if ErrorCode(err) != ErrCodeValidation {
		t.Errorf("Expected validation error toggling a backup, got %v", err)
	}
}

func TestUpdateDestinationOrientationRebuildsURL(t *testing.T) {
	svc, _, _ := newTestService(t)
	unit, _ := svc.CreateUnit(UnitCreateParams{Name: "Show"})
	dest, err := svc.AddDestination(unit.ID, DestinationCreateParams{
		Platform:  PlatformTikTok,
		StreamKey: "tk",
	})
	if err != nil {
		t.Fatalf("AddDestination failed: %v", err)
	}
	if dest.IngestURL != "rtmp://live.tiktok.com/live/horizontal" {
		t.Fatalf("Unexpected initial ingest URL %q", dest.IngestURL)
	}

	vertical := OrientationVertical
	updated, err := svc.UpdateDestination(context.Background(), unit.ID, dest.ID, DestinationUpdateParams{
		TargetOrientation: &vertical,
	})
	if err != nil {
		t.Fatalf("UpdateDestination failed: %v", err)
	}
	if updated.IngestURL != "rtmp://live.tiktok.com/live" {
		t.Errorf("Orientation change should switch to the vertical ingest, got %q", updated.IngestURL)
	}
}

func TestLoadFromStoreResetsRuntimeState(t *testing.T) {
	engine := newFakeEngine()
	store := &fakeStore{
		units: []StreamUnit{
			{
				ID:     "unit_1_aaaaaa",
				Name:   "Persisted",
				Status: StatusActive,
				Destinations: []Destination{
					{ID: "twitch_aaaaaa", Platform: PlatformTwitch, Enabled: true, Connected: true},
				},
			},
		},
		templates: []Template{
			{ID: "tmpl_1_bbbbbb", Name: "My Preset", Platform: PlatformTwitch},
		},
	}

	svc := NewService(ServiceOptions{Engine: engine, Store: store, Bus: events.New()})
	t.Cleanup(func() { _ = svc.Close() })

	if err := svc.LoadFromStore(); err != nil {
		t.Fatalf("LoadFromStore failed: %v", err)
	}

	got, err := svc.GetUnit("unit_1_aaaaaa")
	if err != nil {
		t.Fatalf("GetUnit failed: %v", err)
	}
	if got.Status != StatusInactive {
		t.Errorf("Loaded unit should start inactive, got %s", got.Status)
	}

	templates := svc.ListTemplates()
	if len(templates) != len(builtinTemplates())+1 {
		t.Fatalf("Expected builtins plus one custom template, got %d", len(templates))
	}
	last := templates[len(templates)-1]
	if last.ID != "tmpl_1_bbbbbb" || last.Builtin {
		t.Errorf("Custom template not loaded after builtins: %+v", last)
	}
}

func TestPersistenceSnapshotsOnMutation(t *testing.T) {
	svc, _, store := newTestService(t)

	unit, _ := svc.CreateUnit(UnitCreateParams{Name: "Show"})
	addTwitch(t, svc, unit.ID, "k")

	store.mu.Lock()
	saved := append([]StreamUnit(nil), store.units...)
	store.mu.Unlock()

	if len(saved) != 1 {
		t.Fatalf("Expected 1 saved unit, got %d", len(saved))
	}
	if len(saved[0].Destinations) != 1 {
		t.Errorf("Expected saved destination, got %d", len(saved[0].Destinations))
	}
}
