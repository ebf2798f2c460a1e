package units

import (
	"context"
	"testing"
)

func TestStartUnitCreatesProcessAndOutputs(t *testing.T) {
	svc, engine, _ := newTestService(t)
	unit, _ := svc.CreateUnit(UnitCreateParams{Name: "Show"})
	first := addTwitch(t, svc, unit.ID, "k1")
	second, _ := svc.AddDestination(unit.ID, DestinationCreateParams{Platform: PlatformYouTube, StreamKey: "k2"})

	if err := svc.StartUnit(context.Background(), unit.ID); err != nil {
		t.Fatalf("StartUnit failed: %v", err)
	}

	got, _ := svc.GetUnit(unit.ID)
	if got.Status != StatusActive {
		t.Fatalf("Expected active status, got %s", got.Status)
	}
	if got.ProcessReference != unit.ID {
		t.Errorf("Expected process reference %q, got %q", unit.ID, got.ProcessReference)
	}

	procID := "proc_" + unit.ID
	if !engine.hasOutput(procID, first.ID) || !engine.hasOutput(procID, second.ID) {
		t.Errorf("Expected both destinations registered as outputs, calls: %v", engine.addCalls)
	}
}

func TestStartUnitTwiceIsNoOp(t *testing.T) {
	svc, engine, _ := newTestService(t)
	unit, _ := svc.CreateUnit(UnitCreateParams{Name: "Show"})
	addTwitch(t, svc, unit.ID, "k")

	if err := svc.StartUnit(context.Background(), unit.ID); err != nil {
		t.Fatalf("First start failed: %v", err)
	}
	if err := svc.StartUnit(context.Background(), unit.ID); err != nil {
		t.Fatalf("Second start should be a no-op, got %v", err)
	}
	if engine.createCalls != 1 {
		t.Errorf("Expected 1 create call, got %d", engine.createCalls)
	}
}

func TestStartUnitWithoutDestinationsFails(t *testing.T) {
	svc, engine, _ := newTestService(t)
	unit, _ := svc.CreateUnit(UnitCreateParams{Name: "Show"})

	err := svc.StartUnit(context.Background(), unit.ID)
	if ErrorCode(err) != ErrCodeValidation {
		t.Fatalf("Expected validation error, got %v", err)
	}

	got, _ := svc.GetUnit(unit.ID)
	if got.Status != StatusInactive {
		t.Errorf("Failed validation should leave status inactive, got %s", got.Status)
	}
	if got.ProcessReference != "" {
		t.Errorf("Failed validation should not assign a process reference, got %q", got.ProcessReference)
	}
	if engine.createCalls != 0 {
		t.Errorf("Validation failure should not touch the engine, got %d creates", engine.createCalls)
	}
}

func TestStartUnitWithDisabledDestinationsFails(t *testing.T) {
	svc, _, _ := newTestService(t)
	unit, _ := svc.CreateUnit(UnitCreateParams{Name: "Show"})
	disabled := false
	if _, err := svc.AddDestination(unit.ID, DestinationCreateParams{
		Platform:  PlatformTwitch,
		StreamKey: "k",
		Enabled:   &disabled,
	}); err != nil {
		t.Fatalf("AddDestination failed: %v", err)
	}

	if err := svc.StartUnit(context.Background(), unit.ID); ErrorCode(err) != ErrCodeValidation {
		t.Errorf("Expected validation error with only disabled destinations, got %v", err)
	}
}

func TestStartUnitCreateFailureSetsError(t *testing.T) {
	svc, engine, _ := newTestService(t)
	unit, _ := svc.CreateUnit(UnitCreateParams{Name: "Show"})
	addTwitch(t, svc, unit.ID, "k")
	engine.failCreate = true

	err := svc.StartUnit(context.Background(), unit.ID)
	if ErrorCode(err) != ErrCodeRemoteUnavailable {
		t.Fatalf("Expected remote unavailable, got %v", err)
	}

	got, _ := svc.GetUnit(unit.ID)
	if got.Status != StatusError {
		t.Errorf("Expected error status, got %s", got.Status)
	}
	if got.LastError == "" {
		t.Error("Expected last error to be recorded")
	}

	// The unit recovers once the engine does.
	engine.failCreate = false
	if startErr := svc.StartUnit(context.Background(), unit.ID); startErr != nil {
		t.Fatalf("Restart after engine recovery failed: %v", startErr)
	}
	got, _ = svc.GetUnit(unit.ID)
	if got.Status != StatusActive || got.LastError != "" {
		t.Errorf("Expected clean active unit, got status %s error %q", got.Status, got.LastError)
	}
}

func TestStartUnitDeletesStaleProcess(t *testing.T) {
	svc, engine, _ := newTestService(t)
	unit, _ := svc.CreateUnit(UnitCreateParams{Name: "Show"})
	addTwitch(t, svc, unit.ID, "k")

	// A process under the unit's reference survived a previous run.
	if err := engine.CreateProcess(context.Background(), unit.ID, "rtmp://stale", nil, ""); err != nil {
		t.Fatalf("Seeding stale process failed: %v", err)
	}
	engine.createCalls = 0

	if err := svc.StartUnit(context.Background(), unit.ID); err != nil {
		t.Fatalf("StartUnit failed: %v", err)
	}
	if len(engine.deleteCalls) != 1 || engine.deleteCalls[0] != "proc_"+unit.ID {
		t.Errorf("Expected stale process deleted before start, delete calls: %v", engine.deleteCalls)
	}
	if engine.createCalls != 1 {
		t.Errorf("Expected fresh process created, got %d creates", engine.createCalls)
	}
}

func TestStopUnitTearsDownAndResets(t *testing.T) {
	svc, engine, _ := newTestService(t)
	unit, _ := svc.CreateUnit(UnitCreateParams{Name: "Show"})
	dest := addTwitch(t, svc, unit.ID, "k")

	if err := svc.StartUnit(context.Background(), unit.ID); err != nil {
		t.Fatalf("StartUnit failed: %v", err)
	}
	if _, err := svc.CheckHealth(context.Background(), unit.ID); err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}

	if err := svc.StopUnit(context.Background(), unit.ID); err != nil {
		t.Fatalf("StopUnit failed: %v", err)
	}

	got, _ := svc.GetUnit(unit.ID)
	if got.Status != StatusInactive {
		t.Errorf("Expected inactive after stop, got %s", got.Status)
	}
	if got.ProcessReference != "" {
		t.Errorf("Expected cleared process reference, got %q", got.ProcessReference)
	}
	d, _ := got.FindDestination(dest.ID)
	if d.Connected || d.ConsecutiveFailures != 0 || d.ReconnectAttempts != 0 {
		t.Errorf("Expected reset destination counters, got %+v", d)
	}
	if len(engine.deleteCalls) != 1 {
		t.Errorf("Expected remote process deleted once, got %v", engine.deleteCalls)
	}

	// Stopping again is a no-op.
	if err := svc.StopUnit(context.Background(), unit.ID); err != nil {
		t.Errorf("Second stop should be a no-op, got %v", err)
	}
	if len(engine.deleteCalls) != 1 {
		t.Errorf("No-op stop should not touch the engine, got %v", engine.deleteCalls)
	}
}

func TestStopUnitSurvivesDeadEngine(t *testing.T) {
	svc, engine, _ := newTestService(t)
	unit, _ := svc.CreateUnit(UnitCreateParams{Name: "Show"})
	addTwitch(t, svc, unit.ID, "k")

	if err := svc.StartUnit(context.Background(), unit.ID); err != nil {
		t.Fatalf("StartUnit failed: %v", err)
	}
	engine.failResolve = true

	if err := svc.StopUnit(context.Background(), unit.ID); err != nil {
		t.Fatalf("Stop must not fail on a dead engine: %v", err)
	}
	got, _ := svc.GetUnit(unit.ID)
	if got.Status != StatusInactive {
		t.Errorf("Expected inactive even when teardown failed remotely, got %s", got.Status)
	}
}

func TestRestartUnit(t *testing.T) {
	svc, engine, _ := newTestService(t)
	unit, _ := svc.CreateUnit(UnitCreateParams{Name: "Show"})
	addTwitch(t, svc, unit.ID, "k")

	if err := svc.StartUnit(context.Background(), unit.ID); err != nil {
		t.Fatalf("StartUnit failed: %v", err)
	}
	if err := svc.RestartUnit(context.Background(), unit.ID); err != nil {
		t.Fatalf("RestartUnit failed: %v", err)
	}

	got, _ := svc.GetUnit(unit.ID)
	if got.Status != StatusActive {
		t.Errorf("Expected active after restart, got %s", got.Status)
	}
	if engine.createCalls != 2 {
		t.Errorf("Expected 2 create calls across restart, got %d", engine.createCalls)
	}
}

func TestStartAllHonorsAutoStart(t *testing.T) {
	svc, _, _ := newTestService(t)

	auto, _ := svc.CreateUnit(UnitCreateParams{Name: "Auto", AutoStart: true})
	manual, _ := svc.CreateUnit(UnitCreateParams{Name: "Manual"})
	addTwitch(t, svc, auto.ID, "k1")
	addTwitch(t, svc, manual.ID, "k2")

	if err := svc.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll failed: %v", err)
	}

	gotAuto, _ := svc.GetUnit(auto.ID)
	gotManual, _ := svc.GetUnit(manual.ID)
	if gotAuto.Status != StatusActive {
		t.Errorf("Auto-start unit should be active, got %s", gotAuto.Status)
	}
	if gotManual.Status != StatusInactive {
		t.Errorf("Manual unit should stay inactive, got %s", gotManual.Status)
	}
}

func TestStopAll(t *testing.T) {
	svc, _, _ := newTestService(t)

	a, _ := svc.CreateUnit(UnitCreateParams{Name: "A"})
	b, _ := svc.CreateUnit(UnitCreateParams{Name: "B"})
	addTwitch(t, svc, a.ID, "k1")
	addTwitch(t, svc, b.ID, "k2")

	if err := svc.StartUnit(context.Background(), a.ID); err != nil {
		t.Fatalf("StartUnit failed: %v", err)
	}
	if err := svc.StartUnit(context.Background(), b.ID); err != nil {
		t.Fatalf("StartUnit failed: %v", err)
	}

	if err := svc.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}
	for _, id := range []string{a.ID, b.ID} {
		got, _ := svc.GetUnit(id)
		if got.Status != StatusInactive {
			t.Errorf("Unit %s should be inactive, got %s", id, got.Status)
		}
	}
}

func TestResyncEngineRestartsPhantomUnits(t *testing.T) {
	svc, engine, _ := newTestService(t)
	unit, _ := svc.CreateUnit(UnitCreateParams{Name: "Show"})
	addTwitch(t, svc, unit.ID, "k")

	if err := svc.StartUnit(context.Background(), unit.ID); err != nil {
		t.Fatalf("StartUnit failed: %v", err)
	}

	// Engine restarted and lost the process behind our back.
	engine.mu.Lock()
	engine.processes = map[string]*fakeProcess{}
	engine.mu.Unlock()

	if err := svc.ResyncEngine(context.Background()); err != nil {
		t.Fatalf("ResyncEngine failed: %v", err)
	}

	got, _ := svc.GetUnit(unit.ID)
	if got.Status != StatusActive {
		t.Errorf("Expected unit re-established as active, got %s", got.Status)
	}
	if !engine.hasOutput("proc_"+unit.ID, got.Destinations[0].ID) {
		t.Error("Expected outputs re-registered after resync")
	}
}

func TestResyncEngineStartsPendingAutoStart(t *testing.T) {
	svc, engine, _ := newTestService(t)
	unit, _ := svc.CreateUnit(UnitCreateParams{Name: "Show", AutoStart: true})
	addTwitch(t, svc, unit.ID, "k")

	// First start attempt while the engine was down.
	engine.failCreate = true
	if err := svc.StartUnit(context.Background(), unit.ID); err == nil {
		t.Fatal("Expected start failure while engine is down")
	}
	engine.failCreate = false

	if err := svc.ResyncEngine(context.Background()); err != nil {
		t.Fatalf("ResyncEngine failed: %v", err)
	}
	got, _ := svc.GetUnit(unit.ID)
	if got.Status != StatusActive {
		t.Errorf("Expected auto-start unit recovered to active, got %s", got.Status)
	}
}
