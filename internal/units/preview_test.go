package units

import (
	"context"
	"testing"
	"time"
)

func TestStartPreview(t *testing.T) {
	svc, engine, _ := newTestService(t)
	unit, _ := svc.CreateUnit(UnitCreateParams{Name: "Show"})
	dest := addTwitch(t, svc, unit.ID, "k")

	if err := svc.StartPreview(context.Background(), unit.ID, 0); err != nil {
		t.Fatalf("StartPreview failed: %v", err)
	}

	got, _ := svc.GetUnit(unit.ID)
	if got.Status != StatusPreview {
		t.Errorf("Expected preview status, got %s", got.Status)
	}
	if got.PreviewStartTime.IsZero() {
		t.Error("Expected preview start time set")
	}
	if got.PreviewDurationSec != 0 {
		t.Errorf("Expected unlimited preview, got %d", got.PreviewDurationSec)
	}
	if !engine.hasOutput("proc_"+unit.ID, dest.ID) {
		t.Error("Preview should stream to the destinations")
	}
}

func TestStartPreviewRejectsNegativeDuration(t *testing.T) {
	svc, _, _ := newTestService(t)
	unit, _ := svc.CreateUnit(UnitCreateParams{Name: "Show"})
	addTwitch(t, svc, unit.ID, "k")

	err := svc.StartPreview(context.Background(), unit.ID, -5)
	if ErrorCode(err) != ErrCodeValidation {
		t.Fatalf("Expected validation error, got %v", err)
	}
}

func TestStartPreviewRequiresInactive(t *testing.T) {
	svc, _, _ := newTestService(t)
	unit, _ := svc.CreateUnit(UnitCreateParams{Name: "Show"})
	addTwitch(t, svc, unit.ID, "k")
	if err := svc.StartUnit(context.Background(), unit.ID); err != nil {
		t.Fatalf("StartUnit failed: %v", err)
	}

	err := svc.StartPreview(context.Background(), unit.ID, 0)
	if ErrorCode(err) != ErrCodeConflict {
		t.Fatalf("Expected conflict for active unit, got %v", err)
	}
}

func TestStartPreviewFailureClearsFields(t *testing.T) {
	svc, engine, _ := newTestService(t)
	unit, _ := svc.CreateUnit(UnitCreateParams{Name: "Show"})
	addTwitch(t, svc, unit.ID, "k")
	engine.failCreate = true

	err := svc.StartPreview(context.Background(), unit.ID, 60)
	if err == nil {
		t.Fatal("Expected preview start to fail")
	}

	got, _ := svc.GetUnit(unit.ID)
	if got.PreviewDurationSec != 0 || !got.PreviewStartTime.IsZero() {
		t.Error("Failed preview must not leave preview fields behind")
	}
	if got.Status != StatusError {
		t.Errorf("Expected error status, got %s", got.Status)
	}
}

func TestPreviewToLive(t *testing.T) {
	svc, engine, _ := newTestService(t)
	unit, _ := svc.CreateUnit(UnitCreateParams{Name: "Show"})
	addTwitch(t, svc, unit.ID, "k")
	if err := svc.StartPreview(context.Background(), unit.ID, 3600); err != nil {
		t.Fatalf("StartPreview failed: %v", err)
	}

	if err := svc.PreviewToLive(unit.ID); err != nil {
		t.Fatalf("PreviewToLive failed: %v", err)
	}

	got, _ := svc.GetUnit(unit.ID)
	if got.Status != StatusActive {
		t.Errorf("Expected active status, got %s", got.Status)
	}
	if got.PreviewDurationSec != 0 || !got.PreviewStartTime.IsZero() {
		t.Error("Promotion should clear preview bookkeeping")
	}
	if engine.createCalls != 1 {
		t.Errorf("Promotion must reuse the running process, got %d creates", engine.createCalls)
	}

	svc.mu.RLock()
	m := svc.units[unit.ID]
	svc.mu.RUnlock()
	m.mu.Lock()
	timer := m.previewTimer
	m.mu.Unlock()
	if timer != nil {
		t.Error("Promotion should cancel the preview timer")
	}
}

func TestPreviewToLiveRequiresPreview(t *testing.T) {
	svc, _, _ := newTestService(t)
	unit, _ := svc.CreateUnit(UnitCreateParams{Name: "Show"})
	addTwitch(t, svc, unit.ID, "k")

	err := svc.PreviewToLive(unit.ID)
	if ErrorCode(err) != ErrCodeConflict {
		t.Fatalf("Expected conflict for idle unit, got %v", err)
	}
}

func TestCancelPreviewStopsUnit(t *testing.T) {
	svc, engine, _ := newTestService(t)
	unit, _ := svc.CreateUnit(UnitCreateParams{Name: "Show"})
	addTwitch(t, svc, unit.ID, "k")
	if err := svc.StartPreview(context.Background(), unit.ID, 0); err != nil {
		t.Fatalf("StartPreview failed: %v", err)
	}

	if err := svc.CancelPreview(context.Background(), unit.ID); err != nil {
		t.Fatalf("CancelPreview failed: %v", err)
	}

	got, _ := svc.GetUnit(unit.ID)
	if got.Status != StatusInactive {
		t.Errorf("Expected inactive status, got %s", got.Status)
	}
	if !got.PreviewStartTime.IsZero() {
		t.Error("Cancel should clear preview bookkeeping")
	}
	if len(engine.deleteCalls) != 1 {
		t.Errorf("Expected process deleted, got %d delete calls", len(engine.deleteCalls))
	}
}

func TestCheckPreviewTimeout(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		unit StreamUnit
		want bool
	}{
		{"unlimited preview", StreamUnit{PreviewDurationSec: 0, PreviewStartTime: now.Add(-time.Hour)}, false},
		{"not started", StreamUnit{PreviewDurationSec: 30}, false},
		{"still running", StreamUnit{PreviewDurationSec: 300, PreviewStartTime: now.Add(-10 * time.Second)}, false},
		{"elapsed", StreamUnit{PreviewDurationSec: 30, PreviewStartTime: now.Add(-31 * time.Second)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckPreviewTimeout(&tt.unit); got != tt.want {
				t.Errorf("CheckPreviewTimeout() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPreviewExpiresOnMonitorTick(t *testing.T) {
	svc, _, _ := newTestService(t)
	unit, _ := svc.CreateUnit(UnitCreateParams{Name: "Show"})
	addTwitch(t, svc, unit.ID, "k")
	if err := svc.StartPreview(context.Background(), unit.ID, 30); err != nil {
		t.Fatalf("StartPreview failed: %v", err)
	}

	// Rewind the preview clock past its window and disarm the precise
	// timer so only the monitor tick can end it.
	svc.mu.RLock()
	m := svc.units[unit.ID]
	svc.mu.RUnlock()
	m.mu.Lock()
	m.unit.PreviewStartTime = time.Now().UTC().Add(-time.Minute)
	if m.previewTimer != nil {
		m.previewTimer.Stop()
		m.previewTimer = nil
	}
	m.mu.Unlock()

	if _, err := svc.CheckHealth(context.Background(), unit.ID); err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}

	got, _ := svc.GetUnit(unit.ID)
	if got.Status != StatusInactive {
		t.Errorf("Expected expired preview stopped, got %s", got.Status)
	}
}

func TestExpirePreviewLeavesPromotedUnitAlone(t *testing.T) {
	svc, _, _ := newTestService(t)
	unit, _ := svc.CreateUnit(UnitCreateParams{Name: "Show"})
	addTwitch(t, svc, unit.ID, "k")
	if err := svc.StartPreview(context.Background(), unit.ID, 3600); err != nil {
		t.Fatalf("StartPreview failed: %v", err)
	}
	if err := svc.PreviewToLive(unit.ID); err != nil {
		t.Fatalf("PreviewToLive failed: %v", err)
	}

	// A stale timer callback after promotion must not stop the stream.
	svc.expirePreview(unit.ID)

	got, _ := svc.GetUnit(unit.ID)
	if got.Status != StatusActive {
		t.Errorf("Expected unit still active, got %s", got.Status)
	}
}
