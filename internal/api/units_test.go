package api

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/multistream/internal/units"
)

func TestDomainToAPIUnit_CarriesRuntimeState(t *testing.T) {
	server := &Server{}

	now := time.Now().UTC()
	unit := units.StreamUnit{
		ID:                      "unit_1",
		Name:                    "Main Show",
		InputURL:                "rtmp://localhost/live/obs_input",
		SourceOrientation:       units.OrientationHorizontal,
		AutoDetectOrientation:   true,
		AutoReconnect:           true,
		ReconnectDelaySec:       5,
		MaxReconnectAttempts:    5,
		HealthMonitoringEnabled: true,
		HealthCheckIntervalSec:  30,
		FailureThreshold:        3,
		CreatedAt:               now,
		UpdatedAt:               now,
		Status:                  units.StatusActive,
		ProcessReference:        "unit_1",
		Destinations: []units.Destination{
			{
				ID:                "twitch_1",
				Platform:          units.PlatformTwitch,
				StreamKey:         "key",
				IngestURL:         "rtmp://live.twitch.tv/app",
				TargetOrientation: units.OrientationHorizontal,
				Enabled:           true,
				Connected:         true,
				Encoding:          units.EncodingSettings{VideoBitrateKbps: 6000},
			},
		},
	}

	apiData := server.domainToAPIUnit(unit)

	if apiData.Status != "active" {
		t.Errorf("Expected status 'active', got '%s'", apiData.Status)
	}
	if apiData.ProcessReference != "unit_1" {
		t.Errorf("Expected process reference 'unit_1', got '%s'", apiData.ProcessReference)
	}
	if apiData.SourceOrientation != "horizontal" {
		t.Errorf("Expected orientation 'horizontal', got '%s'", apiData.SourceOrientation)
	}
	if len(apiData.Destinations) != 1 {
		t.Fatalf("Expected 1 destination, got %d", len(apiData.Destinations))
	}
	if apiData.Destinations[0].Platform != "twitch" {
		t.Errorf("Expected platform 'twitch', got '%s'", apiData.Destinations[0].Platform)
	}
	if apiData.Destinations[0].PlatformName != "Twitch" {
		t.Errorf("Expected platform name 'Twitch', got '%s'", apiData.Destinations[0].PlatformName)
	}
	if !apiData.Destinations[0].Connected {
		t.Error("Expected destination to be reported connected")
	}
	if apiData.Destinations[0].Encoding.VideoBitrateKbps != 6000 {
		t.Errorf("Expected video bitrate 6000, got %d", apiData.Destinations[0].Encoding.VideoBitrateKbps)
	}
}

func TestDomainToAPIDestination_FailoverFields(t *testing.T) {
	server := &Server{}

	failoverStart := time.Now().UTC()
	destination := units.Destination{
		ID:                  "youtube_2",
		Platform:            units.PlatformYouTube,
		StreamKey:           "backup-key",
		IsBackup:            true,
		PrimaryID:           "twitch_1",
		FailoverActive:      true,
		FailoverStart:       failoverStart,
		ConsecutiveFailures: 2,
		ReconnectAttempts:   1,
	}

	apiData := server.domainToAPIDestination(destination)

	if !apiData.IsBackup {
		t.Error("Expected backup flag to carry over")
	}
	if apiData.PrimaryID != "twitch_1" {
		t.Errorf("Expected primary id 'twitch_1', got '%s'", apiData.PrimaryID)
	}
	if !apiData.FailoverActive {
		t.Error("Expected active failover flag to carry over")
	}
	if !apiData.FailoverStart.Equal(failoverStart) {
		t.Errorf("Expected failover start %v, got %v", failoverStart, apiData.FailoverStart)
	}
	if apiData.ConsecutiveFailures != 2 {
		t.Errorf("Expected 2 consecutive failures, got %d", apiData.ConsecutiveFailures)
	}
}

func TestMapUnitError_StatusCodes(t *testing.T) {
	server := &Server{}

	cases := []struct {
		code       string
		wantStatus int
	}{
		{units.ErrCodeNotFound, 404},
		{units.ErrCodeValidation, 400},
		{units.ErrCodeConflict, 409},
		{units.ErrCodePolicyExhausted, 409},
		{units.ErrCodeRemoteUnavailable, 502},
		{"SOMETHING_ELSE", 500},
	}

	for _, tc := range cases {
		mapped := server.mapUnitError(units.NewUnitError(tc.code, "boom", nil))

		var statusErr huma.StatusError
		if !errors.As(mapped, &statusErr) {
			t.Fatalf("Expected a status error for code %s, got %T", tc.code, mapped)
		}
		if statusErr.GetStatus() != tc.wantStatus {
			t.Errorf("Code %s: expected status %d, got %d", tc.code, tc.wantStatus, statusErr.GetStatus())
		}
	}
}

func TestMapUnitError_UnwrapsJoinedErrors(t *testing.T) {
	server := &Server{}

	// StopAll joins per-unit errors; the mapper should still find the
	// domain code inside.
	joined := errors.Join(
		fmt.Errorf("unit unit_1: %w", units.NewUnitError(units.ErrCodeRemoteUnavailable, "engine unreachable", nil)),
	)

	mapped := server.mapUnitError(joined)

	var statusErr huma.StatusError
	if !errors.As(mapped, &statusErr) {
		t.Fatalf("Expected a status error, got %T", mapped)
	}
	if statusErr.GetStatus() != 502 {
		t.Errorf("Expected status 502, got %d", statusErr.GetStatus())
	}
}

func TestMapUnitError_ForeignErrorIs500(t *testing.T) {
	server := &Server{}

	mapped := server.mapUnitError(errors.New("plain failure"))

	var statusErr huma.StatusError
	if !errors.As(mapped, &statusErr) {
		t.Fatalf("Expected a status error, got %T", mapped)
	}
	if statusErr.GetStatus() != 500 {
		t.Errorf("Expected status 500, got %d", statusErr.GetStatus())
	}
}

func TestBulkResponse_Counts(t *testing.T) {
	results := []units.BulkItemResult{
		{Index: 0, DestinationID: "twitch_1", OK: true},
		{Index: 1, OK: false, Error: "index out of range"},
		{Index: 2, DestinationID: "youtube_2", OK: true},
	}

	response := bulkResponse(results)

	if response.Body.Succeeded != 2 {
		t.Errorf("Expected 2 succeeded, got %d", response.Body.Succeeded)
	}
	if response.Body.Failed != 1 {
		t.Errorf("Expected 1 failed, got %d", response.Body.Failed)
	}
	if len(response.Body.Results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(response.Body.Results))
	}
	if response.Body.Results[1].Error != "index out of range" {
		t.Errorf("Expected error message to carry over, got '%s'", response.Body.Results[1].Error)
	}
}
