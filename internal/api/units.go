package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/multistream/internal/api/models"
	"github.com/smazurov/multistream/internal/units"
)

// UnitPathInput identifies a unit by path parameter.
type UnitPathInput struct {
	UnitID string `path:"unit_id" example:"unit_1712345678_4821" doc:"Unit identifier"`
}

// registerUnitRoutes registers unit CRUD and lifecycle endpoints
func (s *Server) registerUnitRoutes() {
	// List all units
	huma.Register(s.api, huma.Operation{
		OperationID: "list-units",
		Method:      http.MethodGet,
		Path:        "/api/units",
		Summary:     "List Units",
		Description: "Get all stream units with their destinations and runtime state",
		Tags:        []string{"units"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.UnitListResponse, error) {
		unitList := s.units.ListUnits()

		apiUnits := make([]models.UnitData, len(unitList))
		for i, unit := range unitList {
			apiUnits[i] = s.domainToAPIUnit(unit)
		}

		return &models.UnitListResponse{
			Body: models.UnitListData{
				Units: apiUnits,
				Count: len(apiUnits),
			},
		}, nil
	})

	// Create new unit
	huma.Register(s.api, huma.Operation{
		OperationID: "create-unit",
		Method:      http.MethodPost,
		Path:        "/api/units",
		Summary:     "Create Unit",
		Description: "Create a new stream unit with monitoring defaults",
		Tags:        []string{"units"},
		Errors:      []int{400, 401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.UnitCreateRequest) (*models.UnitResponse, error) {
		unit, err := s.units.CreateUnit(units.UnitCreateParams{
			Name:      input.Body.Name,
			InputURL:  input.Body.InputURL,
			AutoStart: input.Body.AutoStart,
		})
		if err != nil {
			return nil, s.mapUnitError(err)
		}

		return &models.UnitResponse{
			Body: s.domainToAPIUnit(*unit),
		}, nil
	})

	// Start all auto-start units. Registered before the wildcard routes so
	// the literal segment wins the mux match.
	huma.Register(s.api, huma.Operation{
		OperationID: "start-all-units",
		Method:      http.MethodPost,
		Path:        "/api/units/start-all",
		Summary:     "Start All Units",
		Description: "Start every inactive unit that is flagged auto-start",
		Tags:        []string{"units"},
		Errors:      []int{401, 502, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*struct{}, error) {
		if err := s.units.StartAll(ctx); err != nil {
			return nil, s.mapUnitError(err)
		}
		return &struct{}{}, nil
	})

	// Stop all running units
	huma.Register(s.api, huma.Operation{
		OperationID: "stop-all-units",
		Method:      http.MethodPost,
		Path:        "/api/units/stop-all",
		Summary:     "Stop All Units",
		Description: "Stop every unit that is currently running",
		Tags:        []string{"units"},
		Errors:      []int{401, 502, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*struct{}, error) {
		if err := s.units.StopAll(ctx); err != nil {
			return nil, s.mapUnitError(err)
		}
		return &struct{}{}, nil
	})

	// Get specific unit
	huma.Register(s.api, huma.Operation{
		OperationID: "get-unit",
		Method:      http.MethodGet,
		Path:        "/api/units/{unit_id}",
		Summary:     "Get Unit",
		Description: "Get details of a specific unit",
		Tags:        []string{"units"},
		Errors:      []int{401, 404, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *UnitPathInput) (*models.UnitResponse, error) {
		return s.unitResponse(input.UnitID)
	})

	// Update unit configuration
	huma.Register(s.api, huma.Operation{
		OperationID: "update-unit",
		Method:      http.MethodPatch,
		Path:        "/api/units/{unit_id}",
		Summary:     "Update Unit",
		Description: "Apply configuration changes to a unit; omitted fields are left unchanged",
		Tags:        []string{"units"},
		Errors:      []int{400, 401, 404, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		UnitPathInput
		Body models.UnitUpdateRequestData
	}) (*models.UnitResponse, error) {
		params := units.UnitUpdateParams{
			Name:                    input.Body.Name,
			InputURL:                input.Body.InputURL,
			AutoDetectOrientation:   input.Body.AutoDetectOrientation,
			SourceWidth:             input.Body.SourceWidth,
			SourceHeight:            input.Body.SourceHeight,
			AutoStart:               input.Body.AutoStart,
			AutoReconnect:           input.Body.AutoReconnect,
			ReconnectDelaySec:       input.Body.ReconnectDelaySec,
			MaxReconnectAttempts:    input.Body.MaxReconnectAttempts,
			HealthMonitoringEnabled: input.Body.HealthMonitoringEnabled,
			HealthCheckIntervalSec:  input.Body.HealthCheckIntervalSec,
			FailureThreshold:        input.Body.FailureThreshold,
		}
		if input.Body.SourceOrientation != nil {
			orientation := units.Orientation(*input.Body.SourceOrientation)
			params.SourceOrientation = &orientation
		}

		unit, err := s.units.UpdateUnit(input.UnitID, params)
		if err != nil {
			return nil, s.mapUnitError(err)
		}

		return &models.UnitResponse{
			Body: s.domainToAPIUnit(*unit),
		}, nil
	})

	// Delete unit
	huma.Register(s.api, huma.Operation{
		OperationID: "delete-unit",
		Method:      http.MethodDelete,
		Path:        "/api/units/{unit_id}",
		Summary:     "Delete Unit",
		Description: "Delete a unit, stopping it first when it is running",
		Tags:        []string{"units"},
		Errors:      []int{401, 404, 502, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *UnitPathInput) (*struct{}, error) {
		if err := s.units.DeleteUnit(ctx, input.UnitID); err != nil {
			return nil, s.mapUnitError(err)
		}
		return &struct{}{}, nil
	})

	// Duplicate unit
	huma.Register(s.api, huma.Operation{
		OperationID: "duplicate-unit",
		Method:      http.MethodPost,
		Path:        "/api/units/{unit_id}/duplicate",
		Summary:     "Duplicate Unit",
		Description: "Copy a unit's configuration, destinations included, under a new name",
		Tags:        []string{"units"},
		Errors:      []int{400, 401, 404, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		UnitPathInput
		Body models.UnitDuplicateRequestData
	}) (*models.UnitResponse, error) {
		unit, err := s.units.DuplicateUnit(input.UnitID, input.Body.Name)
		if err != nil {
			return nil, s.mapUnitError(err)
		}

		return &models.UnitResponse{
			Body: s.domainToAPIUnit(*unit),
		}, nil
	})

	// Start unit
	huma.Register(s.api, huma.Operation{
		OperationID: "start-unit",
		Method:      http.MethodPost,
		Path:        "/api/units/{unit_id}/start",
		Summary:     "Start Unit",
		Description: "Start streaming to all enabled destinations",
		Tags:        []string{"units"},
		Errors:      []int{400, 401, 404, 409, 502, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *UnitPathInput) (*models.UnitResponse, error) {
		if err := s.units.StartUnit(ctx, input.UnitID); err != nil {
			return nil, s.mapUnitError(err)
		}
		return s.unitResponse(input.UnitID)
	})

	// Stop unit
	huma.Register(s.api, huma.Operation{
		OperationID: "stop-unit",
		Method:      http.MethodPost,
		Path:        "/api/units/{unit_id}/stop",
		Summary:     "Stop Unit",
		Description: "Stop streaming and tear down the engine process",
		Tags:        []string{"units"},
		Errors:      []int{401, 404, 409, 502, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *UnitPathInput) (*models.UnitResponse, error) {
		if err := s.units.StopUnit(ctx, input.UnitID); err != nil {
			return nil, s.mapUnitError(err)
		}
		return s.unitResponse(input.UnitID)
	})

	// Restart unit
	huma.Register(s.api, huma.Operation{
		OperationID: "restart-unit",
		Method:      http.MethodPost,
		Path:        "/api/units/{unit_id}/restart",
		Summary:     "Restart Unit",
		Description: "Stop and start the unit, picking up configuration changes",
		Tags:        []string{"units"},
		Errors:      []int{400, 401, 404, 409, 502, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *UnitPathInput) (*models.UnitResponse, error) {
		if err := s.units.RestartUnit(ctx, input.UnitID); err != nil {
			return nil, s.mapUnitError(err)
		}
		return s.unitResponse(input.UnitID)
	})

	// On-demand health probe
	huma.Register(s.api, huma.Operation{
		OperationID: "check-unit-health",
		Method:      http.MethodPost,
		Path:        "/api/units/{unit_id}/health",
		Summary:     "Check Unit Health",
		Description: "Probe the engine process for this unit and update destination state",
		Tags:        []string{"units"},
		Errors:      []int{401, 404, 409, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *UnitPathInput) (*models.UnitHealthResponse, error) {
		healthy, err := s.units.CheckHealth(ctx, input.UnitID)
		if err != nil {
			return nil, s.mapUnitError(err)
		}

		return &models.UnitHealthResponse{
			Body: models.UnitHealthData{
				UnitID:  input.UnitID,
				Healthy: healthy,
			},
		}, nil
	})

	// Start preview
	huma.Register(s.api, huma.Operation{
		OperationID: "start-preview",
		Method:      http.MethodPost,
		Path:        "/api/units/{unit_id}/preview",
		Summary:     "Start Preview",
		Description: "Start the unit in preview mode without notifying followers, optionally time-limited",
		Tags:        []string{"units"},
		Errors:      []int{400, 401, 404, 409, 502, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		UnitPathInput
		Body models.PreviewRequestData
	}) (*models.UnitResponse, error) {
		if err := s.units.StartPreview(ctx, input.UnitID, input.Body.DurationSec); err != nil {
			return nil, s.mapUnitError(err)
		}
		return s.unitResponse(input.UnitID)
	})

	// Promote preview to live
	huma.Register(s.api, huma.Operation{
		OperationID: "promote-preview",
		Method:      http.MethodPost,
		Path:        "/api/units/{unit_id}/preview/promote",
		Summary:     "Promote Preview",
		Description: "Take a previewing unit live without restarting the engine process",
		Tags:        []string{"units"},
		Errors:      []int{401, 404, 409, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *UnitPathInput) (*models.UnitResponse, error) {
		if err := s.units.PreviewToLive(input.UnitID); err != nil {
			return nil, s.mapUnitError(err)
		}
		return s.unitResponse(input.UnitID)
	})

	// Cancel preview
	huma.Register(s.api, huma.Operation{
		OperationID: "cancel-preview",
		Method:      http.MethodDelete,
		Path:        "/api/units/{unit_id}/preview",
		Summary:     "Cancel Preview",
		Description: "Stop a previewing unit and return it to inactive",
		Tags:        []string{"units"},
		Errors:      []int{401, 404, 409, 502, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *UnitPathInput) (*models.UnitResponse, error) {
		if err := s.units.CancelPreview(ctx, input.UnitID); err != nil {
			return nil, s.mapUnitError(err)
		}
		return s.unitResponse(input.UnitID)
	})
}

// unitResponse fetches a unit and wraps it for the API, used by lifecycle
// endpoints to return the refreshed state.
func (s *Server) unitResponse(id string) (*models.UnitResponse, error) {
	unit, err := s.units.GetUnit(id)
	if err != nil {
		return nil, s.mapUnitError(err)
	}
	return &models.UnitResponse{
		Body: s.domainToAPIUnit(*unit),
	}, nil
}

// domainToAPIUnit converts a domain unit to API unit data
func (s *Server) domainToAPIUnit(unit units.StreamUnit) models.UnitData {
	destinations := make([]models.DestinationData, len(unit.Destinations))
	for i, destination := range unit.Destinations {
		destinations[i] = s.domainToAPIDestination(destination)
	}

	return models.UnitData{
		ID:                      unit.ID,
		Name:                    unit.Name,
		InputURL:                unit.InputURL,
		SourceOrientation:       string(unit.SourceOrientation),
		AutoDetectOrientation:   unit.AutoDetectOrientation,
		SourceWidth:             unit.SourceWidth,
		SourceHeight:            unit.SourceHeight,
		Destinations:            destinations,
		AutoStart:               unit.AutoStart,
		AutoReconnect:           unit.AutoReconnect,
		ReconnectDelaySec:       unit.ReconnectDelaySec,
		MaxReconnectAttempts:    unit.MaxReconnectAttempts,
		HealthMonitoringEnabled: unit.HealthMonitoringEnabled,
		HealthCheckIntervalSec:  unit.HealthCheckIntervalSec,
		FailureThreshold:        unit.FailureThreshold,
		CreatedAt:               unit.CreatedAt,
		UpdatedAt:               unit.UpdatedAt,
		Status:                  string(unit.Status),
		LastError:               unit.LastError,
		ProcessReference:        unit.ProcessReference,
		PreviewDurationSec:      unit.PreviewDurationSec,
		PreviewStartTime:        unit.PreviewStartTime,
	}
}

// domainToAPIDestination converts a domain destination to API data
func (s *Server) domainToAPIDestination(destination units.Destination) models.DestinationData {
	return models.DestinationData{
		ID:                  destination.ID,
		Platform:            string(destination.Platform),
		PlatformName:        destination.Platform.DisplayName(),
		StreamKey:           destination.StreamKey,
		IngestURL:           destination.IngestURL,
		TargetOrientation:   string(destination.TargetOrientation),
		Enabled:             destination.Enabled,
		AutoReconnect:       destination.AutoReconnect,
		Encoding:            encodingToAPI(destination.Encoding),
		IsBackup:            destination.IsBackup,
		PrimaryID:           destination.PrimaryID,
		BackupID:            destination.BackupID,
		FailoverActive:      destination.FailoverActive,
		FailoverStart:       destination.FailoverStart,
		Connected:           destination.Connected,
		ConsecutiveFailures: destination.ConsecutiveFailures,
		ReconnectAttempts:   destination.ReconnectAttempts,
		LastHealthCheck:     destination.LastHealthCheck,
		BytesSent:           destination.BytesSent,
		DroppedFrames:       destination.DroppedFrames,
	}
}

// encodingToAPI converts domain encoding settings to API data
func encodingToAPI(encoding units.EncodingSettings) models.EncodingData {
	return models.EncodingData{
		VideoBitrateKbps: encoding.VideoBitrateKbps,
		AudioBitrateKbps: encoding.AudioBitrateKbps,
		Width:            encoding.Width,
		Height:           encoding.Height,
		FPSNum:           encoding.FPSNum,
		FPSDen:           encoding.FPSDen,
		Preset:           encoding.Preset,
		Profile:          encoding.Profile,
		AudioTrack:       encoding.AudioTrack,
		MaxBandwidthKbps: encoding.MaxBandwidthKbps,
		LowLatency:       encoding.LowLatency,
	}
}

// apiToEncoding converts API encoding data to domain settings
func apiToEncoding(encoding models.EncodingData) units.EncodingSettings {
	return units.EncodingSettings{
		VideoBitrateKbps: encoding.VideoBitrateKbps,
		AudioBitrateKbps: encoding.AudioBitrateKbps,
		Width:            encoding.Width,
		Height:           encoding.Height,
		FPSNum:           encoding.FPSNum,
		FPSDen:           encoding.FPSDen,
		Preset:           encoding.Preset,
		Profile:          encoding.Profile,
		AudioTrack:       encoding.AudioTrack,
		MaxBandwidthKbps: encoding.MaxBandwidthKbps,
		LowLatency:       encoding.LowLatency,
	}
}

// mapUnitError maps domain errors to HTTP errors
func (s *Server) mapUnitError(err error) error {
	var unitErr *units.UnitError
	if errors.As(err, &unitErr) {
		switch unitErr.Code {
		case units.ErrCodeNotFound:
			return huma.Error404NotFound(unitErr.Message, err)
		case units.ErrCodeValidation:
			return huma.Error400BadRequest(unitErr.Message, err)
		case units.ErrCodeConflict, units.ErrCodePolicyExhausted:
			return huma.Error409Conflict(unitErr.Message, err)
		case units.ErrCodeRemoteUnavailable:
			return huma.Error502BadGateway(unitErr.Message, err)
		default:
			return huma.Error500InternalServerError("internal server error", err)
		}
	}
	return huma.Error500InternalServerError("internal server error", err)
}
