package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/multistream/internal/api/models"
	"github.com/smazurov/multistream/internal/units"
)

// DestinationPathInput identifies a destination inside a unit.
type DestinationPathInput struct {
	UnitPathInput
	DestinationID string `path:"destination_id" example:"twitch_9f3ac2" doc:"Destination identifier"`
}

// registerDestinationRoutes registers destination, failover and bulk endpoints
func (s *Server) registerDestinationRoutes() {
	// Add destination to unit
	huma.Register(s.api, huma.Operation{
		OperationID: "add-destination",
		Method:      http.MethodPost,
		Path:        "/api/units/{unit_id}/destinations",
		Summary:     "Add Destination",
		Description: "Add a streaming target to a unit; a running unit picks it up on restart",
		Tags:        []string{"destinations"},
		Errors:      []int{400, 401, 404, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		UnitPathInput
		Body models.DestinationCreateRequestData
	}) (*models.DestinationResponse, error) {
		params := units.DestinationCreateParams{
			Platform:          units.Platform(input.Body.Platform),
			StreamKey:         input.Body.StreamKey,
			CustomURL:         input.Body.CustomURL,
			TargetOrientation: units.Orientation(input.Body.TargetOrientation),
			Enabled:           input.Body.Enabled,
			AutoReconnect:     input.Body.AutoReconnect,
		}
		if input.Body.Encoding != nil {
			encoding := apiToEncoding(*input.Body.Encoding)
			params.Encoding = &encoding
		}

		destination, err := s.units.AddDestination(input.UnitID, params)
		if err != nil {
			return nil, s.mapUnitError(err)
		}

		return &models.DestinationResponse{
			Body: s.domainToAPIDestination(*destination),
		}, nil
	})

	// Add destination from template. Literal segment, registered alongside
	// the {destination_id} wildcard; the mux prefers the literal.
	huma.Register(s.api, huma.Operation{
		OperationID: "add-destination-from-template",
		Method:      http.MethodPost,
		Path:        "/api/units/{unit_id}/destinations/from-template",
		Summary:     "Add Destination From Template",
		Description: "Add a destination using a template's platform, orientation and encoder settings",
		Tags:        []string{"destinations", "templates"},
		Errors:      []int{400, 401, 404, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		UnitPathInput
		Body models.FromTemplateRequestData
	}) (*models.DestinationResponse, error) {
		destination, err := s.units.AddDestinationFromTemplate(input.UnitID, input.Body.TemplateID, input.Body.StreamKey)
		if err != nil {
			return nil, s.mapUnitError(err)
		}

		return &models.DestinationResponse{
			Body: s.domainToAPIDestination(*destination),
		}, nil
	})

	// Update destination
	huma.Register(s.api, huma.Operation{
		OperationID: "update-destination",
		Method:      http.MethodPatch,
		Path:        "/api/units/{unit_id}/destinations/{destination_id}",
		Summary:     "Update Destination",
		Description: "Apply changes to one destination; URL changes reach the live process immediately",
		Tags:        []string{"destinations"},
		Errors:      []int{400, 401, 404, 409, 502, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		DestinationPathInput
		Body models.DestinationUpdateRequestData
	}) (*models.DestinationResponse, error) {
		params := units.DestinationUpdateParams{
			StreamKey:     input.Body.StreamKey,
			CustomURL:     input.Body.CustomURL,
			Enabled:       input.Body.Enabled,
			AutoReconnect: input.Body.AutoReconnect,
		}
		if input.Body.TargetOrientation != nil {
			orientation := units.Orientation(*input.Body.TargetOrientation)
			params.TargetOrientation = &orientation
		}
		if input.Body.Encoding != nil {
			encoding := apiToEncoding(*input.Body.Encoding)
			params.Encoding = &encoding
		}

		destination, err := s.units.UpdateDestination(ctx, input.UnitID, input.DestinationID, params)
		if err != nil {
			return nil, s.mapUnitError(err)
		}

		return &models.DestinationResponse{
			Body: s.domainToAPIDestination(*destination),
		}, nil
	})

	// Replace encoder overrides, pushing them to the live process
	huma.Register(s.api, huma.Operation{
		OperationID: "update-destination-encoding",
		Method:      http.MethodPut,
		Path:        "/api/units/{unit_id}/destinations/{destination_id}/encoding",
		Summary:     "Update Destination Encoding",
		Description: "Replace a destination's encoder overrides; an active unit applies them without restarting",
		Tags:        []string{"destinations"},
		Errors:      []int{400, 401, 404, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		DestinationPathInput
		Body models.EncodingData
	}) (*models.DestinationResponse, error) {
		encoding := apiToEncoding(input.Body)
		destination, err := s.units.UpdateDestination(ctx, input.UnitID, input.DestinationID, units.DestinationUpdateParams{
			Encoding: &encoding,
		})
		if err != nil {
			return nil, s.mapUnitError(err)
		}

		return &models.DestinationResponse{
			Body: s.domainToAPIDestination(*destination),
		}, nil
	})

	// Remove destination
	huma.Register(s.api, huma.Operation{
		OperationID: "remove-destination",
		Method:      http.MethodDelete,
		Path:        "/api/units/{unit_id}/destinations/{destination_id}",
		Summary:     "Remove Destination",
		Description: "Remove a destination, detaching its live output first when the unit is running",
		Tags:        []string{"destinations"},
		Errors:      []int{401, 404, 502, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *DestinationPathInput) (*struct{}, error) {
		if err := s.units.RemoveDestination(ctx, input.UnitID, input.DestinationID); err != nil {
			return nil, s.mapUnitError(err)
		}
		return &struct{}{}, nil
	})

	// Assign backup destination
	huma.Register(s.api, huma.Operation{
		OperationID: "set-backup",
		Method:      http.MethodPut,
		Path:        "/api/units/{unit_id}/destinations/{destination_id}/backup",
		Summary:     "Set Backup",
		Description: "Link a standby destination to this primary for automatic failover",
		Tags:        []string{"failover"},
		Errors:      []int{400, 401, 404, 409, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		DestinationPathInput
		Body models.SetBackupRequestData
	}) (*models.UnitResponse, error) {
		if err := s.units.SetBackup(ctx, input.UnitID, input.DestinationID, input.Body.BackupID); err != nil {
			return nil, s.mapUnitError(err)
		}
		return s.unitResponse(input.UnitID)
	})

	// Remove backup linkage
	huma.Register(s.api, huma.Operation{
		OperationID: "remove-backup",
		Method:      http.MethodDelete,
		Path:        "/api/units/{unit_id}/destinations/{destination_id}/backup",
		Summary:     "Remove Backup",
		Description: "Unlink the backup from this primary; an active failover must be restored first",
		Tags:        []string{"failover"},
		Errors:      []int{401, 404, 409, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *DestinationPathInput) (*models.UnitResponse, error) {
		if err := s.units.RemoveBackup(input.UnitID, input.DestinationID); err != nil {
			return nil, s.mapUnitError(err)
		}
		return s.unitResponse(input.UnitID)
	})

	// Manually trigger failover
	huma.Register(s.api, huma.Operation{
		OperationID: "trigger-failover",
		Method:      http.MethodPost,
		Path:        "/api/units/{unit_id}/destinations/{destination_id}/failover",
		Summary:     "Trigger Failover",
		Description: "Switch the stream from this primary to its backup destination",
		Tags:        []string{"failover"},
		Errors:      []int{401, 404, 409, 502, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *DestinationPathInput) (*models.UnitResponse, error) {
		if err := s.units.TriggerFailover(ctx, input.UnitID, input.DestinationID); err != nil {
			return nil, s.mapUnitError(err)
		}
		return s.unitResponse(input.UnitID)
	})

	// Restore primary after failover
	huma.Register(s.api, huma.Operation{
		OperationID: "restore-primary",
		Method:      http.MethodDelete,
		Path:        "/api/units/{unit_id}/destinations/{destination_id}/failover",
		Summary:     "Restore Primary",
		Description: "Switch the stream back from the backup to this primary destination",
		Tags:        []string{"failover"},
		Errors:      []int{401, 404, 409, 502, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *DestinationPathInput) (*models.UnitResponse, error) {
		if err := s.units.RestorePrimary(ctx, input.UnitID, input.DestinationID); err != nil {
			return nil, s.mapUnitError(err)
		}
		return s.unitResponse(input.UnitID)
	})

	// Bulk enable or disable
	huma.Register(s.api, huma.Operation{
		OperationID: "bulk-set-enabled",
		Method:      http.MethodPost,
		Path:        "/api/units/{unit_id}/destinations/bulk/enabled",
		Summary:     "Bulk Set Enabled",
		Description: "Enable or disable several destinations by display index; failures do not stop the batch",
		Tags:        []string{"destinations"},
		Errors:      []int{400, 401, 404, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		UnitPathInput
		Body models.BulkEnabledRequestData
	}) (*models.BulkResultResponse, error) {
		results, err := s.units.BulkSetEnabled(ctx, input.UnitID, input.Body.Indices, input.Body.Enabled)
		if err != nil {
			return nil, s.mapUnitError(err)
		}
		return bulkResponse(results), nil
	})

	// Bulk delete
	huma.Register(s.api, huma.Operation{
		OperationID: "bulk-delete-destinations",
		Method:      http.MethodPost,
		Path:        "/api/units/{unit_id}/destinations/bulk/delete",
		Summary:     "Bulk Delete Destinations",
		Description: "Remove several destinations by display index in one call",
		Tags:        []string{"destinations"},
		Errors:      []int{400, 401, 404, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		UnitPathInput
		Body models.BulkIndicesRequestData
	}) (*models.BulkResultResponse, error) {
		results, err := s.units.BulkDelete(ctx, input.UnitID, input.Body.Indices)
		if err != nil {
			return nil, s.mapUnitError(err)
		}
		return bulkResponse(results), nil
	})

	// Bulk encoding update
	huma.Register(s.api, huma.Operation{
		OperationID: "bulk-update-encoding",
		Method:      http.MethodPost,
		Path:        "/api/units/{unit_id}/destinations/bulk/encoding",
		Summary:     "Bulk Update Encoding",
		Description: "Apply the same encoder overrides to several destinations",
		Tags:        []string{"destinations"},
		Errors:      []int{400, 401, 404, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		UnitPathInput
		Body models.BulkEncodingRequestData
	}) (*models.BulkResultResponse, error) {
		results, err := s.units.BulkUpdateEncoding(ctx, input.UnitID, input.Body.Indices, apiToEncoding(input.Body.Encoding))
		if err != nil {
			return nil, s.mapUnitError(err)
		}
		return bulkResponse(results), nil
	})

	// Bulk attach to live stream
	huma.Register(s.api, huma.Operation{
		OperationID: "bulk-start-destinations",
		Method:      http.MethodPost,
		Path:        "/api/units/{unit_id}/destinations/bulk/start",
		Summary:     "Bulk Start Destinations",
		Description: "Attach several destinations to the running stream by display index",
		Tags:        []string{"destinations"},
		Errors:      []int{400, 401, 404, 409, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		UnitPathInput
		Body models.BulkIndicesRequestData
	}) (*models.BulkResultResponse, error) {
		results, err := s.units.BulkStart(ctx, input.UnitID, input.Body.Indices)
		if err != nil {
			return nil, s.mapUnitError(err)
		}
		return bulkResponse(results), nil
	})

	// Bulk detach from live stream
	huma.Register(s.api, huma.Operation{
		OperationID: "bulk-stop-destinations",
		Method:      http.MethodPost,
		Path:        "/api/units/{unit_id}/destinations/bulk/stop",
		Summary:     "Bulk Stop Destinations",
		Description: "Detach several destinations from the running stream by display index",
		Tags:        []string{"destinations"},
		Errors:      []int{400, 401, 404, 409, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		UnitPathInput
		Body models.BulkIndicesRequestData
	}) (*models.BulkResultResponse, error) {
		results, err := s.units.BulkStop(ctx, input.UnitID, input.Body.Indices)
		if err != nil {
			return nil, s.mapUnitError(err)
		}
		return bulkResponse(results), nil
	})
}

// bulkResponse converts bulk item results to the API response with counts
func bulkResponse(results []units.BulkItemResult) *models.BulkResultResponse {
	items := make([]models.BulkItemData, len(results))
	succeeded := 0
	for i, result := range results {
		items[i] = models.BulkItemData{
			Index:         result.Index,
			DestinationID: result.DestinationID,
			OK:            result.OK,
			Error:         result.Error,
		}
		if result.OK {
			succeeded++
		}
	}

	return &models.BulkResultResponse{
		Body: models.BulkResultData{
			Results:   items,
			Succeeded: succeeded,
			Failed:    len(items) - succeeded,
		},
	}
}
