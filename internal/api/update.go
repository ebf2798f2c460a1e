package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/multistream/internal/api/models"
	"github.com/smazurov/multistream/internal/updater"
)

// registerUpdateRoutes exposes self-update control. Restart works even
// when binary replacement is unavailable; the remaining update paths
// then answer 503 with the reason.
func (s *Server) registerUpdateRoutes() {
	svc := s.options.UpdateService
	if svc == nil {
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "restart-service",
		Method:      http.MethodPost,
		Path:        "/api/update/restart",
		Summary:     "Restart Service",
		Description: "Restart the service without changing the binary. Running stream units are re-adopted on startup.",
		Tags:        []string{"update"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.UpdateActionResponse, error) {
		if err := svc.Restart(ctx); err != nil {
			return nil, huma.Error500InternalServerError(err.Error())
		}
		return updateAck("restarting"), nil
	})

	if !svc.IsEnabled() {
		s.registerDisabledUpdateRoutes(svc.DisabledReason())
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "check-updates",
		Method:      http.MethodGet,
		Path:        "/api/update/check",
		Summary:     "Check for Updates",
		Description: "Check whether a newer release exists without downloading anything",
		Tags:        []string{"update"},
		Errors:      []int{401, 409, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.UpdateCheckResponse, error) {
		info, err := svc.CheckForUpdate(ctx)
		if err != nil {
			return nil, mapUpdateError(err)
		}
		return &models.UpdateCheckResponse{
			Body: models.UpdateCheckData{
				CurrentVersion:  info.CurrentVersion,
				LatestVersion:   info.LatestVersion,
				ReleaseNotes:    info.ReleaseNotes,
				ReleaseURL:      info.ReleaseURL,
				PublishedAt:     info.PublishedAt,
				AssetSize:       info.AssetSize,
				UpdateAvailable: info.UpdateAvailable,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-update-status",
		Method:      http.MethodGet,
		Path:        "/api/update/status",
		Summary:     "Get Update Status",
		Description: "Report the updater state machine, versions and rollback availability",
		Tags:        []string{"update"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.UpdateStatusResponse, error) {
		status := svc.GetStatus(ctx)
		return &models.UpdateStatusResponse{
			Body: models.UpdateStatusData{
				State:           string(status.State),
				CurrentVersion:  status.CurrentVersion,
				TargetVersion:   status.TargetVersion,
				Progress:        status.Progress,
				Error:           status.Error,
				LastChecked:     status.LastChecked,
				BackupAvailable: status.BackupAvailable,
				BackupVersion:   status.BackupVersion,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "apply-update",
		Method:      http.MethodPost,
		Path:        "/api/update/apply",
		Summary:     "Apply Update",
		Description: "Download and install the available update, then restart",
		Tags:        []string{"update"},
		Errors:      []int{400, 401, 409, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.UpdateActionResponse, error) {
		if err := svc.ApplyUpdate(ctx); err != nil {
			return nil, mapUpdateError(err)
		}
		return updateAck("update applied, restarting"), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "apply-dev-build",
		Method:      http.MethodPost,
		Path:        "/api/update/dev",
		Summary:     "Apply Dev Build",
		Description: "Install the rolling dev build regardless of version, then restart",
		Tags:        []string{"update"},
		Errors:      []int{401, 409, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.UpdateActionResponse, error) {
		if err := svc.ApplyDevBuild(ctx); err != nil {
			return nil, mapUpdateError(err)
		}
		return updateAck("dev build applied, restarting"), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "rollback-update",
		Method:      http.MethodPost,
		Path:        "/api/update/rollback",
		Summary:     "Rollback Update",
		Description: "Restore the previously saved binary, then restart",
		Tags:        []string{"update"},
		Errors:      []int{400, 401, 404, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.UpdateActionResponse, error) {
		if err := svc.Rollback(ctx); err != nil {
			return nil, mapUpdateError(err)
		}
		return updateAck("rollback complete, restarting"), nil
	})
}

// registerDisabledUpdateRoutes keeps the update paths discoverable
// when the binary is not writable, answering 503 with the reason.
func (s *Server) registerDisabledUpdateRoutes(reason string) {
	handler := func(_ context.Context, _ *struct{}) (*struct{}, error) {
		return nil, huma.Error503ServiceUnavailable("Update service disabled: " + reason)
	}

	routes := []struct {
		id      string
		method  string
		path    string
		summary string
	}{
		{"check-updates", http.MethodGet, "/api/update/check", "Check for Updates"},
		{"get-update-status", http.MethodGet, "/api/update/status", "Get Update Status"},
		{"apply-update", http.MethodPost, "/api/update/apply", "Apply Update"},
		{"apply-dev-build", http.MethodPost, "/api/update/dev", "Apply Dev Build"},
		{"rollback-update", http.MethodPost, "/api/update/rollback", "Rollback Update"},
	}
	for _, r := range routes {
		huma.Register(s.api, huma.Operation{
			OperationID: r.id,
			Method:      r.method,
			Path:        r.path,
			Summary:     r.summary,
			Description: "Unavailable while self-update is disabled",
			Tags:        []string{"update"},
			Errors:      []int{503},
			Security:    withAuth(),
		}, handler)
	}
}

func updateAck(message string) *models.UpdateActionResponse {
	resp := &models.UpdateActionResponse{}
	resp.Body.Message = message
	return resp
}

// mapUpdateError translates updater error codes into HTTP statuses.
func mapUpdateError(err error) error {
	var upErr *updater.Error
	if !errors.As(err, &upErr) {
		return huma.Error500InternalServerError(err.Error())
	}
	switch upErr.Code {
	case updater.ErrCodeInvalidState:
		return huma.Error409Conflict(upErr.Message)
	case updater.ErrCodeNoUpdate:
		return huma.Error400BadRequest(upErr.Message)
	case updater.ErrCodeNoBackup:
		return huma.Error404NotFound(upErr.Message)
	case updater.ErrCodeDisabled:
		return huma.Error503ServiceUnavailable(upErr.Message)
	default:
		return huma.Error500InternalServerError(upErr.Message)
	}
}
