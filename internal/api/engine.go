package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/multistream/internal/api/models"
)

// ProcessCommandInput addresses an engine process and carries the command.
type ProcessCommandInput struct {
	ProcessID string `path:"process_id" example:"restreamer-ui:ingest:unit_1712345678_4821" doc:"Engine process identifier"`
	Body      struct {
		Command string `json:"command" enum:"start,stop,restart" example:"restart" doc:"Control command"`
	}
}

// registerEngineRoutes registers remote engine endpoints
func (s *Server) registerEngineRoutes() {
	// Engine reachability and process count. Never fails: an unreachable
	// engine is reported in the body, not as an HTTP error.
	huma.Register(s.api, huma.Operation{
		OperationID: "get-engine-status",
		Method:      http.MethodGet,
		Path:        "/api/engine/status",
		Summary:     "Get Engine Status",
		Description: "Check whether the streaming engine is reachable and report its version and process count",
		Tags:        []string{"engine"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.EngineStatusResponse, error) {
		return &models.EngineStatusResponse{
			Body: s.engineStatus(ctx),
		}, nil
	})

	// List engine processes
	huma.Register(s.api, huma.Operation{
		OperationID: "list-engine-processes",
		Method:      http.MethodGet,
		Path:        "/api/engine/processes",
		Summary:     "List Engine Processes",
		Description: "Get all processes on the streaming engine, ours and foreign alike",
		Tags:        []string{"engine"},
		Errors:      []int{401, 502, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.ProcessListResponse, error) {
		if s.options.Engine == nil {
			return nil, huma.Error502BadGateway("engine not configured")
		}

		processes, err := s.options.Engine.ListProcesses(ctx)
		if err != nil {
			return nil, huma.Error502BadGateway("failed to list engine processes", err)
		}

		apiProcesses := make([]models.ProcessData, len(processes))
		for i, process := range processes {
			apiProcesses[i] = models.ProcessData{
				ID:        process.ID,
				Reference: process.Reference,
				State:     process.State,
				Uptime:    process.Uptime,
				CPUUsage:  process.CPUUsage,
				Memory:    process.Memory,
			}
		}

		return &models.ProcessListResponse{
			Body: models.ProcessListData{
				Processes: apiProcesses,
				Count:     len(apiProcesses),
			},
		}, nil
	})

	// Control a single engine process. Works on foreign processes too, so
	// operators can nudge whatever the process list shows.
	huma.Register(s.api, huma.Operation{
		OperationID: "command-engine-process",
		Method:      http.MethodPost,
		Path:        "/api/engine/processes/{process_id}/command",
		Summary:     "Command Engine Process",
		Description: "Send a start, stop or restart command to a process on the streaming engine",
		Tags:        []string{"engine"},
		Errors:      []int{400, 401, 502, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *ProcessCommandInput) (*struct{}, error) {
		if s.options.Engine == nil {
			return nil, huma.Error502BadGateway("engine not configured")
		}

		if err := s.options.Engine.CommandProcess(ctx, input.ProcessID, input.Body.Command); err != nil {
			return nil, huma.Error502BadGateway("failed to command engine process", err)
		}

		return &struct{}{}, nil
	})

	// Reconcile local state against the engine
	huma.Register(s.api, huma.Operation{
		OperationID: "resync-engine",
		Method:      http.MethodPost,
		Path:        "/api/engine/resync",
		Summary:     "Resync Engine",
		Description: "Reconcile unit state against the engine's process list after a reconnect",
		Tags:        []string{"engine"},
		Errors:      []int{401, 502, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*struct{}, error) {
		if err := s.units.ResyncEngine(ctx); err != nil {
			return nil, s.mapUnitError(err)
		}
		return &struct{}{}, nil
	})
}

// engineStatus probes the engine with a short timeout and collects what it
// can; partial failures degrade fields instead of erroring.
func (s *Server) engineStatus(ctx context.Context) models.EngineStatusData {
	if s.options.Engine == nil {
		return models.EngineStatusData{
			Available: false,
			Error:     "engine not configured",
		}
	}

	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.options.Engine.Ping(probeCtx); err != nil {
		return models.EngineStatusData{
			Available: false,
			Error:     err.Error(),
		}
	}

	status := models.EngineStatusData{Available: true}

	if info, err := s.options.Engine.GetInfo(probeCtx); err == nil {
		status.Name = info.Name
		status.Version = info.Version
	}
	if processes, err := s.options.Engine.ListProcesses(probeCtx); err == nil {
		status.Processes = len(processes)
	}

	return status
}
