// Package models defines the wire types for the HTTP API.
package models

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2024-12-15 14:30" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go compiler version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Compiler used"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Engine status models
type EngineStatusData struct {
	Available bool   `json:"available" example:"true" doc:"Whether the engine answered the probe"`
	Name      string `json:"name,omitempty" example:"datarhei-core" doc:"Engine product name"`
	Version   string `json:"version,omitempty" example:"16.12.0" doc:"Engine version"`
	Processes int    `json:"processes" example:"3" doc:"Number of processes on the engine"`
	Error     string `json:"error,omitempty" doc:"Probe error when the engine is unreachable"`
}

type EngineStatusResponse struct {
	Body EngineStatusData
}

// ProcessData is one process on the remote engine.
type ProcessData struct {
	ID        string  `json:"id" example:"restreamer-ui:ingest:unit_1712345678_4821" doc:"Engine process identifier"`
	Reference string  `json:"reference" example:"unit_1712345678_4821" doc:"Caller-supplied process reference"`
	State     string  `json:"state" example:"running" doc:"Process state reported by the engine"`
	Uptime    int64   `json:"uptime" example:"3600" doc:"Process uptime in seconds"`
	CPUUsage  float64 `json:"cpu_usage" example:"12.5" doc:"CPU usage percent"`
	Memory    uint64  `json:"memory" example:"104857600" doc:"Memory usage in bytes"`
}

type ProcessListData struct {
	Processes []ProcessData `json:"processes" doc:"Processes on the engine"`
	Count     int           `json:"count" example:"3" doc:"Number of processes"`
}

type ProcessListResponse struct {
	Body ProcessListData
}

// Error response
type ErrorData struct {
	Status  string `json:"status" example:"error" doc:"Error status"`
	Message string `json:"message" example:"unit not found" doc:"Error message"`
}

type ErrorResponse struct {
	Body ErrorData
}
