package events

// Event type constants for kelindar/event.
const (
	TypeUnitCreated uint32 = iota + 1
	TypeUnitUpdated
	TypeUnitDeleted
	TypeUnitStatusChanged
	TypeDestinationHealth
	TypeFailover
	TypeReconnect
	TypeUnitMetrics
	TypeEngineStatus
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// UnitCreatedEvent is published when a stream unit is created.
type UnitCreatedEvent struct {
	UnitID    string `json:"unit_id" example:"unit_1712345678_4821" doc:"Unit identifier"`
	Name      string `json:"name" example:"Main Show" doc:"Unit display name"`
	Action    string `json:"action" example:"created" doc:"Action type"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for UnitCreatedEvent.
func (e UnitCreatedEvent) Type() uint32 { return TypeUnitCreated }

// UnitUpdatedEvent is published when a unit's configuration changes.
type UnitUpdatedEvent struct {
	UnitID    string `json:"unit_id" example:"unit_1712345678_4821" doc:"Unit identifier"`
	Name      string `json:"name" example:"Main Show" doc:"Unit display name"`
	Action    string `json:"action" example:"updated" doc:"Action type"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for UnitUpdatedEvent.
func (e UnitUpdatedEvent) Type() uint32 { return TypeUnitUpdated }

// UnitDeletedEvent is published when a unit is removed.
type UnitDeletedEvent struct {
	UnitID    string `json:"unit_id" example:"unit_1712345678_4821" doc:"Deleted unit identifier"`
	Action    string `json:"action" example:"deleted" doc:"Action type"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for UnitDeletedEvent.
func (e UnitDeletedEvent) Type() uint32 { return TypeUnitDeleted }

// UnitStatusChangedEvent reports a unit lifecycle transition.
type UnitStatusChangedEvent struct {
	UnitID    string `json:"unit_id" example:"unit_1712345678_4821" doc:"Unit identifier"`
	Name      string `json:"name" example:"Main Show" doc:"Unit display name"`
	OldStatus string `json:"old_status" example:"inactive" doc:"Status before the transition"`
	NewStatus string `json:"new_status" example:"active" doc:"Status after the transition"`
	Error     string `json:"error,omitempty" example:"engine unreachable" doc:"Error message for error transitions"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for UnitStatusChangedEvent.
func (e UnitStatusChangedEvent) Type() uint32 { return TypeUnitStatusChanged }

// DestinationHealthEvent reports a destination health transition from the
// health monitor.
type DestinationHealthEvent struct {
	UnitID        string `json:"unit_id" example:"unit_1712345678_4821" doc:"Unit identifier"`
	DestinationID string `json:"destination_id" example:"twitch_9f3ac2" doc:"Stable destination identifier"`
	Platform      string `json:"platform" example:"twitch" doc:"Target platform"`
	Connected     bool   `json:"connected" example:"true" doc:"Whether the output is attached and running"`
	Failures      int    `json:"failures" example:"0" doc:"Consecutive failure count"`
	Timestamp     string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DestinationHealthEvent.
func (e DestinationHealthEvent) Type() uint32 { return TypeDestinationHealth }

// FailoverEvent reports a primary/backup swap or restore.
type FailoverEvent struct {
	UnitID    string `json:"unit_id" example:"unit_1712345678_4821" doc:"Unit identifier"`
	PrimaryID string `json:"primary_id" example:"twitch_9f3ac2" doc:"Primary destination identifier"`
	BackupID  string `json:"backup_id" example:"youtube_b41e77" doc:"Backup destination identifier"`
	Action    string `json:"action" example:"triggered" doc:"Action type: triggered, restored"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for FailoverEvent.
func (e FailoverEvent) Type() uint32 { return TypeFailover }

// ReconnectEvent reports automatic reconnect activity for a destination.
type ReconnectEvent struct {
	UnitID        string `json:"unit_id" example:"unit_1712345678_4821" doc:"Unit identifier"`
	DestinationID string `json:"destination_id" example:"twitch_9f3ac2" doc:"Destination identifier"`
	Attempt       int    `json:"attempt" example:"2" doc:"Reconnect attempt number"`
	DelaySeconds  int    `json:"delay_seconds" example:"5" doc:"Delay before the attempt"`
	Action        string `json:"action" example:"scheduled" doc:"Action type: scheduled, succeeded, failed, exhausted"`
	Timestamp     string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ReconnectEvent.
func (e ReconnectEvent) Type() uint32 { return TypeReconnect }

// UnitMetricsEvent carries a progress snapshot for an active unit.
type UnitMetricsEvent struct {
	EventType     string  `json:"type" example:"unit_metrics" doc:"Payload discriminator for SSE clients"`
	UnitID        string  `json:"unit_id" example:"unit_1712345678_4821" doc:"Unit identifier"`
	FPS           float64 `json:"fps" example:"60" doc:"Current frames per second"`
	BitrateKbit   float64 `json:"bitrate_kbit" example:"6000" doc:"Current bitrate in kbit/s"`
	BytesSent     uint64  `json:"bytes_sent" example:"123456789" doc:"Total bytes sent"`
	Frames        uint64  `json:"frames" example:"216000" doc:"Total frames processed"`
	DroppedFrames uint64  `json:"dropped_frames" example:"3" doc:"Total dropped frames"`
}

// Type returns the event type identifier for UnitMetricsEvent.
func (e UnitMetricsEvent) Type() uint32 { return TypeUnitMetrics }

// EngineStatusEvent reports remote engine availability transitions.
type EngineStatusEvent struct {
	Available bool   `json:"available" example:"true" doc:"Whether the engine is reachable"`
	Processes int    `json:"processes" example:"3" doc:"Number of processes on the engine"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for EngineStatusEvent.
func (e EngineStatusEvent) Type() uint32 { return TypeEngineStatus }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"units" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
