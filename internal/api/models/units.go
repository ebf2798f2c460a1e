package models

import "time"

// EncodingData carries per-destination encoder overrides. Zero values mean
// "use source settings".
type EncodingData struct {
	VideoBitrateKbps int    `json:"video_bitrate_kbps,omitempty" example:"6000" doc:"Video bitrate in kbit/s"`
	AudioBitrateKbps int    `json:"audio_bitrate_kbps,omitempty" example:"128" doc:"Audio bitrate in kbit/s"`
	Width            int    `json:"width,omitempty" example:"1920" doc:"Output width in pixels"`
	Height           int    `json:"height,omitempty" example:"1080" doc:"Output height in pixels"`
	FPSNum           int    `json:"fps_num,omitempty" example:"60" doc:"Framerate numerator"`
	FPSDen           int    `json:"fps_den,omitempty" example:"1" doc:"Framerate denominator"`
	Preset           string `json:"preset,omitempty" example:"veryfast" doc:"Encoder preset"`
	Profile          string `json:"profile,omitempty" example:"high" doc:"Encoder profile"`
	AudioTrack       int    `json:"audio_track,omitempty" example:"1" doc:"Source audio track index"`
	MaxBandwidthKbps int    `json:"max_bandwidth_kbps,omitempty" example:"8000" doc:"Bandwidth cap in kbit/s"`
	LowLatency       bool   `json:"low_latency,omitempty" example:"false" doc:"Prefer low-latency encoder settings"`
}

// DestinationData is one streaming target inside a unit.
type DestinationData struct {
	ID                string       `json:"id" example:"twitch_9f3ac2" doc:"Stable destination identifier"`
	Platform          string       `json:"platform" example:"twitch" doc:"Target platform"`
	PlatformName      string       `json:"platform_name" example:"Twitch" doc:"Human-readable platform name"`
	StreamKey         string       `json:"stream_key" example:"live_123456" doc:"Platform stream key"`
	IngestURL         string       `json:"ingest_url,omitempty" example:"rtmp://live.twitch.tv/app" doc:"Ingest endpoint"`
	TargetOrientation string       `json:"target_orientation" example:"horizontal" doc:"Orientation the output is converted to"`
	Enabled           bool         `json:"enabled" example:"true" doc:"Whether the destination goes live on start"`
	AutoReconnect     bool         `json:"auto_reconnect" example:"true" doc:"Whether failed outputs reconnect automatically"`
	Encoding          EncodingData `json:"encoding" doc:"Per-destination encoder overrides"`

	IsBackup       bool      `json:"is_backup,omitempty" example:"false" doc:"Whether this destination is a standby backup"`
	PrimaryID      string    `json:"primary_id,omitempty" example:"twitch_9f3ac2" doc:"Primary destination this one backs up"`
	BackupID       string    `json:"backup_id,omitempty" example:"youtube_b41e77" doc:"Backup destination for this primary"`
	FailoverActive bool      `json:"failover_active,omitempty" example:"false" doc:"Whether the backup is currently carrying the stream"`
	FailoverStart  time.Time `json:"failover_start,omitzero" doc:"When the active failover began"`

	Connected           bool      `json:"connected" example:"true" doc:"Whether the output is attached and running"`
	ConsecutiveFailures int       `json:"consecutive_failures" example:"0" doc:"Consecutive failed health checks"`
	ReconnectAttempts   int       `json:"reconnect_attempts" example:"0" doc:"Reconnect attempts since the last success"`
	LastHealthCheck     time.Time `json:"last_health_check,omitzero" doc:"When the destination was last probed"`
	BytesSent           uint64    `json:"bytes_sent" example:"123456789" doc:"Total bytes sent"`
	DroppedFrames       uint64    `json:"dropped_frames" example:"3" doc:"Total dropped frames"`
}

// UnitData is the wire form of a stream unit.
type UnitData struct {
	ID                      string            `json:"id" example:"unit_1712345678_4821" doc:"Unit identifier"`
	Name                    string            `json:"name" example:"Main Show" doc:"Display name"`
	InputURL                string            `json:"input_url" example:"rtmp://localhost/live/obs_input" doc:"Source ingest URL"`
	SourceOrientation       string            `json:"source_orientation" example:"auto" doc:"Declared source orientation"`
	AutoDetectOrientation   bool              `json:"auto_detect_orientation" example:"true" doc:"Whether orientation is detected from source dimensions"`
	SourceWidth             int               `json:"source_width,omitempty" example:"1920" doc:"Source width in pixels"`
	SourceHeight            int               `json:"source_height,omitempty" example:"1080" doc:"Source height in pixels"`
	Destinations            []DestinationData `json:"destinations" doc:"Streaming targets"`
	AutoStart               bool              `json:"auto_start" example:"false" doc:"Whether the unit starts with the service"`
	AutoReconnect           bool              `json:"auto_reconnect" example:"true" doc:"Default auto-reconnect for new destinations"`
	ReconnectDelaySec       int               `json:"reconnect_delay_sec" example:"5" doc:"Delay between reconnect attempts in seconds"`
	MaxReconnectAttempts    int               `json:"max_reconnect_attempts" example:"5" doc:"Reconnect attempts before a destination is given up"`
	HealthMonitoringEnabled bool              `json:"health_monitoring_enabled" example:"true" doc:"Whether the health monitor runs for this unit"`
	HealthCheckIntervalSec  int               `json:"health_check_interval_sec" example:"30" doc:"Seconds between health checks"`
	FailureThreshold        int               `json:"failure_threshold" example:"3" doc:"Failed checks before reconnect or failover kicks in"`
	CreatedAt               time.Time         `json:"created_at" doc:"Creation time"`
	UpdatedAt               time.Time         `json:"updated_at" doc:"Last configuration change"`
	Status                  string            `json:"status" example:"active" doc:"Lifecycle status"`
	LastError               string            `json:"last_error,omitempty" doc:"Last start or health error"`
	ProcessReference        string            `json:"process_reference,omitempty" example:"unit_1712345678_4821" doc:"Engine process reference while live"`
	PreviewDurationSec      int               `json:"preview_duration_sec,omitempty" example:"300" doc:"Preview time limit in seconds, 0 means unlimited"`
	PreviewStartTime        time.Time         `json:"preview_start_time,omitzero" doc:"When the running preview began"`
}

type UnitListData struct {
	Units []UnitData `json:"units" doc:"All units in creation order"`
	Count int        `json:"count" example:"2" doc:"Number of units"`
}

type UnitListResponse struct {
	Body UnitListData
}

type UnitResponse struct {
	Body UnitData
}

// UnitCreateRequestData contains the fields for creating a unit.
type UnitCreateRequestData struct {
	Name      string `json:"name" minLength:"1" maxLength:"100" example:"Main Show" doc:"Display name"`
	InputURL  string `json:"input_url,omitempty" example:"rtmp://localhost/live/obs_input" doc:"Source ingest URL, defaults to the local OBS ingest"`
	AutoStart bool   `json:"auto_start,omitempty" example:"false" doc:"Start the unit when the service boots"`
}

type UnitCreateRequest struct {
	Body UnitCreateRequestData
}

// UnitUpdateRequestData contains optional unit configuration changes.
// Omitted fields are left unchanged.
type UnitUpdateRequestData struct {
	Name                    *string `json:"name,omitempty" example:"Main Show" doc:"Display name"`
	InputURL                *string `json:"input_url,omitempty" example:"rtmp://localhost/live/obs_input" doc:"Source ingest URL"`
	SourceOrientation       *string `json:"source_orientation,omitempty" example:"horizontal" doc:"Declared source orientation: auto, horizontal, vertical or square"`
	AutoDetectOrientation   *bool   `json:"auto_detect_orientation,omitempty" doc:"Detect orientation from source dimensions"`
	SourceWidth             *int    `json:"source_width,omitempty" example:"1920" doc:"Source width in pixels"`
	SourceHeight            *int    `json:"source_height,omitempty" example:"1080" doc:"Source height in pixels"`
	AutoStart               *bool   `json:"auto_start,omitempty" doc:"Start the unit when the service boots"`
	AutoReconnect           *bool   `json:"auto_reconnect,omitempty" doc:"Default auto-reconnect for new destinations"`
	ReconnectDelaySec       *int    `json:"reconnect_delay_sec,omitempty" example:"5" doc:"Delay between reconnect attempts in seconds"`
	MaxReconnectAttempts    *int    `json:"max_reconnect_attempts,omitempty" example:"5" doc:"Reconnect attempts before a destination is given up"`
	HealthMonitoringEnabled *bool   `json:"health_monitoring_enabled,omitempty" doc:"Run the health monitor for this unit"`
	HealthCheckIntervalSec  *int    `json:"health_check_interval_sec,omitempty" example:"30" doc:"Seconds between health checks"`
	FailureThreshold        *int    `json:"failure_threshold,omitempty" example:"3" doc:"Failed checks before reconnect or failover kicks in"`
}

// UnitDuplicateRequestData names the copy produced by duplicate-unit.
type UnitDuplicateRequestData struct {
	Name string `json:"name" minLength:"1" maxLength:"100" example:"Main Show (copy)" doc:"Name for the duplicated unit"`
}

// DestinationCreateRequestData contains the fields for adding a destination.
type DestinationCreateRequestData struct {
	Platform          string        `json:"platform" example:"twitch" doc:"Target platform: twitch, youtube, facebook, kick, tiktok, instagram, x or custom"`
	StreamKey         string        `json:"stream_key,omitempty" example:"live_123456" doc:"Platform stream key, required except for key-less custom URLs"`
	CustomURL         string        `json:"custom_url,omitempty" example:"rtmp://ingest.example.com/live" doc:"Full ingest URL, required for the custom platform"`
	TargetOrientation string        `json:"target_orientation,omitempty" example:"horizontal" doc:"Orientation to convert the output to, defaults to auto"`
	Encoding          *EncodingData `json:"encoding,omitempty" doc:"Encoder overrides"`
	Enabled           *bool         `json:"enabled,omitempty" doc:"Whether the destination goes live on start, defaults to true"`
	AutoReconnect     *bool         `json:"auto_reconnect,omitempty" doc:"Reconnect automatically, defaults to the unit's flag"`
}

// DestinationUpdateRequestData contains optional destination changes.
// Omitted fields are left unchanged.
type DestinationUpdateRequestData struct {
	StreamKey         *string       `json:"stream_key,omitempty" example:"live_654321" doc:"Platform stream key"`
	CustomURL         *string       `json:"custom_url,omitempty" example:"rtmp://ingest.example.com/live" doc:"Ingest URL, custom platform only"`
	TargetOrientation *string       `json:"target_orientation,omitempty" example:"vertical" doc:"Orientation to convert the output to"`
	Enabled           *bool         `json:"enabled,omitempty" doc:"Attach or detach the destination"`
	AutoReconnect     *bool         `json:"auto_reconnect,omitempty" doc:"Reconnect automatically on failure"`
	Encoding          *EncodingData `json:"encoding,omitempty" doc:"Encoder overrides"`
}

type DestinationResponse struct {
	Body DestinationData
}

// SetBackupRequestData links a standby destination to a primary.
type SetBackupRequestData struct {
	BackupID string `json:"backup_id" minLength:"1" example:"youtube_b41e77" doc:"Destination that stands by for this primary"`
}

// PreviewRequestData configures a preview run.
type PreviewRequestData struct {
	DurationSec int `json:"duration_sec,omitempty" example:"300" doc:"Auto-stop after this many seconds, 0 means unlimited"`
}

// UnitHealthData is the result of an on-demand health probe.
type UnitHealthData struct {
	UnitID  string `json:"unit_id" example:"unit_1712345678_4821" doc:"Unit identifier"`
	Healthy bool   `json:"healthy" example:"true" doc:"Whether every live destination passed the probe"`
}

type UnitHealthResponse struct {
	Body UnitHealthData
}

// Bulk operation models
type BulkIndicesRequestData struct {
	Indices []int `json:"indices" doc:"Display indices of the destinations to affect"`
}

type BulkEnabledRequestData struct {
	Indices []int `json:"indices" doc:"Display indices of the destinations to affect"`
	Enabled bool  `json:"enabled" example:"true" doc:"Target enabled state"`
}

type BulkEncodingRequestData struct {
	Indices  []int        `json:"indices" doc:"Display indices of the destinations to affect"`
	Encoding EncodingData `json:"encoding" doc:"Encoder overrides to apply"`
}

type BulkItemData struct {
	Index         int    `json:"index" example:"0" doc:"Display index from the request"`
	DestinationID string `json:"destination_id,omitempty" example:"twitch_9f3ac2" doc:"Resolved destination"`
	OK            bool   `json:"ok" example:"true" doc:"Whether the item succeeded"`
	Error         string `json:"error,omitempty" doc:"Failure reason"`
}

type BulkResultData struct {
	Results   []BulkItemData `json:"results" doc:"Per-item outcomes in request order"`
	Succeeded int            `json:"succeeded" example:"2" doc:"Items that succeeded"`
	Failed    int            `json:"failed" example:"0" doc:"Items that failed"`
}

type BulkResultResponse struct {
	Body BulkResultData
}
