package units

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// UnitStatus is the lifecycle state of a StreamUnit.
type UnitStatus string

// Unit lifecycle states.
const (
	StatusInactive UnitStatus = "inactive" // Not streaming
	StatusStarting UnitStatus = "starting" // Process being created
	StatusActive   UnitStatus = "active"   // Streaming to destinations
	StatusStopping UnitStatus = "stopping" // Process being torn down
	StatusError    UnitStatus = "error"    // Last start/health action failed
	StatusPreview  UnitStatus = "preview"  // Streaming in test mode
)

// Orientation describes the aspect class of a video stream.
type Orientation string

// Stream orientations. Auto means "match the source".
const (
	OrientationAuto       Orientation = "auto"
	OrientationHorizontal Orientation = "horizontal"
	OrientationVertical   Orientation = "vertical"
	OrientationSquare     Orientation = "square"
)

// DetectOrientation classifies a resolution into an orientation. Square is
// matched within a 5% aspect tolerance; unknown dimensions return auto.
func DetectOrientation(width, height int) Orientation {
	if width == 0 || height == 0 {
		return OrientationAuto
	}

	ratio := float64(width) / float64(height)
	switch {
	case ratio > 0.95 && ratio < 1.05:
		return OrientationSquare
	case ratio < 1.0:
		return OrientationVertical
	default:
		return OrientationHorizontal
	}
}

// EncodingSettings carries per-destination encoder overrides. Zero values
// mean "use source settings" and are never pushed to the engine. AudioTrack,
// MaxBandwidthKbps and LowLatency are advisory hints for the source encoder
// and stay local.
type EncodingSettings struct {
	VideoBitrateKbps int    `toml:"video_bitrate_kbps,omitempty" json:"video_bitrate_kbps,omitempty"`
	AudioBitrateKbps int    `toml:"audio_bitrate_kbps,omitempty" json:"audio_bitrate_kbps,omitempty"`
	Width            int    `toml:"width,omitempty" json:"width,omitempty"`
	Height           int    `toml:"height,omitempty" json:"height,omitempty"`
	FPSNum           int    `toml:"fps_num,omitempty" json:"fps_num,omitempty"`
	FPSDen           int    `toml:"fps_den,omitempty" json:"fps_den,omitempty"`
	Preset           string `toml:"preset,omitempty" json:"preset,omitempty"`
	Profile          string `toml:"profile,omitempty" json:"profile,omitempty"`
	AudioTrack       int    `toml:"audio_track,omitempty" json:"audio_track,omitempty"`
	MaxBandwidthKbps int    `toml:"max_bandwidth_kbps,omitempty" json:"max_bandwidth_kbps,omitempty"`
	LowLatency       bool   `toml:"low_latency,omitempty" json:"low_latency,omitempty"`
}

// IsZero reports whether no encoding override is set.
func (e EncodingSettings) IsZero() bool {
	return e == EncodingSettings{}
}

// Destination is one streaming target inside a unit. The ID doubles as the
// remote output identifier, so it stays stable across reordering and
// removal of sibling destinations.
type Destination struct {
	ID                string           `toml:"id" json:"id"`
	Platform          Platform         `toml:"platform" json:"platform"`
	StreamKey         string           `toml:"stream_key" json:"stream_key"`
	IngestURL         string           `toml:"ingest_url,omitempty" json:"ingest_url,omitempty"`
	TargetOrientation Orientation      `toml:"target_orientation" json:"target_orientation"`
	Enabled           bool             `toml:"enabled" json:"enabled"`
	AutoReconnect     bool             `toml:"auto_reconnect" json:"auto_reconnect"`
	Encoding          EncodingSettings `toml:"encoding,omitempty" json:"encoding"`

	// Failover linkage, stored by destination id so index shifts cannot
	// orphan a pair. One backup per primary.
	IsBackup       bool      `toml:"is_backup,omitempty" json:"is_backup,omitempty"`
	PrimaryID      string    `toml:"primary_id,omitempty" json:"primary_id,omitempty"`
	BackupID       string    `toml:"backup_id,omitempty" json:"backup_id,omitempty"`
	FailoverActive bool      `toml:"failover_active,omitempty" json:"failover_active,omitempty"`
	FailoverStart  time.Time `toml:"failover_start,omitempty" json:"failover_start,omitempty"`

	// Runtime connection state, reset on load.
	Connected           bool      `toml:"-" json:"connected"`
	ConsecutiveFailures int       `toml:"-" json:"consecutive_failures"`
	ReconnectAttempts   int       `toml:"-" json:"reconnect_attempts"`
	LastHealthCheck     time.Time `toml:"-" json:"last_health_check,omitzero"`
	BytesSent           uint64    `toml:"-" json:"bytes_sent"`
	DroppedFrames       uint64    `toml:"-" json:"dropped_frames"`
}

// OutputURL returns the full publish URL. Custom destinations may already
// carry a complete URL; their stream key is appended only when present.
func (d *Destination) OutputURL() string {
	if d.Platform == PlatformCustom && d.StreamKey == "" {
		return d.IngestURL
	}
	return d.IngestURL + "/" + d.StreamKey
}

// StreamUnit groups destinations fed from one input stream. All runtime
// fields reset when a unit is loaded from disk.
type StreamUnit struct {
	ID   string `toml:"id" json:"id"`
	Name string `toml:"name" json:"name"`

	InputURL              string      `toml:"input_url" json:"input_url"`
	SourceOrientation     Orientation `toml:"source_orientation" json:"source_orientation"`
	AutoDetectOrientation bool        `toml:"auto_detect_orientation" json:"auto_detect_orientation"`
	SourceWidth           int         `toml:"source_width,omitempty" json:"source_width,omitempty"`
	SourceHeight          int         `toml:"source_height,omitempty" json:"source_height,omitempty"`

	Destinations []Destination `toml:"destinations" json:"destinations"`

	AutoStart            bool `toml:"auto_start" json:"auto_start"`
	AutoReconnect        bool `toml:"auto_reconnect" json:"auto_reconnect"`
	ReconnectDelaySec    int  `toml:"reconnect_delay_sec" json:"reconnect_delay_sec"`
	MaxReconnectAttempts int  `toml:"max_reconnect_attempts" json:"max_reconnect_attempts"`

	HealthMonitoringEnabled bool `toml:"health_monitoring_enabled" json:"health_monitoring_enabled"`
	HealthCheckIntervalSec  int  `toml:"health_check_interval_sec" json:"health_check_interval_sec"`
	FailureThreshold        int  `toml:"failure_threshold" json:"failure_threshold"`

	CreatedAt time.Time `toml:"created_at" json:"created_at"`
	UpdatedAt time.Time `toml:"updated_at" json:"updated_at"`

	// Runtime state, never persisted.
	Status             UnitStatus `toml:"-" json:"status"`
	LastError          string     `toml:"-" json:"last_error,omitempty"`
	ProcessReference   string     `toml:"-" json:"process_reference,omitempty"`
	PreviewDurationSec int        `toml:"-" json:"preview_duration_sec,omitempty"`
	PreviewStartTime   time.Time  `toml:"-" json:"preview_start_time,omitzero"`
}

// Clone returns a deep copy safe to hand outside the manager's locks.
func (u *StreamUnit) Clone() *StreamUnit {
	unitCopy := *u
	unitCopy.Destinations = make([]Destination, len(u.Destinations))
	copy(unitCopy.Destinations, u.Destinations)
	return &unitCopy
}

// FindDestination returns the destination with the given id and its index,
// or nil and -1.
func (u *StreamUnit) FindDestination(id string) (*Destination, int) {
	for i := range u.Destinations {
		if u.Destinations[i].ID == id {
			return &u.Destinations[i], i
		}
	}
	return nil, -1
}

// EnabledDestinations returns the indices of destinations that would go
// live on Start: enabled and not a standby backup. A backup whose failover
// is active counts, so a restart does not silently drop a failed-over pair.
func (u *StreamUnit) EnabledDestinations() []int {
	var indices []int
	for i := range u.Destinations {
		d := &u.Destinations[i]
		if d.Enabled && (!d.IsBackup || d.FailoverActive) {
			indices = append(indices, i)
		}
	}
	return indices
}

// EffectiveSourceOrientation resolves the orientation conversions are
// computed against. Auto-detect wins when source dimensions are known.
func (u *StreamUnit) EffectiveSourceOrientation() Orientation {
	if u.AutoDetectOrientation && u.SourceWidth > 0 && u.SourceHeight > 0 {
		return DetectOrientation(u.SourceWidth, u.SourceHeight)
	}
	if u.SourceOrientation == "" {
		return OrientationAuto
	}
	return u.SourceOrientation
}

// IsRunning reports whether the unit has a live remote process.
func (u *StreamUnit) IsRunning() bool {
	switch u.Status {
	case StatusStarting, StatusActive, StatusStopping, StatusPreview:
		return true
	default:
		return false
	}
}

func generateUnitID() string {
	return fmt.Sprintf("unit_%d_%06x", time.Now().Unix(), rand.Uint32()&0xffffff)
}

func generateDestinationID(platform Platform) string {
	return fmt.Sprintf("%s_%06x", platform, rand.Uint32()&0xffffff)
}
