// Package updater replaces the running multistream binary with GitHub
// release builds and keeps one rollback copy of whatever it replaced.
// The swap happens while stream units keep running: the remote engine
// owns the ffmpeg processes, so the restart that follows re-adopts
// them on startup instead of interrupting them.
package updater

import (
	"context"
	"time"
)

// State tracks where the updater is in its lifecycle.
type State string

const (
	StateIdle        State = "idle"
	StateChecking    State = "checking"
	StateAvailable   State = "available"
	StateDownloading State = "downloading"
	StateApplying    State = "applying"
	StateRestarting  State = "restarting"
	StateRolledBack  State = "rolled_back"
	StateError       State = "error"
)

// Options configures the updater service.
type Options struct {
	// Repository is the GitHub slug releases are pulled from,
	// e.g. "smazurov/multistream".
	Repository string
	// Prerelease widens the search to prerelease tags.
	Prerelease bool
}

// UpdateInfo describes the outcome of an update check.
type UpdateInfo struct {
	CurrentVersion  string    `json:"current_version"`
	LatestVersion   string    `json:"latest_version"`
	ReleaseNotes    string    `json:"release_notes"`
	ReleaseURL      string    `json:"release_url"`
	PublishedAt     time.Time `json:"published_at"`
	AssetSize       int       `json:"asset_size"`
	UpdateAvailable bool      `json:"update_available"`
}

// Status is a point-in-time snapshot of the updater for the API.
type Status struct {
	State           State      `json:"state"`
	CurrentVersion  string     `json:"current_version"`
	TargetVersion   string     `json:"target_version,omitempty"`
	Progress        int        `json:"progress,omitempty"`
	Error           string     `json:"error,omitempty"`
	LastChecked     *time.Time `json:"last_checked,omitempty"`
	BackupAvailable bool       `json:"backup_available"`
	BackupVersion   string     `json:"backup_version,omitempty"`
}

// Service is the update surface exposed to the API and CLI.
type Service interface {
	// CheckForUpdate queries the release source without downloading.
	CheckForUpdate(ctx context.Context) (*UpdateInfo, error)

	// ApplyUpdate downloads the latest release over the current binary
	// and requests a restart.
	ApplyUpdate(ctx context.Context) error

	// ApplyDevBuild installs the rolling "dev" release regardless of
	// version ordering.
	ApplyDevBuild(ctx context.Context) error

	// Rollback restores the saved previous binary.
	Rollback(ctx context.Context) error

	// Restart requests a process restart without touching the binary.
	Restart(ctx context.Context) error

	// GetStatus reports the state machine, versions and backup info.
	GetStatus(ctx context.Context) *Status

	// IsRestartPending reports whether this service asked for the
	// restart that is about to happen.
	IsRestartPending() bool

	// IsEnabled is false when the binary is not writable; the service
	// still answers status calls in that case.
	IsEnabled() bool

	// DisabledReason explains a false IsEnabled, empty otherwise.
	DisabledReason() string
}
