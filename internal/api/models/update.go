package models

import "time"

// UpdateCheckData reports whether a newer release exists.
type UpdateCheckData struct {
	CurrentVersion  string    `json:"current_version" example:"1.0.0" doc:"Running version"`
	LatestVersion   string    `json:"latest_version" example:"1.1.0" doc:"Newest release on GitHub"`
	ReleaseNotes    string    `json:"release_notes" doc:"Markdown release notes"`
	ReleaseURL      string    `json:"release_url" doc:"Release page URL"`
	PublishedAt     time.Time `json:"published_at" doc:"Release publish time"`
	AssetSize       int       `json:"asset_size" example:"5242880" doc:"Download size in bytes"`
	UpdateAvailable bool      `json:"update_available" example:"true" doc:"True when latest is newer than current"`
}

// UpdateCheckResponse wraps UpdateCheckData.
type UpdateCheckResponse struct {
	Body UpdateCheckData
}

// UpdateStatusData snapshots the updater state machine.
type UpdateStatusData struct {
	State           string     `json:"state" example:"idle" doc:"One of idle, checking, available, downloading, applying, restarting, rolled_back, error"`
	CurrentVersion  string     `json:"current_version" example:"1.0.0" doc:"Running version"`
	TargetVersion   string     `json:"target_version,omitempty" example:"1.1.0" doc:"Version being installed"`
	Progress        int        `json:"progress,omitempty" example:"45" doc:"Download progress percent"`
	Error           string     `json:"error,omitempty" doc:"Last update error, if any"`
	LastChecked     *time.Time `json:"last_checked,omitempty" doc:"Time of the last release check"`
	BackupAvailable bool       `json:"backup_available" example:"true" doc:"True when a rollback copy exists"`
	BackupVersion   string     `json:"backup_version,omitempty" example:"1.0.0" doc:"Version of the rollback copy"`
}

// UpdateStatusResponse wraps UpdateStatusData.
type UpdateStatusResponse struct {
	Body UpdateStatusData
}

// UpdateActionResponse acknowledges apply, rollback and restart
// actions. The restart the message promises happens moments after the
// response is written.
type UpdateActionResponse struct {
	Body struct {
		Message string `json:"message" example:"update applied, restarting" doc:"Human-readable acknowledgment"`
	}
}
