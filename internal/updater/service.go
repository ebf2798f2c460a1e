package updater

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/creativeprojects/go-selfupdate"

	"github.com/smazurov/multistream/internal/logging"
	"github.com/smazurov/multistream/internal/version"
)

// restartDelay gives the triggering HTTP response time to flush before
// SIGTERM takes the process down.
const restartDelay = 500 * time.Millisecond

type service struct {
	repo   selfupdate.Repository
	slug   string
	client *selfupdate.Updater
	backup *binaryBackup

	mu             sync.RWMutex
	state          State
	latest         *selfupdate.Release
	lastChecked    *time.Time
	lastErr        error
	restartPending bool

	enabled        bool
	disabledReason string

	logger *slog.Logger
}

// NewService builds the self-update service. When the process cannot
// write to its own binary the service still constructs, but comes back
// disabled with a reason the API can report.
func NewService(opts *Options) (Service, error) {
	logger := logging.GetLogger("updater")

	if reason := binaryWritable(); reason != "" {
		logger.Warn("Self-update disabled", "reason", reason)
		return &service{state: StateIdle, disabledReason: reason, logger: logger}, nil
	}

	source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return nil, fmt.Errorf("creating GitHub source: %w", err)
	}
	client, err := selfupdate.NewUpdater(selfupdate.Config{
		Source:     source,
		Prerelease: opts.Prerelease,
	})
	if err != nil {
		return nil, fmt.Errorf("creating updater: %w", err)
	}

	backup, err := newBinaryBackup(logger)
	if err != nil {
		logger.Warn("Rollback unavailable", "error", err)
	}

	return &service{
		repo:    selfupdate.ParseSlug(opts.Repository),
		slug:    opts.Repository,
		client:  client,
		backup:  backup,
		state:   StateIdle,
		enabled: true,
		logger:  logger,
	}, nil
}

// binaryWritable probes whether the executable's directory accepts
// writes. Returns a reason string when it does not.
func binaryWritable() string {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Sprintf("cannot locate executable: %v", err)
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return fmt.Sprintf("cannot resolve executable symlinks: %v", err)
	}

	probe := filepath.Join(filepath.Dir(exe), ".multistream-update-probe")
	f, err := os.Create(probe)
	if err != nil {
		return fmt.Sprintf("no write access to %s: %v", filepath.Dir(exe), err)
	}
	f.Close()
	os.Remove(probe)
	return ""
}

func (s *service) IsEnabled() bool { return s.enabled }

func (s *service) DisabledReason() string { return s.disabledReason }

// CheckForUpdate queries GitHub for the newest release and compares it
// against the running version. A "dev" build always counts as
// outdated.
func (s *service) CheckForUpdate(ctx context.Context) (*UpdateInfo, error) {
	if !s.enabled {
		return nil, newError(ErrCodeDisabled, s.disabledReason, nil)
	}
	if !s.advance(StateChecking, StateIdle, StateAvailable, StateError) {
		return nil, newError(ErrCodeInvalidState,
			fmt.Sprintf("cannot check for updates while %s", s.currentState()), nil)
	}

	release, found, err := s.client.DetectLatest(ctx, s.repo)
	if err != nil {
		s.fail(err)
		return nil, newError(ErrCodeCheckFailed, "update check failed", err)
	}

	now := time.Now()
	s.mu.Lock()
	s.lastChecked = &now
	s.mu.Unlock()

	if !found {
		err := fmt.Errorf("repository %s has no releases", s.slug)
		s.fail(err)
		return nil, newError(ErrCodeCheckFailed, err.Error(), nil)
	}

	current := version.Version
	if current != "dev" && !release.GreaterThan(current) {
		s.advance(StateIdle)
		return &UpdateInfo{
			CurrentVersion: current,
			LatestVersion:  release.Version(),
		}, nil
	}

	s.mu.Lock()
	s.latest = release
	s.mu.Unlock()
	s.advance(StateAvailable)

	return &UpdateInfo{
		CurrentVersion:  current,
		LatestVersion:   release.Version(),
		ReleaseNotes:    release.ReleaseNotes,
		ReleaseURL:      release.URL,
		PublishedAt:     release.PublishedAt,
		AssetSize:       release.AssetByteSize,
		UpdateAvailable: true,
	}, nil
}

// ApplyUpdate downloads the release found by the last check (checking
// first when idle) over the current binary, then requests a restart.
func (s *service) ApplyUpdate(ctx context.Context) error {
	if !s.enabled {
		return newError(ErrCodeDisabled, s.disabledReason, nil)
	}

	if s.currentState() == StateIdle {
		info, err := s.CheckForUpdate(ctx)
		if err != nil {
			return err
		}
		if !info.UpdateAvailable {
			return newError(ErrCodeNoUpdate, "already on the latest version", nil)
		}
	}

	if !s.advance(StateDownloading, StateAvailable) {
		return newError(ErrCodeInvalidState,
			fmt.Sprintf("cannot apply update while %s", s.currentState()), nil)
	}

	s.mu.RLock()
	release := s.latest
	s.mu.RUnlock()

	return s.swapBinary(func(exe string) error {
		return s.client.UpdateTo(ctx, release, exe)
	}, fmt.Sprintf("Update to %s applied, restart pending", release.Version()))
}

// ApplyDevBuild installs the rolling "dev" release for the current
// architecture regardless of version ordering.
func (s *service) ApplyDevBuild(ctx context.Context) error {
	if !s.enabled {
		return newError(ErrCodeDisabled, s.disabledReason, nil)
	}
	if !s.advance(StateDownloading, StateIdle, StateAvailable, StateError) {
		return newError(ErrCodeInvalidState,
			fmt.Sprintf("cannot apply dev build while %s", s.currentState()), nil)
	}

	asset := fmt.Sprintf("multistream_linux_%s.tar.gz", runtime.GOARCH)
	url := fmt.Sprintf("https://github.com/%s/releases/download/dev/%s", s.slug, asset)
	s.logger.Info("Downloading dev build", "url", url)

	return s.swapBinary(func(exe string) error {
		return selfupdate.UpdateTo(ctx, url, asset, exe)
	}, "Dev build applied, restart pending")
}

// swapBinary runs the shared capture/apply/rollback flow around a
// concrete download step. The apply callback receives the executable
// path to overwrite.
func (s *service) swapBinary(apply func(exe string) error, doneMsg string) error {
	if s.backup != nil {
		if err := s.backup.capture(); err != nil {
			s.fail(err)
			return newError(ErrCodeBackupFailed, "backup before update failed", err)
		}
	}

	s.advance(StateApplying)

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		s.fail(err)
		s.rollbackQuietly()
		return newError(ErrCodeApplyFailed, "cannot locate executable", err)
	}

	if err := apply(exe); err != nil {
		s.fail(err)
		s.rollbackQuietly()
		return newError(ErrCodeApplyFailed, "applying update failed", err)
	}

	s.advance(StateRestarting)
	s.logger.Info(doneMsg)
	s.requestRestart()
	return nil
}

// Rollback restores the saved previous binary and requests a restart.
func (s *service) Rollback(_ context.Context) error {
	if !s.enabled {
		return newError(ErrCodeDisabled, s.disabledReason, nil)
	}
	if s.backup == nil || !s.backup.available() {
		return newError(ErrCodeNoBackup, "no previous version saved", nil)
	}
	if err := s.backup.restore(); err != nil {
		return newError(ErrCodeRollbackFailed, "restoring previous version failed", err)
	}

	s.advance(StateRolledBack)
	s.logger.Info("Rolled back to previous version, restart pending")
	s.requestRestart()
	return nil
}

// Restart requests a clean process restart without touching the
// binary. Works even when self-update is disabled.
func (s *service) Restart(_ context.Context) error {
	s.logger.Info("Restart requested")
	s.requestRestart()
	return nil
}

// GetStatus reports the state machine, versions and backup info.
func (s *service) GetStatus(_ context.Context) *Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &Status{
		State:          s.state,
		CurrentVersion: version.Version,
		LastChecked:    s.lastChecked,
	}
	if s.latest != nil {
		st.TargetVersion = s.latest.Version()
	}
	if s.lastErr != nil {
		st.Error = s.lastErr.Error()
	}
	if s.backup != nil {
		st.BackupAvailable = s.backup.available()
		st.BackupVersion = s.backup.version()
	}
	return st
}

func (s *service) IsRestartPending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.restartPending
}

// advance moves the state machine to next. With from states given, the
// move only happens when the current state is one of them.
func (s *service) advance(next State, from ...State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(from) > 0 && !slices.Contains(from, s.state) {
		return false
	}
	s.logger.Debug("Updater state change", "from", s.state, "to", next)
	s.state = next
	s.lastErr = nil
	return true
}

func (s *service) currentState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *service) fail(err error) {
	s.mu.Lock()
	s.state = StateError
	s.lastErr = err
	s.mu.Unlock()
}

// rollbackQuietly restores the backup after a failed apply. Errors are
// logged only; the caller already has a better one to return.
func (s *service) rollbackQuietly() {
	if s.backup == nil || !s.backup.available() {
		s.logger.Error("No backup to roll back to after failed update")
		return
	}
	if err := s.backup.restore(); err != nil {
		s.logger.Error("Rollback after failed update did not complete", "error", err)
		return
	}
	s.advance(StateRolledBack)
	s.logger.Info("Rolled back after failed update")
}

// requestRestart flags the restart and SIGTERMs our own process after
// a short delay. systemd brings the service back up on the swapped
// binary; running stream units survive because the remote engine owns
// their processes.
func (s *service) requestRestart() {
	s.mu.Lock()
	s.restartPending = true
	s.mu.Unlock()

	go func() {
		time.Sleep(restartDelay)
		proc, err := os.FindProcess(os.Getpid())
		if err != nil {
			s.logger.Error("Cannot signal own process", "error", err)
			return
		}
		if err := proc.Signal(syscall.SIGTERM); err != nil {
			s.logger.Error("SIGTERM failed", "error", err)
		}
	}()
}
