package updater

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/multistream/internal/version"
)

const (
	backupBinaryName = "multistream.previous"
	backupMetaName   = "backup.toml"
)

// backupMeta sits next to the saved binary so a rollback after a
// process restart still knows what it is restoring and where.
type backupMeta struct {
	Version   string    `toml:"version"`
	CreatedAt time.Time `toml:"created_at"`
	ExecPath  string    `toml:"exec_path"`
}

// binaryBackup keeps a single previous-version copy of the executable
// under the user cache directory.
type binaryBackup struct {
	mu     sync.RWMutex
	dir    string
	meta   *backupMeta
	logger *slog.Logger
}

func newBinaryBackup(logger *slog.Logger) (*binaryBackup, error) {
	cache, err := os.UserCacheDir()
	if err != nil {
		return nil, fmt.Errorf("resolving cache directory: %w", err)
	}
	dir := filepath.Join(cache, "multistream", "backup")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}

	b := &binaryBackup{dir: dir, logger: logger}
	b.loadMeta()
	return b, nil
}

// loadMeta picks up a backup left behind by a previous run. Missing or
// unreadable metadata just means no rollback is offered.
func (b *binaryBackup) loadMeta() {
	data, err := os.ReadFile(filepath.Join(b.dir, backupMetaName))
	if err != nil {
		return
	}

	var meta backupMeta
	if err := toml.Unmarshal(data, &meta); err != nil {
		b.logger.Warn("Ignoring unreadable backup metadata", "error", err)
		return
	}
	if _, err := os.Stat(filepath.Join(b.dir, backupBinaryName)); err != nil {
		b.logger.Warn("Backup metadata present but binary missing", "dir", b.dir)
		return
	}

	b.mu.Lock()
	b.meta = &meta
	b.mu.Unlock()
	b.logger.Info("Found existing binary backup", "version", meta.Version)
}

// capture copies the currently running executable aside before an
// update overwrites it.
func (b *binaryBackup) capture() error {
	execPath, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("locating executable: %w", err)
	}

	if err := copyFile(filepath.Join(b.dir, backupBinaryName), execPath); err != nil {
		return err
	}

	meta := backupMeta{
		Version:   version.Version,
		CreatedAt: time.Now(),
		ExecPath:  execPath,
	}
	data, err := toml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding backup metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(b.dir, backupMetaName), data, 0o644); err != nil {
		return fmt.Errorf("writing backup metadata: %w", err)
	}

	b.mu.Lock()
	b.meta = &meta
	b.mu.Unlock()

	b.logger.Info("Captured binary backup", "version", meta.Version, "dir", b.dir)
	return nil
}

// restore copies the saved binary back over the executable path it was
// captured from.
func (b *binaryBackup) restore() error {
	b.mu.RLock()
	meta := b.meta
	b.mu.RUnlock()
	if meta == nil {
		return fmt.Errorf("no backup available")
	}

	if err := copyFile(meta.ExecPath, filepath.Join(b.dir, backupBinaryName)); err != nil {
		return err
	}
	b.logger.Info("Restored binary backup", "version", meta.Version)
	return nil
}

func (b *binaryBackup) available() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.meta != nil
}

func (b *binaryBackup) version() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.meta == nil {
		return ""
	}
	return b.meta.Version
}

// copyFile clobbers dst with the contents of src and marks it
// executable.
func copyFile(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}
	return nil
}
