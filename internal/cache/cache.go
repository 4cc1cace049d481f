// Package cache owns the directory that holds compressed outputs, thumbnails
// and scratch directories.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/five82/videocompress/internal/errors"
	"github.com/five82/videocompress/internal/logging"
	"github.com/five82/videocompress/internal/metrics"
	"github.com/five82/videocompress/internal/util"
)

// ScratchPrefix prefixes scratch directories created by NewScratchDir.
const ScratchPrefix = "vc_tmp"

// Manager generates paths inside one cache directory.
type Manager struct {
	dir string
}

// New creates a manager rooted at dir. The directory is created lazily.
func New(dir string) *Manager {
	return &Manager{dir: dir}
}

// Dir returns the cache directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Ensure creates the cache directory if needed and checks that it is writable.
func (m *Manager) Ensure() error {
	if err := util.EnsureDirectory(m.dir); err != nil {
		return errors.NewIOError("failed to create cache directory "+m.dir, err)
	}
	if err := util.EnsureDirectoryWritable(m.dir); err != nil {
		return errors.NewIOError("cache directory is not writable", err)
	}
	return nil
}

// OutputPath returns a collision-free output path for a compressed copy of
// sourcePath: <cache>/<stem><uuid>.mp4.
func (m *Manager) OutputPath(sourcePath string) (string, error) {
	if err := m.Ensure(); err != nil {
		return "", err
	}
	name := util.GetFileStem(sourcePath) + strings.ToUpper(uuid.NewString()) + ".mp4"
	return filepath.Join(m.dir, name), nil
}

// ThumbnailPath returns the deterministic thumbnail path for sourcePath.
// ext includes the leading dot.
func (m *Manager) ThumbnailPath(sourcePath, ext string) (string, error) {
	if err := m.Ensure(); err != nil {
		return "", err
	}
	return filepath.Join(m.dir, util.GetFileStem(sourcePath)+ext), nil
}

// NewScratchDir creates a private directory for intermediate files.
func (m *Manager) NewScratchDir() (*util.TempDir, error) {
	if !util.CheckDiskSpace(m.dir, nil) {
		logging.Warn("Low disk space in cache directory", "dir", m.dir, "free", util.FormatBytes(util.GetAvailableSpace(m.dir)))
	}
	dir, err := util.CreateTempDir(m.dir, ScratchPrefix)
	if err != nil {
		return nil, errors.NewIOError("failed to create scratch directory", err)
	}
	return dir, nil
}

// TempFilePath returns an unused scratch file path with extension ext.
// Leftovers share ScratchPrefix and are removed by CleanStale.
func (m *Manager) TempFilePath(ext string) (string, error) {
	if err := m.Ensure(); err != nil {
		return "", err
	}
	path, err := util.CreateTempFilePath(m.dir, ScratchPrefix, ext)
	if err != nil {
		return "", errors.NewIOError("failed to create scratch file path", err)
	}
	return path, nil
}

// Remove deletes a single file if it exists.
func (m *Manager) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.NewIOError(fmt.Sprintf("failed to remove %s", path), err)
	}
	return nil
}

// Clear removes everything under the cache directory and returns the
// number of entries removed. A missing directory is not an error.
func (m *Manager) Clear() (int, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.NewIOError("failed to read cache directory", err)
	}

	removed := 0
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(m.dir, entry.Name())); err != nil {
			return removed, errors.NewIOError("failed to clear cache", err)
		}
		removed++
	}
	metrics.CacheClearsTotal.Inc()
	metrics.CacheFilesRemovedTotal.Add(float64(removed))
	metrics.CacheSizeBytes.Set(0)
	logging.Info("Cleared cache", "dir", m.dir, "removed", removed)
	return removed, nil
}

// CleanStale removes scratch directories and files left behind by interrupted runs.
func (m *Manager) CleanStale(maxAge time.Duration) (int, error) {
	n, err := util.CleanupStaleTempFiles(m.dir, ScratchPrefix, maxAge)
	if err != nil {
		return 0, errors.NewIOError("failed to clean stale scratch directories", err)
	}
	if n > 0 {
		logging.Debug("Removed stale scratch directories", "count", n)
	}
	return n, nil
}

// Usage returns the total size in bytes of files under the cache directory.
func (m *Manager) Usage() (uint64, error) {
	var total uint64
	err := filepath.WalkDir(m.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		total += uint64(info.Size())
		return nil
	})
	if err != nil {
		return 0, errors.NewIOError("failed to measure cache", err)
	}
	metrics.CacheSizeBytes.Set(float64(total))
	return total, nil
}
