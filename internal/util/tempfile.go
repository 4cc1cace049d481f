package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MinFreeSpaceBytes is the free space below which CheckDiskSpace warns.
const MinFreeSpaceBytes = 512 * MiB

// TempDir is a scratch directory removed by Cleanup.
type TempDir struct {
	path string
}

// Path returns the directory path.
func (d *TempDir) Path() string {
	return d.path
}

// Cleanup removes the directory and everything in it.
func (d *TempDir) Cleanup() error {
	if d == nil || d.path == "" {
		return nil
	}
	return os.RemoveAll(d.path)
}

// CreateTempDir creates a uniquely named directory "<prefix>_<id>" in baseDir.
func CreateTempDir(baseDir, prefix string) (*TempDir, error) {
	if err := EnsureDirectory(baseDir); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", baseDir, err)
	}
	path := filepath.Join(baseDir, prefix+"_"+shortID())
	if err := os.Mkdir(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir %s: %w", path, err)
	}
	return &TempDir{path: path}, nil
}

// CreateTempFilePath returns a unique, not yet created, path
// "<prefix>_<id>.<ext>" in baseDir.
func CreateTempFilePath(baseDir, prefix, ext string) (string, error) {
	if err := EnsureDirectory(baseDir); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", baseDir, err)
	}
	return filepath.Join(baseDir, prefix+"_"+shortID()+"."+ext), nil
}

// EnsureDirectoryWritable verifies that path is a directory we can create files in.
func EnsureDirectoryWritable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	f, err := os.CreateTemp(path, ".write_test_*")
	if err != nil {
		return fmt.Errorf("directory %s is not writable: %w", path, err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

// CleanupStaleTempFiles removes entries in dir whose name starts with
// "<prefix>_" and whose modification time is older than maxAge.
// A missing dir is not an error.
func CleanupStaleTempFiles(dir, prefix string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	count := 0
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), prefix+"_") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err == nil {
			count++
		}
	}
	return count, nil
}

// CheckDiskSpace reports whether path has at least MinFreeSpaceBytes free.
// Unknown free space counts as enough. logf, when set, receives a warning.
func CheckDiskSpace(path string, logf func(format string, args ...any)) bool {
	free := GetAvailableSpace(path)
	if free == 0 || free >= MinFreeSpaceBytes {
		return true
	}
	if logf != nil {
		logf("low disk space in %s: %s available", path, FormatBytes(free))
	}
	return false
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
