// Package discovery resolves command line inputs into video files.
package discovery

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/five82/videocompress/internal/errors"
	"github.com/five82/videocompress/internal/logging"
	"github.com/five82/videocompress/internal/util"
)

// Result contains the discovered files and what was passed over.
type Result struct {
	Files        []string
	SkippedCount int
}

// Resolve expands inputs into video files. Files are taken as given when
// they have a video extension; directories are scanned one level deep.
// The result keeps input order, with directory contents sorted by name.
func Resolve(inputs []string) (*Result, error) {
	result := &Result{}
	seen := make(map[string]bool)

	for _, input := range inputs {
		info, err := os.Stat(input)
		if err != nil {
			return nil, errors.NewIOError("input does not exist: "+input, err)
		}

		var files []string
		skipped := 0
		if info.IsDir() {
			files, skipped, err = scanDir(input)
			if err != nil {
				return nil, err
			}
		} else if util.IsVideoFile(input) {
			files = []string{input}
		} else {
			skipped = 1
		}

		result.SkippedCount += skipped
		for _, f := range files {
			abs, err := filepath.Abs(f)
			if err != nil {
				abs = f
			}
			if seen[abs] {
				continue
			}
			seen[abs] = true
			result.Files = append(result.Files, abs)
		}
	}

	if len(result.Files) == 0 {
		return nil, errors.NewInvalidArgumentError("input", "no video files found in "+strings.Join(inputs, ", "))
	}

	logDiscoveredFiles(result)
	return result, nil
}

// FindVideoFiles returns the video files directly inside dir, sorted
// case-insensitively by name.
func FindVideoFiles(dir string) ([]string, error) {
	files, _, err := scanDir(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.NewInvalidArgumentError("input", "no video files found in "+dir)
	}
	return files, nil
}

func scanDir(dir string) ([]string, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, errors.NewIOError("cannot read directory "+dir, err)
	}

	var files []string
	skipped := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		// Skip hidden files
		if strings.HasPrefix(name, ".") {
			continue
		}

		fullPath := filepath.Join(dir, name)
		if util.IsVideoFile(fullPath) {
			files = append(files, fullPath)
		} else {
			skipped++
		}
	}

	sort.Slice(files, func(i, j int) bool {
		return strings.ToLower(filepath.Base(files[i])) < strings.ToLower(filepath.Base(files[j]))
	})
	return files, skipped, nil
}

// logDiscoveredFiles logs the first 5 discovered files plus a count.
func logDiscoveredFiles(result *Result) {
	logging.Info("Found video files", "count", len(result.Files), "skipped", result.SkippedCount)

	for _, f := range result.Files[:min(5, len(result.Files))] {
		logging.Debug("Discovered", "file", filepath.Base(f))
	}
}
