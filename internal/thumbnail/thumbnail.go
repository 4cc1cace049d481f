// Package thumbnail extracts a single display-oriented frame from a video
// and re-encodes it as a lossy image.
package thumbnail

import (
	"bytes"
	"context"
	"image"
	"math"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	"github.com/five82/videocompress/internal/cache"
	"github.com/five82/videocompress/internal/config"
	"github.com/five82/videocompress/internal/errors"
	"github.com/five82/videocompress/internal/logging"
	"github.com/five82/videocompress/internal/media"
	"github.com/five82/videocompress/internal/metrics"
)

// FrameSource probes media files and decodes single frames.
type FrameSource interface {
	Probe(ctx context.Context, path string) (*media.Asset, error)
	ExtractFrame(ctx context.Context, path string, position float64) (image.Image, error)
}

// Extractor produces thumbnails for video files.
type Extractor struct {
	source FrameSource
	cache  *cache.Manager
	format config.ThumbnailFormat
}

// New creates an Extractor. An empty format means JPEG.
func New(source FrameSource, cacheManager *cache.Manager, format config.ThumbnailFormat) *Extractor {
	if format == "" {
		format = config.ThumbnailJPEG
	}
	return &Extractor{source: source, cache: cacheManager, format: format}
}

// Format returns the image format produced by the extractor.
func (e *Extractor) Format() config.ThumbnailFormat {
	return e.format
}

// Extract returns the encoded frame nearest to position seconds. It returns
// nil without error when the file has no video track or no frame could be
// decoded at that position.
func (e *Extractor) Extract(ctx context.Context, path string, quality int, position float64) ([]byte, error) {
	start := time.Now()
	data, err := e.extract(ctx, path, quality, position)

	status := metrics.StatusSuccess
	switch {
	case err != nil:
		status = metrics.StatusError
	case data == nil:
		status = metrics.StatusEmpty
	}
	metrics.ObserveThumbnail(string(e.format), status, time.Since(start))
	return data, err
}

func (e *Extractor) extract(ctx context.Context, path string, quality int, position float64) ([]byte, error) {
	asset, err := e.source.Probe(ctx, path)
	if err != nil {
		if errors.IsNoVideoTrack(err) {
			logging.Debug("No video track for thumbnail", "path", path)
			return nil, nil
		}
		return nil, err
	}
	if asset.Video == nil {
		return nil, nil
	}

	pos := SnapPosition(position, asset.Video.FrameRate)
	img, err := e.source.ExtractFrame(ctx, path, pos)
	if err != nil {
		return nil, err
	}
	if img == nil {
		logging.Debug("No frame decoded", "path", path, "position", pos)
		return nil, nil
	}

	return Encode(img, e.format, quality)
}

// ExtractFile writes the thumbnail to <cache>/<stem><ext>, replacing any
// previous file at that path, and returns the path. It returns an empty path
// when Extract finds no frame.
func (e *Extractor) ExtractFile(ctx context.Context, path string, quality int, position float64) (string, error) {
	data, err := e.Extract(ctx, path, quality, position)
	if err != nil || data == nil {
		return "", err
	}

	out, err := e.cache.ThumbnailPath(path, e.format.Extension())
	if err != nil {
		return "", err
	}
	tmp, err := e.cache.TempFilePath(strings.TrimPrefix(e.format.Extension(), "."))
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = e.cache.Remove(tmp)
		return "", errors.NewIOError("failed to write thumbnail "+tmp, err)
	}
	if err := os.Rename(tmp, out); err != nil {
		_ = e.cache.Remove(tmp)
		return "", errors.NewIOError("failed to write thumbnail "+out, err)
	}

	logging.Debug("Wrote thumbnail", "path", out, "bytes", len(data))
	return out, nil
}

// SnapPosition maps position seconds onto the nearest frame boundary of a
// track running at fps. Negative positions become zero.
func SnapPosition(position, fps float64) float64 {
	if position <= 0 || math.IsNaN(position) {
		return 0
	}
	if fps <= 0 {
		return position
	}
	return math.Round(position*fps) / fps
}

// ClampQuality limits quality to the 1..100 range accepted by the encoders.
func ClampQuality(quality int) int {
	return max(1, min(100, quality))
}

// Encode encodes img in the given format at quality percent.
func Encode(img image.Image, format config.ThumbnailFormat, quality int) ([]byte, error) {
	q := ClampQuality(quality)
	var buf bytes.Buffer

	switch format {
	case config.ThumbnailWebP:
		if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(q)}); err != nil {
			return nil, errors.NewOperationFailedError("failed to encode WebP thumbnail", err)
		}
	default:
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(q)); err != nil {
			return nil, errors.NewOperationFailedError("failed to encode JPEG thumbnail", err)
		}
	}
	return buf.Bytes(), nil
}
