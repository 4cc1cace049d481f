// Package videocompress provides a Go library for shrinking video files,
// extracting thumbnails and reading media metadata.
//
// videocompress is an opinionated FFmpeg wrapper. A compression downscales
// the source to one of a fixed set of quality presets, re-encodes it with
// H.264 at no more than the source bitrate and frame rate, optionally strips
// or trims the audio, and writes the result into a cache directory.
//
// Basic usage:
//
//	c, err := videocompress.New(
//	    videocompress.WithCacheDir("/tmp/videos"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	info, err := c.CompressVideo(ctx, videocompress.CompressionRequest{
//	    Path:    "input.mov",
//	    Quality: videocompress.Quality720HD,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("Compressed: %s (%dx%d)\n", info.Path, info.Width, info.Height)
package videocompress

import (
	"context"
	"time"

	"github.com/five82/videocompress/internal/cache"
	"github.com/five82/videocompress/internal/config"
	"github.com/five82/videocompress/internal/discovery"
	"github.com/five82/videocompress/internal/errors"
	"github.com/five82/videocompress/internal/ffmpeg"
	"github.com/five82/videocompress/internal/logging"
	"github.com/five82/videocompress/internal/media"
	"github.com/five82/videocompress/internal/metrics"
	"github.com/five82/videocompress/internal/preset"
	"github.com/five82/videocompress/internal/reporter"
	"github.com/five82/videocompress/internal/session"
	"github.com/five82/videocompress/internal/thumbnail"
)

// Re-exported types
type (
	MediaInfo          = media.MediaInfo
	CompressionRequest = media.CompressionRequest
	Asset              = media.Asset
	Session            = session.Session
	SessionState       = session.State
	Reporter           = reporter.Reporter
	ProgressSnapshot   = reporter.ProgressSnapshot
	Preset             = preset.Preset
	ThumbnailFormat    = config.ThumbnailFormat
	Config             = config.Config
)

// Quality selectors. See Presets for the sizes they resolve to.
const (
	QualityPassThrough = 0
	Quality720Square   = 1
	Quality360Square   = 2
	Quality640Square   = 3
	Quality720HD       = 4
	Quality480SD       = 5
	Quality720HDAlt    = 6
	Quality720Wide     = 7
)

const (
	ThumbnailJPEG = config.ThumbnailJPEG
	ThumbnailWebP = config.ThumbnailWebP
)

// Backend reads, writes and decodes media. The default is ffmpeg based.
type Backend interface {
	media.Backend
	thumbnail.FrameSource
}

// Presets returns the quality table.
func Presets() []Preset {
	return append([]Preset(nil), preset.Presets...)
}

// Compressor is the main entry point for compression and metadata calls.
type Compressor struct {
	config   *config.Config
	cache    *cache.Manager
	backend  Backend
	thumbs   *thumbnail.Extractor
	registry *session.Registry
	reporter reporter.Reporter
	validate bool
}

type settings struct {
	config   *config.Config
	backend  Backend
	reporter reporter.Reporter
	validate bool
}

// Option configures the compressor.
type Option func(*settings)

// New creates a new Compressor with the given options.
func New(opts ...Option) (*Compressor, error) {
	s := &settings{config: config.NewConfig("")}
	for _, opt := range opts {
		opt(s)
	}

	cfg := s.config
	if err := cfg.Validate(); err != nil {
		return nil, errors.NewConfigError("invalid configuration", err)
	}

	cacheManager := cache.New(cfg.CacheDir)
	backend := s.backend
	if backend == nil {
		backend = ffmpeg.NewBackend(ffmpeg.BackendConfig{
			FFmpegPath:    cfg.FFmpegPath,
			FFprobePath:   cfg.FFprobePath,
			VideoCodec:    cfg.VideoCodec,
			EncoderPreset: cfg.EncoderPreset,
		}, cacheManager)
	}

	rep := s.reporter
	if rep == nil {
		rep = reporter.NullReporter{}
	}

	return &Compressor{
		config:   cfg,
		cache:    cacheManager,
		backend:  backend,
		thumbs:   thumbnail.New(backend, cacheManager, cfg.ThumbnailFormat),
		registry: session.NewRegistry(cfg.MaxActiveSessions),
		reporter: rep,
		validate: s.validate,
	}, nil
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg *Config) Option {
	return func(s *settings) {
		c := *cfg
		s.config = &c
	}
}

// WithCacheDir sets the directory for outputs, thumbnails and scratch files.
func WithCacheDir(dir string) Option {
	return func(s *settings) {
		s.config.CacheDir = dir
	}
}

// WithFFmpeg sets the ffmpeg and ffprobe executables.
func WithFFmpeg(ffmpegPath, ffprobePath string) Option {
	return func(s *settings) {
		s.config.FFmpegPath = ffmpegPath
		s.config.FFprobePath = ffprobePath
	}
}

// WithMaxActiveSessions sets how many compressions may run at once.
func WithMaxActiveSessions(n int) Option {
	return func(s *settings) {
		s.config.MaxActiveSessions = n
	}
}

// WithThumbnailFormat selects JPEG or WebP thumbnails.
func WithThumbnailFormat(f ThumbnailFormat) Option {
	return func(s *settings) {
		s.config.ThumbnailFormat = f
	}
}

// WithProgressThrottle sets the minimum interval and percentage step
// between progress updates.
func WithProgressThrottle(interval time.Duration, delta float64) Option {
	return func(s *settings) {
		s.config.ProgressMinInterval = interval
		s.config.ProgressMinDelta = delta
	}
}

// WithReporter receives events for every compression.
func WithReporter(rep Reporter) Option {
	return func(s *settings) {
		s.reporter = rep
	}
}

// WithValidation re-probes each output and reports whether it matches the
// encode target.
func WithValidation() Option {
	return func(s *settings) {
		s.validate = true
	}
}

// WithBackend replaces the ffmpeg backend.
func WithBackend(b Backend) Option {
	return func(s *settings) {
		s.backend = b
	}
}

// Config returns a copy of the active configuration.
func (c *Compressor) Config() Config {
	return *c.config
}

// CacheDir returns the directory compressed files are written to.
func (c *Compressor) CacheDir() string {
	return c.cache.Dir()
}

// GetByteThumbnail returns an encoded frame of the video at position seconds.
// It returns nil when the file has no video or no frame at that position.
func (c *Compressor) GetByteThumbnail(ctx context.Context, path string, quality int, position float64) ([]byte, error) {
	return c.thumbs.Extract(ctx, path, quality, position)
}

// GetFileThumbnail writes the thumbnail into the cache directory and returns
// its path, or "" when no frame was available.
func (c *Compressor) GetFileThumbnail(ctx context.Context, path string, quality int, position float64) (string, error) {
	return c.thumbs.ExtractFile(ctx, path, quality, position)
}

// GetMediaInfo describes the file at path. It returns nil without error when
// the file has no video track.
func (c *Compressor) GetMediaInfo(ctx context.Context, path string) (*MediaInfo, error) {
	asset, err := c.backend.Probe(ctx, path)
	if err != nil {
		if errors.IsNoVideoTrack(err) {
			metrics.ProbesTotal.WithLabelValues(metrics.StatusSuccess).Inc()
			return nil, nil
		}
		metrics.ProbesTotal.WithLabelValues(metrics.StatusError).Inc()
		return nil, err
	}
	metrics.ProbesTotal.WithLabelValues(metrics.StatusSuccess).Inc()
	if asset.Video == nil {
		return nil, nil
	}
	return media.InfoFromAsset(asset), nil
}

// CompressVideo compresses req.Path and blocks until the output is ready or
// the compression is cancelled. A cancelled compression returns MediaInfo
// with IsCancelled set and no error.
func (c *Compressor) CompressVideo(ctx context.Context, req CompressionRequest) (*MediaInfo, error) {
	return c.CompressVideoWithReporter(ctx, req, nil)
}

// CompressVideoWithReporter is CompressVideo with an extra reporter for this
// call only.
func (c *Compressor) CompressVideoWithReporter(ctx context.Context, req CompressionRequest, rep Reporter) (*MediaInfo, error) {
	s, err := c.StartCompression(ctx, req, rep)
	if err != nil {
		return nil, err
	}
	<-s.Done()
	return s.Wait(context.Background())
}

// StartCompression starts a compression in the background and returns its
// session. It fails when MaxActiveSessions compressions are already running.
func (c *Compressor) StartCompression(ctx context.Context, req CompressionRequest, rep Reporter) (*Session, error) {
	if req.Path == "" {
		return nil, errors.NewInvalidArgumentError("path", "is required")
	}

	sessionRep := c.reporter
	if rep != nil {
		sessionRep = reporter.NewCompositeReporter(c.reporter, rep)
	}

	return c.registry.Start(ctx, req, session.Options{
		Backend:  c.backend,
		Cache:    c.cache,
		Reporter: sessionRep,
		Progress: reporter.ProgressOptions{
			MinInterval: c.config.ProgressMinInterval,
			MinDelta:    c.config.ProgressMinDelta,
		},
		Encoder:       c.config.VideoCodec,
		EncoderPreset: c.config.EncoderPreset,
		Validate:      c.validate,
	})
}

// CancelCompression cancels every running compression and returns how many
// accepted the request.
func (c *Compressor) CancelCompression() int {
	n := c.registry.CancelAll()
	logging.Info("Cancel requested", "sessions", n)
	return n
}

// CancelSession cancels one compression by session id.
func (c *Compressor) CancelSession(id string) bool {
	return c.registry.Cancel(id)
}

// ActiveSessions returns the compressions currently running.
func (c *Compressor) ActiveSessions() []*Session {
	return c.registry.Active()
}

// DeleteAllCache removes every output, thumbnail and scratch file from the
// cache directory.
func (c *Compressor) DeleteAllCache() error {
	n, err := c.cache.Clear()
	if err != nil {
		return err
	}
	logging.Info("Cache cleared", "dir", c.cache.Dir(), "removed", n)
	return nil
}

// FindVideos resolves files and directories into video files.
func FindVideos(inputs ...string) ([]string, error) {
	res, err := discovery.Resolve(inputs)
	if err != nil {
		return nil, err
	}
	return res.Files, nil
}
