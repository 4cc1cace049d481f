// Package config provides configuration types and defaults for videocompress.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default constants
const (
	// DefaultVideoCodec is the ffmpeg encoder used for the video track.
	DefaultVideoCodec = "libx264"

	// DefaultEncoderPreset is the x264 speed preset.
	DefaultEncoderPreset = "veryfast"

	// DefaultMaxActiveSessions is the number of compressions allowed in flight.
	DefaultMaxActiveSessions = 1

	// DefaultProgressMinInterval is the minimum time between progress deliveries.
	DefaultProgressMinInterval = 250 * time.Millisecond

	// DefaultProgressMinDelta is the minimum percentage change between deliveries.
	DefaultProgressMinDelta = 1.0

	// DefaultListenAddr is the address the HTTP surface binds to.
	DefaultListenAddr = ":8089"

	// DefaultLogLevel is the default log level name.
	DefaultLogLevel = "info"

	// CacheDirName is the directory created under the user cache dir.
	CacheDirName = "video_compress"

	// EnvCacheDir overrides CacheDir when set.
	EnvCacheDir = "VIDEOCOMPRESS_CACHE_DIR"

	// EnvLogLevel overrides LogLevel when set.
	EnvLogLevel = "VIDEOCOMPRESS_LOG_LEVEL"
)

// ThumbnailFormat is the image encoding used for thumbnails.
type ThumbnailFormat string

const (
	ThumbnailJPEG ThumbnailFormat = "jpeg"
	ThumbnailWebP ThumbnailFormat = "webp"
)

// ParseThumbnailFormat parses a string into a ThumbnailFormat.
func ParseThumbnailFormat(s string) (ThumbnailFormat, error) {
	switch strings.ToLower(s) {
	case "jpeg", "jpg":
		return ThumbnailJPEG, nil
	case "webp":
		return ThumbnailWebP, nil
	default:
		return "", fmt.Errorf("%w: '%s', valid options: jpeg, webp", ErrInvalidThumbnailFormat, s)
	}
}

// Extension returns the file extension for the format, including the dot.
func (f ThumbnailFormat) Extension() string {
	if f == ThumbnailWebP {
		return ".webp"
	}
	return ".jpg"
}

// Config holds all configuration for compression, thumbnails and the server.
type Config struct {
	// Paths
	CacheDir    string `yaml:"cache_dir"`
	LogDir      string `yaml:"log_dir"`
	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`

	// Encoder parameters
	VideoCodec    string `yaml:"video_codec"`
	EncoderPreset string `yaml:"encoder_preset"`

	// Session behavior
	MaxActiveSessions   int           `yaml:"max_active_sessions"`
	ProgressMinInterval time.Duration `yaml:"progress_min_interval"`
	ProgressMinDelta    float64       `yaml:"progress_min_delta"`

	// Thumbnails
	ThumbnailFormat ThumbnailFormat `yaml:"thumbnail_format"`

	// Server
	ListenAddr string `yaml:"listen_addr"`

	// Logging
	LogLevel string `yaml:"log_level"`
}

// NewConfig creates a new Config with default values rooted at cacheDir.
// An empty cacheDir resolves to the user cache directory.
func NewConfig(cacheDir string) *Config {
	if cacheDir == "" {
		cacheDir = DefaultCacheDir()
	}
	return &Config{
		CacheDir:            cacheDir,
		LogDir:              filepath.Join(cacheDir, "logs"),
		FFmpegPath:          "ffmpeg",
		FFprobePath:         "ffprobe",
		VideoCodec:          DefaultVideoCodec,
		EncoderPreset:       DefaultEncoderPreset,
		MaxActiveSessions:   DefaultMaxActiveSessions,
		ProgressMinInterval: DefaultProgressMinInterval,
		ProgressMinDelta:    DefaultProgressMinDelta,
		ThumbnailFormat:     ThumbnailJPEG,
		ListenAddr:          DefaultListenAddr,
		LogLevel:            DefaultLogLevel,
	}
}

// DefaultCacheDir returns the process-owned cache directory.
func DefaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, CacheDirName)
}

// Load reads a YAML config file over the defaults and applies environment
// overrides. A missing path only applies defaults and environment.
func Load(path string) (*Config, error) {
	cfg := NewConfig("")
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

// ApplyEnv applies environment variable overrides.
func (c *Config) ApplyEnv() {
	if dir := os.Getenv(EnvCacheDir); dir != "" {
		c.CacheDir = dir
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.LogLevel = level
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.CacheDir == "" {
		return ErrInvalidCacheDir
	}

	if c.VideoCodec == "" {
		return ErrInvalidCodec
	}

	if c.MaxActiveSessions < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidSessionLimit, c.MaxActiveSessions)
	}

	if c.ProgressMinDelta < 0 || c.ProgressMinDelta > 100 {
		return fmt.Errorf("%w: must be 0-100, got %g", ErrInvalidProgressDelta, c.ProgressMinDelta)
	}

	if _, err := ParseThumbnailFormat(string(c.ThumbnailFormat)); err != nil {
		return err
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: '%s'", ErrInvalidLogLevel, c.LogLevel)
	}

	return nil
}

// GetLogDir returns the log directory, falling back to CacheDir/logs if not set.
func (c *Config) GetLogDir() string {
	if c.LogDir != "" {
		return c.LogDir
	}
	return filepath.Join(c.CacheDir, "logs")
}
