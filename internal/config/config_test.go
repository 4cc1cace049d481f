package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/cache")

	if cfg.CacheDir != "/cache" {
		t.Errorf("expected CacheDir=/cache, got %s", cfg.CacheDir)
	}
	if cfg.LogDir != filepath.Join("/cache", "logs") {
		t.Errorf("expected LogDir under cache, got %s", cfg.LogDir)
	}

	// Check defaults
	if cfg.VideoCodec != DefaultVideoCodec {
		t.Errorf("expected VideoCodec=%s, got %s", DefaultVideoCodec, cfg.VideoCodec)
	}
	if cfg.MaxActiveSessions != DefaultMaxActiveSessions {
		t.Errorf("expected MaxActiveSessions=%d, got %d", DefaultMaxActiveSessions, cfg.MaxActiveSessions)
	}
	if cfg.ProgressMinInterval != DefaultProgressMinInterval {
		t.Errorf("expected ProgressMinInterval=%v, got %v", DefaultProgressMinInterval, cfg.ProgressMinInterval)
	}
}

func TestNewConfigDefaultCacheDir(t *testing.T) {
	cfg := NewConfig("")
	if filepath.Base(cfg.CacheDir) != CacheDirName {
		t.Errorf("expected cache dir ending in %s, got %s", CacheDirName, cfg.CacheDir)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name         string
		modify       func(*Config)
		wantErr      bool
		wantSentinel error
	}{
		{
			name:    "default config is valid",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:         "empty cache dir is invalid",
			modify:       func(c *Config) { c.CacheDir = "" },
			wantErr:      true,
			wantSentinel: ErrInvalidCacheDir,
		},
		{
			name:         "zero sessions is invalid",
			modify:       func(c *Config) { c.MaxActiveSessions = 0 },
			wantErr:      true,
			wantSentinel: ErrInvalidSessionLimit,
		},
		{
			name:    "several sessions is valid",
			modify:  func(c *Config) { c.MaxActiveSessions = 4 },
			wantErr: false,
		},
		{
			name:         "delta above 100 is invalid",
			modify:       func(c *Config) { c.ProgressMinDelta = 101 },
			wantErr:      true,
			wantSentinel: ErrInvalidProgressDelta,
		},
		{
			name:         "unknown thumbnail format is invalid",
			modify:       func(c *Config) { c.ThumbnailFormat = "gif" },
			wantErr:      true,
			wantSentinel: ErrInvalidThumbnailFormat,
		},
		{
			name:         "unknown log level is invalid",
			modify:       func(c *Config) { c.LogLevel = "loud" },
			wantErr:      true,
			wantSentinel: ErrInvalidLogLevel,
		},
		{
			name:         "empty codec is invalid",
			modify:       func(c *Config) { c.VideoCodec = "" },
			wantErr:      true,
			wantSentinel: ErrInvalidCodec,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig("/cache")
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantSentinel != nil && !errors.Is(err, tt.wantSentinel) {
				t.Errorf("Validate() error = %v, want sentinel %v", err, tt.wantSentinel)
			}
		})
	}
}

func TestParseThumbnailFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    ThumbnailFormat
		wantErr bool
	}{
		{"jpeg", ThumbnailJPEG, false},
		{"JPG", ThumbnailJPEG, false},
		{"webp", ThumbnailWebP, false},
		{"png", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseThumbnailFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseThumbnailFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ParseThumbnailFormat(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "videocompress.yaml")
	content := `cache_dir: ` + dir + `
max_active_sessions: 2
progress_min_interval: 500ms
thumbnail_format: webp
log_level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CacheDir != dir {
		t.Errorf("CacheDir = %s, want %s", cfg.CacheDir, dir)
	}
	if cfg.MaxActiveSessions != 2 {
		t.Errorf("MaxActiveSessions = %d, want 2", cfg.MaxActiveSessions)
	}
	if cfg.ProgressMinInterval != 500*time.Millisecond {
		t.Errorf("ProgressMinInterval = %v, want 500ms", cfg.ProgressMinInterval)
	}
	if cfg.ThumbnailFormat != ThumbnailWebP {
		t.Errorf("ThumbnailFormat = %v, want webp", cfg.ThumbnailFormat)
	}
	// Unset keys keep their defaults
	if cfg.VideoCodec != DefaultVideoCodec {
		t.Errorf("VideoCodec = %s, want %s", cfg.VideoCodec, DefaultVideoCodec)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvCacheDir, "/env/cache")
	t.Setenv(EnvLogLevel, "debug")

	cfg := NewConfig("/cache")
	cfg.ApplyEnv()

	if cfg.CacheDir != "/env/cache" {
		t.Errorf("CacheDir = %s, want /env/cache", cfg.CacheDir)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", cfg.LogLevel)
	}
}

func TestThumbnailFormatExtension(t *testing.T) {
	if got := ThumbnailJPEG.Extension(); got != ".jpg" {
		t.Errorf("ThumbnailJPEG.Extension() = %s, want .jpg", got)
	}
	if got := ThumbnailWebP.Extension(); got != ".webp" {
		t.Errorf("ThumbnailWebP.Extension() = %s, want .webp", got)
	}
}
