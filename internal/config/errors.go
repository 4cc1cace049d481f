// Package config provides configuration types and defaults for videocompress.
package config

import "errors"

// Sentinel errors for configuration validation.
var (
	// ErrInvalidCacheDir indicates an empty cache directory.
	ErrInvalidCacheDir = errors.New("cache directory must be set")

	// ErrInvalidSessionLimit indicates a MaxActiveSessions below one.
	ErrInvalidSessionLimit = errors.New("max active sessions must be at least 1")

	// ErrInvalidProgressDelta indicates a progress delta outside 0-100.
	ErrInvalidProgressDelta = errors.New("progress delta out of range")

	// ErrInvalidThumbnailFormat indicates an unknown thumbnail image format.
	ErrInvalidThumbnailFormat = errors.New("invalid thumbnail format")

	// ErrInvalidLogLevel indicates an unknown log level name.
	ErrInvalidLogLevel = errors.New("invalid log level")

	// ErrInvalidCodec indicates an empty video codec.
	ErrInvalidCodec = errors.New("video codec must be set")
)
