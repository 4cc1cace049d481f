// Package ffmpeg drives ffmpeg processes over pipes to decode, encode and
// mux media tracks.
package ffmpeg

import (
	"fmt"
	"strings"
)

// X264ParamsBuilder builds x264 parameters with method chaining.
type X264ParamsBuilder struct {
	params []paramKV
}

type paramKV struct {
	key   string
	value string
}

// NewX264ParamsBuilder creates a new x264 parameters builder.
func NewX264ParamsBuilder() *X264ParamsBuilder {
	return &X264ParamsBuilder{}
}

// WithKeyint sets the maximum GOP length. Values below 1 are ignored.
func (b *X264ParamsBuilder) WithKeyint(frames int) *X264ParamsBuilder {
	if frames > 0 {
		b.params = append(b.params, paramKV{"keyint", fmt.Sprintf("%d", frames)})
	}
	return b
}

// AddParam adds a custom parameter.
func (b *X264ParamsBuilder) AddParam(key, value string) *X264ParamsBuilder {
	b.params = append(b.params, paramKV{key, value})
	return b
}

// Build builds the parameters into a colon-separated string.
func (b *X264ParamsBuilder) Build() string {
	var parts []string
	for _, p := range b.params {
		parts = append(parts, fmt.Sprintf("%s=%s", p.key, p.value))
	}
	return strings.Join(parts, ":")
}

// CalculateAudioBitrate returns audio bitrate in kbps based on channel count.
func CalculateAudioBitrate(channels uint32) uint32 {
	switch channels {
	case 1:
		return 64 // Mono
	case 2:
		return 128 // Stereo
	case 6:
		return 256 // 5.1 surround
	case 8:
		return 384 // 7.1 surround
	default:
		return channels * 48 // ~48 kbps per channel for non-standard configs
	}
}
