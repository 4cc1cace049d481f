// Package media defines the data model shared by the probe, the preset
// resolver and the transcode pipeline.
package media

import (
	"encoding/json"
	"math"
	"time"
)

// VideoTrackInfo describes the first video stream of an asset.
type VideoTrackInfo struct {
	Index int
	Codec string
	// Natural size, before the display transform is applied.
	Width  int
	Height int
	// Rotation is the display transform in degrees: 0, 90, 180 or 270.
	Rotation   int
	FrameRate  float64
	BitrateBps int64
	TotalBytes int64
}

// DisplaySize returns the orientation-corrected width and height.
func (v *VideoTrackInfo) DisplaySize() (int, int) {
	if v.Rotation == 90 || v.Rotation == 270 {
		return v.Height, v.Width
	}
	return v.Width, v.Height
}

// AudioTrackInfo marks the presence of an audio stream. Sample rate is
// negotiated by the encoder.
type AudioTrackInfo struct {
	Index    int
	Codec    string
	Channels int
}

// Asset is a probed media file. It is not mutated after probing.
type Asset struct {
	Path     string
	Duration float64 // seconds
	FileSize uint64
	Title    string
	Author   string
	Video    *VideoTrackInfo
	Audio    *AudioTrackInfo
}

// HasAudio reports whether the asset carries an audio track.
func (a *Asset) HasAudio() bool {
	return a.Audio != nil
}

// CompressionRequest is a caller's request to transcode one file.
type CompressionRequest struct {
	Path           string
	Quality        int
	DeleteOriginal bool
	StartTime      *float64 // seconds
	Duration       *float64 // seconds
	IncludeAudio   *bool
	FrameRate      *int
	Bitrate        *int
}

// WantsAudio reports whether audio should be written, defaulting to true.
func (r CompressionRequest) WantsAudio() bool {
	return r.IncludeAudio == nil || *r.IncludeAudio
}

// TrimWindow returns the effective start and duration in seconds for a
// source of the given length. A zero duration means "to the end".
func (r CompressionRequest) TrimWindow(sourceDuration float64) (start, duration float64) {
	if r.StartTime != nil && *r.StartTime > 0 {
		start = min(*r.StartTime, sourceDuration)
	}
	remaining := sourceDuration - start
	duration = remaining
	if r.Duration != nil && *r.Duration > 0 && *r.Duration < remaining {
		duration = *r.Duration
	}
	return start, duration
}

// EncodeTarget is the resolved output geometry and rate.
type EncodeTarget struct {
	Width      int
	Height     int
	BitrateBps int64
	FrameRate  float64
}

// FrameInterval returns the constant output frame interval.
func (t EncodeTarget) FrameInterval() time.Duration {
	if t.FrameRate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / t.FrameRate)
}

// FramePTS returns the presentation timestamp of frame index on the
// constant output frame grid.
func (t EncodeTarget) FramePTS(index uint64) time.Duration {
	if t.FrameRate <= 0 {
		return 0
	}
	return time.Duration(math.Round(float64(index) * float64(time.Second) / t.FrameRate))
}

// MediaInfo is the caller-facing description of a file.
type MediaInfo struct {
	Path        string
	Title       string
	Author      string
	Width       int
	Height      int
	Duration    int64 // milliseconds
	FileSize    uint64
	Orientation int
	IsCancelled *bool
}

type mediaInfoJSON struct {
	Path        string `json:"path"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Duration    int64  `json:"duration"`
	FileSize    uint64 `json:"filesize"`
	Orientation int    `json:"orientation"`
	IsCancel    *bool  `json:"isCancel,omitempty"`
}

// MarshalJSON encodes the info with the key names host UIs expect.
func (m MediaInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(mediaInfoJSON{
		Path:        m.Path,
		Title:       m.Title,
		Author:      m.Author,
		Width:       m.Width,
		Height:      m.Height,
		Duration:    m.Duration,
		FileSize:    m.FileSize,
		Orientation: m.Orientation,
		IsCancel:    m.IsCancelled,
	})
}

// UnmarshalJSON decodes the host UI key names.
func (m *MediaInfo) UnmarshalJSON(data []byte) error {
	var j mediaInfoJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	*m = MediaInfo{
		Path:        j.Path,
		Title:       j.Title,
		Author:      j.Author,
		Width:       j.Width,
		Height:      j.Height,
		Duration:    j.Duration,
		FileSize:    j.FileSize,
		Orientation: j.Orientation,
		IsCancelled: j.IsCancel,
	}
	return nil
}

// Cancelled reports whether the info describes a cancelled transcode.
func (m *MediaInfo) Cancelled() bool {
	return m != nil && m.IsCancelled != nil && *m.IsCancelled
}

// InfoFromAsset derives the caller-facing info from a probed asset.
func InfoFromAsset(a *Asset) *MediaInfo {
	info := &MediaInfo{
		Path:     a.Path,
		Title:    a.Title,
		Author:   a.Author,
		Duration: int64(math.Round(a.Duration * 1000)),
		FileSize: a.FileSize,
	}
	if a.Video != nil {
		info.Width, info.Height = a.Video.DisplaySize()
		info.Orientation = a.Video.Rotation
	}
	return info
}
