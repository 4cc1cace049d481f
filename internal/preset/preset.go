// Package preset maps quality selectors to concrete encode targets.
package preset

import (
	"math"

	"github.com/five82/videocompress/internal/media"
)

// Preset is a bounding size selected by an ordinal quality level.
type Preset struct {
	Quality int
	Name    string
	Width   int
	Height  int
}

// Presets is the quality table, indexed by selector 1-7.
var Presets = []Preset{
	{Quality: 1, Name: "720p square", Width: 720, Height: 720},
	{Quality: 2, Name: "360p square", Width: 360, Height: 360},
	{Quality: 3, Name: "640p square", Width: 640, Height: 640},
	{Quality: 4, Name: "720p HD", Width: 1280, Height: 720},
	{Quality: 5, Name: "480p SD", Width: 640, Height: 480},
	{Quality: 6, Name: "720p HD (alt)", Width: 1280, Height: 720},
	{Quality: 7, Name: "720p wide", Width: 1920, Height: 720},
}

// Lookup returns the preset for a quality selector. Unknown selectors
// report false and resolve to the source dimensions.
func Lookup(quality int) (Preset, bool) {
	if quality < 1 || quality > len(Presets) {
		return Preset{}, false
	}
	return Presets[quality-1], true
}

// Named returns a human readable name for a quality selector.
func Named(quality int) string {
	if p, ok := Lookup(quality); ok {
		return p.Name
	}
	return "source"
}

// Resolve computes the encode target for a source of the given natural size,
// bitrate and frame rate. Overrides only ever lower the source values.
func Resolve(quality, srcWidth, srcHeight int, srcBitrate int64, srcFPS float64, overrideBitrate, overrideFPS *int) media.EncodeTarget {
	w, h := ResolveSize(quality, srcWidth, srcHeight)

	bitrate := srcBitrate
	if overrideBitrate != nil && *overrideBitrate > 0 && int64(*overrideBitrate) < bitrate {
		bitrate = int64(*overrideBitrate)
	}
	// Sources without a bitrate estimate take the override as-is.
	if bitrate <= 0 && overrideBitrate != nil && *overrideBitrate > 0 {
		bitrate = int64(*overrideBitrate)
	}

	fps := srcFPS
	if overrideFPS != nil && *overrideFPS > 0 && float64(*overrideFPS) < fps {
		fps = float64(*overrideFPS)
	}
	if fps <= 0 && overrideFPS != nil && *overrideFPS > 0 {
		fps = float64(*overrideFPS)
	}

	return media.EncodeTarget{
		Width:      w,
		Height:     h,
		BitrateBps: bitrate,
		FrameRate:  fps,
	}
}

// ResolveSize computes the target dimensions. The fixed dimension comes from
// the preset (height for landscape, width for portrait) and the other is
// scaled by the source aspect ratio. Sources already smaller than the preset
// pass through unchanged.
func ResolveSize(quality, srcWidth, srcHeight int) (int, int) {
	p, ok := Lookup(quality)
	if !ok || srcWidth <= 0 || srcHeight <= 0 {
		return srcWidth, srcHeight
	}

	aspect := float64(srcWidth) / float64(srcHeight)
	var w, h int
	if aspect >= 1 {
		if p.Height > srcHeight {
			return srcWidth, srcHeight
		}
		h = p.Height
		w = int(math.Round(float64(p.Height) * aspect))
	} else {
		if p.Width > srcWidth {
			return srcWidth, srcHeight
		}
		w = p.Width
		h = int(math.Round(float64(p.Width) / aspect))
	}

	return min(max(w, 1), srcWidth), min(max(h, 1), srcHeight)
}
