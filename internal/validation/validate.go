package validation

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/five82/videocompress/internal/media"
)

const (
	// durationToleranceSecs is used when Options.DurationTolerance is zero.
	durationToleranceSecs = 1.0
	// dimensionTolerancePx absorbs rounding to even sizes for 4:2:0 output.
	dimensionTolerancePx = 1
)

// Prober describes a media file.
type Prober interface {
	Probe(ctx context.Context, path string) (*media.Asset, error)
}

// Options contains optional expectations for validation. Nil fields skip
// the corresponding check.
type Options struct {
	ExpectedCodec      string
	ExpectedDimensions *[2]int // display-oriented
	ExpectedDuration   *float64
	DurationTolerance  float64
	ExpectedRotation   *int
	ExpectAudio        *bool
}

// CodecForEncoder returns the stream codec name an encoder produces.
func CodecForEncoder(encoder string) string {
	switch encoder {
	case "libx264", "h264_videotoolbox", "h264_nvenc", "h264_qsv":
		return "h264"
	case "libx265", "hevc_videotoolbox", "hevc_nvenc":
		return "hevc"
	case "libsvtav1", "libaom-av1":
		return "av1"
	default:
		return encoder
	}
}

// ValidateOutput probes outputPath and validates it.
func ValidateOutput(ctx context.Context, prober Prober, outputPath string, opts Options) (*Result, error) {
	asset, err := prober.Probe(ctx, outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to probe output: %w", err)
	}
	return ValidateAsset(asset, opts), nil
}

// ValidateAsset checks an already probed output against opts.
func ValidateAsset(asset *media.Asset, opts Options) *Result {
	result := &Result{
		IsCodecCorrect:      true,
		IsDimensionsCorrect: true,
		IsDurationCorrect:   true,
		IsRotationPreserved: true,
		IsAudioCorrect:      true,
		ExpectedCodec:       opts.ExpectedCodec,
	}

	if asset.Video != nil {
		result.CodecName = asset.Video.Codec
	}
	if opts.ExpectedCodec != "" {
		result.IsCodecCorrect = strings.EqualFold(result.CodecName, opts.ExpectedCodec)
	}

	if opts.ExpectedDimensions != nil {
		result.ExpectedDimensions = opts.ExpectedDimensions
		if asset.Video == nil {
			result.IsDimensionsCorrect = false
			result.DimensionMessage = "Output has no video track"
		} else {
			w, h := asset.Video.DisplaySize()
			result.ActualDimensions = &[2]int{w, h}
			result.IsDimensionsCorrect, result.DimensionMessage = validateDimensions(
				w, h, opts.ExpectedDimensions[0], opts.ExpectedDimensions[1])
		}
	} else {
		result.DimensionMessage = "Dimension validation skipped"
	}

	if opts.ExpectedDuration != nil {
		tolerance := opts.DurationTolerance
		if tolerance <= 0 {
			tolerance = durationToleranceSecs
		}
		actual := asset.Duration
		result.ActualDuration = &actual
		result.ExpectedDuration = opts.ExpectedDuration
		result.IsDurationCorrect, result.DurationMessage = validateDuration(actual, *opts.ExpectedDuration, tolerance)
	} else {
		result.DurationMessage = "Duration validation skipped"
	}

	if opts.ExpectedRotation != nil {
		actual := 0
		if asset.Video != nil {
			actual = asset.Video.Rotation
		}
		result.IsRotationPreserved = actual == *opts.ExpectedRotation
		if result.IsRotationPreserved {
			result.RotationMessage = fmt.Sprintf("Rotation preserved (%d°)", actual)
		} else {
			result.RotationMessage = fmt.Sprintf("Rotation mismatch: got %d°, expected %d°", actual, *opts.ExpectedRotation)
		}
	} else {
		result.RotationMessage = "Rotation validation skipped"
	}

	result.IsAudioCorrect, result.AudioMessage = validateAudio(asset.Audio, opts.ExpectAudio)
	return result
}

// validateDimensions checks that dimensions match expected values within
// dimensionTolerancePx.
func validateDimensions(actualW, actualH, expectedW, expectedH int) (bool, string) {
	if abs(actualW-expectedW) <= dimensionTolerancePx && abs(actualH-expectedH) <= dimensionTolerancePx {
		return true, fmt.Sprintf("Dimensions match: %dx%d", actualW, actualH)
	}
	return false, fmt.Sprintf("Dimension mismatch: got %dx%d, expected %dx%d",
		actualW, actualH, expectedW, expectedH)
}

// validateDuration checks that duration is within tolerance seconds.
func validateDuration(actual, expected, tolerance float64) (bool, string) {
	diff := math.Abs(actual - expected)

	if diff <= tolerance {
		return true, fmt.Sprintf("Duration matches input (%.2fs)", actual)
	}
	return false, fmt.Sprintf("Duration mismatch: got %.2fs, expected %.2fs (diff: %.3fs)",
		actual, expected, diff)
}

// validateAudio checks presence of the audio track.
func validateAudio(audio *media.AudioTrackInfo, expect *bool) (bool, string) {
	present := audio != nil
	var message string
	if present {
		message = "Audio track is " + audio.Codec
	} else {
		message = "No audio track"
	}

	if expect == nil {
		return true, message
	}
	if present == *expect {
		return true, message
	}
	if *expect {
		return false, "Expected an audio track, found none"
	}
	return false, "Expected no audio, found " + audio.Codec
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
