package ffmpeg

import (
	"strconv"

	"github.com/five82/videocompress/internal/media"
)

// AACSampleRate is the sample rate used when audio is re-encoded.
const AACSampleRate = 44100

// AACFrameSamples is the number of PCM samples in one AAC frame.
const AACFrameSamples = 1024

// VideoEncodeParams configures the video encoder process.
type VideoEncodeParams struct {
	SourceWidth  int
	SourceHeight int
	Target       media.EncodeTarget
	Codec        string
	Preset       string
	Output       string
}

// formatRate renders a frame rate the way ffmpeg parses it.
func formatRate(fps float64) string {
	return strconv.FormatFloat(fps, 'f', -1, 64)
}

func formatSeconds(secs float64) string {
	return strconv.FormatFloat(secs, 'f', 3, 64)
}

// EvenDimension rounds n down to an even value of at least 2, as required
// by 4:2:0 chroma subsampling.
func EvenDimension(n int) int {
	return max(2, n&^1)
}

// RawFrameSize returns the byte size of one yuv420p frame.
func RawFrameSize(width, height int) int {
	cw := (width + 1) / 2
	ch := (height + 1) / 2
	return width*height + 2*cw*ch
}

// inputWindow returns seek/duration arguments wrapped around "-i path".
func inputWindow(path string, opts media.ReadOptions) []string {
	var args []string
	if opts.Start > 0 {
		args = append(args, "-ss", formatSeconds(opts.Start))
	}
	args = append(args, "-i", path)
	if opts.Duration > 0 {
		args = append(args, "-t", formatSeconds(opts.Duration))
	}
	return args
}

// BuildVideoDecodeArgs decodes the first video stream to raw yuv420p frames
// on stdout at the requested frame rate, without applying rotation.
func BuildVideoDecodeArgs(path string, opts media.ReadOptions) []string {
	args := []string{"-hide_banner", "-nostdin", "-v", "error", "-noautorotate"}
	args = append(args, inputWindow(path, opts)...)

	filters := NewVideoFilterChain()
	if opts.FrameRate > 0 {
		filters.AddFilter("fps=" + formatRate(opts.FrameRate))
	}

	args = append(args, "-map", "0:v:0", "-an", "-sn", "-dn")
	if !filters.IsEmpty() {
		args = append(args, "-vf", filters.Build())
	}
	return append(args, "-pix_fmt", "yuv420p", "-f", "rawvideo", "pipe:1")
}

// BuildAudioDecodeArgs extracts the first audio stream as an ADTS AAC
// elementary stream on stdout. AAC sources are copied when not trimmed.
func BuildAudioDecodeArgs(path string, audio *media.AudioTrackInfo, opts media.ReadOptions) []string {
	args := []string{"-hide_banner", "-nostdin", "-v", "error"}
	args = append(args, inputWindow(path, opts)...)
	args = append(args, "-map", "0:a:0", "-vn", "-sn", "-dn")

	trimmed := opts.Start > 0 || opts.Duration > 0
	if audio != nil && audio.Codec == "aac" && !trimmed {
		args = append(args, "-c:a", "copy")
	} else {
		channels := 2
		if audio != nil && audio.Channels > 0 {
			channels = audio.Channels
		}
		args = append(args,
			"-c:a", "aac",
			"-b:a", strconv.Itoa(int(CalculateAudioBitrate(uint32(channels))))+"k",
			"-ar", strconv.Itoa(AACSampleRate),
		)
	}
	return append(args, "-f", "adts", "pipe:1")
}

// BuildVideoEncodeArgs reads raw yuv420p frames on stdin and encodes them
// to an MP4 file scaled to the target size.
func BuildVideoEncodeArgs(p VideoEncodeParams) []string {
	fps := formatRate(p.Target.FrameRate)
	args := []string{
		"-hide_banner", "-nostdin", "-v", "error", "-y",
		"-f", "rawvideo",
		"-pix_fmt", "yuv420p",
		"-s", strconv.Itoa(p.SourceWidth) + "x" + strconv.Itoa(p.SourceHeight),
		"-framerate", fps,
		"-i", "pipe:0",
	}

	w, h := EvenDimension(p.Target.Width), EvenDimension(p.Target.Height)
	filters := NewVideoFilterChain()
	if w != p.SourceWidth || h != p.SourceHeight {
		filters.AddScale(w, h)
	}
	if !filters.IsEmpty() {
		args = append(args, "-vf", filters.Build())
	}

	codec := p.Codec
	if codec == "" {
		codec = "libx264"
	}
	args = append(args, "-c:v", codec)
	if p.Preset != "" && codec == "libx264" {
		args = append(args, "-preset", p.Preset)
	}

	if p.Target.BitrateBps > 0 {
		b := strconv.FormatInt(p.Target.BitrateBps, 10)
		args = append(args, "-b:v", b, "-maxrate", b, "-bufsize", strconv.FormatInt(p.Target.BitrateBps*2, 10))
	} else {
		args = append(args, "-crf", "23")
	}

	if codec == "libx264" {
		params := NewX264ParamsBuilder().
			WithKeyint(int(p.Target.FrameRate*2 + 0.5)).
			AddParam("scenecut", "40")
		args = append(args, "-x264-params", params.Build())
	}

	return append(args,
		"-r", fps,
		"-pix_fmt", "yuv420p",
		"-an",
		"-f", "mp4",
		p.Output,
	)
}

// MuxParams configures the final remux of encoded tracks.
type MuxParams struct {
	VideoPath   string
	AudioPath   string // empty when the output has no audio
	AudioOffset float64
	Rotation    int
	Output      string
}

// BuildMuxArgs stream-copies the encoded tracks into one MP4 container,
// applying the display rotation and shifting audio by the priming offset.
func BuildMuxArgs(p MuxParams) []string {
	args := []string{"-hide_banner", "-nostdin", "-v", "error", "-y"}
	if p.Rotation != 0 {
		// display_rotation is counter-clockwise
		args = append(args, "-display_rotation", strconv.Itoa(-p.Rotation))
	}
	args = append(args, "-i", p.VideoPath)
	if p.AudioPath != "" {
		if p.AudioOffset != 0 {
			args = append(args, "-itsoffset", strconv.FormatFloat(-p.AudioOffset, 'f', 6, 64))
		}
		args = append(args, "-i", p.AudioPath)
	}

	args = append(args, "-map", "0:v:0")
	if p.AudioPath != "" {
		args = append(args, "-map", "1:a:0")
	}
	return append(args,
		"-c", "copy",
		"-movflags", "+faststart",
		"-f", "mp4",
		p.Output,
	)
}

// BuildFrameExtractArgs decodes one display-oriented frame at position as PNG on stdout.
func BuildFrameExtractArgs(path string, position float64) []string {
	args := []string{"-hide_banner", "-nostdin", "-v", "error"}
	if position > 0 {
		args = append(args, "-ss", strconv.FormatFloat(position, 'f', 6, 64))
	}
	return append(args,
		"-i", path,
		"-map", "0:v:0",
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"pipe:1",
	)
}
