package ffmpeg

import (
	"strings"
	"testing"

	"github.com/five82/videocompress/internal/media"
)

// argValue returns the argument following flag, or "" if absent.
func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func hasArg(args []string, arg string) bool {
	for _, a := range args {
		if a == arg {
			return true
		}
	}
	return false
}

func TestRawFrameSize(t *testing.T) {
	tests := []struct {
		w, h int
		want int
	}{
		{1920, 1080, 1920*1080 + 2*960*540},
		{3, 3, 9 + 2*2*2},
		{2, 2, 4 + 2},
	}

	for _, tt := range tests {
		if got := RawFrameSize(tt.w, tt.h); got != tt.want {
			t.Errorf("RawFrameSize(%d, %d) = %d, want %d", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestEvenDimension(t *testing.T) {
	tests := []struct{ in, want int }{
		{640, 640}, {853, 852}, {1, 2}, {0, 2}, {3, 2},
	}
	for _, tt := range tests {
		if got := EvenDimension(tt.in); got != tt.want {
			t.Errorf("EvenDimension(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestBuildVideoDecodeArgs(t *testing.T) {
	args := BuildVideoDecodeArgs("/in.mov", media.ReadOptions{Start: 2, Duration: 3.5, FrameRate: 24})

	if !hasArg(args, "-noautorotate") {
		t.Error("decode should keep natural orientation")
	}
	if got := argValue(args, "-ss"); got != "2.000" {
		t.Errorf("-ss = %q, want 2.000", got)
	}
	if got := argValue(args, "-t"); got != "3.500" {
		t.Errorf("-t = %q, want 3.500", got)
	}
	if got := argValue(args, "-vf"); got != "fps=24" {
		t.Errorf("-vf = %q, want fps=24", got)
	}
	if got := argValue(args, "-f"); got != "rawvideo" {
		t.Errorf("-f = %q, want rawvideo", got)
	}

	// -ss must precede -i for input seeking
	joined := strings.Join(args, " ")
	if strings.Index(joined, "-ss") > strings.Index(joined, "-i ") {
		t.Errorf("-ss after -i in %q", joined)
	}

	untrimmed := BuildVideoDecodeArgs("/in.mov", media.ReadOptions{})
	if hasArg(untrimmed, "-ss") || hasArg(untrimmed, "-t") || hasArg(untrimmed, "-vf") {
		t.Errorf("untrimmed decode has window or filter args: %v", untrimmed)
	}
}

func TestBuildAudioDecodeArgs(t *testing.T) {
	aac := &media.AudioTrackInfo{Codec: "aac", Channels: 2}
	args := BuildAudioDecodeArgs("/in.mp4", aac, media.ReadOptions{})
	if got := argValue(args, "-c:a"); got != "copy" {
		t.Errorf("aac source -c:a = %q, want copy", got)
	}
	if got := argValue(args, "-f"); got != "adts" {
		t.Errorf("-f = %q, want adts", got)
	}

	trimmed := BuildAudioDecodeArgs("/in.mp4", aac, media.ReadOptions{Start: 1})
	if got := argValue(trimmed, "-c:a"); got != "aac" {
		t.Errorf("trimmed aac source -c:a = %q, want aac", got)
	}

	opus := &media.AudioTrackInfo{Codec: "opus", Channels: 6}
	args = BuildAudioDecodeArgs("/in.mkv", opus, media.ReadOptions{})
	if got := argValue(args, "-b:a"); got != "256k" {
		t.Errorf("5.1 -b:a = %q, want 256k", got)
	}
	if got := argValue(args, "-ar"); got != "44100" {
		t.Errorf("-ar = %q, want 44100", got)
	}
}

func TestBuildVideoEncodeArgs(t *testing.T) {
	args := BuildVideoEncodeArgs(VideoEncodeParams{
		SourceWidth:  1920,
		SourceHeight: 1080,
		Target:       media.EncodeTarget{Width: 853, Height: 480, BitrateBps: 1_000_000, FrameRate: 30},
		Codec:        "libx264",
		Preset:       "veryfast",
		Output:       "/tmp/video.mp4",
	})

	checks := map[string]string{
		"-s":           "1920x1080",
		"-framerate":   "30",
		"-vf":          "scale=852:480:flags=bicubic",
		"-c:v":         "libx264",
		"-preset":      "veryfast",
		"-b:v":         "1000000",
		"-r":           "30",
		"-x264-params": "keyint=60:scenecut=40",
	}
	for flag, want := range checks {
		if got := argValue(args, flag); got != want {
			t.Errorf("%s = %q, want %q", flag, got, want)
		}
	}
	if args[len(args)-1] != "/tmp/video.mp4" {
		t.Errorf("output = %q", args[len(args)-1])
	}
	if !hasArg(args, "-an") {
		t.Error("video encode should drop audio")
	}
}

func TestBuildVideoEncodeArgs_PassThroughSize(t *testing.T) {
	args := BuildVideoEncodeArgs(VideoEncodeParams{
		SourceWidth:  640,
		SourceHeight: 360,
		Target:       media.EncodeTarget{Width: 640, Height: 360, FrameRate: 29.97},
	})
	if hasArg(args, "-vf") {
		t.Errorf("same-size encode should not scale: %v", args)
	}
	if got := argValue(args, "-crf"); got != "23" {
		t.Errorf("unknown bitrate should fall back to crf, got %q", got)
	}
	if got := argValue(args, "-framerate"); got != "29.97" {
		t.Errorf("-framerate = %q, want 29.97", got)
	}
}

func TestBuildMuxArgs(t *testing.T) {
	args := BuildMuxArgs(MuxParams{
		VideoPath:   "/s/video.mp4",
		AudioPath:   "/s/audio.aac",
		AudioOffset: 1024.0 / 44100.0,
		Rotation:    90,
		Output:      "/s/output.mp4",
	})

	if got := argValue(args, "-display_rotation"); got != "-90" {
		t.Errorf("-display_rotation = %q, want -90", got)
	}
	if got := argValue(args, "-itsoffset"); got != "-0.023220" {
		t.Errorf("-itsoffset = %q, want -0.023220", got)
	}
	if got := argValue(args, "-c"); got != "copy" {
		t.Errorf("-c = %q, want copy", got)
	}
	if !hasArg(args, "1:a:0") {
		t.Error("audio stream not mapped")
	}

	joined := strings.Join(args, " ")
	if strings.Index(joined, "-itsoffset") > strings.Index(joined, "-i /s/audio.aac") {
		t.Errorf("-itsoffset must precede the audio input: %q", joined)
	}

	videoOnly := BuildMuxArgs(MuxParams{VideoPath: "/s/video.mp4", Output: "/s/output.mp4"})
	if hasArg(videoOnly, "1:a:0") || hasArg(videoOnly, "-display_rotation") || hasArg(videoOnly, "-itsoffset") {
		t.Errorf("video-only mux has audio or rotation args: %v", videoOnly)
	}
}

func TestBuildFrameExtractArgs(t *testing.T) {
	args := BuildFrameExtractArgs("/in.mp4", 1.5)
	if hasArg(args, "-noautorotate") {
		t.Error("thumbnails should apply the display transform")
	}
	if got := argValue(args, "-ss"); got != "1.500000" {
		t.Errorf("-ss = %q, want 1.500000", got)
	}
	if got := argValue(args, "-frames:v"); got != "1" {
		t.Errorf("-frames:v = %q, want 1", got)
	}

	if hasArg(BuildFrameExtractArgs("/in.mp4", 0), "-ss") {
		t.Error("position 0 should not seek")
	}
}
