package ffprobe

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/five82/videocompress/internal/errors"
)

// loadTestData loads a JSON fixture from the testdata directory.
func loadTestData(t *testing.T, filename string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", filename))
	if err != nil {
		t.Fatalf("failed to load test data %s: %v", filename, err)
	}
	return data
}

func TestBuildAsset_1080pWithAudio(t *testing.T) {
	probe, err := parseFFprobeOutput(loadTestData(t, "video_1080p_aac.json"))
	if err != nil {
		t.Fatalf("parseFFprobeOutput() error = %v", err)
	}

	asset, err := buildAsset(probe, "clip.mp4")
	if err != nil {
		t.Fatalf("buildAsset() error = %v", err)
	}

	if asset.Duration != 10 {
		t.Errorf("Duration = %v, want 10", asset.Duration)
	}
	if asset.Title != "Birthday" || asset.Author != "Ana" {
		t.Errorf("tags = %q/%q, want Birthday/Ana", asset.Title, asset.Author)
	}
	if asset.FileSize != 10160000 {
		t.Errorf("FileSize = %d, want 10160000", asset.FileSize)
	}

	v := asset.Video
	if v.Width != 1920 || v.Height != 1080 {
		t.Errorf("size = %dx%d, want 1920x1080", v.Width, v.Height)
	}
	if v.FrameRate != 30 {
		t.Errorf("FrameRate = %v, want 30", v.FrameRate)
	}
	if v.BitrateBps != 8000000 {
		t.Errorf("BitrateBps = %d, want 8000000", v.BitrateBps)
	}
	if v.TotalBytes != 10000000 {
		t.Errorf("TotalBytes = %d, want 10000000", v.TotalBytes)
	}
	if v.Rotation != 0 {
		t.Errorf("Rotation = %d, want 0", v.Rotation)
	}

	if !asset.HasAudio() || asset.Audio.Codec != "aac" {
		t.Errorf("expected aac audio track, got %+v", asset.Audio)
	}
}

func TestBuildAsset_PortraitRotation(t *testing.T) {
	probe, err := parseFFprobeOutput(loadTestData(t, "video_portrait_rotated.json"))
	if err != nil {
		t.Fatalf("parseFFprobeOutput() error = %v", err)
	}

	asset, err := buildAsset(probe, "IMG_0001.MOV")
	if err != nil {
		t.Fatalf("buildAsset() error = %v", err)
	}

	v := asset.Video
	if v.Codec != "hevc" {
		t.Errorf("cover art picked as video track: codec %s", v.Codec)
	}
	if v.Rotation != 90 {
		t.Errorf("Rotation = %d, want 90", v.Rotation)
	}
	w, h := v.DisplaySize()
	if w != 1080 || h != 1920 {
		t.Errorf("DisplaySize() = %dx%d, want 1080x1920", w, h)
	}
	if math.Abs(v.FrameRate-29.97) > 0.001 {
		t.Errorf("FrameRate = %v, want ~29.97", v.FrameRate)
	}
	// Falls back to the container bitrate
	if v.BitrateBps != 9590409 {
		t.Errorf("BitrateBps = %d, want 9590409", v.BitrateBps)
	}
	if asset.HasAudio() {
		t.Error("expected no audio track")
	}
}

func TestBuildAsset_NoVideoTrack(t *testing.T) {
	probe, err := parseFFprobeOutput(loadTestData(t, "audio_only.json"))
	if err != nil {
		t.Fatalf("parseFFprobeOutput() error = %v", err)
	}

	_, err = buildAsset(probe, "song.mp3")
	if !errors.IsNoVideoTrack(err) {
		t.Errorf("buildAsset() error = %v, want no video track", err)
	}
}

func TestParseFFprobeOutput_MalformedJSON(t *testing.T) {
	data := []byte(`{"format": {"duration": "120.5"}, "streams": [}`)

	_, err := parseFFprobeOutput(data)
	if !errors.IsKind(err, errors.KindFFprobeParse) {
		t.Errorf("parseFFprobeOutput() error = %v, want parse error", err)
	}
}

func TestNormalizeRotation(t *testing.T) {
	tests := []struct {
		deg  float64
		want int
	}{
		{0, 0},
		{90, 90},
		{-90, 270},
		{180, 180},
		{-180, 180},
		{270, 270},
		{360, 0},
		{450, 90},
		{89.6, 90},
	}

	for _, tt := range tests {
		if got := NormalizeRotation(tt.deg); got != tt.want {
			t.Errorf("NormalizeRotation(%v) = %d, want %d", tt.deg, got, tt.want)
		}
	}
}

func TestStreamRotation_LegacyTag(t *testing.T) {
	s := &ffprobeStream{Tags: map[string]string{"rotate": "270"}}
	if got := streamRotation(s); got != 270 {
		t.Errorf("streamRotation() = %d, want 270", got)
	}
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"30/1", 30},
		{"25", 25},
		{"0/0", 0},
		{"", 0},
		{"24000/1001", 24000.0 / 1001.0},
	}

	for _, tt := range tests {
		if got := parseRate(tt.input); got != tt.want {
			t.Errorf("parseRate(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestLookupTag(t *testing.T) {
	tags := map[string]string{"TITLE": " Trip ", "Author": "Sam"}
	if got := lookupTag(tags, "title"); got != "Trip" {
		t.Errorf("lookupTag(title) = %q, want Trip", got)
	}
	if got := lookupTag(tags, "artist", "author"); got != "Sam" {
		t.Errorf("lookupTag(artist, author) = %q, want Sam", got)
	}
	if got := lookupTag(nil, "title"); got != "" {
		t.Errorf("lookupTag(nil) = %q, want empty", got)
	}
}

func TestProbeMissingFile(t *testing.T) {
	_, err := New("").Probe(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))
	if !errors.IsKind(err, errors.KindIO) {
		t.Errorf("Probe() error = %v, want I/O error", err)
	}
}
