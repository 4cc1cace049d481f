package main

import (
	"testing"
)

func TestCompressRequestLeavesUnsetFlagsNil(t *testing.T) {
	cmd := newCompressCommand(&app{})
	if err := cmd.ParseFlags([]string{"-q", "2"}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	var ca compressArgs
	ca.quality, _ = cmd.Flags().GetInt("quality")
	req := ca.request(cmd, "/v/a.mp4")

	if req.Quality != 2 {
		t.Errorf("Quality = %d, want 2", req.Quality)
	}
	if req.StartTime != nil || req.Duration != nil || req.FrameRate != nil || req.Bitrate != nil {
		t.Errorf("optional fields set without flags: %+v", req)
	}
	if !req.WantsAudio() {
		t.Error("WantsAudio() = false, want true")
	}
}

func TestCompressRequestFromFlags(t *testing.T) {
	cmd := newCompressCommand(&app{})
	args := []string{"--start", "1.5", "--duration", "4", "--no-audio", "--fps", "24", "--bitrate", "800000"}
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	fl := cmd.Flags()
	var ca compressArgs
	ca.start, _ = fl.GetFloat64("start")
	ca.duration, _ = fl.GetFloat64("duration")
	ca.noAudio, _ = fl.GetBool("no-audio")
	ca.frameRate, _ = fl.GetInt("fps")
	ca.bitrate, _ = fl.GetInt("bitrate")
	req := ca.request(cmd, "/v/a.mp4")

	if req.StartTime == nil || *req.StartTime != 1.5 {
		t.Errorf("StartTime = %v, want 1.5", req.StartTime)
	}
	if req.Duration == nil || *req.Duration != 4 {
		t.Errorf("Duration = %v, want 4", req.Duration)
	}
	if req.WantsAudio() {
		t.Error("WantsAudio() = true, want false")
	}
	if req.FrameRate == nil || *req.FrameRate != 24 {
		t.Errorf("FrameRate = %v, want 24", req.FrameRate)
	}
	if req.Bitrate == nil || *req.Bitrate != 800000 {
		t.Errorf("Bitrate = %v, want 800000", req.Bitrate)
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"info", "thumbnail", "compress", "presets", "clear-cache", "serve", "version"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("Find(%q) = %v, %v", name, cmd, err)
		}
	}
}
