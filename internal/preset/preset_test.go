package preset

import (
	"math"
	"testing"
)

func TestResolveSize(t *testing.T) {
	tests := []struct {
		name    string
		quality int
		srcW    int
		srcH    int
		wantW   int
		wantH   int
	}{
		{"1080p to 360", 2, 1920, 1080, 640, 360},
		{"1080p to 720", 4, 1920, 1080, 1280, 720},
		{"1080p to 480", 5, 1920, 1080, 853, 480},
		{"portrait to 360", 2, 1080, 1920, 360, 640},
		{"square to 720", 1, 1080, 1080, 720, 720},
		{"small source passes through", 1, 640, 360, 640, 360},
		{"small portrait passes through", 3, 480, 854, 480, 854},
		{"unknown quality passes through", 0, 1920, 1080, 1920, 1080},
		{"out of range passes through", 42, 1920, 1080, 1920, 1080},
		{"exact height is kept", 4, 1280, 720, 1280, 720},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := ResolveSize(tt.quality, tt.srcW, tt.srcH)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("ResolveSize(%d, %d, %d) = %dx%d, want %dx%d",
					tt.quality, tt.srcW, tt.srcH, w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestResolveNeverUpscales(t *testing.T) {
	sources := [][2]int{
		{1920, 1080}, {1080, 1920}, {3840, 2160}, {640, 480}, {480, 640},
		{720, 720}, {320, 240}, {1280, 720}, {2560, 1080}, {1000, 999}, {99, 1001},
	}

	for quality := 0; quality <= 8; quality++ {
		for _, src := range sources {
			w, h := ResolveSize(quality, src[0], src[1])
			if w > src[0] || h > src[1] {
				t.Errorf("quality %d source %dx%d upscaled to %dx%d", quality, src[0], src[1], w, h)
			}
			if w <= 0 || h <= 0 {
				t.Errorf("quality %d source %dx%d gave empty size %dx%d", quality, src[0], src[1], w, h)
			}

			// One pixel of rounding on the scaled dimension bounds the aspect error.
			srcAspect := float64(src[0]) / float64(src[1])
			gotAspect := float64(w) / float64(h)
			var eps float64
			if srcAspect >= 1 {
				eps = 1 / float64(h)
			} else {
				eps = srcAspect * srcAspect / float64(w)
			}
			if math.Abs(gotAspect-srcAspect) > eps+1e-9 {
				t.Errorf("quality %d source %dx%d aspect %.4f, got %dx%d aspect %.4f",
					quality, src[0], src[1], srcAspect, w, h, gotAspect)
			}
		}
	}
}

func TestResolveRates(t *testing.T) {
	intp := func(v int) *int { return &v }

	tests := []struct {
		name        string
		srcBitrate  int64
		srcFPS      float64
		bitrate     *int
		fps         *int
		wantBitrate int64
		wantFPS     float64
	}{
		{"no overrides", 8_000_000, 30, nil, nil, 8_000_000, 30},
		{"lower overrides apply", 8_000_000, 30, intp(2_000_000), intp(24), 2_000_000, 24},
		{"higher overrides ignored", 1_000_000, 24, intp(5_000_000), intp(60), 1_000_000, 24},
		{"zero overrides ignored", 1_000_000, 24, intp(0), intp(0), 1_000_000, 24},
		{"unknown source bitrate takes override", 0, 30, intp(500_000), nil, 500_000, 30},
		{"unknown source frame rate takes override", 8_000_000, 0, nil, intp(24), 8_000_000, 24},
		{"unknown source frame rate without override", 8_000_000, 0, nil, nil, 8_000_000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(2, 1920, 1080, tt.srcBitrate, tt.srcFPS, tt.bitrate, tt.fps)
			if got.BitrateBps != tt.wantBitrate {
				t.Errorf("BitrateBps = %d, want %d", got.BitrateBps, tt.wantBitrate)
			}
			if got.FrameRate != tt.wantFPS {
				t.Errorf("FrameRate = %v, want %v", got.FrameRate, tt.wantFPS)
			}
			if got.Width != 640 || got.Height != 360 {
				t.Errorf("size = %dx%d, want 640x360", got.Width, got.Height)
			}
		})
	}
}

func TestNamed(t *testing.T) {
	if got := Named(2); got != "360p square" {
		t.Errorf("Named(2) = %q", got)
	}
	if got := Named(0); got != "source" {
		t.Errorf("Named(0) = %q, want source", got)
	}
	if len(Presets) != 7 {
		t.Errorf("len(Presets) = %d, want 7", len(Presets))
	}
}
