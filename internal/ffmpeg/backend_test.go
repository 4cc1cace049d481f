package ffmpeg

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/five82/videocompress/internal/cache"
	"github.com/five82/videocompress/internal/errors"
	"github.com/five82/videocompress/internal/media"
)

// writeScript writes an executable /bin/sh script standing in for ffmpeg.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-ins need a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

// catScript writes data to a file and returns a script body that prints it.
func catScript(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stream.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return "cat '" + path + "'"
}

// encoderScript copies stdin to the last argument when encoding and
// writes a marker file when muxing.
const encoderScript = `for a in "$@"; do out=$a; done
case " $* " in
*" pipe:0 "*) exec cat > "$out" ;;
esac
printf muxed > "$out"`

func scratchDirs(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, cache.ScratchPrefix+"_*"))
	if err != nil {
		t.Fatal(err)
	}
	return matches
}

// testVideoConfig is a 4x2 source encoded at 10 fps.
func testVideoConfig() media.VideoInputConfig {
	return media.VideoInputConfig{
		SourceWidth:  4,
		SourceHeight: 2,
		Target:       media.EncodeTarget{Width: 4, Height: 2, FrameRate: 10},
	}
}

func newTestContainer(t *testing.T, script string) (*Container, *cache.Manager, string) {
	t.Helper()
	m := cache.New(t.TempDir())
	b := NewBackend(BackendConfig{FFmpegPath: writeScript(t, script)}, m)
	out := filepath.Join(m.Dir(), "clip_0001.mp4")

	w, err := b.CreateWriter(out)
	if err != nil {
		t.Fatalf("CreateWriter() error = %v", err)
	}
	return w.(*Container), m, out
}

func appendFrames(t *testing.T, in media.TrackWriter, n int) {
	t.Helper()
	cfg := testVideoConfig()
	size := RawFrameSize(cfg.SourceWidth, cfg.SourceHeight)
	for i := 0; i < n; i++ {
		waitReady(t, in.(*sampleInput))
		s := &media.Sample{Kind: media.TrackVideo, PTS: time.Duration(i) * 100 * time.Millisecond, Data: make([]byte, size)}
		if err := in.Append(s); err != nil {
			t.Fatalf("Append(video %d) error = %v", i, err)
		}
	}
}

func TestContainerFinishPublishesOutput(t *testing.T) {
	c, m, out := newTestContainer(t, encoderScript)

	video, err := c.AddVideoInput(testVideoConfig())
	if err != nil {
		t.Fatalf("AddVideoInput() error = %v", err)
	}
	audio, err := c.AddAudioInput()
	if err != nil {
		t.Fatalf("AddAudioInput() error = %v", err)
	}
	if err := c.StartWriting(context.Background()); err != nil {
		t.Fatalf("StartWriting() error = %v", err)
	}

	appendFrames(t, video, 3)
	video.MarkAsFinished()
	for i := 0; i < 2; i++ {
		waitReady(t, audio.(*sampleInput))
		s := &media.Sample{Kind: media.TrackAudio, Data: makeADTSFrame(4, 10)}
		if i == 0 {
			s.TrimAtStart = media.AACPriming
		}
		if err := audio.Append(s); err != nil {
			t.Fatalf("Append(audio %d) error = %v", i, err)
		}
	}
	audio.MarkAsFinished()

	if err := c.FinishWriting(context.Background()); err != nil {
		t.Fatalf("FinishWriting() error = %v", err)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("output not published: %v", err)
	}
	if string(got) != "muxed" {
		t.Errorf("output = %q, want the muxed file", got)
	}
	if dirs := scratchDirs(t, m.Dir()); len(dirs) != 0 {
		t.Errorf("scratch directories left behind: %v", dirs)
	}
}

func TestContainerCancelMidStream(t *testing.T) {
	c, m, out := newTestContainer(t, encoderScript)

	video, err := c.AddVideoInput(testVideoConfig())
	if err != nil {
		t.Fatalf("AddVideoInput() error = %v", err)
	}
	if err := c.StartWriting(context.Background()); err != nil {
		t.Fatalf("StartWriting() error = %v", err)
	}
	appendFrames(t, video, 2)

	c.CancelWriting()
	c.CancelWriting()

	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("output exists after cancel: %v", err)
	}
	if dirs := scratchDirs(t, m.Dir()); len(dirs) != 0 {
		t.Errorf("scratch directories left behind: %v", dirs)
	}
	if err := c.FinishWriting(context.Background()); err == nil {
		t.Error("FinishWriting() after cancel should fail")
	}
}

func TestContainerEncoderFailure(t *testing.T) {
	c, m, out := newTestContainer(t, "cat > /dev/null; echo 'encoder exploded' >&2; exit 4")

	video, err := c.AddVideoInput(testVideoConfig())
	if err != nil {
		t.Fatalf("AddVideoInput() error = %v", err)
	}
	if err := c.StartWriting(context.Background()); err != nil {
		t.Fatalf("StartWriting() error = %v", err)
	}
	appendFrames(t, video, 1)
	video.MarkAsFinished()

	err = c.FinishWriting(context.Background())
	if !errors.IsKind(err, errors.KindCommand) {
		t.Fatalf("FinishWriting() error = %v, want command failure", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("output exists after failed encode: %v", err)
	}
	if dirs := scratchDirs(t, m.Dir()); len(dirs) != 0 {
		t.Errorf("scratch directories left behind: %v", dirs)
	}
}

func TestContainerRejectsLateInputs(t *testing.T) {
	c, _, _ := newTestContainer(t, encoderScript)
	defer c.CancelWriting()

	if err := c.StartWriting(context.Background()); err == nil {
		t.Error("StartWriting() without a video input should fail")
	}
	if _, err := c.AddVideoInput(testVideoConfig()); err != nil {
		t.Fatalf("AddVideoInput() error = %v", err)
	}
	if err := c.StartWriting(context.Background()); err != nil {
		t.Fatalf("StartWriting() error = %v", err)
	}
	if _, err := c.AddAudioInput(); err == nil {
		t.Error("AddAudioInput() after start should fail")
	}
}

// testAsset is a 4x2 10 fps source with an AAC track.
func testAsset() *media.Asset {
	return &media.Asset{
		Path:  "/videos/clip.mov",
		Video: &media.VideoTrackInfo{Width: 4, Height: 2, FrameRate: 10},
		Audio: &media.AudioTrackInfo{Codec: "aac", Channels: 2},
	}
}

func startVideoReader(t *testing.T, script string) *VideoReader {
	t.Helper()
	r, err := NewVideoReader(writeScript(t, script), testAsset(), media.ReadOptions{})
	if err != nil {
		t.Fatalf("NewVideoReader() error = %v", err)
	}
	if err := r.StartReading(context.Background()); err != nil {
		t.Fatalf("StartReading() error = %v", err)
	}
	return r
}

func TestVideoReaderCompletes(t *testing.T) {
	frame := RawFrameSize(4, 2)
	r := startVideoReader(t, catScript(t, make([]byte, 2*frame)))

	for i := 0; i < 2; i++ {
		s, err := r.Next()
		if err != nil {
			t.Fatalf("Next(%d) error = %v", i, err)
		}
		if len(s.Data) != frame {
			t.Errorf("frame %d size = %d, want %d", i, len(s.Data), frame)
		}
		if want := time.Duration(i) * 100 * time.Millisecond; s.PTS != want {
			t.Errorf("frame %d PTS = %v, want %v", i, s.PTS, want)
		}
	}
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("Next() at end = %v, want io.EOF", err)
	}
	if got := r.Status(); got != media.ReaderCompleted {
		t.Errorf("Status() = %v, want completed", got)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("Next() after completion = %v, want io.EOF", err)
	}
}

func TestVideoReaderEmptyCleanExit(t *testing.T) {
	r := startVideoReader(t, "exit 0")

	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("Next() = %v, want io.EOF", err)
	}
	if got := r.Status(); got != media.ReaderCompleted {
		t.Errorf("Status() = %v, want completed", got)
	}
}

func TestVideoReaderFailsMidFrame(t *testing.T) {
	frame := RawFrameSize(4, 2)
	r := startVideoReader(t, catScript(t, make([]byte, frame+frame/2))+"; exit 3")

	if _, err := r.Next(); err != nil {
		t.Fatalf("first Next() error = %v", err)
	}
	_, err := r.Next()
	if !errors.IsKind(err, errors.KindCommand) {
		t.Fatalf("Next() error = %v, want command failure", err)
	}
	if got := r.Status(); got != media.ReaderFailed {
		t.Errorf("Status() = %v, want failed", got)
	}
	if r.Err() == nil {
		t.Error("Err() = nil after failure")
	}
}

func TestVideoReaderCancelled(t *testing.T) {
	r := startVideoReader(t, "exec sleep 10")

	r.CancelReading()
	if _, err := r.Next(); !errors.IsCancelled(err) {
		t.Fatalf("Next() after cancel = %v, want cancellation", err)
	}
	if got := r.Status(); got != media.ReaderCancelled {
		t.Errorf("Status() = %v, want cancelled", got)
	}
}

func TestAudioReaderTimestamps(t *testing.T) {
	var stream []byte
	stream = append(stream, makeADTSFrame(4, 20)...)
	stream = append(stream, makeADTSFrame(4, 30)...)

	r, err := NewAudioReader(writeScript(t, catScript(t, stream)), testAsset(), media.ReadOptions{})
	if err != nil {
		t.Fatalf("NewAudioReader() error = %v", err)
	}
	if err := r.StartReading(context.Background()); err != nil {
		t.Fatalf("StartReading() error = %v", err)
	}

	first, err := r.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	second, err := r.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if first.PTS != 0 || second.PTS != first.Duration {
		t.Errorf("PTS = %v, %v, want 0, %v", first.PTS, second.PTS, first.Duration)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("Next() at end = %v, want io.EOF", err)
	}
	if got := r.Status(); got != media.ReaderCompleted {
		t.Errorf("Status() = %v, want completed", got)
	}
}

func TestAudioReaderRequiresTrack(t *testing.T) {
	asset := testAsset()
	asset.Audio = nil
	if _, err := NewAudioReader("ffmpeg", asset, media.ReadOptions{}); err == nil {
		t.Error("NewAudioReader() without audio should fail")
	}
}

func TestExtractFrame(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 6, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	path := filepath.Join(t.TempDir(), "frame.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()

	tests := []struct {
		name   string
		script string
		want   image.Rectangle
	}{
		{"decoded frame", "cat '" + path + "'", image.Rect(0, 0, 6, 4)},
		{"decoder failure", "exit 1", image.Rectangle{}},
		{"no output", "exit 0", image.Rectangle{}},
		{"not an image", "printf garbage", image.Rectangle{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBackend(BackendConfig{FFmpegPath: writeScript(t, tt.script)}, cache.New(t.TempDir()))

			got, err := b.ExtractFrame(context.Background(), "/videos/clip.mov", 1.5)
			if err != nil {
				t.Fatalf("ExtractFrame() error = %v", err)
			}
			if tt.want.Empty() {
				if got != nil {
					t.Errorf("ExtractFrame() = %v, want nil", got.Bounds())
				}
				return
			}
			if got == nil || got.Bounds() != tt.want {
				t.Fatalf("ExtractFrame() bounds = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractFrameCancelled(t *testing.T) {
	b := NewBackend(BackendConfig{FFmpegPath: writeScript(t, "exec sleep 10")}, cache.New(t.TempDir()))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := b.ExtractFrame(ctx, "/videos/clip.mov", 0); !errors.IsCancelled(err) {
		t.Errorf("ExtractFrame() error = %v, want cancellation", err)
	}
}
