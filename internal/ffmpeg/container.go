package ffmpeg

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/five82/videocompress/internal/errors"
	"github.com/five82/videocompress/internal/logging"
	"github.com/five82/videocompress/internal/media"
	"github.com/five82/videocompress/internal/util"
)

type containerState int

const (
	containerIdle containerState = iota
	containerWriting
	containerFinished
	containerCancelled
)

// Container is a ContainerWriter that encodes tracks into a scratch
// directory and publishes the muxed MP4 to the output path on success.
type Container struct {
	binary     string
	codec      string
	preset     string
	outputPath string
	scratch    *util.TempDir

	mu       sync.Mutex
	state    containerState
	videoCfg media.VideoInputConfig
	video    *sampleInput
	audio    *sampleInput
	encoder  *process
}

// NewContainer creates a writer for outputPath using scratch for
// intermediate files. The container owns scratch and removes it.
func NewContainer(binary, codec, preset, outputPath string, scratch *util.TempDir) *Container {
	return &Container{
		binary:     binary,
		codec:      codec,
		preset:     preset,
		outputPath: outputPath,
		scratch:    scratch,
	}
}

func (c *Container) videoPath() string { return filepath.Join(c.scratch.Path(), "video.mp4") }
func (c *Container) audioPath() string { return filepath.Join(c.scratch.Path(), "audio.aac") }
func (c *Container) muxPath() string   { return filepath.Join(c.scratch.Path(), "output.mp4") }

// AddVideoInput configures the video track.
func (c *Container) AddVideoInput(cfg media.VideoInputConfig) (media.TrackWriter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != containerIdle {
		return nil, errors.NewOperationFailedError("cannot add inputs after writing started", nil)
	}
	if c.video != nil {
		return nil, errors.NewOperationFailedError("video input already added", nil)
	}
	if cfg.SourceWidth <= 0 || cfg.SourceHeight <= 0 || cfg.Target.FrameRate <= 0 {
		return nil, errors.NewInvalidArgumentError("video input", "source size and frame rate are required")
	}
	c.videoCfg = cfg
	c.video = newSampleInput(media.TrackVideo, videoFrameValidator(RawFrameSize(cfg.SourceWidth, cfg.SourceHeight)))
	return c.video, nil
}

// AddAudioInput configures an ADTS AAC audio track.
func (c *Container) AddAudioInput() (media.TrackWriter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != containerIdle {
		return nil, errors.NewOperationFailedError("cannot add inputs after writing started", nil)
	}
	if c.audio != nil {
		return nil, errors.NewOperationFailedError("audio input already added", nil)
	}
	c.audio = newSampleInput(media.TrackAudio, audioFrameValidator)
	return c.audio, nil
}

// StartWriting launches the video encoder and opens the audio file.
func (c *Container) StartWriting(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != containerIdle {
		return errors.NewOperationFailedError("container already started", nil)
	}
	if c.video == nil {
		return errors.NewOperationFailedError("container has no video input", nil)
	}

	enc := newProcess(c.binary, BuildVideoEncodeArgs(VideoEncodeParams{
		SourceWidth:  c.videoCfg.SourceWidth,
		SourceHeight: c.videoCfg.SourceHeight,
		Target:       c.videoCfg.Target,
		Codec:        c.codec,
		Preset:       c.preset,
		Output:       c.videoPath(),
	}))
	stdin, err := enc.cmd.StdinPipe()
	if err != nil {
		return errors.NewIOError("failed to create stdin pipe", err)
	}
	if err := enc.start(ctx); err != nil {
		return err
	}
	c.encoder = enc

	var audioFile *os.File
	if c.audio != nil {
		audioFile, err = os.Create(c.audioPath())
		if err != nil {
			enc.abort()
			return errors.NewIOError("failed to create audio output", err)
		}
	}

	c.video.start(stdin, enc)
	if audioFile != nil {
		c.audio.start(audioFile, nil)
	}
	c.state = containerWriting
	return nil
}

// FinishWriting waits for all inputs to drain, muxes them and moves the
// result to the output path.
func (c *Container) FinishWriting(ctx context.Context) error {
	c.mu.Lock()
	if c.state != containerWriting {
		c.mu.Unlock()
		return errors.NewOperationFailedError("container is not writing", nil)
	}
	video, audio := c.video, c.audio
	c.mu.Unlock()

	if err := c.waitInputs(ctx, video, audio); err != nil {
		c.CancelWriting()
		return err
	}

	params := MuxParams{
		VideoPath: c.videoPath(),
		Rotation:  c.videoCfg.Rotation,
		Output:    c.muxPath(),
	}
	if audio != nil {
		if count, trim := audio.stats(); count > 0 {
			params.AudioPath = c.audioPath()
			params.AudioOffset = trim.Seconds()
		}
	}

	mux := newProcess(c.binary, BuildMuxArgs(params))
	if err := mux.start(ctx); err != nil {
		c.CancelWriting()
		return err
	}
	if err := mux.wait(); err != nil {
		c.CancelWriting()
		return err
	}

	if err := os.Rename(c.muxPath(), c.outputPath); err != nil {
		c.CancelWriting()
		return errors.NewIOError("failed to publish "+c.outputPath, err)
	}

	c.mu.Lock()
	c.state = containerFinished
	c.mu.Unlock()

	if err := c.scratch.Cleanup(); err != nil {
		logging.Warn("Failed to remove scratch directory", "dir", c.scratch.Path(), "error", err)
	}
	return nil
}

func (c *Container) waitInputs(ctx context.Context, inputs ...*sampleInput) error {
	for _, in := range inputs {
		if in == nil {
			continue
		}
		in.mu.Lock()
		finished := in.finished
		in.mu.Unlock()
		if !finished {
			return errors.NewOperationFailedError(in.kind.String()+" input was not marked as finished", nil)
		}

		select {
		case <-in.done:
		case <-ctx.Done():
			return errors.NewCancelledError()
		}
		if err := in.Err(); err != nil {
			return err
		}
	}
	return nil
}

// CancelWriting aborts all inputs and removes intermediate files. The
// output path is left untouched.
func (c *Container) CancelWriting() {
	c.mu.Lock()
	if c.state == containerFinished || c.state == containerCancelled {
		c.mu.Unlock()
		return
	}
	c.state = containerCancelled
	video, audio, enc := c.video, c.audio, c.encoder
	c.mu.Unlock()

	if enc != nil {
		enc.kill()
	}
	for _, in := range []*sampleInput{video, audio} {
		if in == nil {
			continue
		}
		in.MarkAsFinished()
		in.wait()
	}

	if err := c.scratch.Cleanup(); err != nil {
		logging.Warn("Failed to remove scratch directory", "dir", c.scratch.Path(), "error", err)
	}
}

var _ media.ContainerWriter = (*Container)(nil)
