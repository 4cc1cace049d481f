// Package session runs one compression of a source file through the
// decode, encode and mux pipeline.
//
// A session moves through Idle, Opening, WritingVideo, optionally
// WritingAudio, and Finalizing before ending in Completed, Cancelled or
// Failed. Each track is driven by a pull loop that only reads the next
// sample when the writer has room for it. Audio is written after video has
// been fully drained.
package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/five82/videocompress/internal/cache"
	"github.com/five82/videocompress/internal/config"
	"github.com/five82/videocompress/internal/errors"
	"github.com/five82/videocompress/internal/logging"
	"github.com/five82/videocompress/internal/media"
	"github.com/five82/videocompress/internal/metrics"
	"github.com/five82/videocompress/internal/preset"
	"github.com/five82/videocompress/internal/reporter"
	"github.com/five82/videocompress/internal/util"
	"github.com/five82/videocompress/internal/validation"
)

// DefaultFrameRate is used when the source reports no frame rate.
const DefaultFrameRate = 30.0

// Options configures a Session.
type Options struct {
	Backend  media.Backend
	Cache    *cache.Manager
	Reporter reporter.Reporter
	Progress reporter.ProgressOptions

	// Encoder and EncoderPreset are only used for reporting and validation;
	// the backend owns the actual encoder settings.
	Encoder       string
	EncoderPreset string

	// Validate re-checks the published output against the encode target.
	Validate bool
}

// Session is one compression of one source file.
type Session struct {
	id   string
	req  media.CompressionRequest
	opts Options
	log  *logging.Logger

	mu       sync.Mutex
	state    State
	output   string
	progress *reporter.Progress

	cancelFlag atomic.Bool
	cancelCh   chan struct{}
	cancelOnce sync.Once
	startOnce  sync.Once

	videoSamples atomic.Uint64
	audioSamples atomic.Uint64

	result *result
	onDone func(*Session)
}

// New creates an idle session. Call Start or Run to execute it.
func New(id string, req media.CompressionRequest, opts Options) *Session {
	if opts.Reporter == nil {
		opts.Reporter = reporter.NullReporter{}
	}
	if opts.Encoder == "" {
		opts.Encoder = config.DefaultVideoCodec
	}
	return &Session{
		id:       id,
		req:      req,
		opts:     opts,
		log:      logging.Global().With("session_id", id, "path", req.Path),
		cancelCh: make(chan struct{}),
		result:   newResult(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Request returns the request the session was created for.
func (s *Session) Request() media.CompressionRequest {
	return s.req
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OutputPath returns the output path once the session has opened.
func (s *Session) OutputPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.output
}

// SamplesWritten returns the number of video and audio samples appended.
func (s *Session) SamplesWritten() (video, audio uint64) {
	return s.videoSamples.Load(), s.audioSamples.Load()
}

// Start runs the session on its own goroutine. Later calls do nothing.
func (s *Session) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		go s.run(ctx)
	})
}

// Run runs the session on the calling goroutine and returns its result.
// If the session was already started, Run waits for it instead.
func (s *Session) Run(ctx context.Context) (*media.MediaInfo, error) {
	s.startOnce.Do(func() {
		s.run(ctx)
	})
	return s.result.get()
}

// Done is closed once the result is available.
func (s *Session) Done() <-chan struct{} {
	return s.result.done
}

// Wait blocks until the session finishes or ctx is done. A cancelled
// session returns MediaInfo with IsCancelled set and a nil error.
func (s *Session) Wait(ctx context.Context) (*media.MediaInfo, error) {
	select {
	case <-s.result.done:
		return s.result.get()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel asks the session to stop. The request is observed at the top of
// the next pull-loop iteration. It reports false once the session has
// started finalizing or has ended, in which case nothing changes.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	if !s.state.cancellable() {
		s.mu.Unlock()
		return false
	}
	s.cancelFlag.Store(true)
	p := s.progress
	s.mu.Unlock()

	s.cancelOnce.Do(func() { close(s.cancelCh) })
	if p != nil {
		p.RequestCancel()
	}
	s.log.Info("Cancellation requested", "state", s.State())
	return true
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()
	s.log.Debug("Session state", "from", prev, "to", next)
}

// enterFinalizing moves to Finalizing unless a cancel request is pending.
func (s *Session) enterFinalizing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelFlag.Load() {
		return false
	}
	s.state = StateFinalizing
	return true
}

func (s *Session) run(ctx context.Context) {
	started := time.Now()
	metrics.SessionsInProgress.Inc()
	defer metrics.SessionsInProgress.Dec()

	info, err := s.execute(ctx)

	status := metrics.StatusCompleted
	switch {
	case err != nil:
		status = metrics.StatusFailed
		s.setState(StateFailed)
		s.log.Error("Compression failed", "error", err)
		s.opts.Reporter.Error(reporter.ReporterError{
			Title:   "Compression failed",
			Message: err.Error(),
			Context: s.req.Path,
		})
	case info.Cancelled():
		status = metrics.StatusCancelled
	}
	metrics.ObserveSession(status, time.Since(started))

	if s.onDone != nil {
		s.onDone(s)
	}
	s.result.complete(info, err)
}

// pipeline holds what must be torn down when the session stops early.
type pipeline struct {
	writer  media.ContainerWriter
	reader  media.TrackReader
	output  string
	total   uint64
	tracker *reporter.Progress
}

func (s *Session) execute(ctx context.Context) (*media.MediaInfo, error) {
	s.setState(StateOpening)
	p := &pipeline{}

	asset, err := s.opts.Backend.Probe(ctx, s.req.Path)
	if err != nil {
		return s.openFailed(ctx, p, err)
	}
	if asset.Video == nil {
		return nil, errors.NewNoVideoTrackError(s.req.Path)
	}
	video := asset.Video

	target := preset.Resolve(s.req.Quality, video.Width, video.Height, video.BitrateBps, video.FrameRate, s.req.Bitrate, s.req.FrameRate)
	if target.FrameRate <= 0 {
		target.FrameRate = DefaultFrameRate
	}

	start, duration := s.req.TrimWindow(asset.Duration)
	readOpts := media.ReadOptions{Start: start, FrameRate: target.FrameRate}
	if start > 0 || duration < asset.Duration {
		readOpts.Duration = duration
	}
	total := reporter.TotalFrames(duration, target.FrameRate)
	p.total = total

	output, err := s.opts.Cache.OutputPath(s.req.Path)
	if err != nil {
		return nil, err
	}
	p.output = output
	s.mu.Lock()
	s.output = output
	s.mu.Unlock()

	writeAudio := s.req.WantsAudio() && asset.HasAudio()
	s.reportStart(asset, target, output, readOpts, writeAudio)

	reader, err := s.opts.Backend.OpenVideoReader(asset, readOpts)
	if err != nil {
		return s.openFailed(ctx, p, err)
	}
	p.reader = reader
	writer, err := s.opts.Backend.CreateWriter(output)
	if err != nil {
		return s.openFailed(ctx, p, err)
	}
	p.writer = writer

	videoIn, err := writer.AddVideoInput(media.VideoInputConfig{
		SourceWidth:  video.Width,
		SourceHeight: video.Height,
		Target:       target,
		Rotation:     video.Rotation,
	})
	if err != nil {
		return s.openFailed(ctx, p, err)
	}
	var audioIn media.TrackWriter
	if writeAudio {
		if audioIn, err = writer.AddAudioInput(); err != nil {
			return s.openFailed(ctx, p, err)
		}
	}

	if err := writer.StartWriting(ctx); err != nil {
		return s.openFailed(ctx, p, err)
	}
	if err := reader.StartReading(ctx); err != nil {
		return s.openFailed(ctx, p, err)
	}

	tracker := reporter.NewProgress(s.opts.Reporter, total, s.opts.Progress)
	defer tracker.Close()
	s.mu.Lock()
	s.progress = tracker
	s.mu.Unlock()
	if s.cancelFlag.Load() {
		tracker.RequestCancel()
	}

	p.tracker = tracker

	s.setState(StateWritingVideo)
	s.opts.Reporter.EncodingStarted(total)
	err = s.pump(ctx, reader, videoIn,
		func(sample *media.Sample, index uint64) {
			sample.PTS = target.FramePTS(index)
			sample.Duration = target.FrameInterval()
		},
		func(written uint64) {
			s.videoSamples.Store(written)
			tracker.Update(written)
		})
	if err != nil {
		return s.abort(p, err)
	}
	videoIn.MarkAsFinished()
	s.log.Debug("Video track drained", "frames", s.videoSamples.Load())

	if writeAudio {
		s.setState(StateWritingAudio)
		s.opts.Reporter.StageProgress(reporter.StageProgress{Stage: "audio", Message: "Writing audio track"})

		audioReader, err := s.opts.Backend.OpenAudioReader(asset, media.ReadOptions{Start: readOpts.Start, Duration: readOpts.Duration})
		if err != nil {
			p.reader = nil
			return s.abort(p, err)
		}
		p.reader = audioReader
		if err := audioReader.StartReading(ctx); err != nil {
			return s.abort(p, err)
		}

		err = s.pump(ctx, audioReader, audioIn,
			func(sample *media.Sample, index uint64) {
				if index == 0 {
					sample.TrimAtStart = media.AACPriming
				}
			},
			func(written uint64) {
				s.audioSamples.Store(written)
			})
		if err != nil {
			return s.abort(p, err)
		}
		audioIn.MarkAsFinished()
	}

	if !s.enterFinalizing() {
		p.reader = nil
		return s.abort(p, errors.NewCancelledError())
	}
	s.log.Debug("Session state", "to", StateFinalizing)
	s.opts.Reporter.StageProgress(reporter.StageProgress{Stage: "finalize", Message: "Muxing output container"})

	if err := writer.FinishWriting(ctx); err != nil {
		if ctx.Err() != nil {
			return s.cancelled(p), nil
		}
		return nil, err
	}
	tracker.Complete()

	outAsset, err := s.opts.Backend.Probe(ctx, output)
	if err != nil {
		return nil, err
	}
	info := media.InfoFromAsset(outAsset)
	notCancelled := false
	info.IsCancelled = &notCancelled

	if s.opts.Validate {
		s.validate(outAsset, target, duration, video.Rotation)
	}

	if s.req.DeleteOriginal {
		if err := os.Remove(s.req.Path); err != nil {
			s.log.Warn("Failed to delete original", "error", err)
			s.opts.Reporter.Warning(fmt.Sprintf("Could not delete original %s: %v", s.req.Path, err))
		}
	}

	s.setState(StateCompleted)
	s.reportComplete(asset, outAsset, info)
	return info, nil
}

// pump drains r into w one sample at a time. stamp adjusts each sample
// before it is appended and written is called with the running count.
func (s *Session) pump(
	ctx context.Context,
	r media.TrackReader,
	w media.TrackWriter,
	stamp func(*media.Sample, uint64),
	written func(uint64),
) error {
	var index uint64
	for {
		if s.cancelFlag.Load() || ctx.Err() != nil {
			return errors.NewCancelledError()
		}

		if !w.IsReadyForMoreMediaData() {
			if err := w.Err(); err != nil {
				return err
			}
			select {
			case <-w.Ready():
			case <-s.cancelCh:
			case <-ctx.Done():
			}
			continue
		}

		sample, err := r.Next()
		if err == io.EOF {
			if status := r.Status(); status != media.ReaderCompleted {
				return errors.NewOperationFailedError(fmt.Sprintf("reader ended in state %s", status), r.Err())
			}
			return nil
		}
		if err != nil {
			return err
		}

		stamp(sample, index)
		if err := w.Append(sample); err != nil {
			return err
		}
		index++
		metrics.SamplesWrittenTotal.WithLabelValues(sample.Kind.String()).Inc()
		written(index)
	}
}

// abort tears the pipeline down. Cancellation becomes a normal result and
// anything else is returned as the failure.
func (s *Session) abort(p *pipeline, cause error) (*media.MediaInfo, error) {
	if p.reader != nil {
		p.reader.CancelReading()
	}
	if p.writer != nil {
		p.writer.CancelWriting()
	}

	if !errors.IsCancelled(cause) {
		return nil, cause
	}
	return s.cancelled(p), nil
}

// openFailed tears down what Opening built. A failure caused by a cancel
// request or a done context ends the session as Cancelled.
func (s *Session) openFailed(ctx context.Context, p *pipeline, err error) (*media.MediaInfo, error) {
	if errors.IsCancelled(err) || ctx.Err() != nil || s.cancelFlag.Load() {
		return s.abort(p, errors.NewCancelledError())
	}
	return s.abort(p, err)
}

func (s *Session) cancelled(p *pipeline) *media.MediaInfo {
	if p.tracker != nil {
		p.tracker.RequestCancel()
	}
	s.cancelFlag.Store(false)
	s.setState(StateCancelled)

	video, _ := s.SamplesWritten()
	s.log.Info("Compression cancelled", "frames_written", video)
	s.opts.Reporter.EncodingCancelled(reporter.CancelSummary{
		InputFile:     s.req.Path,
		FramesWritten: video,
		TotalFrames:   p.total,
	})

	cancelled := true
	return &media.MediaInfo{Path: p.output, IsCancelled: &cancelled}
}

func (s *Session) validate(out *media.Asset, target media.EncodeTarget, duration float64, rotation int) {
	w, h := target.Width, target.Height
	if rotation == 90 || rotation == 270 {
		w, h = h, w
	}
	dims := [2]int{w, h}

	_, audioWritten := s.SamplesWritten()
	wantAudio := audioWritten > 0
	tolerance := target.FrameInterval().Seconds()
	if wantAudio {
		tolerance += media.AACPriming.Seconds()
	}

	res := validation.ValidateAsset(out, validation.Options{
		ExpectedCodec:      validation.CodecForEncoder(s.opts.Encoder),
		ExpectedDimensions: &dims,
		ExpectedDuration:   &duration,
		DurationTolerance:  tolerance,
		ExpectedRotation:   &rotation,
		ExpectAudio:        &wantAudio,
	})

	steps := make([]reporter.ValidationStep, 0, 5)
	for _, step := range res.GetValidationSteps() {
		steps = append(steps, reporter.ValidationStep{Name: step.Name, Passed: step.Passed, Details: step.Details})
	}
	s.opts.Reporter.ValidationComplete(reporter.ValidationSummary{Passed: res.IsValid(), Steps: steps})

	if !res.IsValid() {
		s.log.Warn("Output validation failed", "failures", res.GetFailures())
	}
}

func (s *Session) reportStart(asset *media.Asset, target media.EncodeTarget, output string, opts media.ReadOptions, writeAudio bool) {
	v := asset.Video
	w, h := v.DisplaySize()
	s.opts.Reporter.Initialization(reporter.InitializationSummary{
		InputFile:   s.req.Path,
		OutputFile:  output,
		Duration:    util.FormatDuration(asset.Duration),
		Resolution:  fmt.Sprintf("%dx%d", w, h),
		Orientation: v.Rotation,
		FrameRate:   fmt.Sprintf("%.2f fps", v.FrameRate),
		Bitrate:     util.FormatBitrate(v.BitrateBps),
		HasAudio:    asset.HasAudio(),
	})

	tw, th := target.Width, target.Height
	if v.Rotation == 90 || v.Rotation == 270 {
		tw, th = th, tw
	}
	bitrate := "crf 23"
	if target.BitrateBps > 0 {
		bitrate = util.FormatBitrate(target.BitrateBps)
	}
	audio := "aac"
	switch {
	case !asset.HasAudio():
		audio = "none"
	case !writeAudio:
		audio = "excluded"
	}
	var trim string
	if opts.Start > 0 || opts.Duration > 0 {
		trim = fmt.Sprintf("from %.2fs for %.2fs", opts.Start, opts.Duration)
	}

	s.opts.Reporter.EncodingConfig(reporter.EncodingConfigSummary{
		Encoder:    s.opts.Encoder,
		Preset:     s.opts.EncoderPreset,
		Quality:    fmt.Sprintf("%d (%s)", s.req.Quality, preset.Named(s.req.Quality)),
		Resolution: fmt.Sprintf("%dx%d", tw, th),
		Bitrate:    bitrate,
		FrameRate:  fmt.Sprintf("%.2f fps", target.FrameRate),
		Audio:      audio,
		Trim:       trim,
	})
	s.log.Info("Compression started",
		"quality", s.req.Quality,
		"target", fmt.Sprintf("%dx%d", target.Width, target.Height),
		"bitrate", target.BitrateBps,
		"fps", target.FrameRate,
		"audio", writeAudio)
}

func (s *Session) reportComplete(src, out *media.Asset, info *media.MediaInfo) {
	audio := "none"
	if out.Audio != nil {
		audio = out.Audio.Codec
	}
	s.opts.Reporter.EncodingComplete(reporter.EncodingOutcome{
		InputFile:    s.req.Path,
		OutputFile:   info.Path,
		OriginalSize: src.FileSize,
		EncodedSize:  out.FileSize,
		Resolution:   fmt.Sprintf("%dx%d", info.Width, info.Height),
		Duration:     util.FormatDuration(out.Duration),
		AudioStream:  audio,
		OutputPath:   info.Path,
	})
	if out.FileSize < src.FileSize {
		metrics.BytesSavedTotal.Add(float64(src.FileSize - out.FileSize))
	}
	s.log.Info("Compression complete",
		"output", info.Path,
		"original_size", src.FileSize,
		"encoded_size", out.FileSize)
}
