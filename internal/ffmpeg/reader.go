package ffmpeg

import (
	"bufio"
	"context"
	"io"
	"sync"
	"time"

	"github.com/five82/videocompress/internal/errors"
	"github.com/five82/videocompress/internal/media"
)

// trackReader holds the state shared by the video and audio readers.
type trackReader struct {
	proc   *process
	stdout io.ReadCloser

	mu     sync.Mutex
	status media.ReaderStatus
	err    error
	count  int64
}

func (r *trackReader) start(ctx context.Context) error {
	stdout, err := r.proc.cmd.StdoutPipe()
	if err != nil {
		return r.fail(errors.NewIOError("failed to create stdout pipe", err))
	}
	if err := r.proc.start(ctx); err != nil {
		return r.fail(err)
	}
	r.stdout = stdout

	r.mu.Lock()
	r.status = media.ReaderReading
	r.mu.Unlock()
	return nil
}

// finish waits for the process after its output is drained and settles the
// reader status. It returns io.EOF on a clean exit.
func (r *trackReader) finish() error {
	err := r.proc.wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.status == media.ReaderCancelled:
		return errors.NewCancelledError()
	case err != nil:
		r.status = media.ReaderFailed
		r.err = err
		return err
	default:
		r.status = media.ReaderCompleted
		return io.EOF
	}
}

// truncated handles an output stream that ended mid-sample or could not be
// parsed. A failing decoder's own error takes precedence.
func (r *trackReader) truncated(cause error) error {
	if cause != io.ErrUnexpectedEOF {
		r.proc.kill()
	}
	if err := r.proc.wait(); err != nil && !errors.IsCancelled(err) {
		return r.fail(err)
	}
	return r.fail(errors.NewFFmpegError("decoder output ended mid-sample", cause))
}

// checkReadable returns the error Next must report before reading.
func (r *trackReader) checkReadable() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.status {
	case media.ReaderReading:
		return nil
	case media.ReaderCompleted:
		return io.EOF
	case media.ReaderCancelled:
		return errors.NewCancelledError()
	case media.ReaderFailed:
		return r.err
	default:
		return errors.NewOperationFailedError("reader not started", nil)
	}
}

func (r *trackReader) fail(err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != media.ReaderCancelled {
		r.status = media.ReaderFailed
		r.err = err
	}
	return err
}

// Status returns the current read state.
func (r *trackReader) Status() media.ReaderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Err returns the failure that moved the reader to ReaderFailed.
func (r *trackReader) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// CancelReading stops the decoder. Subsequent Next calls report cancellation.
func (r *trackReader) CancelReading() {
	r.mu.Lock()
	if r.status == media.ReaderCompleted || r.status == media.ReaderFailed {
		r.mu.Unlock()
		return
	}
	r.status = media.ReaderCancelled
	r.mu.Unlock()
	r.proc.abort()
}

// VideoReader decodes one video track to raw yuv420p frames.
type VideoReader struct {
	trackReader
	buf       *bufio.Reader
	frameSize int
	interval  time.Duration
}

// NewVideoReader prepares a reader for the asset's video track. Frames keep
// the natural (unrotated) size of the track.
func NewVideoReader(binary string, asset *media.Asset, opts media.ReadOptions) (*VideoReader, error) {
	if asset.Video == nil {
		return nil, errors.NewNoVideoTrackError(asset.Path)
	}
	fps := opts.FrameRate
	if fps <= 0 {
		fps = asset.Video.FrameRate
	}
	opts.FrameRate = fps

	r := &VideoReader{
		trackReader: trackReader{proc: newProcess(binary, BuildVideoDecodeArgs(asset.Path, opts))},
		frameSize:   RawFrameSize(asset.Video.Width, asset.Video.Height),
	}
	if fps > 0 {
		r.interval = time.Duration(float64(time.Second) / fps)
	}
	return r, nil
}

// StartReading launches the decoder.
func (r *VideoReader) StartReading(ctx context.Context) error {
	if err := r.start(ctx); err != nil {
		return err
	}
	r.buf = bufio.NewReaderSize(r.stdout, r.frameSize)
	return nil
}

// Next returns the next decoded frame.
func (r *VideoReader) Next() (*media.Sample, error) {
	if err := r.checkReadable(); err != nil {
		return nil, err
	}

	data := make([]byte, r.frameSize)
	if _, err := io.ReadFull(r.buf, data); err != nil {
		if err == io.EOF {
			return nil, r.finish()
		}
		if r.Status() == media.ReaderCancelled {
			return nil, errors.NewCancelledError()
		}
		return nil, r.truncated(err)
	}

	s := &media.Sample{
		Kind:     media.TrackVideo,
		PTS:      time.Duration(r.count) * r.interval,
		Duration: r.interval,
		Data:     data,
	}
	r.count++
	return s, nil
}

// AudioReader extracts one audio track as ADTS AAC frames.
type AudioReader struct {
	trackReader
	adts *ADTSReader
	pts  time.Duration
}

// NewAudioReader prepares a reader for the asset's first audio track.
func NewAudioReader(binary string, asset *media.Asset, opts media.ReadOptions) (*AudioReader, error) {
	if asset.Audio == nil {
		return nil, errors.NewOperationFailedError("no audio track in "+asset.Path, nil)
	}
	return &AudioReader{
		trackReader: trackReader{proc: newProcess(binary, BuildAudioDecodeArgs(asset.Path, asset.Audio, opts))},
	}, nil
}

// StartReading launches the extractor.
func (r *AudioReader) StartReading(ctx context.Context) error {
	if err := r.start(ctx); err != nil {
		return err
	}
	r.adts = NewADTSReader(r.stdout)
	return nil
}

// Next returns the next AAC frame with its source-derived timestamp.
func (r *AudioReader) Next() (*media.Sample, error) {
	if err := r.checkReadable(); err != nil {
		return nil, err
	}

	frame, err := r.adts.Next()
	if err != nil {
		if err == io.EOF {
			return nil, r.finish()
		}
		if r.Status() == media.ReaderCancelled {
			return nil, errors.NewCancelledError()
		}
		return nil, r.truncated(err)
	}

	s := &media.Sample{
		Kind:     media.TrackAudio,
		PTS:      r.pts,
		Duration: frame.Duration(),
		Data:     frame.Data,
	}
	r.pts += s.Duration
	r.count++
	return s, nil
}

var (
	_ media.TrackReader = (*VideoReader)(nil)
	_ media.TrackReader = (*AudioReader)(nil)
)
