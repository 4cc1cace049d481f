package ffmpeg

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/five82/videocompress/internal/errors"
	"github.com/five82/videocompress/internal/media"
)

// sampleInput is a TrackWriter that pumps appended samples into a sink.
// It holds at most one queued sample; Ready fires whenever that slot frees
// up or the input fails.
type sampleInput struct {
	kind     media.TrackKind
	validate func(*media.Sample, time.Duration) error

	sink io.WriteCloser
	proc *process // process behind sink, if any

	queue chan *media.Sample
	ready chan struct{}
	done  chan struct{}

	mu       sync.Mutex
	started  bool
	finished bool
	err      error
	count    int64
	lastPTS  time.Duration
	trim     time.Duration
}

func newSampleInput(kind media.TrackKind, validate func(*media.Sample, time.Duration) error) *sampleInput {
	return &sampleInput{
		kind:     kind,
		validate: validate,
		queue:    make(chan *media.Sample, 1),
		ready:    make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// start begins pumping queued samples into sink.
func (w *sampleInput) start(sink io.WriteCloser, proc *process) {
	w.mu.Lock()
	w.sink = sink
	w.proc = proc
	w.started = true
	w.mu.Unlock()

	go w.pump()
	w.signal()
}

func (w *sampleInput) pump() {
	defer close(w.done)

	var writeErr error
	for s := range w.queue {
		w.signal()
		if writeErr != nil {
			continue
		}
		if _, err := w.sink.Write(s.Data); err != nil {
			writeErr = err
			if w.proc == nil {
				w.fail(errors.NewIOError(fmt.Sprintf("failed to write %s sample", w.kind), err))
			}
		}
	}

	closeErr := w.sink.Close()
	if w.proc != nil {
		// The encoder's own exit status explains a broken pipe better
		// than the write error does.
		if err := w.proc.wait(); err != nil {
			w.fail(err)
		} else if writeErr != nil {
			w.fail(errors.NewFFmpegError(fmt.Sprintf("failed to feed %s encoder", w.kind), writeErr))
		}
	} else if closeErr != nil && writeErr == nil {
		w.fail(errors.NewIOError(fmt.Sprintf("failed to close %s output", w.kind), closeErr))
	}
	w.signal()
}

func (w *sampleInput) signal() {
	select {
	case w.ready <- struct{}{}:
	default:
	}
}

func (w *sampleInput) fail(err error) {
	w.mu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.mu.Unlock()
	w.signal()
}

// Ready signals when the input may accept another sample or has failed.
func (w *sampleInput) Ready() <-chan struct{} {
	return w.ready
}

// IsReadyForMoreMediaData reports whether Append would accept a sample now.
func (w *sampleInput) IsReadyForMoreMediaData() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started && !w.finished && w.err == nil && len(w.queue) < cap(w.queue)
}

// Append queues one sample. It never blocks.
func (w *sampleInput) Append(s *media.Sample) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case w.err != nil:
		return w.err
	case !w.started:
		return errors.NewOperationFailedError(fmt.Sprintf("%s input has not started writing", w.kind), nil)
	case w.finished:
		return errors.NewOperationFailedError(fmt.Sprintf("%s input is already finished", w.kind), nil)
	}

	if w.validate != nil {
		if err := w.validate(s, w.lastPTS); err != nil {
			return err
		}
	}

	select {
	case w.queue <- s:
	default:
		return errors.NewOperationFailedError(fmt.Sprintf("%s input is not ready for more media data", w.kind), nil)
	}

	if w.count == 0 {
		w.trim = s.TrimAtStart
	}
	w.count++
	w.lastPTS = s.PTS
	return nil
}

// MarkAsFinished closes the input. Queued samples are still written.
func (w *sampleInput) MarkAsFinished() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.finished {
		return
	}
	w.finished = true
	close(w.queue)
}

// Err returns the failure that stopped the input, if any.
func (w *sampleInput) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// wait blocks until the pump has drained and the sink is closed.
func (w *sampleInput) wait() {
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if started {
		<-w.done
	}
}

func (w *sampleInput) stats() (count int64, trim time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count, w.trim
}

// videoFrameValidator checks frame size and timestamp order.
func videoFrameValidator(frameSize int) func(*media.Sample, time.Duration) error {
	return func(s *media.Sample, last time.Duration) error {
		if len(s.Data) != frameSize {
			return errors.NewInvalidArgumentError("video sample", fmt.Sprintf("got %d bytes, want %d", len(s.Data), frameSize))
		}
		if s.PTS < last {
			return errors.NewInvalidArgumentError("video sample", fmt.Sprintf("timestamp %v before previous %v", s.PTS, last))
		}
		return nil
	}
}

// audioFrameValidator checks that samples are ADTS framed.
func audioFrameValidator(s *media.Sample, _ time.Duration) error {
	if _, err := parseADTSHeader(s.Data); err != nil {
		return errors.NewInvalidArgumentError("audio sample", err.Error())
	}
	return nil
}

var _ media.TrackWriter = (*sampleInput)(nil)
