package media

import (
	"context"
	"time"
)

// TrackKind identifies a track type.
type TrackKind int

const (
	TrackVideo TrackKind = iota
	TrackAudio
)

func (k TrackKind) String() string {
	if k == TrackAudio {
		return "audio"
	}
	return "video"
}

// AACPriming is one AAC frame of encoder priming: 1024 samples at 44.1 kHz.
const AACPriming = 1024 * time.Second / 44100

// Sample is one decoded video frame or one coded audio frame.
type Sample struct {
	Kind     TrackKind
	PTS      time.Duration
	Duration time.Duration
	Data     []byte
	// TrimAtStart is the encoder priming duration to discard from the
	// start of the track. Only set on the first audio sample.
	TrimAtStart time.Duration
}

// ReaderStatus is the read state of a TrackReader.
type ReaderStatus int

const (
	ReaderUnknown ReaderStatus = iota
	ReaderReading
	ReaderCompleted
	ReaderFailed
	ReaderCancelled
)

func (s ReaderStatus) String() string {
	switch s {
	case ReaderReading:
		return "reading"
	case ReaderCompleted:
		return "completed"
	case ReaderFailed:
		return "failed"
	case ReaderCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ReadOptions bounds what a reader decodes.
type ReadOptions struct {
	Start     float64 // seconds
	Duration  float64 // seconds, 0 reads to the end
	FrameRate float64 // output frame rate for video readers
}

// TrackReader pulls samples from one source track.
type TrackReader interface {
	StartReading(ctx context.Context) error
	// Next returns the next sample, or io.EOF once the track is drained.
	Next() (*Sample, error)
	Status() ReaderStatus
	CancelReading()
	Err() error
}

// TrackWriter accepts samples for one output track. Append must only be
// called while IsReadyForMoreMediaData reports true.
type TrackWriter interface {
	// Ready signals when the writer may have regained capacity or failed.
	Ready() <-chan struct{}
	IsReadyForMoreMediaData() bool
	Append(s *Sample) error
	MarkAsFinished()
	Err() error
}

// VideoInputConfig configures the video track of an output container.
type VideoInputConfig struct {
	SourceWidth  int
	SourceHeight int
	Target       EncodeTarget
	Rotation     int
}

// ContainerWriter assembles output tracks into one container file.
type ContainerWriter interface {
	AddVideoInput(cfg VideoInputConfig) (TrackWriter, error)
	AddAudioInput() (TrackWriter, error)
	StartWriting(ctx context.Context) error
	// FinishWriting waits for all inputs and publishes the output file.
	FinishWriting(ctx context.Context) error
	// CancelWriting aborts all inputs; the output path is never created.
	CancelWriting()
}

// Backend opens readers and writers over media files.
type Backend interface {
	Probe(ctx context.Context, path string) (*Asset, error)
	OpenVideoReader(asset *Asset, opts ReadOptions) (TrackReader, error)
	OpenAudioReader(asset *Asset, opts ReadOptions) (TrackReader, error)
	CreateWriter(outputPath string) (ContainerWriter, error)
}
