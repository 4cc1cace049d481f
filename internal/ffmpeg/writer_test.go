package ffmpeg

import (
	"bytes"
	stderrors "errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/five82/videocompress/internal/errors"
	"github.com/five82/videocompress/internal/media"
)

// closeBuffer is an in-memory sink that records Close.
type closeBuffer struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (b *closeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *closeBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func waitReady(t *testing.T, w *sampleInput) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !w.IsReadyForMoreMediaData() {
		select {
		case <-w.Ready():
		case <-deadline:
			t.Fatal("writer never became ready")
		}
	}
}

func TestSampleInput_Rendezvous(t *testing.T) {
	w := newSampleInput(media.TrackAudio, nil)

	if w.IsReadyForMoreMediaData() {
		t.Error("unstarted input should not be ready")
	}
	if err := w.Append(&media.Sample{Data: []byte{1}}); err == nil {
		t.Error("Append before start should fail")
	}

	sink := &closeBuffer{}
	w.start(sink, nil)

	for i := 0; i < 10; i++ {
		waitReady(t, w)
		if err := w.Append(&media.Sample{PTS: time.Duration(i), Data: []byte{byte(i)}}); err != nil {
			t.Fatalf("Append(%d) error = %v", i, err)
		}
	}
	w.MarkAsFinished()
	w.wait()

	if err := w.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	if !sink.closed {
		t.Error("sink not closed after finish")
	}
	if got := sink.buf.Bytes(); !bytes.Equal(got, []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}) {
		t.Errorf("sink = %v, want samples in order", got)
	}
	if w.IsReadyForMoreMediaData() {
		t.Error("finished input should not be ready")
	}
	if err := w.Append(&media.Sample{Data: []byte{1}}); err == nil {
		t.Error("Append after finish should fail")
	}
	w.MarkAsFinished() // second call is a no-op
}

func TestSampleInput_SaturationAndFailure(t *testing.T) {
	pr, pw := io.Pipe()
	w := newSampleInput(media.TrackAudio, nil)
	w.start(pw, nil)

	// First sample is taken by the pump, which then blocks writing it.
	waitReady(t, w)
	if err := w.Append(&media.Sample{Data: []byte{1}}); err != nil {
		t.Fatalf("Append(1) error = %v", err)
	}
	waitReady(t, w)

	// Second sample fills the queue.
	if err := w.Append(&media.Sample{Data: []byte{2}}); err != nil {
		t.Fatalf("Append(2) error = %v", err)
	}
	if w.IsReadyForMoreMediaData() {
		t.Error("input with a queued sample should not be ready")
	}
	if err := w.Append(&media.Sample{Data: []byte{3}}); err == nil {
		t.Error("Append to a saturated input should fail")
	}

	_ = pr.CloseWithError(stderrors.New("disk gone"))

	deadline := time.After(2 * time.Second)
	for w.Err() == nil {
		select {
		case <-w.Ready():
		case <-deadline:
			t.Fatal("write failure never surfaced")
		}
	}
	if !errors.IsKind(w.Err(), errors.KindIO) {
		t.Errorf("Err() = %v, want I/O error", w.Err())
	}
	if w.IsReadyForMoreMediaData() {
		t.Error("failed input should not be ready")
	}

	w.MarkAsFinished()
	w.wait()
}

func TestSampleInput_TrimFromFirstSample(t *testing.T) {
	w := newSampleInput(media.TrackAudio, nil)
	w.start(&closeBuffer{}, nil)

	trim := time.Duration(1024) * time.Second / 44100
	waitReady(t, w)
	if err := w.Append(&media.Sample{Data: []byte{1}, TrimAtStart: trim}); err != nil {
		t.Fatal(err)
	}
	waitReady(t, w)
	if err := w.Append(&media.Sample{Data: []byte{2}, TrimAtStart: time.Second}); err != nil {
		t.Fatal(err)
	}
	w.MarkAsFinished()
	w.wait()

	count, got := w.stats()
	if count != 2 || got != trim {
		t.Errorf("stats() = (%d, %v), want (2, %v)", count, got, trim)
	}
}

func TestVideoFrameValidator(t *testing.T) {
	validate := videoFrameValidator(RawFrameSize(4, 2))

	if err := validate(&media.Sample{PTS: 40 * time.Millisecond, Data: make([]byte, 12)}, 0); err != nil {
		t.Errorf("valid frame rejected: %v", err)
	}
	if err := validate(&media.Sample{Data: make([]byte, 11)}, 0); err == nil {
		t.Error("short frame accepted")
	}
	if err := validate(&media.Sample{PTS: 0, Data: make([]byte, 12)}, 40*time.Millisecond); err == nil {
		t.Error("timestamp regression accepted")
	}
}

func TestAudioFrameValidator(t *testing.T) {
	if err := audioFrameValidator(&media.Sample{Data: makeADTSFrame(4, 20)}, 0); err != nil {
		t.Errorf("ADTS frame rejected: %v", err)
	}
	if err := audioFrameValidator(&media.Sample{Data: []byte{1, 2, 3}}, 0); err == nil {
		t.Error("raw bytes accepted as audio")
	}
}

func TestTailBuffer(t *testing.T) {
	tb := &tailBuffer{limit: 8}
	_, _ = tb.Write([]byte("hello "))
	_, _ = tb.Write([]byte("world"))
	if got := tb.String(); got != "lo world" {
		t.Errorf("String() = %q, want %q", got, "lo world")
	}
}
