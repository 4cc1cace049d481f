package ffmpeg

import (
	"bufio"
	"fmt"
	"io"
	"time"
)

const adtsHeaderSize = 7

// adtsSampleRates maps the ADTS sampling frequency index to Hz.
var adtsSampleRates = [...]int{
	96000, 88200, 64000, 48000, 44100, 32000, 24000,
	22050, 16000, 12000, 11025, 8000, 7350,
}

// ADTSFrame is one AAC frame including its ADTS header.
type ADTSFrame struct {
	Data       []byte
	SampleRate int
	Samples    int
}

// Duration returns the playback duration of the frame.
func (f ADTSFrame) Duration() time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	return time.Duration(f.Samples) * time.Second / time.Duration(f.SampleRate)
}

// ADTSReader splits an ADTS stream into frames.
type ADTSReader struct {
	r *bufio.Reader
}

// NewADTSReader wraps r.
func NewADTSReader(r io.Reader) *ADTSReader {
	return &ADTSReader{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next frame, io.EOF at a clean end of stream and
// io.ErrUnexpectedEOF for a truncated frame.
func (a *ADTSReader) Next() (ADTSFrame, error) {
	header, err := a.r.Peek(adtsHeaderSize)
	if err != nil {
		if err == io.EOF && len(header) == 0 {
			return ADTSFrame{}, io.EOF
		}
		if err == io.EOF {
			return ADTSFrame{}, io.ErrUnexpectedEOF
		}
		return ADTSFrame{}, err
	}

	h, err := parseADTSHeader(header)
	if err != nil {
		return ADTSFrame{}, err
	}

	data := make([]byte, h.frameLength)
	if _, err := io.ReadFull(a.r, data); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return ADTSFrame{}, err
	}
	return ADTSFrame{Data: data, SampleRate: h.sampleRate, Samples: h.blocks * AACFrameSamples}, nil
}

type adtsHeader struct {
	frameLength int
	sampleRate  int
	blocks      int
}

func parseADTSHeader(b []byte) (adtsHeader, error) {
	if len(b) < adtsHeaderSize {
		return adtsHeader{}, fmt.Errorf("adts header too short: %d bytes", len(b))
	}
	if b[0] != 0xFF || b[1]&0xF0 != 0xF0 {
		return adtsHeader{}, fmt.Errorf("adts sync word not found")
	}

	freqIndex := int(b[2]>>2) & 0x0F
	if freqIndex >= len(adtsSampleRates) {
		return adtsHeader{}, fmt.Errorf("invalid adts sampling frequency index %d", freqIndex)
	}

	frameLength := int(b[3]&0x03)<<11 | int(b[4])<<3 | int(b[5])>>5
	if frameLength < adtsHeaderSize {
		return adtsHeader{}, fmt.Errorf("invalid adts frame length %d", frameLength)
	}

	return adtsHeader{
		frameLength: frameLength,
		sampleRate:  adtsSampleRates[freqIndex],
		blocks:      int(b[6]&0x03) + 1,
	}, nil
}
