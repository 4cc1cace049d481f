package ffmpeg

import (
	"bytes"
	"context"
	"image"
	_ "image/png" // frame extraction decodes PNG

	"github.com/five82/videocompress/internal/cache"
	"github.com/five82/videocompress/internal/errors"
	"github.com/five82/videocompress/internal/ffprobe"
	"github.com/five82/videocompress/internal/media"
)

// Backend implements media.Backend on top of the ffmpeg and ffprobe binaries.
type Backend struct {
	binary string
	codec  string
	preset string
	prober *ffprobe.Prober
	cache  *cache.Manager
}

// BackendConfig holds the binaries and encoder settings for a Backend.
type BackendConfig struct {
	FFmpegPath    string
	FFprobePath   string
	VideoCodec    string
	EncoderPreset string
}

// NewBackend creates a Backend whose scratch files live in the cache.
func NewBackend(cfg BackendConfig, cacheManager *cache.Manager) *Backend {
	binary := cfg.FFmpegPath
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Backend{
		binary: binary,
		codec:  cfg.VideoCodec,
		preset: cfg.EncoderPreset,
		prober: ffprobe.New(cfg.FFprobePath),
		cache:  cacheManager,
	}
}

// Probe describes the media file at path.
func (b *Backend) Probe(ctx context.Context, path string) (*media.Asset, error) {
	return b.prober.Probe(ctx, path)
}

// OpenVideoReader prepares a raw frame reader for the asset's video track.
func (b *Backend) OpenVideoReader(asset *media.Asset, opts media.ReadOptions) (media.TrackReader, error) {
	return NewVideoReader(b.binary, asset, opts)
}

// OpenAudioReader prepares an ADTS frame reader for the asset's audio track.
func (b *Backend) OpenAudioReader(asset *media.Asset, opts media.ReadOptions) (media.TrackReader, error) {
	return NewAudioReader(b.binary, asset, opts)
}

// CreateWriter prepares a container writer publishing to outputPath.
func (b *Backend) CreateWriter(outputPath string) (media.ContainerWriter, error) {
	scratch, err := b.cache.NewScratchDir()
	if err != nil {
		return nil, err
	}
	return NewContainer(b.binary, b.codec, b.preset, outputPath, scratch), nil
}

// ExtractFrame decodes the display-oriented frame nearest to position
// seconds. It returns nil without error when no frame could be decoded.
func (b *Backend) ExtractFrame(ctx context.Context, path string, position float64) (image.Image, error) {
	proc := newProcess(b.binary, BuildFrameExtractArgs(path, position))
	var out bytes.Buffer
	proc.cmd.Stdout = &out
	if err := proc.start(ctx); err != nil {
		return nil, err
	}
	if err := proc.wait(); err != nil {
		if errors.IsCancelled(err) || ctx.Err() != nil {
			return nil, errors.NewCancelledError()
		}
		return nil, nil
	}
	if out.Len() == 0 {
		return nil, nil
	}

	img, _, err := image.Decode(&out)
	if err != nil {
		return nil, nil
	}
	return img, nil
}

var _ media.Backend = (*Backend)(nil)
