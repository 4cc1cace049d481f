// Package ffprobe provides functions for extracting media information using ffprobe.
package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/five82/videocompress/internal/errors"
	"github.com/five82/videocompress/internal/logging"
	"github.com/five82/videocompress/internal/media"
)

// ffprobeOutput represents the JSON output from ffprobe.
type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Duration string            `json:"duration"`
	Size     string            `json:"size"`
	BitRate  string            `json:"bit_rate"`
	Tags     map[string]string `json:"tags"`
}

type ffprobeStream struct {
	Index        int               `json:"index"`
	CodecType    string            `json:"codec_type"`
	CodecName    string            `json:"codec_name"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	Channels     int               `json:"channels"`
	AvgFrameRate string            `json:"avg_frame_rate"`
	RFrameRate   string            `json:"r_frame_rate"`
	BitRate      string            `json:"bit_rate"`
	Duration     string            `json:"duration"`
	Tags         map[string]string `json:"tags"`
	SideDataList []ffprobeSideData `json:"side_data_list"`
	Disposition  StreamDisposition `json:"disposition"`
}

// StreamDisposition contains the stream disposition flags we act on.
type StreamDisposition struct {
	Default     int `json:"default"`
	AttachedPic int `json:"attached_pic"`
}

type ffprobeSideData struct {
	SideDataType string  `json:"side_data_type"`
	Rotation     float64 `json:"rotation"`
}

// Prober runs ffprobe against media files.
type Prober struct {
	binary string
}

// New creates a Prober using the given ffprobe binary. An empty name uses
// "ffprobe" from PATH.
func New(binary string) *Prober {
	if binary == "" {
		binary = "ffprobe"
	}
	return &Prober{binary: binary}
}

// runFFprobe executes ffprobe and returns the parsed output.
func (p *Prober) runFFprobe(ctx context.Context, inputPath string) (*ffprobeOutput, error) {
	cmd := exec.CommandContext(ctx, p.binary,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewCancelledError()
		}
		return nil, errors.WrapExecError(p.binary, err, strings.TrimSpace(stderr.String()))
	}

	return parseFFprobeOutput(output)
}

// parseFFprobeOutput decodes ffprobe's JSON document.
func parseFFprobeOutput(data []byte) (*ffprobeOutput, error) {
	var result ffprobeOutput
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, errors.NewFFprobeParseError("failed to parse ffprobe output", err)
	}
	return &result, nil
}

// Probe opens a media file and returns its track-level description.
// Sources without a video stream fail with errors.KindNoVideoTrack.
func (p *Prober) Probe(ctx context.Context, inputPath string) (*media.Asset, error) {
	if _, err := os.Stat(inputPath); err != nil {
		return nil, errors.NewIOError("cannot open "+inputPath, err)
	}

	probe, err := p.runFFprobe(ctx, inputPath)
	if err != nil {
		return nil, err
	}

	asset, err := buildAsset(probe, inputPath)
	if err != nil {
		return nil, err
	}

	if info, err := os.Stat(inputPath); err == nil {
		asset.FileSize = uint64(info.Size())
	}

	if asset.Title == "" || asset.Author == "" {
		fillTagsFromFile(asset)
	}

	logging.Debug("Probed media",
		"path", inputPath,
		"duration", asset.Duration,
		"width", asset.Video.Width,
		"height", asset.Video.Height,
		"rotation", asset.Video.Rotation,
		"fps", asset.Video.FrameRate,
		"has_audio", asset.HasAudio(),
	)
	return asset, nil
}

// buildAsset converts ffprobe output into a media.Asset.
func buildAsset(probe *ffprobeOutput, inputPath string) (*media.Asset, error) {
	asset := &media.Asset{
		Path:     inputPath,
		Duration: parseFloat(probe.Format.Duration),
		FileSize: uint64(parseInt(probe.Format.Size)),
		Title:    lookupTag(probe.Format.Tags, "title"),
		Author:   lookupTag(probe.Format.Tags, "artist", "author", "album_artist"),
	}

	for i := range probe.Streams {
		s := &probe.Streams[i]
		switch s.CodecType {
		case "video":
			if asset.Video != nil || isAttachedPicture(s) {
				continue
			}
			asset.Video = buildVideoTrack(s, probe.Format, asset.Duration)
		case "audio":
			if asset.Audio == nil {
				asset.Audio = &media.AudioTrackInfo{Index: s.Index, Codec: s.CodecName, Channels: s.Channels}
			}
		}
	}

	if asset.Video == nil {
		return nil, errors.NewNoVideoTrackError(inputPath)
	}
	if asset.Video.Width <= 0 || asset.Video.Height <= 0 {
		return nil, errors.NewFFprobeParseError("invalid video dimensions in "+inputPath, nil)
	}
	if asset.Duration <= 0 {
		asset.Duration = parseFloat(probe.Streams[indexOfStream(probe, asset.Video.Index)].Duration)
	}
	return asset, nil
}

func buildVideoTrack(s *ffprobeStream, format ffprobeFormat, duration float64) *media.VideoTrackInfo {
	fps := parseRate(s.AvgFrameRate)
	if fps <= 0 {
		fps = parseRate(s.RFrameRate)
	}

	bitrate := parseInt(s.BitRate)
	if bitrate <= 0 {
		bitrate = parseInt(format.BitRate)
	}

	return &media.VideoTrackInfo{
		Index:      s.Index,
		Codec:      s.CodecName,
		Width:      s.Width,
		Height:     s.Height,
		Rotation:   streamRotation(s),
		FrameRate:  fps,
		BitrateBps: bitrate,
		TotalBytes: int64(float64(bitrate) * duration / 8),
	}
}

// streamRotation returns the clockwise display rotation of a stream,
// normalised to 0, 90, 180 or 270.
func streamRotation(s *ffprobeStream) int {
	for _, sd := range s.SideDataList {
		if strings.EqualFold(sd.SideDataType, "Display Matrix") {
			// The display matrix reports counter-clockwise degrees.
			return NormalizeRotation(-sd.Rotation)
		}
	}
	if v := lookupTag(s.Tags, "rotate"); v != "" {
		return NormalizeRotation(parseFloat(v))
	}
	return 0
}

// NormalizeRotation snaps degrees to the nearest quarter turn in [0, 360).
func NormalizeRotation(deg float64) int {
	quarter := int(math.Round(deg/90)) % 4
	if quarter < 0 {
		quarter += 4
	}
	return quarter * 90
}

// parseRate parses an ffprobe rational such as "30000/1001".
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return parseFloat(s)
	}
	n := parseFloat(num)
	d := parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func parseInt(s string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// lookupTag returns the first non-empty tag among keys, case-insensitively.
func lookupTag(tags map[string]string, keys ...string) string {
	for _, key := range keys {
		for k, v := range tags {
			if strings.EqualFold(k, key) && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
	}
	return ""
}

// isAttachedPicture reports cover art stored as a single-frame video stream.
func isAttachedPicture(s *ffprobeStream) bool {
	return s.Disposition.AttachedPic == 1
}

func indexOfStream(probe *ffprobeOutput, index int) int {
	for i, s := range probe.Streams {
		if s.Index == index {
			return i
		}
	}
	return 0
}
