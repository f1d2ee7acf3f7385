package ffmpeg

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ZacxDev/video-compressor/internal/config"
	"github.com/ZacxDev/video-compressor/pkg/types"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Prober reads media metadata with ffprobe
type Prober struct {
	timeout time.Duration
	logger  hclog.Logger
}

// NewProber creates a prober. A zero timeout waits for ffprobe indefinitely.
func NewProber(timeout time.Duration, logger hclog.Logger) *Prober {
	return &Prober{
		timeout: timeout,
		logger:  logger.Named("probe"),
	}
}

// Probe returns the dimensions, duration and size of the file at path.
// Every failure is a *ProbeError.
func (p *Prober) Probe(ctx context.Context, path string) (types.MediaInfo, error) {
	if err := ctx.Err(); err != nil {
		return types.MediaInfo{}, &ProbeError{Path: path, Err: err}
	}

	if _, err := os.Stat(path); err != nil {
		return types.MediaInfo{}, &ProbeError{Path: path, Err: errors.Wrap(err, "cannot open file")}
	}

	out, err := ffmpeg.ProbeWithTimeout(path, p.timeout, ffmpeg.KwArgs{})
	if err != nil {
		return types.MediaInfo{}, &ProbeError{Path: path, Err: errors.Wrap(err, "ffprobe could not read file")}
	}

	info, err := ParseProbeJSON([]byte(out))
	if err != nil {
		return types.MediaInfo{}, &ProbeError{Path: path, Err: err}
	}

	p.logger.Debug("probed video",
		"path", path,
		"width", info.Width,
		"height", info.Height,
		"duration", info.DurationSeconds,
		"size", info.SizeBytes,
	)
	return info, nil
}

// --- ffprobe JSON wire types ---

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

type probeFormat struct {
	Duration flexString `json:"duration"`
	Size     flexString `json:"size"`
}

// flexString accepts ffprobe values emitted either as strings or bare numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	*f = flexString(b)
	return nil
}

// ParseProbeJSON converts `ffprobe -show_format -show_streams -of json` output
// into MediaInfo. The first video stream supplies the dimensions.
func ParseProbeJSON(data []byte) (types.MediaInfo, error) {
	var raw probeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return types.MediaInfo{}, errors.Wrap(err, "invalid ffprobe output")
	}

	var video *probeStream
	for i := range raw.Streams {
		if raw.Streams[i].CodecType == "video" {
			video = &raw.Streams[i]
			break
		}
	}
	if video == nil {
		return types.MediaInfo{}, ErrNoVideoStream
	}

	if video.Width <= 0 || video.Height <= 0 {
		return types.MediaInfo{}, errors.Errorf("video stream has invalid dimensions %dx%d", video.Width, video.Height)
	}

	return types.MediaInfo{
		Width:           video.Width,
		Height:          video.Height,
		DurationSeconds: parseDuration(string(raw.Format.Duration)),
		SizeBytes:       parseSize(string(raw.Format.Size)),
	}, nil
}

// parseDuration never returns zero, negative or non-finite values.
func parseDuration(s string) float64 {
	d, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
		return config.FallbackDurationSeconds
	}
	return d
}

func parseSize(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
