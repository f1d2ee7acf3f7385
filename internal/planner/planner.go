// Package planner derives output geometry, video bitrate and the encoder
// directive list from probed media metadata. Everything here is pure.
package planner

import (
	"fmt"
	"math"

	"github.com/ZacxDev/video-compressor/internal/config"
	"github.com/ZacxDev/video-compressor/pkg/types"
	"golang.org/x/exp/constraints"
)

// PlanningError reports inputs the planners cannot turn into a plan.
// Path is filled in by callers that know which file was being planned.
type PlanningError struct {
	Path   string
	Reason string
}

func (e *PlanningError) Error() string {
	if e.Path == "" {
		return "Planning failed: " + e.Reason
	}
	return fmt.Sprintf("Planning failed for %s: %s", e.Path, e.Reason)
}

// Clamp bounds v to [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// PlanGeometry fits srcW x srcH into box preserving the aspect ratio.
// Sources already inside the box pass through; the result is always even
// and at least 2x2.
func PlanGeometry(srcW, srcH int, box types.TargetBox) (types.OutputGeometry, error) {
	if srcW <= 0 || srcH <= 0 {
		return types.OutputGeometry{}, &PlanningError{Reason: fmt.Sprintf("invalid source dimensions %dx%d", srcW, srcH)}
	}
	if box.MaxWidth <= 0 || box.MaxHeight <= 0 {
		return types.OutputGeometry{}, &PlanningError{Reason: fmt.Sprintf("invalid target box %dx%d", box.MaxWidth, box.MaxHeight)}
	}

	width, height := srcW, srcH
	if srcW > box.MaxWidth || srcH > box.MaxHeight {
		aspect := float64(srcW) / float64(srcH)

		width = box.MaxWidth
		height = int(math.Round(float64(width) / aspect))

		if height > box.MaxHeight {
			height = box.MaxHeight
			width = int(math.Round(float64(height) * aspect))
		}
	}

	return types.OutputGeometry{
		Width:  even(width),
		Height: even(height),
	}, nil
}

// even drops odd dimensions by one; libx264 rejects odd 4:2:0 frame sizes.
func even(n int) int {
	if n%2 != 0 {
		n--
	}
	if n < 2 {
		n = 2
	}
	return n
}

// PlanVideoBitrateKbps spreads the whole size budget over the duration as
// video bitrate, clamped to the supported range. Audio and container overhead
// are not subtracted, so the budget is a target rather than a ceiling.
func PlanVideoBitrateKbps(durationSeconds float64, budget types.SizeBudget) int {
	safeDuration := durationSeconds
	if math.IsNaN(safeDuration) || safeDuration < config.FallbackDurationSeconds {
		safeDuration = config.FallbackDurationSeconds
	}

	raw := math.Floor(float64(budget.TargetBytes) * 8 / safeDuration / 1000)
	return int(Clamp(raw, config.MinVideoBitrateKbps, config.MaxVideoBitrateKbps))
}

// BuildPlan composes the geometry and bitrate planners into an EncodePlan.
func BuildPlan(info types.MediaInfo, box types.TargetBox, budget types.SizeBudget, profile types.EncoderProfile) (types.EncodePlan, error) {
	geometry, err := PlanGeometry(info.Width, info.Height, box)
	if err != nil {
		return types.EncodePlan{}, err
	}

	return types.EncodePlan{
		Geometry:         geometry,
		VideoCodec:       profile.VideoCodec,
		Preset:           profile.Preset,
		VideoBitrateKbps: PlanVideoBitrateKbps(info.DurationSeconds, budget),
		AudioCodec:       profile.AudioCodec,
		AudioBitrateKbps: profile.AudioBitrateKbps,
		ContainerFormat:  profile.ContainerFormat,
	}, nil
}
