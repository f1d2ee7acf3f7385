// Package processor plans and runs conversions, one job at a time.
package processor

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/ZacxDev/video-compressor/internal/config"
	"github.com/ZacxDev/video-compressor/internal/events"
	"github.com/ZacxDev/video-compressor/internal/ffmpeg"
	"github.com/ZacxDev/video-compressor/internal/planner"
	"github.com/ZacxDev/video-compressor/pkg/types"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

// Prober is the external media inspection capability
type Prober interface {
	Probe(ctx context.Context, path string) (types.MediaInfo, error)
}

// Input is one file to convert and the directory its output goes to
type Input struct {
	InputPath string `json:"inputPath"`
	OutputDir string `json:"outputDir"`
}

// Converter runs jobs strictly one after another. Progress events carry job
// IDs, but the mutex keeps a single encode in flight even when several
// callers share one Converter.
type Converter struct {
	cfg     *config.Config
	prober  Prober
	encoder Encoder
	sink    events.Sink
	logger  hclog.Logger

	mu sync.Mutex
}

// NewConverter creates a converter for the box, budget and suffix in cfg
func NewConverter(cfg *config.Config, prober Prober, encoder Encoder, sink events.Sink, logger hclog.Logger) *Converter {
	if sink == nil {
		sink = events.Discard
	}
	return &Converter{
		cfg:     cfg,
		prober:  prober,
		encoder: encoder,
		sink:    sink,
		logger:  logger.Named("converter"),
	}
}

// RunBatch converts inputs in order. It never fails as a whole: the result
// at index i belongs to inputs[i], and a failed item does not stop the rest.
func (c *Converter) RunBatch(ctx context.Context, inputs []Input) []types.ConversionResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	results := make([]types.ConversionResult, len(inputs))
	for i, in := range inputs {
		c.logger.Info("processing video", "index", i+1, "total", len(inputs), "input", in.InputPath)
		results[i] = c.convert(ctx, in)
	}
	return results
}

// Convert runs a single job
func (c *Converter) Convert(ctx context.Context, in Input) types.ConversionResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.convert(ctx, in)
}

func (c *Converter) convert(ctx context.Context, in Input) types.ConversionResult {
	outputPath := OutputPath(in.InputPath, in.OutputDir, c.cfg.OutputSuffix, c.cfg.Encoder.ContainerFormat)

	info, err := c.prober.Probe(ctx, in.InputPath)
	if err != nil {
		var probeErr *ffmpeg.ProbeError
		if !errors.As(err, &probeErr) {
			err = &ffmpeg.ProbeError{Path: in.InputPath, Err: err}
		}
		c.logger.Error("cannot probe video", "input", in.InputPath, "error", err)
		return types.Failed(in.InputPath, err)
	}

	plan, err := planner.BuildPlan(info, c.cfg.TargetBox(), c.cfg.SizeBudget(), c.cfg.Encoder)
	if err != nil {
		var planErr *planner.PlanningError
		if errors.As(err, &planErr) {
			planErr.Path = in.InputPath
		}
		c.logger.Error("cannot plan conversion", "input", in.InputPath, "error", err)
		return types.Failed(in.InputPath, err)
	}

	if err := ensureOutputDir(outputPath); err != nil {
		encodeErr := &ffmpeg.EncodeError{Path: in.InputPath, Err: err}
		c.logger.Error("cannot create output directory", "output", outputPath, "error", err)
		return types.Failed(in.InputPath, encodeErr)
	}

	job := types.ConversionJob{
		ID:              uuid.NewString(),
		InputPath:       in.InputPath,
		OutputPath:      outputPath,
		Plan:            plan,
		DurationSeconds: info.DurationSeconds,
	}

	c.logger.Debug("planned conversion",
		"job", job.ID,
		"output", outputPath,
		"source", []int{info.Width, info.Height},
		"geometry", []int{plan.Geometry.Width, plan.Geometry.Height},
		"video_kbps", plan.VideoBitrateKbps,
		"duration", info.DurationSeconds,
	)

	return NewExecutor(job, c.encoder, c.sink, c.logger).Run(ctx)
}

func ensureOutputDir(outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "error creating output directory %s", dir)
	}
	return nil
}
