// Package videoprocessor assembles the converter from configuration and is
// the entry point used by the command line.
package videoprocessor

import (
	"context"
	"os"
	"strings"

	"github.com/ZacxDev/video-compressor/internal/config"
	"github.com/ZacxDev/video-compressor/internal/events"
	"github.com/ZacxDev/video-compressor/internal/ffmpeg"
	"github.com/ZacxDev/video-compressor/internal/platform"
	"github.com/ZacxDev/video-compressor/internal/processor"
	"github.com/ZacxDev/video-compressor/pkg/types"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

// Buffered events per progress subscriber
const eventBuffer = 64

// Service bundles a converter with the event bus its executors publish to
type Service struct {
	Config    *config.Config
	Logger    hclog.Logger
	Bus       *events.Bus
	Converter *processor.Converter
}

// NewLogger returns the root logger. Verbose raises the level to trace so
// ffmpeg's stderr is echoed.
func NewLogger(level string, verbose bool) hclog.Logger {
	lvl := hclog.LevelFromString(level)
	if lvl == hclog.NoLevel {
		lvl = hclog.Info
	}
	if verbose {
		lvl = hclog.Trace
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   "video-compressor",
		Level:  lvl,
		Output: os.Stderr,
	})
}

// LoadConfig reads the config file named in opts and applies the target
// platform when it differs from the file's.
func LoadConfig(opts *config.ConverterOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.TargetPlatform != "" && opts.TargetPlatform != cfg.Platform {
		if err := cfg.ApplyPlatform(opts.TargetPlatform); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// New wires ffprobe, ffmpeg and the event bus into a converter
func New(cfg *config.Config, logger hclog.Logger) *Service {
	bus := events.NewBus(eventBuffer)
	prober := ffmpeg.NewProber(cfg.ProbeTimeout, logger)
	encoder := ffmpeg.NewProcessor(logger)

	return &Service{
		Config:    cfg,
		Logger:    logger,
		Bus:       bus,
		Converter: processor.NewConverter(cfg, prober, encoder, bus, logger),
	}
}

// ConvertVideos converts every input in opts into opts.OutputDir. Directory
// inputs expand to the videos they contain. The error covers setup only;
// per-file failures are reported in the results.
func ConvertVideos(ctx context.Context, opts *config.ConverterOptions, logger hclog.Logger) ([]types.ConversionResult, error) {
	if len(opts.InputPaths) == 0 {
		return nil, errors.New("no input videos provided")
	}
	if opts.OutputDir == "" {
		return nil, errors.New("output directory is required")
	}

	cfg, err := LoadConfig(opts)
	if err != nil {
		return nil, err
	}

	paths, err := processor.ExpandInputs(opts.InputPaths)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errors.Errorf("no video files found in %s", strings.Join(opts.InputPaths, ", "))
	}

	inputs := make([]processor.Input, len(paths))
	for i, p := range paths {
		inputs[i] = processor.Input{InputPath: p, OutputDir: opts.OutputDir}
	}

	svc := New(cfg, logger)
	return svc.Converter.RunBatch(ctx, inputs), nil
}

// GetSupportedPlatforms returns the registered target platforms
func GetSupportedPlatforms() []string {
	return platform.GetSupportedPlatforms()
}
