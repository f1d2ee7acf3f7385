package config

import (
	"os"
	"time"

	"github.com/ZacxDev/video-compressor/internal/platform"
	"github.com/ZacxDev/video-compressor/pkg/types"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ConverterOptions defines options for converting a list of videos
type ConverterOptions struct {
	InputPaths     []string
	OutputDir      string
	TargetPlatform string
	ConfigPath     string
	Verbose        bool
}

// WatchConfig configures the drop folder watcher
type WatchConfig struct {
	SettleDelay time.Duration `yaml:"settle_delay"`
}

// Config is the runtime configuration, optionally read from a YAML file
type Config struct {
	Platform     string        `yaml:"platform"`
	MaxWidth     int           `yaml:"max_width"`
	MaxHeight    int           `yaml:"max_height"`
	MaxFileSize  int64         `yaml:"max_file_size"`
	OutputSuffix string        `yaml:"output_suffix"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	LogLevel     string        `yaml:"log_level"`
	ListenAddr   string        `yaml:"listen_addr"`
	Watch        WatchConfig   `yaml:"watch"`

	// Encoder comes from the platform profile only
	Encoder types.EncoderProfile `yaml:"-"`
}

const (
	DefaultPlatform = "whatsapp"

	// Video bitrate bounds (kbps)
	MinVideoBitrateKbps = 300
	MaxVideoBitrateKbps = 6000

	// Substituted when the probed duration is missing or invalid
	FallbackDurationSeconds = 1.0

	DefaultProbeTimeout = 30 * time.Second
	DefaultSettleDelay  = 2 * time.Second
	DefaultListenAddr   = "127.0.0.1:8089"
	DefaultLogLevel     = "info"
)

// Default returns the configuration for the default platform
func Default() *Config {
	cfg := &Config{
		Platform:     DefaultPlatform,
		ProbeTimeout: DefaultProbeTimeout,
		LogLevel:     DefaultLogLevel,
		ListenAddr:   DefaultListenAddr,
		Watch:        WatchConfig{SettleDelay: DefaultSettleDelay},
	}
	// the default platform is always registered
	_ = cfg.ApplyPlatform(DefaultPlatform)
	return cfg
}

// Load reads a YAML config file over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config %s", path)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config %s", path)
	}

	if file.Platform != "" {
		if err := cfg.ApplyPlatform(file.Platform); err != nil {
			return nil, err
		}
	}
	cfg.merge(&file)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyPlatform replaces the box, budget, suffix and encoder settings with the
// named platform's profile
func (c *Config) ApplyPlatform(name string) error {
	plat, err := platform.Get(name)
	if err != nil {
		return errors.WithStack(err)
	}
	c.Platform = plat.GetName()
	c.MaxWidth, c.MaxHeight = plat.GetMaxDimensions()
	c.MaxFileSize = plat.GetMaxFileSize()
	c.OutputSuffix = plat.GetOutputSuffix()
	c.Encoder = types.EncoderProfile{
		VideoCodec:       plat.GetVideoCodec(),
		Preset:           plat.GetVideoPreset(),
		AudioCodec:       plat.GetAudioCodec(),
		AudioBitrateKbps: plat.GetAudioBitrateKbps(),
		ContainerFormat:  plat.GetOutputFormat(),
	}
	return nil
}

func (c *Config) merge(o *Config) {
	if o.MaxWidth != 0 {
		c.MaxWidth = o.MaxWidth
	}
	if o.MaxHeight != 0 {
		c.MaxHeight = o.MaxHeight
	}
	if o.MaxFileSize != 0 {
		c.MaxFileSize = o.MaxFileSize
	}
	if o.OutputSuffix != "" {
		c.OutputSuffix = o.OutputSuffix
	}
	if o.ProbeTimeout != 0 {
		c.ProbeTimeout = o.ProbeTimeout
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	if o.ListenAddr != "" {
		c.ListenAddr = o.ListenAddr
	}
	if o.Watch.SettleDelay != 0 {
		c.Watch.SettleDelay = o.Watch.SettleDelay
	}
}

// Validate rejects values the planners cannot work with
func (c *Config) Validate() error {
	if c.MaxWidth <= 0 || c.MaxHeight <= 0 {
		return errors.Errorf("invalid target box %dx%d", c.MaxWidth, c.MaxHeight)
	}
	if c.MaxFileSize <= 0 {
		return errors.Errorf("invalid max file size %d", c.MaxFileSize)
	}
	if c.Encoder.VideoCodec == "" || c.Encoder.AudioCodec == "" || c.Encoder.ContainerFormat == "" {
		return errors.Errorf("invalid encoder profile for platform %s", c.Platform)
	}
	if c.ProbeTimeout < 0 {
		return errors.Errorf("invalid probe timeout %s", c.ProbeTimeout)
	}
	return nil
}

// TargetBox returns the configured bounding box
func (c *Config) TargetBox() types.TargetBox {
	return types.TargetBox{MaxWidth: c.MaxWidth, MaxHeight: c.MaxHeight}
}

// SizeBudget returns the configured size budget
func (c *Config) SizeBudget() types.SizeBudget {
	return types.SizeBudget{TargetBytes: c.MaxFileSize}
}
