package platform

import (
	"fmt"
	"sort"
)

// Platform defines the delivery constraints of a messaging platform
type Platform interface {
	// GetName returns the platform name
	GetName() string

	// GetMaxDimensions returns the bounding box the output must fit in
	GetMaxDimensions() (width, height int)

	// GetMaxFileSize returns the size budget in bytes
	GetMaxFileSize() int64

	// GetOutputSuffix returns the suffix appended to output base names
	GetOutputSuffix() string

	// GetVideoCodec returns the ffmpeg video encoder
	GetVideoCodec() string

	// GetVideoPreset returns the encoder speed preset
	GetVideoPreset() string

	// GetAudioCodec returns the ffmpeg audio encoder
	GetAudioCodec() string

	// GetAudioBitrateKbps returns the fixed audio bitrate
	GetAudioBitrateKbps() int

	// GetOutputFormat returns the output container (e.g., "mp4")
	GetOutputFormat() string
}

var platforms = make(map[string]Platform)

// Register adds a platform to the registry
func Register(p Platform) {
	platforms[p.GetName()] = p
}

// Get returns a platform by name
func Get(name string) (Platform, error) {
	p, ok := platforms[name]
	if !ok {
		return nil, fmt.Errorf("unsupported platform: %s", name)
	}
	return p, nil
}

// GetSupportedPlatforms returns a sorted list of supported platform names
func GetSupportedPlatforms() []string {
	names := make([]string, 0, len(platforms))
	for name := range platforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
