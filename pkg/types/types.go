package types

import (
	"fmt"
	"strings"
)

// MediaInfo is the probed metadata of one input file
type MediaInfo struct {
	Width           int
	Height          int
	DurationSeconds float64
	SizeBytes       int64
}

// TargetBox bounds the output frame size
type TargetBox struct {
	MaxWidth  int
	MaxHeight int
}

// OutputGeometry is the encoded frame size. Both dimensions are even.
type OutputGeometry struct {
	Width  int
	Height int
}

// SizeBudget is the file size the bitrate is derived from
type SizeBudget struct {
	TargetBytes int64
}

// Directive is one ordered option handed to the encoder, e.g. {"c:v", "libx264"}
type Directive struct {
	Flag  string
	Value string
}

// Args renders the directive as command line arguments
func (d Directive) Args() []string {
	return []string{"-" + d.Flag, d.Value}
}

func (d Directive) String() string {
	return strings.Join(d.Args(), " ")
}

// EncoderProfile is the fixed part of an EncodePlan, taken from the target platform
type EncoderProfile struct {
	VideoCodec       string
	Preset           string
	AudioCodec       string
	AudioBitrateKbps int
	ContainerFormat  string
}

// EncodePlan holds every encoder parameter for one job
type EncodePlan struct {
	Geometry         OutputGeometry
	VideoCodec       string
	Preset           string
	VideoBitrateKbps int
	AudioCodec       string
	AudioBitrateKbps int
	ContainerFormat  string
}

// Directives returns the plan as the ordered directive list passed to the encoder:
// video codec, preset, video bitrate, audio codec, audio bitrate, scale filter.
func (p EncodePlan) Directives() []Directive {
	return []Directive{
		{Flag: "c:v", Value: p.VideoCodec},
		{Flag: "preset", Value: p.Preset},
		{Flag: "b:v", Value: fmt.Sprintf("%dk", p.VideoBitrateKbps)},
		{Flag: "c:a", Value: p.AudioCodec},
		{Flag: "b:a", Value: fmt.Sprintf("%dk", p.AudioBitrateKbps)},
		{Flag: "vf", Value: fmt.Sprintf("scale=%d:%d", p.Geometry.Width, p.Geometry.Height)},
	}
}

// ConversionJob is one unit of work for an executor
type ConversionJob struct {
	ID         string
	InputPath  string
	OutputPath string
	Plan       EncodePlan
	// DurationSeconds of the source, used for progress reporting
	DurationSeconds float64
}

// ConversionResult is either a success carrying OutputPath or a failure carrying Error
type ConversionResult struct {
	Success    bool   `json:"success"`
	InputPath  string `json:"inputPath"`
	OutputPath string `json:"outputPath,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Succeeded builds a successful result
func Succeeded(inputPath, outputPath string) ConversionResult {
	return ConversionResult{Success: true, InputPath: inputPath, OutputPath: outputPath}
}

// Failed builds a failed result from err
func Failed(inputPath string, err error) ConversionResult {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return ConversionResult{Success: false, InputPath: inputPath, Error: msg}
}
