package ffmpeg

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNoVideoStream is returned when a file has no video stream to convert.
var ErrNoVideoStream = errors.New("no video stream found")

// ProbeError reports a file that could not be inspected.
type ProbeError struct {
	Path string
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("Probe failed for %s: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// EncodeError reports an ffmpeg run that did not complete.
type EncodeError struct {
	Path string
	Err  error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("Conversion failed for %s: %v", e.Path, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }
