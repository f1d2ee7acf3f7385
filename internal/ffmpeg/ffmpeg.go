package ffmpeg

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/ZacxDev/video-compressor/pkg/types"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

const (
	stderrTailLines = 5
	signalBuffer    = 64
)

// EncodeRequest is everything ffmpeg needs for one conversion
type EncodeRequest struct {
	InputPath  string
	OutputPath string
	Directives []types.Directive
	Format     string
	// DurationSeconds of the input, used to turn out_time into a percentage
	DurationSeconds float64
}

// Signal is a lifecycle notification from a running encode. The concrete
// types are SignalStart, SignalProgress, SignalStderr, SignalEnd and SignalError.
type Signal interface {
	isSignal()
}

// SignalStart is sent once the ffmpeg process has been spawned
type SignalStart struct {
	CommandLine string
}

// SignalProgress carries the encoded share of the input duration
type SignalProgress struct {
	Percent float64
}

// SignalStderr carries one line of ffmpeg diagnostics
type SignalStderr struct {
	Line string
}

// SignalEnd is sent when ffmpeg exits cleanly
type SignalEnd struct{}

// SignalError is sent when ffmpeg cannot start or exits with an error
type SignalError struct {
	Err error
}

func (SignalStart) isSignal()    {}
func (SignalProgress) isSignal() {}
func (SignalStderr) isSignal()   {}
func (SignalEnd) isSignal()      {}
func (SignalError) isSignal()    {}

// Processor wraps FFmpeg functionality
type Processor struct {
	logger  hclog.Logger
	verbose bool
}

// NewProcessor creates a new FFmpeg processor. A trace-level logger makes
// ffmpeg run with -loglevel verbose.
func NewProcessor(logger hclog.Logger) *Processor {
	// commands are logged through hclog instead
	ffmpeg.LogCompiledCommand = false

	return &Processor{
		logger:  logger.Named("ffmpeg"),
		verbose: logger.IsTrace(),
	}
}

// BuildStream assembles the ffmpeg invocation for req without its
// directives. Progress blocks go to stdout and the output file is always
// overwritten.
func BuildStream(req EncodeRequest, verbose bool) *ffmpeg.Stream {
	outputKwargs := ffmpeg.KwArgs{}
	if req.Format != "" {
		outputKwargs["f"] = req.Format
	}

	globalArgs := []string{"-hide_banner", "-nostats", "-progress", "pipe:1"}
	if verbose {
		globalArgs = append(globalArgs, "-loglevel", "verbose")
	}

	return ffmpeg.Input(req.InputPath).
		Output(req.OutputPath, outputKwargs).
		GlobalArgs(globalArgs...).
		OverWriteOutput()
}

// BuildArgs returns the full ffmpeg argument list for req. Directives follow
// the input in plan order; ffmpeg-go would sort them as KwArgs.
func BuildArgs(req EncodeRequest, verbose bool) []string {
	return withDirectives(BuildStream(req, verbose).GetArgs(), req.Directives)
}

func withDirectives(args []string, directives []types.Directive) []string {
	at := 0
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "-i" {
			at = i + 2
			break
		}
	}

	out := make([]string, 0, len(args)+2*len(directives))
	out = append(out, args[:at]...)
	for _, d := range directives {
		out = append(out, d.Args()...)
	}
	return append(out, args[at:]...)
}

// Encode starts ffmpeg for req and returns its lifecycle signals. The channel
// ends with exactly one SignalEnd or SignalError and is then closed.
// Cancelling ctx kills the process.
func (p *Processor) Encode(ctx context.Context, req EncodeRequest) <-chan Signal {
	signals := make(chan Signal, signalBuffer)
	go func() {
		defer close(signals)
		p.run(ctx, req, signals)
	}()
	return signals
}

func (p *Processor) run(ctx context.Context, req EncodeRequest, signals chan<- Signal) {
	progressR, progressW := io.Pipe()
	stderrR, stderrW := io.Pipe()

	cmd := BuildStream(req, p.verbose).WithOutput(progressW, stderrW).Compile()
	cmd.Args = append([]string{cmd.Args[0]}, withDirectives(cmd.Args[1:], req.Directives)...)
	if err := cmd.Start(); err != nil {
		progressW.Close()
		stderrW.Close()
		signals <- SignalError{Err: errors.Wrap(err, "failed to start ffmpeg")}
		return
	}

	commandLine := strings.Join(cmd.Args, " ")
	p.logger.Debug("ffmpeg started", "pid", cmd.Process.Pid, "command", commandLine)
	signals <- SignalStart{CommandLine: commandLine}

	stderrTail := newTail(stderrTailLines)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		err := ParseProgress(progressR, req.DurationSeconds, func(percent float64) {
			signals <- SignalProgress{Percent: percent}
		})
		if err != nil {
			p.logger.Warn("failed to read ffmpeg progress", "error", err)
		}
		_, _ = io.Copy(io.Discard, progressR)
	}()

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderrR)
		for scanner.Scan() {
			line := scanner.Text()
			stderrTail.add(line)
			signals <- SignalStderr{Line: line}
		}
		_, _ = io.Copy(io.Discard, stderrR)
	}()

	exited := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			p.logger.Warn("killing ffmpeg", "pid", cmd.Process.Pid, "reason", ctx.Err())
			_ = cmd.Process.Kill()
		case <-exited:
		}
	}()

	waitErr := cmd.Wait()
	close(exited)
	progressW.Close()
	stderrW.Close()
	wg.Wait()

	if waitErr != nil {
		if ctx.Err() != nil {
			waitErr = errors.Wrap(ctx.Err(), waitErr.Error())
		}
		if diag := stderrTail.String(); diag != "" {
			signals <- SignalError{Err: errors.Wrapf(waitErr, "ffmpeg: %s", diag)}
			return
		}
		signals <- SignalError{Err: errors.Wrap(waitErr, "ffmpeg")}
		return
	}

	signals <- SignalEnd{}
}
