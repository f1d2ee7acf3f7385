package processor

import (
	"context"
	"sync"

	"github.com/ZacxDev/video-compressor/internal/events"
	"github.com/ZacxDev/video-compressor/internal/ffmpeg"
	"github.com/ZacxDev/video-compressor/pkg/types"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

var (
	// ErrExecutorUsed is returned when Run is called on an executor a second time.
	ErrExecutorUsed = errors.New("executor already used")

	errNoTerminalSignal = errors.New("encoder stopped without reporting completion")
	errUnknownEncoder   = errors.New("unknown encoder error")
)

// State is a step of an executor's lifecycle
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether no further transitions are possible
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Encoder is the external encode capability
type Encoder interface {
	Encode(ctx context.Context, req ffmpeg.EncodeRequest) <-chan ffmpeg.Signal
}

// transition returns the state reached from s when sig arrives. Idle and
// terminal states ignore signals; stderr and start signals never move the
// machine.
func transition(s State, sig ffmpeg.Signal) State {
	if s == StateIdle || s.Terminal() {
		return s
	}

	switch sig.(type) {
	case ffmpeg.SignalStart, ffmpeg.SignalStderr:
		return s
	case ffmpeg.SignalProgress:
		return StateRunning
	case ffmpeg.SignalEnd:
		return StateCompleted
	case ffmpeg.SignalError:
		return StateFailed
	}
	return s
}

// Executor drives one encode from submission to a terminal state. It is
// single use.
type Executor struct {
	job     types.ConversionJob
	encoder Encoder
	sink    events.Sink
	logger  hclog.Logger

	mu    sync.Mutex
	state State
}

// NewExecutor creates an idle executor for job
func NewExecutor(job types.ConversionJob, encoder Encoder, sink events.Sink, logger hclog.Logger) *Executor {
	if sink == nil {
		sink = events.Discard
	}
	return &Executor{
		job:     job,
		encoder: encoder,
		sink:    sink,
		logger:  logger.With("job", job.ID, "input", job.InputPath),
	}
}

// State returns the current lifecycle state
func (e *Executor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Executor) setState(next State) {
	e.mu.Lock()
	prev := e.state
	e.state = next
	e.mu.Unlock()

	if prev != next {
		e.logger.Debug("state changed", "from", prev, "to", next)
	}
}

// Run submits the job to the encoder and blocks until ffmpeg finishes.
// Start and progress events are published to the sink as they happen.
func (e *Executor) Run(ctx context.Context) types.ConversionResult {
	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return types.Failed(e.job.InputPath, &ffmpeg.EncodeError{Path: e.job.InputPath, Err: ErrExecutorUsed})
	}
	e.state = StateStarting
	e.mu.Unlock()

	e.logger.Debug("state changed", "from", StateIdle, "to", StateStarting)
	e.sink.Publish(events.Started(e.job.ID, e.job.InputPath))

	signals := e.encoder.Encode(ctx, ffmpeg.EncodeRequest{
		InputPath:       e.job.InputPath,
		OutputPath:      e.job.OutputPath,
		Directives:      e.job.Plan.Directives(),
		Format:          e.job.Plan.ContainerFormat,
		DurationSeconds: e.job.DurationSeconds,
	})

	var failure error
	for sig := range signals {
		current := e.State()
		if current.Terminal() {
			continue
		}

		switch s := sig.(type) {
		case ffmpeg.SignalStart:
			e.logger.Debug("encoder started", "command", s.CommandLine)
		case ffmpeg.SignalStderr:
			e.logger.Trace(s.Line)
		case ffmpeg.SignalProgress:
			e.sink.Publish(events.Progress(e.job.ID, e.job.InputPath, s.Percent))
		case ffmpeg.SignalError:
			failure = s.Err
		}

		next := transition(current, sig)
		if current == StateStarting && next == StateCompleted {
			e.setState(StateRunning)
		}
		e.setState(next)
	}

	switch e.State() {
	case StateCompleted:
		e.logger.Info("conversion completed", "output", e.job.OutputPath)
		return types.Succeeded(e.job.InputPath, e.job.OutputPath)
	case StateFailed:
		if failure == nil {
			failure = errUnknownEncoder
		}
	default:
		failure = errNoTerminalSignal
		e.setState(StateFailed)
	}

	err := &ffmpeg.EncodeError{Path: e.job.InputPath, Err: failure}
	e.logger.Error("conversion failed", "error", err)
	return types.Failed(e.job.InputPath, err)
}
