package processor

import (
	"context"
	"sync"
	"time"

	"github.com/ZacxDev/video-compressor/internal/events"
	"github.com/ZacxDev/video-compressor/internal/ffmpeg"
	"github.com/ZacxDev/video-compressor/pkg/types"
	"github.com/pkg/errors"
)

type fakeProber struct {
	infos map[string]types.MediaInfo
	errs  map[string]error
}

func (p *fakeProber) Probe(_ context.Context, path string) (types.MediaInfo, error) {
	if err, ok := p.errs[path]; ok {
		return types.MediaInfo{}, err
	}
	if info, ok := p.infos[path]; ok {
		return info, nil
	}
	return types.MediaInfo{}, &ffmpeg.ProbeError{Path: path, Err: errors.New("no such file")}
}

// fakeEncoder replays scripted signals per input path and records requests.
type fakeEncoder struct {
	mu       sync.Mutex
	scripts  map[string][]ffmpeg.Signal
	requests []ffmpeg.EncodeRequest
	delay    time.Duration
	inFlight int
	maxSeen  int
}

func successScript(percents ...float64) []ffmpeg.Signal {
	signals := []ffmpeg.Signal{ffmpeg.SignalStart{CommandLine: "ffmpeg -i in"}}
	for _, p := range percents {
		signals = append(signals, ffmpeg.SignalProgress{Percent: p})
	}
	return append(signals, ffmpeg.SignalEnd{})
}

func (e *fakeEncoder) Encode(_ context.Context, req ffmpeg.EncodeRequest) <-chan ffmpeg.Signal {
	e.mu.Lock()
	e.requests = append(e.requests, req)
	e.inFlight++
	if e.inFlight > e.maxSeen {
		e.maxSeen = e.inFlight
	}
	script, ok := e.scripts[req.InputPath]
	if !ok {
		script = successScript(50, 100)
	}
	e.mu.Unlock()

	ch := make(chan ffmpeg.Signal)
	go func() {
		defer close(ch)
		time.Sleep(e.delay)
		for _, s := range script {
			ch <- s
		}
		e.mu.Lock()
		e.inFlight--
		e.mu.Unlock()
	}()
	return ch
}

func (e *fakeEncoder) inputs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	paths := make([]string, len(e.requests))
	for i, r := range e.requests {
		paths[i] = r.InputPath
	}
	return paths
}

type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *recordingSink) Publish(e events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) all() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.Event(nil), s.events...)
}
