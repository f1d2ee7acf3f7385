// Package events carries conversion progress from the executor to any number
// of observers. Every event names the job it belongs to.
package events

import (
	"sync"
	"time"
)

// Kind identifies an event on the progress channel
type Kind string

const (
	KindStart    Kind = "conversion-start"
	KindProgress Kind = "conversion-progress"
)

// Event is one progress notification. Percent is only meaningful for
// KindProgress and may exceed 100; observers clamp for display.
type Event struct {
	JobID     string    `json:"jobId"`
	Kind      Kind      `json:"kind"`
	InputPath string    `json:"inputPath"`
	Percent   float64   `json:"percent"`
	Time      time.Time `json:"time"`
}

// Started builds a KindStart event
func Started(jobID, inputPath string) Event {
	return Event{JobID: jobID, Kind: KindStart, InputPath: inputPath, Time: time.Now()}
}

// Progress builds a KindProgress event
func Progress(jobID, inputPath string, percent float64) Event {
	return Event{JobID: jobID, Kind: KindProgress, InputPath: inputPath, Percent: percent, Time: time.Now()}
}

// Sink receives events
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(Event)

func (f SinkFunc) Publish(e Event) { f(e) }

// Discard drops every event
var Discard Sink = SinkFunc(func(Event) {})

// Bus fans events out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	buffer int
}

// NewBus creates a bus whose subscribers buffer up to buffer events
func NewBus(buffer int) *Bus {
	return &Bus{
		subs:   make(map[int]chan Event),
		buffer: buffer,
	}
}

// Subscribe returns a channel of future events and a function that ends the
// subscription and closes the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.buffer)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

// Publish delivers e to every subscriber with room for it
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribers returns the number of active subscriptions
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
