package events

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusFanOut(t *testing.T) {
	bus := NewBus(4)
	first, cancelFirst := bus.Subscribe()
	defer cancelFirst()
	second, cancelSecond := bus.Subscribe()
	defer cancelSecond()

	bus.Publish(Started("job-1", "/videos/a.mp4"))
	bus.Publish(Progress("job-1", "/videos/a.mp4", 42.5))

	for _, ch := range []<-chan Event{first, second} {
		e := <-ch
		assert.Equal(t, KindStart, e.Kind)
		assert.Equal(t, "job-1", e.JobID)

		e = <-ch
		assert.Equal(t, KindProgress, e.Kind)
		assert.Equal(t, 42.5, e.Percent)
		assert.Equal(t, "/videos/a.mp4", e.InputPath)
	}
}

func TestBusDropsForFullSubscriber(t *testing.T) {
	bus := NewBus(1)
	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish(Progress("job-1", "a", 1))
	bus.Publish(Progress("job-1", "a", 2))

	e := <-ch
	assert.Equal(t, 1.0, e.Percent)
	assert.Len(t, ch, 0)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(1)
	ch, cancel := bus.Subscribe()
	require.Equal(t, 1, bus.Subscribers())

	cancel()
	cancel()

	assert.Equal(t, 0, bus.Subscribers())
	_, open := <-ch
	assert.False(t, open)

	// publishing after unsubscribe must not panic
	bus.Publish(Started("job-1", "a"))
}

func TestBusConcurrentPublish(t *testing.T) {
	bus := NewBus(100)
	ch, cancel := bus.Subscribe()
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				bus.Publish(Progress("job", "a", float64(j)))
			}
		}()
	}
	wg.Wait()

	assert.Len(t, ch, 100)
}

func TestSinkFunc(t *testing.T) {
	var got []Event
	sink := SinkFunc(func(e Event) { got = append(got, e) })

	sink.Publish(Started("job-1", "a"))
	Discard.Publish(Started("job-2", "b"))

	require.Len(t, got, 1)
	assert.Equal(t, "job-1", got[0].JobID)
}

func TestProgressJSONKeepsZeroPercent(t *testing.T) {
	data, err := json.Marshal(Progress("job-1", "/videos/a.mp4", 0))
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "conversion-progress", fields["kind"])
	assert.Equal(t, 0.0, fields["percent"])
	assert.Equal(t, "job-1", fields["jobId"])
}
