package watcher

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type batchSink struct {
	mutex   sync.Mutex
	batches [][]ChangeEvent
}

func (s *batchSink) push(events ...ChangeEvent) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.batches = append(s.batches, events)
}

func (s *batchSink) count() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.batches)
}

func TestDebouncerCoalesces(t *testing.T) {
	sink := &batchSink{}
	d := NewDebouncer(time.Hour, sink.push)

	d.Add(ChangeEvent{Type: EventTypeAdd, Path: "/b.css"})
	d.Add(ChangeEvent{Type: EventTypeChange, Path: "/a.html"})
	d.Add(ChangeEvent{Type: EventTypeChange, Path: "/b.css"})
	d.Add(ChangeEvent{Type: EventTypeUnlink, Path: "/a.html"})
	d.Flush()
	d.Stop()

	require.Equal(t, 1, sink.count())
	assert.Equal(t, []ChangeEvent{
		{Type: EventTypeChange, Path: "/b.css"},
		{Type: EventTypeUnlink, Path: "/a.html"},
	}, sink.batches[0])
}

func TestDebouncerFiresAfterQuietPeriod(t *testing.T) {
	sink := &batchSink{}
	d := NewDebouncer(20*time.Millisecond, sink.push)
	defer d.Stop()

	for i := 0; i < 5; i++ {
		d.Add(ChangeEvent{Type: EventTypeChange, Path: "/main.css"})
	}

	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, sink.batches[0], 1)
}

func TestDebouncerFlushEmpty(t *testing.T) {
	sink := &batchSink{}
	NewDebouncer(time.Millisecond, sink.push).Flush()
	assert.Zero(t, sink.count())
}
