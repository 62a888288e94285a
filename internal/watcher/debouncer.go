package watcher

import (
	"sync"
	"time"
)

// Debouncer groups rapid file changes together. Within one quiet period
// only the last event per path survives, and paths are released in the
// order they first arrived.
type Debouncer struct {
	delay   time.Duration
	output  func(...ChangeEvent)
	timer   *time.Timer
	order   []string
	pending map[string]ChangeEvent
	mutex   sync.Mutex
}

// NewDebouncer creates a debouncer that hands coalesced batches to output.
func NewDebouncer(delay time.Duration, output func(...ChangeEvent)) *Debouncer {
	return &Debouncer{
		delay:   delay,
		output:  output,
		pending: make(map[string]ChangeEvent),
	}
}

// Add records event and restarts the quiet period.
func (d *Debouncer) Add(event ChangeEvent) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if _, ok := d.pending[event.Path]; !ok {
		d.order = append(d.order, event.Path)
	}
	d.pending[event.Path] = event

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.Flush)
}

// Flush releases pending events immediately.
func (d *Debouncer) Flush() {
	d.mutex.Lock()
	if len(d.order) == 0 {
		d.mutex.Unlock()
		return
	}
	events := make([]ChangeEvent, 0, len(d.order))
	for _, path := range d.order {
		events = append(events, d.pending[path])
	}
	d.order = d.order[:0]
	d.pending = make(map[string]ChangeEvent)
	d.mutex.Unlock()

	d.output(events...)
}

// Stop cancels the pending timer without releasing events.
func (d *Debouncer) Stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}
