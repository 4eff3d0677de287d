package workspace

import (
	"sync"
	"time"
)

// debouncer runs one pending function per key after a quiet period. A new
// call for the same key replaces the pending one.
type debouncer struct {
	mu     sync.Mutex
	delay  time.Duration
	timers map[string]*time.Timer
	wg     sync.WaitGroup
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{delay: delay, timers: make(map[string]*time.Timer)}
}

func (d *debouncer) setDelay(delay time.Duration) {
	d.mu.Lock()
	d.delay = delay
	d.mu.Unlock()
}

// Debounce schedules fn for key, cancelling any pending call for it.
func (d *debouncer) Debounce(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked(key)
	d.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(d.delay, func() {
		defer d.wg.Done()
		d.mu.Lock()
		current := d.timers[key] == t
		if current {
			delete(d.timers, key)
		}
		d.mu.Unlock()
		if current {
			fn()
		}
	})
	d.timers[key] = t
}

// Cancel drops the pending call for key.
func (d *debouncer) Cancel(key string) {
	d.mu.Lock()
	d.stopLocked(key)
	d.mu.Unlock()
}

func (d *debouncer) stopLocked(key string) {
	t, ok := d.timers[key]
	if !ok {
		return
	}
	delete(d.timers, key)
	if t.Stop() {
		d.wg.Done()
	}
}

// Stop cancels every pending call and waits for running ones.
func (d *debouncer) Stop() {
	d.mu.Lock()
	for key := range d.timers {
		d.stopLocked(key)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
