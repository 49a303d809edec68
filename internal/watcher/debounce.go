package watcher

import (
	"sync"
	"time"
)

// debouncer coalesces raw filesystem events per path: events for the same
// path arriving within the window collapse into one ChangeEvent carrying
// the last observed kind. A Create followed by a Delete inside the window
// is a net no-op and emits nothing. A rename candidate (the old path of a
// rename) correlates with the next Create in the window into a single
// Renamed event.
type debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	pending map[string]*pendingChange
	out     chan ChangeEvent

	renameFrom string
	renameRoot string
	renameAt   time.Time
}

type pendingChange struct {
	event   ChangeEvent
	touched time.Time
	created bool // the first event in this window was a Create
}

func newDebouncer(window time.Duration) *debouncer {
	return &debouncer{
		window:  window,
		pending: make(map[string]*pendingChange),
		out:     make(chan ChangeEvent, 64),
	}
}

func (d *debouncer) setWindow(window time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.window = window
}

// observe feeds one raw event into the window. It schedules a flush for
// the path; the flush only fires once the path has been quiet for a full
// window.
func (d *debouncer) observe(ev ChangeEvent) {
	d.mu.Lock()

	now := time.Now()

	if ev.Kind == ChangeRenamedFrom {
		// The old half of a rename. Hold it for correlation; if nothing
		// claims it the flush degrades it to a plain delete.
		d.renameFrom = ev.Path
		d.renameRoot = ev.Root
		d.renameAt = now
		ev.Kind = ChangeDeleted
	} else if ev.Kind == ChangeCreated && d.renameFrom != "" && now.Sub(d.renameAt) <= d.window {
		old := d.renameFrom
		d.renameFrom = ""
		delete(d.pending, old)
		ev.Kind = ChangeRenamed
		ev.OldPath = old
	}

	p, exists := d.pending[ev.Path]
	if exists {
		if p.created && ev.Kind == ChangeDeleted {
			// Created and deleted inside one window: nothing happened.
			delete(d.pending, ev.Path)
			d.mu.Unlock()
			return
		}
		p.event.Kind = ev.Kind
		p.event.OldPath = ev.OldPath
		p.event.Timestamp = ev.Timestamp
		p.touched = now
	} else {
		d.pending[ev.Path] = &pendingChange{
			event:   ev,
			touched: now,
			created: ev.Kind == ChangeCreated,
		}
	}

	window := d.window
	d.mu.Unlock()

	path := ev.Path
	time.AfterFunc(window, func() { d.flush(path) })
}

// flush emits the pending event for a path if it has been quiet for a
// full window; otherwise a later AfterFunc owns it.
func (d *debouncer) flush(path string) {
	d.mu.Lock()
	p, ok := d.pending[path]
	if !ok || time.Since(p.touched) < d.window {
		d.mu.Unlock()
		return
	}
	delete(d.pending, path)
	if d.renameFrom == path {
		d.renameFrom = ""
	}
	ev := p.event
	d.mu.Unlock()

	select {
	case d.out <- ev:
	default:
		// Consumer stalled past the buffer; drop rather than block the
		// timer goroutine. Callers tolerate missed events per contract.
	}
}
