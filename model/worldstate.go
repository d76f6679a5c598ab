package model

import (
	"maps"
	"sync"
	"time"
)

// WorldState is the single shared snapshot of everything the bot has
// observed. The decision loop owns it; detectors, rules and actions hold a
// pointer to the same instance and never copy it.
//
// Writes happen on the loop goroutine (directly or through handlers and
// actions it calls). Probe goroutines that lost a race may still be reading
// while the loop writes, so signals and timestamps sit behind a RWMutex.
type WorldState struct {
	mu           sync.RWMutex
	signals      map[string]any
	lastProgress time.Time
	lastAuxScan  time.Time

	// Caps are handles to the device and template store. Read-only.
	Caps Capabilities
}

// NewWorldState creates an empty state. lastProgress starts at now so the
// staleness timer counts from startup rather than from the zero time.
func NewWorldState(caps Capabilities, now time.Time) *WorldState {
	return &WorldState{
		signals:      make(map[string]any),
		lastProgress: now,
		Caps:         caps,
	}
}

// Set records the latest observed value for a signal.
func (w *WorldState) Set(name string, v any) {
	w.mu.Lock()
	w.signals[name] = v
	w.mu.Unlock()
}

// Clear forgets a signal. Reads of a cleared signal behave like "not seen".
func (w *WorldState) Clear(names ...string) {
	w.mu.Lock()
	for _, n := range names {
		delete(w.signals, n)
	}
	w.mu.Unlock()
}

// Get returns the raw value of a signal.
func (w *WorldState) Get(name string) (any, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	v, ok := w.signals[name]
	return v, ok
}

// Bool reports whether a signal is currently on, by the rules of Truthy.
func (w *WorldState) Bool(name string) bool {
	v, ok := w.Get(name)
	return ok && Truthy(v)
}

// Position returns the screen position stored under a signal, if any.
func (w *WorldState) Position(name string) (Position, bool) {
	v, ok := w.Get(name)
	if !ok {
		return Position{}, false
	}
	p, ok := v.(Position)
	if !ok || !p.Found {
		return Position{}, false
	}
	return p, true
}

// Snapshot copies the signal map. Used for edge detection between ticks.
func (w *WorldState) Snapshot() map[string]any {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return maps.Clone(w.signals)
}

// MarkProgress records that a unit of work completed at now.
func (w *WorldState) MarkProgress(now time.Time) {
	w.mu.Lock()
	w.lastProgress = now
	w.mu.Unlock()
}

// LastProgress returns when progress was last confirmed.
func (w *WorldState) LastProgress() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastProgress
}

// ProgressAge is how long it has been since the last confirmed progress.
func (w *WorldState) ProgressAge(now time.Time) time.Duration {
	return now.Sub(w.LastProgress())
}

// MarkAuxScan records that the slow signal group was refreshed at now.
func (w *WorldState) MarkAuxScan(now time.Time) {
	w.mu.Lock()
	w.lastAuxScan = now
	w.mu.Unlock()
}

// AuxScanAge is the time since the slow group last ran. A state that never
// ran a slow scan reports a very large age so the first tick runs it.
func (w *WorldState) AuxScanAge(now time.Time) time.Duration {
	w.mu.RLock()
	last := w.lastAuxScan
	w.mu.RUnlock()
	if last.IsZero() {
		return time.Duration(1<<63 - 1)
	}
	return now.Sub(last)
}
