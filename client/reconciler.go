package client

import (
	"sync"

	"github.com/CrowderSoup/teamboard/database"
)

// Region names one independently rendered view of the snapshot.
type Region string

const (
	RegionBoard      Region = "board"
	RegionCalendar   Region = "calendar"
	RegionSoundboard Region = "soundboard"
	RegionMessage    Region = "message"
)

// RenderFunc re-renders one view region from a snapshot.
type RenderFunc func(database.FullState)

// Reconciler applies incoming full-state snapshots to view regions
// without clobbering a view that has unflushed local intent. While a
// gesture (a drag, an open edit) holds a region, arriving snapshots are
// queued instead of rendered; ending the gesture applies the newest
// queued snapshot immediately. Only the latest snapshot matters — each
// one is complete, so intermediate ones can be discarded.
type Reconciler struct {
	mu        sync.Mutex
	latest    *database.FullState
	renderers map[Region]RenderFunc
	locked    map[Region]bool
	pending   map[Region]*database.FullState
}

func NewReconciler() *Reconciler {
	return &Reconciler{
		renderers: make(map[Region]RenderFunc),
		locked:    make(map[Region]bool),
		pending:   make(map[Region]*database.FullState),
	}
}

// SetRenderer registers the render hook for a region.
func (r *Reconciler) SetRenderer(region Region, render RenderFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderers[region] = render
}

// Apply reconciles a new authoritative snapshot: unlocked regions are
// re-rendered, locked ones keep their in-progress view and pick the
// snapshot up when the gesture ends.
func (r *Reconciler) Apply(state database.FullState) {
	r.mu.Lock()
	r.latest = &state

	var renders []func()
	for region, render := range r.renderers {
		if r.locked[region] {
			r.pending[region] = &state
			continue
		}
		render := render
		renders = append(renders, func() { render(state) })
	}
	r.mu.Unlock()

	for _, render := range renders {
		render()
	}
}

// BeginGesture suppresses re-rendering of a region while the user is
// mid-interaction there.
func (r *Reconciler) BeginGesture(region Region) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locked[region] = true
}

// EndGesture releases the region and immediately applies the newest
// snapshot that arrived during the gesture, if any.
func (r *Reconciler) EndGesture(region Region) {
	r.mu.Lock()
	delete(r.locked, region)
	state := r.pending[region]
	delete(r.pending, region)
	render := r.renderers[region]
	r.mu.Unlock()

	if state != nil && render != nil {
		render(*state)
	}
}

// Revert re-renders a region from the last known-good snapshot. Used
// after a failed optimistic mutation instead of computing the inverse
// edit.
func (r *Reconciler) Revert(region Region) {
	r.mu.Lock()
	state := r.latest
	render := r.renderers[region]
	locked := r.locked[region]
	r.mu.Unlock()

	if state != nil && render != nil && !locked {
		render(*state)
	}
}

// LastKnownGood returns the most recently applied snapshot, or nil
// before the first one arrives.
func (r *Reconciler) LastKnownGood() *database.FullState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest
}
