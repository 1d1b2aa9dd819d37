package daemon

import (
	"sync"
	"time"
)

// activity tracks traffic for idle suspension.
type activity struct {
	mu         sync.Mutex
	now        func() time.Time
	lastActive time.Time
	inFlight   int
	channels   int
	dispatched uint64
}

func newActivity(now func() time.Time) *activity {
	return &activity{now: now, lastActive: now()}
}

func (a *activity) begin() {
	a.mu.Lock()
	a.inFlight++
	a.dispatched++
	a.lastActive = a.now()
	a.mu.Unlock()
}

func (a *activity) end() {
	a.mu.Lock()
	if a.inFlight > 0 {
		a.inFlight--
	}
	a.lastActive = a.now()
	a.mu.Unlock()
}

func (a *activity) open() {
	a.mu.Lock()
	a.channels++
	a.lastActive = a.now()
	a.mu.Unlock()
}

func (a *activity) close() {
	a.mu.Lock()
	if a.channels > 0 {
		a.channels--
	}
	a.lastActive = a.now()
	a.mu.Unlock()
}

type activitySnapshot struct {
	InFlight   int
	Channels   int
	Dispatched uint64
	IdleFor    time.Duration
}

func (a *activity) snapshot() activitySnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	snap := activitySnapshot{
		InFlight:   a.inFlight,
		Channels:   a.channels,
		Dispatched: a.dispatched,
	}
	if a.inFlight == 0 && a.channels == 0 {
		snap.IdleFor = a.now().Sub(a.lastActive)
	}
	return snap
}
