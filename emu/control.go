package emu

import (
	"sync"
	"sync/atomic"
)

// Control is the only emulator state shared with other goroutines.
// The UI posts requests here; the pacing loop consumes them once per
// frame, or while it is parked in the pause wait.
type Control struct {
	mu      sync.Mutex
	cond    *sync.Cond
	paused  bool
	stopped bool

	refresh bool
	reset   bool
	load    string
	hasLoad bool

	click     atomic.Bool
	sleepHack atomic.Int32
	fullSpeed atomic.Bool
}

// Requests is the set of pending requests taken in one go.
type Requests struct {
	Refresh bool
	Reset   bool
	Load    string
	HasLoad bool
}

// NewControl creates a running Control with a refresh pending so the
// first frame draws the whole screen.
func NewControl() *Control {
	c := &Control{refresh: true}
	c.cond = sync.NewCond(&c.mu)
	c.fullSpeed.Store(true)
	return c
}

// Pause parks the emulation goroutine at its next frame.
func (c *Control) Pause() {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
}

// Resume releases a paused emulation goroutine.
func (c *Control) Resume() {
	c.mu.Lock()
	c.paused = false
	c.refresh = true
	c.mu.Unlock()
	c.cond.Broadcast()
}

// TogglePause pauses a running machine or resumes a paused one.
func (c *Control) TogglePause() {
	if c.IsPaused() {
		c.Resume()
	} else {
		c.Pause()
	}
}

// IsPaused reports whether a pause is in effect.
func (c *Control) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Stop ends the emulation goroutine, waking it if it is paused.
func (c *Control) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	c.cond.Broadcast()
}

// ShouldRun reports whether Stop has not been called.
func (c *Control) ShouldRun() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.stopped
}

// RequestRefresh asks for a full redraw at the next frame.
func (c *Control) RequestRefresh() {
	c.mu.Lock()
	c.refresh = true
	c.mu.Unlock()
	c.cond.Broadcast()
}

// RequestReset asks for a machine reset at the next frame.
func (c *Control) RequestReset() {
	c.mu.Lock()
	c.reset = true
	c.mu.Unlock()
	c.cond.Broadcast()
}

// RequestLoad posts a snapshot locator. A later request replaces one
// that has not been taken yet.
func (c *Control) RequestLoad(locator string) {
	c.mu.Lock()
	c.load = locator
	c.hasLoad = true
	c.mu.Unlock()
	c.cond.Broadcast()
}

// Take returns and clears every pending request without blocking.
func (c *Control) Take() Requests {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.take()
}

func (c *Control) take() Requests {
	r := Requests{
		Refresh: c.refresh,
		Reset:   c.reset,
		Load:    c.load,
		HasLoad: c.hasLoad,
	}
	c.refresh = false
	c.reset = false
	c.load = ""
	c.hasLoad = false
	return r
}

// Wait blocks while paused until a request arrives, Resume is called or
// Stop is called. It returns the requests taken and whether the machine
// is still paused. A load request ends the pause, and a stop reports
// not paused so the caller can exit.
func (c *Control) Wait() (Requests, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.paused && !c.stopped && !c.pending() {
		c.cond.Wait()
	}
	r := c.take()
	if r.HasLoad {
		c.paused = false
	}
	return r, c.paused && !c.stopped
}

func (c *Control) pending() bool {
	return c.refresh || c.reset || c.hasLoad
}

// Click records a click on the status display.
func (c *Control) Click() {
	c.click.Store(true)
}

func (c *Control) takeClick() bool {
	return c.click.Swap(false)
}

// SetSleepHack sets the extra per-frame delay in milliseconds.
func (c *Control) SetSleepHack(ms int) {
	c.sleepHack.Store(int32(ms))
}

// SleepHack returns the extra per-frame delay in milliseconds.
func (c *Control) SleepHack() int {
	return int(c.sleepHack.Load())
}

// SetFullSpeed turns throttling off (true) or on (false).
func (c *Control) SetFullSpeed(on bool) {
	c.fullSpeed.Store(on)
}

// FullSpeed reports whether throttling is off.
func (c *Control) FullSpeed() bool {
	return c.fullSpeed.Load()
}
