package emu

import (
	"strconv"
	"time"
)

// Pacing constants, in frames unless noted.
const (
	flashFrames    = 25  // half a second at 50Hz
	speedFrames    = 100 // speed readout period
	throttleFrames = 4
	// Wall-clock time for speedFrames frames at full speed, in ms, times 100.
	speedCalibration = 200000.0
	throttleBudget   = 40 * time.Millisecond
	throttleTarget   = 50 * time.Millisecond
)

// Status text
const (
	fullSpeedText     = "Full Speed: "
	slowSpeedText     = "Slow Speed: "
	calculatingText   = "Speed: calculating"
	cancelSleepText   = "Click here at any time to cancel sleep"
	sleepCancelled    = "Sleep Cancelled"
	drawingBufferText = "Drawing Off-Screen Buffer"
	pausedText        = "Paused"
)

// speedPercent converts the wall-clock time taken by speedFrames frames
// into a percentage of real speed.
func speedPercent(elapsed time.Duration) int {
	ms := elapsed.Milliseconds()
	if ms <= 0 {
		return 0
	}
	return int(speedCalibration / float64(ms))
}

// pacerHooks are the machine operations the pacing loop triggers.
type pacerHooks struct {
	reset func()
	load  func(locator string)
}

// Pacer runs once per frame between the end of the frame and the CPU
// interrupt. It handles pause, pending requests, flash, the speed
// readout, periodic painting and throttling.
type Pacer struct {
	ctl      *Control
	renderer *Renderer
	keyboard *Keyboard
	progress Progress
	hooks    pacerHooks

	RefreshRate int
	ShowStats   bool

	counter     int
	lastFrame   time.Time
	lastSample  time.Time
	speedSample time.Time
	speed       int
	oldSpeed    int
	message     string

	now   func() time.Time
	sleep func(time.Duration)
}

func newPacer(ctl *Control, r *Renderer, kb *Keyboard, p Progress, hooks pacerHooks) *Pacer {
	if p == nil {
		p = nopProgress{}
	}
	return &Pacer{
		ctl:         ctl,
		renderer:    r,
		keyboard:    kb,
		progress:    p,
		hooks:       hooks,
		RefreshRate: 1,
		ShowStats:   true,
		oldSpeed:    -1,
		now:         time.Now,
		sleep:       time.Sleep,
	}
}

// Interrupt performs the per-frame work. It returns an error only when
// painting fails, which is fatal for the display.
func (p *Pacer) Interrupt() error {
	if p.ctl.IsPaused() {
		p.waitPaused()
	} else {
		p.serve(p.ctl.Take())
	}

	p.counter++

	if p.counter%flashFrames == 0 {
		p.renderer.ToggleFlash()
	}

	if p.counter%speedFrames == 0 {
		p.refreshSpeed(p.now())
	}

	rate := p.RefreshRate
	if rate < 1 {
		rate = 1
	}
	if p.counter%rate == 0 {
		if _, err := p.renderer.Paint(); err != nil {
			return err
		}
	}

	p.lastFrame = p.now()

	if p.counter%throttleFrames == 0 {
		dur := p.lastFrame.Sub(p.lastSample)
		p.lastSample = p.lastFrame
		if !p.ctl.FullSpeed() && dur < throttleBudget {
			p.sleep(throttleTarget - dur)
		}
	}

	if p.ctl.takeClick() {
		p.handleClick()
	}

	if ms := p.ctl.SleepHack(); ms > 0 {
		p.sleep(time.Duration(ms) * time.Millisecond)
	}

	p.keyboard.tick()
	return nil
}

// waitPaused parks until the machine is resumed, serving requests that
// arrive in the meantime.
func (p *Pacer) waitPaused() {
	p.showMessage(pausedText)
	for {
		req, paused := p.ctl.Wait()
		p.serve(req)
		if !paused {
			break
		}
	}
	if p.message == pausedText {
		p.showMessage("")
	}
}

func (p *Pacer) serve(req Requests) {
	if req.Refresh {
		p.renderer.InvalidateBorder()
		p.renderer.Composite()
	}
	if req.HasLoad && p.hooks.load != nil {
		p.hooks.load(req.Load)
	}
	if req.Reset && p.hooks.reset != nil {
		p.hooks.reset()
	}
}

// refreshSpeed recomputes the speed readout from the time taken since
// the previous sample.
func (p *Pacer) refreshSpeed(now time.Time) {
	if !p.speedSample.IsZero() {
		p.speed = speedPercent(now.Sub(p.speedSample))
	}
	p.speedSample = now

	if p.message != "" && p.ctl.SleepHack() > 0 && p.message != cancelSleepText {
		p.showMessage(cancelSleepText)
	} else {
		p.showMessage("")
	}
}

func (p *Pacer) handleClick() {
	if p.ctl.SleepHack() > 0 {
		p.ctl.SetSleepHack(0)
		p.showMessage(sleepCancelled)
		return
	}
	p.ctl.SetFullSpeed(!p.ctl.FullSpeed())
	p.showMessage(p.message)
}

// showMessage replaces the status text. An empty message shows the
// speed readout.
func (p *Pacer) showMessage(m string) {
	p.message = m
	p.oldSpeed = -1
	p.paintStats()
}

func (p *Pacer) paintStats() {
	if p.oldSpeed == p.speed {
		return
	}
	p.oldSpeed = p.speed
	if !p.ShowStats {
		return
	}
	p.progress.SetText(p.StatusText())
}

// StatusText returns the text the status display should show.
func (p *Pacer) StatusText() string {
	if p.message != "" {
		return p.message
	}

	var s string
	if p.speed > 0 {
		prefix := slowSpeedText
		if p.ctl.FullSpeed() {
			prefix = fullSpeedText
		}
		s = prefix + strconv.Itoa(p.speed) + "%"
	} else {
		s = calculatingText
	}
	if ms := p.ctl.SleepHack(); ms > 0 {
		s += ", Sleep: " + strconv.Itoa(ms)
	}
	return s
}

// Speed returns the last measured speed percentage (0 until measured).
func (p *Pacer) Speed() int {
	return p.speed
}

// invalidateStats makes the next status update repaint unconditionally.
func (p *Pacer) invalidateStats() {
	p.oldSpeed = -1
}
