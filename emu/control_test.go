package emu

import (
	"testing"
	"time"
)

// TestControl_Requests tests posting and taking requests
func TestControl_Requests(t *testing.T) {
	c := NewControl()

	req := c.Take()
	if !req.Refresh {
		t.Error("new control: expected an initial refresh")
	}
	if req = c.Take(); req != (Requests{}) {
		t.Errorf("second Take: expected nothing pending, got %+v", req)
	}

	c.RequestLoad("first.sna")
	c.RequestLoad("second.z80")
	c.RequestReset()
	req = c.Take()
	if !req.HasLoad || req.Load != "second.z80" {
		t.Errorf("load: expected the latest locator, got %+v", req)
	}
	if !req.Reset {
		t.Error("reset: expected pending")
	}
	if req = c.Take(); req != (Requests{}) {
		t.Errorf("after Take: expected nothing pending, got %+v", req)
	}
}

// TestControl_PauseResume tests pause state transitions
func TestControl_PauseResume(t *testing.T) {
	c := NewControl()
	c.Take()

	if c.IsPaused() {
		t.Fatal("new control: expected running")
	}
	c.TogglePause()
	if !c.IsPaused() {
		t.Fatal("TogglePause: expected paused")
	}
	c.TogglePause()
	if c.IsPaused() {
		t.Fatal("TogglePause: expected running")
	}
	if req := c.Take(); !req.Refresh {
		t.Error("Resume: expected a refresh request")
	}

	if !c.ShouldRun() {
		t.Error("expected ShouldRun before Stop")
	}
	c.Stop()
	if c.ShouldRun() {
		t.Error("expected !ShouldRun after Stop")
	}
}

type waitResult struct {
	req    Requests
	paused bool
}

// waitAsync runs Wait on its own goroutine.
func waitAsync(c *Control) <-chan waitResult {
	ch := make(chan waitResult, 1)
	go func() {
		req, paused := c.Wait()
		ch <- waitResult{req, paused}
	}()
	return ch
}

// TestControl_WaitBlocksWhilePaused tests that Wait parks until woken
func TestControl_WaitBlocksWhilePaused(t *testing.T) {
	testCases := []struct {
		name       string
		wake       func(c *Control)
		stillPause bool
		check      func(t *testing.T, req Requests)
	}{
		{"resume", (*Control).Resume, false, func(t *testing.T, req Requests) {
			if !req.Refresh {
				t.Error("expected the resume refresh to be taken")
			}
		}},
		{"refresh", (*Control).RequestRefresh, true, func(t *testing.T, req Requests) {
			if !req.Refresh {
				t.Error("expected the refresh to be taken")
			}
		}},
		{"reset", (*Control).RequestReset, true, func(t *testing.T, req Requests) {
			if !req.Reset {
				t.Error("expected the reset to be taken")
			}
		}},
		{"load", func(c *Control) { c.RequestLoad("game.z80") }, false, func(t *testing.T, req Requests) {
			if !req.HasLoad || req.Load != "game.z80" {
				t.Errorf("expected the load to be taken, got %+v", req)
			}
		}},
		{"stop", (*Control).Stop, false, func(t *testing.T, req Requests) {}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewControl()
			c.Take()
			c.Pause()

			done := waitAsync(c)

			select {
			case <-done:
				t.Fatal("Wait returned while paused with nothing pending")
			case <-time.After(50 * time.Millisecond):
			}

			tc.wake(c)

			select {
			case res := <-done:
				if res.paused != tc.stillPause {
					t.Errorf("paused: expected %v, got %v", tc.stillPause, res.paused)
				}
				tc.check(t, res.req)
			case <-time.After(2 * time.Second):
				t.Fatal("Wait did not return")
			}

			if tc.name == "load" && c.IsPaused() {
				t.Error("load: expected the pause to end")
			}
		})
	}
}

// TestControl_WaitWithPending tests that Wait returns at once when a
// request is already queued
func TestControl_WaitWithPending(t *testing.T) {
	c := NewControl()
	c.Pause()

	req, paused := c.Wait()
	if !req.Refresh {
		t.Error("expected the initial refresh")
	}
	if !paused {
		t.Error("expected still paused")
	}
}

// TestControl_Flags tests the lock-free settings
func TestControl_Flags(t *testing.T) {
	c := NewControl()

	if !c.FullSpeed() {
		t.Error("new control: expected full speed")
	}
	c.SetFullSpeed(false)
	if c.FullSpeed() {
		t.Error("SetFullSpeed(false): expected throttled")
	}

	c.SetSleepHack(20)
	if got := c.SleepHack(); got != 20 {
		t.Errorf("SleepHack: expected 20, got %d", got)
	}

	if c.takeClick() {
		t.Error("expected no click pending")
	}
	c.Click()
	c.Click()
	if !c.takeClick() {
		t.Error("expected a click pending")
	}
	if c.takeClick() {
		t.Error("expected clicks to collapse into one")
	}
}
