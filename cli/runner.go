//go:build !libretro

// Package cli provides a command-line runner for the emulator.
// It runs the machine on its own goroutine and shows it in a window
// with a status bar, without the full UI.
package cli

import (
	"context"
	"image"
	"log"
	"strings"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/sqweek/dialog"
	"golang.design/x/clipboard"
	"golang.org/x/sync/errgroup"

	bridge "github.com/user-none/ezx48/bridge/ebiten"
	"github.com/user-none/ezx48/emu"
)

// Runner wraps an emulator for command-line mode.
// The emulation goroutine owns the machine; the ebiten goroutine polls
// input and reaches the machine only through the keyboard matrix and
// the Control.
type Runner struct {
	emulator *emu.Emulator
	ctl      *emu.Control
	status   *StatusLine
	frame    *SharedFramebuffer
	screen   *bridge.Screen
	keys     *keyTracker

	showStatus bool
	statusRect image.Rectangle
	done       chan struct{}

	clipboardOnce sync.Once
	clipboardOK   bool
}

// NewRunner creates a new Runner wrapping the given emulator. status
// must be the emu.Progress the emulator was created with.
func NewRunner(e *emu.Emulator, status *StatusLine, showStatus bool) *Runner {
	return &Runner{
		emulator:   e,
		ctl:        e.Control(),
		status:     status,
		frame:      NewSharedFramebuffer(),
		screen:     bridge.NewScreen(),
		keys:       newKeyTracker(e.Keyboard()),
		showStatus: showStatus,
		done:       make(chan struct{}),
	}
}

// WindowSize returns the window size showing the frame at its native
// size plus the status bar.
func (r *Runner) WindowSize() (int, int) {
	b := r.emulator.Surface().Bounds()
	h := b.Dy()
	if r.showStatus {
		h += statusHeight
	}
	return b.Dx(), h
}

// Run starts the emulation goroutine and the window. It returns when
// the window is closed or the machine fails.
func (r *Runner) Run() error {
	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		defer close(r.done)
		return r.emulate(ctx)
	})

	err := ebiten.RunGame(r)
	r.ctl.Stop()
	if werr := g.Wait(); err == nil {
		err = werr
	}
	return err
}

// emulate runs frames until stopped. Paused frames block inside the
// pacing loop.
func (r *Runner) emulate(ctx context.Context) error {
	for r.ctl.ShouldRun() {
		if ctx.Err() != nil {
			return nil
		}
		r.emulator.RunFrame()
		if err := r.emulator.Err(); err != nil {
			return err
		}
		if r.frame.Wanted() {
			r.frame.Update(r.emulator.GetFramebuffer(), r.emulator.GetFramebufferStride(), r.emulator.GetActiveHeight())
		}
	}
	return nil
}

// Update implements ebiten.Game.
func (r *Runner) Update() error {
	select {
	case <-r.done:
		return ebiten.Termination
	default:
	}

	if !ebiten.IsFocused() {
		r.keys.releaseAll()
		return nil
	}

	r.pollKeyboard()
	r.pollGamepad()
	r.pollMouse()
	return nil
}

// Draw implements ebiten.Game.
func (r *Runner) Draw(screen *ebiten.Image) {
	bounds := screen.Bounds()
	frameArea := bounds
	if r.showStatus {
		frameArea.Max.Y -= statusHeight
		r.statusRect = image.Rect(bounds.Min.X, frameArea.Max.Y, bounds.Max.X, bounds.Max.Y)
	} else {
		r.statusRect = image.Rectangle{}
	}

	if !frameArea.Empty() {
		dst := screen.SubImage(frameArea).(*ebiten.Image)
		r.frame.View(func(pix []byte, stride, height int, seq uint64) {
			if seq == 0 {
				return
			}
			r.screen.DrawFrame(dst, pix, stride, stride/4, height)
		})
	}
	r.frame.Request()

	if r.showStatus {
		r.status.Draw(screen, r.statusRect)
	}
}

// Layout implements ebiten.Game.
func (r *Runner) Layout(outsideWidth, outsideHeight int) (int, int) {
	return r.screen.Layout(outsideWidth, outsideHeight)
}

// modifiers returns the host modifiers in matrix terms: Ctrl is CAPS
// SHIFT and Alt or Meta is SYMBOL SHIFT.
func modifiers() emu.Modifier {
	var mods emu.Modifier
	if ebiten.IsKeyPressed(ebiten.KeyShift) {
		mods |= emu.ModShift
	}
	if ebiten.IsKeyPressed(ebiten.KeyControl) {
		mods |= emu.ModCaps
	}
	if ebiten.IsKeyPressed(ebiten.KeyAlt) || ebiten.IsKeyPressed(ebiten.KeyMeta) {
		mods |= emu.ModSymbol
	}
	return mods
}

// pollKeyboard forwards key presses and releases to the matrix. Ctrl+
// Shift+V pastes the clipboard and Ctrl+Shift+O opens a snapshot.
func (r *Runner) pollKeyboard() {
	mods := modifiers()
	command := mods&emu.ModShift != 0 && mods&emu.ModCaps != 0

	for _, key := range inpututil.AppendJustPressedKeys(nil) {
		if command && key == ebiten.KeyV {
			r.paste()
			continue
		}
		if command && key == ebiten.KeyO {
			r.openSnapshot()
			continue
		}

		switch r.keys.press(key, mods) {
		case emu.KeyReset:
			r.ctl.RequestReset()
		case emu.KeyPause:
			r.ctl.TogglePause()
		}
	}

	for _, key := range inpututil.AppendJustReleasedKeys(nil) {
		r.keys.release(key, mods)
	}
}

// pollGamepad maps the first standard gamepads onto the joypad buttons
// the emulator turns into cursor keys.
func (r *Runner) pollGamepad() {
	var buttons uint32
	set := func(bit int, on bool) {
		if on {
			buttons |= 1 << bit
		}
	}

	for _, id := range ebiten.AppendGamepadIDs(nil) {
		if !ebiten.IsStandardGamepadLayoutAvailable(id) {
			continue
		}

		// D-pad
		set(0, ebiten.IsStandardGamepadButtonPressed(id, ebiten.StandardGamepadButtonLeftTop))
		set(1, ebiten.IsStandardGamepadButtonPressed(id, ebiten.StandardGamepadButtonLeftBottom))
		set(2, ebiten.IsStandardGamepadButtonPressed(id, ebiten.StandardGamepadButtonLeftLeft))
		set(3, ebiten.IsStandardGamepadButtonPressed(id, ebiten.StandardGamepadButtonLeftRight))

		// A/Cross = fire, Start = ENTER, B/Circle = SPACE
		set(4, ebiten.IsStandardGamepadButtonPressed(id, ebiten.StandardGamepadButtonRightBottom))
		set(5, ebiten.IsStandardGamepadButtonPressed(id, ebiten.StandardGamepadButtonCenterRight))
		set(7, ebiten.IsStandardGamepadButtonPressed(id, ebiten.StandardGamepadButtonRightRight))

		// Left analog stick (with deadzone)
		const deadzone = 0.5
		axisX := ebiten.StandardGamepadAxisValue(id, ebiten.StandardGamepadAxisLeftStickHorizontal)
		axisY := ebiten.StandardGamepadAxisValue(id, ebiten.StandardGamepadAxisLeftStickVertical)
		set(0, axisY < -deadzone)
		set(1, axisY > deadzone)
		set(2, axisX < -deadzone)
		set(3, axisX > deadzone)
	}

	r.emulator.SetInput(0, buttons)
}

// pollMouse turns a click on the status bar into a speed click.
func (r *Runner) pollMouse() {
	if !inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		return
	}
	if image.Pt(ebiten.CursorPosition()).In(r.statusRect) {
		r.ctl.Click()
	}
}

// paste types the clipboard text into the matrix.
func (r *Runner) paste() {
	r.clipboardOnce.Do(func() {
		r.clipboardOK = clipboard.Init() == nil
		if !r.clipboardOK {
			log.Printf("clipboard unavailable")
		}
	})
	if !r.clipboardOK {
		return
	}
	data := clipboard.Read(clipboard.FmtText)
	if len(data) == 0 {
		return
	}
	r.emulator.Keyboard().Type(string(data))
}

// openSnapshot asks for a file and posts it to the load mailbox.
func (r *Runner) openSnapshot() {
	// Run dialog in goroutine to avoid blocking Ebiten's main thread
	go func() {
		path, err := dialog.File().
			Title("Open Snapshot").
			Filter("Spectrum snapshots", "sna", "z80", "SNA", "Z80").
			Filter("Archives", "zip", "7z", "rar", "tar", "gz", "tgz", "zst", "xz", "lz4", "br").
			Load()
		if err != nil {
			if err != dialog.ErrCancelled {
				log.Printf("open dialog: %v", err)
			}
			return
		}
		r.ctl.RequestLoad(strings.TrimSpace(path))
	}()
}
