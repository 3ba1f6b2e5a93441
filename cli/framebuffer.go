//go:build !libretro

package cli

import (
	"sync"
	"sync/atomic"
)

// SharedFramebuffer hands frames from the emulation goroutine to the
// ebiten goroutine. The emulator only copies a frame after Draw asked
// for one, so full-speed emulation is not slowed by copies nobody sees.
type SharedFramebuffer struct {
	mu     sync.Mutex
	pix    []byte
	stride int
	height int
	seq    uint64

	wanted atomic.Bool
}

// NewSharedFramebuffer creates an empty framebuffer that wants a frame.
func NewSharedFramebuffer() *SharedFramebuffer {
	fb := &SharedFramebuffer{}
	fb.wanted.Store(true)
	return fb
}

// Request asks for the next frame.
func (fb *SharedFramebuffer) Request() {
	fb.wanted.Store(true)
}

// Wanted reports whether a frame was requested, clearing the request.
func (fb *SharedFramebuffer) Wanted() bool {
	return fb.wanted.Swap(false)
}

// Update copies a frame in.
func (fb *SharedFramebuffer) Update(pix []byte, stride, height int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	n := stride * height
	if n > len(pix) {
		n = len(pix)
	}
	if cap(fb.pix) < n {
		fb.pix = make([]byte, n)
	}
	fb.pix = fb.pix[:n]
	copy(fb.pix, pix[:n])
	fb.stride = stride
	fb.height = height
	fb.seq++
}

// View calls fn with the latest frame while holding the lock. seq
// counts updates; it is 0 before the first frame.
func (fb *SharedFramebuffer) View(fn func(pix []byte, stride, height int, seq uint64)) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fn(fb.pix, fb.stride, fb.height, fb.seq)
}
