package emu

import (
	"image/color"
	"sync"
	"time"
)

// createTestROM creates a 16KB system ROM that disables interrupts and
// loops forever at $0002.
func createTestROM() []byte {
	rom := make([]byte, ROMSize)
	rom[0] = 0xF3 // DI
	rom[1] = 0x00 // NOP
	rom[2] = 0x18 // JR $
	rom[3] = 0xFE
	return rom
}

// newTestRenderer builds memory, ports and a renderer on an unscaled
// surface with the given border.
func newTestRenderer(border int) (*Memory, *ULAIO, *RGBASurface, *Renderer) {
	mem := NewMemory(nil)
	io := NewULAIO(NewKeyboard())
	surface := NewRGBASurface(1, border)
	r, err := NewRenderer(mem, io, surface, 1, border)
	if err != nil {
		panic(err)
	}
	return mem, io, surface, r
}

// newTestEmulator creates an emulator around createTestROM.
func newTestEmulator() *Emulator {
	e, err := NewEmulator(createTestROM(), Options{})
	if err != nil {
		panic(err)
	}
	e.pacer.sleep = nopSleep
	return e
}

func nopSleep(time.Duration) {}

// framePixel returns the colour of one pixel of the visible frame.
func framePixel(s *RGBASurface, x, y int) color.RGBA {
	return s.Frame().RGBAAt(x, y)
}

// buildSNA assembles a 49179-byte .sna image.
func buildSNA(hdr [27]byte, ram []byte) []byte {
	data := make([]byte, SNASize)
	copy(data, hdr[:])
	copy(data[27:], ram)
	return data
}

// z80Header returns a 30-byte .z80 header with PC and the flags byte set.
func z80Header(pc uint16, flags uint8) []byte {
	hdr := make([]byte, z80HeaderSize)
	hdr[6] = uint8(pc)
	hdr[7] = uint8(pc >> 8)
	hdr[12] = flags
	return hdr
}

// z80Extended returns a .z80 image with an extended header of hdrLen
// bytes and the given page blocks appended.
func z80Extended(hdrLen int, pc uint16, machine uint8, blocks ...[]byte) []byte {
	data := z80Header(0, 0)
	data = append(data, uint8(hdrLen), uint8(hdrLen>>8))
	ext := make([]byte, hdrLen)
	ext[0] = uint8(pc)
	ext[1] = uint8(pc >> 8)
	ext[2] = machine
	data = append(data, ext...)
	for _, b := range blocks {
		data = append(data, b...)
	}
	return data
}

// pageBlock wraps compressed data in a page block header.
func pageBlock(page uint8, compressed []byte) []byte {
	n := len(compressed)
	block := []byte{uint8(n), uint8(n >> 8), page}
	return append(block, compressed...)
}

// recordingProgress captures every progress update.
type recordingProgress struct {
	mu        sync.Mutex
	texts     []string
	totals    []int
	fractions []float64
	shown     bool
}

func (p *recordingProgress) SetText(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.texts = append(p.texts, text)
}

func (p *recordingProgress) SetTotal(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.totals = append(p.totals, total)
}

func (p *recordingProgress) SetProgress(fraction float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fractions = append(p.fractions, fraction)
}

func (p *recordingProgress) Show(show bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shown = show
}

func (p *recordingProgress) lastText() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.texts) == 0 {
		return ""
	}
	return p.texts[len(p.texts)-1]
}
