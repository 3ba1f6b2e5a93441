package emu

import "image"

// Renderer turns display-file writes into tile blits. Pixel and
// attribute cells are tracked in separate dirty lists; last holds the
// value each cell had when it was last drawn.
type Renderer struct {
	mem     *Memory
	io      *ULAIO
	surface Surface
	tiles   *TileCache
	scale   int
	border  int

	pixels *dirtyList
	attrs  *dirtyList
	last   [displayCells]uint8

	flashInvert bool
	oldBorder   int
}

// NewRenderer creates a renderer drawing mem to s and hooks it into the
// memory write path.
func NewRenderer(mem *Memory, io *ULAIO, s Surface, scale, border int) (*Renderer, error) {
	tiles, err := NewTileCache(s, scale)
	if err != nil {
		return nil, err
	}
	r := &Renderer{
		mem:       mem,
		io:        io,
		surface:   s,
		tiles:     tiles,
		scale:     scale,
		border:    border,
		pixels:    newDirtyList(0, pixelCells),
		attrs:     newDirtyList(pixelCells, attrCells),
		oldBorder: -1,
	}
	mem.marker = r.Mark
	r.RefreshWholeScreen()
	return r, nil
}

// Mark queues a display-file offset for redraw.
func (r *Renderer) Mark(offset int) {
	if offset < pixelCells {
		r.pixels.mark(offset)
	} else {
		r.attrs.mark(offset)
	}
}

// pixelXY returns the screen position of a pixel-cell offset.
func pixelXY(offset int) (x, y int) {
	x = (offset & 0x1f) << 3
	y = ((offset & 0x00e0) >> 2) + ((offset & 0x0700) >> 8) + ((offset & 0x1800) >> 5)
	return x, y
}

// attrFor returns the attribute offset owning the pixel cell at offset.
func attrFor(offset int) int {
	_, y := pixelXY(offset)
	return pixelCells + (offset & 0x1f) + (y>>3)*charsWide
}

// firstPixelRow returns the offset of the top pixel row of an attribute cell.
func firstPixelRow(attrOffset int) int {
	a := attrOffset - pixelCells
	return ((a & 0x300) << 3) | (a & 0xff)
}

// ToggleFlash flips the flash phase and queues every flashing cell.
// The cached attribute is set to the complement of the real one so the
// next pass sees a flash change even though memory did not change.
func (r *Renderer) ToggleFlash() {
	r.flashInvert = !r.flashInvert

	for offset := pixelCells; offset < displayCells; offset++ {
		attr := r.mem.display(offset)
		if attr&0x80 != 0 {
			r.last[offset] = ^attr
			r.attrs.mark(offset)
		}
	}
}

// RefreshWholeScreen queues every cell so the next pass redraws the
// full display and border.
func (r *Renderer) RefreshWholeScreen() {
	r.pixels.reset()
	r.attrs.reset()

	for offset := 0; offset < pixelCells; offset++ {
		r.last[offset] = ^r.mem.display(offset)
		r.pixels.mark(offset)
	}
	for offset := pixelCells; offset < displayCells; offset++ {
		r.last[offset] = r.mem.display(offset)
	}
	r.oldBorder = -1
}

// Paint drains both dirty lists and draws what changed. It reports
// whether the display was composited.
func (r *Renderer) Paint() (bool, error) {
	r.attrs.drain(r.paintAttr)

	if r.pixels.len() == 0 {
		return false, nil
	}

	var err error
	r.pixels.drain(func(offset int) {
		if err != nil {
			r.last[offset] = r.mem.display(offset)
			return
		}
		err = r.paintPixels(offset)
	})
	if err != nil {
		return false, err
	}

	r.Composite()
	return true, nil
}

// paintAttr works out which pixel rows of one character cell need
// redrawing after its attribute changed.
func (r *Renderer) paintAttr(offset int) {
	oldAttr := r.last[offset]
	newAttr := r.mem.display(offset)
	r.last[offset] = newAttr

	diff := oldAttr ^ newAttr
	inkChange := diff&0x47 != 0
	papChange := diff&0x78 != 0
	flashChange := diff&0x80 != 0
	if !inkChange && !papChange && !flashChange {
		return
	}
	allChange := (inkChange && papChange) || flashChange

	scr := firstPixelRow(offset)
	for i := 0; i < 8; i, scr = i+1, scr+256 {
		newPixels := r.mem.display(scr)
		if allChange {
			r.last[scr] = ^newPixels
		} else {
			changes := r.last[scr] ^ newPixels
			if inkChange {
				changes |= newPixels
			} else {
				changes |= ^newPixels
			}
			if changes == 0 {
				continue
			}
			r.last[scr] = changes ^ newPixels
		}
		r.pixels.mark(scr)
	}
}

func (r *Renderer) paintPixels(offset int) error {
	newPixels := r.mem.display(offset)
	changes := r.last[offset] ^ newPixels
	r.last[offset] = newPixels
	if changes == 0 {
		return nil
	}

	x, y := pixelXY(offset)
	attr := r.mem.display(attrFor(offset))
	if r.flashInvert && attr&0x80 != 0 {
		newPixels = ^newPixels
	}

	X, Y := x*r.scale, y*r.scale
	if changes&0xf0 != 0 {
		t, err := r.tiles.Get(attr, newPixels>>4)
		if err != nil {
			return err
		}
		r.surface.Blit(t, X, Y)
	}
	if changes&0x0f != 0 {
		t, err := r.tiles.Get(attr, newPixels&0x0f)
		if err != nil {
			return err
		}
		r.surface.Blit(t, X+4*r.scale, Y)
	}
	return nil
}

// Composite shows the off-screen display and repaints a stale border.
func (r *Renderer) Composite() {
	r.surface.Present()
	r.paintBorder()
}

// InvalidateBorder forces the border to be repainted by the next pass.
func (r *Renderer) InvalidateBorder() {
	r.oldBorder = -1
}

func (r *Renderer) paintBorder() {
	newBorder := int(r.io.Border())
	if r.oldBorder == newBorder {
		return
	}
	r.oldBorder = newBorder
	if r.border == 0 {
		return
	}

	c := Palette[newBorder]
	b := r.surface.Bounds()
	w, h, bw := b.Dx(), b.Dy(), r.border
	r.surface.FillRect(image.Rect(0, 0, w, bw), c)
	r.surface.FillRect(image.Rect(0, h-bw, w, h), c)
	r.surface.FillRect(image.Rect(0, bw, bw, h-bw), c)
	r.surface.FillRect(image.Rect(w-bw, bw, w, h-bw), c)
}

// FlashInverted reports the current flash phase.
func (r *Renderer) FlashInverted() bool {
	return r.flashInvert
}
