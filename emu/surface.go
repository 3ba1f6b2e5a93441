package emu

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
)

// Display geometry
const (
	ScreenPixelsWide = 256
	ScreenPixelsHigh = 192
	charsWide        = 32
)

// ErrTileBudget is returned by RGBASurface.NewTile when MaxTiles live
// tiles already exist.
var ErrTileBudget = errors.New("tile budget exhausted")

// Tile is a small off-screen image holding four rendered pixels.
type Tile interface {
	Fill(x, y, w, h int, c color.RGBA)
	Release()
}

// Surface is the graphics target of the renderer. Tiles are blitted to
// an off-screen copy of the 256x192 display; Present composites it into
// the visible frame, which also holds the border.
type Surface interface {
	NewTile(w, h int) (Tile, error)
	Blit(t Tile, x, y int)
	Present()
	FillRect(r image.Rectangle, c color.RGBA)
	Bounds() image.Rectangle
}

// RGBASurface is a Surface backed by image.RGBA buffers. Its frame is
// what the frontends read as the framebuffer.
type RGBASurface struct {
	scale  int
	border int
	screen *image.RGBA
	frame  *image.RGBA

	// MaxTiles limits live tile allocations (0 = unlimited).
	MaxTiles int
	live     int
}

// NewRGBASurface creates a surface with the display scaled by scale and
// surrounded by border pixels on every side.
func NewRGBASurface(scale, border int) *RGBASurface {
	w := ScreenPixelsWide*scale + 2*border
	h := ScreenPixelsHigh*scale + 2*border
	return &RGBASurface{
		scale:  scale,
		border: border,
		screen: image.NewRGBA(image.Rect(0, 0, ScreenPixelsWide*scale, ScreenPixelsHigh*scale)),
		frame:  image.NewRGBA(image.Rect(0, 0, w, h)),
	}
}

type rgbaTile struct {
	img      *image.RGBA
	owner    *RGBASurface
	released bool
}

func (t *rgbaTile) Fill(x, y, w, h int, c color.RGBA) {
	draw.Draw(t.img, image.Rect(x, y, x+w, y+h), &image.Uniform{C: c}, image.Point{}, draw.Src)
}

func (t *rgbaTile) Release() {
	if t.released {
		return
	}
	t.released = true
	t.owner.live--
}

// NewTile allocates a w x h tile.
func (s *RGBASurface) NewTile(w, h int) (Tile, error) {
	if s.MaxTiles > 0 && s.live >= s.MaxTiles {
		return nil, ErrTileBudget
	}
	s.live++
	return &rgbaTile{
		img:   image.NewRGBA(image.Rect(0, 0, w, h)),
		owner: s,
	}, nil
}

// Blit copies a tile into the off-screen display at (x, y).
func (s *RGBASurface) Blit(t Tile, x, y int) {
	rt := t.(*rgbaTile)
	r := rt.img.Bounds().Add(image.Pt(x, y))
	draw.Draw(s.screen, r, rt.img, image.Point{}, draw.Src)
}

// Present copies the off-screen display into the frame inside the border.
func (s *RGBASurface) Present() {
	r := s.screen.Bounds().Add(image.Pt(s.border, s.border))
	draw.Draw(s.frame, r, s.screen, image.Point{}, draw.Src)
}

// FillRect fills part of the visible frame.
func (s *RGBASurface) FillRect(r image.Rectangle, c color.RGBA) {
	draw.Draw(s.frame, r, &image.Uniform{C: c}, image.Point{}, draw.Src)
}

// Bounds returns the size of the visible frame.
func (s *RGBASurface) Bounds() image.Rectangle {
	return s.frame.Bounds()
}

// Frame returns the visible frame.
func (s *RGBASurface) Frame() *image.RGBA {
	return s.frame
}

// LiveTiles returns the number of allocated, unreleased tiles.
func (s *RGBASurface) LiveTiles() int {
	return s.live
}
