//go:build !libretro && !ios

// Package ebiten provides Ebiten-specific drawing of emulator frames.
package ebiten

import (
	"image"

	"github.com/hajimehoshi/ebiten/v2"
)

// Screen draws RGBA frames scaled to fit a window area.
type Screen struct {
	offscreen *ebiten.Image           // Offscreen buffer for native resolution rendering
	drawOpts  ebiten.DrawImageOptions // Pre-allocated draw options to avoid per-frame allocation
}

// NewScreen creates a Screen. The offscreen image is sized on first use.
func NewScreen() *Screen {
	return &Screen{}
}

// DrawFrame copies a frame of width x height pixels into the offscreen
// buffer and draws it on dst, scaled to fit while preserving the aspect
// ratio and centered. It returns the area covered.
func (s *Screen) DrawFrame(dst *ebiten.Image, pix []byte, stride, width, height int) image.Rectangle {
	if width <= 0 || height <= 0 || stride != width*4 {
		return image.Rectangle{}
	}

	// Create or resize offscreen buffer if needed
	if s.offscreen == nil || s.offscreen.Bounds().Dx() != width || s.offscreen.Bounds().Dy() != height {
		if s.offscreen != nil {
			s.offscreen.Deallocate()
		}
		s.offscreen = ebiten.NewImage(width, height)
	}

	requiredLen := stride * height
	if len(pix) < requiredLen {
		return image.Rectangle{} // Buffer too small, skip frame
	}
	s.offscreen.WritePixels(pix[:requiredLen])

	dstRect := Fit(dst.Bounds(), width, height)
	scale := float64(dstRect.Dx()) / float64(width)

	// Draw scaled image centered in the area using pre-allocated options
	s.drawOpts = ebiten.DrawImageOptions{}
	s.drawOpts.GeoM.Scale(scale, scale)
	s.drawOpts.GeoM.Translate(float64(dstRect.Min.X), float64(dstRect.Min.Y))
	s.drawOpts.Filter = ebiten.FilterNearest
	dst.DrawImage(s.offscreen, &s.drawOpts)
	return dstRect
}

// Fit returns the largest rectangle with the aspect ratio of a width x
// height frame that fits area, centered in it.
func Fit(area image.Rectangle, width, height int) image.Rectangle {
	areaW, areaH := area.Dx(), area.Dy()
	if width <= 0 || height <= 0 || areaW <= 0 || areaH <= 0 {
		return image.Rectangle{}
	}

	// Calculate scaling to fit while preserving aspect ratio
	scaleX := float64(areaW) / float64(width)
	scaleY := float64(areaH) / float64(height)
	scale := scaleX
	if scaleY < scaleX {
		scale = scaleY
	}

	// Calculate offset to center the image
	scaledW := int(float64(width) * scale)
	scaledH := int(float64(height) * scale)
	offsetX := (areaW - scaledW) / 2
	offsetY := (areaH - scaledH) / 2

	min := area.Min.Add(image.Pt(offsetX, offsetY))
	return image.Rectangle{Min: min, Max: min.Add(image.Pt(scaledW, scaledH))}
}

// Layout returns the window size so scaling is controlled in DrawFrame.
func (s *Screen) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}
