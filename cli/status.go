//go:build !libretro

package cli

import (
	"image"
	"image/color"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/basicfont"
)

// statusHeight is the height of the status bar in window pixels.
const statusHeight = 20

var (
	statusBackground = color.RGBA{0x20, 0x20, 0x20, 0xFF}
	statusForeground = color.RGBA{0xE0, 0xE0, 0xE0, 0xFF}
	statusBar        = color.RGBA{0x00, 0x80, 0x00, 0xFF}
)

// StatusLine is the text and progress bar below the display. The
// emulation goroutine writes it through emu.Progress; Draw reads it on
// the ebiten goroutine.
type StatusLine struct {
	mu       sync.Mutex
	text     string
	total    int
	fraction float64
	showBar  bool

	fontFace text.Face
}

// NewStatusLine creates an empty status line.
func NewStatusLine() *StatusLine {
	return &StatusLine{
		fontFace: text.NewGoXFace(basicfont.Face7x13),
	}
}

// SetText replaces the status text.
func (s *StatusLine) SetText(t string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = t
}

// SetTotal sets the size of the transfer being shown.
func (s *StatusLine) SetTotal(total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total = total
}

// SetProgress sets the filled fraction of the progress bar.
func (s *StatusLine) SetProgress(fraction float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fraction = min(max(fraction, 0), 1)
}

// Show shows or hides the progress bar.
func (s *StatusLine) Show(show bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.showBar = show
	if !show {
		s.fraction = 0
	}
}

// State returns the current text, and the bar fraction when visible.
func (s *StatusLine) State() (string, float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text, s.fraction, s.showBar
}

// Draw paints the status line into area.
func (s *StatusLine) Draw(dst *ebiten.Image, area image.Rectangle) {
	if area.Empty() {
		return
	}
	t, fraction, showBar := s.State()

	dst.SubImage(area).(*ebiten.Image).Fill(statusBackground)
	if showBar {
		bar := area
		bar.Max.X = area.Min.X + int(float64(area.Dx())*fraction)
		if !bar.Empty() {
			dst.SubImage(bar).(*ebiten.Image).Fill(statusBar)
		}
	}

	op := &text.DrawOptions{}
	op.GeoM.Translate(float64(area.Min.X+6), float64(area.Min.Y+3))
	op.ColorScale.ScaleWithColor(statusForeground)
	text.Draw(dst, t, s.fontFace, op)
}
