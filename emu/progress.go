package emu

import "io"

// Progress is the status display used while loading and for the speed
// readout. Implementations must be safe to call from the emulation
// goroutine.
type Progress interface {
	SetText(text string)
	SetTotal(total int)
	SetProgress(fraction float64)
	Show(show bool)
}

// nopProgress discards all updates.
type nopProgress struct{}

func (nopProgress) SetText(string)      {}
func (nopProgress) SetTotal(int)        {}
func (nopProgress) SetProgress(float64) {}
func (nopProgress) Show(bool)           {}

// maxProgressRead caps each read so the bar advances in small steps.
const maxProgressRead = 4096

type progressCounter struct {
	p     Progress
	total int
	done  int
}

func (c *progressCounter) start(text string, total int) {
	if c.p == nil {
		c.p = nopProgress{}
	}
	c.total = total
	c.done = 0
	c.p.SetText(text)
	c.p.SetTotal(total)
	c.p.SetProgress(0)
	c.p.Show(total > 0)
}

func (c *progressCounter) add(n int) {
	if c.total <= 0 || n <= 0 {
		return
	}
	c.done += n
	if c.done >= c.total {
		c.p.SetProgress(1)
		c.p.Show(false)
		c.total = 0
		c.done = 0
		return
	}
	c.p.SetProgress(float64(c.done) / float64(c.total))
}

// progressReader reports cumulative bytes read to a progressCounter.
type progressReader struct {
	r io.Reader
	c *progressCounter
}

func (pr *progressReader) Read(p []byte) (int, error) {
	if len(p) > maxProgressRead {
		p = p[:maxProgressRead]
	}
	n, err := pr.r.Read(p)
	pr.c.add(n)
	return n, err
}
