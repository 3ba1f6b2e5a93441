package emu

import (
	"errors"
	"fmt"
	"image/color"

	lru "github.com/hashicorp/golang-lru/v2"
)

const sat = 238

// Palette holds the eight normal colours followed by their bright versions.
var Palette = [16]color.RGBA{
	{0, 0, 0, 255}, {0, 0, sat, 255}, {sat, 0, 0, 255}, {sat, 0, sat, 255},
	{0, sat, 0, 255}, {0, sat, sat, 255}, {sat, sat, 0, 255}, {sat, sat, sat, 255},
	{0, 0, 0, 255}, {0, 0, 255, 255}, {255, 0, 0, 255}, {255, 0, 255, 255},
	{0, 255, 0, 255}, {0, 255, 255, 255}, {255, 255, 0, 255}, {255, 255, 255, 255},
}

// ErrTileAlloc is returned when a tile cannot be allocated even after
// the cache has been emptied.
var ErrTileAlloc = errors.New("tile allocation failed")

const (
	tileTableSize = 1 << 11 // 7 attribute bits, 4 pattern bits
	// At most 128 ink/paper pairs times 16 patterns exist, so the shared
	// cache never evicts.
	sharedTileEntries = 2048
)

// TileCache memoises rendered 4-pixel tiles. The table is indexed by
// attribute (without flash) and pattern; the shared cache is keyed by
// the four palette indexes the tile shows, so attributes that render
// the same pixels share one surface allocation.
type TileCache struct {
	surface Surface
	scale   int
	table   [tileTableSize]Tile
	shared  *lru.Cache[uint16, Tile]
}

// NewTileCache creates a cache allocating its tiles from s.
func NewTileCache(s Surface, scale int) (*TileCache, error) {
	shared, err := lru.New[uint16, Tile](sharedTileEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create tile cache: %w", err)
	}
	return &TileCache{
		surface: s,
		scale:   scale,
		shared:  shared,
	}, nil
}

// Get returns the tile for a 4-bit pattern drawn in attr's colours.
// Pattern bit 3 is the leftmost pixel. If the surface cannot allocate,
// the whole cache is released and the allocation retried once.
func (c *TileCache) Get(attr, pattern uint8) (Tile, error) {
	key := uint16(attr&0x7f)<<4 | uint16(pattern&0x0f)
	if t := c.table[key]; t != nil {
		return t, nil
	}

	t, err := c.render(attr, pattern)
	if err != nil {
		c.Purge()
		t, err = c.render(attr, pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTileAlloc, err)
		}
	}
	c.table[key] = t
	return t, nil
}

func tileColours(attr, pattern uint8) (cols [4]uint8, sig uint16) {
	bright := (attr >> 3) & 0x08
	ink := attr&0x07 | bright
	pap := (attr>>3)&0x07 | bright
	for i := 0; i < 4; i++ {
		col := pap
		if pattern&(1<<i) != 0 {
			col = ink
		}
		cols[i] = col
		sig |= uint16(col) << (i << 2)
	}
	return cols, sig
}

func (c *TileCache) render(attr, pattern uint8) (Tile, error) {
	cols, sig := tileColours(attr, pattern)
	if t, ok := c.shared.Get(sig); ok {
		return t, nil
	}

	t, err := c.surface.NewTile(4*c.scale, c.scale)
	if err != nil {
		return nil, err
	}
	for i, col := range cols {
		t.Fill((3-i)*c.scale, 0, c.scale, c.scale, Palette[col])
	}
	c.shared.Add(sig, t)
	return t, nil
}

// Purge releases every cached tile.
func (c *TileCache) Purge() {
	for i, t := range c.table {
		if t != nil {
			t.Release()
			c.table[i] = nil
		}
	}
	for _, sig := range c.shared.Keys() {
		if t, ok := c.shared.Peek(sig); ok {
			t.Release()
		}
	}
	c.shared.Purge()
}

// Len returns the number of distinct tiles held.
func (c *TileCache) Len() int {
	return c.shared.Len()
}
