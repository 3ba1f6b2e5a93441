package emu

import (
	"errors"
	"fmt"
	"hash/crc32"
)

// Memory map boundaries
const (
	ROMSize      = 0x4000 // $0000-$3FFF: 16KB system ROM
	screenStart  = 0x4000 // $4000-$57FF: pixel bitmap
	attrStart    = 0x5800 // $5800-$5AFF: attribute table
	screenEnd    = 0x5B00 // first byte of general RAM
	memorySize   = 0x10000
	ramSize      = memorySize - ROMSize
	pixelCells   = attrStart - screenStart // 6144
	attrCells    = screenEnd - attrStart   // 768
	displayCells = pixelCells + attrCells  // 6912
)

// ErrBadROMSize is returned when a system ROM image is not exactly 16KB.
var ErrBadROMSize = errors.New("system ROM must be 16384 bytes")

// Memory is the flat 64KB address space of the 48K machine.
// Writes into the display file are reported to the marker so the
// renderer can redraw only what changed.
type Memory struct {
	data   [memorySize]uint8
	marker func(offset int)
	romCRC uint32
}

// NewMemory creates an empty address space. marker is called with the
// display-file offset (0..6911) of every byte whose value changes.
func NewMemory(marker func(offset int)) *Memory {
	return &Memory{marker: marker}
}

// LoadROM copies a 16KB system ROM into $0000-$3FFF, bypassing the
// write protection applied to CPU writes.
func (m *Memory) LoadROM(rom []byte) error {
	if len(rom) != ROMSize {
		return fmt.Errorf("%w: got %d", ErrBadROMSize, len(rom))
	}
	copy(m.data[:ROMSize], rom)
	m.romCRC = crc32.ChecksumIEEE(rom)
	return nil
}

// GetROMCRC32 returns the CRC32 of the loaded system ROM.
func (m *Memory) GetROMCRC32() uint32 {
	return m.romCRC
}

// Read returns the byte at addr.
func (m *Memory) Read(addr uint16) uint8 {
	return m.data[addr]
}

// Write stores val at addr. ROM writes are dropped, general RAM is
// written straight through, and display-file writes mark the cell dirty
// only when the stored value actually changes.
func (m *Memory) Write(addr uint16, val uint8) {
	if addr >= screenEnd {
		m.data[addr] = val
		return
	}
	if addr < screenStart {
		return
	}
	if m.data[addr] != val {
		if m.marker != nil {
			m.marker(int(addr) - screenStart)
		}
		m.data[addr] = val
	}
}

// WriteWord stores a little-endian word at addr and addr+1. The high
// byte is dropped when addr is $FFFF.
func (m *Memory) WriteWord(addr uint16, val uint16) {
	m.Write(addr, uint8(val))
	if addr == 0xFFFF {
		return
	}
	m.Write(addr+1, uint8(val>>8))
}

// ReadWord returns the little-endian word at addr.
func (m *Memory) ReadWord(addr uint16) uint16 {
	return uint16(m.data[addr]) | uint16(m.data[addr+1])<<8
}

// display returns the display-file byte at offset (0..6911).
func (m *Memory) display(offset int) uint8 {
	return m.data[screenStart+offset]
}

// RAM returns the 48KB of RAM from $4000 upwards.
func (m *Memory) RAM() []uint8 {
	return m.data[ROMSize:]
}

// loadRAM copies data over RAM from $4000 without dirty marking. The
// caller must refresh the whole screen afterwards.
func (m *Memory) loadRAM(data []byte) {
	copy(m.data[ROMSize:], data)
}
