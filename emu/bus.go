package emu

// Bus adapts Memory and ULAIO into the go-chip-z80 Bus interface.
type Bus struct {
	mem *Memory
	io  *ULAIO
}

// NewBus creates a new Bus bridging memory and I/O.
func NewBus(mem *Memory, io *ULAIO) *Bus {
	return &Bus{mem: mem, io: io}
}

func (b *Bus) Fetch(addr uint16) uint8 { return b.mem.Read(addr) }
func (b *Bus) Read(addr uint16) uint8  { return b.mem.Read(addr) }

func (b *Bus) Write(addr uint16, val uint8) {
	b.mem.Write(addr, val)
}

func (b *Bus) In(port uint16) uint8       { return b.io.In(port) }
func (b *Bus) Out(port uint16, val uint8) { b.io.Out(port, val) }
