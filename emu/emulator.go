package emu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"log"

	emucore "github.com/user-none/eblitui/api"
	z80 "github.com/user-none/go-chip-z80"
)

// Compile-time interface checks.
var _ emucore.Emulator = (*Emulator)(nil)
var _ emucore.SaveStater = (*Emulator)(nil)
var _ emucore.BatterySaver = (*Emulator)(nil)
var _ emucore.MemoryInspector = (*Emulator)(nil)
var _ emucore.MemoryMapper = (*Emulator)(nil)

const (
	Name    = "ezx48"
	Version = "0.1.0"

	// DefaultBorder is the border width used for the emucore framebuffer.
	DefaultBorder   = 32
	ScreenWidth     = ScreenPixelsWide + 2*DefaultBorder
	MaxScreenHeight = ScreenPixelsHigh + 2*DefaultBorder
	sampleRate      = 48000
)

// Save state format constants
const (
	stateVersion    = 1
	stateMagic      = "eZX48SnState"
	stateHeaderSize = 22 // magic(12) + version(2) + romCRC(4) + dataCRC(4)
)

// ErrNoResolver is returned by LoadLocator when no Resolver is configured.
var ErrNoResolver = errors.New("no snapshot resolver configured")

// Resolver opens a snapshot named by a locator (a path, archive member
// or URL). size is -1 when the length is not known in advance.
type Resolver interface {
	Resolve(locator string) (name string, r io.ReadCloser, size int, err error)
}

// Options configure an Emulator. Zero values select the emucore
// framebuffer layout: scale 1 with a DefaultBorder border.
type Options struct {
	Scale    int
	Border   int // pixels; 0 selects DefaultBorder, negative means none
	Progress Progress
	Resolver Resolver
	// Control is shared with the UI. A new one is created if nil.
	Control *Control
}

// Emulator wires the Spectrum hardware around the Z80 core.
type Emulator struct {
	cpu      *z80.CPU
	bus      *Bus
	mem      *Memory
	io       *ULAIO
	keyboard *Keyboard
	surface  *RGBASurface
	renderer *Renderer
	loader   *SnapshotLoader
	ctl      *Control
	pacer    *Pacer
	progress Progress
	resolver Resolver

	timing      MachineTiming
	region      Region
	carry       int
	intAsserted bool
	err         error

	prevButtons uint32

	hideBorder bool
	cropBuffer []byte

	audioBuffer []int16
}

// NewEmulator creates a machine running the 16KB system ROM rom.
func NewEmulator(rom []byte, opts Options) (*Emulator, error) {
	if opts.Scale <= 0 {
		opts.Scale = 1
	}
	if opts.Border == 0 {
		opts.Border = DefaultBorder
	} else if opts.Border < 0 {
		opts.Border = 0
	}
	if opts.Progress == nil {
		opts.Progress = nopProgress{}
	}
	if opts.Control == nil {
		opts.Control = NewControl()
	}

	mem := NewMemory(nil)
	if err := mem.LoadROM(rom); err != nil {
		return nil, err
	}

	kb := NewKeyboard()
	ula := NewULAIO(kb)
	surface := NewRGBASurface(opts.Scale, opts.Border)
	renderer, err := NewRenderer(mem, ula, surface, opts.Scale, opts.Border)
	if err != nil {
		return nil, err
	}
	bus := NewBus(mem, ula)

	e := &Emulator{
		cpu:      z80.New(bus),
		bus:      bus,
		mem:      mem,
		io:       ula,
		keyboard: kb,
		surface:  surface,
		renderer: renderer,
		loader:   NewSnapshotLoader(mem, opts.Progress),
		ctl:      opts.Control,
		progress: opts.Progress,
		resolver: opts.Resolver,
		timing:   SpectrumTiming,
		region:   RegionPAL,
		cropBuffer: make([]byte,
			ScreenPixelsWide*opts.Scale*ScreenPixelsHigh*opts.Scale*4),
		audioBuffer: make([]int16, sampleRate/SpectrumTiming.FPS*2),
	}
	e.pacer = newPacer(e.ctl, renderer, kb, opts.Progress, pacerHooks{
		reset: e.Reset,
		load:  e.loadRequested,
	})
	e.cpu.Reset()
	return e, nil
}

// RunFrame executes one 50Hz frame: INT is held for the first few
// T-states, the rest of the frame runs free and the pacing loop runs
// before the next interrupt is raised.
func (e *Emulator) RunFrame() {
	budget := e.timing.TStatesPerFrame - e.carry
	consumed := 0

	if e.intAsserted {
		consumed = e.run(consumed, e.timing.IntHoldTStates)
		e.cpu.INT(false, 0xFF)
		e.intAsserted = false
	}
	consumed = e.run(consumed, budget)
	e.carry = consumed - budget

	if e.err == nil {
		if err := e.pacer.Interrupt(); err != nil {
			e.err = err
			log.Printf("display error: %v", err)
		}
	}

	e.cpu.INT(true, 0xFF)
	e.intAsserted = true
}

// run steps the CPU until consumed reaches target. A halted CPU burns
// the remaining time.
func (e *Emulator) run(consumed, target int) int {
	for consumed < target {
		n := e.cpu.StepCycles(target - consumed)
		if n <= 0 {
			n = target - consumed
		}
		consumed += n
	}
	return consumed
}

// Err returns the fatal display error, if one occurred.
func (e *Emulator) Err() error {
	return e.err
}

// Reset restarts the CPU and forces a white border.
func (e *Emulator) Reset() {
	e.cpu.INT(false, 0xFF)
	e.intAsserted = false
	e.carry = 0
	e.cpu.Reset()
	e.io.Out(254, 0xFF)
	e.renderer.InvalidateBorder()
}

// LoadSnapshot decodes a .sna or .z80 stream and starts executing it.
// size is -1 when unknown. On failure memory may be partly overwritten
// and a reset is advised.
func (e *Emulator) LoadSnapshot(name string, r io.Reader, size int) error {
	snap, err := e.loader.Load(name, r, size)
	if err != nil {
		e.progress.Show(false)
		e.pacer.showMessage(err.Error())
		return fmt.Errorf("failed to load %s: %w", name, err)
	}

	e.cpu.INT(false, 0xFF)
	e.intAsserted = false
	e.carry = 0
	loadRegisters(e.cpu, snap.Regs)
	e.io.Out(0xFE, snap.Border)
	e.refreshWholeScreen()
	e.keyboard.Reset()

	log.Printf("loaded %s snapshot %s (PC=%04X)", snap.Format, name, snap.Regs.PC)
	return nil
}

// LoadLocator resolves a locator and loads the snapshot it names.
func (e *Emulator) LoadLocator(locator string) error {
	if e.resolver == nil {
		return ErrNoResolver
	}
	name, r, size, err := e.resolver.Resolve(locator)
	if err != nil {
		e.pacer.showMessage(err.Error())
		return fmt.Errorf("failed to open %s: %w", locator, err)
	}
	defer r.Close()
	return e.LoadSnapshot(name, r, size)
}

func (e *Emulator) loadRequested(locator string) {
	if err := e.LoadLocator(locator); err != nil {
		log.Printf("load failed: %v", err)
	}
}

func (e *Emulator) refreshWholeScreen() {
	e.renderer.RefreshWholeScreen()
	e.pacer.showMessage(drawingBufferText)
}

// Control returns the request/pause object shared with the UI.
func (e *Emulator) Control() *Control {
	return e.ctl
}

// Keyboard returns the key matrix.
func (e *Emulator) Keyboard() *Keyboard {
	return e.keyboard
}

// Pacer returns the per-frame pacing loop.
func (e *Emulator) Pacer() *Pacer {
	return e.pacer
}

// Surface returns the frame the renderer draws into.
func (e *Emulator) Surface() *RGBASurface {
	return e.surface
}

// Memory returns the address space.
func (e *Emulator) Memory() *Memory {
	return e.mem
}

// SetInput maps a joypad onto the cursor keys 5-8 and fire onto 0.
// Buttons 5 and 7 press ENTER and SPACE.
func (e *Emulator) SetInput(player int, buttons uint32) {
	if player != 0 {
		return
	}
	changed := buttons ^ e.prevButtons
	e.prevButtons = buttons
	for _, m := range joypadKeys {
		bit := uint32(1) << m.button
		if changed&bit != 0 {
			e.keyboard.SetKey(buttons&bit != 0, m.key, 0)
		}
	}
}

var joypadKeys = []struct {
	button int
	key    rune
}{
	{int(emucore.ButtonUp), '7'},
	{int(emucore.ButtonDown), '6'},
	{int(emucore.ButtonLeft), '5'},
	{int(emucore.ButtonRight), '8'},
	{4, '0'},
	{5, '\n'},
	{7, ' '},
}

// GetFramebuffer returns raw RGBA pixel data for the current frame.
// With the border hidden only the 256x192 display is returned.
func (e *Emulator) GetFramebuffer() []byte {
	frame := e.surface.Frame()
	if !e.hideBorder || e.renderer.border == 0 {
		return frame.Pix
	}
	b := e.renderer.border
	w := ScreenPixelsWide * e.renderer.scale
	h := ScreenPixelsHigh * e.renderer.scale
	dstStride := w * 4
	for y := 0; y < h; y++ {
		srcOff := (y+b)*frame.Stride + b*4
		copy(e.cropBuffer[y*dstStride:(y+1)*dstStride], frame.Pix[srcOff:srcOff+dstStride])
	}
	return e.cropBuffer[:dstStride*h]
}

// GetFramebufferStride returns the stride (bytes per row) of the framebuffer.
func (e *Emulator) GetFramebufferStride() int {
	if e.hideBorder && e.renderer.border != 0 {
		return ScreenPixelsWide * e.renderer.scale * 4
	}
	return e.surface.Frame().Stride
}

// GetActiveHeight returns the height of the framebuffer.
func (e *Emulator) GetActiveHeight() int {
	if e.hideBorder && e.renderer.border != 0 {
		return ScreenPixelsHigh * e.renderer.scale
	}
	return e.surface.Bounds().Dy()
}

// GetAudioSamples returns one frame of silence. The beeper is not emulated.
func (e *Emulator) GetAudioSamples() []int16 {
	return e.audioBuffer
}

// GetRegion returns the emulator's region setting
func (e *Emulator) GetRegion() Region {
	return e.region
}

// SetRegion is accepted for interface compatibility. Timing stays 50Hz.
func (e *Emulator) SetRegion(region Region) {
	e.region = region
}

// GetTiming returns FPS and scanline count.
func (e *Emulator) GetTiming() emucore.Timing {
	return emucore.Timing{
		FPS:       e.timing.FPS,
		Scanlines: e.timing.Scanlines,
	}
}

// SetOption applies a core option change identified by key.
func (e *Emulator) SetOption(key string, value string) {
	switch key {
	case "hide_border":
		e.hideBorder = value == "true"
	case "full_speed":
		e.ctl.SetFullSpeed(value == "true")
	}
}

// Close stops any goroutine waiting on the emulator's Control.
func (e *Emulator) Close() {
	e.ctl.Stop()
}

// HasSRAM reports false: the 48K has no battery-backed memory.
func (e *Emulator) HasSRAM() bool {
	return false
}

// GetSRAM returns nil.
func (e *Emulator) GetSRAM() []byte {
	return nil
}

// SetSRAM is a no-op.
func (e *Emulator) SetSRAM(data []byte) {}

// =============================================================================
// Save State Serialization
// =============================================================================

// SerializeSize returns the total size in bytes needed for a save state.
func SerializeSize() int {
	return stateHeaderSize +
		z80.SerializeSize +
		ramSize + // RAM from $4000
		1 + // border
		8 + // keyboard half-rows
		1 + // flash phase
		1 + // INT asserted
		4 // T-state carry
}

// Serialize creates a save state and returns it as a byte slice.
func (e *Emulator) Serialize() ([]byte, error) {
	data := make([]byte, SerializeSize())

	copy(data[0:12], stateMagic)
	binary.LittleEndian.PutUint16(data[12:14], stateVersion)
	binary.LittleEndian.PutUint32(data[14:18], e.mem.GetROMCRC32())

	offset := stateHeaderSize

	e.cpu.Serialize(data[offset:])
	offset += z80.SerializeSize

	copy(data[offset:], e.mem.RAM())
	offset += ramSize

	data[offset] = e.io.Border()
	offset++

	rows := e.keyboard.rowState()
	copy(data[offset:], rows[:])
	offset += len(rows)

	data[offset] = boolByte(e.renderer.flashInvert)
	offset++
	data[offset] = boolByte(e.intAsserted)
	offset++
	binary.LittleEndian.PutUint32(data[offset:], uint32(int32(e.carry)))

	dataCRC := crc32.ChecksumIEEE(data[stateHeaderSize:])
	binary.LittleEndian.PutUint32(data[18:22], dataCRC)

	return data, nil
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// Deserialize restores emulator state from a save state byte slice.
func (e *Emulator) Deserialize(data []byte) error {
	if err := e.VerifyState(data); err != nil {
		return err
	}

	offset := stateHeaderSize

	e.cpu.Deserialize(data[offset:])
	offset += z80.SerializeSize

	e.mem.loadRAM(data[offset : offset+ramSize])
	offset += ramSize

	e.io.Out(0xFE, data[offset])
	offset++

	var rows [8]uint8
	copy(rows[:], data[offset:offset+len(rows)])
	e.keyboard.restoreRows(rows)
	offset += len(rows)

	e.renderer.flashInvert = data[offset] != 0
	offset++
	e.intAsserted = data[offset] != 0
	offset++
	e.carry = int(int32(binary.LittleEndian.Uint32(data[offset:])))

	e.cpu.INT(e.intAsserted, 0xFF)
	e.renderer.RefreshWholeScreen()
	e.pacer.invalidateStats()
	return nil
}

// VerifyState checks if a save state is valid without loading it.
func (e *Emulator) VerifyState(data []byte) error {
	if len(data) < SerializeSize() {
		return errors.New("save state too short")
	}

	if string(data[0:12]) != stateMagic {
		return errors.New("invalid save state magic")
	}

	version := binary.LittleEndian.Uint16(data[12:14])
	if version > stateVersion {
		return errors.New("unsupported save state version")
	}

	romCRC := binary.LittleEndian.Uint32(data[14:18])
	if romCRC != e.mem.GetROMCRC32() {
		return errors.New("save state is for a different ROM")
	}

	expectedCRC := binary.LittleEndian.Uint32(data[18:22])
	actualCRC := crc32.ChecksumIEEE(data[stateHeaderSize:SerializeSize()])
	if expectedCRC != actualCRC {
		return errors.New("save state data is corrupted")
	}

	return nil
}

// =============================================================================
// MemoryInspector interface
// =============================================================================

// ReadMemory reads from a flat address into buf and returns the number
// of bytes read. Flat address 0 is $4000; the 48KB of RAM is mapped.
func (e *Emulator) ReadMemory(addr uint32, buf []byte) uint32 {
	ram := e.mem.RAM()
	var count uint32
	for i := range buf {
		cur := addr + uint32(i)
		if cur >= uint32(len(ram)) {
			return count
		}
		buf[i] = ram[cur]
		count++
	}
	return count
}

// =============================================================================
// MemoryMapper interface
// =============================================================================

// MemoryMap returns a list of available memory regions with sizes.
func (e *Emulator) MemoryMap() []emucore.MemoryRegion {
	return []emucore.MemoryRegion{
		{Type: emucore.MemorySystemRAM, Size: ramSize},
	}
}

// ReadRegion returns a copy of the specified memory region.
func (e *Emulator) ReadRegion(regionType int) []byte {
	if regionType != emucore.MemorySystemRAM {
		return nil
	}
	out := make([]byte, ramSize)
	copy(out, e.mem.RAM())
	return out
}

// WriteRegion writes data to the specified memory region.
func (e *Emulator) WriteRegion(regionType int, data []byte) {
	if regionType != emucore.MemorySystemRAM {
		return
	}
	for i, b := range data {
		if i >= ramSize {
			break
		}
		e.mem.Write(uint16(ROMSize+i), b)
	}
}
