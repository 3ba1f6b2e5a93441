package emu

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
	"strings"
	"testing"

	emucore "github.com/user-none/eblitui/api"
)

// mapResolver serves snapshots from memory.
type mapResolver map[string][]byte

func (m mapResolver) Resolve(locator string) (string, io.ReadCloser, int, error) {
	data, ok := m[locator]
	if !ok {
		return "", nil, 0, errors.New("not found")
	}
	return locator, io.NopCloser(bytes.NewReader(data)), len(data), nil
}

// registerDumpProgram stores every register it can reach into $9000
// upwards, pushes AF and AF', then spins.
var registerDumpProgram = []byte{
	0xED, 0x73, 0x00, 0x90, // LD ($9000),SP
	0xED, 0x43, 0x02, 0x90, // LD ($9002),BC
	0xED, 0x53, 0x04, 0x90, // LD ($9004),DE
	0x22, 0x06, 0x90,       // LD ($9006),HL
	0xDD, 0x22, 0x08, 0x90, // LD ($9008),IX
	0xFD, 0x22, 0x0A, 0x90, // LD ($900A),IY
	0xF5,                   // PUSH AF
	0xD9,                   // EXX
	0xED, 0x43, 0x0C, 0x90, // LD ($900C),BC
	0xED, 0x53, 0x0E, 0x90, // LD ($900E),DE
	0x22, 0x10, 0x90,       // LD ($9010),HL
	0x08,                   // EX AF,AF'
	0xF5,                   // PUSH AF
	0xED, 0x57,             // LD A,I
	0x32, 0x12, 0x90,       // LD ($9012),A
	0x18, 0xFE,             // JR $
}

// registerDumpSnapshot returns an uncompressed .z80 that runs
// registerDumpProgram at $8000 with the registers of z80V1Registers.
func registerDumpSnapshot() []byte {
	hdr := z80V1Registers()
	hdr[12] = 0x04 // border 2, uncompressed
	ram := make([]byte, ramSize)
	copy(ram[0x8000-ROMSize:], registerDumpProgram)
	return append(hdr, ram...)
}

// TestEmulator_LoadSnapshotRegisters tests that a loaded snapshot
// resumes with its registers in place
func TestEmulator_LoadSnapshotRegisters(t *testing.T) {
	e := newTestEmulator()
	data := registerDumpSnapshot()

	if err := e.LoadSnapshot("dump.z80", bytes.NewReader(data), len(data)); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if got := e.io.Border(); got != 2 {
		t.Errorf("border: expected 2, got %d", got)
	}
	e.RunFrame()

	testCases := []struct {
		name string
		addr uint16
		want uint16
	}{
		{"SP", 0x9000, 0xFFF0},
		{"BC", 0x9002, 0x7856},
		{"DE", 0x9004, 0x2211},
		{"HL", 0x9006, 0xBC9A},
		{"IX", 0x9008, 0xEEDD},
		{"IY", 0x900A, 0xCCBB},
		{"BC'", 0x900C, 0x4433},
		{"DE'", 0x900E, 0x6655},
		{"HL'", 0x9010, 0x8877},
		{"AF", 0xFFEE, 0x1234},
		{"AF'", 0xFFEC, 0x99AA},
	}
	for _, tc := range testCases {
		if got := e.mem.ReadWord(tc.addr); got != tc.want {
			t.Errorf("%s: expected 0x%04X, got 0x%04X", tc.name, tc.want, got)
		}
	}
	if got := e.mem.Read(0x9012); got != 0x3F {
		t.Errorf("I: expected 0x3F, got 0x%02X", got)
	}
	if !e.cpu.Registers().IFF1 {
		t.Error("IFF1: expected interrupts enabled")
	}
}

// TestEmulator_LoadSnapshotInterruptFlags tests that both interrupt
// flip-flops and the other control registers reach the CPU unchanged
func TestEmulator_LoadSnapshotInterruptFlags(t *testing.T) {
	testCases := []struct {
		name       string
		iff1, iff2 uint8
	}{
		{"enabled", 1, 1},
		{"iff1 only", 1, 0},
		{"iff2 only", 0, 1},
		{"disabled", 0, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEmulator()
			data := registerDumpSnapshot()
			data[27] = tc.iff1
			data[28] = tc.iff2

			if err := e.LoadSnapshot("flags.z80", bytes.NewReader(data), len(data)); err != nil {
				t.Fatalf("LoadSnapshot: %v", err)
			}

			regs := e.cpu.Registers()
			if regs.IFF1 != (tc.iff1 != 0) {
				t.Errorf("IFF1: expected %v, got %v", tc.iff1 != 0, regs.IFF1)
			}
			if regs.IFF2 != (tc.iff2 != 0) {
				t.Errorf("IFF2: expected %v, got %v", tc.iff2 != 0, regs.IFF2)
			}
			if regs.IM != 2 {
				t.Errorf("IM: expected 2, got %d", regs.IM)
			}
			if regs.I != 0x3F {
				t.Errorf("I: expected 0x3F, got 0x%02X", regs.I)
			}
			if regs.R != 0x05 {
				t.Errorf("R: expected 0x05, got 0x%02X", regs.R)
			}
			if regs.PC != 0x8000 {
				t.Errorf("PC: expected 0x8000, got 0x%04X", regs.PC)
			}
			if regs.SP != 0xFFF0 {
				t.Errorf("SP: expected 0xFFF0, got 0x%04X", regs.SP)
			}
			if regs.AF_ != 0x99AA {
				t.Errorf("AF': expected 0x99AA, got 0x%04X", regs.AF_)
			}
			if regs.Halted {
				t.Error("Halted: expected false")
			}
		})
	}
}

// TestEmulator_LoadSnapshotFailure tests that a rejected snapshot is
// reported on the status display
func TestEmulator_LoadSnapshotFailure(t *testing.T) {
	p := &recordingProgress{}
	e, err := NewEmulator(createTestROM(), Options{Progress: p})
	if err != nil {
		t.Fatal(err)
	}

	data := z80Extended(40, 0x8000, 0)
	err = e.LoadSnapshot("odd.z80", bytes.NewReader(data), len(data))
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
	if !strings.Contains(p.lastText(), ErrUnsupportedVersion.Error()) {
		t.Errorf("status: expected the error shown, got %q", p.lastText())
	}
	if p.shown {
		t.Error("expected the progress bar hidden")
	}
}

// TestEmulator_LoadLocator tests locator resolution
func TestEmulator_LoadLocator(t *testing.T) {
	e := newTestEmulator()
	if err := e.LoadLocator("dump.z80"); !errors.Is(err, ErrNoResolver) {
		t.Errorf("no resolver: expected ErrNoResolver, got %v", err)
	}

	e, err := NewEmulator(createTestROM(), Options{
		Resolver: mapResolver{"dump.z80": registerDumpSnapshot()},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.LoadLocator("missing.sna"); err == nil {
		t.Error("missing locator: expected an error")
	}
	if err := e.LoadLocator("dump.z80"); err != nil {
		t.Fatalf("LoadLocator: %v", err)
	}
	if got := e.mem.Read(0x8000); got != 0xED {
		t.Errorf("program: expected 0xED at $8000, got 0x%02X", got)
	}
}

// TestEmulator_RequestedLoad tests that a load posted on the Control is
// performed by the frame loop
func TestEmulator_RequestedLoad(t *testing.T) {
	data := registerDumpSnapshot()
	data[27] = 0 // IFF1
	e, err := NewEmulator(createTestROM(), Options{
		Resolver: mapResolver{"dump.z80": data},
	})
	if err != nil {
		t.Fatal(err)
	}
	e.pacer.sleep = nopSleep

	e.Control().RequestLoad("dump.z80")
	e.RunFrame()
	if got := e.mem.Read(0x8000); got != 0xED {
		t.Fatalf("program: expected it loaded, got 0x%02X at $8000", got)
	}

	e.RunFrame()
	if got := e.mem.ReadWord(0x9000); got != 0xFFF0 {
		t.Errorf("program did not run: expected SP 0xFFF0 stored, got 0x%04X", got)
	}
}

// TestEmulator_HaltedFrames tests that frames complete with the CPU halted
func TestEmulator_HaltedFrames(t *testing.T) {
	rom := createTestROM()
	rom[2] = 0x76 // HALT with interrupts off
	e, err := NewEmulator(rom, Options{})
	if err != nil {
		t.Fatal(err)
	}
	e.pacer.sleep = nopSleep

	for i := 0; i < 5; i++ {
		e.RunFrame()
		if e.carry < 0 || e.carry >= e.timing.IntHoldTStates {
			t.Fatalf("frame %d: carry out of range: %d", i, e.carry)
		}
	}
	if err := e.Err(); err != nil {
		t.Errorf("Err: %v", err)
	}
}

// TestEmulator_Reset tests that Reset restores the white border
func TestEmulator_Reset(t *testing.T) {
	e := newTestEmulator()
	e.io.Out(0xFE, 2)
	e.RunFrame()

	e.Reset()
	if got := e.io.Border(); got != 7 {
		t.Errorf("border after reset: expected 7, got %d", got)
	}
	if e.intAsserted || e.carry != 0 {
		t.Errorf("reset: expected INT clear and no carry, got %v/%d", e.intAsserted, e.carry)
	}
}

// TestEmulator_Timing tests the reported frame timing
func TestEmulator_Timing(t *testing.T) {
	e := newTestEmulator()

	timing := e.GetTiming()
	if timing.FPS != 50 || timing.Scanlines != 312 {
		t.Errorf("timing: expected 50/312, got %d/%d", timing.FPS, timing.Scanlines)
	}
	if got := len(e.GetAudioSamples()); got != 1920 {
		t.Errorf("audio samples: expected 1920, got %d", got)
	}
	if e.GetRegion() != RegionPAL {
		t.Errorf("region: expected PAL, got %v", e.GetRegion())
	}
}

// =============================================================================
// Save State Tests
// =============================================================================

// TestSerializeSize tests that the state size covers every field
func TestSerializeSize(t *testing.T) {
	e := newTestEmulator()
	state, err := e.Serialize()
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	if len(state) != SerializeSize() {
		t.Errorf("state length: expected %d, got %d", SerializeSize(), len(state))
	}
	if SerializeSize() < stateHeaderSize+ramSize {
		t.Errorf("SerializeSize too small: %d", SerializeSize())
	}
}

// TestSerializeDeserializeRoundTrip tests save state round-trip
func TestSerializeDeserializeRoundTrip(t *testing.T) {
	e := newTestEmulator()
	e.RunFrame()

	e.mem.Write(0xC000, 0xAB)
	e.mem.Write(0x4000, 0xCD)
	e.io.Out(0xFE, 3)
	e.keyboard.SetKey(true, 'a', 0)
	e.renderer.ToggleFlash()

	state, err := e.Serialize()
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	carry, intAsserted := e.carry, e.intAsserted

	e.mem.Write(0xC000, 0xFF)
	e.mem.Write(0x4000, 0x00)
	e.io.Out(0xFE, 0)
	e.keyboard.Reset()
	e.renderer.ToggleFlash()
	e.carry = 999
	e.intAsserted = !intAsserted

	if err := e.Deserialize(state); err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}

	if got := e.mem.Read(0xC000); got != 0xAB {
		t.Errorf("RAM[0xC000]: expected 0xAB, got 0x%02X", got)
	}
	if got := e.mem.Read(0x4000); got != 0xCD {
		t.Errorf("RAM[0x4000]: expected 0xCD, got 0x%02X", got)
	}
	if got := e.io.Border(); got != 3 {
		t.Errorf("border: expected 3, got %d", got)
	}
	if got := e.keyboard.Row(1); got != 0xFE {
		t.Errorf("keyboard: expected A held, got 0x%02X", got)
	}
	if !e.renderer.FlashInverted() {
		t.Error("flash phase not restored")
	}
	if e.carry != carry || e.intAsserted != intAsserted {
		t.Errorf("frame state: expected %d/%v, got %d/%v", carry, intAsserted, e.carry, e.intAsserted)
	}
	if got := e.renderer.pixels.len(); got != pixelCells {
		t.Errorf("redraw: expected whole screen queued, got %d cells", got)
	}
}

// TestSerialize_StateIntegrity tests that serialized state has correct format
func TestSerialize_StateIntegrity(t *testing.T) {
	e := newTestEmulator()

	state, err := e.Serialize()
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	if string(state[0:12]) != stateMagic {
		t.Errorf("Magic bytes: expected %q, got %q", stateMagic, string(state[0:12]))
	}
	if version := binary.LittleEndian.Uint16(state[12:14]); version != stateVersion {
		t.Errorf("Version: expected %d, got %d", stateVersion, version)
	}
	if romCRC := binary.LittleEndian.Uint32(state[14:18]); romCRC != e.mem.GetROMCRC32() {
		t.Errorf("ROM CRC32: expected 0x%08X, got 0x%08X", e.mem.GetROMCRC32(), romCRC)
	}
	dataCRC := binary.LittleEndian.Uint32(state[18:22])
	if calculated := crc32.ChecksumIEEE(state[stateHeaderSize:]); dataCRC != calculated {
		t.Errorf("Data CRC32: expected 0x%08X, got 0x%08X", calculated, dataCRC)
	}
}

// TestVerifyState tests rejection of damaged and foreign states
func TestVerifyState(t *testing.T) {
	e := newTestEmulator()
	state, err := e.Serialize()
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	if err := e.VerifyState(state); err != nil {
		t.Fatalf("VerifyState should pass for valid state: %v", err)
	}

	testCases := []struct {
		name   string
		damage func(s []byte) []byte
	}{
		{"magic", func(s []byte) []byte { s[0] = 'X'; return s }},
		{"version", func(s []byte) []byte {
			binary.LittleEndian.PutUint16(s[12:14], 9999)
			return s
		}},
		{"data", func(s []byte) []byte { s[stateHeaderSize+5] ^= 0xFF; return s }},
		{"too short", func(s []byte) []byte { return s[:stateHeaderSize-1] }},
		{"truncated", func(s []byte) []byte { return s[:len(s)-1] }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			damaged := tc.damage(append([]byte(nil), state...))
			if err := e.VerifyState(damaged); err == nil {
				t.Error("VerifyState should reject the state")
			}
			if err := e.Deserialize(damaged); err == nil {
				t.Error("Deserialize should reject the state")
			}
		})
	}

	rom := createTestROM()
	rom[100] = 0x55
	other, err := NewEmulator(rom, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := other.VerifyState(state); err == nil {
		t.Error("VerifyState should reject state from different ROM")
	}
}

// TestDeserialize_PreservesRegion tests that region is not changed by load
func TestDeserialize_PreservesRegion(t *testing.T) {
	e := newTestEmulator()
	state, err := e.Serialize()
	if err != nil {
		t.Fatal(err)
	}

	e.SetRegion(RegionNTSC)
	if err := e.Deserialize(state); err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}
	if e.GetRegion() != RegionNTSC {
		t.Errorf("Region should be preserved, got %v", e.GetRegion())
	}
}

// =============================================================================
// Input and Framebuffer Tests
// =============================================================================

// TestEmulator_SetInput tests the joypad to keyboard mapping
func TestEmulator_SetInput(t *testing.T) {
	testCases := []struct {
		name   string
		button int
		row    int
		want   uint8
	}{
		{"up", int(emucore.ButtonUp), 4, 0xF7},
		{"down", int(emucore.ButtonDown), 4, 0xEF},
		{"left", int(emucore.ButtonLeft), 3, 0xEF},
		{"right", int(emucore.ButtonRight), 4, 0xFB},
		{"fire", 4, 4, 0xFE},
		{"enter", 5, 6, 0xFE},
		{"space", 7, 7, 0xFE},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEmulator()
			e.SetInput(0, 1<<tc.button)
			if got := e.keyboard.Row(tc.row); got != tc.want {
				t.Errorf("pressed: expected row %d = 0x%02X, got 0x%02X", tc.row, tc.want, got)
			}
			e.SetInput(0, 0)
			if !allIdle(e.keyboard) {
				t.Error("released: expected every row idle")
			}
		})
	}
}

// TestEmulator_SetInput_EdgeOnly tests that held buttons do not fight
// the host keyboard and that player 2 is ignored
func TestEmulator_SetInput_EdgeOnly(t *testing.T) {
	e := newTestEmulator()

	e.SetInput(0, 1<<4)
	e.keyboard.SetKey(false, '0', 0)
	e.SetInput(0, 1<<4)
	if got := e.keyboard.Row(4); got != 0xFF {
		t.Errorf("held button: expected no repeat press, got 0x%02X", got)
	}

	e.SetInput(1, 0xFF)
	if !allIdle(e.keyboard) {
		t.Error("player 2: expected no keys pressed")
	}
}

// TestEmulator_HideBorder tests framebuffer geometry with and without
// the border
func TestEmulator_HideBorder(t *testing.T) {
	e := newTestEmulator()
	e.mem.Write(0x4000, 0x80)
	e.mem.Write(0x5800, 0x38|0x02)
	e.RunFrame()

	if stride := e.GetFramebufferStride(); stride != ScreenWidth*4 {
		t.Errorf("Normal stride: expected %d, got %d", ScreenWidth*4, stride)
	}
	if h := e.GetActiveHeight(); h != MaxScreenHeight {
		t.Errorf("Normal height: expected %d, got %d", MaxScreenHeight, h)
	}
	if got := len(e.GetFramebuffer()); got != ScreenWidth*MaxScreenHeight*4 {
		t.Errorf("Normal framebuffer length: expected %d, got %d", ScreenWidth*MaxScreenHeight*4, got)
	}

	e.SetOption("hide_border", "true")
	stride := e.GetFramebufferStride()
	if stride != ScreenPixelsWide*4 {
		t.Errorf("Cropped stride: expected %d, got %d", ScreenPixelsWide*4, stride)
	}
	if h := e.GetActiveHeight(); h != ScreenPixelsHigh {
		t.Errorf("Cropped height: expected %d, got %d", ScreenPixelsHigh, h)
	}
	fb := e.GetFramebuffer()
	if len(fb) != stride*ScreenPixelsHigh {
		t.Fatalf("Cropped framebuffer length: expected %d, got %d", stride*ScreenPixelsHigh, len(fb))
	}
	red := Palette[2]
	if fb[0] != red.R || fb[1] != red.G || fb[2] != red.B {
		t.Errorf("Cropped pixel (0,0): expected red ink, got %v", fb[0:4])
	}

	e.SetOption("hide_border", "false")
	if stride := e.GetFramebufferStride(); stride != ScreenWidth*4 {
		t.Errorf("Restored stride: expected %d, got %d", ScreenWidth*4, stride)
	}
}

// TestEmulator_NoBorder tests an emulator built without a border
func TestEmulator_NoBorder(t *testing.T) {
	e, err := NewEmulator(createTestROM(), Options{Border: -1, Scale: 2})
	if err != nil {
		t.Fatal(err)
	}
	b := e.Surface().Bounds()
	if b.Dx() != ScreenPixelsWide*2 || b.Dy() != ScreenPixelsHigh*2 {
		t.Errorf("frame: expected %dx%d, got %dx%d", ScreenPixelsWide*2, ScreenPixelsHigh*2, b.Dx(), b.Dy())
	}
}

// TestEmulator_Options tests core option handling
func TestEmulator_Options(t *testing.T) {
	e := newTestEmulator()

	e.SetOption("full_speed", "false")
	if e.Control().FullSpeed() {
		t.Error("full_speed=false: expected throttling on")
	}
	e.SetOption("full_speed", "true")
	if !e.Control().FullSpeed() {
		t.Error("full_speed=true: expected throttling off")
	}

	e.Close()
	if e.Control().ShouldRun() {
		t.Error("Close: expected the control stopped")
	}
}

// =============================================================================
// Memory Interface Tests
// =============================================================================

// TestEmulator_SRAM tests that the machine reports no battery RAM
func TestEmulator_SRAM(t *testing.T) {
	e := newTestEmulator()
	if e.HasSRAM() {
		t.Error("HasSRAM should return false")
	}
	if e.GetSRAM() != nil {
		t.Error("GetSRAM should return nil")
	}
}

// TestEmulator_ReadMemory tests flat address memory reading
func TestEmulator_ReadMemory(t *testing.T) {
	e := newTestEmulator()
	e.mem.Write(0x4000, 0xDE)
	e.mem.Write(0x4001, 0xAD)
	e.mem.Write(0xFFFF, 0xEF)

	buf := make([]byte, 4)
	if n := e.ReadMemory(0, buf); n != 4 {
		t.Errorf("ReadMemory: expected 4 bytes read, got %d", n)
	}
	if buf[0] != 0xDE || buf[1] != 0xAD {
		t.Errorf("ReadMemory: expected [0xDE, 0xAD, ...], got [0x%02X, 0x%02X, ...]", buf[0], buf[1])
	}

	if n := e.ReadMemory(ramSize-1, buf); n != 1 || buf[0] != 0xEF {
		t.Errorf("ReadMemory at end: expected 1 byte 0xEF, got %d bytes 0x%02X", n, buf[0])
	}
	if n := e.ReadMemory(ramSize, buf); n != 0 {
		t.Errorf("ReadMemory past boundary: expected 0 bytes, got %d", n)
	}
}

// TestEmulator_MemoryMap tests memory region listing
func TestEmulator_MemoryMap(t *testing.T) {
	e := newTestEmulator()

	regions := e.MemoryMap()
	if len(regions) != 1 {
		t.Fatalf("MemoryMap: expected 1 region, got %d", len(regions))
	}
	if regions[0].Type != emucore.MemorySystemRAM || regions[0].Size != ramSize {
		t.Errorf("System RAM: expected type %d size 0x%X, got %d 0x%X",
			emucore.MemorySystemRAM, ramSize, regions[0].Type, regions[0].Size)
	}
}

// TestEmulator_ReadWriteRegion tests region read/write round-trip
func TestEmulator_ReadWriteRegion(t *testing.T) {
	e := newTestEmulator()
	e.RunFrame()

	data := make([]byte, ramSize)
	data[0] = 0xBE
	data[ramSize-1] = 0xEF
	e.WriteRegion(emucore.MemorySystemRAM, data)

	result := e.ReadRegion(emucore.MemorySystemRAM)
	if result[0] != 0xBE || result[ramSize-1] != 0xEF {
		t.Errorf("ReadRegion: expected [0xBE ... 0xEF], got [0x%02X ... 0x%02X]", result[0], result[ramSize-1])
	}
	if got := e.renderer.pixels.len(); got != 1 {
		t.Errorf("display write: expected 1 cell queued, got %d", got)
	}
	if e.ReadRegion(emucore.MemorySaveRAM) != nil {
		t.Error("ReadRegion(SaveRAM): expected nil")
	}
}
