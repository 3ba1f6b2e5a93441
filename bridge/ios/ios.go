// Package emuios provides a gomobile-compatible interface to the emulator.
package emuios

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"github.com/user-none/ezx48/emu"
	"github.com/user-none/ezx48/romloader"
)

// ExtractResult contains the result of snapshot extraction
type ExtractResult struct {
	Crc32    string // Hex string, e.g., "AABBCCDD"
	Filename string // Original filename from archive, e.g., "Manic Miner.z80"
}

// fs is the filesystem every path is resolved against.
var fs afero.Fs = afero.NewOsFs()

// currentEmu holds the emulator state (unexported)
var currentEmu *emulatorState

type emulatorState struct {
	emulator  *emu.Emulator
	status    *statusText
	frameData []byte
	stateData []byte
}

// statusText keeps the latest status line for the host UI.
type statusText struct {
	mu       sync.Mutex
	text     string
	fraction float64
}

func (s *statusText) SetText(t string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = t
}

func (s *statusText) SetTotal(int) {}

func (s *statusText) SetProgress(f float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fraction = f
}

func (s *statusText) Show(show bool) {
	if !show {
		s.SetProgress(0)
	}
}

// Init creates an emulator from a system ROM path and, unless
// snapshotPath is empty, loads a snapshot into it. Both paths may name
// archives. Returns true on success, false on error.
func Init(romPath, snapshotPath string) bool {
	loader := romloader.New(fs)
	rom, err := loader.LoadSystemROM(romPath)
	if err != nil {
		return false
	}

	status := &statusText{}
	e, err := emu.NewEmulator(rom, emu.Options{Progress: status, Resolver: loader})
	if err != nil {
		return false
	}
	if snapshotPath != "" {
		if err := e.LoadLocator(snapshotPath); err != nil {
			return false
		}
	}
	currentEmu = &emulatorState{emulator: e, status: status}
	return true
}

// Close releases the emulator.
func Close() {
	if currentEmu != nil {
		currentEmu.emulator.Close()
	}
	currentEmu = nil
}

// RunFrame executes one frame of emulation.
func RunFrame() {
	if currentEmu == nil {
		return
	}
	currentEmu.emulator.RunFrame()

	// Cache frame buffer
	fb := currentEmu.emulator.GetFramebuffer()
	n := currentEmu.emulator.GetFramebufferStride() * currentEmu.emulator.GetActiveHeight()
	currentEmu.frameData = fb[:n]
}

// FrameWidth returns the frame width including the border.
func FrameWidth() int {
	if currentEmu == nil {
		return emu.ScreenWidth
	}
	return currentEmu.emulator.GetFramebufferStride() / 4
}

// FrameHeight returns the frame height including the border.
func FrameHeight() int {
	if currentEmu == nil {
		return emu.MaxScreenHeight
	}
	return currentEmu.emulator.GetActiveHeight()
}

// GetFrameData returns the RGBA frame buffer.
func GetFrameData() []byte {
	if currentEmu == nil {
		return nil
	}
	return currentEmu.frameData
}

// SetInput sets the joypad state as a button bitmask (bits 0-3 = up,
// down, left, right; 4 = fire; 5 = ENTER; 7 = SPACE).
func SetInput(buttons int) {
	if currentEmu != nil {
		currentEmu.emulator.SetInput(0, uint32(buttons))
	}
}

// KeyEvent presses or releases the matrix keys for a character.
// mods: 1 = Shift, 2 = CAPS SHIFT, 4 = SYMBOL SHIFT.
func KeyEvent(down bool, code int, mods int) {
	if currentEmu == nil {
		return
	}
	switch currentEmu.emulator.Keyboard().SetKey(down, rune(code), emu.Modifier(mods)) {
	case emu.KeyReset:
		currentEmu.emulator.Control().RequestReset()
	case emu.KeyPause:
		currentEmu.emulator.Control().TogglePause()
	}
}

// TypeText queues text to be typed into the matrix.
func TypeText(text string) {
	if currentEmu != nil {
		currentEmu.emulator.Keyboard().Type(text)
	}
}

// Reset requests a machine reset at the next frame.
func Reset() {
	if currentEmu != nil {
		currentEmu.emulator.Control().RequestReset()
	}
}

// LoadSnapshot requests a snapshot load at the next frame.
func LoadSnapshot(path string) {
	if currentEmu != nil {
		currentEmu.emulator.Control().RequestLoad(path)
	}
}

// SetFullSpeed switches throttling to 50 frames per second off or on.
func SetFullSpeed(on bool) {
	if currentEmu != nil {
		currentEmu.emulator.SetOption("full_speed", fmt.Sprint(on))
	}
}

// StatusClick cancels the sleep delay or toggles full speed.
func StatusClick() {
	if currentEmu != nil {
		currentEmu.emulator.Control().Click()
	}
}

// StatusText returns the status line.
func StatusText() string {
	if currentEmu == nil {
		return ""
	}
	currentEmu.status.mu.Lock()
	defer currentEmu.status.mu.Unlock()
	return currentEmu.status.text
}

// SaveState creates a save state. Returns true on success.
func SaveState() bool {
	if currentEmu == nil {
		return false
	}
	data, err := currentEmu.emulator.Serialize()
	if err != nil {
		currentEmu.stateData = nil
		return false
	}
	currentEmu.stateData = data
	return true
}

// StateLen returns the length of the last saved state.
func StateLen() int {
	if currentEmu == nil {
		return 0
	}
	return len(currentEmu.stateData)
}

// StateByte returns a single byte from the saved state at index i.
func StateByte(i int) int {
	if currentEmu == nil || i < 0 || i >= len(currentEmu.stateData) {
		return 0
	}
	return int(currentEmu.stateData[i])
}

// LoadState loads a save state. Returns true on success.
func LoadState(data []byte) bool {
	if currentEmu == nil {
		return false
	}
	return currentEmu.emulator.Deserialize(data) == nil
}

// GetFPS returns the target FPS.
func GetFPS() int {
	return emu.SpectrumTiming.FPS
}

// GetCRC32FromPath calculates the CRC32 checksum of a snapshot.
// Automatically extracts from archives if needed.
// Returns -1 on error.
func GetCRC32FromPath(path string) int64 {
	data, _, err := romloader.New(fs).LoadSnapshot(path)
	if err != nil {
		return -1
	}

	return int64(crc32.ChecksumIEEE(data))
}

// ExtractAndStoreSnapshot extracts a snapshot from an archive (or copies
// a raw one), calculates its CRC32, and stores it as
// {destDir}/{CRC32}.{sna|z80}. If a file with the same CRC32 already
// exists, it skips writing.
func ExtractAndStoreSnapshot(srcPath, destDir string) (*ExtractResult, error) {
	data, filename, err := romloader.New(fs).LoadSnapshot(srcPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	// Calculate CRC32
	crc := crc32.ChecksumIEEE(data)
	crcHex := fmt.Sprintf("%08X", crc)

	// Build destination path
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".sna" && ext != ".z80" {
		ext = ".z80"
	}
	destPath := filepath.Join(destDir, crcHex+ext)

	// Skip write if file already exists (same CRC = same content)
	if ok, _ := afero.Exists(fs, destPath); ok {
		return &ExtractResult{Crc32: crcHex, Filename: filename}, nil
	}

	// Write extracted snapshot
	if err := afero.WriteReader(fs, destPath, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to write snapshot: %w", err)
	}

	return &ExtractResult{Crc32: crcHex, Filename: filename}, nil
}
