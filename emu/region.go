package emu

import emucore "github.com/user-none/eblitui/api"

// Region is an alias for emucore.Region.
type Region = emucore.Region

const (
	RegionNTSC = emucore.RegionNTSC
	RegionPAL  = emucore.RegionPAL
)

// MachineTiming holds the frame timing of the machine.
type MachineTiming struct {
	CPUClockHz      int // Z80 clock frequency
	TStatesPerFrame int // CPU cycles between frame interrupts
	Scanlines       int // Total scanlines per frame
	FPS             int // Frames per second
	IntHoldTStates  int // How long the ULA holds INT low
}

// SpectrumTiming is the 48K machine: 3.5 MHz, 312 lines of 224 T-states, 50 Hz.
var SpectrumTiming = MachineTiming{
	CPUClockHz:      3500000,
	TStatesPerFrame: 69888,
	Scanlines:       312,
	FPS:             50,
	IntHoldTStates:  32,
}

// DefaultRegion returns PAL. The 48K was only built as a 50 Hz machine.
func DefaultRegion() Region {
	return RegionPAL
}

// DetectRegion always reports PAL. Snapshots carry no region and every
// supported machine type runs at 50 Hz.
func DetectRegion(data []byte) (Region, bool) {
	return RegionPAL, true
}
