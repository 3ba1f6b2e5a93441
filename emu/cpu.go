package emu

import z80 "github.com/user-none/go-chip-z80"

// Registers is the Z80 register file as stored in snapshots.
type Registers struct {
	AF, BC, DE, HL             uint16
	AltAF, AltBC, AltDE, AltHL uint16
	IX, IY, SP, PC             uint16
	I, R                       uint8
	IFF1, IFF2                 bool
	IM                         uint8
}

// Exx swaps BC, DE and HL with their shadow registers.
func (r *Registers) Exx() {
	r.BC, r.AltBC = r.AltBC, r.BC
	r.DE, r.AltDE = r.AltDE, r.DE
	r.HL, r.AltHL = r.AltHL, r.HL
}

// ExAF swaps AF with AF'.
func (r *Registers) ExAF() {
	r.AF, r.AltAF = r.AltAF, r.AF
}

// toCPU converts the snapshot register file to the CPU's layout.
func (r *Registers) toCPU() z80.Registers {
	return z80.Registers{
		AF: r.AF, BC: r.BC, DE: r.DE, HL: r.HL,
		AF_: r.AltAF, BC_: r.AltBC, DE_: r.AltDE, HL_: r.AltHL,
		IX: r.IX, IY: r.IY,
		SP: r.SP, PC: r.PC,
		I: r.I, R: r.R,
		IFF1: r.IFF1, IFF2: r.IFF2,
		IM: r.IM,
	}
}

// loadRegisters resets cpu and installs regs.
func loadRegisters(cpu *z80.CPU, regs Registers) {
	cpu.Reset()
	cpu.SetState(regs.toCPU())
}
