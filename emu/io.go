package emu

// ULA port handling. The ULA answers every even port: reads return the
// keyboard half-rows selected by the high address byte, writes set the
// border colour.
type ULAIO struct {
	Keyboard *Keyboard
	border   uint8
}

// NewULAIO creates the port bus. The border starts white.
func NewULAIO(kb *Keyboard) *ULAIO {
	return &ULAIO{
		Keyboard: kb,
		border:   7,
	}
}

// In reads a port. Odd ports are not decoded and float high.
func (u *ULAIO) In(port uint16) uint8 {
	if port&0x0001 != 0 {
		return 0xFF
	}
	return u.Keyboard.Read(uint8(port >> 8))
}

// Out writes a port. Bits 0-2 of an even port write select the border.
func (u *ULAIO) Out(port uint16, value uint8) {
	if port&0x0001 == 0 {
		u.border = value & 0x07
	}
}

// Border returns the current border colour index (0-7).
func (u *ULAIO) Border() uint8 {
	return u.border
}
