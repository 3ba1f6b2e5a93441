package emu

import (
	"strings"
	"sync"
)

// Modifier is a bitmask of host modifier keys.
type Modifier uint8

const (
	ModShift  Modifier = 1 << iota // host Shift: extended meaning for Space, Enter and the arrows
	ModCaps                        // CAPS SHIFT (host Ctrl)
	ModSymbol                      // SYMBOL SHIFT (host Alt/Meta)
)

// Key codes for host keys without a character. They live in the
// Unicode private use area so they never collide with typed text.
const (
	KeyLeft rune = 0xE000 + iota
	KeyDown
	KeyUp
	KeyRight
	KeyHome
	KeyEnd
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
)

const (
	KeyEscape    rune = 0x1B
	KeyBackspace rune = 0x08
	KeyDelete    rune = 0x7F
)

// KeyResult reports what a key event did.
type KeyResult int

const (
	KeyUnhandled KeyResult = iota
	KeyHandled
	KeyReset // request a machine reset
	KeyPause // request pause or resume
)

// zxKey identifies one physical key. Keys are numbered in half-row
// order so (k-1)/5 is the half-row and (k-1)%5 the bit within it.
type zxKey uint8

const (
	zxNone zxKey = iota

	// half-row 0, port FEFE
	zxCaps
	zxZ
	zxX
	zxC
	zxV

	// half-row 1, port FDFE
	zxA
	zxS
	zxD
	zxF
	zxG

	// half-row 2, port FBFE
	zxQ
	zxW
	zxE
	zxR
	zxT

	// half-row 3, port F7FE
	zx1
	zx2
	zx3
	zx4
	zx5

	// half-row 4, port EFFE
	zx0
	zx9
	zx8
	zx7
	zx6

	// half-row 5, port DFFE
	zxP
	zxO
	zxI
	zxU
	zxY

	// half-row 6, port BFFE
	zxEnter
	zxL
	zxK
	zxJ
	zxH

	// half-row 7, port 7FFE
	zxSpace
	zxSymbol
	zxM
	zxN
	zxB
)

func (k zxKey) cell() (row int, mask uint8) {
	return int(k-1) / 5, 1 << (uint(k-1) % 5)
}

// chord is the physical key plus the shifts a host key implies.
type chord struct {
	key         zxKey
	caps        bool // always press CAPS SHIFT
	symb        bool // always press SYMBOL SHIFT
	capsByShift bool // CAPS SHIFT follows host Shift
}

var keymap = buildKeymap()

func buildKeymap() map[rune]chord {
	m := map[rune]chord{
		'0': {key: zx0}, '1': {key: zx1}, '2': {key: zx2}, '3': {key: zx3}, '4': {key: zx4},
		'5': {key: zx5}, '6': {key: zx6}, '7': {key: zx7}, '8': {key: zx8}, '9': {key: zx9},

		' ':  {key: zxSpace, capsByShift: true},
		'\n': {key: zxEnter, capsByShift: true},
		'\r': {key: zxEnter, capsByShift: true},
		'\t': {caps: true, symb: true},

		KeyBackspace: {key: zx0, caps: true},
		KeyDelete:    {key: zx0, caps: true},

		'!': {key: zx1, symb: true}, '@': {key: zx2, symb: true}, '#': {key: zx3, symb: true},
		'$': {key: zx4, symb: true}, '%': {key: zx5, symb: true}, '&': {key: zx6, symb: true},
		'\'': {key: zx7, symb: true}, '(': {key: zx8, symb: true}, ')': {key: zx9, symb: true},
		'_': {key: zx0, symb: true},

		'<': {key: zxR, symb: true}, '>': {key: zxT, symb: true}, ';': {key: zxO, symb: true},
		'"': {key: zxP, symb: true}, '^': {key: zxH, symb: true}, '-': {key: zxJ, symb: true},
		'+': {key: zxK, symb: true}, '=': {key: zxL, symb: true}, ':': {key: zxZ, symb: true},
		'£': {key: zxX, symb: true}, '?': {key: zxC, symb: true}, '/': {key: zxV, symb: true},
		'*': {key: zxB, symb: true}, ',': {key: zxN, symb: true}, '.': {key: zxM, symb: true},

		'[': {key: zxY, symb: true}, ']': {key: zxU, symb: true}, '~': {key: zxA, symb: true},
		'|': {key: zxS, symb: true}, '\\': {key: zxD, symb: true}, '{': {key: zxF, symb: true},
		'}': {key: zxF, symb: true},

		KeyLeft:  {key: zx5, capsByShift: true},
		KeyDown:  {key: zx6, capsByShift: true},
		KeyUp:    {key: zx7, capsByShift: true},
		KeyRight: {key: zx8, capsByShift: true},

		KeyF11: {caps: true},
		KeyF12: {symb: true},
	}

	letters := []zxKey{
		zxA, zxB, zxC, zxD, zxE, zxF, zxG, zxH, zxI, zxJ, zxK, zxL, zxM,
		zxN, zxO, zxP, zxQ, zxR, zxS, zxT, zxU, zxV, zxW, zxX, zxY, zxZ,
	}
	for i, k := range letters {
		m[rune('a'+i)] = chord{key: k}
		m[rune('A'+i)] = chord{key: k, caps: true}
	}

	digits := []zxKey{zx1, zx2, zx3, zx4, zx5, zx6, zx7, zx8, zx9, zx0}
	for i, k := range digits {
		m[KeyF1+rune(i)] = chord{key: k, caps: true}
	}

	return m
}

// Type-in timing, in frames.
const (
	typeHoldFrames = 3
	typeGapFrames  = 3
	maxTypeRunes   = 4096
)

// Keyboard is the 8x5 key matrix. Each half-row register holds one bit
// per key, 0 = pressed. Key events arrive from the UI goroutine while
// the CPU reads ports, so all access is locked.
type Keyboard struct {
	mu   sync.Mutex
	rows [8]uint8

	pending   []rune
	typing    rune
	typeTimer int
}

// NewKeyboard creates a keyboard with every key released.
func NewKeyboard() *Keyboard {
	k := &Keyboard{}
	k.reset()
	return k
}

// Reset releases every key and drops any queued typing.
func (k *Keyboard) Reset() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.reset()
	k.pending = nil
	k.typing = 0
	k.typeTimer = 0
}

func (k *Keyboard) reset() {
	for i := range k.rows {
		k.rows[i] = 0xFF
	}
}

// Read returns the AND of every half-row whose select line is low in
// the high byte of the port address.
func (k *Keyboard) Read(high uint8) uint8 {
	k.mu.Lock()
	defer k.mu.Unlock()

	res := uint8(0xFF)
	for row := 0; row < 8; row++ {
		if high&(1<<row) == 0 {
			res &= k.rows[row]
		}
	}
	return res
}

// Row returns one half-row register.
func (k *Keyboard) Row(row int) uint8 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.rows[row]
}

// SetKey presses or releases the physical keys for a host key code.
// The shift keys are applied last and only while the event is a press,
// so any release also releases the shifts the chord synthesised.
func (k *Keyboard) SetKey(down bool, code rune, mods Modifier) KeyResult {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.setKey(down, code, mods)
}

func (k *Keyboard) setKey(down bool, code rune, mods Modifier) KeyResult {
	caps := mods&ModCaps != 0
	symb := mods&ModSymbol != 0
	shift := mods&ModShift != 0

	// Control letters typed with SYMBOL held map back to letters.
	if code >= 0x01 && code <= 0x1A && symb {
		code += 'a' - 1
	}

	result := KeyHandled
	switch code {
	case KeyEnd:
		if down {
			result = KeyReset
		}
	case KeyEscape, KeyHome:
		if down {
			result = KeyPause
		}
	default:
		c, ok := keymap[code]
		if !ok {
			return KeyUnhandled
		}
		if c.key != zxNone {
			k.press(c.key, down)
		}
		if c.capsByShift {
			caps = shift
		}
		caps = caps || c.caps
		symb = symb || c.symb
	}

	k.press(zxSymbol, symb && down)
	k.press(zxCaps, caps && down)
	return result
}

func (k *Keyboard) press(key zxKey, down bool) {
	row, mask := key.cell()
	if down {
		k.rows[row] &^= mask
	} else {
		k.rows[row] |= mask
	}
}

// Type queues text to be typed into the matrix one key at a time.
// Carriage returns are folded into newlines and characters the matrix
// cannot produce are dropped.
func (k *Keyboard) Type(text string) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	k.mu.Lock()
	defer k.mu.Unlock()
	for _, r := range text {
		if len(k.pending) >= maxTypeRunes {
			break
		}
		if c, ok := keymap[r]; ok && c.key != zxNone && r < KeyLeft {
			k.pending = append(k.pending, r)
		}
	}
}

// Typing reports whether queued text is still being typed.
func (k *Keyboard) Typing() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.typing != 0 || len(k.pending) > 0
}

// tick advances the type-in queue by one frame.
func (k *Keyboard) tick() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.typeTimer > 0 {
		k.typeTimer--
		return
	}
	if k.typing != 0 {
		k.setKey(false, k.typing, 0)
		k.typing = 0
		k.typeTimer = typeGapFrames
		return
	}
	if len(k.pending) == 0 {
		return
	}
	r := k.pending[0]
	k.pending = k.pending[1:]
	k.setKey(true, r, 0)
	k.typing = r
	k.typeTimer = typeHoldFrames
}

// rowState returns a copy of the half-row registers.
func (k *Keyboard) rowState() [8]uint8 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.rows
}

// restoreRows replaces the half-row registers and drops queued typing.
func (k *Keyboard) restoreRows(rows [8]uint8) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.rows = rows
	k.pending = nil
	k.typing = 0
	k.typeTimer = 0
}
