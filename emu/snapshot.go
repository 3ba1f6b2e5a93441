package emu

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Snapshot sizes
const (
	SNASize       = 27 + ramSize // fixed-size .sna
	snaHeaderSize = 27
	z80HeaderSize = 30
	pageSize      = 0x4000
	rawPageLength = 0xFFFF // v3 page block stored without compression
)

// Snapshot format errors. All are wrapped in a *FormatError.
var (
	ErrUnsupportedVersion = errors.New("unsupported header version")
	ErrUnsupportedMachine = errors.New("unsupported machine type")
	ErrUnsupportedPage    = errors.New("unsupported page")
	ErrCorruptPage        = errors.New("corrupt page block")
)

// FormatError reports a snapshot the loader cannot decode.
type FormatError struct {
	Format string
	Err    error
	Detail string
}

func (e *FormatError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Format, e.Err, e.Detail)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// SnapshotFormat identifies the decoder used for a snapshot.
type SnapshotFormat int

const (
	FormatSNA SnapshotFormat = iota
	FormatZ80v1
	FormatZ80v2
	FormatZ80v3
	FormatZ80v301
)

func (f SnapshotFormat) String() string {
	switch f {
	case FormatSNA:
		return "SNA"
	case FormatZ80v1:
		return "Z80 v1"
	case FormatZ80v2:
		return "Z80 v2.01"
	case FormatZ80v3:
		return "Z80 v3.00"
	case FormatZ80v301:
		return "Z80 v3.01"
	default:
		return "unknown"
	}
}

// extendedHeaders maps the extended header length word to its format
// and the highest machine type that is still a plain 48K.
var extendedHeaders = map[int]struct {
	format     SnapshotFormat
	maxMachine uint8
}{
	23: {FormatZ80v2, 1},
	54: {FormatZ80v3, 6},
	58: {FormatZ80v301, 7},
}

// Snapshot is the machine state decoded from a snapshot file. Memory is
// written directly; registers and border are returned for the caller to
// apply.
type Snapshot struct {
	Format  SnapshotFormat
	Regs    Registers
	Border  uint8
	Machine uint8
}

// SnapshotLoader decodes .sna and .z80 streams into memory.
type SnapshotLoader struct {
	mem      *Memory
	progress *progressCounter
}

// NewSnapshotLoader creates a loader writing to mem and reporting to p.
func NewSnapshotLoader(mem *Memory, p Progress) *SnapshotLoader {
	return &SnapshotLoader{
		mem:      mem,
		progress: &progressCounter{p: p},
	}
}

// Load decodes a snapshot. size is the stream length, or negative when
// unknown, in which case the stream is buffered first. A stream of
// exactly SNASize bytes is an .sna; anything else is a .z80.
func (l *SnapshotLoader) Load(name string, r io.Reader, size int) (*Snapshot, error) {
	if size < 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read snapshot: %w", err)
		}
		r = bytes.NewReader(data)
		size = len(data)
	}

	l.progress.start("Loading "+name, size)
	pr := &progressReader{r: r, c: l.progress}

	if size == SNASize {
		return l.loadSNA(pr)
	}
	return l.loadZ80(pr, size)
}

func readFull(r io.Reader, buf []byte, what string) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		return fmt.Errorf("failed to read %s: %w", what, err)
	}
	return nil
}

func word(lo, hi uint8) uint16 {
	return uint16(lo) | uint16(hi)<<8
}

func interruptMode(v uint8) uint8 {
	switch v {
	case 0:
		return 0
	case 1:
		return 1
	default:
		return 2
	}
}

func (l *SnapshotLoader) loadSNA(r io.Reader) (*Snapshot, error) {
	hdr := make([]byte, snaHeaderSize)
	if err := readFull(r, hdr, "sna header"); err != nil {
		return nil, err
	}
	body := make([]byte, ramSize)
	if err := readFull(r, body, "sna memory"); err != nil {
		return nil, err
	}
	for i, b := range body {
		l.mem.Write(uint16(ROMSize+i), b)
	}

	var regs Registers
	regs.I = hdr[0]

	regs.HL = word(hdr[1], hdr[2])
	regs.DE = word(hdr[3], hdr[4])
	regs.BC = word(hdr[5], hdr[6])
	regs.AF = word(hdr[7], hdr[8])
	regs.Exx()
	regs.ExAF()

	regs.HL = word(hdr[9], hdr[10])
	regs.DE = word(hdr[11], hdr[12])
	regs.BC = word(hdr[13], hdr[14])
	regs.IY = word(hdr[15], hdr[16])
	regs.IX = word(hdr[17], hdr[18])

	regs.IFF2 = hdr[19]&0x04 != 0
	regs.R = hdr[20]
	regs.AF = word(hdr[21], hdr[22])
	regs.SP = word(hdr[23], hdr[24])
	regs.IM = interruptMode(hdr[25])

	// The snapshot was taken inside an interrupt; resume as RETN would.
	regs.IFF1 = regs.IFF2
	regs.R = regs.R&0x80 | (regs.R+2)&0x7f
	regs.PC = l.mem.ReadWord(regs.SP)
	regs.SP += 2

	return &Snapshot{
		Format: FormatSNA,
		Regs:   regs,
		Border: hdr[26] & 0x07,
	}, nil
}

func (l *SnapshotLoader) loadZ80(r io.Reader, size int) (*Snapshot, error) {
	bytesLeft := size

	hdr := make([]byte, z80HeaderSize)
	if err := readFull(r, hdr, "z80 header"); err != nil {
		return nil, err
	}
	bytesLeft -= z80HeaderSize

	var regs Registers
	regs.AF = word(hdr[1], hdr[0])
	regs.BC = word(hdr[2], hdr[3])
	regs.HL = word(hdr[4], hdr[5])
	regs.PC = word(hdr[6], hdr[7])
	regs.SP = word(hdr[8], hdr[9])
	regs.I = hdr[10]
	regs.R = hdr[11]

	flags := hdr[12]
	if flags == 0xFF {
		flags = 1
	}
	if flags&0x01 != 0 {
		regs.R |= 0x80
	}
	compressed := flags&0x20 != 0

	regs.DE = word(hdr[13], hdr[14])

	regs.ExAF()
	regs.Exx()
	regs.BC = word(hdr[15], hdr[16])
	regs.DE = word(hdr[17], hdr[18])
	regs.HL = word(hdr[19], hdr[20])
	regs.AF = word(hdr[22], hdr[21])
	regs.ExAF()
	regs.Exx()

	regs.IY = word(hdr[23], hdr[24])
	regs.IX = word(hdr[25], hdr[26])
	regs.IFF1 = hdr[27] != 0
	regs.IFF2 = hdr[28] != 0
	regs.IM = interruptMode(hdr[29] & 0x03)

	snap := &Snapshot{
		Format: FormatZ80v1,
		Regs:   regs,
		Border: (flags >> 1) & 0x07,
	}

	if regs.PC == 0 {
		if err := l.loadZ80Extended(r, bytesLeft, snap); err != nil {
			return nil, err
		}
		return snap, nil
	}

	if !compressed {
		body := make([]byte, ramSize)
		if err := readFull(r, body, "z80 memory"); err != nil {
			return nil, err
		}
		for i, b := range body {
			l.mem.Write(uint16(ROMSize+i), b)
		}
		return snap, nil
	}

	if bytesLeft < 0 {
		bytesLeft = 0
	}
	data := make([]byte, bytesLeft)
	n, err := io.ReadFull(r, data)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("failed to read z80 memory: %w", err)
	}

	// A v1 stream ends with 00 ED ED 00, which may be cut short.
	addr := ROMSize
	_ = decompressRLE(data[:n], func(b uint8) bool {
		if addr >= memorySize {
			return false
		}
		l.mem.Write(uint16(addr), b)
		addr++
		return true
	})
	return snap, nil
}

func (l *SnapshotLoader) loadZ80Extended(r io.Reader, bytesLeft int, snap *Snapshot) error {
	lenBuf := make([]byte, 2)
	if err := readFull(r, lenBuf, "z80 extended header length"); err != nil {
		return err
	}
	bytesLeft -= 2

	hdrLen := int(word(lenBuf[0], lenBuf[1]))
	ext, ok := extendedHeaders[hdrLen]
	if !ok {
		return &FormatError{
			Format: "Z80 (extended)",
			Err:    ErrUnsupportedVersion,
			Detail: fmt.Sprintf("header length %d", hdrLen),
		}
	}

	hdr := make([]byte, hdrLen)
	if err := readFull(r, hdr, "z80 extended header"); err != nil {
		return err
	}
	bytesLeft -= hdrLen

	snap.Format = ext.format
	snap.Regs.PC = word(hdr[0], hdr[1])
	snap.Machine = hdr[2]
	if snap.Machine > ext.maxMachine {
		return &FormatError{
			Format: ext.format.String(),
			Err:    ErrUnsupportedMachine,
			Detail: fmt.Sprintf("type %d", snap.Machine),
		}
	}

	if bytesLeft < 0 {
		bytesLeft = 0
	}
	data := make([]byte, bytesLeft)
	if err := readFull(r, data, "z80 pages"); err != nil {
		return err
	}

	offset := 0
	for page := 0; page < 3; page++ {
		var err error
		offset, err = l.loadZ80Page(data, offset)
		if err != nil {
			return err
		}
	}
	return nil
}

// pageBase returns the load address of a 48K page id.
func pageBase(page uint8) (int, bool) {
	switch page {
	case 4:
		return 0x8000, true
	case 5:
		return 0xC000, true
	case 8:
		return 0x4000, true
	}
	return 0, false
}

func corruptPage(detail string) error {
	return &FormatError{Format: "Z80 (page)", Err: ErrCorruptPage, Detail: detail}
}

// loadZ80Page decodes one page block starting at data[i] and returns
// the offset of the next block.
func (l *SnapshotLoader) loadZ80Page(data []byte, i int) (int, error) {
	if i+3 > len(data) {
		return i, corruptPage("missing block header")
	}
	blockLen := int(word(data[i], data[i+1]))
	page := data[i+2]
	i += 3

	base, ok := pageBase(page)
	if !ok {
		return i, &FormatError{
			Format: "Z80 (page)",
			Err:    ErrUnsupportedPage,
			Detail: fmt.Sprintf("page %d", page),
		}
	}

	if blockLen == rawPageLength {
		if i+pageSize > len(data) {
			return i, corruptPage("short uncompressed page")
		}
		for k, b := range data[i : i+pageSize] {
			l.mem.Write(uint16(base+k), b)
		}
		return i + pageSize, nil
	}

	if i+blockLen > len(data) {
		return i, corruptPage(fmt.Sprintf("page %d block of %d bytes is truncated", page, blockLen))
	}

	addr := base
	overrun := false
	err := decompressRLE(data[i:i+blockLen], func(b uint8) bool {
		if addr >= memorySize {
			overrun = true
			return false
		}
		l.mem.Write(uint16(addr), b)
		addr++
		return true
	})
	if err != nil {
		return i, corruptPage(err.Error())
	}
	if overrun || (addr-base)%pageSize != 0 {
		return i, corruptPage(fmt.Sprintf("page %d overrun", page))
	}
	return i + blockLen, nil
}
