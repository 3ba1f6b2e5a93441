package emu

import "errors"

// errShortRun is returned when an ED ED escape is cut off by the end
// of its input.
var errShortRun = errors.New("truncated ED ED run")

// decompressRLE expands the Z80 snapshot run-length scheme. ED ED nn vv
// writes vv nn times; every other byte, including a single ED, is
// literal. emit returns false to stop early.
func decompressRLE(src []byte, emit func(b uint8) bool) error {
	i := 0
	for i < len(src) {
		b := src[i]
		if b == 0xED && i+1 < len(src) && src[i+1] == 0xED {
			if i+3 >= len(src) {
				return errShortRun
			}
			count, val := int(src[i+2]), src[i+3]
			i += 4
			for ; count > 0; count-- {
				if !emit(val) {
					return nil
				}
			}
			continue
		}
		if !emit(b) {
			return nil
		}
		i++
	}
	return nil
}

// CompressPage encodes data with the Z80 snapshot run-length scheme.
// Runs of five or more bytes, and runs of two or more EDs, become
// ED ED nn vv. The byte after a literal ED is always written literally
// so it cannot start an escape.
func CompressPage(data []byte) []byte {
	out := make([]byte, 0, len(data))
	i := 0
	for i < len(data) {
		b := data[i]
		run := 1
		for i+run < len(data) && data[i+run] == b && run < 255 {
			run++
		}

		if run >= 5 || (b == 0xED && run >= 2) {
			out = append(out, 0xED, 0xED, byte(run), b)
			i += run
			continue
		}

		out = append(out, b)
		i++
		if b == 0xED && i < len(data) {
			out = append(out, data[i])
			i++
		}
	}
	return out
}
