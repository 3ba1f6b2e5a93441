package emu

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"
)

func expand(t *testing.T, src []byte) []byte {
	t.Helper()
	var out []byte
	if err := decompressRLE(src, func(b uint8) bool {
		out = append(out, b)
		return true
	}); err != nil {
		t.Fatalf("decompressRLE(% X): %v", src, err)
	}
	return out
}

// TestRLE_Decompress tests expansion of escapes and literals
func TestRLE_Decompress(t *testing.T) {
	testCases := []struct {
		name string
		src  []byte
		want []byte
	}{
		{"literals", []byte{0x01, 0x02, 0x03}, []byte{0x01, 0x02, 0x03}},
		{"run", []byte{0xED, 0xED, 0x05, 0xAA}, bytes.Repeat([]byte{0xAA}, 5)},
		{"run of EDs", []byte{0xED, 0xED, 0x02, 0xED}, []byte{0xED, 0xED}},
		{"lone ED", []byte{0xED, 0x00, 0x01}, []byte{0xED, 0x00, 0x01}},
		{"trailing ED", []byte{0x01, 0xED}, []byte{0x01, 0xED}},
		{"zero count", []byte{0xED, 0xED, 0x00, 0x11, 0x22}, []byte{0x22}},
		{"mixed", []byte{0x10, 0xED, 0xED, 0x03, 0x00, 0x20}, []byte{0x10, 0x00, 0x00, 0x00, 0x20}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := expand(t, tc.src); !bytes.Equal(got, tc.want) {
				t.Errorf("expected % X, got % X", tc.want, got)
			}
		})
	}
}

// TestRLE_TruncatedRun tests that an escape cut off by the end of input
// is an error
func TestRLE_TruncatedRun(t *testing.T) {
	for _, src := range [][]byte{
		{0xED, 0xED},
		{0xED, 0xED, 0x04},
		{0x01, 0xED, 0xED, 0x04},
	} {
		err := decompressRLE(src, func(uint8) bool { return true })
		if !errors.Is(err, errShortRun) {
			t.Errorf("decompressRLE(% X): expected errShortRun, got %v", src, err)
		}
	}
}

// TestRLE_StopEarly tests that emit can end decompression
func TestRLE_StopEarly(t *testing.T) {
	n := 0
	err := decompressRLE([]byte{0xED, 0xED, 0xFF, 0x01, 0x02}, func(uint8) bool {
		n++
		return n < 10
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 10 {
		t.Errorf("emitted bytes: expected 10, got %d", n)
	}
}

// TestRLE_Compress tests the encoder's choice of escapes
func TestRLE_Compress(t *testing.T) {
	testCases := []struct {
		name string
		src  []byte
		want []byte
	}{
		{"short run literal", []byte{0x01, 0x01, 0x01, 0x01}, []byte{0x01, 0x01, 0x01, 0x01}},
		{"run of five", bytes.Repeat([]byte{0x07}, 5), []byte{0xED, 0xED, 0x05, 0x07}},
		{"two EDs", []byte{0xED, 0xED}, []byte{0xED, 0xED, 0x02, 0xED}},
		{"ED then run", []byte{0xED, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
			[]byte{0xED, 0x00, 0xED, 0xED, 0x05, 0x00}},
		{"long run", bytes.Repeat([]byte{0xFF}, 300),
			[]byte{0xED, 0xED, 0xFF, 0xFF, 0xED, 0xED, 0x2D, 0xFF}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CompressPage(tc.src); !bytes.Equal(got, tc.want) {
				t.Errorf("expected % X, got % X", tc.want, got)
			}
		})
	}
}

// TestRLE_PageRoundTrip tests that compressed 16K pages expand back to
// the original bytes
func TestRLE_PageRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(48))

	pages := map[string][]byte{
		"zero":   make([]byte, pageSize),
		"random": make([]byte, pageSize),
		"ed":     bytes.Repeat([]byte{0xED}, pageSize),
		"mixed":  make([]byte, pageSize),
	}
	rng.Read(pages["random"])
	mixed := pages["mixed"]
	for i := 0; i < len(mixed); {
		n := rng.Intn(600) + 1
		v := []byte{0x00, 0xED, 0xFF, uint8(rng.Intn(256))}[rng.Intn(4)]
		for j := 0; j < n && i < len(mixed); j++ {
			mixed[i] = v
			i++
		}
	}

	for name, page := range pages {
		t.Run(name, func(t *testing.T) {
			packed := CompressPage(page)
			if got := expand(t, packed); !bytes.Equal(got, page) {
				t.Errorf("round trip: %d bytes differ from original", countDiff(got, page))
			}
		})
	}
}

func countDiff(a, b []byte) int {
	n := len(a) - len(b)
	if n < 0 {
		n = -n
	}
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			n++
		}
	}
	return n
}
