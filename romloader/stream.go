package romloader

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// decompressStream unpacks a single compressed stream.
func decompressStream(format formatType, data []byte) ([]byte, error) {
	src := bytes.NewReader(data)

	var r io.Reader
	switch format {
	case formatGzip:
		gz, err := gzip.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip: %w", err)
		}
		defer gz.Close()
		r = gz

	case formatZstd:
		zr, err := zstd.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd: %w", err)
		}
		defer zr.Close()
		r = zr

	case formatXZ:
		xr, err := xz.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("failed to open xz: %w", err)
		}
		r = xr

	case formatLZ4:
		r = lz4.NewReader(src)

	case formatBrotli:
		r = brotli.NewReader(src)

	default:
		return nil, ErrUnsupportedFormat
	}

	out, err := limitedRead(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress: %w", err)
	}
	return out, nil
}
