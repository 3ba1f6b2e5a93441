// Package romloader locates snapshot and system ROM files. A locator is
// a file path, an archive member ("games.zip#manic.z80") or an http(s)
// URL. Archives (ZIP, 7z, RAR, tar) and compressed streams (gzip, zstd,
// xz, lz4, brotli) are unpacked in memory.
package romloader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Magic bytes for format detection
var (
	magicZIP    = []byte{0x50, 0x4B, 0x03, 0x04}
	magicZIPEnd = []byte{0x50, 0x4B, 0x05, 0x06} // empty zip
	magic7z     = []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}
	magicGzip   = []byte{0x1F, 0x8B}
	magicRAR    = []byte{0x52, 0x61, 0x72, 0x21} // "Rar!"
	magicZstd   = []byte{0x28, 0xB5, 0x2F, 0xFD}
	magicXZ     = []byte{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00}
	magicLZ4    = []byte{0x04, 0x22, 0x4D, 0x18}
	magicTar    = []byte("ustar")
)

const (
	// Maximum file size (8MB safety limit)
	maxFileSize = 8 * 1024 * 1024

	// SystemROMSize is the size of the 48K system ROM.
	SystemROMSize = 16384

	tarMagicOffset = 257

	// Compressed streams may wrap one more layer (.tar.gz).
	maxNesting = 2
)

// ErrNoSnapshotFile is returned when no .sna or .z80 file is found in an archive
var ErrNoSnapshotFile = errors.New("no .sna or .z80 file found in archive")

// ErrNoROMFile is returned when no .rom file is found in an archive
var ErrNoROMFile = errors.New("no .rom file found in archive")

// ErrMemberNotFound is returned when a named archive member does not exist
var ErrMemberNotFound = errors.New("archive member not found")

// ErrUnsupportedFormat is returned for unrecognized file formats
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ErrFileTooLarge is returned when extracted content exceeds size limit
var ErrFileTooLarge = errors.New("file exceeds maximum size limit")

// ErrROMSize is returned when a system ROM is not exactly 16KB
var ErrROMSize = errors.New("system ROM must be 16384 bytes")

// ErrHTTPStatus is returned when a URL answers with a non-200 status
var ErrHTTPStatus = errors.New("unexpected HTTP status")

// formatType represents the detected file format
type formatType int

const (
	formatUnknown formatType = iota
	formatRaw
	formatZIP
	format7z
	formatRAR
	formatTar
	formatGzip
	formatZstd
	formatXZ
	formatLZ4
	formatBrotli
)

// fileKind selects which archive members a load accepts.
type fileKind int

const (
	kindSnapshot fileKind = iota
	kindROM
)

func (k fileKind) matches(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	if k == kindROM {
		return ext == ".rom"
	}
	return ext == ".sna" || ext == ".z80"
}

func (k fileKind) notFound() error {
	if k == kindROM {
		return ErrNoROMFile
	}
	return ErrNoSnapshotFile
}

// Loader reads locators through Fs and, for URLs, Client.
type Loader struct {
	Fs     afero.Fs
	Client *http.Client
}

// New creates a Loader over fs using http.DefaultClient for URLs.
func New(fs afero.Fs) *Loader {
	return &Loader{Fs: fs, Client: http.DefaultClient}
}

// IsSnapshotFile checks if a filename has a .sna or .z80 extension (case-insensitive)
func IsSnapshotFile(name string) bool {
	return kindSnapshot.matches(name)
}

// LoadSnapshot reads the snapshot named by locator. Returns the snapshot
// data and its file name (useful for display).
func (l *Loader) LoadSnapshot(locator string) ([]byte, string, error) {
	return l.load(locator, kindSnapshot)
}

// LoadSystemROM reads the 16KB system ROM named by locator.
func (l *Loader) LoadSystemROM(locator string) ([]byte, error) {
	data, name, err := l.load(locator, kindROM)
	if err != nil {
		return nil, err
	}
	if len(data) != SystemROMSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrROMSize, name, len(data))
	}
	return data, nil
}

// Resolve opens the snapshot named by locator. A plain snapshot behind a
// URL is streamed with the length the server announced (-1 if none);
// everything else is read into memory first.
func (l *Loader) Resolve(locator string) (string, io.ReadCloser, int, error) {
	if isURL(locator) {
		return l.resolveURL(locator)
	}
	data, name, err := l.load(locator, kindSnapshot)
	if err != nil {
		return "", nil, 0, err
	}
	return name, io.NopCloser(bytes.NewReader(data)), len(data), nil
}

func (l *Loader) load(locator string, kind fileKind) ([]byte, string, error) {
	if isURL(locator) {
		return l.loadURL(locator, kind)
	}

	file, member := l.splitLocator(locator)
	data, err := l.readFile(file)
	if err != nil {
		return nil, "", err
	}
	return extract(data, filepath.Base(file), member, kind, 0)
}

// splitLocator separates "archive#member". A path that exists as given
// is never split.
func (l *Loader) splitLocator(locator string) (file, member string) {
	i := strings.LastIndex(locator, "#")
	if i < 0 {
		return locator, ""
	}
	if ok, _ := afero.Exists(l.Fs, locator); ok {
		return locator, ""
	}
	return locator[:i], locator[i+1:]
}

func (l *Loader) readFile(name string) ([]byte, error) {
	f, err := l.Fs.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	data, err := limitedRead(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(name), err)
	}
	return data, nil
}

// extract returns the file of the requested kind held in data. name is
// the container's own name; member, when set, selects an archive entry.
func extract(data []byte, name, member string, kind fileKind, depth int) ([]byte, string, error) {
	format := detectFormat(data, name)

	switch format {
	case formatRaw:
		if member != "" {
			return nil, "", fmt.Errorf("%w: %s is not an archive", ErrMemberNotFound, name)
		}
		return data, name, nil

	case formatZIP:
		return extractFromZIP(data, member, kind)

	case format7z:
		return extractFrom7z(data, member, kind)

	case formatRAR:
		return extractFromRAR(data, member, kind)

	case formatTar:
		return extractFromTar(data, member, kind)

	case formatGzip, formatZstd, formatXZ, formatLZ4, formatBrotli:
		if depth >= maxNesting {
			return nil, "", fmt.Errorf("%w: %s is nested too deeply", ErrUnsupportedFormat, name)
		}
		inner, err := decompressStream(format, data)
		if err != nil {
			return nil, "", err
		}
		return extract(inner, innerName(name), member, kind, depth+1)

	default:
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

// detectFormat determines the file format based on magic bytes and extension
func detectFormat(header []byte, name string) formatType {
	ext := strings.ToLower(path.Ext(name))

	// Snapshots start with register values, which can look like magic.
	switch ext {
	case ".sna", ".z80", ".rom":
		return formatRaw
	}

	// Check magic bytes next (more reliable than the remaining extensions)
	switch {
	case bytes.HasPrefix(header, magicZIP), bytes.HasPrefix(header, magicZIPEnd):
		return formatZIP
	case bytes.HasPrefix(header, magicRAR):
		return formatRAR
	case bytes.HasPrefix(header, magic7z):
		return format7z
	case bytes.HasPrefix(header, magicXZ):
		return formatXZ
	case bytes.HasPrefix(header, magicZstd):
		return formatZstd
	case bytes.HasPrefix(header, magicLZ4):
		return formatLZ4
	case bytes.HasPrefix(header, magicGzip):
		return formatGzip
	case len(header) >= tarMagicOffset+len(magicTar) &&
		bytes.Equal(header[tarMagicOffset:tarMagicOffset+len(magicTar)], magicTar):
		return formatTar
	}

	// Fall back to extension
	switch ext {
	case ".zip":
		return formatZIP
	case ".7z":
		return format7z
	case ".rar":
		return formatRAR
	case ".tar":
		return formatTar
	case ".gz", ".tgz":
		return formatGzip
	case ".zst":
		return formatZstd
	case ".xz":
		return formatXZ
	case ".lz4":
		return formatLZ4
	case ".br":
		return formatBrotli
	}
	return formatUnknown
}

// innerName strips the compression extension from a stream's name.
func innerName(name string) string {
	ext := path.Ext(name)
	if strings.EqualFold(ext, ".tgz") {
		return strings.TrimSuffix(name, ext) + ".tar"
	}
	return strings.TrimSuffix(name, ext)
}

// memberMatches reports whether archive entry entryName is the one a
// load wants: the named member, or else the first file of kind.
func memberMatches(entryName, member string, kind fileKind) bool {
	if member != "" {
		return entryName == member || path.Base(entryName) == member
	}
	return kind.matches(entryName)
}

func memberError(member string, kind fileKind) error {
	if member != "" {
		return fmt.Errorf("%w: %s", ErrMemberNotFound, member)
	}
	return kind.notFound()
}

// limitedRead reads from r up to maxFileSize bytes, returning an error if exceeded
func limitedRead(r io.Reader) ([]byte, error) {
	lr := io.LimitReader(r, maxFileSize+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if len(data) > maxFileSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}
